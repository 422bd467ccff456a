package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automaton-hq/automaton/internal/domain/params"
)

func TestCreateRuleRequest_Validate(t *testing.T) {
	agentID := "7f2c1a52-08aa-4f6b-9b5e-2f1d9c3b4a10"

	valid := func() CreateRuleRequest {
		return CreateRuleRequest{
			OwnerID:           "acct-1",
			AgentID:           agentID,
			Parameters:        params.Map{"list_id": "abc"},
			ExecutionInterval: 5 * time.Minute,
		}
	}

	t.Run("valid request passes", func(t *testing.T) {
		req := valid()
		req.Normalize()
		require.NoError(t, req.Validate())
	})

	t.Run("missing owner fails", func(t *testing.T) {
		req := valid()
		req.OwnerID = "  "
		req.Normalize()
		assert.Error(t, req.Validate())
	})

	t.Run("missing agent fails", func(t *testing.T) {
		req := valid()
		req.AgentID = ""
		assert.Error(t, req.Validate())
	})

	t.Run("non-uuid agent fails", func(t *testing.T) {
		req := valid()
		req.AgentID = "not-a-uuid"
		assert.Error(t, req.Validate())
	})

	t.Run("zero interval fails", func(t *testing.T) {
		req := valid()
		req.ExecutionInterval = 0
		assert.Error(t, req.Validate())
	})
}

func TestUpdateRuleRequest_ChangesSource(t *testing.T) {
	agentID := "7f2c1a52-08aa-4f6b-9b5e-2f1d9c3b4a10"
	interval := 10 * time.Minute
	condition := "amount > `100`"

	t.Run("agent change is a source change", func(t *testing.T) {
		req := UpdateRuleRequest{AgentID: &agentID}
		assert.True(t, req.ChangesSource())
	})

	t.Run("parameter change is a source change", func(t *testing.T) {
		req := UpdateRuleRequest{Parameters: params.Map{"a": 1}}
		assert.True(t, req.ChangesSource())
	})

	t.Run("interval change is a source change", func(t *testing.T) {
		req := UpdateRuleRequest{ExecutionInterval: &interval}
		assert.True(t, req.ChangesSource())
	})

	t.Run("condition change is not", func(t *testing.T) {
		req := UpdateRuleRequest{Condition: &condition}
		assert.False(t, req.ChangesSource())
	})
}

func TestUpdateRuleRequest_Validate(t *testing.T) {
	t.Run("empty update fails", func(t *testing.T) {
		req := UpdateRuleRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("negative interval fails", func(t *testing.T) {
		interval := -time.Minute
		req := UpdateRuleRequest{ExecutionInterval: &interval}
		assert.Error(t, req.Validate())
	})

	t.Run("enabled-only update passes", func(t *testing.T) {
		enabled := false
		req := UpdateRuleRequest{Enabled: &enabled}
		assert.NoError(t, req.Validate())
	})
}
