package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automaton-hq/automaton/internal/domain/model"
	apperrors "github.com/automaton-hq/automaton/internal/errors"
	"github.com/automaton-hq/automaton/internal/testutil"
)

func createTestAgent(t *testing.T, db *sql.DB, name string) *model.Agent {
	t.Helper()
	repo := NewAgentRepo(db)
	agent, err := repo.Create(context.Background(), &model.CreateAgentRequest{
		Name:        name,
		Description: "test agent",
		Schema:      json.RawMessage(`{"type": "object"}`),
	})
	require.NoError(t, err)
	return agent
}

func uniqueName(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

func TestAgentRepo_Create_Get_List_Update_Delete(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAgentRepo(db)

		// create
		name := uniqueName("http-poll")
		agent, err := repo.Create(ctx, &model.CreateAgentRequest{
			Name:        name,
			Description: "polls HTTP endpoints",
			Schema:      json.RawMessage(`{"type": "object", "required": ["url"]}`),
		})
		require.NoError(t, err)
		require.NotEmpty(t, agent.ID)
		assert.True(t, agent.Enabled)
		assert.NotZero(t, agent.CreatedAt)

		// get by id
		got, err := repo.GetByID(ctx, agent.ID)
		require.NoError(t, err)
		assert.Equal(t, name, got.Name)
		assert.JSONEq(t, `{"type": "object", "required": ["url"]}`, string(got.Schema))

		// get by name
		byName, err := repo.GetByName(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, agent.ID, byName.ID)

		// list
		lst, err := repo.List(ctx, model.AgentListOptions{Limit: 10})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(lst), 1)

		// update - disable and change description
		updated, err := repo.Update(ctx, agent.ID, model.UpdateAgentRequest{
			Description: testutil.StringPtr("retired"),
			Enabled:     testutil.BoolPtr(false),
		})
		require.NoError(t, err)
		assert.False(t, updated.Enabled)
		assert.Equal(t, "retired", updated.Description)

		// list filtered by enabled
		enabledOnly, err := repo.List(ctx, model.AgentListOptions{
			Enabled: testutil.BoolPtr(true),
			Limit:   100,
		})
		require.NoError(t, err)
		for _, a := range enabledOnly {
			assert.NotEqual(t, agent.ID, a.ID)
		}

		// delete
		deleted, err := repo.Delete(ctx, agent.ID)
		require.NoError(t, err)
		assert.True(t, deleted)

		_, err = repo.GetByID(ctx, agent.ID)
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})
}

func TestAgentRepo_DuplicateNameRejected(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAgentRepo(db)

		name := uniqueName("dup")
		_, err := repo.Create(ctx, &model.CreateAgentRequest{Name: name})
		require.NoError(t, err)

		_, err = repo.Create(ctx, &model.CreateAgentRequest{Name: name})
		assert.ErrorIs(t, err, ErrAgentNameExists)
	})
}

func TestAgentRepo_GetByName_NotFound(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		repo := NewAgentRepo(db)
		_, err := repo.GetByName(context.Background(), "no-such-agent")
		assert.ErrorIs(t, err, ErrAgentNotFound)
	})
}

func TestAgentRepo_DeleteInUseRejected(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	testutil.WithAutoDB(t, func(db *sql.DB) {
		ctx := context.Background()
		repo := NewAgentRepo(db)

		agent := createTestAgent(t, db, uniqueName("agent"))
		createTestRule(t, db, "owner-1", agent.ID)

		_, err := repo.Delete(ctx, agent.ID)
		require.Error(t, err)
		assert.True(t, apperrors.IsForeignKey(err))
	})
}
