package core_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/mocks"
)

const cachedAgentID = "5f1c9b2e-8a3d-4e6f-9c0b-1d2e3f4a5b6c"

func newAgentCache(
	cache core.CacheRepository,
	agents core.AgentRepository,
) *core.AgentCacheService {
	return core.NewAgentCacheService(core.AgentCacheServiceOptions{
		Cache:  cache,
		Agents: agents,
		Config: core.AgentCacheConfig{TTL: time.Minute},
	})
}

func TestAgentCacheService_GetAgent_CacheHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	agent := &model.Agent{ID: cachedAgentID, Name: "http-poll", Enabled: true}
	cached, err := json.Marshal(agent)
	require.NoError(t, err)

	mockCache.EXPECT().Get(ctx, "agent:record:"+cachedAgentID).Return(cached, nil)
	// No repository call expected.

	svc := newAgentCache(mockCache, mockAgents)
	got, err := svc.GetAgent(ctx, cachedAgentID)
	require.NoError(t, err)
	assert.Equal(t, agent.Name, got.Name)
	assert.True(t, got.Enabled)
}

func TestAgentCacheService_GetAgent_MissPopulatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	agent := &model.Agent{ID: cachedAgentID, Name: "http-poll", Enabled: true}

	mockCache.EXPECT().Get(ctx, "agent:record:"+cachedAgentID).Return(nil, nil)
	mockAgents.EXPECT().GetByID(ctx, cachedAgentID).Return(agent, nil)
	mockCache.EXPECT().
		Set(ctx, "agent:record:"+cachedAgentID, gomock.Any(), time.Minute).
		Return(nil)

	svc := newAgentCache(mockCache, mockAgents)
	got, err := svc.GetAgent(ctx, cachedAgentID)
	require.NoError(t, err)
	assert.Equal(t, agent, got)
}

func TestAgentCacheService_GetAgent_CorruptEntryRefetches(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	agent := &model.Agent{ID: cachedAgentID, Name: "http-poll"}

	mockCache.EXPECT().Get(ctx, gomock.Any()).Return([]byte("{not json"), nil)
	mockCache.EXPECT().Delete(ctx, gomock.Any()).Return(true, nil)
	mockAgents.EXPECT().GetByID(ctx, cachedAgentID).Return(agent, nil)
	mockCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(nil)

	svc := newAgentCache(mockCache, mockAgents)
	got, err := svc.GetAgent(ctx, cachedAgentID)
	require.NoError(t, err)
	assert.Equal(t, agent, got)
}

func TestAgentCacheService_GetAgent_CacheWriteFailureIgnored(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	agent := &model.Agent{ID: cachedAgentID, Name: "http-poll"}

	mockCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	mockAgents.EXPECT().GetByID(ctx, cachedAgentID).Return(agent, nil)
	mockCache.EXPECT().Set(ctx, gomock.Any(), gomock.Any(), gomock.Any()).Return(errors.New("redis down"))

	svc := newAgentCache(mockCache, mockAgents)
	got, err := svc.GetAgent(ctx, cachedAgentID)
	require.NoError(t, err)
	assert.Equal(t, agent, got)
}

func TestAgentCacheService_GetAgent_RepoErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	repoErr := errors.New("not found")
	mockCache.EXPECT().Get(ctx, gomock.Any()).Return(nil, nil)
	mockAgents.EXPECT().GetByID(ctx, cachedAgentID).Return(nil, repoErr)

	svc := newAgentCache(mockCache, mockAgents)
	_, err := svc.GetAgent(ctx, cachedAgentID)
	assert.ErrorIs(t, err, repoErr)
}

func TestAgentCacheService_InvalidateAgent(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockCache := mocks.NewMockCacheRepository(ctrl)
	mockAgents := mocks.NewMockAgentRepository(ctrl)

	mockCache.EXPECT().Delete(ctx, "agent:record:"+cachedAgentID).Return(true, nil)

	svc := newAgentCache(mockCache, mockAgents)
	require.NoError(t, svc.InvalidateAgent(ctx, cachedAgentID))

	// Empty IDs are a no-op.
	require.NoError(t, svc.InvalidateAgent(ctx, ""))
}
