package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/mocks"
)

func TestNewAgentService_RequiresRepo(t *testing.T) {
	_, err := NewAgentService(AgentServiceOptions{})
	require.Error(t, err)
}

func TestAgentService_Create(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockRepo := mocks.NewMockAgentRepository(ctrl)
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo})
	require.NoError(t, err)

	created := &model.Agent{ID: testAgentID, Name: "http-poll", Enabled: true}
	mockRepo.EXPECT().
		Create(ctx, gomock.AssignableToTypeOf(&model.CreateAgentRequest{})).
		DoAndReturn(func(_ context.Context, req *model.CreateAgentRequest) (*model.Agent, error) {
			assert.Equal(t, "http-poll", req.Name)
			return created, nil
		})

	got, err := svc.Create(ctx, model.CreateAgentRequest{Name: "  http-poll  "})
	require.NoError(t, err)
	assert.Equal(t, created, got)
}

func TestAgentService_Create_RejectsEmptyName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	mockRepo := mocks.NewMockAgentRepository(ctrl)
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo})
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), model.CreateAgentRequest{Name: "   "})
	require.Error(t, err)
}

func TestAgentService_Update_InvalidatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockRepo := mocks.NewMockAgentRepository(ctrl)
	mockCache := mocks.NewMockCacheRepository(ctrl)

	cache := core.NewAgentCacheService(core.AgentCacheServiceOptions{
		Cache:  mockCache,
		Agents: mockRepo,
		Config: core.DefaultAgentCacheConfig(),
	})
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo, Cache: cache})
	require.NoError(t, err)

	desc := "updated"
	updated := &model.Agent{ID: testAgentID, Name: "http-poll", Description: desc}

	mockRepo.EXPECT().Update(ctx, testAgentID, gomock.Any()).Return(updated, nil)
	mockCache.EXPECT().Delete(ctx, "agent:record:"+testAgentID).Return(true, nil)

	got, err := svc.Update(ctx, testAgentID, model.UpdateAgentRequest{Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestAgentService_Delete_InvalidatesCache(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockRepo := mocks.NewMockAgentRepository(ctrl)
	mockCache := mocks.NewMockCacheRepository(ctrl)

	cache := core.NewAgentCacheService(core.AgentCacheServiceOptions{
		Cache:  mockCache,
		Agents: mockRepo,
		Config: core.DefaultAgentCacheConfig(),
	})
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo, Cache: cache})
	require.NoError(t, err)

	mockRepo.EXPECT().Delete(ctx, testAgentID).Return(true, nil)
	mockCache.EXPECT().Delete(ctx, "agent:record:"+testAgentID).Return(true, nil)

	deleted, err := svc.Delete(ctx, testAgentID)
	require.NoError(t, err)
	assert.True(t, deleted)
}

func TestAgentService_Delete_NotFoundSkipsInvalidation(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockRepo := mocks.NewMockAgentRepository(ctrl)
	mockCache := mocks.NewMockCacheRepository(ctrl)

	cache := core.NewAgentCacheService(core.AgentCacheServiceOptions{
		Cache:  mockCache,
		Agents: mockRepo,
		Config: core.DefaultAgentCacheConfig(),
	})
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo, Cache: cache})
	require.NoError(t, err)

	mockRepo.EXPECT().Delete(ctx, testAgentID).Return(false, nil)
	// No cache delete expected.

	deleted, err := svc.Delete(ctx, testAgentID)
	require.NoError(t, err)
	assert.False(t, deleted)
}

func TestAgentService_GetByName_ErrorWrapped(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	ctx := context.Background()
	mockRepo := mocks.NewMockAgentRepository(ctrl)
	svc, err := NewAgentService(AgentServiceOptions{Repo: mockRepo})
	require.NoError(t, err)

	repoErr := errors.New("not found")
	mockRepo.EXPECT().GetByName(ctx, "missing").Return(nil, repoErr)

	_, err = svc.GetByName(ctx, "missing")
	require.Error(t, err)
	assert.ErrorIs(t, err, repoErr)
}
