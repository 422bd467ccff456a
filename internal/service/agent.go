package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
)

// AgentServiceOptions groups dependencies for AgentService.
type AgentServiceOptions struct {
	Repo   core.AgentRepository    // Required: agent repository
	Cache  *core.AgentCacheService // Optional: invalidated on update and delete
	Logger *slog.Logger            // Optional: structured logger
}

// AgentService provides business logic for the agent registry.
type AgentService struct {
	repo   core.AgentRepository
	cache  *core.AgentCacheService
	logger *slog.Logger
}

// NewAgentService constructs a new AgentService.
func NewAgentService(opts AgentServiceOptions) (*AgentService, error) {
	if opts.Repo == nil {
		return nil, errors.New("AgentRepository is required")
	}

	if opts.Logger != nil {
		opts.Logger.Debug("AgentService initialized")
	}

	return &AgentService{
		repo:   opts.Repo,
		cache:  opts.Cache,
		logger: opts.Logger,
	}, nil
}

// Create registers a new agent.
func (s *AgentService) Create(
	ctx context.Context,
	req model.CreateAgentRequest,
) (*model.Agent, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	agent, err := s.repo.Create(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "agent created", "id", agent.ID, "name", agent.Name)
	}
	return agent, nil
}

// GetByID retrieves an agent by its ID.
func (s *AgentService) GetByID(ctx context.Context, id string) (*model.Agent, error) {
	agent, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get agent by id: %w", err)
	}
	return agent, nil
}

// GetByName retrieves an agent by its unique name.
func (s *AgentService) GetByName(ctx context.Context, name string) (*model.Agent, error) {
	agent, err := s.repo.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("get agent by name: %w", err)
	}
	return agent, nil
}

// List retrieves agents based on the provided options.
func (s *AgentService) List(
	ctx context.Context,
	opts model.AgentListOptions,
) ([]*model.Agent, error) {
	agents, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	return agents, nil
}

// Update updates an existing agent.
func (s *AgentService) Update(
	ctx context.Context,
	id string,
	req model.UpdateAgentRequest,
) (*model.Agent, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	agent, err := s.repo.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update agent: %w", err)
	}

	s.invalidateCache(ctx, id)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "agent updated", "id", agent.ID, "name", agent.Name)
	}
	return agent, nil
}

// Delete removes an agent by its ID. Deleting an agent still referenced by
// rules or jobs fails on the foreign key.
func (s *AgentService) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete agent: %w", err)
	}

	if deleted {
		s.invalidateCache(ctx, id)
	}

	if s.logger != nil && deleted {
		s.logger.InfoContext(ctx, "agent deleted", "id", id)
	}
	return deleted, nil
}

// invalidateCache drops the cached record for an agent. Failures are logged
// and otherwise ignored; the cache entry expires on its TTL.
func (s *AgentService) invalidateCache(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateAgent(ctx, id); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "agent cache invalidation failed", "id", id, "error", err)
	}
}
