// Package core provides the business logic interfaces for the automaton trigger system.
package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/automaton-hq/automaton/internal/domain/model"
)

// AgentCacheService provides read-through caching for agent records.
// Rule validation resolves the source agent on every create and update;
// caching the record keeps those lookups off Postgres.
type AgentCacheService struct {
	cache  CacheRepository
	agents AgentRepository
	ttl    time.Duration
}

// AgentCacheConfig holds configuration for agent record caching.
type AgentCacheConfig struct {
	TTL time.Duration `json:"ttl"`
}

// AgentCacheServiceOptions bundles dependencies for NewAgentCacheService.
type AgentCacheServiceOptions struct {
	Cache  CacheRepository
	Agents AgentRepository
	Config AgentCacheConfig
}

// DefaultAgentCacheConfig returns an AgentCacheConfig with sensible defaults.
func DefaultAgentCacheConfig() AgentCacheConfig {
	return AgentCacheConfig{
		TTL: 5 * time.Minute,
	}
}

// NewAgentCacheService creates a new AgentCacheService.
func NewAgentCacheService(opts AgentCacheServiceOptions) *AgentCacheService {
	ttl := opts.Config.TTL
	if ttl <= 0 {
		ttl = DefaultAgentCacheConfig().TTL
	}
	return &AgentCacheService{
		cache:  opts.Cache,
		agents: opts.Agents,
		ttl:    ttl,
	}
}

// GetAgent returns the agent with the given ID, from cache when possible.
// Cache misses fall through to the repository and populate the cache.
// A cache read error is not fatal; the repository result is returned.
func (s *AgentCacheService) GetAgent(ctx context.Context, id string) (*model.Agent, error) {
	key := s.agentRecordKey(id)

	if cached, err := s.cache.Get(ctx, key); err == nil && len(cached) > 0 {
		var agent model.Agent
		if unmarshalErr := json.Unmarshal(cached, &agent); unmarshalErr == nil {
			return &agent, nil
		}
		// Stale or corrupt entry; drop it and re-fetch
		_, _ = s.cache.Delete(ctx, key)
	}

	agent, err := s.agents.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, marshalErr := json.Marshal(agent); marshalErr == nil {
		if setErr := s.cache.Set(ctx, key, b, s.ttl); setErr != nil {
			return agent, nil // Cache write failure never fails the lookup
		}
	}

	return agent, nil
}

// InvalidateAgent removes the cached record for an agent.
// Called after agent updates and deletes so rules never validate
// against a stale schema.
func (s *AgentCacheService) InvalidateAgent(ctx context.Context, id string) error {
	if id == "" {
		return nil
	}

	if _, err := s.cache.Delete(ctx, s.agentRecordKey(id)); err != nil {
		return fmt.Errorf("invalidate agent cache: %w", err)
	}
	return nil
}

// agentRecordKey generates a cache key for an agent record.
func (s *AgentCacheService) agentRecordKey(id string) string {
	return "agent:record:" + id
}
