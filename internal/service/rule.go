package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
)

// RuleServiceOptions groups dependencies for RuleService.
type RuleServiceOptions struct {
	Repos      RuleServiceRepos        // Required: repositories
	Matcher    *MatcherService         // Required: job matcher
	Condition  core.ConditionEvaluator // Optional: condition validation
	AgentCache *core.AgentCacheService // Optional: read-through agent lookups
	Logger     *slog.Logger            // Optional: structured logger
}

// RuleServiceRepos groups the repositories RuleService orchestrates.
type RuleServiceRepos struct {
	Rules  core.RuleRepository
	Jobs   core.JobRepository
	Agents core.AgentRepository
}

// RuleService provides business logic for rule operations: persistence plus
// keeping each rule attached to the job that polls for it.
type RuleService struct {
	rules      core.RuleRepository
	jobs       core.JobRepository
	agents     core.AgentRepository
	matcher    *MatcherService
	condition  core.ConditionEvaluator
	agentCache *core.AgentCacheService
	logger     *slog.Logger
}

// NewRuleService constructs a new RuleService.
func NewRuleService(opts RuleServiceOptions) (*RuleService, error) {
	if opts.Repos.Rules == nil {
		return nil, errors.New("RuleRepository is required")
	}
	if opts.Repos.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}
	if opts.Repos.Agents == nil {
		return nil, errors.New("AgentRepository is required")
	}
	if opts.Matcher == nil {
		return nil, errors.New("MatcherService is required")
	}

	if opts.Logger != nil {
		opts.Logger.Debug("RuleService initialized")
	}

	return &RuleService{
		rules:      opts.Repos.Rules,
		jobs:       opts.Repos.Jobs,
		agents:     opts.Repos.Agents,
		matcher:    opts.Matcher,
		condition:  opts.Condition,
		agentCache: opts.AgentCache,
		logger:     opts.Logger,
	}, nil
}

// Create creates a new rule and attaches it to the job that will poll for it.
func (s *RuleService) Create(
	ctx context.Context,
	req model.CreateRuleRequest,
) (*model.Rule, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	if err := s.validateCondition(req.Condition); err != nil {
		return nil, err
	}

	if err := s.requireEnabledAgent(ctx, req.AgentID); err != nil {
		return nil, err
	}

	rule, err := s.rules.Create(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("create rule: %w", err)
	}

	if err := s.attachToJob(ctx, rule); err != nil {
		return nil, err
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rule created",
			"id", rule.ID, "agent_id", rule.Source.AgentID, "job_id", derefOr(rule.JobID, ""))
	}
	return rule, nil
}

// GetByID retrieves a rule by its ID.
func (s *RuleService) GetByID(ctx context.Context, id string) (*model.Rule, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get rule by id: %w", err)
	}
	return rule, nil
}

// List retrieves rules based on the provided options.
func (s *RuleService) List(ctx context.Context, opts model.RuleListOptions) ([]*model.Rule, error) {
	rules, err := s.rules.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	return rules, nil
}

// Update updates an existing rule. If the update changes any field the matcher
// keys on, the rule is detached from its current job and re-matched.
func (s *RuleService) Update(
	ctx context.Context,
	id string,
	req model.UpdateRuleRequest,
) (*model.Rule, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	if req.Condition != nil {
		if err := s.validateCondition(*req.Condition); err != nil {
			return nil, err
		}
	}

	if req.AgentID != nil {
		if err := s.requireEnabledAgent(ctx, *req.AgentID); err != nil {
			return nil, err
		}
	}

	var previousJobID *string
	if req.ChangesSource() {
		current, err := s.rules.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("get rule by id: %w", err)
		}
		previousJobID = current.JobID
	}

	rule, err := s.rules.Update(ctx, id, req)
	if err != nil {
		return nil, fmt.Errorf("update rule: %w", err)
	}

	if req.ChangesSource() {
		if previousJobID != nil {
			if _, err := s.jobs.DetachRule(ctx, *previousJobID, rule.ID); err != nil {
				return nil, fmt.Errorf("detach rule from job: %w", err)
			}
		}
		if err := s.attachToJob(ctx, rule); err != nil {
			return nil, err
		}
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "rule updated", "id", rule.ID)
	}
	return rule, nil
}

// Delete removes a rule, detaching it from its job first. The job itself is
// left in place; the reaper removes it once orphaned.
func (s *RuleService) Delete(ctx context.Context, id string) (bool, error) {
	rule, err := s.rules.GetByID(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get rule by id: %w", err)
	}

	if rule.JobID != nil {
		if _, err := s.jobs.DetachRule(ctx, *rule.JobID, rule.ID); err != nil {
			return false, fmt.Errorf("detach rule from job: %w", err)
		}
	}

	deleted, err := s.rules.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}

	if s.logger != nil && deleted {
		s.logger.InfoContext(ctx, "rule deleted", "id", id)
	}
	return deleted, nil
}

// attachToJob resolves a job via the matcher, attaches the rule, and records
// the link on the rule row.
func (s *RuleService) attachToJob(ctx context.Context, rule *model.Rule) error {
	job, err := s.matcher.FindOrCreateJobForRule(ctx, rule)
	if err != nil {
		return fmt.Errorf("resolve job for rule: %w", err)
	}

	if _, err := s.jobs.AttachRule(ctx, job.ID, rule.ID); err != nil {
		return fmt.Errorf("attach rule to job: %w", err)
	}
	if err := s.rules.SetJobID(ctx, rule.ID, &job.ID); err != nil {
		return fmt.Errorf("record job on rule: %w", err)
	}
	rule.JobID = &job.ID
	return nil
}

// requireEnabledAgent resolves the agent (through the cache when configured)
// and rejects rules targeting disabled agents.
func (s *RuleService) requireEnabledAgent(ctx context.Context, agentID string) error {
	var (
		agent *model.Agent
		err   error
	)
	if s.agentCache != nil {
		agent, err = s.agentCache.GetAgent(ctx, agentID)
	} else {
		agent, err = s.agents.GetByID(ctx, agentID)
	}
	if err != nil {
		return fmt.Errorf("resolve agent: %w", err)
	}
	if !agent.Enabled {
		return fmt.Errorf("agent %s is disabled", agent.Name)
	}
	return nil
}

func (s *RuleService) validateCondition(expr string) error {
	if expr == "" || s.condition == nil {
		return nil
	}
	if err := s.condition.Validate(expr); err != nil {
		return fmt.Errorf("invalid condition: %w", err)
	}
	return nil
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
