package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/domain/params"
)

// MatcherServiceOptions groups dependencies for MatcherService.
type MatcherServiceOptions struct {
	Jobs   core.JobRepository // Required: job repository
	Logger *slog.Logger       // Optional: structured logger
}

// MatcherService resolves the polling job that serves a rule. Rules with
// equivalent sources share one job instead of each spawning their own.
type MatcherService struct {
	jobs   core.JobRepository
	logger *slog.Logger
}

// NewMatcherService constructs a new MatcherService.
func NewMatcherService(opts MatcherServiceOptions) (*MatcherService, error) {
	if opts.Jobs == nil {
		return nil, errors.New("JobRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "matcher_service")
	}

	return &MatcherService{
		jobs:   opts.Jobs,
		logger: logger,
	}, nil
}

// candidatePageSize is how many same-agent jobs each repository page holds.
// The scan keeps paging until the agent's jobs are exhausted, so every
// existing job is considered no matter how many the agent has.
const candidatePageSize = 500

// FindOrCreateJobForRule returns the job that will serve the rule: the first
// existing job for the rule's agent that can also serve it, or a freshly
// created one. A created job starts with an empty rule list; the caller
// attaches the rule afterwards.
//
// When the repository supports per-agent locking the check-and-create sequence
// runs under an advisory lock, so two concurrent calls for the same agent
// cannot both miss an existing job and insert duplicates. Without lock support
// the unserialized path is used as is.
func (s *MatcherService) FindOrCreateJobForRule(
	ctx context.Context,
	rule *model.Rule,
) (*model.Job, error) {
	if rule == nil {
		return nil, errors.New("rule is required")
	}
	if rule.Source.AgentID == "" {
		return nil, errors.New("rule has no source agent")
	}

	locker, ok := s.jobs.(core.JobRepositoryAgentLock)
	if !ok {
		return s.resolve(ctx, s.jobs, rule)
	}

	var job *model.Job
	err := locker.WithAgentLock(ctx, rule.Source.AgentID, func(ctx context.Context, jobs core.JobRepository) error {
		resolved, rerr := s.resolve(ctx, jobs, rule)
		if rerr != nil {
			return rerr
		}
		job = resolved
		return nil
	})
	if err != nil {
		return nil, err
	}
	return job, nil
}

// resolve scans every candidate job page by page and falls back to creation.
// It runs on the repository it is handed; under the agent lock that is the
// lock-bound repository, so all queries share one connection.
func (s *MatcherService) resolve(
	ctx context.Context,
	jobs core.JobRepository,
	rule *model.Rule,
) (*model.Job, error) {
	cursor := core.FindJobsParams{
		SourceAgentID: rule.Source.AgentID,
		Limit:         candidatePageSize,
	}
	for {
		page, err := jobs.FindBySourceAgent(ctx, cursor)
		if err != nil {
			return nil, fmt.Errorf("find candidate jobs: %w", err)
		}

		for _, job := range page {
			if isJobSimilarToRule(job, rule) {
				if s.logger != nil {
					s.logger.InfoContext(ctx, "rule matched to existing job",
						"rule_id", rule.ID, "job_id", job.ID)
				}
				return job, nil
			}
		}

		if len(page) < candidatePageSize {
			break
		}
		last := page[len(page)-1]
		cursor.AfterCreatedAt = last.CreatedAt
		cursor.AfterID = last.ID
	}

	job, err := jobs.Create(ctx, model.NewJob{
		OwnerID:           rule.OwnerID,
		SourceAgentID:     rule.Source.AgentID,
		SourceParameters:  params.Clone(rule.Source.Parameters),
		ExecutionInterval: rule.ExecutionInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("create job: %w", err)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "created job for rule",
			"rule_id", rule.ID, "job_id", job.ID, "agent_id", job.SourceAgentID)
	}
	return job, nil
}

// isJobSimilarToRule reports whether an existing job can also serve the rule.
// The job must poll the same agent on the same interval with structurally
// equal parameters.
//
// The owner comparison is inverted on purpose: a job may serve a rule only
// when their owners DIFFER. This matches the shipped product behavior exactly,
// including its consequence that two rules from the same owner never share a
// job. Change it only together with a data migration for existing job links.
func isJobSimilarToRule(job *model.Job, rule *model.Rule) bool {
	if job == nil || rule == nil {
		return false
	}
	if job.OwnerID == rule.OwnerID {
		return false
	}
	if job.SourceAgentID != rule.Source.AgentID {
		return false
	}
	if job.ExecutionInterval != rule.ExecutionInterval {
		return false
	}
	return params.Equal(job.SourceParameters, rule.Source.Parameters)
}
