package core

import (
	"context"
	"time"

	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/domain/params"
)

// This file contains repository interface definitions (ports in hexagonal architecture).
// These interfaces define the contracts between the service layer and data layer.
// Service implementations should depend on these interfaces, not concrete implementations.

// RuleRepository defines the interface for rule data operations.
type RuleRepository interface {
	Create(ctx context.Context, req *model.CreateRuleRequest) (*model.Rule, error)
	GetByID(ctx context.Context, id string) (*model.Rule, error)
	List(ctx context.Context, opts model.RuleListOptions) ([]*model.Rule, error)
	Update(ctx context.Context, id string, req model.UpdateRuleRequest) (*model.Rule, error)
	Delete(ctx context.Context, id string) (bool, error)
	SetJobID(ctx context.Context, ruleID string, jobID *string) error
}

// FindJobsParams selects one page of an agent's jobs in creation order.
// AfterCreatedAt/AfterID form a keyset cursor; zero values start from the
// beginning. Callers paging through all jobs pass the last row of the
// previous page as the cursor.
type FindJobsParams struct {
	SourceAgentID  string
	Limit          int
	AfterCreatedAt time.Time
	AfterID        string
}

// JobRepository defines the interface for polling job data operations.
type JobRepository interface {
	Create(ctx context.Context, spec model.NewJob) (*model.Job, error)
	GetByID(ctx context.Context, id string) (*model.Job, error)
	// FindBySourceAgent returns one page of the agent's jobs in creation
	// order, starting after the params cursor.
	FindBySourceAgent(ctx context.Context, params FindJobsParams) ([]*model.Job, error)
	AttachRule(ctx context.Context, jobID, ruleID string) (*model.Job, error)
	DetachRule(ctx context.Context, jobID, ruleID string) (*model.Job, error)
	List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// JobRepositoryAgentLock is an optional extension for repositories that can
// serialize matching per agent. Fn runs while the lock is held and receives a
// repository bound to the lock's own connection, so the locked body never
// waits on a second pool connection. Work done through that repository
// commits with the lock transaction and rolls back when fn errors. Callers
// block until the lock is granted or ctx is done.
type JobRepositoryAgentLock interface {
	WithAgentLock(ctx context.Context, agentID string, fn func(ctx context.Context, jobs JobRepository) error) error
}

// FindDuePollsParams groups parameters for PollRepository.FindDuePolls.
type FindDuePollsParams struct {
	Now       time.Time
	BatchSize int
}

// PollRepository defines the interface for selecting and stamping due jobs.
type PollRepository interface {
	// FindDuePolls returns jobs whose interval has elapsed since last_polled_at,
	// marking them as polled. Rows are locked with SKIP LOCKED so concurrent
	// pollers never select the same job.
	FindDuePolls(ctx context.Context, params FindDuePollsParams) ([]*model.Job, error)
}

// ReaperRepository defines the interface for job cleanup operations.
type ReaperRepository interface {
	// DeleteOrphanedJobs deletes jobs whose rule list is empty and that were
	// last updated before cutoff. Processes up to batchSize jobs per call.
	// Returns the number of jobs deleted.
	DeleteOrphanedJobs(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
}

// AgentRepository defines the interface for agent registry operations.
type AgentRepository interface {
	Create(ctx context.Context, req *model.CreateAgentRequest) (*model.Agent, error)
	GetByID(ctx context.Context, id string) (*model.Agent, error)
	GetByName(ctx context.Context, name string) (*model.Agent, error)
	List(ctx context.Context, opts model.AgentListOptions) ([]*model.Agent, error)
	Update(ctx context.Context, id string, req model.UpdateAgentRequest) (*model.Agent, error)
	Delete(ctx context.Context, id string) (bool, error)
}

// PollQueue defines the interface for handing poll requests to agent workers.
type PollQueue interface {
	Enqueue(ctx context.Context, req model.PollRequest) error
	Len(ctx context.Context) (int64, error)
}

// CacheRepository defines the interface for cache operations.
type CacheRepository interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
	SetIfNotExists(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
}

// ConditionEvaluator validates rule conditions and applies them to polled
// events.
type ConditionEvaluator interface {
	Validate(expression string) error
	Evaluate(expression string, event params.Map) (bool, error)
}
