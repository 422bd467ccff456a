// Package workflowtest provides end-to-end testing utilities for the automaton
// trigger system. The harness wires real repositories and services over a test
// database so workflow tests cover the same paths production runs.
package workflowtest

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/automaton-hq/automaton/config"
	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data"
	"github.com/automaton-hq/automaton/internal/domain/model"
	"github.com/automaton-hq/automaton/internal/service"
	"github.com/automaton-hq/automaton/internal/testutil"
)

// Harness wires repositories and services for end-to-end workflow testing.
type Harness struct {
	t  testutil.TestingTB
	db *sql.DB

	// Repositories
	RuleRepo  *data.RuleRepo
	JobRepo   *data.JobRepo
	AgentRepo *data.AgentRepo

	// Services
	AgentSvc *service.AgentService
	RuleSvc  *service.RuleService
	JobSvc   *service.JobService

	// Optional Redis components
	RedisClient *redis.Client
	Queue       *data.RedisPollQueue
	PollerSvc   *service.PollerService
	ReaperSvc   *service.ReaperService

	// TimeProvider controls the clock seen by repositories and the poller.
	TimeProvider *testutil.TestTimeProvider
}

// Options configures the workflow test harness.
type Options struct {
	// EnableRedis wires the poll queue and poller service against a test Redis.
	EnableRedis bool
	// QueueKey overrides the default poll queue key.
	QueueKey string
	// StartTime seeds the harness time provider. Zero means testutil.TestTime().
	StartTime time.Time
	// PollBatchSize sets the poller batch size. Zero means 100.
	PollBatchSize int
	// OrphanMaxAge sets the reaper orphan age threshold. Zero means one hour.
	OrphanMaxAge time.Duration
}

// New creates a workflow test harness with all components wired up.
func New(t testutil.TestingTB, db *sql.DB, opts Options) *Harness {
	t.Helper()

	if opts.StartTime.IsZero() {
		opts.StartTime = testutil.TestTime()
	}
	if opts.PollBatchSize == 0 {
		opts.PollBatchSize = 100
	}
	if opts.OrphanMaxAge == 0 {
		opts.OrphanMaxAge = time.Hour
	}
	if opts.QueueKey == "" {
		opts.QueueKey = "automaton:test:poll_queue"
	}

	tp := testutil.NewTestTimeProvider(opts.StartTime)

	h := &Harness{
		t:            t,
		db:           db,
		TimeProvider: tp,
		RuleRepo:     data.NewRuleRepoWithTimeProvider(db, tp),
		JobRepo:      data.NewJobRepoWithTimeProvider(db, tp),
		AgentRepo:    data.NewAgentRepoWithTimeProvider(db, tp),
	}

	matcher, err := service.NewMatcherService(service.MatcherServiceOptions{
		Jobs: h.JobRepo,
	})
	if err != nil {
		t.Fatalf("Failed to build matcher service: %v", err)
	}

	h.RuleSvc, err = service.NewRuleService(service.RuleServiceOptions{
		Repos: service.RuleServiceRepos{
			Rules:  h.RuleRepo,
			Jobs:   h.JobRepo,
			Agents: h.AgentRepo,
		},
		Matcher:   matcher,
		Condition: service.NewJMESPathEvaluator(),
	})
	if err != nil {
		t.Fatalf("Failed to build rule service: %v", err)
	}

	h.AgentSvc, err = service.NewAgentService(service.AgentServiceOptions{
		Repo: h.AgentRepo,
	})
	if err != nil {
		t.Fatalf("Failed to build agent service: %v", err)
	}

	h.ReaperSvc, err = service.NewReaperService(service.ReaperServiceOptions{
		Repo: h.JobRepo,
		Config: config.ReaperConfig{
			Interval:     time.Minute,
			OrphanMaxAge: opts.OrphanMaxAge,
			BatchSize:    100,
		},
	})
	if err != nil {
		t.Fatalf("Failed to build reaper service: %v", err)
	}

	jobOpts := service.JobServiceOptions{Repo: h.JobRepo}

	if opts.EnableRedis {
		h.RedisClient = testutil.SetupTestRedis(t)
		h.Queue = data.NewRedisPollQueue(h.RedisClient, opts.QueueKey)
		jobOpts.Queue = h.Queue

		h.PollerSvc, err = service.NewPollerService(service.PollerServiceOptions{
			Polls: h.JobRepo,
			Queue: h.Queue,
			Config: config.PollerConfig{
				Interval:    time.Second,
				BatchSize:   opts.PollBatchSize,
				Concurrency: 2,
				QueueKey:    opts.QueueKey,
			},
			TimeProvider: tp,
		})
		if err != nil {
			t.Fatalf("Failed to build poller service: %v", err)
		}
	}

	h.JobSvc, err = service.NewJobService(jobOpts)
	if err != nil {
		t.Fatalf("Failed to build job service: %v", err)
	}

	return h
}

// CreateAgent registers an agent and fails the test on error.
func (h *Harness) CreateAgent(ctx context.Context, req *model.CreateAgentRequest) *model.Agent {
	h.t.Helper()
	agent, err := h.AgentSvc.Create(ctx, *req)
	if err != nil {
		h.t.Fatalf("Failed to create agent %q: %v", req.Name, err)
	}
	return agent
}

// CreateRule creates a rule and fails the test on error. The returned rule has
// already been matched to a job.
func (h *Harness) CreateRule(ctx context.Context, req *model.CreateRuleRequest) *model.Rule {
	h.t.Helper()
	rule, err := h.RuleSvc.Create(ctx, *req)
	if err != nil {
		h.t.Fatalf("Failed to create rule for owner %q: %v", req.OwnerID, err)
	}
	if rule.JobID == nil {
		h.t.Fatalf("Rule %s was created without a job", rule.ID)
	}
	return rule
}

// JobFor loads the job currently serving the given rule.
func (h *Harness) JobFor(ctx context.Context, rule *model.Rule) *model.Job {
	h.t.Helper()
	if rule.JobID == nil {
		h.t.Fatalf("Rule %s has no job", rule.ID)
	}
	job, err := h.JobRepo.GetByID(ctx, *rule.JobID)
	if err != nil {
		h.t.Fatalf("Failed to load job %s: %v", *rule.JobID, err)
	}
	return job
}

// RequireSharedJob asserts that both rules are served by the same job.
func (h *Harness) RequireSharedJob(a, b *model.Rule) {
	h.t.Helper()
	if a.JobID == nil || b.JobID == nil {
		h.t.Fatalf("Expected both rules to have jobs, got %v and %v", a.JobID, b.JobID)
	}
	if *a.JobID != *b.JobID {
		h.t.Fatalf("Expected rules %s and %s to share a job, got %s and %s",
			a.ID, b.ID, *a.JobID, *b.JobID)
	}
}

// RequireSeparateJobs asserts that the rules are served by different jobs.
func (h *Harness) RequireSeparateJobs(a, b *model.Rule) {
	h.t.Helper()
	if a.JobID == nil || b.JobID == nil {
		h.t.Fatalf("Expected both rules to have jobs, got %v and %v", a.JobID, b.JobID)
	}
	if *a.JobID == *b.JobID {
		h.t.Fatalf("Expected rules %s and %s to have separate jobs, both got %s",
			a.ID, b.ID, *a.JobID)
	}
}

// CountJobs returns the number of job rows in the database.
func (h *Harness) CountJobs(ctx context.Context) int {
	h.t.Helper()
	var count int
	if err := h.db.QueryRowContext(ctx, "SELECT count(*) FROM jobs").Scan(&count); err != nil {
		h.t.Fatalf("Failed to count jobs: %v", err)
	}
	return count
}

// CountOrphanedJobs returns the number of jobs with no attached rules.
func (h *Harness) CountOrphanedJobs(ctx context.Context) int {
	h.t.Helper()
	var count int
	query := "SELECT count(*) FROM jobs WHERE cardinality(rule_ids) = 0"
	if err := h.db.QueryRowContext(ctx, query).Scan(&count); err != nil {
		h.t.Fatalf("Failed to count orphaned jobs: %v", err)
	}
	return count
}

// QueueLen returns the current poll queue depth. Requires EnableRedis.
func (h *Harness) QueueLen(ctx context.Context) int64 {
	h.t.Helper()
	if h.Queue == nil {
		h.t.Fatalf("QueueLen requires EnableRedis")
	}
	n, err := h.Queue.Len(ctx)
	if err != nil {
		h.t.Fatalf("Failed to read queue length: %v", err)
	}
	return n
}

// DrainQueue pops and decodes every poll request currently queued.
// Requires EnableRedis.
func (h *Harness) DrainQueue(ctx context.Context) []model.PollRequest {
	h.t.Helper()
	if h.RedisClient == nil || h.Queue == nil {
		h.t.Fatalf("DrainQueue requires EnableRedis")
	}

	var out []model.PollRequest
	for {
		req, err := h.Queue.Dequeue(ctx, 100*time.Millisecond)
		if err != nil {
			h.t.Fatalf("Failed to dequeue poll request: %v", err)
		}
		if req == nil {
			return out
		}
		out = append(out, *req)
	}
}

// AdvanceTime moves the harness clock forward.
func (h *Harness) AdvanceTime(d time.Duration) {
	h.TimeProvider.AddTime(d)
}

// Cleanup closes any resources the harness opened. The database is owned by
// the caller and left open.
func (h *Harness) Cleanup() {
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// UniqueOwner returns an owner ID unique to the current nanosecond, keeping
// parallel workflow tests from colliding on owner comparisons.
func UniqueOwner(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

var _ core.PollQueue = (*data.RedisPollQueue)(nil)
