// Package service provides business logic services for the automaton trigger system.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/automaton-hq/automaton/config"
	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data"
	"github.com/automaton-hq/automaton/internal/domain/model"
	obserrors "github.com/automaton-hq/automaton/internal/observability/errors"
	"github.com/automaton-hq/automaton/internal/observability/metrics"
	"github.com/automaton-hq/automaton/internal/observability/statsd"
)

// PollerServiceOptions holds the dependencies for creating a PollerService.
type PollerServiceOptions struct {
	Polls        core.PollRepository // Required: due-job selection
	Queue        core.PollQueue      // Required: poll request queue
	Config       config.PollerConfig // Required: poller configuration
	TimeProvider data.TimeProvider   // Optional: defaults to real time
	Logger       *slog.Logger        // Optional: structured logger
	Metrics      statsd.Sink         // Optional: metrics sink (StatsD-compatible)
}

// PollerService dispatches due jobs to agent workers.
// Each tick claims a batch of jobs whose execution interval has elapsed and
// pushes one poll request per job onto the queue. Each poll request carries
// the job's source and the IDs of every rule it serves, so a single agent
// call fans out to all attached rules.
// Safe under concurrent replicas: due-job selection locks rows with SKIP LOCKED.
type PollerService struct {
	polls        core.PollRepository
	queue        core.PollQueue
	cfg          config.PollerConfig
	timeProvider data.TimeProvider
	logger       *slog.Logger
	metrics      statsd.Sink
}

// NewPollerService creates a new PollerService with the given dependencies.
func NewPollerService(opts PollerServiceOptions) (*PollerService, error) {
	if opts.Polls == nil {
		return nil, errors.New("PollRepository is required")
	}
	if opts.Queue == nil {
		return nil, errors.New("PollQueue is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "poller_service")
	}

	return &PollerService{
		polls:        opts.Polls,
		queue:        opts.Queue,
		cfg:          opts.Config,
		timeProvider: opts.TimeProvider,
		logger:       logger,
		metrics:      opts.Metrics,
	}, nil
}

// Tick claims due jobs and enqueues a poll request for each.
// Returns the number of poll requests enqueued.
func (s *PollerService) Tick(ctx context.Context) (int, error) {
	start := time.Now()
	now := s.timeProvider.Now()

	due, err := s.polls.FindDuePolls(ctx, core.FindDuePollsParams{
		Now:       now,
		BatchSize: s.cfg.BatchSize,
	})
	if err != nil {
		s.emitTickMetrics(tickMetrics{Err: err, Elapsed: time.Since(start)})
		return 0, fmt.Errorf("find due polls: %w", err)
	}

	enqueued, err := s.enqueueBatch(ctx, due, now)

	s.emitTickMetrics(tickMetrics{
		Due:      len(due),
		Enqueued: enqueued,
		Err:      suppressContextCancellation(err),
		Elapsed:  time.Since(start),
	})

	if err != nil {
		return enqueued, err
	}

	if enqueued > 0 && s.logger != nil {
		s.logger.InfoContext(ctx, "dispatched due jobs", "count", enqueued)
	}

	return enqueued, nil
}

// enqueueBatch pushes one poll request per job, fanning out across workers.
// Jobs already stamped as polled are not retried within the tick; a failed
// enqueue is retried naturally on the job's next due interval.
func (s *PollerService) enqueueBatch(ctx context.Context, due []*model.Job, now time.Time) (int, error) {
	if len(due) == 0 {
		return 0, nil
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	results := make([]bool, len(due))
	for i, job := range due {
		i, job := i, job
		g.Go(func() error {
			req := model.PollRequest{
				JobID:            job.ID,
				SourceAgentID:    job.SourceAgentID,
				SourceParameters: job.SourceParameters,
				RuleIDs:          job.RuleIDs,
				RequestedAt:      now,
			}
			if err := s.queue.Enqueue(ctx, req); err != nil {
				return fmt.Errorf("enqueue poll for job %s: %w", job.ID, err)
			}
			results[i] = true
			return nil
		})
	}

	err := g.Wait()

	enqueued := 0
	for _, ok := range results {
		if ok {
			enqueued++
		}
	}
	return enqueued, err
}

type tickMetrics struct {
	Due      int
	Enqueued int
	Err      error
	Elapsed  time.Duration
}

func (s *PollerService) emitTickMetrics(m tickMetrics) {
	if s.metrics == nil {
		return
	}

	result := metrics.ResultSuccess
	if m.Err != nil {
		result = metrics.ResultError
	} else if m.Enqueued == 0 {
		result = metrics.ResultNoop
	}

	tags := map[string]string{
		"result": result,
	}

	if m.Err != nil {
		if class := obserrors.Classify(m.Err); class != "" {
			tags["error_class"] = class
		}
	}

	s.metrics.Count("poller.tick", 1, tags)

	if m.Elapsed > 0 {
		s.metrics.Timing("poller.tick_duration", m.Elapsed, metrics.CloneTags(tags))
	}

	if m.Enqueued > 0 {
		s.metrics.Count("poller.polls_enqueued", int64(m.Enqueued), metrics.CloneTags(tags))
	}

	if m.Err == nil {
		s.metrics.Gauge("poller.last_success_epoch", float64(time.Now().Unix()), nil)
	}
}
