// Package poller provides adapters for running the poll dispatch loop.
package poller

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/automaton-hq/automaton/config"
	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data"
	"github.com/automaton-hq/automaton/internal/observability/statsd"
	"github.com/automaton-hq/automaton/internal/service"
)

// Runner provides a simple adapter to run the poller loop.
// It constructs the poller service and runs a tick loop at the
// configured interval.
type Runner struct {
	poller   *service.PollerService
	interval time.Duration
	logger   *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB     *sql.DB
	Queue  core.PollQueue
	Config config.PollerConfig
	Logger *slog.Logger

	// Optional dependency injections for testing/decoupling
	Polls        core.PollRepository
	TimeProvider data.TimeProvider
	Metrics      statsd.Sink
}

// NewRunner creates a new poller runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	poller, err := wirePollerService(opts)
	if err != nil {
		return nil, fmt.Errorf("wire poller service: %w", err)
	}

	return &Runner{
		poller:   poller,
		interval: opts.Config.Interval,
		logger:   opts.Logger,
	}, nil
}

// validateRunnerOptions validates and sets defaults for RunnerOptions.
func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Polls == nil {
		return errors.New("database connection is required")
	}
	if opts.Queue == nil {
		return errors.New("poll queue is required")
	}
	if opts.Config.Interval <= 0 {
		opts.Config.Interval = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return nil
}

// wirePollerService wires up all dependencies for the poller service.
func wirePollerService(opts RunnerOptions) (*service.PollerService, error) {
	var polls core.PollRepository
	if opts.Polls != nil {
		polls = opts.Polls
	} else {
		polls = data.NewJobRepo(opts.DB)
	}

	return service.NewPollerService(service.PollerServiceOptions{
		Polls:        polls,
		Queue:        opts.Queue,
		Config:       opts.Config,
		TimeProvider: opts.TimeProvider,
		Logger:       opts.Logger,
		Metrics:      opts.Metrics,
	})
}

// Run starts the poller loop and runs until the context is cancelled.
// It calls Tick() at the configured interval and logs the results.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting poller runner", "interval", r.interval)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "poller runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case <-ticker.C:
			enqueued, err := r.poller.Tick(ctx)
			if err != nil {
				// Continue running; the next tick retries
				r.logger.ErrorContext(ctx, "poller tick failed", "error", err)
			} else if enqueued > 0 {
				r.logger.InfoContext(ctx, "poll requests enqueued", "count", enqueued)
			}
		}
	}
}
