// Package reaper provides the adapter that assembles and runs the orphaned
// job reaper.
package reaper

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automaton-hq/automaton/config"
	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/data"
	"github.com/automaton-hq/automaton/internal/observability/statsd"
	"github.com/automaton-hq/automaton/internal/service"
)

// Runner owns a wired ReaperService and drives its cleanup loop.
type Runner struct {
	reaper *service.ReaperService
	logger *slog.Logger
}

// RunnerOptions configures a Runner. Repo overrides the default job
// repository, mainly for tests.
type RunnerOptions struct {
	DB     *sql.DB
	Config config.ReaperConfig
	Logger *slog.Logger

	Repo    core.ReaperRepository
	Metrics statsd.Sink
}

// NewRunner assembles the reaper service from opts.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("database connection is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	repo := opts.Repo
	if repo == nil {
		repo = data.NewJobRepo(opts.DB)
	}

	svc, err := service.NewReaperService(service.ReaperServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  opts.Logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reaper service: %w", err)
	}

	return &Runner{reaper: svc, logger: opts.Logger}, nil
}

// Run executes the cleanup loop until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reaper runner")
	return r.reaper.Run(ctx)
}
