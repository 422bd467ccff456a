package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/automaton-hq/automaton/internal/core"
	"github.com/automaton-hq/automaton/internal/domain/model"
)

// JobServiceOptions groups dependencies for JobService.
type JobServiceOptions struct {
	Repo   core.JobRepository // Required: job repository
	Queue  core.PollQueue     // Optional: poll queue, for depth inspection
	Logger *slog.Logger       // Optional: structured logger
}

// JobService provides inspection and administration of polling jobs.
// Jobs are created by the matcher and deleted by the reaper; this service
// exposes them read-only plus a manual delete for operators.
type JobService struct {
	repo   core.JobRepository
	queue  core.PollQueue
	logger *slog.Logger
}

// NewJobService constructs a new JobService.
func NewJobService(opts JobServiceOptions) (*JobService, error) {
	if opts.Repo == nil {
		return nil, errors.New("JobRepository is required")
	}

	return &JobService{
		repo:   opts.Repo,
		queue:  opts.Queue,
		logger: opts.Logger,
	}, nil
}

// GetByID retrieves a job by its ID.
func (s *JobService) GetByID(ctx context.Context, id string) (*model.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get job by id: %w", err)
	}
	return job, nil
}

// List retrieves jobs based on the provided options.
func (s *JobService) List(ctx context.Context, opts model.JobListOptions) ([]*model.Job, error) {
	jobs, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job regardless of attached rules. Rules referencing the
// job keep their rule rows; their job link is cleared by the foreign key and
// they are re-matched on their next source update.
func (s *JobService) Delete(ctx context.Context, id string) (bool, error) {
	deleted, err := s.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("delete job: %w", err)
	}

	if s.logger != nil && deleted {
		s.logger.InfoContext(ctx, "job deleted", "id", id)
	}
	return deleted, nil
}

// QueueDepth returns the number of poll requests waiting in the queue.
func (s *JobService) QueueDepth(ctx context.Context) (int64, error) {
	if s.queue == nil {
		return 0, errors.New("poll queue is not configured")
	}

	depth, err := s.queue.Len(ctx)
	if err != nil {
		return 0, fmt.Errorf("poll queue depth: %w", err)
	}
	return depth, nil
}
