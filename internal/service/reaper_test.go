package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automaton-hq/automaton/config"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	mu          sync.Mutex
	calls       int
	batchCounts []int64
	cutoffs     []time.Time
	batchSizes  []int
	err         error
}

func (m *mockReaperRepo) DeleteOrphanedJobs(
	_ context.Context,
	cutoff time.Time,
	batchSize int,
) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls++
	m.cutoffs = append(m.cutoffs, cutoff)
	m.batchSizes = append(m.batchSizes, batchSize)

	if m.err != nil {
		return 0, m.err
	}
	if m.calls <= len(m.batchCounts) {
		return m.batchCounts[m.calls-1], nil
	}
	return 0, nil
}

func newTestReaperService(t *testing.T, repo *mockReaperRepo) *ReaperService {
	t.Helper()

	svc, err := NewReaperService(ReaperServiceOptions{
		Repo: repo,
		Config: config.ReaperConfig{
			Interval:     time.Minute,
			OrphanMaxAge: time.Hour,
			BatchSize:    100,
		},
	})
	require.NoError(t, err)
	return svc
}

func TestNewReaperService_RequiresRepo(t *testing.T) {
	_, err := NewReaperService(ReaperServiceOptions{})
	require.Error(t, err)
}

func TestReaperService_RunCleanup_BatchesUntilExhausted(t *testing.T) {
	repo := &mockReaperRepo{batchCounts: []int64{100, 100, 37}}
	svc := newTestReaperService(t, repo)

	err := svc.runCleanup(context.Background())
	require.NoError(t, err)

	// Three productive batches plus the terminating zero batch.
	assert.Equal(t, 4, repo.calls)
	for _, size := range repo.batchSizes {
		assert.Equal(t, 100, size)
	}
}

func TestReaperService_RunCleanup_CutoffHonorsOrphanMaxAge(t *testing.T) {
	repo := &mockReaperRepo{}
	svc := newTestReaperService(t, repo)

	before := time.Now().Add(-time.Hour)
	err := svc.runCleanup(context.Background())
	after := time.Now().Add(-time.Hour)
	require.NoError(t, err)

	require.Len(t, repo.cutoffs, 1)
	cutoff := repo.cutoffs[0]
	assert.False(t, cutoff.Before(before))
	assert.False(t, cutoff.After(after))
}

func TestReaperService_RunCleanup_ErrorPropagates(t *testing.T) {
	repoErr := errors.New("deadlock detected")
	repo := &mockReaperRepo{err: repoErr}
	svc := newTestReaperService(t, repo)

	err := svc.runCleanup(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, repoErr)
}

func TestReaperService_RunCleanup_ContextCancellation(t *testing.T) {
	repo := &mockReaperRepo{err: context.Canceled}
	svc := newTestReaperService(t, repo)

	err := svc.runCleanup(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReaperService_Run_StopsOnContextCancel(t *testing.T) {
	repo := &mockReaperRepo{}
	svc := newTestReaperService(t, repo)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() {
		done <- svc.Run(ctx)
	}()

	// Give the initial cleanup a moment, then shut down.
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("reaper did not stop after context cancellation")
	}
}

func TestIsContextCancellation(t *testing.T) {
	assert.False(t, isContextCancellation(nil))
	assert.False(t, isContextCancellation(errors.New("boom")))
	assert.True(t, isContextCancellation(context.Canceled))
	assert.True(t, isContextCancellation(context.DeadlineExceeded))
	assert.True(t, isContextCancellation(errors.Join(errors.New("wrap"), context.Canceled)))
}

func TestSuppressContextCancellation(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, err, suppressContextCancellation(err))
	assert.NoError(t, suppressContextCancellation(context.Canceled))
	assert.NoError(t, suppressContextCancellation(nil))
}
