package data

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/automaton-hq/automaton/internal/testutil"
)

func TestRedisCacheRepo(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	t.Run("round trip with TTL", func(t *testing.T) {
		value := []byte(`{"id":"cache-1","name":"http-agent"}`)

		require.NoError(t, repo.Set(ctx, "agent:record:cache-1", value, 5*time.Minute))

		got, err := repo.Get(ctx, "agent:record:cache-1")
		require.NoError(t, err)
		assert.Equal(t, value, got)

		ttl := client.TTL(ctx, "agent:record:cache-1").Val()
		assert.Positive(t, ttl)
		assert.LessOrEqual(t, ttl, 5*time.Minute)
	})

	t.Run("missing key reads as nil", func(t *testing.T) {
		got, err := repo.Get(ctx, "agent:record:missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete reports presence", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "agent:record:cache-2", []byte("stale"), time.Minute))

		deleted, err := repo.Delete(ctx, "agent:record:cache-2")
		require.NoError(t, err)
		assert.True(t, deleted)

		deleted, err = repo.Delete(ctx, "agent:record:cache-2")
		require.NoError(t, err)
		assert.False(t, deleted)

		got, err := repo.Get(ctx, "agent:record:cache-2")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("exists flips after set", func(t *testing.T) {
		exists, err := repo.Exists(ctx, "agent:record:cache-3")
		require.NoError(t, err)
		assert.False(t, exists)

		require.NoError(t, repo.Set(ctx, "agent:record:cache-3", []byte("cached"), time.Minute))

		exists, err = repo.Exists(ctx, "agent:record:cache-3")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("SetTTL extends a live key but not a missing one", func(t *testing.T) {
		require.NoError(t, repo.Set(ctx, "agent:record:cache-4", []byte("cached"), time.Minute))

		updated, err := repo.SetTTL(ctx, "agent:record:cache-4", 2*time.Minute)
		require.NoError(t, err)
		assert.True(t, updated)

		ttl := client.TTL(ctx, "agent:record:cache-4").Val()
		assert.Greater(t, ttl, time.Minute)
		assert.LessOrEqual(t, ttl, 2*time.Minute)

		updated, err = repo.SetTTL(ctx, "agent:record:missing", time.Minute)
		require.NoError(t, err)
		assert.False(t, updated)
	})

	t.Run("SetIfNotExists acquires then refuses", func(t *testing.T) {
		holderA := []byte("holder-a")

		wasSet, err := repo.SetIfNotExists(ctx, "lock:match:agent-1", holderA, time.Minute)
		require.NoError(t, err)
		assert.True(t, wasSet)

		ttl := client.TTL(ctx, "lock:match:agent-1").Val()
		assert.Positive(t, ttl)

		// A second caller must not steal the lock.
		wasSet, err = repo.SetIfNotExists(ctx, "lock:match:agent-1", []byte("holder-b"), time.Minute)
		require.NoError(t, err)
		assert.False(t, wasSet)

		got, err := repo.Get(ctx, "lock:match:agent-1")
		require.NoError(t, err)
		assert.Equal(t, holderA, got)
	})

	t.Run("health", func(t *testing.T) {
		assert.NoError(t, repo.Health(ctx))
	})
}

func TestRedisCacheRepo_RejectsEmptyKeys(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	// Validation happens before any Redis command is issued.
	client := testutil.SetupTestRedis(t)
	defer client.Close()

	repo := NewRedisCacheRepo(client)
	ctx := context.Background()

	calls := map[string]func() error{
		"Set":            func() error { return repo.Set(ctx, "", []byte("v"), time.Minute) },
		"Get":            func() error { _, err := repo.Get(ctx, ""); return err },
		"Delete":         func() error { _, err := repo.Delete(ctx, ""); return err },
		"Exists":         func() error { _, err := repo.Exists(ctx, ""); return err },
		"SetTTL":         func() error { _, err := repo.SetTTL(ctx, "", time.Minute); return err },
		"SetIfNotExists": func() error { _, err := repo.SetIfNotExists(ctx, "", []byte("v"), time.Minute); return err },
	}
	for name, call := range calls {
		t.Run(name, func(t *testing.T) {
			assert.ErrorContains(t, call(), "key cannot be empty")
		})
	}
}

func TestDefaultRedisConfig(t *testing.T) {
	cfg := DefaultRedisConfig()
	assert.Equal(t, "localhost:6379", cfg.Addr)
	assert.Empty(t, cfg.Password)
	assert.Zero(t, cfg.DB)
}
