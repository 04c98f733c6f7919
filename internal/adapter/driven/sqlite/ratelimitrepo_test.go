package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/gamehub/internal/domain/model"
	"github.com/ericfisherdev/gamehub/internal/domain/port/driven"
)

func TestRateLimitRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepo(db)

	_, err := repo.Get(context.Background(), "10.0.0.1", model.RateActionAuth)
	require.ErrorIs(t, err, driven.ErrNotFound)
}

func TestRateLimitRepo_SaveAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepo(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	c := model.RateLimitCounter{
		IPAddress:    "10.0.0.1",
		Action:       model.RateActionAuth,
		WindowStart:  start,
		RequestCount: 3,
	}
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.Get(ctx, "10.0.0.1", model.RateActionAuth)
	require.NoError(t, err)
	assert.Equal(t, 3, got.RequestCount)
	assert.True(t, start.Equal(got.WindowStart))
	assert.True(t, got.BlockedUntil.IsZero())

	// Actions are counted independently.
	_, err = repo.Get(ctx, "10.0.0.1", model.RateActionAPI)
	require.ErrorIs(t, err, driven.ErrNotFound)
}

func TestRateLimitRepo_SaveOverwrites(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepo(db)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	blocked := start.Add(time.Hour)

	c := model.RateLimitCounter{IPAddress: "10.0.0.1", Action: model.RateActionAPI, WindowStart: start, RequestCount: 1}
	require.NoError(t, repo.Save(ctx, c))

	c.RequestCount = 101
	c.BlockedUntil = blocked
	require.NoError(t, repo.Save(ctx, c))

	got, err := repo.Get(ctx, "10.0.0.1", model.RateActionAPI)
	require.NoError(t, err)
	assert.Equal(t, 101, got.RequestCount)
	assert.True(t, blocked.Equal(got.BlockedUntil))

	c.BlockedUntil = time.Time{}
	require.NoError(t, repo.Save(ctx, c))

	got, err = repo.Get(ctx, "10.0.0.1", model.RateActionAPI)
	require.NoError(t, err)
	assert.True(t, got.BlockedUntil.IsZero())
}

func TestRateLimitRepo_PurgeIdle(t *testing.T) {
	db := setupTestDB(t)
	repo := NewRateLimitRepo(db)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Save(ctx, model.RateLimitCounter{
		IPAddress: "idle", Action: model.RateActionAuth, WindowStart: base, RequestCount: 1,
	}))
	require.NoError(t, repo.Save(ctx, model.RateLimitCounter{
		IPAddress: "blocked", Action: model.RateActionAuth, WindowStart: base, RequestCount: 6,
		BlockedUntil: base.Add(48 * time.Hour),
	}))
	require.NoError(t, repo.Save(ctx, model.RateLimitCounter{
		IPAddress: "recent", Action: model.RateActionAuth, WindowStart: base.Add(23 * time.Hour), RequestCount: 1,
	}))

	n, err := repo.PurgeIdle(ctx, base.Add(12*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = repo.Get(ctx, "idle", model.RateActionAuth)
	require.ErrorIs(t, err, driven.ErrNotFound)
	_, err = repo.Get(ctx, "blocked", model.RateActionAuth)
	require.NoError(t, err)
	_, err = repo.Get(ctx, "recent", model.RateActionAuth)
	require.NoError(t, err)
}
