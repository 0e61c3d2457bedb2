package repository

import (
	"context"
	"testing"
	"time"

	"advocat/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStateRepository(t *testing.T) {
	repo := NewMemoryStateRepository(time.Hour)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	state := &models.VisitorState{VisitorID: "v1", Token: "tok"}
	require.NoError(t, repo.SetState(ctx, state))

	got, err := repo.GetState(ctx, "v1")
	require.NoError(t, err)
	assert.Equal(t, "tok", got.Token)

	got.Token = "mutated"
	again, _ := repo.GetState(ctx, "v1")
	assert.Equal(t, "tok", again.Token, "stored state must not alias callers")

	now = now.Add(2 * time.Hour)
	got, err = repo.GetState(ctx, "v1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repo.SetState(ctx, state))
	require.NoError(t, repo.ClearState(ctx, "v1"))
	got, _ = repo.GetState(ctx, "v1")
	assert.Nil(t, got)
}

func TestMemoryRateLimit(t *testing.T) {
	repo := NewMemoryStateRepository(0)
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	repo.now = func() time.Time { return now }
	ctx := context.Background()

	allowed, _ := repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.True(t, allowed)
	allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.True(t, allowed)
	allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.False(t, allowed)

	allowed, _ = repo.CheckRateLimit(ctx, "other", 2, time.Minute)
	assert.True(t, allowed)

	now = now.Add(61 * time.Second)
	allowed, _ = repo.CheckRateLimit(ctx, "k", 2, time.Minute)
	assert.True(t, allowed)
}
