//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core"
)

func TestPacingStateRoundTrip(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	missing, err := store.GetPacingState(ctx, "feed.example.com")
	require.NoError(t, err)
	require.Nil(t, missing)

	backoffUntil := time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC)
	last429 := backoffUntil.Add(-10 * time.Minute)
	state := &core.PacingState{
		RequestCount: 42,
		WindowStart:  time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		BackoffUntil: &backoffUntil,
		Last429At:    &last429,
	}
	require.NoError(t, store.UpdatePacingState(ctx, "feed.example.com", state))

	stored, err := store.GetPacingState(ctx, "feed.example.com")
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, 42, stored.RequestCount)
	require.Equal(t, state.WindowStart, stored.WindowStart)
	require.NotNil(t, stored.BackoffUntil)
	require.Equal(t, backoffUntil, *stored.BackoffUntil)
	require.NotNil(t, stored.Last429At)

	// Clearing the backoff marker persists the nulls.
	state.BackoffUntil = nil
	state.Last429At = nil
	require.NoError(t, store.UpdatePacingState(ctx, "feed.example.com", state))

	stored, err = store.GetPacingState(ctx, "feed.example.com")
	require.NoError(t, err)
	require.Nil(t, stored.BackoffUntil)
	require.Nil(t, stored.Last429At)
}

func TestPacingAdminQueries(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	for _, scope := range []string{"feed.example.com", "feed.example.org", "other.net"} {
		require.NoError(t, store.UpdatePacingState(ctx, scope, &core.PacingState{WindowStart: now}))
	}

	all, err := store.ListPacingStates(ctx, PacingQuery{All: true})
	require.NoError(t, err)
	require.Len(t, all, 3)

	byPrefix, err := store.ListPacingStates(ctx, PacingQuery{Prefix: "feed."})
	require.NoError(t, err)
	require.Len(t, byPrefix, 2)

	_, err = store.ListPacingStates(ctx, PacingQuery{})
	require.Error(t, err, "empty query must be rejected")

	removed, err := store.ResetPacingStates(ctx, PacingQuery{Scope: "other.net"})
	require.NoError(t, err)
	require.Equal(t, int64(1), removed)

	remaining, err := store.ListPacingStates(ctx, PacingQuery{All: true})
	require.NoError(t, err)
	require.Len(t, remaining, 2)
}
