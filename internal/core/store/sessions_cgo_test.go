//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core"
)

func TestSessionLifecycle(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	subject, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)

	session := &core.CollectionSession{
		ID:            "sess-1",
		SubjectID:     subject.ID,
		Subject:       subject.Handle,
		ContentFilter: core.ContentOriginals,
		Keywords:      []string{"go", "wasm"},
		TimeRange:     core.RangeWeek,
		MaxItems:      100,
		Status:        core.SessionPending,
		StartedAt:     time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, core.SessionRunning, core.SessionUpdate{}))

	running, err := store.LatestRunningSession(ctx, subject.ID)
	require.NoError(t, err)
	require.NotNil(t, running)
	require.Equal(t, session.ID, running.ID)

	completedAt := session.StartedAt.Add(20 * time.Minute)
	counters := core.SessionCounters{
		Collected:       40,
		TotalProcessed:  55,
		ContentFiltered: 10,
		KeywordFiltered: 5,
		Duplicates:      3,
	}
	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, core.SessionCompleted, core.SessionUpdate{
		Counters:    &counters,
		CompletedAt: &completedAt,
	}))

	stored, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	require.Equal(t, core.SessionCompleted, stored.Status)
	require.Equal(t, counters, stored.Counters)
	require.Equal(t, []string{"go", "wasm"}, stored.Keywords)
	require.NotNil(t, stored.CompletedAt)
	require.Equal(t, completedAt, *stored.CompletedAt)

	none, err := store.LatestRunningSession(ctx, subject.ID)
	require.NoError(t, err)
	require.Nil(t, none)
}

func TestSessionFailureRecordsMessage(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	subject, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)

	session := &core.CollectionSession{
		ID:            "sess-err",
		SubjectID:     subject.ID,
		Subject:       subject.Handle,
		ContentFilter: core.ContentAll,
		TimeRange:     core.RangeAll,
		MaxItems:      10,
		Status:        core.SessionPending,
		StartedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateSession(ctx, session))

	completedAt := time.Now().UTC()
	require.NoError(t, store.UpdateSessionStatus(ctx, session.ID, core.SessionFailed, core.SessionUpdate{
		ErrorMessage: "insert items: disk full",
		CompletedAt:  &completedAt,
	}))

	stored, err := store.GetSession(ctx, session.ID)
	require.NoError(t, err)
	require.Equal(t, core.SessionFailed, stored.Status)
	require.Equal(t, "insert items: disk full", stored.ErrorMessage)
}

func TestListSessionsFilters(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	subject, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)
	other, err := store.UpsertSubject(ctx, "ferris", "")
	require.NoError(t, err)

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	seed := []struct {
		id      string
		subject *core.SubjectRecord
		status  core.SessionStatus
		offset  time.Duration
	}{
		{"s1", subject, core.SessionCompleted, 0},
		{"s2", subject, core.SessionFailed, time.Hour},
		{"s3", other, core.SessionCompleted, 2 * time.Hour},
	}
	for _, row := range seed {
		session := &core.CollectionSession{
			ID:            row.id,
			SubjectID:     row.subject.ID,
			Subject:       row.subject.Handle,
			ContentFilter: core.ContentAll,
			TimeRange:     core.RangeAll,
			MaxItems:      10,
			Status:        core.SessionPending,
			StartedAt:     base.Add(row.offset),
		}
		require.NoError(t, store.CreateSession(ctx, session))
		require.NoError(t, store.UpdateSessionStatus(ctx, row.id, row.status, core.SessionUpdate{}))
	}

	all, err := store.ListSessions(ctx, SessionQuery{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	require.Equal(t, "s3", all[0].ID, "newest first")

	bySubject, err := store.ListSessions(ctx, SessionQuery{Subject: "gopher"})
	require.NoError(t, err)
	require.Len(t, bySubject, 2)

	failed, err := store.ListSessions(ctx, SessionQuery{Status: core.SessionFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	require.Equal(t, "s2", failed[0].ID)

	limited, err := store.ListSessions(ctx, SessionQuery{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)

	require.Error(t, store.UpdateSessionStatus(ctx, "missing", core.SessionFailed, core.SessionUpdate{}))
}
