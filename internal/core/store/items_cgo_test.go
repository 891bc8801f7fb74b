//go:build cgo

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/feedlens/feedlens/internal/core"
)

func testItem(id string, subjectID int64, text string) core.CollectedItem {
	return core.CollectedItem{
		ID:        id,
		SubjectID: subjectID,
		Text:      text,
		CreatedAt: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Engagement: core.Engagement{
			Likes: 3,
		},
		Metadata: map[string]any{"lang": "en"},
	}
}

func TestSubjectUpsert(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	first, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)
	require.NotZero(t, first.ID)
	require.Equal(t, "gopher", first.Handle)
	require.Empty(t, first.DisplayName)

	// A display name refresh keeps the same row.
	second, err := store.UpsertSubject(ctx, "gopher", "Gopher Prime")
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Equal(t, "Gopher Prime", second.DisplayName)

	// A later upsert without a name must not erase the stored one.
	third, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)
	require.Equal(t, "Gopher Prime", third.DisplayName)

	missing, err := store.GetSubject(ctx, "nobody")
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestInsertItemsSkipsDuplicates(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	subject, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)

	batch := []core.CollectedItem{
		testItem("a", subject.ID, "first"),
		testItem("b", subject.ID, "second"),
	}

	inserted, err := store.InsertItems(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 2, inserted)

	// Re-inserting the same ids lands zero rows, without error.
	inserted, err = store.InsertItems(ctx, batch)
	require.NoError(t, err)
	require.Equal(t, 0, inserted)

	exists, err := store.ExistsByID(ctx, "a")
	require.NoError(t, err)
	require.True(t, exists)

	exists, err = store.ExistsByID(ctx, "z")
	require.NoError(t, err)
	require.False(t, exists)

	count, err := store.CountItems(ctx, subject.ID)
	require.NoError(t, err)
	require.Equal(t, 2, count)

	items, err := store.RecentItems(ctx, subject.ID, 10)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, "en", items[0].Metadata["lang"])
}

func TestNearestItemsRanksByCosine(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	subject, err := store.UpsertSubject(ctx, "gopher", "")
	require.NoError(t, err)

	_, err = store.InsertItems(ctx, []core.CollectedItem{
		testItem("close", subject.ID, "about go"),
		testItem("far", subject.ID, "about cooking"),
		testItem("bare", subject.ID, "no embedding"),
	})
	require.NoError(t, err)

	require.NoError(t, store.SetEmbedding(ctx, "close", []float64{1, 0, 0}))
	require.NoError(t, store.SetEmbedding(ctx, "far", []float64{0, 1, 0}))

	scored, err := store.NearestItems(ctx, subject.ID, []float64{0.9, 0.1, 0}, 10)
	require.NoError(t, err)
	require.Len(t, scored, 2, "items without embeddings are skipped")
	require.Equal(t, "close", scored[0].Item.ID)
	require.Greater(t, scored[0].Score, scored[1].Score)

	require.Error(t, store.SetEmbedding(ctx, "unknown", []float64{1}))
}
