package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/feedlens/feedlens/internal/core"
)

// ExistsByID reports whether an item with the upstream id is already stored.
func (s *Store) ExistsByID(ctx context.Context, id string) (bool, error) {
	if s == nil || s.DB == nil {
		return false, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return false, errors.New("item id is required")
	}

	var found int
	row := s.DB.QueryRowContext(ctx, `SELECT 1 FROM items WHERE id = ?`, id)
	if err := row.Scan(&found); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("item existence check: %w", err)
	}
	return true, nil
}

// InsertItems stores a batch of collected items and returns how many rows
// actually landed. Rows whose id already exists are silently skipped; callers
// account for them as duplicates.
func (s *Store) InsertItems(ctx context.Context, items []core.CollectedItem) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(items) == 0 {
		return 0, nil
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin item insert: %w", err)
	}
	defer tx.Rollback() // nolint:errcheck // no-op after commit

	inserted := 0
	for _, item := range items {
		var metadata any
		if len(item.Metadata) > 0 {
			payload, err := json.Marshal(item.Metadata)
			if err != nil {
				return inserted, fmt.Errorf("encode item metadata: %w", err)
			}
			metadata = string(payload)
		}

		result, err := tx.ExecContext(ctx, `
			INSERT INTO items (id, subject_id, text, created_at, is_reshare, is_reply, likes, reposts, replies, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, item.ID, item.SubjectID, item.Text, item.CreatedAt.UTC().Unix(),
			boolValue(item.IsReshare), boolValue(item.IsReply),
			item.Engagement.Likes, item.Engagement.Reposts, item.Engagement.Replies,
			metadata)
		if err != nil {
			return inserted, fmt.Errorf("insert item %s: %w", item.ID, err)
		}

		affected, err := result.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("insert item %s: %w", item.ID, err)
		}
		inserted += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit item insert: %w", err)
	}
	return inserted, nil
}

// CountItems returns the number of stored items for a subject.
func (s *Store) CountItems(ctx context.Context, subjectID int64) (int, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var count int
	row := s.DB.QueryRowContext(ctx, `SELECT COUNT(*) FROM items WHERE subject_id = ?`, subjectID)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return count, nil
}

// RecentItems returns up to limit items for a subject, newest first.
func (s *Store) RecentItems(ctx context.Context, subjectID int64, limit int) ([]core.CollectedItem, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, subject_id, text, created_at, is_reshare, is_reply, likes, reposts, replies, metadata
		FROM items
		WHERE subject_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var items []core.CollectedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// ItemsMissingEmbedding returns up to limit of a subject's items that have no
// stored embedding yet, newest first.
func (s *Store) ItemsMissingEmbedding(ctx context.Context, subjectID int64, limit int) ([]core.CollectedItem, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if limit <= 0 {
		limit = 50
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, subject_id, text, created_at, is_reshare, is_reply, likes, reposts, replies, metadata
		FROM items
		WHERE subject_id = ? AND embedding IS NULL
		ORDER BY created_at DESC
		LIMIT ?
	`, subjectID, limit)
	if err != nil {
		return nil, fmt.Errorf("list unembedded items: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var items []core.CollectedItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list unembedded items: %w", err)
	}
	return items, nil
}

// SetEmbedding attaches an embedding vector to a stored item.
func (s *Store) SetEmbedding(ctx context.Context, id string, vector []float64) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(vector) == 0 {
		return errors.New("embedding vector is required")
	}

	payload, err := json.Marshal(vector)
	if err != nil {
		return fmt.Errorf("encode embedding: %w", err)
	}

	result, err := s.DB.ExecContext(ctx, `UPDATE items SET embedding = ? WHERE id = ?`, string(payload), id)
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("store embedding: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("item %s not found", id)
	}
	return nil
}

// ScoredItem pairs an item with its similarity to a query vector.
type ScoredItem struct {
	Item  core.CollectedItem
	Score float64
}

// NearestItems ranks a subject's embedded items by cosine similarity against
// the query vector. Items without an embedding are skipped. The ranking runs
// in process; the table stays small enough for a full scan per question.
func (s *Store) NearestItems(ctx context.Context, subjectID int64, query []float64, limit int) ([]ScoredItem, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if len(query) == 0 {
		return nil, errors.New("query vector is required")
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, subject_id, text, created_at, is_reshare, is_reply, likes, reposts, replies, metadata, embedding
		FROM items
		WHERE subject_id = ? AND embedding IS NOT NULL
	`, subjectID)
	if err != nil {
		return nil, fmt.Errorf("scan embedded items: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var scored []ScoredItem
	for rows.Next() {
		var (
			item         core.CollectedItem
			createdAt    int64
			isReshare    int
			isReply      int
			metadata     sql.NullString
			embeddingRaw string
		)
		if err := rows.Scan(&item.ID, &item.SubjectID, &item.Text, &createdAt,
			&isReshare, &isReply,
			&item.Engagement.Likes, &item.Engagement.Reposts, &item.Engagement.Replies,
			&metadata, &embeddingRaw); err != nil {
			return nil, fmt.Errorf("scan embedded items: %w", err)
		}
		item.CreatedAt = time.Unix(createdAt, 0).UTC()
		item.IsReshare = isReshare == 1
		item.IsReply = isReply == 1
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &item.Metadata); err != nil {
				return nil, fmt.Errorf("decode item metadata: %w", err)
			}
		}

		var vector []float64
		if err := json.Unmarshal([]byte(embeddingRaw), &vector); err != nil {
			return nil, fmt.Errorf("decode embedding for item %s: %w", item.ID, err)
		}

		score, ok := cosine(query, vector)
		if !ok {
			continue
		}
		scored = append(scored, ScoredItem{Item: item, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("scan embedded items: %w", err)
	}

	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

// cosine returns the cosine similarity of two vectors, or false when the
// dimensions disagree or either vector is zero.
func cosine(a, b []float64) (float64, bool) {
	if len(a) != len(b) || len(a) == 0 {
		return 0, false
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0, false
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), true
}

func scanItem(rows *sql.Rows) (core.CollectedItem, error) {
	var (
		item      core.CollectedItem
		createdAt int64
		isReshare int
		isReply   int
		metadata  sql.NullString
	)
	if err := rows.Scan(&item.ID, &item.SubjectID, &item.Text, &createdAt,
		&isReshare, &isReply,
		&item.Engagement.Likes, &item.Engagement.Reposts, &item.Engagement.Replies,
		&metadata); err != nil {
		return core.CollectedItem{}, fmt.Errorf("scan item: %w", err)
	}
	item.CreatedAt = time.Unix(createdAt, 0).UTC()
	item.IsReshare = isReshare == 1
	item.IsReply = isReply == 1
	if metadata.Valid && metadata.String != "" {
		if err := json.Unmarshal([]byte(metadata.String), &item.Metadata); err != nil {
			return core.CollectedItem{}, fmt.Errorf("decode item metadata: %w", err)
		}
	}
	return item, nil
}

func boolValue(b bool) int {
	if b {
		return 1
	}
	return 0
}
