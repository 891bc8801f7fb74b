package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedlens/feedlens/internal/core"
)

// UpsertSubject creates or refreshes a subject row and returns the stored
// record. An empty displayName never clobbers an existing one.
func (s *Store) UpsertSubject(ctx context.Context, handle, displayName string) (*core.SubjectRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, errors.New("subject handle is required")
	}
	displayName = strings.TrimSpace(displayName)

	now := time.Now().UTC().Unix()
	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO subjects (handle, display_name, collected_at)
		VALUES (?, ?, ?)
		ON CONFLICT(handle) DO UPDATE SET
			display_name = CASE WHEN excluded.display_name != '' THEN excluded.display_name ELSE subjects.display_name END,
			collected_at = excluded.collected_at
	`, handle, displayName, now)
	if err != nil {
		return nil, fmt.Errorf("upsert subject: %w", err)
	}

	return s.GetSubject(ctx, handle)
}

// GetSubject returns a subject by handle, or nil when unknown.
func (s *Store) GetSubject(ctx context.Context, handle string) (*core.SubjectRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	handle = strings.TrimSpace(handle)
	if handle == "" {
		return nil, errors.New("subject handle is required")
	}

	var (
		record      core.SubjectRecord
		displayName sql.NullString
		collectedAt int64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT id, handle, display_name, collected_at
		FROM subjects
		WHERE handle = ?
	`, handle)

	if err := row.Scan(&record.ID, &record.Handle, &displayName, &collectedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch subject: %w", err)
	}

	record.DisplayName = displayName.String
	record.CollectedAt = time.Unix(collectedAt, 0).UTC()
	return &record, nil
}

// ListSubjects returns all known subjects ordered by handle.
func (s *Store) ListSubjects(ctx context.Context) ([]core.SubjectRecord, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	rows, err := s.DB.QueryContext(ctx, `
		SELECT id, handle, display_name, collected_at
		FROM subjects
		ORDER BY handle
	`)
	if err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var records []core.SubjectRecord
	for rows.Next() {
		var (
			record      core.SubjectRecord
			displayName sql.NullString
			collectedAt int64
		)
		if err := rows.Scan(&record.ID, &record.Handle, &displayName, &collectedAt); err != nil {
			return nil, fmt.Errorf("list subjects: %w", err)
		}
		record.DisplayName = displayName.String
		record.CollectedAt = time.Unix(collectedAt, 0).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list subjects: %w", err)
	}

	return records, nil
}
