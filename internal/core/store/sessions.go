package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/feedlens/feedlens/internal/core"
)

// CreateSession persists a new session record.
func (s *Store) CreateSession(ctx context.Context, session *core.CollectionSession) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if session == nil || strings.TrimSpace(session.ID) == "" {
		return errors.New("session id is required")
	}

	var keywords any
	if len(session.Keywords) > 0 {
		payload, err := json.Marshal(session.Keywords)
		if err != nil {
			return fmt.Errorf("encode session keywords: %w", err)
		}
		keywords = string(payload)
	}

	var customFrom, customTo sql.NullInt64
	if session.CustomRange != nil {
		customFrom = sql.NullInt64{Int64: session.CustomRange.From.UTC().Unix(), Valid: true}
		customTo = sql.NullInt64{Int64: session.CustomRange.To.UTC().Unix(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO sessions (
			id, subject_id, subject, content_filter, keywords, time_range,
			custom_from, custom_to, max_items,
			collected, total_processed, content_filtered, date_filtered, keyword_filtered, duplicates,
			status, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 0, 0, 0, 0, 0, 0, ?, ?)
	`, session.ID, session.SubjectID, session.Subject, string(session.ContentFilter),
		keywords, string(session.TimeRange), customFrom, customTo, session.MaxItems,
		string(session.Status), session.StartedAt.UTC().Unix())
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// UpdateSessionStatus transitions a session and applies any counter, error,
// or completion fields the update carries.
func (s *Store) UpdateSessionStatus(ctx context.Context, id string, status core.SessionStatus, update core.SessionUpdate) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("session id is required")
	}

	set := []string{"status = ?"}
	args := []any{string(status)}

	if update.Counters != nil {
		set = append(set,
			"collected = ?", "total_processed = ?", "content_filtered = ?",
			"date_filtered = ?", "keyword_filtered = ?", "duplicates = ?")
		c := update.Counters
		args = append(args, c.Collected, c.TotalProcessed, c.ContentFiltered,
			c.DateFiltered, c.KeywordFiltered, c.Duplicates)
	}
	if update.ErrorMessage != "" {
		set = append(set, "error_message = ?")
		args = append(args, update.ErrorMessage)
	}
	if update.CompletedAt != nil {
		set = append(set, "completed_at = ?")
		args = append(args, update.CompletedAt.UTC().Unix())
	}

	args = append(args, id)
	result, err := s.DB.ExecContext(ctx,
		fmt.Sprintf("UPDATE sessions SET %s WHERE id = ?", strings.Join(set, ", ")), args...)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// GetSession returns one session by id, or nil when unknown.
func (s *Store) GetSession(ctx context.Context, id string) (*core.CollectionSession, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return nil, errors.New("session id is required")
	}

	row := s.DB.QueryRowContext(ctx, sessionSelect+` WHERE id = ?`, id)
	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

// SessionQuery narrows ListSessions. Zero value lists everything.
type SessionQuery struct {
	Subject string
	Status  core.SessionStatus
	Limit   int
}

// ListSessions returns session records newest first.
func (s *Store) ListSessions(ctx context.Context, q SessionQuery) ([]core.CollectionSession, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		where []string
		args  []any
	)
	if subject := strings.TrimSpace(q.Subject); subject != "" {
		where = append(where, "subject = ?")
		args = append(args, subject)
	}
	if q.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(q.Status))
	}

	query := sessionSelect
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY started_at DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	var sessions []core.CollectionSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *session)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return sessions, nil
}

// LatestRunningSession returns the most recently started running session for
// a subject, or nil when none is in flight.
func (s *Store) LatestRunningSession(ctx context.Context, subjectID int64) (*core.CollectionSession, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	row := s.DB.QueryRowContext(ctx, sessionSelect+`
		WHERE subject_id = ? AND status = ?
		ORDER BY started_at DESC
		LIMIT 1
	`, subjectID, string(core.SessionRunning))

	session, err := scanSession(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return session, nil
}

const sessionSelect = `
	SELECT id, subject_id, subject, content_filter, keywords, time_range,
		custom_from, custom_to, max_items,
		collected, total_processed, content_filtered, date_filtered, keyword_filtered, duplicates,
		status, started_at, completed_at, error_message
	FROM sessions
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (*core.CollectionSession, error) {
	var (
		session      core.CollectionSession
		keywords     sql.NullString
		customFrom   sql.NullInt64
		customTo     sql.NullInt64
		startedAt    int64
		completedAt  sql.NullInt64
		errorMessage sql.NullString
	)

	err := row.Scan(&session.ID, &session.SubjectID, &session.Subject,
		&session.ContentFilter, &keywords, &session.TimeRange,
		&customFrom, &customTo, &session.MaxItems,
		&session.Counters.Collected, &session.Counters.TotalProcessed,
		&session.Counters.ContentFiltered, &session.Counters.DateFiltered,
		&session.Counters.KeywordFiltered, &session.Counters.Duplicates,
		&session.Status, &startedAt, &completedAt, &errorMessage)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &session.Keywords); err != nil {
			return nil, fmt.Errorf("decode session keywords: %w", err)
		}
	}
	if customFrom.Valid && customTo.Valid {
		session.CustomRange = &core.DateRange{
			From: time.Unix(customFrom.Int64, 0).UTC(),
			To:   time.Unix(customTo.Int64, 0).UTC(),
		}
	}
	session.StartedAt = time.Unix(startedAt, 0).UTC()
	if completedAt.Valid {
		value := time.Unix(completedAt.Int64, 0).UTC()
		session.CompletedAt = &value
	}
	session.ErrorMessage = errorMessage.String

	return &session, nil
}
