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

// GetPacingState returns the persisted pacing marker for a scope, or nil when
// none is recorded. A scope is the feed host or account the politeness state
// applies to.
func (s *Store) GetPacingState(ctx context.Context, scope string) (*core.PacingState, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scope = strings.TrimSpace(scope)
	if scope == "" {
		return nil, errors.New("scope is required")
	}

	var (
		requestCount int
		windowStart  int64
		backoffUntil sql.NullInt64
		last429At    sql.NullInt64
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT request_count, window_start, backoff_until, last_429_at
		FROM pacing_state
		WHERE scope = ?
	`, scope)

	if err := row.Scan(&requestCount, &windowStart, &backoffUntil, &last429At); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch pacing state: %w", err)
	}

	return buildPacingState(requestCount, windowStart, backoffUntil, last429At), nil
}

// UpdatePacingState persists the pacing marker for a scope.
func (s *Store) UpdatePacingState(ctx context.Context, scope string, state *core.PacingState) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	scope = strings.TrimSpace(scope)
	if scope == "" {
		return errors.New("scope is required")
	}
	if state == nil {
		return errors.New("pacing state is required")
	}

	var backoffUntil sql.NullInt64
	if state.BackoffUntil != nil {
		backoffUntil = sql.NullInt64{Int64: state.BackoffUntil.UTC().Unix(), Valid: true}
	}

	var last429At sql.NullInt64
	if state.Last429At != nil {
		last429At = sql.NullInt64{Int64: state.Last429At.UTC().Unix(), Valid: true}
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO pacing_state (scope, request_count, window_start, backoff_until, last_429_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(scope) DO UPDATE SET
			request_count = excluded.request_count,
			window_start = excluded.window_start,
			backoff_until = excluded.backoff_until,
			last_429_at = excluded.last_429_at
	`, scope, state.RequestCount, state.WindowStart.UTC().Unix(), backoffUntil, last429At)
	if err != nil {
		return fmt.Errorf("store pacing state: %w", err)
	}

	return nil
}

// PacingEntry pairs a scope with its stored state.
type PacingEntry struct {
	Scope string
	State core.PacingState
}

// PacingQuery selects which pacing rows an admin operation touches.
type PacingQuery struct {
	All    bool
	Scope  string
	Prefix string
}

func (q PacingQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Scope) != "" {
		return nil
	}
	if strings.TrimSpace(q.Prefix) != "" {
		return nil
	}
	return errors.New("must specify --all, --scope, or --prefix")
}

func (q PacingQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	if scope := strings.TrimSpace(q.Scope); scope != "" {
		return "WHERE scope = ?", []any{scope}, nil
	}
	prefix := strings.TrimSpace(q.Prefix)
	if prefix == "" {
		return "", nil, errors.New("prefix is required")
	}
	return "WHERE scope LIKE ?", []any{prefix + "%"}, nil
}

// ListPacingStates returns persisted pacing rows matching the query.
func (s *Store) ListPacingStates(ctx context.Context, q PacingQuery) ([]PacingEntry, error) {
	if s == nil || s.DB == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT scope, request_count, window_start, backoff_until, last_429_at
		FROM pacing_state
		%s
		ORDER BY scope
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list pacing state: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []PacingEntry{}
	for rows.Next() {
		var (
			scope        string
			requestCount int
			windowStart  int64
			backoffUntil sql.NullInt64
			last429At    sql.NullInt64
		)
		if err := rows.Scan(&scope, &requestCount, &windowStart, &backoffUntil, &last429At); err != nil {
			return nil, fmt.Errorf("scan pacing state: %w", err)
		}
		entries = append(entries, PacingEntry{
			Scope: scope,
			State: *buildPacingState(requestCount, windowStart, backoffUntil, last429At),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list pacing state: %w", err)
	}

	return entries, nil
}

// ResetPacingStates deletes matching pacing rows and reports how many went.
func (s *Store) ResetPacingStates(ctx context.Context, q PacingQuery) (int64, error) {
	if s == nil || s.DB == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM pacing_state
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset pacing state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset pacing state: %w", err)
	}
	return affected, nil
}

func buildPacingState(requestCount int, windowStart int64, backoffUntil, last429At sql.NullInt64) *core.PacingState {
	state := &core.PacingState{
		RequestCount: requestCount,
		WindowStart:  time.Unix(windowStart, 0).UTC(),
	}
	if backoffUntil.Valid {
		value := time.Unix(backoffUntil.Int64, 0).UTC()
		state.BackoffUntil = &value
	}
	if last429At.Valid {
		value := time.Unix(last429At.Int64, 0).UTC()
		state.Last429At = &value
	}
	return state
}
