package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS subjects (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		handle TEXT NOT NULL UNIQUE,
		display_name TEXT,
		collected_at INTEGER NOT NULL
	);`,
	`CREATE TABLE IF NOT EXISTS items (
		id TEXT PRIMARY KEY,
		subject_id INTEGER NOT NULL REFERENCES subjects(id),
		text TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		is_reshare INTEGER NOT NULL DEFAULT 0,
		is_reply INTEGER NOT NULL DEFAULT 0,
		likes INTEGER NOT NULL DEFAULT 0,
		reposts INTEGER NOT NULL DEFAULT 0,
		replies INTEGER NOT NULL DEFAULT 0,
		metadata TEXT,
		embedding TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_items_subject ON items(subject_id, created_at);`,
	`CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		subject_id INTEGER NOT NULL REFERENCES subjects(id),
		subject TEXT NOT NULL,
		content_filter TEXT NOT NULL,
		keywords TEXT,
		time_range TEXT NOT NULL,
		custom_from INTEGER,
		custom_to INTEGER,
		max_items INTEGER NOT NULL,
		collected INTEGER NOT NULL DEFAULT 0,
		total_processed INTEGER NOT NULL DEFAULT 0,
		content_filtered INTEGER NOT NULL DEFAULT 0,
		date_filtered INTEGER NOT NULL DEFAULT 0,
		keyword_filtered INTEGER NOT NULL DEFAULT 0,
		duplicates INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		completed_at INTEGER,
		error_message TEXT
	);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_subject ON sessions(subject_id, started_at);`,
	`CREATE INDEX IF NOT EXISTS idx_sessions_status ON sessions(status);`,
	`CREATE TABLE IF NOT EXISTS pacing_state (
		scope TEXT PRIMARY KEY,
		request_count INTEGER NOT NULL DEFAULT 0,
		window_start INTEGER NOT NULL,
		backoff_until INTEGER,
		last_429_at INTEGER
	);`,
}

// Migrate ensures the required database tables exist.
func (s *Store) Migrate(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("store is not initialized")
	}

	if ctx == nil {
		ctx = context.Background()
	}

	for _, stmt := range schemaStatements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store migration failed: %w", err)
		}
	}

	if err := s.ensureColumn(ctx, "items", "embedding", "TEXT"); err != nil {
		return err
	}

	return nil
}

func (s *Store) ensureColumn(ctx context.Context, table, column, columnDef string) error {
	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return fmt.Errorf("inspect %s schema: %w", table, err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup on SQL rows

	for rows.Next() {
		var (
			cid     int
			name    string
			colType string
			notNull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dflt, &pk); err != nil {
			return fmt.Errorf("inspect %s columns: %w", table, err)
		}
		if name == column {
			return nil
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("inspect %s columns: %w", table, err)
	}

	if _, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, columnDef)); err != nil {
		return fmt.Errorf("add %s.%s column: %w", table, column, err)
	}

	return nil
}
