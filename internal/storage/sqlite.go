package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver registration.

	"streamwatch/internal/model"
	"streamwatch/migrations"
)

const timeLayout = "2006-01-02T15:04:05Z"

// SQLite implements Store backed by a SQLite database.
type SQLite struct {
	db *sql.DB
	mu sync.Mutex
}

// NewSQLite opens a SQLite database at dsn and runs pending migrations.
func NewSQLite(dsn string) (*SQLite, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// A single connection keeps ":memory:" databases coherent and
	// serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=FULL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	if err := migrations.Run(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLite{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.db.Close()
}

// Load returns the identifiers saved for source.
func (s *SQLite) Load(ctx context.Context, source string) (model.IDSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT item_id FROM last_seen WHERE source = ?`, source,
	)
	if err != nil {
		return nil, fmt.Errorf("query last seen: %w", err)
	}
	defer func() { _ = rows.Close() }()

	ids := model.NewIDSet()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan last seen: %w", err)
		}
		ids.Add(id)
	}
	return ids, rows.Err()
}

// Save replaces the identifiers of source in a single transaction.
// Rows that survive keep their original seen_at.
func (s *SQLite) Save(ctx context.Context, source string, ids model.IDSet) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	existing := model.NewIDSet()
	rows, err := tx.QueryContext(ctx, `SELECT item_id FROM last_seen WHERE source = ?`, source)
	if err != nil {
		return fmt.Errorf("query last seen: %w", err)
	}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return fmt.Errorf("scan last seen: %w", err)
		}
		existing.Add(id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return fmt.Errorf("iterate last seen: %w", err)
	}
	_ = rows.Close()

	for _, id := range existing.Minus(ids).Sorted() {
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM last_seen WHERE source = ? AND item_id = ?`, source, id,
		); err != nil {
			return fmt.Errorf("delete last seen: %w", err)
		}
	}

	now := time.Now().UTC().Format(timeLayout)
	for _, id := range ids.Minus(existing).Sorted() {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO last_seen (source, item_id, seen_at) VALUES (?, ?, ?)`, source, id, now,
		); err != nil {
			return fmt.Errorf("insert last seen: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// SeenAt returns when id was first saved for source.
func (s *SQLite) SeenAt(ctx context.Context, source, id string) (time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRowContext(ctx,
		`SELECT seen_at FROM last_seen WHERE source = ? AND item_id = ?`, source, id,
	).Scan(&raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("query seen_at: %w", err)
	}
	t, err := time.Parse(timeLayout, raw)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse seen_at: %w", err)
	}
	return t, nil
}
