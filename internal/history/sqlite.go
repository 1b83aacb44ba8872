package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"

	"github.com/ppiankov/consentwatch/internal/model"
)

// SQLite stores reports in a single-file database.
type SQLite struct {
	db       *sql.DB
	capacity int
	locks    domainLocks
}

// OpenSQLite opens (or creates) the database at path and migrates it.
func OpenSQLite(ctx context.Context, path string, capacity int) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("history: sqlite backend requires a path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open sqlite: %w", err)
	}
	// One writer at a time; sqlite serializes anyway and this avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := migrate(ctx, db, goose.DialectSQLite3, "migrations/sqlite"); err != nil {
		db.Close()
		return nil, err
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &SQLite{db: db, capacity: capacity}, nil
}

func (s *SQLite) Append(ctx context.Context, r *model.Report) error {
	if err := validate(r); err != nil {
		return err
	}
	e, err := NewEntry(r)
	if err != nil {
		return err
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("history: marshal report: %w", err)
	}

	unlock := s.locks.lock(r.Domain)
	defer unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO reports (id, domain, digest, risk_level, body, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		r.ID, string(r.Domain), e.Digest, string(r.Summary.RiskLevel), string(body),
		time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reports
		WHERE domain = ? AND seq NOT IN (
			SELECT seq FROM reports WHERE domain = ? ORDER BY seq DESC LIMIT ?
		)`, string(r.Domain), string(r.Domain), s.capacity,
	); err != nil {
		return fmt.Errorf("history: evict: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

func (s *SQLite) List(ctx context.Context, domain model.Domain) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT digest, body FROM reports WHERE domain = ? ORDER BY seq ASC`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var digest, body string
		if err := rows.Scan(&digest, &body); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		var r model.Report
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, fmt.Errorf("history: decode report: %w", err)
		}
		entries = append(entries, Entry{Digest: digest, Report: &r})
	}
	return entries, rows.Err()
}

func (s *SQLite) Close() error { return s.db.Close() }
