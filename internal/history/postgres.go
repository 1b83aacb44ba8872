package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/ppiankov/consentwatch/internal/model"
)

// Postgres stores reports in a shared database. Appends from several
// processes are serialized per domain with an advisory transaction lock.
type Postgres struct {
	pool     *pgxpool.Pool
	capacity int
	locks    domainLocks
}

// OpenPostgres connects, pings and migrates.
func OpenPostgres(ctx context.Context, dsn string, capacity int) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("history: postgres backend requires a dsn")
	}
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("history: parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("history: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("history: ping: %w", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	err = migrate(ctx, db, goose.DialectPostgres, "migrations/postgres")
	db.Close()
	if err != nil {
		pool.Close()
		return nil, err
	}

	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Postgres{pool: pool, capacity: capacity}, nil
}

func (p *Postgres) Append(ctx context.Context, r *model.Report) (err error) {
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

	unlock := p.locks.lock(r.Domain)
	defer unlock()

	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("history: begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(r.Domain)); err != nil {
		return fmt.Errorf("history: lock domain: %w", err)
	}
	if _, err = tx.Exec(ctx, `
		INSERT INTO reports (id, domain, digest, risk_level, body)
		VALUES ($1, $2, $3, $4, $5)
	`, r.ID, string(r.Domain), e.Digest, string(r.Summary.RiskLevel), body); err != nil {
		return fmt.Errorf("history: insert: %w", err)
	}
	if _, err = tx.Exec(ctx, `
		DELETE FROM reports
		WHERE domain = $1 AND seq NOT IN (
			SELECT seq FROM reports WHERE domain = $1 ORDER BY seq DESC LIMIT $2
		)
	`, string(r.Domain), p.capacity); err != nil {
		return fmt.Errorf("history: evict: %w", err)
	}
	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("history: commit: %w", err)
	}
	return nil
}

func (p *Postgres) List(ctx context.Context, domain model.Domain) ([]Entry, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT digest, body FROM reports WHERE domain = $1 ORDER BY seq ASC`, string(domain))
	if err != nil {
		return nil, fmt.Errorf("history: query: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var digest string
		var body []byte
		if err := rows.Scan(&digest, &body); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		var r model.Report
		if err := json.Unmarshal(body, &r); err != nil {
			return nil, fmt.Errorf("history: decode report: %w", err)
		}
		entries = append(entries, Entry{Digest: digest, Report: &r})
	}
	return entries, rows.Err()
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// Reset removes every stored report. Used by tests against a shared database.
func (p *Postgres) Reset(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM reports`)
	return err
}
