// Package history keeps a bounded, per-domain rolling log of reports.
// Every backend guarantees that after Append a domain holds at most
// Capacity entries and that eviction drops the oldest entry first.
package history

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gowebpki/jcs"

	"github.com/ppiankov/consentwatch/internal/model"
)

// DefaultCapacity is the per-domain entry limit.
const DefaultCapacity = 50

// Entry is one persisted report and the digest of its canonical JSON.
type Entry struct {
	Digest string        `json:"digest"`
	Report *model.Report `json:"report"`
}

// Store is a bounded FIFO log of reports keyed by domain.
type Store interface {
	// Append adds r to the log of r.Domain and evicts the oldest entries
	// beyond capacity in the same critical section.
	Append(ctx context.Context, r *model.Report) error
	// List returns the entries of domain, oldest first.
	List(ctx context.Context, domain model.Domain) ([]Entry, error)
	Close() error
}

// Options selects and configures a backend.
type Options struct {
	Backend  string `yaml:"backend"  json:"backend"` // memory, jsonl, sqlite, postgres
	Path     string `yaml:"path"     json:"path,omitempty"`
	DSN      string `yaml:"dsn"      json:"dsn,omitempty"`
	Capacity int    `yaml:"capacity" json:"capacity,omitempty"`
}

// Open returns the backend named by opts.Backend. An empty backend is memory.
func Open(ctx context.Context, opts Options) (Store, error) {
	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	switch opts.Backend {
	case "", "memory":
		return NewMemory(capacity), nil
	case "jsonl":
		return OpenJSONL(opts.Path, capacity)
	case "sqlite":
		return OpenSQLite(ctx, opts.Path, capacity)
	case "postgres":
		return OpenPostgres(ctx, opts.DSN, capacity)
	default:
		return nil, fmt.Errorf("unknown history backend %q", opts.Backend)
	}
}

// NewEntry computes the digest of r.
func NewEntry(r *model.Report) (Entry, error) {
	d, err := Digest(r)
	if err != nil {
		return Entry{}, err
	}
	return Entry{Digest: d, Report: r}, nil
}

// Digest returns "sha256:<hex>" of the RFC 8785 canonical JSON of r.
func Digest(r *model.Report) (string, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return "", fmt.Errorf("history: marshal report: %w", err)
	}
	canonical, err := jcs.Transform(raw)
	if err != nil {
		return "", fmt.Errorf("history: canonicalize report: %w", err)
	}
	sum := sha256.Sum256(canonical)
	return "sha256:" + hex.EncodeToString(sum[:]), nil
}

// domainLocks hands out one mutex per domain.
type domainLocks struct {
	mu    sync.Mutex
	locks map[model.Domain]*sync.Mutex
}

func (d *domainLocks) lock(domain model.Domain) func() {
	d.mu.Lock()
	if d.locks == nil {
		d.locks = make(map[model.Domain]*sync.Mutex)
	}
	m, ok := d.locks[domain]
	if !ok {
		m = &sync.Mutex{}
		d.locks[domain] = m
	}
	d.mu.Unlock()

	m.Lock()
	return m.Unlock
}

func validate(r *model.Report) error {
	if r == nil {
		return fmt.Errorf("history: nil report")
	}
	// Stores key logs by the exact value, so "Privacy" is not "privacy".
	if d, ok := model.ParseDomain(string(r.Domain)); !ok || d != r.Domain {
		return fmt.Errorf("history: unknown domain %q", r.Domain)
	}
	return nil
}

// trim keeps the newest capacity entries.
func trim(entries []Entry, capacity int) []Entry {
	if len(entries) <= capacity {
		return entries
	}
	return append([]Entry(nil), entries[len(entries)-capacity:]...)
}
