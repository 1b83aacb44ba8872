package history

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ppiankov/consentwatch/internal/model"
)

// JSONL keeps one <domain>.jsonl file per domain under a directory.
// Each append rewrites the file through a temp file and rename, so readers
// never observe a log longer than capacity.
type JSONL struct {
	dir      string
	capacity int
	locks    domainLocks
}

// OpenJSONL creates dir if needed.
func OpenJSONL(dir string, capacity int) (*JSONL, error) {
	if dir == "" {
		return nil, fmt.Errorf("history: jsonl backend requires a path")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("history: create directory: %w", err)
	}
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &JSONL{dir: dir, capacity: capacity}, nil
}

func (j *JSONL) path(domain model.Domain) string {
	return filepath.Join(j.dir, string(domain)+".jsonl")
}

func (j *JSONL) Append(_ context.Context, r *model.Report) error {
	if err := validate(r); err != nil {
		return err
	}
	e, err := NewEntry(r)
	if err != nil {
		return err
	}

	unlock := j.locks.lock(r.Domain)
	defer unlock()

	entries, err := j.read(r.Domain)
	if err != nil {
		return err
	}
	entries = trim(append(entries, e), j.capacity)

	var buf bytes.Buffer
	for _, e := range entries {
		line, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("history: marshal entry: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	tmp, err := os.CreateTemp(j.dir, string(r.Domain)+".*.tmp")
	if err != nil {
		return fmt.Errorf("history: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("history: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, j.path(r.Domain)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("history: replace log: %w", err)
	}
	return nil
}

func (j *JSONL) List(_ context.Context, domain model.Domain) ([]Entry, error) {
	unlock := j.locks.lock(domain)
	defer unlock()
	return j.read(domain)
}

func (j *JSONL) read(domain model.Domain) ([]Entry, error) {
	f, err := os.Open(j.path(domain))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("history: open log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		b := bytes.TrimSpace(scanner.Bytes())
		if len(b) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(b, &e); err != nil {
			return nil, fmt.Errorf("history: %s line %d: %w", filepath.Base(f.Name()), line, err)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("history: scan log: %w", err)
	}
	return entries, nil
}

func (j *JSONL) Close() error { return nil }
