package history

import (
	"context"

	"github.com/ppiankov/consentwatch/internal/model"
)

// Memory is an in-process store. Contents are lost on exit.
type Memory struct {
	capacity int
	locks    domainLocks
	logs     map[model.Domain]*[]Entry
}

// NewMemory returns an empty store with one log per known domain.
func NewMemory(capacity int) *Memory {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	m := &Memory{capacity: capacity, logs: make(map[model.Domain]*[]Entry)}
	for _, d := range model.Domains {
		m.logs[d] = &[]Entry{}
	}
	return m
}

func (m *Memory) Append(_ context.Context, r *model.Report) error {
	if err := validate(r); err != nil {
		return err
	}
	e, err := NewEntry(r)
	if err != nil {
		return err
	}

	unlock := m.locks.lock(r.Domain)
	defer unlock()
	log := m.logs[r.Domain]
	*log = trim(append(*log, e), m.capacity)
	return nil
}

func (m *Memory) List(_ context.Context, domain model.Domain) ([]Entry, error) {
	log, ok := m.logs[domain]
	if !ok {
		return nil, nil
	}
	unlock := m.locks.lock(domain)
	defer unlock()
	return append([]Entry(nil), *log...), nil
}

func (m *Memory) Close() error { return nil }
