package idempotency

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// MemoryBackend keeps inbox entries in process memory.
type MemoryBackend struct {
	mu      sync.Mutex
	entries map[string]Entry
}

// NewMemoryBackend returns an empty backend.
func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{entries: make(map[string]Entry)}
}

func (m *MemoryBackend) Get(_ context.Context, key string) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	return &e, nil
}

func (m *MemoryBackend) Claim(_ context.Context, e *Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if cur, ok := m.entries[e.Key]; ok {
		if cur.Status != StatusRecoverable {
			return ErrDuplicateMessage
		}
		cur.Status = StatusStarted
		cur.UpdatedAt = e.UpdatedAt
		m.entries[e.Key] = cur
		return nil
	}
	m.entries[e.Key] = *e
	return nil
}

func (m *MemoryBackend) SetStatus(_ context.Context, key string, status Status, result json.RawMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok {
		return ErrEntryNotFound
	}
	e.Status = status
	e.Result = result
	e.UpdatedAt = time.Now()
	m.entries[key] = e
	return nil
}

func (m *MemoryBackend) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for k, e := range m.entries {
		if !e.ExpiresAt.IsZero() && e.ExpiresAt.Before(now) {
			delete(m.entries, k)
			n++
		}
	}
	return n, nil
}
