// Package memory provides an in-process storage.Store used by tests, the CLI
// and deployments without a database.
package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/drfirst/go-clinidoc/internal/storage"
)

// Store keeps JSON documents in a map guarded by a mutex.
type Store struct {
	mu   sync.RWMutex
	data map[storage.Kind]map[string]json.RawMessage
}

// New creates an empty store.
func New() *Store {
	return &Store{data: make(map[storage.Kind]map[string]json.RawMessage)}
}

// Get decodes the document into out.
func (s *Store) Get(_ context.Context, kind storage.Kind, id string, out any) error {
	s.mu.RLock()
	body, ok := s.data[kind][id]
	s.mu.RUnlock()
	if !ok {
		return storage.ErrNotFound
	}
	return json.Unmarshal(body, out)
}

// Put stores v, replacing any previous value.
func (s *Store) Put(_ context.Context, kind storage.Kind, id string, v any) error {
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.data[kind] == nil {
		s.data[kind] = make(map[string]json.RawMessage)
	}
	s.data[kind][id] = body
	return nil
}

// List returns all documents of a kind ordered by id.
func (s *Store) List(_ context.Context, kind storage.Kind) ([]storage.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	docs := make([]storage.Document, 0, len(s.data[kind]))
	for id, body := range s.data[kind] {
		docs = append(docs, storage.Document{ID: id, Body: body})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Delete removes a document.
func (s *Store) Delete(_ context.Context, kind storage.Kind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.data[kind][id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.data[kind], id)
	return nil
}
