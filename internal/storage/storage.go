// Package storage defines the key-value persistence abstraction shared by the
// record, history, institution, protocol and credential repositories.
//
// Values are JSON documents addressed by (kind, id). Writes are last-write-wins;
// there is no optimistic locking or cross-key transaction.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Kind names a document collection.
type Kind string

const (
	KindPatientRecords Kind = "patient_records"
	KindHistory        Kind = "history"
	KindInstitutions   Kind = "institutions"
	KindProtocols      Kind = "protocols"
	KindFavorites      Kind = "protocol_favorites"
	KindDoctors        Kind = "doctors"
)

// ErrNotFound is returned by Get and Delete when the key does not exist.
var ErrNotFound = errors.New("storage: not found")

// Document is a raw stored value.
type Document struct {
	ID   string
	Body json.RawMessage
}

// Store is implemented by every persistence backend.
type Store interface {
	Get(ctx context.Context, kind Kind, id string, out any) error
	Put(ctx context.Context, kind Kind, id string, v any) error
	List(ctx context.Context, kind Kind) ([]Document, error)
	Delete(ctx context.Context, kind Kind, id string) error
}

// ListAs decodes every document of a kind into T.
func ListAs[T any](ctx context.Context, s Store, kind Kind) ([]T, error) {
	docs, err := s.List(ctx, kind)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, d := range docs {
		var v T
		if err := json.Unmarshal(d.Body, &v); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", kind, d.ID, err)
		}
		out = append(out, v)
	}
	return out, nil
}
