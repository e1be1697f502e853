// Package history keeps each doctor's recently printed prescriptions.
package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/storage"
)

// MaxEntries bounds the history kept per doctor; older entries are dropped.
const MaxEntries = 50

// Entry is one printed prescription.
type Entry struct {
	ID                string              `json:"id"`
	PatientName       string              `json:"patientName"`
	Date              string              `json:"date"`
	MedicationSummary string              `json:"medicationSummary"`
	State             *prescription.State `json:"state"`
	CreatedAt         time.Time           `json:"createdAt"`
}

type document struct {
	Entries []Entry `json:"entries"`
}

// Repository stores one history document per doctor. Writes replace the
// whole document.
type Repository struct {
	store storage.Store
	now   func() time.Time
}

// NewRepository creates a history repository.
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store, now: time.Now}
}

// Add prepends a snapshot of state.
func (r *Repository) Add(ctx context.Context, doctorID string, state *prescription.State) (*Entry, error) {
	l, err := r.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}

	e := Entry{
		ID:                uuid.New().String(),
		PatientName:       state.Patient.Name,
		Date:              state.Date,
		MedicationSummary: state.MedicationSummary(),
		State:             state.Clone(),
		CreatedAt:         r.now().UTC(),
	}
	l.Entries = append([]Entry{e}, l.Entries...)
	if len(l.Entries) > MaxEntries {
		l.Entries = l.Entries[:MaxEntries]
	}

	if err := r.store.Put(ctx, storage.KindHistory, doctorID, l); err != nil {
		return nil, fmt.Errorf("save history: %w", err)
	}
	return &e, nil
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (r *Repository) List(ctx context.Context, doctorID string, limit int) ([]Entry, error) {
	l, err := r.load(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(l.Entries) > limit {
		return l.Entries[:limit], nil
	}
	return l.Entries, nil
}

// Clear drops the doctor's history.
func (r *Repository) Clear(ctx context.Context, doctorID string) error {
	err := r.store.Delete(ctx, storage.KindHistory, doctorID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("clear history: %w", err)
	}
	return nil
}

func (r *Repository) load(ctx context.Context, doctorID string) (document, error) {
	var l document
	err := r.store.Get(ctx, storage.KindHistory, doctorID, &l)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return l, fmt.Errorf("load history: %w", err)
	}
	if l.Entries == nil {
		l.Entries = []Entry{}
	}
	return l, nil
}
