// Package institution stores the letterhead institutions a doctor prints
// prescriptions under.
package institution

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/drfirst/go-clinidoc/internal/storage"
)

var (
	ErrNotFound     = errors.New("institution not found")
	ErrNameRequired = errors.New("institution name is required")
)

// Institution is a letterhead.
type Institution struct {
	ID       string `json:"id"`
	DoctorID string `json:"doctorId"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone,omitempty"`
	CNES     string `json:"cnes,omitempty"`
	Default  bool   `json:"default"`
}

// Repository persists institutions, one document each.
type Repository struct {
	store storage.Store
}

// NewRepository creates an institution repository.
func NewRepository(store storage.Store) *Repository {
	return &Repository{store: store}
}

func key(doctorID, id string) string {
	return doctorID + "/" + id
}

// Save upserts inst for the doctor. Marking it default clears the flag on
// the doctor's other institutions.
func (r *Repository) Save(ctx context.Context, doctorID string, inst Institution) (*Institution, error) {
	if strings.TrimSpace(inst.Name) == "" {
		return nil, ErrNameRequired
	}
	if inst.ID == "" {
		inst.ID = uuid.New().String()
	}
	inst.DoctorID = doctorID

	if inst.Default {
		if err := r.clearDefault(ctx, doctorID, inst.ID); err != nil {
			return nil, err
		}
	}
	if err := r.store.Put(ctx, storage.KindInstitutions, key(doctorID, inst.ID), inst); err != nil {
		return nil, fmt.Errorf("save institution: %w", err)
	}
	return &inst, nil
}

// List returns the doctor's institutions, default first then by name.
func (r *Repository) List(ctx context.Context, doctorID string) ([]Institution, error) {
	all, err := storage.ListAs[Institution](ctx, r.store, storage.KindInstitutions)
	if err != nil {
		return nil, fmt.Errorf("list institutions: %w", err)
	}

	out := []Institution{}
	for _, inst := range all {
		if inst.DoctorID == doctorID {
			out = append(out, inst)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Default != out[j].Default {
			return out[i].Default
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Delete removes an institution.
func (r *Repository) Delete(ctx context.Context, doctorID, id string) error {
	err := r.store.Delete(ctx, storage.KindInstitutions, key(doctorID, id))
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func (r *Repository) clearDefault(ctx context.Context, doctorID, except string) error {
	list, err := r.List(ctx, doctorID)
	if err != nil {
		return err
	}
	for _, inst := range list {
		if inst.Default && inst.ID != except {
			inst.Default = false
			if err := r.store.Put(ctx, storage.KindInstitutions, key(doctorID, inst.ID), inst); err != nil {
				return fmt.Errorf("clear default: %w", err)
			}
		}
	}
	return nil
}
