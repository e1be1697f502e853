// Package protocol manages prescription protocols: a read-only builtin
// catalog plus per-doctor custom protocols and favorites.
package protocol

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/storage"
)

var (
	ErrNotFound = errors.New("protocol not found")
	ErrBuiltin  = errors.New("builtin protocols cannot be deleted")
	ErrGuest    = errors.New("guests cannot save protocols")
	ErrInvalid  = errors.New("protocol name and at least one medication are required")
)

// Protocol is a reusable prescription template.
type Protocol struct {
	ID           string                    `json:"id"`
	DoctorID     string                    `json:"doctorId,omitempty"`
	Name         string                    `json:"name"`
	Category     string                    `json:"category"`
	Subcategory  string                    `json:"subcategory"`
	Medications  []prescription.Medication `json:"medications"`
	Instructions string                    `json:"instructions"`
	// Reference cites the guideline the protocol follows.
	Reference string `json:"reference,omitempty"`
	Builtin   bool   `json:"builtin"`
	Favorite  bool   `json:"favorite"`
}

type favorites struct {
	IDs []string `json:"ids"`
}

// Service resolves the catalog for a session.
type Service struct {
	store storage.Store
}

// NewService creates a protocol service.
func NewService(store storage.Store) *Service {
	return &Service{store: store}
}

func customKey(doctorID, id string) string {
	return doctorID + "/" + id
}

// Builtins returns a copy of the seed catalog.
func Builtins() []Protocol {
	out := make([]Protocol, len(builtins))
	for i, p := range builtins {
		p.Builtin = true
		p.Medications = append([]prescription.Medication(nil), p.Medications...)
		out[i] = p
	}
	return out
}

// List returns builtin and custom protocols sorted by name. A custom
// protocol with a builtin id replaces the builtin.
func (s *Service) List(ctx context.Context, sess auth.Session) ([]Protocol, error) {
	byID := make(map[string]Protocol)
	for _, p := range Builtins() {
		byID[p.ID] = p
	}

	if !sess.IsGuest() {
		custom, err := s.custom(ctx, sess.DoctorID)
		if err != nil {
			return nil, err
		}
		for _, p := range custom {
			byID[p.ID] = p
		}

		favs, err := s.favorites(ctx, sess.DoctorID)
		if err != nil {
			return nil, err
		}
		for _, id := range favs.IDs {
			if p, ok := byID[id]; ok {
				p.Favorite = true
				byID[id] = p
			}
		}
	}

	out := make([]Protocol, 0, len(byID))
	for _, p := range byID {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// Get resolves one protocol for the session.
func (s *Service) Get(ctx context.Context, sess auth.Session, id string) (*Protocol, error) {
	all, err := s.List(ctx, sess)
	if err != nil {
		return nil, err
	}
	for i := range all {
		if all[i].ID == id {
			return &all[i], nil
		}
	}
	return nil, ErrNotFound
}

// Save stores a custom protocol. A blank id gets a fresh one; a builtin id
// shadows that builtin for this doctor.
func (s *Service) Save(ctx context.Context, sess auth.Session, p Protocol) (*Protocol, error) {
	if sess.IsGuest() {
		return nil, ErrGuest
	}
	if strings.TrimSpace(p.Name) == "" || len(p.Medications) == 0 {
		return nil, ErrInvalid
	}
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	p.DoctorID = sess.DoctorID
	p.Builtin = false
	p.Favorite = false

	if err := s.store.Put(ctx, storage.KindProtocols, customKey(sess.DoctorID, p.ID), p); err != nil {
		return nil, fmt.Errorf("save protocol: %w", err)
	}
	return &p, nil
}

// Delete removes a custom protocol. Deleting a shadowing protocol brings
// the builtin back.
func (s *Service) Delete(ctx context.Context, sess auth.Session, id string) error {
	if sess.IsGuest() {
		return ErrGuest
	}
	err := s.store.Delete(ctx, storage.KindProtocols, customKey(sess.DoctorID, id))
	if errors.Is(err, storage.ErrNotFound) {
		if isBuiltin(id) {
			return ErrBuiltin
		}
		return ErrNotFound
	}
	return err
}

// ToggleFavorite flips the favorite mark and returns the new value.
func (s *Service) ToggleFavorite(ctx context.Context, sess auth.Session, id string) (bool, error) {
	if sess.IsGuest() {
		return false, ErrGuest
	}
	if _, err := s.Get(ctx, sess, id); err != nil {
		return false, err
	}

	favs, err := s.favorites(ctx, sess.DoctorID)
	if err != nil {
		return false, err
	}

	marked := true
	kept := favs.IDs[:0]
	for _, f := range favs.IDs {
		if f == id {
			marked = false
			continue
		}
		kept = append(kept, f)
	}
	if marked {
		kept = append(kept, id)
	}

	if err := s.store.Put(ctx, storage.KindFavorites, sess.DoctorID, favorites{IDs: kept}); err != nil {
		return false, fmt.Errorf("save favorites: %w", err)
	}
	return marked, nil
}

// Apply appends the protocol's medications (with fresh ids) and
// instructions to the state.
func Apply(state *prescription.State, p *Protocol) {
	for _, m := range p.Medications {
		state.AddMedication(m)
	}

	instr := strings.TrimSpace(p.Instructions)
	if instr == "" {
		return
	}
	if strings.TrimSpace(state.CustomInstructions) == "" {
		state.CustomInstructions = instr
	} else {
		state.CustomInstructions = strings.TrimRight(state.CustomInstructions, "\n") + "\n\n" + instr
	}
}

func (s *Service) custom(ctx context.Context, doctorID string) ([]Protocol, error) {
	all, err := storage.ListAs[Protocol](ctx, s.store, storage.KindProtocols)
	if err != nil {
		return nil, fmt.Errorf("list protocols: %w", err)
	}
	var out []Protocol
	for _, p := range all {
		if p.DoctorID == doctorID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Service) favorites(ctx context.Context, doctorID string) (favorites, error) {
	var f favorites
	err := s.store.Get(ctx, storage.KindFavorites, doctorID, &f)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return f, fmt.Errorf("load favorites: %w", err)
	}
	return f, nil
}

func isBuiltin(id string) bool {
	for _, p := range builtins {
		if p.ID == id {
			return true
		}
	}
	return false
}
