package protocol

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/storage/memory"
)

var doctor = auth.Session{DoctorID: "doc-1"}

func TestList_GuestSeesBuiltins(t *testing.T) {
	svc := NewService(memory.New())
	got, err := svc.List(context.Background(), auth.GuestSession())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != len(builtins) {
		t.Errorf("expected %d builtins, got %d", len(builtins), len(got))
	}
	for _, p := range got {
		if !p.Builtin {
			t.Errorf("expected %s to be builtin", p.ID)
		}
	}
}

func TestSave_ShadowsBuiltin(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	_, err := svc.Save(ctx, doctor, Protocol{
		ID:          "lombalgia-aguda",
		Name:        "Lombalgia aguda (minha versão)",
		Medications: []prescription.Medication{{Name: "Naproxeno 500mg"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p, err := svc.Get(ctx, doctor, "lombalgia-aguda")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Builtin || p.Medications[0].Name != "Naproxeno 500mg" {
		t.Errorf("expected custom protocol to shadow builtin, got %+v", p)
	}

	all, _ := svc.List(ctx, doctor)
	if len(all) != len(builtins) {
		t.Errorf("expected shadowing not to add an entry, got %d", len(all))
	}

	other, _ := svc.Get(ctx, auth.Session{DoctorID: "doc-2"}, "lombalgia-aguda")
	if !other.Builtin {
		t.Error("expected other doctors to still see the builtin")
	}

	if err := svc.Delete(ctx, doctor, "lombalgia-aguda"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p, _ = svc.Get(ctx, doctor, "lombalgia-aguda")
	if !p.Builtin {
		t.Error("expected builtin to return after deleting the shadow")
	}
	if err := svc.Delete(ctx, doctor, "lombalgia-aguda"); !errors.Is(err, ErrBuiltin) {
		t.Errorf("expected ErrBuiltin, got %v", err)
	}
}

func TestSave_Validation(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	if _, err := svc.Save(ctx, doctor, Protocol{Name: "Vazio"}); !errors.Is(err, ErrInvalid) {
		t.Errorf("expected ErrInvalid, got %v", err)
	}
	if _, err := svc.Save(ctx, auth.GuestSession(), Protocol{Name: "x", Medications: []prescription.Medication{{Name: "y"}}}); !errors.Is(err, ErrGuest) {
		t.Errorf("expected ErrGuest, got %v", err)
	}
}

func TestToggleFavorite(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	on, err := svc.ToggleFavorite(ctx, doctor, "ivas-adulto")
	if err != nil || !on {
		t.Fatalf("expected favorite on, got %v (err=%v)", on, err)
	}
	p, _ := svc.Get(ctx, doctor, "ivas-adulto")
	if !p.Favorite {
		t.Error("expected protocol marked favorite")
	}

	off, _ := svc.ToggleFavorite(ctx, doctor, "ivas-adulto")
	if off {
		t.Error("expected favorite off after second toggle")
	}

	if _, err := svc.ToggleFavorite(ctx, doctor, "nao-existe"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestApply(t *testing.T) {
	state := prescription.Default(time.Now())
	state.CustomInstructions = "Tomar com água."
	existing := state.AddMedication(prescription.Medication{Name: "Omeprazol 20mg"})

	p := &Builtins()[0]
	Apply(state, p)
	Apply(state, p)

	if len(state.Medications) != 1+2*len(p.Medications) {
		t.Fatalf("expected medications appended, got %d", len(state.Medications))
	}
	if state.Medications[0].ID != existing.ID {
		t.Error("expected existing medication to stay first")
	}
	seen := map[string]bool{}
	for _, m := range state.Medications {
		if seen[m.ID] {
			t.Errorf("expected unique ids, %s repeated", m.ID)
		}
		seen[m.ID] = true
	}
	want := "Tomar com água.\n\n" + p.Instructions + "\n\n" + p.Instructions
	if state.CustomInstructions != want {
		t.Errorf("expected appended instructions, got %q", state.CustomInstructions)
	}
	if p.Medications[0].ID != "" {
		t.Error("expected template to stay untouched")
	}
}

func TestSave_KeepsSubcategoryAndReference(t *testing.T) {
	svc := NewService(memory.New())
	ctx := context.Background()

	saved, err := svc.Save(ctx, doctor, Protocol{
		Name:        "Faringoamigdalite estreptocócica",
		Category:    "Respiratório",
		Subcategory: "Orofaringe",
		Reference:   "IDSA 2012 - Group A Streptococcal Pharyngitis",
		Medications: []prescription.Medication{{Name: "Amoxicilina 500mg"}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, err := svc.Get(ctx, doctor, saved.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Subcategory != "Orofaringe" || got.Reference != "IDSA 2012 - Group A Streptococcal Pharyngitis" {
		t.Errorf("expected subcategory and reference to survive storage, got %q / %q", got.Subcategory, got.Reference)
	}

	for _, p := range Builtins() {
		if p.Subcategory == "" || p.Reference == "" {
			t.Errorf("expected builtin %s to carry a subcategory and reference", p.ID)
		}
	}
}
