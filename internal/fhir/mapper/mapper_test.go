package mapper

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/fhir/r5"
)

func newTestMapper() *Mapper {
	n := 0
	return &Mapper{newID: func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}}
}

func sampleState() *prescription.State {
	s := prescription.Default(time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC))
	s.Patient = prescription.Patient{Name: "Maria Souza", Document: "123.456.789-00", Address: "Rua A, 10", Pregnant: true}
	s.Diagnosis = "Infecção urinária"
	s.ICDCode = "N39.0"
	s.CustomInstructions = "Hidratação oral abundante"
	s.AddMedication(prescription.Medication{Name: "Nitrofurantoína 100mg", Dosage: "1 cápsula", Frequency: "de 6/6h", Duration: "por 7 dias", Quantity: "28", Unit: prescription.UnitCapsule})
	s.AddMedication(prescription.Medication{Name: "Fenazopiridina 200mg", Dosage: "1 comprimido", Frequency: "de 8/8h", Quantity: "1,5 caixa", Instructions: "Pode alterar a cor da urina"})
	return s
}

func TestToBundle(t *testing.T) {
	m := newTestMapper()
	b, err := m.ToBundle(Input{
		State:      sampleState(),
		Prescriber: Prescriber{ID: "doc-1", Name: "Dra. Ana Lima", License: "CRM-SP 123456"},
		Facility:   Facility{Name: "UBS Centro", CNES: "1234567"},
		Now:        time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if b.Type != "collection" {
		t.Errorf("expected collection bundle, got %s", b.Type)
	}
	// patient, practitioner, organization, condition, 2 medication requests
	if len(b.Entry) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(b.Entry))
	}

	patient, ok := b.Entry[0].Resource.(*r5.Patient)
	if !ok {
		t.Fatalf("expected first entry to be a Patient, got %T", b.Entry[0].Resource)
	}
	if patient.GetFullName() != "Maria Souza" {
		t.Errorf("expected patient name, got %q", patient.GetFullName())
	}
	if patient.Identifier[0].System != r5.SystemCPF {
		t.Errorf("expected CPF identifier, got %s", patient.Identifier[0].System)
	}

	pr := b.Entry[1].Resource.(*r5.Practitioner)
	if pr.GetLicense() != "CRM-SP 123456" {
		t.Errorf("expected CRM license, got %q", pr.GetLicense())
	}

	cond := b.Entry[3].Resource.(*r5.Condition)
	if cond.Code.Coding[0].System != r5.SystemICD10 || cond.Code.Coding[0].Code != "N39.0" {
		t.Errorf("unexpected condition coding: %+v", cond.Code.Coding)
	}

	mrs := b.MedicationRequests()
	if len(mrs) != 2 {
		t.Fatalf("expected 2 medication requests, got %d", len(mrs))
	}
	first := mrs[0]
	if first.GetMedicationDisplay() != "Nitrofurantoína 100mg" {
		t.Errorf("expected medication order preserved, got %q", first.GetMedicationDisplay())
	}
	if first.GetSigText() != "1 cápsula, de 6/6h, por 7 dias" {
		t.Errorf("unexpected sig: %q", first.GetSigText())
	}
	if first.DispenseRequest == nil || first.DispenseRequest.Quantity.Value != 28 {
		t.Errorf("expected dispense quantity 28, got %+v", first.DispenseRequest)
	}
	if first.GetPatientID() != patient.ID {
		t.Errorf("expected subject %s, got %s", patient.ID, first.GetPatientID())
	}
	if first.Requester == nil || first.Requester.Display != "Dra. Ana Lima" {
		t.Errorf("expected requester, got %+v", first.Requester)
	}
	if len(first.Reason) != 1 {
		t.Errorf("expected condition reason, got %d", len(first.Reason))
	}
	if len(first.Note) != 1 || first.Note[0].Text != "Hidratação oral abundante" {
		t.Errorf("expected instructions note, got %+v", first.Note)
	}

	second := mrs[1]
	if second.DispenseRequest.Quantity.Value != 1.5 {
		t.Errorf("expected comma decimal quantity 1.5, got %v", second.DispenseRequest.Quantity.Value)
	}
	if second.DosageInstruction[0].PatientInstruction != "Pode alterar a cor da urina" {
		t.Errorf("unexpected patient instruction: %q", second.DosageInstruction[0].PatientInstruction)
	}
	if second.DosageInstruction[0].Sequence != 2 {
		t.Errorf("expected sequence 2, got %d", second.DosageInstruction[0].Sequence)
	}

	if _, err := json.Marshal(b); err != nil {
		t.Errorf("bundle should marshal: %v", err)
	}
}

func TestToBundleMinimal(t *testing.T) {
	s := prescription.Default(time.Now())
	s.PrintInstructions = false
	s.CustomInstructions = "ignored"
	s.AddMedication(prescription.Medication{Name: "Dipirona", Quantity: "a critério", AISuggested: true})

	b, err := newTestMapper().ToBundle(Input{State: s})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(b.Entry) != 2 {
		t.Fatalf("expected patient and one request, got %d entries", len(b.Entry))
	}
	mr := b.MedicationRequests()[0]
	if mr.Requester != nil {
		t.Error("expected no requester without prescriber")
	}
	if mr.DispenseRequest != nil {
		t.Error("expected no dispense request for non-numeric quantity")
	}
	if len(mr.Note) != 0 {
		t.Error("expected no note when instructions are not printed")
	}
	if mr.Intent != r5.IntentProposal || mr.Status != r5.StatusDraft {
		t.Errorf("expected suggested medication as draft proposal, got %s/%s", mr.Status, mr.Intent)
	}
}

func TestToBundleErrors(t *testing.T) {
	m := New()
	if _, err := m.ToBundle(Input{}); !errors.Is(err, ErrNilState) {
		t.Errorf("expected ErrNilState, got %v", err)
	}
	if _, err := m.ToBundle(Input{State: prescription.Default(time.Now())}); !errors.Is(err, ErrNoMedications) {
		t.Errorf("expected ErrNoMedications, got %v", err)
	}
}

func TestParseQuantity(t *testing.T) {
	tests := []struct {
		in   string
		want float64
		ok   bool
	}{
		{"2", 2, true},
		{"1,5", 1.5, true},
		{"30 comprimidos", 30, true},
		{"", 0, false},
		{"uso contínuo", 0, false},
		{"0", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseQuantity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseQuantity(%q) = %v, %v; expected %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}
