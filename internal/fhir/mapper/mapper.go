// Package mapper converts prescription state into FHIR R5 resources.
package mapper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/fhir/r5"
)

var (
	ErrNilState      = errors.New("prescription state is nil")
	ErrNoMedications = errors.New("prescription has no medications")
)

// Prescriber is the doctor signing the prescription.
type Prescriber struct {
	ID      string
	Name    string
	License string
}

// Facility is the issuing institution. A zero Facility is omitted.
type Facility struct {
	Name    string
	Address string
	Phone   string
	CNES    string
}

// Input bundles everything the export needs.
type Input struct {
	State      *prescription.State
	Prescriber Prescriber
	Facility   Facility
	Now        time.Time
}

// Mapper builds FHIR bundles. newID is replaceable in tests.
type Mapper struct {
	newID func() string
}

// New creates a Mapper with random urn:uuid ids.
func New() *Mapper {
	return &Mapper{newID: func() string { return uuid.New().String() }}
}

// ToBundle maps a prescription to a collection Bundle holding the patient,
// practitioner, organization, condition and one MedicationRequest per
// medication in prescription order.
func (m *Mapper) ToBundle(in Input) (*r5.Bundle, error) {
	if in.State == nil {
		return nil, ErrNilState
	}
	if len(in.State.Medications) == 0 {
		return nil, ErrNoMedications
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	now = now.UTC()

	bundle := &r5.Bundle{
		ResourceType: "Bundle",
		ID:           m.newID(),
		Meta:         &r5.Meta{LastUpdated: now, Source: "clinidoc"},
		Type:         "collection",
		Timestamp:    now.Format(time.RFC3339),
	}

	patient := m.mapPatient(in.State.Patient)
	patientRef := r5.Reference{Reference: urn(patient.ID), Type: "Patient", Display: patient.GetFullName()}
	bundle.Entry = append(bundle.Entry, entry(patient.ID, patient))

	var requester *r5.Reference
	if in.Prescriber.Name != "" || in.Prescriber.License != "" {
		pr := m.mapPractitioner(in.Prescriber)
		requester = &r5.Reference{Reference: urn(pr.ID), Type: "Practitioner", Display: in.Prescriber.Name}
		bundle.Entry = append(bundle.Entry, entry(pr.ID, pr))
	}

	if in.Facility.Name != "" {
		org := m.mapOrganization(in.Facility)
		bundle.Entry = append(bundle.Entry, entry(org.ID, org))
	}

	var reason []r5.CodeableReference
	if cond := m.mapCondition(in.State, patientRef); cond != nil {
		reason = []r5.CodeableReference{{Reference: &r5.Reference{Reference: urn(cond.ID), Type: "Condition"}}}
		bundle.Entry = append(bundle.Entry, entry(cond.ID, cond))
	}

	authored := in.State.Date
	if authored == "" {
		authored = now.Format(prescription.DateLayout)
	}
	for i, med := range in.State.Medications {
		mr := m.mapMedication(i+1, med, in.State, patientRef, requester, reason, authored)
		bundle.Entry = append(bundle.Entry, entry(mr.ID, mr))
	}

	return bundle, nil
}

func (m *Mapper) mapPatient(p prescription.Patient) *r5.Patient {
	patient := &r5.Patient{ResourceType: "Patient", ID: m.newID()}
	if name := strings.TrimSpace(p.Name); name != "" {
		patient.Name = []r5.HumanName{{Use: "official", Text: name}}
	}
	if doc := strings.TrimSpace(p.Document); doc != "" {
		patient.Identifier = []r5.Identifier{{Use: "official", System: r5.SystemCPF, Value: doc}}
	}
	if addr := strings.TrimSpace(p.Address); addr != "" {
		patient.Address = []r5.Address{{Use: "home", Text: addr}}
	}
	if p.Pregnant {
		pregnant := true
		patient.Extension = append(patient.Extension, r5.Extension{URL: r5.ExtensionPregnancy, ValueBoolean: &pregnant})
	}
	return patient
}

func (m *Mapper) mapPractitioner(p Prescriber) *r5.Practitioner {
	pr := &r5.Practitioner{ResourceType: "Practitioner", ID: m.newID()}
	if p.Name != "" {
		pr.Name = []r5.HumanName{{Use: "official", Text: p.Name}}
	}
	if p.License != "" {
		pr.Identifier = []r5.Identifier{{System: r5.SystemCRM, Value: p.License}}
	}
	return pr
}

func (m *Mapper) mapOrganization(f Facility) *r5.Organization {
	org := &r5.Organization{ResourceType: "Organization", ID: m.newID(), Name: f.Name}
	if f.CNES != "" {
		org.Identifier = []r5.Identifier{{System: r5.SystemCNES, Value: f.CNES}}
	}
	if f.Phone != "" {
		org.Telecom = []r5.ContactPoint{{System: "phone", Value: f.Phone}}
	}
	if f.Address != "" {
		org.Address = []r5.Address{{Use: "work", Text: f.Address}}
	}
	return org
}

func (m *Mapper) mapCondition(s *prescription.State, subject r5.Reference) *r5.Condition {
	diagnosis := strings.TrimSpace(s.Diagnosis)
	code := strings.TrimSpace(s.ICDCode)
	if diagnosis == "" && code == "" {
		return nil
	}
	concept := &r5.CodeableConcept{Text: diagnosis}
	if code != "" {
		concept.Coding = []r5.Coding{{System: r5.SystemICD10, Code: code, Display: diagnosis}}
	}
	return &r5.Condition{
		ResourceType: "Condition",
		ID:           m.newID(),
		Code:         concept,
		Subject:      subject,
		RecordedDate: s.Date,
	}
}

func (m *Mapper) mapMedication(seq int, med prescription.Medication, s *prescription.State, subject r5.Reference, requester *r5.Reference, reason []r5.CodeableReference, authored string) *r5.MedicationRequest {
	mr := &r5.MedicationRequest{
		ResourceType: "MedicationRequest",
		ID:           m.newID(),
		Status:       r5.StatusActive,
		Intent:       r5.IntentOrder,
		Medication: r5.CodeableReference{
			Concept: &r5.CodeableConcept{Text: strings.TrimSpace(med.Name)},
		},
		Subject:    subject,
		AuthoredOn: authored,
		Requester:  requester,
		Reason:     reason,
	}
	if med.ID != "" {
		mr.Identifier = []r5.Identifier{{Use: "usual", Value: med.ID}}
	}
	if med.AISuggested {
		mr.Intent = r5.IntentProposal
		mr.Status = r5.StatusDraft
	}

	sig := Sig(med)
	if sig != "" || med.Instructions != "" {
		mr.RenderedDosageInstruction = sig
		mr.DosageInstruction = []r5.Dosage{{
			Sequence:           seq,
			Text:               sig,
			PatientInstruction: strings.TrimSpace(med.Instructions),
		}}
	}

	if qty, ok := ParseQuantity(med.Quantity); ok {
		mr.DispenseRequest = &r5.DispenseRequest{
			Quantity: &r5.Quantity{Value: qty, Unit: string(med.Unit)},
		}
	}

	if s.PrintInstructions {
		if text := strings.TrimSpace(s.CustomInstructions); text != "" {
			mr.Note = append(mr.Note, r5.Annotation{Text: text})
		}
	}
	return mr
}

// Sig joins dosage, frequency and duration into the dosage text.
func Sig(med prescription.Medication) string {
	var parts []string
	for _, p := range []string{med.Dosage, med.Frequency, med.Duration} {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, ", ")
}

// ParseQuantity reads the leading number of a quantity such as "2", "1,5"
// or "30 comprimidos".
func ParseQuantity(s string) (float64, bool) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

func urn(id string) string {
	return fmt.Sprintf("urn:uuid:%s", id)
}

func entry(id string, resource any) r5.BundleEntry {
	return r5.BundleEntry{FullURL: urn(id), Resource: resource}
}
