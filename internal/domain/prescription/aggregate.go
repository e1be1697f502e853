// Package prescription holds the prescription form state: patient, ordered
// medication list, free-text instructions and the embedded certificate
// configuration.
package prescription

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DateLayout is the ISO calendar date format used for State.Date.
const DateLayout = "2006-01-02"

// Unit is a dispensing unit.
type Unit string

const (
	UnitBox      Unit = "caixa"
	UnitBottle   Unit = "frasco"
	UnitTube     Unit = "tubo"
	UnitTablet   Unit = "comprimido"
	UnitCapsule  Unit = "cápsula"
	UnitAmpoule  Unit = "ampola"
	UnitSachet   Unit = "sachê"
	UnitPiece    Unit = "unidade"
	UnitMilliter Unit = "mL"
)

// Units lists every dispensing unit in display order.
var Units = []Unit{
	UnitBox, UnitBottle, UnitTube, UnitTablet, UnitCapsule,
	UnitAmpoule, UnitSachet, UnitPiece, UnitMilliter,
}

// Medication is one line of the prescription. Order within State.Medications
// is significant: it is printed as a numbered list.
type Medication struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Dosage       string `json:"dosage"`
	Quantity     string `json:"quantity"`
	Unit         Unit   `json:"unit"`
	Frequency    string `json:"frequency"`
	Duration     string `json:"duration"`
	Instructions string `json:"instructions"`
	AISuggested  bool   `json:"aiSuggested,omitempty"`
}

// Patient identifies who the documents are issued to.
type Patient struct {
	Name            string `json:"name"`
	Age             string `json:"age"`
	Document        string `json:"document"`
	Address         string `json:"address"`
	Pregnant        bool   `json:"pregnant"`
	Pediatric       bool   `json:"pediatric"`
	PediatricDetail string `json:"pediatricDetail,omitempty"`
}

// DocumentType selects the certificate document issued with the prescription.
type DocumentType string

const (
	DocumentNone        DocumentType = "none"
	DocumentCertificate DocumentType = "atestado"
	DocumentAttendance  DocumentType = "declaracao"
)

// CertificateConfig configures the medical certificate or attendance
// declaration. Companion fields turn an attendance declaration into a
// companion declaration.
type CertificateConfig struct {
	Type              DocumentType `json:"type"`
	LeaveDays         int          `json:"leaveDays"`
	AttendancePeriod  string       `json:"attendancePeriod"`
	ShowCID           bool         `json:"showCid"`
	Companion         bool         `json:"companion"`
	CompanionName     string       `json:"companionName,omitempty"`
	CompanionDocument string       `json:"companionDocument,omitempty"`
}

// State is the aggregate root edited by the prescription form.
type State struct {
	Patient            Patient           `json:"patient"`
	Medications        []Medication      `json:"medications"`
	CustomInstructions string            `json:"customInstructions"`
	PrintInstructions  bool              `json:"printInstructions"`
	Diagnosis          string            `json:"diagnosis"`
	ICDCode            string            `json:"icdCode"`
	PrintICD           bool              `json:"printIcd"`
	PrintAddress       bool              `json:"printAddress"`
	Date               string            `json:"date"`
	Certificate        CertificateConfig `json:"certificate"`
}

// Default returns the state a new session starts with.
func Default(now time.Time) *State {
	return &State{
		Medications:       []Medication{},
		PrintInstructions: true,
		Date:              now.Format(DateLayout),
		Certificate: CertificateConfig{
			Type:      DocumentNone,
			LeaveDays: 1,
		},
	}
}

// SetDate stores the calendar date of t, dropping the time component.
func (s *State) SetDate(t time.Time) {
	s.Date = t.Format(DateLayout)
}

// NormalizeDate rewrites Date as a calendar date. A blank date becomes the
// date of now and an RFC 3339 timestamp keeps its date part; anything else
// is ErrInvalidDate.
func (s *State) NormalizeDate(now time.Time) error {
	d := strings.TrimSpace(s.Date)
	if d == "" {
		s.SetDate(now)
		return nil
	}
	if t, err := time.Parse(DateLayout, d); err == nil {
		s.SetDate(t)
		return nil
	}
	if t, err := time.Parse(time.RFC3339, d); err == nil {
		s.SetDate(t)
		return nil
	}
	return fmt.Errorf("%w: %q", ErrInvalidDate, s.Date)
}

// ParsedDate parses Date.
func (s *State) ParsedDate() (time.Time, error) {
	return time.Parse(DateLayout, s.Date)
}

// AddMedication appends m with a fresh id and returns the stored copy.
func (s *State) AddMedication(m Medication) Medication {
	m.ID = uuid.New().String()
	if m.Unit == "" {
		m.Unit = UnitBox
	}
	s.Medications = append(s.Medications, m)
	return m
}

// UpdateMedication applies fn to the medication with the given id.
func (s *State) UpdateMedication(id string, fn func(*Medication)) error {
	for i := range s.Medications {
		if s.Medications[i].ID == id {
			fn(&s.Medications[i])
			s.Medications[i].ID = id
			return nil
		}
	}
	return ErrMedicationNotFound
}

// RemoveMedication deletes the medication with the given id, keeping order.
func (s *State) RemoveMedication(id string) error {
	for i := range s.Medications {
		if s.Medications[i].ID == id {
			s.Medications = append(s.Medications[:i], s.Medications[i+1:]...)
			return nil
		}
	}
	return ErrMedicationNotFound
}

// HasCertificate reports whether a certificate document is configured.
func (s *State) HasCertificate() bool {
	return s.Certificate.Type != "" && s.Certificate.Type != DocumentNone
}

// MedicationSummary joins medication names in order; used for record
// titles and duplicate detection.
func (s *State) MedicationSummary() string {
	names := make([]string, 0, len(s.Medications))
	for _, m := range s.Medications {
		if n := strings.TrimSpace(m.Name); n != "" {
			names = append(names, n)
		}
	}
	return strings.Join(names, ", ")
}

// Clone returns a deep copy.
func (s *State) Clone() *State {
	c := *s
	c.Medications = make([]Medication, len(s.Medications))
	copy(c.Medications, s.Medications)
	return &c
}
