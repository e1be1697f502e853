// Package record persists saved prescriptions as patient records and
// suppresses accidental duplicate saves.
package record

import (
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

// DuplicateWindow is how long an identical save is suppressed.
const DuplicateWindow = 5 * time.Minute

// Type classifies what a record contains.
type Type string

const (
	TypePrescription Type = "prescription"
	TypeCertificate  Type = "certificate"
	TypeBoth         Type = "both"
)

// TypeOf derives the record type from the state.
func TypeOf(s *prescription.State) Type {
	switch {
	case s.HasCertificate() && len(s.Medications) > 0:
		return TypeBoth
	case s.HasCertificate():
		return TypeCertificate
	default:
		return TypePrescription
	}
}

// PatientRecord is a saved snapshot of a prescription session.
type PatientRecord struct {
	ID                string              `json:"id"`
	DoctorID          string              `json:"doctorId"`
	PatientName       string              `json:"patientName"`
	NormalizedName    string              `json:"normalizedName"`
	Type              Type                `json:"type"`
	Date              string              `json:"date"`
	MedicationSummary string              `json:"medicationSummary"`
	Fingerprint       string              `json:"fingerprint"`
	Favorite          bool                `json:"favorite"`
	State             *prescription.State `json:"state"`
	SavedAt           time.Time           `json:"savedAt"`
}

var foldAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName lowercases, strips diacritics and collapses whitespace so
// "  José   da Silva" and "jose da silva" compare equal.
func NormalizeName(name string) string {
	folded, _, err := transform.String(foldAccents, name)
	if err != nil {
		folded = name
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}
