// Package certificate renders the medical certificate and the attendance
// and companion declarations issued alongside a prescription.
package certificate

import (
	"errors"
	"fmt"
	"strings"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

// DisplayLayout is the date format printed on documents.
const DisplayLayout = "02/01/2006"

// ErrNoDocument is returned when the state has no certificate configured.
var ErrNoDocument = errors.New("no certificate document configured")

// Kind distinguishes the rendered document.
type Kind string

const (
	KindCertificate Kind = "atestado"
	KindAttendance  Kind = "declaracao_comparecimento"
	KindCompanion   Kind = "declaracao_acompanhante"
)

// Issuer signs the document.
type Issuer struct {
	Name    string `json:"name"`
	License string `json:"license"`
}

// Document is a rendered certificate.
type Document struct {
	Kind      Kind   `json:"kind"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Date      string `json:"date"`
	Signature string `json:"signature,omitempty"`
}

// Text returns the printable document.
func (d *Document) Text() string {
	parts := []string{d.Title, d.Body, d.Date}
	if d.Signature != "" {
		parts = append(parts, "_______________________________\n"+d.Signature)
	}
	return strings.Join(parts, "\n\n")
}

// Render builds the document configured in s.Certificate.
func Render(s *prescription.State, issuer Issuer) (*Document, error) {
	if s == nil || !s.HasCertificate() {
		return nil, ErrNoDocument
	}

	c := s.Certificate
	doc := &Document{
		Date:      FormatDate(s.Date),
		Signature: signature(issuer),
	}

	switch {
	case c.Type == prescription.DocumentCertificate:
		doc.Kind = KindCertificate
		doc.Title = "ATESTADO MÉDICO"
		doc.Body = certificateBody(s)
	case c.Type == prescription.DocumentAttendance && c.Companion:
		doc.Kind = KindCompanion
		doc.Title = "DECLARAÇÃO DE ACOMPANHANTE"
		doc.Body = companionBody(s, doc.Date)
	case c.Type == prescription.DocumentAttendance:
		doc.Kind = KindAttendance
		doc.Title = "DECLARAÇÃO DE COMPARECIMENTO"
		doc.Body = attendanceBody(s, doc.Date)
	default:
		return nil, fmt.Errorf("unknown document type %q: %w", c.Type, ErrNoDocument)
	}
	return doc, nil
}

// FormatDate converts an ISO date to dd/mm/yyyy. Unparsable input is
// returned unchanged.
func FormatDate(iso string) string {
	s := &prescription.State{Date: iso}
	t, err := s.ParsedDate()
	if err != nil {
		return iso
	}
	return t.Format(DisplayLayout)
}

func certificateBody(s *prescription.State) string {
	days := s.Certificate.LeaveDays
	if days < 1 {
		days = 1
	}
	unit := "dias"
	if days == 1 {
		unit = "dia"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Atesto, para os devidos fins, que %s%s foi atendido(a) nesta data, "+
		"necessitando de %d %s de afastamento de suas atividades a partir desta data.",
		patientName(s.Patient.Name), document(s.Patient.Document), days, unit)

	if s.Certificate.ShowCID {
		if cid := strings.TrimSpace(s.ICDCode); cid != "" {
			fmt.Fprintf(&b, "\n\nCID: %s", cid)
		}
	}
	return b.String()
}

func attendanceBody(s *prescription.State, date string) string {
	return fmt.Sprintf("Declaro, para os devidos fins, que %s%s compareceu a este serviço de saúde no dia %s%s.",
		patientName(s.Patient.Name), document(s.Patient.Document), date, period(s.Certificate.AttendancePeriod))
}

func companionBody(s *prescription.State, date string) string {
	c := s.Certificate
	companion := strings.TrimSpace(c.CompanionName)
	if companion == "" {
		companion = "o(a) acompanhante"
	}
	return fmt.Sprintf("Declaro, para os devidos fins, que %s%s esteve neste serviço de saúde no dia %s%s, "+
		"acompanhando o(a) paciente %s.",
		companion, document(c.CompanionDocument), date, period(c.AttendancePeriod), nameOrBlank(s.Patient.Name))
}

func patientName(name string) string {
	return "o(a) Sr(a). " + nameOrBlank(name)
}

func nameOrBlank(name string) string {
	if n := strings.TrimSpace(name); n != "" {
		return n
	}
	return "____________________"
}

func document(doc string) string {
	if d := strings.TrimSpace(doc); d != "" {
		return ", portador(a) do documento " + d + ","
	}
	return ""
}

func period(p string) string {
	if p = strings.TrimSpace(p); p != "" {
		return ", no período " + p
	}
	return ""
}

func signature(i Issuer) string {
	name := strings.TrimSpace(i.Name)
	if name == "" {
		return ""
	}
	if lic := strings.TrimSpace(i.License); lic != "" {
		return name + "\n" + lic
	}
	return name
}
