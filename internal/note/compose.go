package note

import (
	"strings"
)

// Fallback texts for blank fields.
const (
	Dash         = "-"
	NotInformed  = "Não informado"
	Denies       = "Nega"
	Undetermined = "A esclarecer"
)

// Section is one headed block of the note.
type Section struct {
	Heading string
	Render  func(*SoapState) []string
}

// Composer renders a SoapState with an ordered list of sections per mode.
type Composer struct {
	standard []Section
	trauma   []Section
}

// NewComposer returns a composer with the standard SOAP and trauma layouts.
func NewComposer() *Composer {
	return &Composer{
		standard: StandardSections(),
		trauma:   TraumaSections(),
	}
}

// WithSections returns a composer using custom section lists.
func WithSections(standard, trauma []Section) *Composer {
	return &Composer{standard: standard, trauma: trauma}
}

var defaultComposer = NewComposer()

// Compose renders s with the default composer.
func Compose(s *SoapState) string {
	return defaultComposer.Compose(s)
}

// Compose renders the whole note from scratch. A nil state renders as an
// empty standard note.
func (c *Composer) Compose(s *SoapState) string {
	if s == nil {
		s = &SoapState{}
	}

	sections := c.standard
	if s.Mode == ModeTrauma {
		sections = c.trauma
	}

	blocks := make([]string, 0, len(sections)+1)
	for _, sec := range sections {
		lines := sec.Render(s)
		if len(lines) == 0 {
			lines = []string{Dash}
		}
		blocks = append(blocks, sec.Heading+"\n"+strings.Join(lines, "\n"))
	}
	if sig := signature(s.Author); sig != "" {
		blocks = append(blocks, sig)
	}
	return strings.Join(blocks, "\n\n")
}

func signature(a Author) string {
	name := strings.TrimSpace(a.Name)
	if name == "" {
		return ""
	}

	role := a.Role
	if role == "" {
		role = RoleAttending
	}

	lines := []string{"---", name, string(role)}
	if lic := strings.TrimSpace(a.License); lic != "" {
		lines[2] += " - " + lic
	}
	if sup := strings.TrimSpace(a.Supervisor); sup != "" && role.Supervised() {
		lines = append(lines, "Supervisionado por: "+sup)
	}
	return strings.Join(lines, "\n")
}

func orDefault(s, def string) string {
	if s = strings.TrimSpace(s); s == "" {
		return def
	}
	return s
}

// flag is a checkbox with the label it contributes when set.
type flag struct {
	on    bool
	label string
}

func checked(flags ...flag) []string {
	var out []string
	for _, f := range flags {
		if f.on {
			out = append(out, f.label)
		}
	}
	return out
}

func qualified(label, detail string) string {
	if d := strings.TrimSpace(detail); d != "" {
		return label + " (" + d + ")"
	}
	return label
}

func bullets(items []string) []string {
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = "• " + it
	}
	return out
}

func withUnit(v, unit string) string {
	if v = strings.TrimSpace(v); v == "" {
		return Dash
	}
	return v + unit
}
