package layout

import (
	"fmt"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

// SheetKind tells the renderer which template to paint.
type SheetKind string

const (
	SheetMedications  SheetKind = "medications"
	SheetInstructions SheetKind = "instructions"
)

// RenderOptions is the fixed option set handed to the PDF renderer.
type RenderOptions struct {
	Format       string  `json:"format"`
	Orientation  string  `json:"orientation"`
	Scale        float64 `json:"scale"`
	ImageType    string  `json:"imageType"`
	ImageQuality float64 `json:"imageQuality"`
	MarginMM     float64 `json:"marginMm"`
}

// DefaultRenderOptions returns A4 portrait at 2x scale, JPEG quality 0.98.
func DefaultRenderOptions() RenderOptions {
	return RenderOptions{
		Format:       "a4",
		Orientation:  "portrait",
		Scale:        2,
		ImageType:    "jpeg",
		ImageQuality: 0.98,
	}
}

// Sheet is one physical page of a print job.
type Sheet struct {
	Kind SheetKind `json:"kind"`
	// Copy is the 1-based copy this sheet belongs to.
	Copy int `json:"copy"`
	// Number is the 1-based page number within the copy.
	Number      int             `json:"number"`
	Total       int             `json:"total"`
	Medications *MedicationPage `json:"medications,omitempty"`
	Text        *TextPage       `json:"text,omitempty"`
}

// MaxCopies bounds the copies of one print job.
const MaxCopies = 20

// JobOptions configures BuildPrintJob. Zero values use the package defaults.
type JobOptions struct {
	Copies             int        `json:"copies"`
	MedicationsPerPage int        `json:"medicationsPerPage"`
	Text               TextConfig `json:"text"`
}

// Validate rejects options above MaxCopies, MaxMedicationsPerPage or the
// text caps. Callers taking options from a request check them before
// building; BuildPrintJob itself clamps.
func (o JobOptions) Validate() error {
	if o.Copies > MaxCopies {
		return fmt.Errorf("%w: copies %d exceeds %d", ErrInvalidOptions, o.Copies, MaxCopies)
	}
	if o.MedicationsPerPage > MaxMedicationsPerPage {
		return fmt.Errorf("%w: medicationsPerPage %d exceeds %d", ErrInvalidOptions, o.MedicationsPerPage, MaxMedicationsPerPage)
	}
	return o.Text.Validate()
}

// PrintJob is the ordered sheet list for a prescription.
type PrintJob struct {
	Copies       int           `json:"copies"`
	PagesPerCopy int           `json:"pagesPerCopy"`
	Sheets       []Sheet       `json:"sheets"`
	Options      RenderOptions `json:"options"`
}

// BuildPrintJob lays out state once per copy: medication sheets first, then
// instruction sheets when instructions are set to print. Copies is clamped
// to [1, MaxCopies].
func BuildPrintJob(state *prescription.State, opts JobOptions) *PrintJob {
	copies := min(max(opts.Copies, 1), MaxCopies)

	medPages := PaginateMedications(state.Medications, opts.MedicationsPerPage)
	var textPages []TextPage
	if state.PrintInstructions {
		textPages = PaginateText(state.CustomInstructions, opts.Text)
	}
	perCopy := len(medPages) + len(textPages)

	job := &PrintJob{
		Copies:       copies,
		PagesPerCopy: perCopy,
		Sheets:       make([]Sheet, 0, copies*perCopy),
		Options:      DefaultRenderOptions(),
	}
	for c := 1; c <= copies; c++ {
		n := 0
		for i := range medPages {
			n++
			job.Sheets = append(job.Sheets, Sheet{
				Kind: SheetMedications, Copy: c, Number: n, Total: perCopy,
				Medications: &medPages[i],
			})
		}
		for i := range textPages {
			n++
			job.Sheets = append(job.Sheets, Sheet{
				Kind: SheetInstructions, Copy: c, Number: n, Total: perCopy,
				Text: &textPages[i],
			})
		}
	}
	return job
}
