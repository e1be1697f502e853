package layout

import (
	"errors"
	"strings"
	"testing"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

func TestBuildPrintJob_CopiesAndOrder(t *testing.T) {
	state := &prescription.State{
		Medications:        meds(7),
		CustomInstructions: strings.Repeat("orientação\n", 30),
		PrintInstructions:  true,
	}

	job := BuildPrintJob(state, JobOptions{Copies: 2, Text: TextConfig{LinesPerPage: 22, CharsPerLine: 90}})

	// 7 meds -> 2 sheets; 31 lines (trailing empty) -> 2 sheets.
	if job.PagesPerCopy != 4 {
		t.Fatalf("expected 4 pages per copy, got %d", job.PagesPerCopy)
	}
	if len(job.Sheets) != 8 {
		t.Fatalf("expected 8 sheets, got %d", len(job.Sheets))
	}

	wantKinds := []SheetKind{SheetMedications, SheetMedications, SheetInstructions, SheetInstructions}
	for i, s := range job.Sheets {
		copyNo := i/4 + 1
		if s.Copy != copyNo || s.Number != i%4+1 || s.Total != 4 {
			t.Errorf("sheet %d: expected copy %d page %d/4, got copy %d page %d/%d", i, copyNo, i%4+1, s.Copy, s.Number, s.Total)
		}
		if s.Kind != wantKinds[i%4] {
			t.Errorf("sheet %d: expected kind %s, got %s", i, wantKinds[i%4], s.Kind)
		}
	}
	if job.Sheets[1].Medications.StartIndex != 6 {
		t.Errorf("expected second medication sheet to start at 6, got %d", job.Sheets[1].Medications.StartIndex)
	}
	if job.Options.Format != "a4" || job.Options.Scale != 2 || job.Options.ImageQuality != 0.98 {
		t.Errorf("unexpected render options %+v", job.Options)
	}
}

func TestBuildPrintJob_InstructionsToggle(t *testing.T) {
	state := &prescription.State{CustomInstructions: "Repouso relativo", PrintInstructions: false}

	job := BuildPrintJob(state, JobOptions{})
	if job.Copies != 1 || len(job.Sheets) != 1 || job.Sheets[0].Kind != SheetMedications {
		t.Errorf("expected a single empty medication sheet, got %+v", job.Sheets)
	}

	state.PrintInstructions = true
	job = BuildPrintJob(state, JobOptions{})
	if len(job.Sheets) != 2 || job.Sheets[1].Kind != SheetInstructions {
		t.Errorf("expected medication then instruction sheet, got %+v", job.Sheets)
	}
}

func TestBuildPrintJob_ClampsOversizedOptions(t *testing.T) {
	state := &prescription.State{
		Medications:        meds(120),
		CustomInstructions: strings.Repeat("x", 5000),
		PrintInstructions:  true,
	}

	job := BuildPrintJob(state, JobOptions{
		Copies:             1 << 62,
		MedicationsPerPage: 1 << 40,
		Text:               TextConfig{LinesPerPage: 1 << 40, CharsPerLine: 1 << 40},
	})
	if job.Copies != MaxCopies {
		t.Errorf("expected %d copies, got %d", MaxCopies, job.Copies)
	}
	// 120 meds at 50 per sheet -> 3 sheets; 5000 chars at 400 per line -> 13 lines, 1 sheet.
	if job.PagesPerCopy != 4 {
		t.Errorf("expected 4 pages per copy, got %d", job.PagesPerCopy)
	}
	if len(job.Sheets) != MaxCopies*job.PagesPerCopy {
		t.Errorf("expected %d sheets, got %d", MaxCopies*job.PagesPerCopy, len(job.Sheets))
	}
	if n := len(job.Sheets[0].Medications.Items); n != MaxMedicationsPerPage {
		t.Errorf("expected %d medications on the first sheet, got %d", MaxMedicationsPerPage, n)
	}
}

func TestJobOptions_Validate(t *testing.T) {
	tests := []struct {
		name string
		opts JobOptions
		ok   bool
	}{
		{"zero", JobOptions{}, true},
		{"at caps", JobOptions{Copies: MaxCopies, MedicationsPerPage: MaxMedicationsPerPage, Text: TextConfig{LinesPerPage: MaxLinesPerPage, CharsPerLine: MaxCharsPerLine}}, true},
		{"negative selects defaults", JobOptions{Copies: -3, MedicationsPerPage: -1}, true},
		{"copies", JobOptions{Copies: 1 << 62}, false},
		{"medications per page", JobOptions{MedicationsPerPage: MaxMedicationsPerPage + 1}, false},
		{"lines per page", JobOptions{Text: TextConfig{LinesPerPage: MaxLinesPerPage + 1}}, false},
		{"chars per line", JobOptions{Text: TextConfig{CharsPerLine: MaxCharsPerLine + 1}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.ok && err != nil {
				t.Errorf("expected valid options, got %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrInvalidOptions) {
				t.Errorf("expected ErrInvalidOptions, got %v", err)
			}
		})
	}
}
