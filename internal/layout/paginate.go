// Package layout splits prescription content across fixed-size A4 sheets.
//
// Medication lists are chunked positionally; free text is packed by an
// estimate of wrapped lines. Both functions are total and deterministic.
package layout

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

const (
	// MedicationsPerPage is the number of medication entries per sheet.
	MedicationsPerPage = 5
	// LinesPerPage is the wrapped-line budget of an instructions sheet.
	LinesPerPage = 22
	// CharsPerLine approximates how many characters fit one printed line.
	CharsPerLine = 90
)

// Upper bounds for caller-supplied layout options.
const (
	MaxMedicationsPerPage = 50
	MaxLinesPerPage       = 200
	MaxCharsPerLine       = 400
)

// ErrInvalidOptions reports layout options outside the accepted range.
var ErrInvalidOptions = errors.New("invalid layout options")

// Page is a positional chunk of items.
type Page[T any] struct {
	Items []T `json:"items"`
	// StartIndex is the 1-based position of Items[0] in the full list.
	StartIndex int `json:"startIndex"`
}

// Chunk splits items into pages of at most perPage entries without
// reordering. An empty input yields no pages.
func Chunk[T any](items []T, perPage int) []Page[T] {
	if perPage <= 0 {
		perPage = 1
	}
	pages := make([]Page[T], 0, (len(items)+perPage-1)/perPage)
	for start := 0; start < len(items); start += perPage {
		end := min(start+perPage, len(items))
		pages = append(pages, Page[T]{Items: items[start:end:end], StartIndex: start + 1})
	}
	return pages
}

// MedicationPage is one medication sheet.
type MedicationPage = Page[prescription.Medication]

// PaginateMedications chunks meds for printing. An empty list still yields
// one empty page so the prescription header is printed. perPage is capped at
// MaxMedicationsPerPage.
func PaginateMedications(meds []prescription.Medication, perPage int) []MedicationPage {
	if perPage <= 0 {
		perPage = MedicationsPerPage
	}
	perPage = min(perPage, MaxMedicationsPerPage)
	pages := Chunk(meds, perPage)
	if len(pages) == 0 {
		pages = append(pages, MedicationPage{Items: []prescription.Medication{}, StartIndex: 1})
	}
	return pages
}

// TextConfig holds the text packing constants.
type TextConfig struct {
	LinesPerPage int `json:"linesPerPage"`
	CharsPerLine int `json:"charsPerLine"`
}

// DefaultTextConfig returns the A4 constants.
func DefaultTextConfig() TextConfig {
	return TextConfig{LinesPerPage: LinesPerPage, CharsPerLine: CharsPerLine}
}

func (c TextConfig) normalized() TextConfig {
	if c.LinesPerPage <= 0 {
		c.LinesPerPage = LinesPerPage
	}
	if c.CharsPerLine <= 0 {
		c.CharsPerLine = CharsPerLine
	}
	c.LinesPerPage = min(c.LinesPerPage, MaxLinesPerPage)
	c.CharsPerLine = min(c.CharsPerLine, MaxCharsPerLine)
	return c
}

// Validate rejects values above the caps. Zero and negative values select
// the defaults and are accepted.
func (c TextConfig) Validate() error {
	if c.LinesPerPage > MaxLinesPerPage {
		return fmt.Errorf("%w: linesPerPage %d exceeds %d", ErrInvalidOptions, c.LinesPerPage, MaxLinesPerPage)
	}
	if c.CharsPerLine > MaxCharsPerLine {
		return fmt.Errorf("%w: charsPerLine %d exceeds %d", ErrInvalidOptions, c.CharsPerLine, MaxCharsPerLine)
	}
	return nil
}

// TextPage is one instructions sheet.
type TextPage struct {
	Lines []string `json:"lines"`
	// EstimatedLines is the wrapped-line estimate of Lines.
	EstimatedLines int `json:"estimatedLines"`
}

// EstimateLines returns how many printed lines a logical line occupies.
// Empty lines still take one line.
func EstimateLines(line string, charsPerLine int) int {
	if charsPerLine <= 0 {
		charsPerLine = CharsPerLine
	}
	n := utf8.RuneCountInString(line)
	if n == 0 {
		return 1
	}
	return (n + charsPerLine - 1) / charsPerLine
}

// PaginateText packs text into pages by estimated wrapped lines. Blank text
// yields no pages; a line larger than the budget gets a page of its own.
func PaginateText(text string, cfg TextConfig) []TextPage {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	cfg = cfg.normalized()

	text = strings.ReplaceAll(text, "\r\n", "\n")
	var (
		pages   []TextPage
		current TextPage
	)
	for _, line := range strings.Split(text, "\n") {
		cost := EstimateLines(line, cfg.CharsPerLine)
		if len(current.Lines) > 0 && current.EstimatedLines+cost > cfg.LinesPerPage {
			pages = append(pages, current)
			current = TextPage{}
		}
		current.Lines = append(current.Lines, line)
		current.EstimatedLines += cost
	}
	if len(current.Lines) > 0 {
		pages = append(pages, current)
	}
	return pages
}
