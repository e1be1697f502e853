package layout

import (
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
)

func meds(n int) []prescription.Medication {
	out := make([]prescription.Medication, n)
	for i := range out {
		out[i] = prescription.Medication{ID: fmt.Sprint(i), Name: fmt.Sprintf("Med %d", i+1)}
	}
	return out
}

func TestPaginateMedications_Empty(t *testing.T) {
	pages := PaginateMedications(nil, MedicationsPerPage)
	if len(pages) != 1 {
		t.Fatalf("expected exactly one page, got %d", len(pages))
	}
	if len(pages[0].Items) != 0 || pages[0].StartIndex != 1 {
		t.Errorf("expected empty page starting at 1, got %+v", pages[0])
	}
}

func TestPaginateMedications_Boundaries(t *testing.T) {
	cases := []struct {
		n      int
		sizes  []int
		starts []int
	}{
		{1, []int{1}, []int{1}},
		{5, []int{5}, []int{1}},
		{6, []int{5, 1}, []int{1, 6}},
		{12, []int{5, 5, 2}, []int{1, 6, 11}},
	}
	for _, tc := range cases {
		pages := PaginateMedications(meds(tc.n), 0)
		var sizes, starts []int
		for _, p := range pages {
			sizes = append(sizes, len(p.Items))
			starts = append(starts, p.StartIndex)
		}
		if !reflect.DeepEqual(sizes, tc.sizes) || !reflect.DeepEqual(starts, tc.starts) {
			t.Errorf("n=%d: expected sizes %v starts %v, got %v %v", tc.n, tc.sizes, tc.starts, sizes, starts)
		}
	}
}

func TestPaginateMedications_CoverageAndIdempotence(t *testing.T) {
	in := meds(17)
	first := PaginateMedications(in, 4)
	second := PaginateMedications(in, 4)
	if !reflect.DeepEqual(first, second) {
		t.Error("pagination is not deterministic")
	}

	var flat []prescription.Medication
	for i, p := range first {
		if i < len(first)-1 && len(p.Items) != 4 {
			t.Errorf("page %d is not full: %d items", i, len(p.Items))
		}
		if p.StartIndex != len(flat)+1 {
			t.Errorf("page %d: expected start %d, got %d", i, len(flat)+1, p.StartIndex)
		}
		flat = append(flat, p.Items...)
	}
	if !reflect.DeepEqual(flat, in) {
		t.Error("concatenated pages do not reproduce the input")
	}
}

func TestChunk_DoesNotAliasAcrossPages(t *testing.T) {
	pages := Chunk([]int{1, 2, 3, 4}, 2)
	pages[0].Items = append(pages[0].Items, 99)
	if pages[1].Items[0] != 3 {
		t.Errorf("appending to page 0 overwrote page 1: %v", pages[1].Items)
	}
}

func TestEstimateLines(t *testing.T) {
	cases := map[string]int{
		"":                       1,
		"curta":                  1,
		strings.Repeat("a", 90):  1,
		strings.Repeat("a", 91):  2,
		strings.Repeat("é", 180): 2,
	}
	for in, want := range cases {
		if got := EstimateLines(in, 90); got != want {
			t.Errorf("EstimateLines(len=%d): expected %d, got %d", len(in), want, got)
		}
	}
}

func TestPaginateText_Blank(t *testing.T) {
	for _, in := range []string{"", "   ", "\n\n"} {
		if pages := PaginateText(in, DefaultTextConfig()); len(pages) != 0 {
			t.Errorf("expected no pages for %q, got %d", in, len(pages))
		}
	}
}

func TestPaginateText_Packing(t *testing.T) {
	cfg := TextConfig{LinesPerPage: 5, CharsPerLine: 10}
	lines := []string{
		"linha 1",
		strings.Repeat("x", 25), // 3 wrapped lines
		"linha 3",
		"linha 4", // would make 6 > 5
		strings.Repeat("y", 80), // 8 > budget: own page
		"fim",
	}
	pages := PaginateText(strings.Join(lines, "\r\n"), cfg)

	want := [][]string{
		lines[0:3],
		lines[3:4],
		lines[4:5],
		lines[5:6],
	}
	if len(pages) != len(want) {
		t.Fatalf("expected %d pages, got %d: %+v", len(want), len(pages), pages)
	}
	var flat []string
	for i, p := range pages {
		if !reflect.DeepEqual(p.Lines, want[i]) {
			t.Errorf("page %d: expected %q, got %q", i, want[i], p.Lines)
		}
		flat = append(flat, p.Lines...)
	}
	if !reflect.DeepEqual(flat, lines) {
		t.Error("concatenated lines do not reproduce the input")
	}

	// Minimality: no page could take the first line of the next one.
	for i := 0; i < len(pages)-1; i++ {
		next := EstimateLines(pages[i+1].Lines[0], cfg.CharsPerLine)
		if pages[i].EstimatedLines+next <= cfg.LinesPerPage {
			t.Errorf("page %d could absorb the next line", i)
		}
	}
}
