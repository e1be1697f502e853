package note

import (
	"fmt"
	"strconv"
	"strings"
)

// VerbalIntubated marks a verbal component that cannot be assessed.
const VerbalIntubated = "T"

// Glasgow holds the three coma scale components as entered. Eye is 1-4,
// Motor 1-6, Verbal 1-5 or "T".
type Glasgow struct {
	Eye    string `json:"eye"`
	Verbal string `json:"verbal"`
	Motor  string `json:"motor"`
}

// Intubated reports whether the verbal component is the "T" sentinel.
func (g Glasgow) Intubated() bool {
	return strings.EqualFold(strings.TrimSpace(g.Verbal), VerbalIntubated)
}

// Total sums the numeric components. Verbal is excluded when intubated.
// Components that are not integers count as zero.
func (g Glasgow) Total() int {
	total := component(g.Eye) + component(g.Motor)
	if !g.Intubated() {
		total += component(g.Verbal)
	}
	return total
}

// Display renders the total followed by the O/V/M breakdown, e.g.
// "14 (O:4 V:4 M:6)" or "8T (O:3 V:T M:5)".
func (g Glasgow) Display() string {
	verbal := componentLabel(g.Verbal)
	suffix := ""
	if g.Intubated() {
		verbal = VerbalIntubated
		suffix = VerbalIntubated
	}
	return fmt.Sprintf("%d%s (O:%s V:%s M:%s)",
		g.Total(), suffix, componentLabel(g.Eye), verbal, componentLabel(g.Motor))
}

func component(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0
	}
	return n
}

func componentLabel(s string) string {
	s = strings.TrimSpace(s)
	if _, err := strconv.Atoi(s); err != nil {
		return "-"
	}
	return s
}
