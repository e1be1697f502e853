package note

import "testing"

func TestGlasgow_Display(t *testing.T) {
	tests := []struct {
		name  string
		g     Glasgow
		total int
		want  string
	}{
		{"intubated", Glasgow{Eye: "3", Verbal: "T", Motor: "5"}, 8, "8T (O:3 V:T M:5)"},
		{"numeric", Glasgow{Eye: "4", Verbal: "4", Motor: "6"}, 14, "14 (O:4 V:4 M:6)"},
		{"lowercase sentinel", Glasgow{Eye: "1", Verbal: "t", Motor: "1"}, 2, "2T (O:1 V:T M:1)"},
		{"blank", Glasgow{}, 0, "0 (O:- V:- M:-)"},
		{"garbage component", Glasgow{Eye: "x", Verbal: "5", Motor: "6"}, 11, "11 (O:- V:5 M:6)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.g.Total(); got != tt.total {
				t.Errorf("expected total %d, got %d", tt.total, got)
			}
			if got := tt.g.Display(); got != tt.want {
				t.Errorf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestGlasgow_RecomputedOnChange(t *testing.T) {
	g := Glasgow{Eye: "4", Verbal: "5", Motor: "6"}
	if g.Total() != 15 {
		t.Fatalf("expected 15, got %d", g.Total())
	}

	g.Verbal = VerbalIntubated
	if got := g.Display(); got != "10T (O:4 V:T M:6)" {
		t.Errorf("expected intubated display, got %q", got)
	}
}
