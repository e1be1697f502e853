// Package score implements bedside clinical calculators. Every calculator
// is a pure function over a loosely typed input bag and never fails.
package score

import "sort"

// Calculator ids.
const (
	BMI            = "bmi"
	CockcroftGault = "cockcroft-gault"
	CHA2DS2VASc    = "cha2ds2-vasc"
	HASBLED        = "has-bled"
	ChildPugh      = "child-pugh"
	WellsDVT       = "wells-dvt"
	CURB65         = "curb-65"
	MELD           = "meld"
)

// Result is the outcome of one calculation.
type Result struct {
	Calculator     string  `json:"calculator"`
	Score          float64 `json:"score"`
	Interpretation string  `json:"interpretation"`
}

// Info describes a calculator for catalog listings.
type Info struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Inputs []string `json:"inputs"`
}

type calculator struct {
	info Info
	fn   func(Input) (float64, string)
}

var registry = map[string]calculator{
	BMI: {
		Info{BMI, "Índice de Massa Corporal", []string{"weight", "height"}},
		calcBMI,
	},
	CockcroftGault: {
		Info{CockcroftGault, "Clearance de Creatinina (Cockcroft-Gault)", []string{"age", "weight", "creatinine", "sex"}},
		calcCockcroftGault,
	},
	CHA2DS2VASc: {
		Info{CHA2DS2VASc, "CHA₂DS₂-VASc", []string{"age", "sex", "chf", "hypertension", "diabetes", "stroke", "vascular"}},
		calcCHA2DS2VASc,
	},
	HASBLED: {
		Info{HASBLED, "HAS-BLED", hasBledKeys},
		calcHASBLED,
	},
	ChildPugh: {
		Info{ChildPugh, "Child-Pugh", []string{"bilirubin", "albumin", "inr", "ascites", "encephalopathy"}},
		calcChildPugh,
	},
	WellsDVT: {
		Info{WellsDVT, "Wells (TVP)", append(append([]string{}, wellsKeys...), "alternativeDiagnosis")},
		calcWellsDVT,
	},
	CURB65: {
		Info{CURB65, "CURB-65", []string{"confusion", "urea", "respiratoryRate", "systolic", "diastolic", "lowBP", "age"}},
		calcCURB65,
	},
	MELD: {
		Info{MELD, "MELD", []string{"bilirubin", "inr", "creatinine", "dialysis"}},
		calcMELD,
	},
}

// Calculate runs the calculator registered under id. Unknown ids yield a
// zero score with an empty interpretation.
func Calculate(id string, in Input) Result {
	c, ok := registry[id]
	if !ok {
		return Result{Calculator: id}
	}
	if in == nil {
		in = Input{}
	}
	s, interp := c.fn(in)
	return Result{Calculator: id, Score: s, Interpretation: interp}
}

// List returns the calculator catalog sorted by id.
func List() []Info {
	out := make([]Info, 0, len(registry))
	for _, c := range registry {
		out = append(out, c.info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Known reports whether id names a calculator.
func Known(id string) bool {
	_, ok := registry[id]
	return ok
}
