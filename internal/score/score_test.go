package score

import (
	"math"
	"testing"
)

func TestCalculate(t *testing.T) {
	tests := []struct {
		name   string
		id     string
		in     Input
		score  float64
		interp string
	}{
		{"bmi normal", BMI, Input{"weight": 70.0, "height": 175.0}, 22.86, "Peso normal"},
		{"bmi meters", BMI, Input{"weight": 70.0, "height": 1.75}, 22.86, "Peso normal"},
		{"bmi string input", BMI, Input{"weight": "70", "height": "1,75"}, 22.86, "Peso normal"},
		{"bmi obesity III", BMI, Input{"weight": 120.0, "height": 170.0}, 41.52, "Obesidade Grau III"},
		{"bmi underweight", BMI, Input{"weight": 45.0, "height": 170.0}, 15.57, "Baixo peso"},
		{"bmi missing height", BMI, Input{"weight": 70.0}, 0, ""},

		{"crcl male", CockcroftGault, Input{"age": 60.0, "weight": 72.0, "creatinine": 1.0}, 80, "Estágio 2 (redução leve)"},
		{"crcl female", CockcroftGault, Input{"age": 60.0, "weight": 72.0, "creatinine": 1.0, "sex": "F"}, 68, "Estágio 2 (redução leve)"},
		{"crcl stage 5", CockcroftGault, Input{"age": 80.0, "weight": 50.0, "creatinine": 4.0}, 10.42, "Estágio 5 (falência renal)"},

		{"chads zero", CHA2DS2VASc, Input{"age": 40.0}, 0, "Baixo risco"},
		{"chads female only", CHA2DS2VASc, Input{"age": 40.0, "female": true}, 1, "Risco intermediário"},
		{"chads elderly stroke", CHA2DS2VASc, Input{"age": 80.0, "stroke": true, "hypertension": true}, 5, "Alto risco"},
		{"chads 65-74", CHA2DS2VASc, Input{"age": 70.0}, 1, "Risco intermediário"},

		{"hasbled low", HASBLED, Input{"hypertension": true, "elderly": true}, 2, "Baixo risco de sangramento"},
		{"hasbled high", HASBLED, Input{"hypertension": true, "elderly": true, "alcohol": "sim"}, 3, "Alto risco de sangramento"},

		{"child-pugh A", ChildPugh, Input{"bilirubin": 1.0, "albumin": 4.0, "inr": 1.0, "ascites": 1.0, "encephalopathy": 1.0}, 5, "Classe A (sobrevida em 1 ano: 100%)"},
		{"child-pugh B", ChildPugh, Input{"bilirubin": 2.5, "albumin": 3.0, "inr": 2.0, "ascites": 1.0, "encephalopathy": 1.0}, 8, "Classe B (sobrevida em 1 ano: 80%)"},
		{"child-pugh C", ChildPugh, Input{"bilirubin": 4.0, "albumin": 2.0, "inr": 2.5, "ascites": 3.0, "encephalopathy": 2.0}, 14, "Classe C (sobrevida em 1 ano: 45%)"},

		{"wells low with alternative", WellsDVT, Input{"cancer": true, "alternativeDiagnosis": true}, -1, "Baixa probabilidade"},
		{"wells moderate", WellsDVT, Input{"cancer": true, "bedridden": true}, 2, "Probabilidade moderada"},
		{"wells high", WellsDVT, Input{"cancer": true, "bedridden": true, "previousDVT": true}, 3, "Alta probabilidade"},

		{"curb age only", CURB65, Input{"age": 70.0}, 1, "Baixo Risco - Tratamento ambulatorial"},
		{"curb diastolic", CURB65, Input{"age": 70.0, "diastolic": 60.0}, 2, "Risco Moderado - Considerar internação curta"},
		{"curb high", CURB65, Input{"confusion": true, "urea": 50.0, "respiratoryRate": 32.0, "lowBP": true, "age": 80.0}, 5, "Alto Risco - Internação (considerar UTI se 4-5)"},

		{"meld floored", MELD, Input{"bilirubin": 0.5, "inr": 0.9, "creatinine": 0.6}, 6, "Mortalidade em 3 meses: 1.9%"},
		{"meld dialysis", MELD, Input{"bilirubin": 1.0, "inr": 1.0, "creatinine": 1.0, "dialysis": true}, 20, "Mortalidade em 3 meses: 19.6%"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Calculate(tt.id, tt.in)
			if got.Calculator != tt.id {
				t.Errorf("expected calculator %q, got %q", tt.id, got.Calculator)
			}
			if math.Abs(got.Score-tt.score) > 0.005 {
				t.Errorf("expected score %v, got %v", tt.score, got.Score)
			}
			if got.Interpretation != tt.interp {
				t.Errorf("expected %q, got %q", tt.interp, got.Interpretation)
			}
		})
	}
}

func TestCalculate_UnknownID(t *testing.T) {
	got := Calculate("apache-ii", Input{"age": 50.0})
	if got.Score != 0 || got.Interpretation != "" {
		t.Errorf("expected zero result, got %+v", got)
	}
}

func TestCalculate_NilInput(t *testing.T) {
	got := Calculate(MELD, nil)
	if got.Score != 6 {
		t.Errorf("expected floored MELD of 6, got %v", got.Score)
	}
}

func TestList(t *testing.T) {
	infos := List()
	if len(infos) != 8 {
		t.Fatalf("expected 8 calculators, got %d", len(infos))
	}
	for i := 1; i < len(infos); i++ {
		if infos[i-1].ID >= infos[i].ID {
			t.Errorf("expected sorted ids, got %q before %q", infos[i-1].ID, infos[i].ID)
		}
	}
	for _, info := range infos {
		if !Known(info.ID) {
			t.Errorf("expected %q to be known", info.ID)
		}
	}
}

func TestInput_Bool(t *testing.T) {
	in := Input{"a": true, "b": "sim", "c": 1.0, "d": "não", "e": 0.0}
	for key, want := range map[string]bool{"a": true, "b": true, "c": true, "d": false, "e": false, "missing": false} {
		if got := in.Bool(key); got != want {
			t.Errorf("%s: expected %v, got %v", key, want, got)
		}
	}
}
