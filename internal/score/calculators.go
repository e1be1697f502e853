package score

import (
	"fmt"
	"math"
)

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

func calcBMI(in Input) (float64, string) {
	weight := in.Number("weight")
	height := in.Number("height")
	if height >= 3 {
		height /= 100
	}
	if weight <= 0 || height <= 0 {
		return 0, ""
	}

	bmi := weight / (height * height)
	var label string
	switch {
	case bmi < 18.5:
		label = "Baixo peso"
	case bmi < 24.9:
		label = "Peso normal"
	case bmi < 29.9:
		label = "Sobrepeso"
	case bmi < 34.9:
		label = "Obesidade Grau I"
	case bmi < 39.9:
		label = "Obesidade Grau II"
	default:
		label = "Obesidade Grau III"
	}
	return round(bmi, 2), label
}

func calcCockcroftGault(in Input) (float64, string) {
	creatinine := in.Number("creatinine")
	if creatinine <= 0 {
		return 0, ""
	}

	crcl := ((140 - in.Number("age")) * in.Number("weight")) / (72 * creatinine)
	if in.Female() {
		crcl *= 0.85
	}

	var stage string
	switch {
	case crcl >= 90:
		stage = "Estágio 1 (normal ou elevada)"
	case crcl >= 60:
		stage = "Estágio 2 (redução leve)"
	case crcl >= 30:
		stage = "Estágio 3 (redução moderada)"
	case crcl >= 15:
		stage = "Estágio 4 (redução grave)"
	default:
		stage = "Estágio 5 (falência renal)"
	}
	return round(crcl, 2), stage
}

func calcCHA2DS2VASc(in Input) (float64, string) {
	var s float64
	switch age := in.Number("age"); {
	case age >= 75:
		s += 2
	case age >= 65:
		s++
	}
	if in.Female() {
		s++
	}
	s += in.count([]string{"chf", "hypertension", "diabetes", "vascular"})
	if in.Bool("stroke") {
		s += 2
	}

	switch {
	case s == 0:
		return s, "Baixo risco"
	case s == 1:
		return s, "Risco intermediário"
	default:
		return s, "Alto risco"
	}
}

var hasBledKeys = []string{
	"hypertension", "renal", "liver", "stroke", "bleeding",
	"labileINR", "elderly", "drugs", "alcohol",
}

func calcHASBLED(in Input) (float64, string) {
	s := in.count(hasBledKeys)
	if s >= 3 {
		return s, "Alto risco de sangramento"
	}
	return s, "Baixo risco de sangramento"
}

func calcChildPugh(in Input) (float64, string) {
	var s float64

	switch bili := in.Number("bilirubin"); {
	case bili < 2:
		s++
	case bili <= 3:
		s += 2
	default:
		s += 3
	}

	switch alb := in.Number("albumin"); {
	case alb > 3.5:
		s++
	case alb >= 2.8:
		s += 2
	default:
		s += 3
	}

	switch inr := in.Number("inr"); {
	case inr < 1.7:
		s++
	case inr <= 2.3:
		s += 2
	default:
		s += 3
	}

	s += in.Number("ascites") + in.Number("encephalopathy")

	switch {
	case s <= 6:
		return s, "Classe A (sobrevida em 1 ano: 100%)"
	case s <= 9:
		return s, "Classe B (sobrevida em 1 ano: 80%)"
	default:
		return s, "Classe C (sobrevida em 1 ano: 45%)"
	}
}

var wellsKeys = []string{
	"cancer", "paralysis", "bedridden", "tenderness", "legSwollen",
	"calfSwelling", "pittingEdema", "collateralVeins", "previousDVT",
}

func calcWellsDVT(in Input) (float64, string) {
	s := in.count(wellsKeys)
	if in.Bool("alternativeDiagnosis") {
		s -= 2
	}

	switch {
	case s <= 0:
		return s, "Baixa probabilidade"
	case s <= 2:
		return s, "Probabilidade moderada"
	default:
		return s, "Alta probabilidade"
	}
}

func calcCURB65(in Input) (float64, string) {
	var s float64
	if in.Bool("confusion") {
		s++
	}
	if in.Number("urea") > 42.8 {
		s++
	}
	if in.Number("respiratoryRate") >= 30 {
		s++
	}
	if lowBP(in) {
		s++
	}
	if in.Number("age") >= 65 {
		s++
	}

	switch {
	case s <= 1:
		return s, "Baixo Risco - Tratamento ambulatorial"
	case s == 2:
		return s, "Risco Moderado - Considerar internação curta"
	default:
		return s, "Alto Risco - Internação (considerar UTI se 4-5)"
	}
}

// lowBP accepts either the precomputed flag or the pressure readings.
// Missing readings do not count as hypotension.
func lowBP(in Input) bool {
	if in.Bool("lowBP") {
		return true
	}
	if _, ok := in["systolic"]; ok {
		if sys := in.Number("systolic"); sys > 0 && sys < 90 {
			return true
		}
	}
	if _, ok := in["diastolic"]; ok {
		if dia := in.Number("diastolic"); dia > 0 && dia <= 60 {
			return true
		}
	}
	return false
}

func calcMELD(in Input) (float64, string) {
	bili := math.Max(in.Number("bilirubin"), 1)
	inr := math.Max(in.Number("inr"), 1)
	creat := math.Max(in.Number("creatinine"), 1)
	if in.Bool("dialysis") {
		creat = 4
	}

	meld := math.Round(3.78*math.Log(bili) + 11.2*math.Log(inr) + 9.57*math.Log(creat) + 6.43)

	var mortality float64
	switch {
	case meld >= 40:
		mortality = 71.3
	case meld >= 30:
		mortality = 52.6
	case meld >= 20:
		mortality = 19.6
	case meld >= 10:
		mortality = 6.0
	default:
		mortality = 1.9
	}
	return meld, fmt.Sprintf("Mortalidade em 3 meses: %.1f%%", mortality)
}
