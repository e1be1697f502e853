package note

import (
	"fmt"
	"strings"
)

// StandardSections returns the SOAP layout.
func StandardSections() []Section {
	return []Section{
		{Heading: "ANTECEDENTES", Render: renderAntecedents},
		{Heading: "SUBJETIVO", Render: renderSubjective},
		{Heading: "OBJETIVO", Render: renderObjective},
		{Heading: "AVALIAÇÃO", Render: renderAssessment},
		{Heading: "PLANO", Render: renderPlan},
	}
}

func renderAntecedents(s *SoapState) []string {
	n := s.standard()
	h := n.Habits

	habits := checked(
		flag{h.Smoking, qualified("Tabagismo", h.SmokingDetail)},
		flag{h.Alcohol, qualified("Etilismo", h.AlcoholDetail)},
		flag{h.Drugs, qualified("Drogas ilícitas", h.DrugsDetail)},
		flag{h.Sedentary, qualified("Sedentarismo", h.SedentaryDetail)},
	)
	habitLine := Denies
	if len(habits) > 0 {
		habitLine = strings.Join(habits, ", ")
	}

	return []string{
		"Comorbidades/Cirurgias: " + orDefault(n.Comorbidities, Denies),
		"Hábitos: " + habitLine,
		"Alergias: " + orDefault(n.Allergies, Denies),
	}
}

func renderSubjective(s *SoapState) []string {
	n := s.standard()
	lines := []string{
		"QP: " + orDefault(n.ChiefComplaint, NotInformed),
		"HDA: " + orDefault(n.HDA, NotInformed),
	}

	if socrates := socratesLine(n.Socrates); socrates != "" {
		lines = append(lines, "Dor: "+socrates)
	}

	d := n.Denied
	denied := checked(
		flag{d.Fever, "febre"},
		flag{d.Nausea, "náuseas"},
		flag{d.Vomiting, "vômitos"},
		flag{d.Diarrhea, "diarreia"},
		flag{d.Dyspnea, "dispneia"},
		flag{d.ChestPain, "dor torácica"},
		flag{d.Headache, "cefaleia"},
		flag{d.Syncope, "síncope"},
	)
	if len(denied) > 0 {
		lines = append(lines, "NEGA: "+strings.Join(denied, ", "))
	}
	return lines
}

func socratesLine(p Socrates) string {
	fields := []struct{ label, value string }{
		{"Local", p.Site},
		{"Início", p.Onset},
		{"Caráter", p.Character},
		{"Irradiação", p.Radiation},
		{"Sintomas associados", p.Associations},
		{"Evolução", p.TimeCourse},
		{"Fatores de piora/melhora", p.Exacerbating},
		{"Intensidade", p.Severity},
	}
	var parts []string
	for _, f := range fields {
		if v := strings.TrimSpace(f.value); v != "" {
			parts = append(parts, f.label+": "+v)
		}
	}
	return strings.Join(parts, "; ")
}

func renderObjective(s *SoapState) []string {
	n := s.standard()
	v := n.Vitals
	e := n.Exam

	vitals := fmt.Sprintf("PA: %s | FC: %s | FR: %s | Temp: %s | Sat: %s | HGT: %s | Glasgow: %s",
		withUnit(v.BP, " mmHg"),
		withUnit(v.HR, " bpm"),
		withUnit(v.RR, " irpm"),
		withUnit(v.Temp, " °C"),
		withUnit(v.SpO2, "%"),
		withUnit(v.Glucose, " mg/dL"),
		orDefault(v.Glasgow, Dash),
	)

	return []string{
		vitals,
		"Geral: " + orDefault(e.General, Dash),
		"ACV: " + orDefault(e.Cardio, Dash),
		"AR: " + orDefault(e.Resp, Dash),
		"ABD: " + orDefault(e.Abdomen, Dash),
		"Neuro: " + orDefault(e.Neuro, Dash),
		"Extremidades: " + orDefault(e.Limbs, Dash),
	}
}

func renderAssessment(s *SoapState) []string {
	return []string{orDefault(s.standard().Diagnosis, Undetermined)}
}

func renderPlan(s *SoapState) []string {
	n := s.standard()
	a := n.Actions

	var lines []string
	if plan := strings.TrimSpace(n.Plan); plan != "" {
		lines = append(lines, plan)
	}
	if a.Prescription {
		lines = append(lines, "Prescrição: "+orDefault(a.PrescriptionText, "conforme receituário"))
	}
	if a.Exams {
		lines = append(lines, "Exames solicitados: "+orDefault(a.ExamsText, NotInformed))
	}
	if a.Discharge {
		c := a.DischargeChecklist
		lines = append(lines, "Alta médica:")
		lines = append(lines, bullets(checked(
			flag{c.WarningSigns, "Orientado sobre sinais de alarme"},
			flag{c.PrescriptionExplained, "Receita entregue e explicada"},
			flag{c.CertificateDelivered, "Atestado entregue"},
			flag{c.FollowUp, "Retorno: " + orDefault(c.FollowUpDetail, "UBS de referência")},
		))...)
	}
	if a.Admission {
		lines = append(lines, "Internação: "+orDefault(a.AdmissionDestination, NotInformed))
	}
	if a.Reevaluate {
		lines = append(lines, "Reavaliação em: "+orDefault(a.ReevaluateIn, NotInformed))
	}
	return lines
}
