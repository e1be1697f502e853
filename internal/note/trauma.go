package note

import (
	"strings"
)

// TraumaSections returns the primary survey layout.
func TraumaSections() []Section {
	return []Section{
		{Heading: "MECANISMO DO TRAUMA", Render: renderMechanism},
		{Heading: "AVALIAÇÃO PRIMÁRIA (XABCDE)", Render: renderSurvey},
		{Heading: "PROCEDIMENTOS", Render: renderProcedures},
		{Heading: "HIPÓTESE DIAGNÓSTICA", Render: renderTraumaDiagnosis},
		{Heading: "CONDUTA", Render: renderTraumaPlan},
	}
}

func renderMechanism(s *SoapState) []string {
	t := s.trauma()
	p := t.PreHospital

	lines := []string{orDefault(t.Mechanism, NotInformed)}

	pre := checked(
		flag{p.CervicalCollar, "Colar cervical"},
		flag{p.Backboard, "Prancha rígida"},
		flag{p.IVAccess, "Acesso venoso periférico"},
		flag{p.Oxygen, "Oxigenoterapia"},
		flag{p.Tourniquet, "Torniquete"},
		flag{strings.TrimSpace(p.Other) != "", strings.TrimSpace(p.Other)},
	)
	if len(pre) == 0 {
		return append(lines, "Pré-hospitalar: nenhum atendimento referido")
	}
	lines = append(lines, "Pré-hospitalar:")
	return append(lines, bullets(pre)...)
}

func renderSurvey(s *SoapState) []string {
	t := s.trauma()

	x := checked(
		flag{t.X.Tourniquet, "torniquete"},
		flag{t.X.DirectPressure, "compressão direta"},
		flag{t.X.Packing, "tamponamento"},
		flag{t.X.PelvicBinder, "cinta pélvica"},
	)
	xLine := "Sem hemorragia exsanguinante"
	if len(x) > 0 {
		xLine = "Controle de hemorragia: " + strings.Join(x, ", ")
	}

	cervical := "sem proteção cervical"
	if t.A.CervicalProtection {
		cervical = "com proteção cervical"
	}

	return []string{
		"X: " + xLine,
		"A: " + orDefault(t.A.Status, "Não avaliada") + ", " + cervical,
		"B: MV " + orDefault(t.B.BreathSounds, Dash) +
			"; Expansibilidade " + orDefault(t.B.Expansion, Dash) +
			"; FR: " + withUnit(t.B.RR, " irpm") +
			"; Sat: " + withUnit(t.B.SpO2, "%"),
		"C: Pulsos " + orDefault(t.C.Pulses, Dash) +
			"; Pele " + orDefault(t.C.Skin, Dash) +
			"; FAST " + orDefault(t.C.FAST, Dash) +
			"; PA: " + withUnit(t.C.BP, " mmHg") +
			"; FC: " + withUnit(t.C.HR, " bpm"),
		"D: Glasgow " + t.D.Glasgow.Display() + "; Pupilas " + orDefault(t.D.Pupils, Dash),
		"E: " + orDefault(t.E, NotInformed),
	}
}

func renderProcedures(s *SoapState) []string {
	p := s.trauma().Procedures
	done := checked(
		flag{p.Intubation, "Intubação orotraqueal"},
		flag{p.ChestDrain, "Drenagem torácica"},
		flag{p.CentralLine, "Acesso venoso central"},
		flag{p.UrinaryCatheter, "Sondagem vesical"},
		flag{p.GastricTube, "Sondagem gástrica"},
		flag{strings.TrimSpace(p.Other) != "", strings.TrimSpace(p.Other)},
	)
	if len(done) == 0 {
		return []string{"Nenhum procedimento invasivo"}
	}
	return bullets(done)
}

func renderTraumaDiagnosis(s *SoapState) []string {
	return []string{orDefault(s.trauma().Diagnosis, Undetermined)}
}

func renderTraumaPlan(s *SoapState) []string {
	t := s.trauma()
	a := t.Actions

	lines := checked(
		flag{a.Analgesia, "Realizo analgesia."},
		flag{a.Fluids, "Realizo reposição volêmica."},
		flag{a.Transfusion, "Realizo hemotransfusão."},
		flag{a.Immobilization, "Realizo imobilização."},
		flag{a.Tetanus, "Realizo profilaxia antitetânica."},
		flag{a.Antibiotics, "Realizo antibioticoprofilaxia."},
		flag{a.Imaging, "Realizo solicitação de exames de imagem."},
		flag{a.SurgeryConsult, "Realizo contato com a equipe cirúrgica."},
	)
	if note := strings.TrimSpace(t.ActionsNote); note != "" {
		lines = append(lines, note)
	}
	if rx := strings.TrimSpace(t.Prescription); rx != "" {
		lines = append(lines, "Prescrição: "+rx)
	}
	return append(lines, "Destino: "+orDefault(t.Disposition, NotInformed))
}
