package note

var normalExam = map[ExamSystem]string{
	ExamGeneral: "BEG, corado, hidratado, acianótico, anictérico, afebril",
	ExamCardio:  "RCR 2T, BNF, sem sopros",
	ExamResp:    "MV+ bilateralmente, sem RA",
	ExamAbdomen: "Plano, flácido, RHA+, indolor à palpação, sem VMG",
	ExamNeuro:   "Vigil, orientado, sem déficits focais",
	ExamLimbs:   "Sem edemas, panturrilhas livres, pulsos presentes e simétricos",
}

// NormalExam returns the canned normal finding for a system, or "" for an
// unknown system.
func NormalExam(system ExamSystem) string {
	return normalExam[system]
}

// SetNormal fills one exam system with its normal finding.
func (e *Exam) SetNormal(system ExamSystem) {
	v := NormalExam(system)
	switch system {
	case ExamGeneral:
		e.General = v
	case ExamCardio:
		e.Cardio = v
	case ExamResp:
		e.Resp = v
	case ExamAbdomen:
		e.Abdomen = v
	case ExamNeuro:
		e.Neuro = v
	case ExamLimbs:
		e.Limbs = v
	}
}
