// Package note composes the plain-text clinical note (SOAP or trauma XABCDE)
// from the structured form state.
package note

// Mode selects which payload of a SoapState is rendered.
type Mode string

const (
	ModeStandard Mode = "standard"
	ModeTrauma   Mode = "trauma"
)

// Role is the author's role as printed in the signature.
type Role string

const (
	RoleAttending Role = "Médico"
	RoleResident  Role = "Residente"
	RoleIntern    Role = "Interno"
)

// Supervised reports whether notes by this role carry a supervisor line.
func (r Role) Supervised() bool {
	return r == RoleResident || r == RoleIntern
}

// Author signs the note.
type Author struct {
	Name       string `json:"name"`
	Role       Role   `json:"role"`
	License    string `json:"license,omitempty"`
	Supervisor string `json:"supervisor,omitempty"`
}

// SoapState is the note form state. Mode tags the active payload; the
// inactive payload is kept so switching modes loses no data. A nil payload
// renders as its zero value.
type SoapState struct {
	Mode     Mode          `json:"mode"`
	Author   Author        `json:"author"`
	Standard *StandardNote `json:"standard,omitempty"`
	Trauma   *TraumaNote   `json:"trauma,omitempty"`
}

// DefaultSoapState returns an empty standard-mode note with a normal
// Glasgow score prefilled for the trauma survey.
func DefaultSoapState() *SoapState {
	return &SoapState{
		Mode:     ModeStandard,
		Standard: &StandardNote{},
		Trauma: &TraumaNote{
			D: Disability{Glasgow: Glasgow{Eye: "4", Verbal: "5", Motor: "6"}},
		},
	}
}

// SwitchMode changes the active payload, allocating it on first use.
func (s *SoapState) SwitchMode(m Mode) {
	s.Mode = m
	switch m {
	case ModeTrauma:
		if s.Trauma == nil {
			s.Trauma = &TraumaNote{}
		}
	default:
		s.Mode = ModeStandard
		if s.Standard == nil {
			s.Standard = &StandardNote{}
		}
	}
}

func (s *SoapState) standard() *StandardNote {
	if s.Standard == nil {
		return &StandardNote{}
	}
	return s.Standard
}

func (s *SoapState) trauma() *TraumaNote {
	if s.Trauma == nil {
		return &TraumaNote{}
	}
	return s.Trauma
}

// Habits are the lifestyle flags of the antecedents section.
type Habits struct {
	Smoking         bool   `json:"smoking"`
	SmokingDetail   string `json:"smokingDetail,omitempty"`
	Alcohol         bool   `json:"alcohol"`
	AlcoholDetail   string `json:"alcoholDetail,omitempty"`
	Drugs           bool   `json:"drugs"`
	DrugsDetail     string `json:"drugsDetail,omitempty"`
	Sedentary       bool   `json:"sedentary"`
	SedentaryDetail string `json:"sedentaryDetail,omitempty"`
}

// Socrates describes pain.
type Socrates struct {
	Site         string `json:"site"`
	Onset        string `json:"onset"`
	Character    string `json:"character"`
	Radiation    string `json:"radiation"`
	Associations string `json:"associations"`
	TimeCourse   string `json:"timeCourse"`
	Exacerbating string `json:"exacerbating"`
	Severity     string `json:"severity"`
}

// DeniedSymptoms are symptoms the patient explicitly denies.
type DeniedSymptoms struct {
	Fever     bool `json:"fever"`
	Nausea    bool `json:"nausea"`
	Vomiting  bool `json:"vomiting"`
	Diarrhea  bool `json:"diarrhea"`
	Dyspnea   bool `json:"dyspnea"`
	ChestPain bool `json:"chestPain"`
	Headache  bool `json:"headache"`
	Syncope   bool `json:"syncope"`
}

// Vitals are free-text vital signs.
type Vitals struct {
	BP      string `json:"bp"`
	HR      string `json:"hr"`
	RR      string `json:"rr"`
	Temp    string `json:"temp"`
	SpO2    string `json:"spo2"`
	Glucose string `json:"glucose"`
	Glasgow string `json:"glasgow"`
}

// ExamSystem identifies one line of the physical exam.
type ExamSystem string

const (
	ExamGeneral ExamSystem = "general"
	ExamCardio  ExamSystem = "cardio"
	ExamResp    ExamSystem = "resp"
	ExamAbdomen ExamSystem = "abdomen"
	ExamNeuro   ExamSystem = "neuro"
	ExamLimbs   ExamSystem = "limbs"
)

// Exam holds the physical exam findings per system.
type Exam struct {
	General string `json:"general"`
	Cardio  string `json:"cardio"`
	Resp    string `json:"resp"`
	Abdomen string `json:"abdomen"`
	Neuro   string `json:"neuro"`
	Limbs   string `json:"limbs"`
}

// Discharge is the discharge checklist.
type Discharge struct {
	WarningSigns          bool   `json:"warningSigns"`
	PrescriptionExplained bool   `json:"prescriptionExplained"`
	CertificateDelivered  bool   `json:"certificateDelivered"`
	FollowUp              bool   `json:"followUp"`
	FollowUpDetail        string `json:"followUpDetail,omitempty"`
}

// PlanActions are the structured plan blocks; each renders only when its
// flag is set.
type PlanActions struct {
	Prescription         bool      `json:"prescription"`
	PrescriptionText     string    `json:"prescriptionText,omitempty"`
	Exams                bool      `json:"exams"`
	ExamsText            string    `json:"examsText,omitempty"`
	Discharge            bool      `json:"discharge"`
	DischargeChecklist   Discharge `json:"dischargeChecklist"`
	Admission            bool      `json:"admission"`
	AdmissionDestination string    `json:"admissionDestination,omitempty"`
	Reevaluate           bool      `json:"reevaluate"`
	ReevaluateIn         string    `json:"reevaluateIn,omitempty"`
}

// StandardNote is the SOAP payload.
type StandardNote struct {
	Comorbidities  string         `json:"comorbidities"`
	Habits         Habits         `json:"habits"`
	Allergies      string         `json:"allergies"`
	ChiefComplaint string         `json:"chiefComplaint"`
	HDA            string         `json:"hda"`
	Socrates       Socrates       `json:"socrates"`
	Denied         DeniedSymptoms `json:"denied"`
	Vitals         Vitals         `json:"vitals"`
	Exam           Exam           `json:"exam"`
	Diagnosis      string         `json:"diagnosis"`
	Plan           string         `json:"plan"`
	Actions        PlanActions    `json:"actions"`
}

// PreHospital lists interventions done before arrival.
type PreHospital struct {
	CervicalCollar bool   `json:"cervicalCollar"`
	Backboard      bool   `json:"backboard"`
	IVAccess       bool   `json:"ivAccess"`
	Oxygen         bool   `json:"oxygen"`
	Tourniquet     bool   `json:"tourniquet"`
	Other          string `json:"other,omitempty"`
}

// Hemorrhage is the X step: exsanguinating hemorrhage control.
type Hemorrhage struct {
	Tourniquet     bool `json:"tourniquet"`
	DirectPressure bool `json:"directPressure"`
	Packing        bool `json:"packing"`
	PelvicBinder   bool `json:"pelvicBinder"`
}

// Airway is the A step. Status is one of "Pérvia", "Obstruída",
// "Via aérea definitiva".
type Airway struct {
	Status             string `json:"status"`
	CervicalProtection bool   `json:"cervicalProtection"`
}

// Breathing is the B step.
type Breathing struct {
	BreathSounds string `json:"breathSounds"`
	Expansion    string `json:"expansion"`
	RR           string `json:"rr"`
	SpO2         string `json:"spo2"`
}

// Circulation is the C step.
type Circulation struct {
	Pulses string `json:"pulses"`
	Skin   string `json:"skin"`
	FAST   string `json:"fast"`
	BP     string `json:"bp"`
	HR     string `json:"hr"`
}

// Disability is the D step.
type Disability struct {
	Glasgow Glasgow `json:"glasgow"`
	Pupils  string  `json:"pupils"`
}

// Procedures are invasive procedures performed in the trauma bay.
type Procedures struct {
	Intubation      bool   `json:"intubation"`
	ChestDrain      bool   `json:"chestDrain"`
	CentralLine     bool   `json:"centralLine"`
	UrinaryCatheter bool   `json:"urinaryCatheter"`
	GastricTube     bool   `json:"gastricTube"`
	Other           string `json:"other,omitempty"`
}

// ImmediateActions become "Realizo ..." sentences.
type ImmediateActions struct {
	Analgesia      bool `json:"analgesia"`
	Fluids         bool `json:"fluids"`
	Transfusion    bool `json:"transfusion"`
	Immobilization bool `json:"immobilization"`
	Tetanus        bool `json:"tetanus"`
	Antibiotics    bool `json:"antibiotics"`
	Imaging        bool `json:"imaging"`
	SurgeryConsult bool `json:"surgeryConsult"`
}

// TraumaNote is the trauma payload.
type TraumaNote struct {
	Mechanism    string           `json:"mechanism"`
	PreHospital  PreHospital      `json:"preHospital"`
	X            Hemorrhage       `json:"x"`
	A            Airway           `json:"a"`
	B            Breathing        `json:"b"`
	C            Circulation      `json:"c"`
	D            Disability       `json:"d"`
	E            string           `json:"e"`
	Procedures   Procedures       `json:"procedures"`
	Diagnosis    string           `json:"diagnosis"`
	Actions      ImmediateActions `json:"actions"`
	ActionsNote  string           `json:"actionsNote,omitempty"`
	Prescription string           `json:"prescription,omitempty"`
	Disposition  string           `json:"disposition"`
}
