package r5

// Patient represents a FHIR R5 Patient resource.
type Patient struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
	Address      []Address    `json:"address,omitempty"`
	Extension    []Extension  `json:"extension,omitempty"`
}

// GetFullName returns the first name text.
func (p *Patient) GetFullName() string {
	if len(p.Name) == 0 {
		return ""
	}
	return p.Name[0].Text
}

// Practitioner represents a FHIR R5 Practitioner resource.
type Practitioner struct {
	ResourceType string       `json:"resourceType"`
	ID           string       `json:"id,omitempty"`
	Identifier   []Identifier `json:"identifier,omitempty"`
	Name         []HumanName  `json:"name,omitempty"`
}

// GetLicense returns the practitioner's CRM.
func (p *Practitioner) GetLicense() string {
	for _, id := range p.Identifier {
		if id.System == SystemCRM {
			return id.Value
		}
	}
	return ""
}

// Organization represents a FHIR R5 Organization resource.
type Organization struct {
	ResourceType string         `json:"resourceType"`
	ID           string         `json:"id,omitempty"`
	Identifier   []Identifier   `json:"identifier,omitempty"`
	Name         string         `json:"name,omitempty"`
	Telecom      []ContactPoint `json:"telecom,omitempty"`
	Address      []Address      `json:"address,omitempty"`
}

// Condition represents a FHIR R5 Condition resource.
type Condition struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id,omitempty"`
	Code         *CodeableConcept `json:"code,omitempty"`
	Subject      Reference        `json:"subject"`
	RecordedDate string           `json:"recordedDate,omitempty"`
}

// Bundle is a FHIR R5 Bundle.
type Bundle struct {
	ResourceType string        `json:"resourceType"`
	ID           string        `json:"id,omitempty"`
	Meta         *Meta         `json:"meta,omitempty"`
	Type         string        `json:"type"` // document | collection | transaction | ...
	Timestamp    string        `json:"timestamp,omitempty"`
	Entry        []BundleEntry `json:"entry,omitempty"`
}

// BundleEntry holds one resource. Resource is one of the resource structs
// in this package.
type BundleEntry struct {
	FullURL  string `json:"fullUrl,omitempty"`
	Resource any    `json:"resource"`
}

// MedicationRequests returns the MedicationRequest entries in order.
func (b *Bundle) MedicationRequests() []*MedicationRequest {
	var out []*MedicationRequest
	for _, e := range b.Entry {
		if mr, ok := e.Resource.(*MedicationRequest); ok {
			out = append(out, mr)
		}
	}
	return out
}
