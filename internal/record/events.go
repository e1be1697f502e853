package record

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of patient-record event
type EventType string

const (
	EventRecordSaved     EventType = "PatientRecordSaved"
	EventRecordFavorited EventType = "PatientRecordFavorited"
	EventRecordDeleted   EventType = "PatientRecordDeleted"
)

// Event is published through the outbox when a patient record changes.
type Event struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     EventType       `json:"event_type"`
	EventData     json.RawMessage `json:"event_data"`
	Timestamp     time.Time       `json:"timestamp"`
	DoctorID      string          `json:"doctor_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
}

// NewEvent creates a new event
func NewEvent(recordID, doctorID string, eventType EventType, data any) (*Event, error) {
	eventData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:            uuid.New().String(),
		AggregateID:   recordID,
		AggregateType: "PatientRecord",
		EventType:     eventType,
		EventData:     eventData,
		Timestamp:     time.Now().UTC(),
		DoctorID:      doctorID,
	}, nil
}

// RecordSavedData is the payload of EventRecordSaved.
type RecordSavedData struct {
	RecordID          string `json:"record_id"`
	RecordType        string `json:"record_type"`
	Date              string `json:"date"`
	MedicationCount   int    `json:"medication_count"`
	MedicationSummary string `json:"medication_summary"`
}

// RecordFavoritedData is the payload of EventRecordFavorited.
type RecordFavoritedData struct {
	RecordID string `json:"record_id"`
	Favorite bool   `json:"favorite"`
}

// RecordDeletedData is the payload of EventRecordDeleted.
type RecordDeletedData struct {
	RecordID  string    `json:"record_id"`
	DeletedAt time.Time `json:"deleted_at"`
}

// WithCorrelation sets the request correlation id.
func (e *Event) WithCorrelation(id string) *Event {
	e.CorrelationID = id
	return e
}
