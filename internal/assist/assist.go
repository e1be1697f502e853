// Package assist exposes the optional AI helpers: medication suggestions
// for a diagnosis and a drug interaction check. The capability is off by
// default.
package assist

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

// ErrDisabled is returned by every call when assist is turned off.
var ErrDisabled = errors.New("assist features are disabled")

// SuggestRequest describes the patient context for suggestions.
type SuggestRequest struct {
	Diagnosis  string `json:"diagnosis"`
	ICDCode    string `json:"icdCode,omitempty"`
	PatientAge string `json:"patientAge,omitempty"`
	Pregnant   bool   `json:"pregnant,omitempty"`
	Pediatric  bool   `json:"pediatric,omitempty"`
}

// Interaction is one flagged drug pair.
type Interaction struct {
	Medications []string `json:"medications"`
	Severity    string   `json:"severity"`
	Description string   `json:"description"`
}

// Assistant is implemented by assist backends.
type Assistant interface {
	SuggestMedications(ctx context.Context, req SuggestRequest) ([]prescription.Medication, error)
	CheckInteractions(ctx context.Context, meds []prescription.Medication) ([]Interaction, error)
}

// Config selects the backend.
type Config struct {
	Enabled bool
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// New returns the configured assistant. A disabled config yields Disabled.
func New(cfg Config, breakers *circuitbreaker.Registry, logger *zap.Logger) (Assistant, error) {
	if !cfg.Enabled {
		return Disabled{}, nil
	}
	if breakers == nil {
		breakers = circuitbreaker.NewRegistry(logger)
	}
	cb, err := breakers.Get("assist")
	if err != nil {
		return nil, err
	}
	return NewHTTPClient(cfg, cb, logger), nil
}

// Disabled rejects every call.
type Disabled struct{}

func (Disabled) SuggestMedications(context.Context, SuggestRequest) ([]prescription.Medication, error) {
	return nil, ErrDisabled
}

func (Disabled) CheckInteractions(context.Context, []prescription.Medication) ([]Interaction, error) {
	return nil, ErrDisabled
}
