package assist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

// HTTPClient calls a remote assist service.
type HTTPClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
	breaker *circuitbreaker.Breaker
	logger  *zap.Logger
}

// NewHTTPClient creates a client guarded by breaker.
func NewHTTPClient(cfg Config, breaker *circuitbreaker.Breaker, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		breaker: breaker,
		logger:  logger,
	}
}

type suggestResponse struct {
	Medications []prescription.Medication `json:"medications"`
}

type interactionRequest struct {
	Medications []string `json:"medications"`
}

type interactionResponse struct {
	Interactions []Interaction `json:"interactions"`
}

// SuggestMedications asks the service for a starting medication list. The
// results carry no ids and are flagged as suggested.
func (c *HTTPClient) SuggestMedications(ctx context.Context, req SuggestRequest) ([]prescription.Medication, error) {
	var resp suggestResponse
	if err := c.post(ctx, "/v1/suggestions", req, &resp); err != nil {
		return nil, err
	}
	for i := range resp.Medications {
		resp.Medications[i].ID = ""
		resp.Medications[i].AISuggested = true
	}
	return resp.Medications, nil
}

// CheckInteractions sends the medication names for an interaction check.
func (c *HTTPClient) CheckInteractions(ctx context.Context, meds []prescription.Medication) ([]Interaction, error) {
	names := make([]string, 0, len(meds))
	for _, m := range meds {
		if n := strings.TrimSpace(m.Name); n != "" {
			names = append(names, n)
		}
	}
	if len(names) < 2 {
		return []Interaction{}, nil
	}

	var resp interactionResponse
	if err := c.post(ctx, "/v1/interactions", interactionRequest{Medications: names}, &resp); err != nil {
		return nil, err
	}
	return resp.Interactions, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}

	return c.breaker.Do(ctx, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return circuitbreaker.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.apiKey)
		}

		resp, err := c.http.Do(req)
		if err != nil {
			return fmt.Errorf("assist request: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			err := fmt.Errorf("assist %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(msg)))
			c.logger.Warn("assist call failed", zap.String("path", path), zap.Int("status", resp.StatusCode))
			if resp.StatusCode < 500 {
				return circuitbreaker.Permanent(err)
			}
			return err
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return circuitbreaker.Permanent(fmt.Errorf("decode assist response: %w", err))
		}
		return nil
	})
}
