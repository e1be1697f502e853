package assist

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/pkg/circuitbreaker"
)

func TestNew_DisabledByDefault(t *testing.T) {
	a, err := New(Config{}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := a.SuggestMedications(context.Background(), SuggestRequest{Diagnosis: "IVAS"}); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
	if _, err := a.CheckInteractions(context.Background(), nil); !errors.Is(err, ErrDisabled) {
		t.Errorf("expected ErrDisabled, got %v", err)
	}
}

func TestHTTPClient_SuggestMedications(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/suggestions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer k" {
			t.Errorf("expected api key header")
		}
		var req SuggestRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Diagnosis != "Faringite" {
			t.Errorf("expected diagnosis, got %q", req.Diagnosis)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"medications": []map[string]string{{"id": "x", "name": "Amoxicilina 500mg"}},
		})
	}))
	defer srv.Close()

	a, err := New(Config{Enabled: true, BaseURL: srv.URL, APIKey: "k"}, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	meds, err := a.SuggestMedications(context.Background(), SuggestRequest{Diagnosis: "Faringite"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(meds) != 1 || meds[0].Name != "Amoxicilina 500mg" {
		t.Fatalf("unexpected suggestions %+v", meds)
	}
	if meds[0].ID != "" || !meds[0].AISuggested {
		t.Errorf("expected suggestion without id and flagged, got %+v", meds[0])
	}
}

func TestHTTPClient_CheckInteractionsNeedsTwoDrugs(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Write([]byte(`{"interactions":[{"medications":["Varfarina","Ibuprofeno"],"severity":"grave"}]}`))
	}))
	defer srv.Close()

	a, _ := New(Config{Enabled: true, BaseURL: srv.URL}, nil, nil)
	ctx := context.Background()

	got, err := a.CheckInteractions(ctx, []prescription.Medication{{Name: "Varfarina"}})
	if err != nil || len(got) != 0 || calls != 0 {
		t.Errorf("expected no call for a single drug, got %d calls", calls)
	}

	got, err = a.CheckInteractions(ctx, []prescription.Medication{{Name: "Varfarina"}, {Name: "Ibuprofeno"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 1 || got[0].Severity != "grave" {
		t.Errorf("unexpected interactions %+v", got)
	}
}

func TestHTTPClient_ServerErrorsOpenCircuit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := circuitbreaker.DefaultConfig("assist")
	cfg.ConsecutiveFailures = 1
	cb, _ := circuitbreaker.New(cfg, nil)
	c := NewHTTPClient(Config{Enabled: true, BaseURL: srv.URL}, cb, nil)
	ctx := context.Background()

	if _, err := c.SuggestMedications(ctx, SuggestRequest{}); err == nil {
		t.Fatal("expected upstream error")
	}
	if _, err := c.SuggestMedications(ctx, SuggestRequest{}); !errors.Is(err, circuitbreaker.ErrOpen) {
		t.Errorf("expected ErrOpen, got %v", err)
	}
}
