package postgres

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestDecide(t *testing.T) {
	boom := errors.New("broker unavailable")

	tests := []struct {
		name       string
		retryCount int
		err        error
		maxRetries int
		want       disposition
	}{
		{"published", 0, nil, 5, relayed},
		{"published after failures", 4, nil, 5, relayed},
		{"first failure", 0, boom, 5, retry},
		{"last retry", 3, boom, 5, retry},
		{"exhausted", 4, boom, 5, deadLettered},
		{"unbounded retries", 100, boom, 0, retry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := decide(&OutboxEntry{RetryCount: tt.retryCount}, tt.err, tt.maxRetries)
			if got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestNewDeadLetter(t *testing.T) {
	created := time.Date(2026, 10, 19, 10, 0, 0, 0, time.UTC)
	entry := &OutboxEntry{
		AggregateID: "rec-1",
		EventType:   "record.saved",
		Topic:       "records.events",
		Payload:     json.RawMessage(`{"recordId":"rec-1"}`),
		RetryCount:  4,
		CreatedAt:   created,
	}

	body, err := newDeadLetter(entry, errors.New("timeout"))
	if err != nil {
		t.Fatal(err)
	}

	var dl deadLetter
	if err := json.Unmarshal(body, &dl); err != nil {
		t.Fatal(err)
	}
	if dl.OriginalTopic != "records.events" || dl.RetryCount != 5 || dl.LastError != "timeout" {
		t.Errorf("unexpected envelope %+v", dl)
	}
	if string(dl.Payload) != `{"recordId":"rec-1"}` {
		t.Errorf("expected the original payload, got %s", dl.Payload)
	}
	if !dl.CreatedAt.Equal(created) {
		t.Errorf("expected created_at %v, got %v", created, dl.CreatedAt)
	}
}

func TestNewRelay_Defaults(t *testing.T) {
	r := NewRelay(nil, nil, RelayConfig{}, nil)
	if r.config.BatchSize != 100 || r.config.PollInterval != 250*time.Millisecond {
		t.Errorf("expected defaults, got %+v", r.config)
	}
}
