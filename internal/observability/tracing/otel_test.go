package tracing

import (
	"context"
	"testing"
)

func TestInit_Disabled(t *testing.T) {
	p, err := Init(context.Background(), Config{ServiceName: "test"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Shutdown(context.Background()); err != nil {
		t.Errorf("expected no-op shutdown, got %v", err)
	}
}

func TestSampler(t *testing.T) {
	if got := sampler(1).Description(); got == "" {
		t.Error("expected sampler description")
	}
	if got := sampler(0).Description(); got != "AlwaysOffSampler" {
		t.Errorf("expected AlwaysOffSampler, got %s", got)
	}
}
