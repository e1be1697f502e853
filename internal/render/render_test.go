package render

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/layout"
	"github.com/drfirst/go-clinidoc/pkg/idempotency"
)

type published struct {
	topic string
	key   string
	value []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
	err  error
}

func (f *fakePublisher) Publish(_ context.Context, topic, key string, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, published{topic: topic, key: key, value: value})
	return nil
}

func sampleState() *prescription.State {
	s := prescription.Default(time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC))
	s.Patient.Name = "Maria"
	s.AddMedication(prescription.Medication{Name: "Amoxicilina 500mg", Quantity: "21"})
	s.CustomInstructions = "Retornar se febre persistir."
	s.Certificate.Type = prescription.DocumentCertificate
	return s
}

func TestRequester_Enqueue(t *testing.T) {
	pub := &fakePublisher{}
	r := NewRequester(pub, "documents.render.requests")
	sess := auth.Session{DoctorID: "doc-1", Name: "Dra. Ana", License: "CRM 1"}

	req, err := r.Enqueue(context.Background(), sess, Request{State: sampleState(), Options: layout.JobOptions{Copies: 2}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.RequestID == "" || req.DoctorID != "doc-1" {
		t.Errorf("expected id and doctor assigned, got %+v", req)
	}
	if req.Issuer.Name != "Dra. Ana" {
		t.Errorf("expected issuer from session, got %+v", req.Issuer)
	}
	if len(pub.msgs) != 1 || pub.msgs[0].key != "doc-1" || pub.msgs[0].topic != "documents.render.requests" {
		t.Fatalf("unexpected publish %+v", pub.msgs)
	}

	if _, err := r.Enqueue(context.Background(), sess, Request{}); !errors.Is(err, ErrNilState) {
		t.Errorf("expected ErrNilState, got %v", err)
	}

	pub.err = errors.New("broker down")
	if _, err := r.Enqueue(context.Background(), sess, Request{State: sampleState()}); err == nil {
		t.Error("expected publish error")
	}
}

func TestBuild(t *testing.T) {
	job, err := Build(&Request{RequestID: "r1", DoctorID: "d1", State: sampleState(), Options: layout.JobOptions{Copies: 2}}, time.Now())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// one medication sheet and one instruction sheet per copy
	if job.PrintJob.PagesPerCopy != 2 || len(job.PrintJob.Sheets) != 4 {
		t.Errorf("unexpected layout: %d per copy, %d sheets", job.PrintJob.PagesPerCopy, len(job.PrintJob.Sheets))
	}
	if job.Certificate == nil {
		t.Error("expected certificate rendered")
	}
}

func TestProcessor_HandleOnce(t *testing.T) {
	pub := &fakePublisher{}
	inbox := idempotency.NewInbox(idempotency.NewMemoryBackend(), idempotency.DefaultInboxConfig(), nil)
	p := NewProcessor(inbox, pub, "documents.render.jobs", nil)

	payload, _ := json.Marshal(Request{RequestID: "r-42", DoctorID: "doc-1", State: sampleState()})

	first, err := p.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := p.Handle(context.Background(), payload)
	if err != nil {
		t.Fatalf("unexpected error on redelivery: %v", err)
	}

	if len(pub.msgs) != 1 {
		t.Errorf("expected exactly one job published, got %d", len(pub.msgs))
	}
	if first.RequestID != "r-42" || second.RequestID != "r-42" {
		t.Errorf("expected stored job returned on redelivery, got %q / %q", first.RequestID, second.RequestID)
	}
}

func TestProcessor_Malformed(t *testing.T) {
	inbox := idempotency.NewInbox(idempotency.NewMemoryBackend(), idempotency.DefaultInboxConfig(), nil)
	p := NewProcessor(inbox, &fakePublisher{}, "jobs", nil)

	if _, err := p.Handle(context.Background(), []byte("{")); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord, got %v", err)
	}
	if _, err := p.Handle(context.Background(), []byte(`{"doctorId":"d"}`)); !errors.Is(err, ErrInvalidRecord) {
		t.Errorf("expected ErrInvalidRecord for missing id, got %v", err)
	}
}

func TestProcessor_PublishFailureIsRetried(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker unavailable")}
	inbox := idempotency.NewInbox(idempotency.NewMemoryBackend(), idempotency.DefaultInboxConfig(), nil)
	p := NewProcessor(inbox, pub, "jobs", nil)

	payload, _ := json.Marshal(Request{RequestID: "r-1", DoctorID: "d", State: sampleState()})
	if _, err := p.Handle(context.Background(), payload); err == nil {
		t.Fatal("expected publish failure")
	}

	pub.err = nil
	if _, err := p.Handle(context.Background(), payload); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if len(pub.msgs) != 1 {
		t.Errorf("expected job published on retry, got %d", len(pub.msgs))
	}
}

func TestOversizedOptionsRejected(t *testing.T) {
	huge := layout.JobOptions{Copies: 1 << 62}

	pub := &fakePublisher{}
	r := NewRequester(pub, "documents.render.requests")
	if _, err := r.Enqueue(context.Background(), auth.Session{DoctorID: "doc-1"}, Request{State: sampleState(), Options: huge}); !errors.Is(err, layout.ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions from Enqueue, got %v", err)
	}
	if len(pub.msgs) != 0 {
		t.Errorf("expected nothing published, got %d", len(pub.msgs))
	}

	if _, err := Build(&Request{RequestID: "r1", State: sampleState(), Options: huge}, time.Now()); !errors.Is(err, layout.ErrInvalidOptions) {
		t.Errorf("expected ErrInvalidOptions from Build, got %v", err)
	}

	inbox := idempotency.NewInbox(idempotency.NewMemoryBackend(), idempotency.DefaultInboxConfig(), nil)
	p := NewProcessor(inbox, pub, "jobs", nil)
	payload, _ := json.Marshal(Request{RequestID: "r-huge", DoctorID: "d", State: sampleState(), Options: huge})
	_, err := p.Handle(context.Background(), payload)
	if !errors.Is(err, ErrInvalidRecord) || !idempotency.IsTerminal(err) {
		t.Errorf("expected terminal ErrInvalidRecord, got %v", err)
	}
}
