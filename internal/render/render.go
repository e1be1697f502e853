// Package render moves print requests through the broker: the API enqueues
// a Request, the render worker lays it out and publishes a Job for the
// external PDF renderer.
package render

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/auth"
	"github.com/drfirst/go-clinidoc/internal/certificate"
	"github.com/drfirst/go-clinidoc/internal/domain/prescription"
	"github.com/drfirst/go-clinidoc/internal/layout"
	"github.com/drfirst/go-clinidoc/pkg/idempotency"
)

var (
	ErrNilState      = errors.New("render request has no prescription state")
	ErrInvalidRecord = errors.New("render request is malformed")
)

// Request asks for a prescription to be laid out and rendered.
type Request struct {
	RequestID   string              `json:"requestId"`
	DoctorID    string              `json:"doctorId"`
	State       *prescription.State `json:"state"`
	Options     layout.JobOptions   `json:"options"`
	Issuer      certificate.Issuer  `json:"issuer"`
	RequestedAt time.Time           `json:"requestedAt"`
}

// Job is the laid-out document handed to the PDF renderer.
type Job struct {
	RequestID   string                `json:"requestId"`
	DoctorID    string                `json:"doctorId"`
	PrintJob    *layout.PrintJob      `json:"printJob"`
	Certificate *certificate.Document `json:"certificate,omitempty"`
	BuiltAt     time.Time             `json:"builtAt"`
}

// Publisher sends a message to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Requester enqueues render requests.
type Requester struct {
	pub   Publisher
	topic string
	now   func() time.Time
}

// NewRequester publishes requests to topic.
func NewRequester(pub Publisher, topic string) *Requester {
	return &Requester{pub: pub, topic: topic, now: time.Now}
}

// Enqueue publishes a request keyed by doctor and returns it with its id
// assigned. A caller-supplied RequestID is kept so retries deduplicate.
func (r *Requester) Enqueue(ctx context.Context, sess auth.Session, req Request) (*Request, error) {
	if req.State == nil {
		return nil, ErrNilState
	}
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}
	if req.RequestID == "" {
		req.RequestID = uuid.New().String()
	}
	req.DoctorID = sess.DoctorID
	if req.Issuer.Name == "" {
		req.Issuer = certificate.Issuer{Name: sess.Name, License: sess.License}
	}
	req.RequestedAt = r.now().UTC()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode render request: %w", err)
	}
	if err := r.pub.Publish(ctx, r.topic, req.DoctorID, body); err != nil {
		return nil, fmt.Errorf("enqueue render request: %w", err)
	}
	return &req, nil
}

// Build lays out the request. It is pure; the same request always yields
// the same sheets.
func Build(req *Request, now time.Time) (*Job, error) {
	if req.State == nil {
		return nil, ErrNilState
	}
	if err := req.Options.Validate(); err != nil {
		return nil, err
	}

	job := &Job{
		RequestID: req.RequestID,
		DoctorID:  req.DoctorID,
		PrintJob:  layout.BuildPrintJob(req.State, req.Options),
		BuiltAt:   now.UTC(),
	}
	if req.State.HasCertificate() {
		doc, err := certificate.Render(req.State, req.Issuer)
		if err != nil {
			return nil, err
		}
		job.Certificate = doc
	}
	return job, nil
}

// Processor handles render requests from the broker exactly once per
// request id.
type Processor struct {
	inbox    *idempotency.Inbox
	pub      Publisher
	jobTopic string
	logger   *zap.Logger
	now      func() time.Time
}

// NewProcessor creates a processor publishing jobs to jobTopic.
func NewProcessor(inbox *idempotency.Inbox, pub Publisher, jobTopic string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{inbox: inbox, pub: pub, jobTopic: jobTopic, logger: logger, now: time.Now}
}

// Handle decodes, builds and publishes. A redelivered request that already
// finished is acknowledged without publishing again.
func (p *Processor) Handle(ctx context.Context, payload []byte) (*Job, error) {
	var req Request
	if err := json.Unmarshal(payload, &req); err != nil {
		return nil, idempotency.Terminal(fmt.Errorf("%w: %v", ErrInvalidRecord, err))
	}
	if req.RequestID == "" {
		return nil, idempotency.Terminal(fmt.Errorf("%w: missing request id", ErrInvalidRecord))
	}
	if err := req.Options.Validate(); err != nil {
		return nil, idempotency.Terminal(fmt.Errorf("%w: %v", ErrInvalidRecord, err))
	}

	key := idempotency.GenerateKey("render", req.DoctorID, req.RequestID)
	res, err := p.inbox.Process(ctx, key, "render", payload, func(ctx context.Context, raw json.RawMessage) (json.RawMessage, error) {
		job, err := Build(&req, p.now())
		if err != nil {
			return nil, idempotency.Terminal(err)
		}
		body, err := json.Marshal(job)
		if err != nil {
			return nil, err
		}
		if err := p.pub.Publish(ctx, p.jobTopic, job.DoctorID, body); err != nil {
			return nil, err
		}
		return body, nil
	})
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal(res.Result, &job); err != nil {
		return nil, fmt.Errorf("decode stored job: %w", err)
	}
	if res.IsNew || res.WasRecovered {
		p.logger.Info("render job published",
			zap.String("request_id", job.RequestID),
			zap.Int("sheets", len(job.PrintJob.Sheets)))
	} else {
		p.logger.Info("duplicate render request acknowledged", zap.String("request_id", req.RequestID))
	}
	return &job, nil
}
