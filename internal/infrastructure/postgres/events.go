package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/drfirst/go-clinidoc/internal/record"
	"github.com/drfirst/go-clinidoc/internal/storage"
)

// RecordEvents writes patient records together with their domain events.
type RecordEvents struct {
	store *Store
	topic string
}

// NewRecordEvents routes record events to topic through the outbox.
func NewRecordEvents(store *Store, topic string) *RecordEvents {
	return &RecordEvents{store: store, topic: topic}
}

func (r *RecordEvents) PutWithEvent(ctx context.Context, kind storage.Kind, id string, v any, ev *record.Event) error {
	entry, err := r.entry(ev)
	if err != nil {
		return err
	}
	return r.store.PutWithOutbox(ctx, kind, id, v, entry)
}

func (r *RecordEvents) DeleteWithEvent(ctx context.Context, kind storage.Kind, id string, ev *record.Event) error {
	entry, err := r.entry(ev)
	if err != nil {
		return err
	}
	return r.store.DeleteWithOutbox(ctx, kind, id, entry)
}

func (r *RecordEvents) entry(ev *record.Event) (*OutboxEntry, error) {
	payload, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode event: %w", err)
	}
	return &OutboxEntry{
		AggregateID:   ev.AggregateID,
		AggregateType: ev.AggregateType,
		EventType:     string(ev.EventType),
		Payload:       payload,
		Topic:         r.topic,
		// keyed by doctor so one doctor's events stay ordered
		Key: ev.DoctorID,
	}, nil
}
