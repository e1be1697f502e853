package redpanda

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

func TestNewDeadLetter(t *testing.T) {
	at := time.Date(2026, 10, 19, 12, 0, 0, 0, time.FixedZone("BRT", -3*3600))
	msg := &ConsumedMessage{Topic: TopicRenderRequests, Partition: 2, Offset: 41, Value: []byte(`{"requestId":"r1"}`)}

	dl := NewDeadLetter(msg, errors.New("bad state"), at)
	if dl.OriginalTopic != TopicRenderRequests || dl.Partition != 2 || dl.Offset != 41 {
		t.Errorf("unexpected position %+v", dl)
	}
	if string(dl.Payload) != `{"requestId":"r1"}` {
		t.Errorf("expected JSON payload kept as is, got %s", dl.Payload)
	}
	if dl.FailedAt.Location() != time.UTC || dl.FailedAt.Hour() != 15 {
		t.Errorf("expected UTC timestamp, got %v", dl.FailedAt)
	}
}

func TestNewDeadLetter_NonJSONPayload(t *testing.T) {
	dl := NewDeadLetter(&ConsumedMessage{Value: []byte("not json")}, errors.New("x"), time.Now())

	var s string
	if err := json.Unmarshal(dl.Payload, &s); err != nil || s != "not json" {
		t.Errorf("expected payload quoted as a string, got %s (%v)", dl.Payload, err)
	}
}

func TestNewConsumedMessage(t *testing.T) {
	r := &kgo.Record{
		Topic:     "t",
		Partition: 1,
		Offset:    7,
		Key:       []byte("k"),
		Value:     []byte("v"),
		Headers:   []kgo.RecordHeader{{Key: "traceparent", Value: []byte("00-abc")}},
	}
	msg := newConsumedMessage(r)
	if msg.Topic != "t" || msg.Offset != 7 || string(msg.Key) != "k" {
		t.Errorf("unexpected message %+v", msg)
	}
	if msg.Headers["traceparent"] != "00-abc" {
		t.Errorf("expected header copied, got %v", msg.Headers)
	}
}

func TestNewConsumer_RequiresHandler(t *testing.T) {
	if _, err := NewConsumer(DefaultConsumerConfig(), nil, nil, nil); err == nil {
		t.Error("expected error without handler")
	}
}
