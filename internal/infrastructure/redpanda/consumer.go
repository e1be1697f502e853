package redpanda

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ConsumerConfig configures a group consumer.
type ConsumerConfig struct {
	Brokers []string
	GroupID string
	Topics  []string
	// MaxPollRecords bounds one batch across all partitions.
	MaxPollRecords int
	SessionTimeout time.Duration
	// FromStart makes a group without committed offsets begin at the
	// earliest record instead of the latest.
	FromStart bool
	// DeadLetterTopic receives messages whose handler failed. When empty,
	// or when the dead-letter publish fails, the partition is rewound and
	// the message is redelivered on the next poll.
	DeadLetterTopic string
}

// DefaultConsumerConfig returns defaults for the render worker.
func DefaultConsumerConfig() ConsumerConfig {
	return ConsumerConfig{
		Brokers:         []string{"localhost:19092"},
		GroupID:         "render-worker",
		Topics:          []string{TopicRenderRequests},
		MaxPollRecords:  500,
		SessionTimeout:  30 * time.Second,
		FromStart:       true,
		DeadLetterTopic: TopicDeadLetter,
	}
}

// ConsumedMessage is a record handed to a MessageHandler.
type ConsumedMessage struct {
	Topic     string
	Partition int32
	Offset    int64
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Timestamp time.Time
}

func newConsumedMessage(r *kgo.Record) *ConsumedMessage {
	msg := &ConsumedMessage{
		Topic:     r.Topic,
		Partition: r.Partition,
		Offset:    r.Offset,
		Key:       r.Key,
		Value:     r.Value,
		Headers:   make(map[string]string, len(r.Headers)),
		Timestamp: r.Timestamp,
	}
	for _, h := range r.Headers {
		msg.Headers[h.Key] = string(h.Value)
	}
	return msg
}

// MessageHandler processes one message. A nil error commits it.
type MessageHandler func(ctx context.Context, msg *ConsumedMessage) error

// Publisher is the subset of Producer used for dead-lettering.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Consumer processes each fetched partition on its own goroutine, in
// offset order, and commits after the whole batch is handled. Rebalances
// are held off while a batch is in flight.
type Consumer struct {
	client  *kgo.Client
	cfg     ConsumerConfig
	handler MessageHandler
	dlq     Publisher
	logger  *zap.Logger
	tracer  trace.Tracer

	handled      atomic.Int64
	deadLettered atomic.Int64
	rewound      atomic.Int64
}

// NewConsumer creates a consumer. dlq may be nil.
func NewConsumer(cfg ConsumerConfig, handler MessageHandler, dlq Publisher, logger *zap.Logger) (*Consumer, error) {
	if handler == nil {
		return nil, errors.New("message handler is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxPollRecords <= 0 {
		cfg.MaxPollRecords = DefaultConsumerConfig().MaxPollRecords
	}

	reset := kgo.NewOffset().AtEnd()
	if cfg.FromStart {
		reset = kgo.NewOffset().AtStart()
	}
	opts := []kgo.Opt{
		kgo.SeedBrokers(cfg.Brokers...),
		kgo.ConsumerGroup(cfg.GroupID),
		kgo.ConsumeTopics(cfg.Topics...),
		kgo.ConsumeResetOffset(reset),
		kgo.DisableAutoCommit(),
		kgo.BlockRebalanceOnPoll(),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, revoked map[string][]int32) {
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				logger.Warn("commit on revoke failed", zap.Error(err))
			}
			logger.Info("partitions revoked", zap.Any("partitions", revoked))
		}),
	}
	if cfg.SessionTimeout > 0 {
		opts = append(opts, kgo.SessionTimeout(cfg.SessionTimeout))
	}

	client, err := kgo.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("consumer client: %w", err)
	}
	return &Consumer{
		client:  client,
		cfg:     cfg,
		handler: handler,
		dlq:     dlq,
		logger:  logger,
		tracer:  otel.Tracer("redpanda-consumer"),
	}, nil
}

// Run consumes until ctx is done, then commits what was handled and closes
// the client.
func (c *Consumer) Run(ctx context.Context) error {
	defer c.client.Close()
	for {
		fetches := c.client.PollRecords(ctx, c.cfg.MaxPollRecords)
		if fetches.IsClientClosed() || ctx.Err() != nil {
			break
		}
		fetches.EachError(func(topic string, partition int32, err error) {
			c.logger.Error("fetch error", zap.String("topic", topic), zap.Int32("partition", partition), zap.Error(err))
		})

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			rewinds = map[string]map[int32]kgo.EpochOffset{}
		)
		fetches.EachPartition(func(p kgo.FetchTopicPartition) {
			if len(p.Records) == 0 {
				return
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				if at := c.drain(ctx, p.Records); at != nil {
					mu.Lock()
					if rewinds[at.Topic] == nil {
						rewinds[at.Topic] = map[int32]kgo.EpochOffset{}
					}
					rewinds[at.Topic][at.Partition] = kgo.EpochOffset{Epoch: at.LeaderEpoch, Offset: at.Offset}
					mu.Unlock()
				}
			}()
		})
		wg.Wait()

		if len(rewinds) > 0 {
			c.client.SetOffsets(rewinds)
		}
		if err := c.client.CommitMarkedOffsets(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("commit failed", zap.Error(err))
		}
		c.client.AllowRebalance()
	}

	commitCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(commitCtx); err != nil {
		c.logger.Warn("final commit failed", zap.Error(err))
	}
	return nil
}

// drain handles records of one partition in order. It returns the record
// the partition must be rewound to, or nil when every record was settled.
func (c *Consumer) drain(ctx context.Context, records []*kgo.Record) *kgo.Record {
	for _, r := range records {
		if ctx.Err() != nil {
			return nil
		}
		if !c.settle(ctx, r) {
			return r
		}
		c.client.MarkCommitRecords(r)
	}
	return nil
}

// settle reports whether r may be committed: either its handler succeeded or
// it was dead-lettered.
func (c *Consumer) settle(ctx context.Context, r *kgo.Record) bool {
	ctx, span := c.tracer.Start(ExtractTraceContext(ctx, r), "consume "+r.Topic,
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.Int64("partition", int64(r.Partition)),
			attribute.Int64("offset", r.Offset),
		))
	defer span.End()

	msg := newConsumedMessage(r)
	err := c.handler(ctx, msg)
	if err == nil {
		c.handled.Add(1)
		return true
	}
	if ctx.Err() != nil {
		// shutting down: leave it uncommitted for the next owner
		return false
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, "handler failed")
	c.logger.Error("message handler failed",
		zap.String("topic", r.Topic),
		zap.Int32("partition", r.Partition),
		zap.Int64("offset", r.Offset),
		zap.Error(err))

	if dlErr := c.deadLetter(ctx, msg, err); dlErr != nil {
		c.rewound.Add(1)
		c.logger.Warn("message will be redelivered", zap.Int64("offset", r.Offset), zap.Error(dlErr))
		return false
	}
	c.deadLettered.Add(1)
	return true
}

// DeadLetter is the envelope published for failed messages.
type DeadLetter struct {
	OriginalTopic string          `json:"original_topic"`
	Partition     int32           `json:"partition"`
	Offset        int64           `json:"offset"`
	Error         string          `json:"error"`
	Payload       json.RawMessage `json:"payload"`
	FailedAt      time.Time       `json:"failed_at"`
}

// NewDeadLetter wraps msg; a payload that is not JSON is embedded as a
// JSON string.
func NewDeadLetter(msg *ConsumedMessage, cause error, at time.Time) DeadLetter {
	payload := json.RawMessage(msg.Value)
	if !json.Valid(payload) {
		payload, _ = json.Marshal(string(msg.Value))
	}
	return DeadLetter{
		OriginalTopic: msg.Topic,
		Partition:     msg.Partition,
		Offset:        msg.Offset,
		Error:         cause.Error(),
		Payload:       payload,
		FailedAt:      at.UTC(),
	}
}

var errNoDeadLetter = errors.New("dead letter topic not configured")

func (c *Consumer) deadLetter(ctx context.Context, msg *ConsumedMessage, cause error) error {
	if c.dlq == nil || c.cfg.DeadLetterTopic == "" {
		return errNoDeadLetter
	}
	body, err := json.Marshal(NewDeadLetter(msg, cause, time.Now()))
	if err != nil {
		return err
	}
	return c.dlq.Publish(ctx, c.cfg.DeadLetterTopic, string(msg.Key), body)
}

// ConsumerStats holds consumer counters.
type ConsumerStats struct {
	Handled      int64
	DeadLettered int64
	Rewound      int64
}

// Stats returns current counters.
func (c *Consumer) Stats() ConsumerStats {
	return ConsumerStats{
		Handled:      c.handled.Load(),
		DeadLettered: c.deadLettered.Load(),
		Rewound:      c.rewound.Load(),
	}
}
