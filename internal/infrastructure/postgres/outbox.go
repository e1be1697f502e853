package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// OutboxEntry is a domain event written in the same transaction as the
// document it describes.
type OutboxEntry struct {
	ID            int64
	AggregateID   string
	AggregateType string
	EventType     string
	Payload       json.RawMessage
	Topic         string
	Key           string
	CreatedAt     time.Time
	RetryCount    int
	LastError     *string
}

// WriteEntry inserts an entry inside the caller's transaction.
func WriteEntry(ctx context.Context, tx pgx.Tx, entry *OutboxEntry) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO outbox (aggregate_id, aggregate_type, event_type, payload, topic, message_key)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`,
		entry.AggregateID, entry.AggregateType, entry.EventType,
		entry.Payload, entry.Topic, entry.Key,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to write outbox entry: %w", err)
	}
	return nil
}

// RelayConfig configures the relay.
type RelayConfig struct {
	BatchSize    int
	PollInterval time.Duration
	// MaxRetries is the number of failed publishes after which an entry is
	// sent to DeadLetterTopic instead.
	MaxRetries      int
	DeadLetterTopic string
}

// DefaultRelayConfig returns the defaults used by cmd/outbox-relay.
func DefaultRelayConfig() RelayConfig {
	return RelayConfig{
		BatchSize:       100,
		PollInterval:    250 * time.Millisecond,
		MaxRetries:      5,
		DeadLetterTopic: "dead.letter",
	}
}

// Publisher publishes relayed entries.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, value []byte) error
}

// Relay publishes committed outbox entries. Each batch is claimed with
// FOR UPDATE SKIP LOCKED, so several relays can share one outbox; entries
// of one aggregate keep their order only within a single relay.
type Relay struct {
	pool      *pgxpool.Pool
	config    RelayConfig
	publisher Publisher
	logger    *zap.Logger
	tracer    trace.Tracer
}

// NewRelay creates a relay.
func NewRelay(pool *pgxpool.Pool, publisher Publisher, cfg RelayConfig, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultRelayConfig().BatchSize
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultRelayConfig().PollInterval
	}
	return &Relay{
		pool:      pool,
		config:    cfg,
		publisher: publisher,
		logger:    logger,
		tracer:    otel.Tracer("outbox-relay"),
	}
}

// Run relays until ctx is done. A full batch is followed immediately by the
// next one; otherwise the relay waits PollInterval.
func (r *Relay) Run(ctx context.Context) error {
	r.logger.Info("outbox relay started",
		zap.Int("batch_size", r.config.BatchSize),
		zap.Duration("poll_interval", r.config.PollInterval))

	timer := time.NewTimer(0)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-timer.C:
		}

		n, err := r.RelayBatch(ctx)
		if err != nil && ctx.Err() == nil {
			r.logger.Error("outbox batch failed", zap.Error(err))
		}
		if n == r.config.BatchSize {
			timer.Reset(0)
		} else {
			timer.Reset(r.config.PollInterval)
		}
	}
}

// disposition is what happens to an entry after a publish attempt.
type disposition int

const (
	relayed disposition = iota
	retry
	deadLettered
)

// decide returns the disposition of entry given the publish outcome. An
// entry is dead-lettered on the publish failure that reaches maxRetries.
func decide(entry *OutboxEntry, publishErr error, maxRetries int) disposition {
	switch {
	case publishErr == nil:
		return relayed
	case maxRetries > 0 && entry.RetryCount+1 >= maxRetries:
		return deadLettered
	default:
		return retry
	}
}

// deadLetter is the envelope published for entries that exhausted retries.
type deadLetter struct {
	OriginalTopic string          `json:"original_topic"`
	EventType     string          `json:"event_type"`
	AggregateID   string          `json:"aggregate_id"`
	Payload       json.RawMessage `json:"payload"`
	RetryCount    int             `json:"retry_count"`
	LastError     string          `json:"last_error"`
	CreatedAt     time.Time       `json:"created_at"`
}

func newDeadLetter(entry *OutboxEntry, cause error) ([]byte, error) {
	return json.Marshal(deadLetter{
		OriginalTopic: entry.Topic,
		EventType:     entry.EventType,
		AggregateID:   entry.AggregateID,
		Payload:       entry.Payload,
		RetryCount:    entry.RetryCount + 1,
		LastError:     cause.Error(),
		CreatedAt:     entry.CreatedAt,
	})
}

// RelayBatch claims and publishes one batch, returning how many entries
// were claimed.
func (r *Relay) RelayBatch(ctx context.Context) (int, error) {
	ctx, span := r.tracer.Start(ctx, "outbox_relay_batch")
	defer span.End()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	entries, err := claim(ctx, tx, r.config.BatchSize)
	if err != nil {
		span.RecordError(err)
		return 0, err
	}
	if len(entries) == 0 {
		return 0, nil
	}
	span.SetAttributes(attribute.Int("batch_size", len(entries)))

	batch := &pgx.Batch{}
	for _, entry := range entries {
		pubErr := r.publisher.Publish(ctx, entry.Topic, entry.Key, entry.Payload)

		switch decide(entry, pubErr, r.config.MaxRetries) {
		case relayed:
			batch.Queue(`UPDATE outbox SET processed_at = NOW(), updated_at = NOW() WHERE id = $1`, entry.ID)

		case retry:
			r.logger.Warn("outbox publish failed",
				zap.Int64("id", entry.ID),
				zap.String("event_type", entry.EventType),
				zap.Int("retry_count", entry.RetryCount+1),
				zap.Error(pubErr))
			batch.Queue(`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, updated_at = NOW() WHERE id = $1`,
				entry.ID, pubErr.Error())

		case deadLettered:
			if err := r.deadLetter(ctx, entry, pubErr); err != nil {
				r.logger.Error("dead letter publish failed", zap.Int64("id", entry.ID), zap.Error(err))
				batch.Queue(`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, updated_at = NOW() WHERE id = $1`,
					entry.ID, pubErr.Error())
				continue
			}
			batch.Queue(`UPDATE outbox SET retry_count = retry_count + 1, last_error = $2, processed_at = NOW(), updated_at = NOW() WHERE id = $1`,
				entry.ID, pubErr.Error())
		}
	}

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		span.RecordError(err)
		return len(entries), fmt.Errorf("update outbox: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return len(entries), fmt.Errorf("commit: %w", err)
	}
	return len(entries), nil
}

func (r *Relay) deadLetter(ctx context.Context, entry *OutboxEntry, cause error) error {
	if r.config.DeadLetterTopic == "" {
		return errors.New("no dead letter topic configured")
	}
	body, err := newDeadLetter(entry, cause)
	if err != nil {
		return err
	}
	r.logger.Warn("outbox entry dead-lettered",
		zap.Int64("id", entry.ID),
		zap.String("topic", entry.Topic),
		zap.Error(cause))
	return r.publisher.Publish(ctx, r.config.DeadLetterTopic, entry.Key, body)
}

func claim(ctx context.Context, tx pgx.Tx, limit int) ([]*OutboxEntry, error) {
	rows, err := tx.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, event_type, payload,
		       topic, message_key, created_at, retry_count, last_error
		FROM outbox
		WHERE processed_at IS NULL
		ORDER BY id
		LIMIT $1
		FOR UPDATE SKIP LOCKED`, limit)
	if err != nil {
		return nil, fmt.Errorf("claim outbox entries: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (*OutboxEntry, error) {
		e := &OutboxEntry{}
		err := row.Scan(&e.ID, &e.AggregateID, &e.AggregateType, &e.EventType, &e.Payload,
			&e.Topic, &e.Key, &e.CreatedAt, &e.RetryCount, &e.LastError)
		return e, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan outbox entries: %w", err)
	}
	return entries, nil
}

// Cleanup removes relayed entries older than the given age.
func (r *Relay) Cleanup(ctx context.Context, olderThan time.Duration) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM outbox WHERE processed_at IS NOT NULL AND processed_at < $1`,
		time.Now().Add(-olderThan))
	if err != nil {
		return 0, fmt.Errorf("cleanup failed: %w", err)
	}
	return tag.RowsAffected(), nil
}

// RelayStats summarizes relay progress.
type RelayStats struct {
	Pending       int64
	Retrying      int64
	OldestPending *time.Time
}

// Stats reports unprocessed entries; Retrying counts those that failed at
// least once.
func (r *Relay) Stats(ctx context.Context) (*RelayStats, error) {
	stats := &RelayStats{}
	err := r.pool.QueryRow(ctx, `
		SELECT COUNT(*),
		       COUNT(*) FILTER (WHERE retry_count > 0),
		       MIN(created_at)
		FROM outbox
		WHERE processed_at IS NULL`,
	).Scan(&stats.Pending, &stats.Retrying, &stats.OldestPending)
	if err != nil {
		return nil, fmt.Errorf("outbox stats: %w", err)
	}
	return stats, nil
}
