// Package postgres provides PostgreSQL infrastructure components: the
// key-value document store and the transactional outbox.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/drfirst/go-clinidoc/internal/storage"
)

// Schema creates the tables used by Store and Relay.
const Schema = `
CREATE TABLE IF NOT EXISTS kv_documents (
	kind       TEXT        NOT NULL,
	id         TEXT        NOT NULL,
	body       JSONB       NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (kind, id)
);

CREATE TABLE IF NOT EXISTS outbox (
	id             BIGSERIAL   PRIMARY KEY,
	aggregate_id   TEXT        NOT NULL,
	aggregate_type TEXT        NOT NULL,
	event_type     TEXT        NOT NULL,
	payload        JSONB       NOT NULL,
	topic          TEXT        NOT NULL,
	message_key    TEXT        NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	processed_at   TIMESTAMPTZ,
	retry_count    INT         NOT NULL DEFAULT 0,
	last_error     TEXT
);

CREATE INDEX IF NOT EXISTS outbox_pending_idx ON outbox (id) WHERE processed_at IS NULL;
`

// Store implements storage.Store on a single JSONB table.
type Store struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
	tracer trace.Tracer
}

// NewStore creates a document store.
func NewStore(pool *pgxpool.Pool, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{pool: pool, logger: logger, tracer: otel.Tracer("kv-store")}
}

// Migrate applies Schema.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Get decodes one document into out.
func (s *Store) Get(ctx context.Context, kind storage.Kind, id string, out any) error {
	ctx, span := s.start(ctx, "kv_get", kind)
	defer span.End()

	var body []byte
	err := s.pool.QueryRow(ctx,
		`SELECT body FROM kv_documents WHERE kind = $1 AND id = $2`,
		string(kind), id,
	).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return storage.ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("get %s/%s: %w", kind, id, err)
	}
	return json.Unmarshal(body, out)
}

// Put upserts a document.
func (s *Store) Put(ctx context.Context, kind storage.Kind, id string, v any) error {
	ctx, span := s.start(ctx, "kv_put", kind)
	defer span.End()

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}
	if err := upsert(ctx, s.pool, kind, id, body); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

// PutWithOutbox upserts a document and enqueues an outbox entry in the same
// transaction.
func (s *Store) PutWithOutbox(ctx context.Context, kind storage.Kind, id string, v any, entry *OutboxEntry) error {
	ctx, span := s.start(ctx, "kv_put_with_outbox", kind)
	defer span.End()

	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", kind, id, err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := upsert(ctx, tx, kind, id, body); err != nil {
		span.RecordError(err)
		return err
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		span.RecordError(err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// DeleteWithOutbox removes a document and enqueues an outbox entry in the
// same transaction.
func (s *Store) DeleteWithOutbox(ctx context.Context, kind storage.Kind, id string, entry *OutboxEntry) error {
	ctx, span := s.start(ctx, "kv_delete_with_outbox", kind)
	defer span.End()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `DELETE FROM kv_documents WHERE kind = $1 AND id = $2`, string(kind), id)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	if err := WriteEntry(ctx, tx, entry); err != nil {
		span.RecordError(err)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// List returns every document of a kind ordered by id.
func (s *Store) List(ctx context.Context, kind storage.Kind) ([]storage.Document, error) {
	ctx, span := s.start(ctx, "kv_list", kind)
	defer span.End()

	rows, err := s.pool.Query(ctx,
		`SELECT id, body FROM kv_documents WHERE kind = $1 ORDER BY id`,
		string(kind),
	)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	defer rows.Close()

	var docs []storage.Document
	for rows.Next() {
		var d storage.Document
		if err := rows.Scan(&d.ID, &d.Body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", kind, err)
		}
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, kind storage.Kind, id string) error {
	ctx, span := s.start(ctx, "kv_delete", kind)
	defer span.End()

	tag, err := s.pool.Exec(ctx,
		`DELETE FROM kv_documents WHERE kind = $1 AND id = $2`,
		string(kind), id,
	)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("delete %s/%s: %w", kind, id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

func upsert(ctx context.Context, db execer, kind storage.Kind, id string, body []byte) error {
	_, err := db.Exec(ctx, `
		INSERT INTO kv_documents (kind, id, body, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (kind, id) DO UPDATE
		SET body = EXCLUDED.body, updated_at = NOW()
	`, string(kind), id, body)
	if err != nil {
		return fmt.Errorf("upsert %s/%s: %w", kind, id, err)
	}
	return nil
}

func (s *Store) start(ctx context.Context, name string, kind storage.Kind) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("kind", string(kind))))
}
