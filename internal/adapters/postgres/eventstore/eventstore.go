// Package eventstore implements the transactional write path: one
// Postgres transaction per command, inside which the aggregate row, its
// domain event, and the event's outbox row are all written together
// (I1). Grounded on the teacher's repository Create methods (span-wrapped
// ExecContext calls), restructured around one shared *sql.Tx instead of
// one connection-per-call.
package eventstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/outbox"
	"github.com/meridianhq/eventcore/internal/domain/event"
)

// Store wraps a Postgres connection and exposes the one-transaction write
// path every command handler uses.
type Store struct {
	connection *libPostgres.PostgresConnection
}

// NewStore returns a Store bound to pc. It panics if pc cannot hand back a
// live connection, matching the teacher's fail-fast construction style.
func NewStore(pc *libPostgres.PostgresConnection) *Store {
	s := &Store{connection: pc}

	if _, err := s.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return s
}

// PersistEvents is handed to the WithTransaction callback; it inserts the
// domain_events row and the matching event_outbox row for each event, all
// inside the same *sql.Tx.
type PersistEvents func(ctx context.Context, events []event.Event) error

// WithTransaction begins a transaction, builds a PersistEvents closure
// bound to it, calls fn with that same *sql.Tx (so the caller's
// aggregate repository writes in the same unit of work), and commits on
// success (or rolls back on any returned error).
func (s *Store) WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx, persist PersistEvents) error) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "eventstore.with_transaction")
	defer span.End()

	db, err := s.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to begin transaction", err)

		return err
	}

	committed := false

	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	persist := func(ctx context.Context, events []event.Event) error {
		return persistEvents(ctx, tx, events)
	}

	if err := fn(ctx, tx, persist); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to commit transaction", err)

		return err
	}

	committed = true

	return nil
}

func persistEvents(ctx context.Context, tx *sql.Tx, events []event.Event) error {
	for _, evt := range events {
		evt.OccurredAt = time.Now().UTC()

		payload, err := json.Marshal(evt.Payload)
		if err != nil {
			return err
		}

		metadata, err := json.Marshal(evt.Metadata)
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO domain_events
			(id, aggregate_type, aggregate_id, type, schema_version, payload, metadata, occurred_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			evt.ID, evt.AggregateType, evt.AggregateID, evt.Type, evt.SchemaVersion, payload, metadata, evt.OccurredAt,
		); err != nil {
			return err
		}

		entry, err := outbox.NewMetadataOutbox(evt.AggregateID, evt.AggregateType, outboxBlob(evt))
		if err != nil {
			return err
		}

		entry.EventID = evt.ID
		entry.EventType = evt.Type

		var model outbox.MetadataOutboxPostgreSQLModel
		if err := model.FromEntity(entry); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `INSERT INTO event_outbox
			(id, event_id, entity_id, entity_type, event_type, metadata, status, retry_count, max_retries, last_error, created_at, updated_at, processed_at, next_retry_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
			model.ID, model.EventID, model.EntityID, model.EntityType, model.EventType, model.MetadataRaw,
			model.Status, model.RetryCount, model.MaxRetries, model.LastError, model.CreatedAt, model.UpdatedAt,
			model.ProcessedAt, model.NextRetryAt,
		); err != nil {
			return err
		}
	}

	return nil
}

// outboxBlob builds the outbox row's metadata payload: the event payload
// plus its full metadata envelope, so the dispatcher's queue job carries
// everything a worker needs without re-reading the event row (spec.md
// §4.2, §6).
func outboxBlob(evt event.Event) map[string]any {
	return map[string]any{
		"payload": evt.Payload,
		"metadata": map[string]any{
			"correlationId": evt.Metadata.CorrelationID,
			"causationId":   evt.Metadata.CausationID,
			"actor": map[string]any{
				"id":        evt.Metadata.Actor.ID,
				"email":     evt.Metadata.Actor.Email,
				"accountId": evt.Metadata.Actor.AccountID,
			},
			"producerTimestamp":  evt.Metadata.ProducerTimestamp,
			"eventSchemaVersion": evt.Metadata.EventSchemaVersion,
		},
	}
}
