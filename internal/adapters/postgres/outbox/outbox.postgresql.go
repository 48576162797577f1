package outbox

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"
	"github.com/Masterminds/squirrel"

	coreerrors "github.com/meridianhq/eventcore/pkg/errors"
)

const tableName = "event_outbox"

// Repository is the outbox's persistence contract. The dispatcher depends
// on this interface, not the concrete Postgres type, so it can be driven
// by a generated mock in tests.
type Repository interface {
	Create(ctx context.Context, entry *MetadataOutbox) (*MetadataOutbox, error)
	FindByEntityID(ctx context.Context, entityID, entityType string) (*MetadataOutbox, error)
	ClaimBatch(ctx context.Context, limit int) ([]*MetadataOutbox, error)
	MarkPublished(ctx context.Context, id string) error
	MarkFailed(ctx context.Context, id string, cause error, nextRetryAt time.Time) error
	MarkDLQ(ctx context.Context, id string, cause error) error
	CountByStatus(ctx context.Context) (map[OutboxStatus]int, error)
}

// OutboxPostgreSQLRepository is the Postgres-backed Repository
// implementation, modeled on the teacher's repository shape: a thin
// wrapper around a shared connection plus table name, every method
// opening its own trace span.
type OutboxPostgreSQLRepository struct {
	connection *libPostgres.PostgresConnection
	tableName  string
}

// NewOutboxPostgreSQLRepository returns a Repository backed by pc. It
// panics if pc cannot hand back a live connection, matching the
// teacher's fail-fast construction style.
func NewOutboxPostgreSQLRepository(pc *libPostgres.PostgresConnection) *OutboxPostgreSQLRepository {
	r := &OutboxPostgreSQLRepository{connection: pc, tableName: tableName}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Create inserts entry on the repository's own connection, outside any
// caller transaction. The write path that commits outbox rows together
// with their domain events is eventstore's persistEvents.
func (r *OutboxPostgreSQLRepository) Create(ctx context.Context, entry *MetadataOutbox) (*MetadataOutbox, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.create")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	var model MetadataOutboxPostgreSQLModel
	if err := model.FromEntity(entry); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to convert outbox entry to row", err)

		return nil, err
	}

	_, err = db.ExecContext(ctx, `INSERT INTO `+r.tableName+`
		(id, event_id, entity_id, entity_type, event_type, metadata, status, retry_count, max_retries, last_error, created_at, updated_at, processed_at, next_retry_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		model.ID, model.EventID, model.EntityID, model.EntityType, model.EventType, model.MetadataRaw,
		model.Status, model.RetryCount, model.MaxRetries, model.LastError, model.CreatedAt, model.UpdatedAt,
		model.ProcessedAt, model.NextRetryAt,
	)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to insert outbox row", err)

		return nil, err
	}

	return entry, nil
}

// FindByEntityID looks up the most recent outbox row for an entity,
// mirroring the teacher's FindByEntityID validation contract (empty or
// blank identifiers are a validation error, not a not-found result).
func (r *OutboxPostgreSQLRepository) FindByEntityID(ctx context.Context, entityID, entityType string) (*MetadataOutbox, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, &coreerrors.Err{Kind: coreerrors.KindValidation, Rule: "outbox.find.entity_id_required", Message: "entity id is required"}
	}

	if strings.TrimSpace(entityType) == "" {
		return nil, &coreerrors.Err{Kind: coreerrors.KindValidation, Rule: "outbox.find.entity_type_required", Message: "entity type is required"}
	}

	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.find_by_entity_id")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	query, args, err := squirrel.Select("*").
		From(r.tableName).
		Where(squirrel.Eq{"entity_id": entityID, "entity_type": entityType}).
		OrderBy("created_at DESC").
		Limit(1).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to build query", err)

		return nil, err
	}

	row := db.QueryRowContext(ctx, query, args...)

	model, err := scanRow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coreerrors.NotFound("MetadataOutbox", "no outbox entry for entity")
		}

		libOpentelemetry.HandleSpanError(&span, "Failed to scan outbox row", err)

		return nil, err
	}

	return model.ToEntity()
}

// ClaimBatch atomically moves up to limit PENDING or due-for-retry FAILED
// rows into PROCESSING and returns them, using FOR UPDATE SKIP LOCKED so
// concurrent dispatcher instances never claim the same row twice (P2).
func (r *OutboxPostgreSQLRepository) ClaimBatch(ctx context.Context, limit int) ([]*MetadataOutbox, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.claim_batch")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to begin transaction", err)

		return nil, err
	}
	defer tx.Rollback() //nolint:errcheck

	selectQuery, args, err := squirrel.Select("id").
		From(r.tableName).
		Where(squirrel.Or{
			squirrel.Eq{"status": string(StatusPending)},
			squirrel.And{
				squirrel.Eq{"status": string(StatusFailed)},
				squirrel.LtOrEq{"next_retry_at": time.Now().UTC()},
			},
		}).
		OrderBy("created_at ASC").
		Limit(uint64(limit)).
		Suffix("FOR UPDATE SKIP LOCKED").
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to build claim query", err)

		return nil, err
	}

	rows, err := tx.QueryContext(ctx, selectQuery, args...)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to execute claim query", err)

		return nil, err
	}

	var ids []string

	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			libOpentelemetry.HandleSpanError(&span, "Failed to scan claimed id", err)

			return nil, err
		}

		ids = append(ids, id)
	}

	rows.Close()

	if err := rows.Err(); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to iterate claimed rows", err)

		return nil, err
	}

	if len(ids) == 0 {
		return nil, tx.Commit()
	}

	now := time.Now().UTC()

	updateQuery, updateArgs, err := squirrel.Update(r.tableName).
		Set("status", string(StatusProcessing)).
		Set("updated_at", now).
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to build update query", err)

		return nil, err
	}

	if _, err := tx.ExecContext(ctx, updateQuery, updateArgs...); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to mark rows processing", err)

		return nil, err
	}

	selectClaimed, claimedArgs, err := squirrel.Select("*").
		From(r.tableName).
		Where(squirrel.Eq{"id": ids}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to build reselect query", err)

		return nil, err
	}

	claimedRows, err := tx.QueryContext(ctx, selectClaimed, claimedArgs...)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to reselect claimed rows", err)

		return nil, err
	}
	defer claimedRows.Close()

	var entries []*MetadataOutbox

	for claimedRows.Next() {
		model, err := scanRows(claimedRows)
		if err != nil {
			libOpentelemetry.HandleSpanError(&span, "Failed to scan claimed row", err)

			return nil, err
		}

		entry, err := model.ToEntity()
		if err != nil {
			return nil, err
		}

		entry.Status = StatusProcessing
		entries = append(entries, entry)
	}

	if err := claimedRows.Err(); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to commit claim transaction", err)

		return nil, err
	}

	return entries, nil
}

// MarkPublished transitions id to the terminal PUBLISHED state.
func (r *OutboxPostgreSQLRepository) MarkPublished(ctx context.Context, id string) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.mark_published")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	now := time.Now().UTC()

	_, err = db.ExecContext(ctx, `UPDATE `+r.tableName+` SET status = $1, processed_at = $2, updated_at = $2 WHERE id = $3`,
		string(StatusPublished), now, id)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to mark row published", err)

		return err
	}

	return nil
}

// MarkFailed transitions id back to FAILED with a sanitized cause and a
// next-retry timestamp computed by the caller (pkg/mretry backoff).
func (r *OutboxPostgreSQLRepository) MarkFailed(ctx context.Context, id string, cause error, nextRetryAt time.Time) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.mark_failed")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	message := ""
	if cause != nil {
		message = SanitizeErrorMessage(cause.Error())
	}

	now := time.Now().UTC()

	_, err = db.ExecContext(ctx, `UPDATE `+r.tableName+`
		SET status = $1, retry_count = retry_count + 1, last_error = $2, next_retry_at = $3, updated_at = $4
		WHERE id = $5`,
		string(StatusFailed), message, nextRetryAt, now, id)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to mark row failed", err)

		return err
	}

	return nil
}

// MarkDLQ transitions id to the terminal DLQ state, retry attempts
// exhausted.
func (r *OutboxPostgreSQLRepository) MarkDLQ(ctx context.Context, id string, cause error) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.mark_dlq")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return err
	}

	message := ""
	if cause != nil {
		message = SanitizeErrorMessage(cause.Error())
	}

	now := time.Now().UTC()

	_, err = db.ExecContext(ctx, `UPDATE `+r.tableName+`
		SET status = $1, last_error = $2, updated_at = $3
		WHERE id = $4`,
		string(StatusDLQ), message, now, id)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to mark row dlq", err)

		return err
	}

	return nil
}

// CountByStatus backs the operator-facing getMetrics surface: one row
// count per lifecycle state, zero-filled for states with no rows.
func (r *OutboxPostgreSQLRepository) CountByStatus(ctx context.Context) (map[OutboxStatus]int, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.outbox.count_by_status")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	counts := map[OutboxStatus]int{
		StatusPending:    0,
		StatusProcessing: 0,
		StatusPublished:  0,
		StatusFailed:     0,
		StatusDLQ:        0,
	}

	rows, err := db.QueryContext(ctx, `SELECT status, count(*) FROM `+r.tableName+` GROUP BY status`)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to query outbox status counts", err)

		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var status string

		var count int

		if err := rows.Scan(&status, &count); err != nil {
			libOpentelemetry.HandleSpanError(&span, "Failed to scan outbox status count", err)

			return nil, err
		}

		counts[OutboxStatus(status)] = count
	}

	if err := rows.Err(); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to iterate outbox status counts", err)

		return nil, err
	}

	return counts, nil
}

// rowScanner lets scanRow/scanRows share one Scan call shape across
// *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanInto(s rowScanner, model *MetadataOutboxPostgreSQLModel) error {
	return s.Scan(
		&model.ID, &model.EventID, &model.EntityID, &model.EntityType, &model.EventType,
		&model.MetadataRaw, &model.Status, &model.RetryCount, &model.MaxRetries, &model.LastError,
		&model.CreatedAt, &model.UpdatedAt, &model.ProcessedAt, &model.NextRetryAt,
	)
}

func scanRow(row *sql.Row) (*MetadataOutboxPostgreSQLModel, error) {
	var model MetadataOutboxPostgreSQLModel
	if err := scanInto(row, &model); err != nil {
		return nil, err
	}

	return &model, nil
}

func scanRows(rows *sql.Rows) (*MetadataOutboxPostgreSQLModel, error) {
	var model MetadataOutboxPostgreSQLModel
	if err := scanInto(rows, &model); err != nil {
		return nil, err
	}

	return &model, nil
}
