// Package ledger persists the processed-event idempotency ledger: one
// row per (event_id, handler_name) pair, guaranteeing a handler never
// runs twice for the same event (I4, R2). Grounded on actionrepo's
// span-wrapped ExecContext shape and on create-balance_test.go's
// pgconn.PgError{Code:"23505"} unique-violation idiom, here used as the
// success path rather than a failure path: a duplicate insert means the
// event was already processed by this handler, which is not an error.
package ledger

import (
	"context"
	"database/sql"
	"errors"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"
	"github.com/jackc/pgx/v5/pgconn"
)

const pgUniqueViolation = "23505"

const tableName = "processed_events"

// Repository is the idempotency ledger's persistence contract.
type Repository interface {
	// Has reports whether handlerName has already processed eventID.
	Has(ctx context.Context, eventID, handlerName string) (bool, error)
	// Record marks eventID as processed by handlerName. A concurrent
	// duplicate insert is treated as success, not an error.
	Record(ctx context.Context, tx *sql.Tx, eventID, handlerName string) error
}

// LedgerPostgreSQLRepository is the Postgres-backed Repository implementation.
type LedgerPostgreSQLRepository struct {
	connection *libPostgres.PostgresConnection
}

// NewLedgerPostgreSQLRepository returns a Repository bound to pc. It
// panics if pc cannot hand back a live connection.
func NewLedgerPostgreSQLRepository(pc *libPostgres.PostgresConnection) *LedgerPostgreSQLRepository {
	r := &LedgerPostgreSQLRepository{connection: pc}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Has reports whether a row already exists for (eventID, handlerName).
func (r *LedgerPostgreSQLRepository) Has(ctx context.Context, eventID, handlerName string) (bool, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.ledger.has")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return false, err
	}

	var exists bool

	row := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM `+tableName+` WHERE event_id = $1 AND handler_name = $2)`, eventID, handlerName)
	if err := row.Scan(&exists); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to scan processed_events existence check", err)

		return false, err
	}

	return exists, nil
}

// Record inserts a processed-event row. If the (event_id, handler_name)
// pair already exists, the unique-constraint violation is swallowed:
// the handler already ran for this event, which is exactly the
// at-least-once-delivery case the ledger exists to guard against.
func (r *LedgerPostgreSQLRepository) Record(ctx context.Context, tx *sql.Tx, eventID, handlerName string) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.ledger.record")
	defer span.End()

	_, err := tx.ExecContext(ctx, `INSERT INTO `+tableName+` (event_id, handler_name, processed_at) VALUES ($1, $2, now())`, eventID, handlerName)
	if err != nil {
		if isUniqueViolation(err) {
			return nil
		}

		libOpentelemetry.HandleSpanError(&span, "Failed to insert processed_events row", err)

		return err
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
