// Package ledger wraps the Postgres idempotency ledger adapter in a
// small service boundary so callers (the queue worker) depend on an
// interface instead of a concrete connection, matching the teacher's
// services-wrap-adapters layering.
package ledger

import (
	"context"

	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/ledger"
)

// Service witnesses handler completion per (eventID, handlerName) pair
// (I4, P2, R2).
type Service interface {
	// Has reports whether handlerName has already processed eventID.
	Has(ctx context.Context, eventID, handlerName string) (bool, error)
	// Record marks eventID as processed by handlerName in its own
	// transaction. A concurrent duplicate record is treated as success.
	Record(ctx context.Context, eventID, handlerName string) error
}

// PostgresService is the Postgres-backed Service implementation.
type PostgresService struct {
	repo ledger.Repository
	conn *libPostgres.PostgresConnection
}

// NewPostgresService wires a PostgresService. It panics on a nil repo or
// connection, matching the teacher's fail-fast construction style.
func NewPostgresService(repo ledger.Repository, conn *libPostgres.PostgresConnection) *PostgresService {
	if repo == nil {
		panic("ledger: repository must not be nil")
	}

	if conn == nil {
		panic("ledger: connection must not be nil")
	}

	return &PostgresService{repo: repo, conn: conn}
}

// Has delegates to the repository.
func (s *PostgresService) Has(ctx context.Context, eventID, handlerName string) (bool, error) {
	return s.repo.Has(ctx, eventID, handlerName)
}

// Record opens its own transaction around the ledger insert, since the
// worker's ledger witness is a separate unit of work from handlers that
// write to a different store (e.g. the Mongo-backed audit sink).
func (s *PostgresService) Record(ctx context.Context, eventID, handlerName string) error {
	db, err := s.conn.GetDB()
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	if err := s.repo.Record(ctx, tx, eventID, handlerName); err != nil {
		_ = tx.Rollback()

		return err
	}

	return tx.Commit()
}
