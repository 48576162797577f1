// Package actionrepo persists the Action aggregate's current-state row.
// Grounded on the teacher's repository Create/Update shape (span-wrapped
// ExecContext, FromEntity/ToEntity model conversion) and on
// create-balance_test.go's pgconn.PgError{Code:"23505"} idiom for
// detecting a concurrent write.
package actionrepo

import (
	"context"
	"database/sql"
	"errors"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridianhq/eventcore/internal/domain/action"
	coreerrors "github.com/meridianhq/eventcore/pkg/errors"
)

const pgUniqueViolation = "23505"

const tableName = "actions"

// Repository is the Action aggregate's persistence contract.
type Repository interface {
	Get(ctx context.Context, id string) (*action.Action, error)
	Save(ctx context.Context, tx *sql.Tx, current action.Action) error
}

// ActionPostgreSQLModel is the flat row shape persisted to the actions table.
type ActionPostgreSQLModel struct {
	ID        string
	Name      string
	Status    string
	Reason    string
	Version   int
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

// FromEntity populates m from a.
func (m *ActionPostgreSQLModel) FromEntity(a action.Action) {
	m.ID = a.ID
	m.Name = a.Name
	m.Status = string(a.Status)
	m.Reason = a.Reason
	m.Version = a.Version
	m.CreatedAt = sql.NullTime{Time: a.CreatedAt, Valid: !a.CreatedAt.IsZero()}
	m.UpdatedAt = sql.NullTime{Time: a.UpdatedAt, Valid: !a.UpdatedAt.IsZero()}
}

// ToEntity reconstructs an Action from m.
func (m *ActionPostgreSQLModel) ToEntity() action.Action {
	return action.Action{
		ID:        m.ID,
		Name:      m.Name,
		Status:    action.Status(m.Status),
		Reason:    m.Reason,
		Version:   m.Version,
		CreatedAt: m.CreatedAt.Time,
		UpdatedAt: m.UpdatedAt.Time,
	}
}

// ActionPostgreSQLRepository is the Postgres-backed Repository implementation.
type ActionPostgreSQLRepository struct {
	connection *libPostgres.PostgresConnection
}

// NewActionPostgreSQLRepository returns a Repository bound to pc. It
// panics if pc cannot hand back a live connection.
func NewActionPostgreSQLRepository(pc *libPostgres.PostgresConnection) *ActionPostgreSQLRepository {
	r := &ActionPostgreSQLRepository{connection: pc}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Get loads the current row for id.
func (r *ActionPostgreSQLRepository) Get(ctx context.Context, id string) (*action.Action, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.action.get")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	var model ActionPostgreSQLModel

	row := db.QueryRowContext(ctx, `SELECT id, name, status, reason, version, created_at, updated_at FROM `+tableName+` WHERE id = $1`, id)
	if err := row.Scan(&model.ID, &model.Name, &model.Status, &model.Reason, &model.Version, &model.CreatedAt, &model.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coreerrors.NotFound("Action", "action not found")
		}

		libOpentelemetry.HandleSpanError(&span, "Failed to scan action row", err)

		return nil, err
	}

	entity := model.ToEntity()

	return &entity, nil
}

// Save inserts a fresh Action (version 1) or updates an existing one,
// guarded by a version-matching WHERE clause. A concurrent write surfaces
// as a Postgres unique-constraint violation on insert, or as zero rows
// affected on update; both translate to pkg/errors.OptimisticLock (I2).
func (r *ActionPostgreSQLRepository) Save(ctx context.Context, tx *sql.Tx, current action.Action) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.action.save")
	defer span.End()

	var model ActionPostgreSQLModel
	model.FromEntity(current)

	if current.Version == 1 {
		_, err := tx.ExecContext(ctx, `INSERT INTO `+tableName+`
			(id, name, status, reason, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			model.ID, model.Name, model.Status, model.Reason, model.Version, model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return coreerrors.OptimisticLock("Action", current.Version)
			}

			libOpentelemetry.HandleSpanError(&span, "Failed to insert action row", err)

			return err
		}

		return nil
	}

	result, err := tx.ExecContext(ctx, `UPDATE `+tableName+`
		SET name = $1, status = $2, reason = $3, version = $4, updated_at = $5
		WHERE id = $6 AND version = $7`,
		model.Name, model.Status, model.Reason, model.Version, model.UpdatedAt, model.ID, model.Version-1,
	)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to update action row", err)

		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return err
	}

	if rowsAffected == 0 {
		return coreerrors.OptimisticLock("Action", current.Version-1)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
