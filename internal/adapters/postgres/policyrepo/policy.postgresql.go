// Package policyrepo persists the Policy aggregate's current-state row.
// Grounded on actionrepo's shape, generalized for Policy's extra
// rules/revocation fields.
package policyrepo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libPostgres "github.com/LerianStudio/lib-commons/v2/commons/postgres"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/meridianhq/eventcore/internal/domain/policy"
	coreerrors "github.com/meridianhq/eventcore/pkg/errors"
)

const pgUniqueViolation = "23505"

const tableName = "policies"

// Repository is the Policy aggregate's persistence contract.
type Repository interface {
	Get(ctx context.Context, id string) (*policy.Policy, error)
	Save(ctx context.Context, tx *sql.Tx, current policy.Policy) error
}

// PolicyPostgreSQLModel is the flat row shape persisted to the policies table.
type PolicyPostgreSQLModel struct {
	ID        string
	Name      string
	RulesRaw  []byte
	Status    string
	Reason    string
	RevokedBy string
	Version   int
	CreatedAt sql.NullTime
	UpdatedAt sql.NullTime
}

// FromEntity populates m from p.
func (m *PolicyPostgreSQLModel) FromEntity(p policy.Policy) error {
	rules, err := json.Marshal(p.Rules)
	if err != nil {
		return err
	}

	m.ID = p.ID
	m.Name = p.Name
	m.RulesRaw = rules
	m.Status = string(p.Status)
	m.Reason = p.Reason
	m.RevokedBy = p.RevokedBy
	m.Version = p.Version
	m.CreatedAt = sql.NullTime{Time: p.CreatedAt, Valid: !p.CreatedAt.IsZero()}
	m.UpdatedAt = sql.NullTime{Time: p.UpdatedAt, Valid: !p.UpdatedAt.IsZero()}

	return nil
}

// ToEntity reconstructs a Policy from m.
func (m *PolicyPostgreSQLModel) ToEntity() (policy.Policy, error) {
	var rules map[string]any
	if len(m.RulesRaw) > 0 {
		if err := json.Unmarshal(m.RulesRaw, &rules); err != nil {
			return policy.Policy{}, err
		}
	}

	return policy.Policy{
		ID:        m.ID,
		Name:      m.Name,
		Rules:     rules,
		Status:    policy.Status(m.Status),
		Reason:    m.Reason,
		RevokedBy: m.RevokedBy,
		Version:   m.Version,
		CreatedAt: m.CreatedAt.Time,
		UpdatedAt: m.UpdatedAt.Time,
	}, nil
}

// PolicyPostgreSQLRepository is the Postgres-backed Repository implementation.
type PolicyPostgreSQLRepository struct {
	connection *libPostgres.PostgresConnection
}

// NewPolicyPostgreSQLRepository returns a Repository bound to pc. It
// panics if pc cannot hand back a live connection.
func NewPolicyPostgreSQLRepository(pc *libPostgres.PostgresConnection) *PolicyPostgreSQLRepository {
	r := &PolicyPostgreSQLRepository{connection: pc}

	if _, err := r.connection.GetDB(); err != nil {
		panic("Failed to connect database")
	}

	return r
}

// Get loads the current row for id.
func (r *PolicyPostgreSQLRepository) Get(ctx context.Context, id string) (*policy.Policy, error) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.policy.get")
	defer span.End()

	db, err := r.connection.GetDB()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get database connection", err)

		return nil, err
	}

	var model PolicyPostgreSQLModel

	row := db.QueryRowContext(ctx, `SELECT id, name, rules, status, reason, revoked_by, version, created_at, updated_at FROM `+tableName+` WHERE id = $1`, id)
	if err := row.Scan(&model.ID, &model.Name, &model.RulesRaw, &model.Status, &model.Reason, &model.RevokedBy, &model.Version, &model.CreatedAt, &model.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, coreerrors.NotFound("Policy", "policy not found")
		}

		libOpentelemetry.HandleSpanError(&span, "Failed to scan policy row", err)

		return nil, err
	}

	entity, err := model.ToEntity()
	if err != nil {
		return nil, err
	}

	return &entity, nil
}

// Save inserts a fresh Policy (version 1) or updates an existing one,
// guarded by a version-matching WHERE clause (I2).
func (r *PolicyPostgreSQLRepository) Save(ctx context.Context, tx *sql.Tx, current policy.Policy) error {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "postgres.policy.save")
	defer span.End()

	var model PolicyPostgreSQLModel
	if err := model.FromEntity(current); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to convert policy to row", err)

		return err
	}

	if current.Version == 1 {
		_, err := tx.ExecContext(ctx, `INSERT INTO `+tableName+`
			(id, name, rules, status, reason, revoked_by, version, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			model.ID, model.Name, model.RulesRaw, model.Status, model.Reason, model.RevokedBy, model.Version, model.CreatedAt, model.UpdatedAt,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return coreerrors.OptimisticLock("Policy", current.Version)
			}

			libOpentelemetry.HandleSpanError(&span, "Failed to insert policy row", err)

			return err
		}

		return nil
	}

	result, err := tx.ExecContext(ctx, `UPDATE `+tableName+`
		SET name = $1, rules = $2, status = $3, reason = $4, revoked_by = $5, version = $6, updated_at = $7
		WHERE id = $8 AND version = $9`,
		model.Name, model.RulesRaw, model.Status, model.Reason, model.RevokedBy, model.Version, model.UpdatedAt, model.ID, model.Version-1,
	)
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to update policy row", err)

		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to get rows affected", err)

		return err
	}

	if rowsAffected == 0 {
		return coreerrors.OptimisticLock("Policy", current.Version-1)
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError

	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
