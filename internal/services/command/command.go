// Package command implements executeCommand, the synchronous entrypoint
// every caller goes through: load or construct an aggregate, run its
// transition, and persist the new state, its events, and their outbox
// rows in one transaction (I1).
package command

import (
	"context"
	"database/sql"
	"time"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/actionrepo"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/eventstore"
	"github.com/meridianhq/eventcore/internal/adapters/postgres/policyrepo"
	"github.com/meridianhq/eventcore/internal/domain/action"
	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/internal/domain/policy"
	"github.com/meridianhq/eventcore/pkg/idgen"
	"github.com/meridianhq/eventcore/pkg/reqcontext"
)

// Store is the transactional write path executeCommand needs: begin a
// transaction, let the caller save its aggregate row in it, then
// persist the produced events and their outbox rows in the same unit of
// work. *eventstore.Store implements this; tests substitute a mock.
type Store interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error) error
}

// Service executes commands against the Action and Policy aggregates.
type Service struct {
	store      Store
	actionRepo actionrepo.Repository
	policyRepo policyrepo.Repository
	now        func() time.Time
}

// NewService wires a Service. It panics on any nil dependency.
func NewService(store Store, actionRepo actionrepo.Repository, policyRepo policyrepo.Repository) *Service {
	if store == nil {
		panic("command: event store must not be nil")
	}

	if actionRepo == nil {
		panic("command: action repository must not be nil")
	}

	if policyRepo == nil {
		panic("command: policy repository must not be nil")
	}

	return &Service{store: store, actionRepo: actionRepo, policyRepo: policyRepo, now: func() time.Time { return time.Now().UTC() }}
}

func (s *Service) metadataFrom(ctx context.Context) event.Metadata {
	actor := reqcontext.ActorFrom(ctx)

	return event.Metadata{
		CorrelationID:     reqcontext.CorrelationID(ctx),
		CausationID:       reqcontext.CausationID(ctx),
		Actor:             event.Actor{ID: actor.ID},
		ProducerTimestamp: s.now(),
		EventSchemaVersion: 1,
	}
}

// CreateAction constructs a new Action and persists it.
func (s *Service) CreateAction(ctx context.Context, name string) (*action.Action, error) {
	md := s.metadataFrom(ctx)

	a, evt, err := action.New(idgen.NewString, idgen.NewString(), name, md, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error {
		if err := s.actionRepo.Save(ctx, tx, a); err != nil {
			return err
		}

		return persist(ctx, []event.Event{evt})
	}); err != nil {
		return nil, err
	}

	return &a, nil
}

// UpdateAction changes an active Action's name.
func (s *Service) UpdateAction(ctx context.Context, id string, expectedVersion int, name string) (*action.Action, error) {
	current, err := s.actionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Update(idgen.NewString, expectedVersion, name, md)
	if err != nil {
		return nil, err
	}

	// A no-op update has no events and keeps its version; there is
	// nothing to persist.
	if len(events) == 0 {
		return &next, nil
	}

	if err := s.persistAction(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

// CompleteAction transitions id from active to inactive.
func (s *Service) CompleteAction(ctx context.Context, id string, expectedVersion int) (*action.Action, error) {
	current, err := s.actionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Complete(idgen.NewString, expectedVersion, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistAction(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

// CancelAction transitions id from active to inactive with a reason.
func (s *Service) CancelAction(ctx context.Context, id string, expectedVersion int, reason string) (*action.Action, error) {
	current, err := s.actionRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Cancel(idgen.NewString, expectedVersion, reason, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistAction(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

func (s *Service) persistAction(ctx context.Context, next action.Action, events []event.Event) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error {
		if err := s.actionRepo.Save(ctx, tx, next); err != nil {
			return err
		}

		return persist(ctx, events)
	})
}

// CreatePolicy constructs a new draft Policy and persists it.
func (s *Service) CreatePolicy(ctx context.Context, name string, rules map[string]any) (*policy.Policy, error) {
	md := s.metadataFrom(ctx)

	p, evt, err := policy.New(idgen.NewString, idgen.NewString(), name, rules, md, s.now())
	if err != nil {
		return nil, err
	}

	if err := s.store.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error {
		if err := s.policyRepo.Save(ctx, tx, p); err != nil {
			return err
		}

		return persist(ctx, []event.Event{evt})
	}); err != nil {
		return nil, err
	}

	return &p, nil
}

// ActivatePolicy moves a draft Policy to active.
func (s *Service) ActivatePolicy(ctx context.Context, id string, expectedVersion int) (*policy.Policy, error) {
	current, err := s.policyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Activate(idgen.NewString, expectedVersion, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistPolicy(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

// SuspendPolicy moves an active Policy to suspended.
func (s *Service) SuspendPolicy(ctx context.Context, id string, expectedVersion int, reason string) (*policy.Policy, error) {
	current, err := s.policyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Suspend(idgen.NewString, expectedVersion, reason, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistPolicy(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

// ReactivatePolicy moves a suspended Policy back to active.
func (s *Service) ReactivatePolicy(ctx context.Context, id string, expectedVersion int) (*policy.Policy, error) {
	current, err := s.policyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Reactivate(idgen.NewString, expectedVersion, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistPolicy(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

// RevokePolicy moves any non-revoked Policy to the terminal revoked state.
func (s *Service) RevokePolicy(ctx context.Context, id string, expectedVersion int, reason, revokedBy string) (*policy.Policy, error) {
	current, err := s.policyRepo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	md := s.metadataFrom(ctx)

	next, events, _, err := current.Revoke(idgen.NewString, expectedVersion, reason, revokedBy, md)
	if err != nil {
		return nil, err
	}

	if err := s.persistPolicy(ctx, next, events); err != nil {
		return nil, err
	}

	return &next, nil
}

func (s *Service) persistPolicy(ctx context.Context, next policy.Policy, events []event.Event) error {
	return s.store.WithTransaction(ctx, func(ctx context.Context, tx *sql.Tx, persist eventstore.PersistEvents) error {
		if err := s.policyRepo.Save(ctx, tx, next); err != nil {
			return err
		}

		return persist(ctx, events)
	})
}
