// Package action implements the Action aggregate: a small state machine
// illustrating the aggregate root protocol (check version, run rule
// checks, mutate in-memory state, produce events).
package action

import (
	"strings"
	"time"

	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/pkg/errors"
)

const aggregateType = "Action"

// Status is the lifecycle state of an Action.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Action is the in-memory aggregate. It never performs I/O; repositories
// convert to and from a persisted row via the row model's
// FromEntity/ToEntity.
type Action struct {
	ID        string
	Name      string
	Status    Status
	Reason    string
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// New constructs the initial state of a freshly created Action, version 1,
// and the "action.created" event that records it.
func New(idFn func() string, id, name string, md event.Metadata, now time.Time) (Action, event.Event, error) {
	if strings.TrimSpace(name) == "" {
		return Action{}, event.Event{}, &errors.Err{Kind: errors.KindValidation, Rule: "action.create.name_required", Message: "name is required"}
	}

	a := Action{ID: id, Name: name, Status: StatusActive, Version: 1, CreatedAt: now, UpdatedAt: now}

	evt := event.New(idFn, aggregateType, id, "action.created", map[string]any{
		"actionId": id,
		"name":     name,
		"status":   string(StatusActive),
	}, md)

	return a, evt, nil
}

// Update changes an active Action's name, version-checked first (tie-
// break: version errors are never masked by business errors). A no-op
// update (name already equal to current) succeeds with zero events and
// no version bump.
func (a Action) Update(idFn func() string, expectedVersion int, name string, md event.Metadata) (Action, []event.Event, int, error) {
	if a.Version != expectedVersion {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindOptimisticLock, Rule: "action.version.mismatch", Message: "expected version does not match current version"}
	}

	if strings.TrimSpace(name) == "" {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindValidation, Rule: "action.update.name_required", Message: "name is required"}
	}

	if a.Status != StatusActive {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "action.update.not_active", Message: "action must be active to update"}
	}

	if name == a.Name {
		return a, nil, a.Version, nil
	}

	next := a
	next.Name = name
	next.Version = a.Version + 1

	evt := event.New(idFn, aggregateType, a.ID, "action.updated", map[string]any{
		"actionId": a.ID,
		"name":     name,
	}, md)

	return next, []event.Event{evt}, next.Version, nil
}

// Complete transitions an active Action to inactive, recording
// completion. It is one of the two terminal transitions from active.
func (a Action) Complete(idFn func() string, expectedVersion int, md event.Metadata) (Action, []event.Event, int, error) {
	if a.Version != expectedVersion {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindOptimisticLock, Rule: "action.version.mismatch", Message: "expected version does not match current version"}
	}

	if a.Status != StatusActive {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "action.complete.not_active", Message: "action must be active to complete"}
	}

	next := a
	next.Status = StatusInactive
	next.Version = a.Version + 1

	evt := event.New(idFn, aggregateType, a.ID, "action.completed", map[string]any{
		"actionId": a.ID,
		"status":   string(StatusInactive),
	}, md)

	return next, []event.Event{evt}, next.Version, nil
}

// Cancel transitions an active Action to inactive, recording a reason.
// Cancel requires a non-empty reason; Complete does not.
func (a Action) Cancel(idFn func() string, expectedVersion int, reason string, md event.Metadata) (Action, []event.Event, int, error) {
	if a.Version != expectedVersion {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindOptimisticLock, Rule: "action.version.mismatch", Message: "expected version does not match current version"}
	}

	if strings.TrimSpace(reason) == "" {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindValidation, Rule: "action.cancel.reason_required", Message: "cancel reason is required"}
	}

	if a.Status != StatusActive {
		return a, nil, a.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "action.cancel.not_active", Message: "action must be active to cancel"}
	}

	next := a
	next.Status = StatusInactive
	next.Reason = reason
	next.Version = a.Version + 1

	evt := event.New(idFn, aggregateType, a.ID, "action.cancelled", map[string]any{
		"actionId": a.ID,
		"status":   string(StatusInactive),
		"reason":   reason,
	}, md)

	return next, []event.Event{evt}, next.Version, nil
}

// IsTerminal reports whether no further transitions are admitted (I5).
func (a Action) IsTerminal() bool {
	return a.Status == StatusInactive
}
