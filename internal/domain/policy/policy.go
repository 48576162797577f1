// Package policy implements the Policy aggregate: draft -> active ->
// {suspended <-> active}, with any non-revoked state able to transition
// to the terminal revoked state.
package policy

import (
	"strings"
	"time"

	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/pkg/errors"
)

const aggregateType = "Policy"

// Status is the lifecycle state of a Policy.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusSuspended Status = "suspended"
	StatusRevoked   Status = "revoked"
)

// Policy is the in-memory aggregate.
type Policy struct {
	ID         string
	Name       string
	Rules      map[string]any
	Status     Status
	Version    int
	RevokedBy  string
	Reason     string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// New constructs a draft Policy at version 1 and its "policy.created"
// event.
func New(idFn func() string, id, name string, rules map[string]any, md event.Metadata, now time.Time) (Policy, event.Event, error) {
	if strings.TrimSpace(name) == "" {
		return Policy{}, event.Event{}, &errors.Err{Kind: errors.KindValidation, Rule: "policy.create.name_required", Message: "name is required"}
	}

	p := Policy{ID: id, Name: name, Rules: rules, Status: StatusDraft, Version: 1, CreatedAt: now, UpdatedAt: now}

	evt := event.New(idFn, aggregateType, id, "policy.created", map[string]any{
		"policyId": id,
		"name":     name,
		"rules":    rules,
		"status":   string(StatusDraft),
	}, md)

	return p, evt, nil
}

func (p Policy) checkVersion(expectedVersion int) error {
	if p.Version != expectedVersion {
		return &errors.Err{Kind: errors.KindOptimisticLock, Rule: "policy.version.mismatch", Message: "expected version does not match current version"}
	}

	return nil
}

func (p Policy) checkNotRevoked() error {
	if p.Status == StatusRevoked {
		return &errors.Err{Kind: errors.KindBusinessRule, Rule: "policy.terminal_state", Message: "revoked policy admits no further transitions"}
	}

	return nil
}

func (p Policy) transitioned(to Status, evt event.Event) (Policy, []event.Event, int) {
	next := p
	next.Status = to
	next.Version = p.Version + 1

	return next, []event.Event{evt}, next.Version
}

// Activate moves a draft Policy to active.
func (p Policy) Activate(idFn func() string, expectedVersion int, md event.Metadata) (Policy, []event.Event, int, error) {
	if err := p.checkVersion(expectedVersion); err != nil {
		return p, nil, p.Version, err
	}

	if err := p.checkNotRevoked(); err != nil {
		return p, nil, p.Version, err
	}

	if p.Status != StatusDraft {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "policy.activate.not_draft", Message: "policy must be in draft to activate"}
	}

	evt := event.New(idFn, aggregateType, p.ID, "policy.activated", map[string]any{
		"policyId": p.ID,
		"status":   string(StatusActive),
		"changes":  map[string]any{"status": map[string]string{"from": string(StatusDraft), "to": string(StatusActive)}},
	}, md)

	next, events, newVersion := p.transitioned(StatusActive, evt)

	return next, events, newVersion, nil
}

// Suspend moves an active Policy to suspended. Requires a non-empty
// reason.
func (p Policy) Suspend(idFn func() string, expectedVersion int, reason string, md event.Metadata) (Policy, []event.Event, int, error) {
	if err := p.checkVersion(expectedVersion); err != nil {
		return p, nil, p.Version, err
	}

	if strings.TrimSpace(reason) == "" {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindValidation, Rule: "policy.suspend.reason_required", Message: "suspend reason is required"}
	}

	if err := p.checkNotRevoked(); err != nil {
		return p, nil, p.Version, err
	}

	if p.Status != StatusActive {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "policy.suspend.not_active", Message: "policy must be active to suspend"}
	}

	evt := event.New(idFn, aggregateType, p.ID, "policy.suspended", map[string]any{
		"policyId": p.ID,
		"status":   string(StatusSuspended),
		"reason":   reason,
		"changes":  map[string]any{"status": map[string]string{"from": string(StatusActive), "to": string(StatusSuspended)}},
	}, md)

	next, events, newVersion := p.transitioned(StatusSuspended, evt)
	next.Reason = reason

	return next, events, newVersion, nil
}

// Reactivate moves a suspended Policy back to active.
func (p Policy) Reactivate(idFn func() string, expectedVersion int, md event.Metadata) (Policy, []event.Event, int, error) {
	if err := p.checkVersion(expectedVersion); err != nil {
		return p, nil, p.Version, err
	}

	if err := p.checkNotRevoked(); err != nil {
		return p, nil, p.Version, err
	}

	if p.Status != StatusSuspended {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindBusinessRule, Rule: "policy.reactivate.not_suspended", Message: "policy must be suspended to reactivate"}
	}

	evt := event.New(idFn, aggregateType, p.ID, "policy.activated", map[string]any{
		"policyId": p.ID,
		"status":   string(StatusActive),
		"changes":  map[string]any{"status": map[string]string{"from": string(StatusSuspended), "to": string(StatusActive)}},
	}, md)

	next, events, newVersion := p.transitioned(StatusActive, evt)

	return next, events, newVersion, nil
}

// Revoke moves any non-revoked Policy to the terminal revoked state.
// Requires a reason and the revoking actor's id.
func (p Policy) Revoke(idFn func() string, expectedVersion int, reason, revokedBy string, md event.Metadata) (Policy, []event.Event, int, error) {
	if err := p.checkVersion(expectedVersion); err != nil {
		return p, nil, p.Version, err
	}

	if strings.TrimSpace(reason) == "" {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindValidation, Rule: "policy.revoke.reason_required", Message: "revoke reason is required"}
	}

	if strings.TrimSpace(revokedBy) == "" {
		return p, nil, p.Version, &errors.Err{Kind: errors.KindValidation, Rule: "policy.revoke.revoker_required", Message: "revoking actor id is required"}
	}

	if err := p.checkNotRevoked(); err != nil {
		return p, nil, p.Version, err
	}

	from := p.Status

	evt := event.New(idFn, aggregateType, p.ID, "policy.revoked", map[string]any{
		"policyId":  p.ID,
		"status":    string(StatusRevoked),
		"reason":    reason,
		"revokedBy": revokedBy,
		"changes":   map[string]any{"status": map[string]string{"from": string(from), "to": string(StatusRevoked)}},
	}, md)

	next := p
	next.Status = StatusRevoked
	next.Reason = reason
	next.RevokedBy = revokedBy
	next.Version = p.Version + 1

	return next, []event.Event{evt}, next.Version, nil
}

// IsTerminal reports whether no further transitions are admitted (I5).
func (p Policy) IsTerminal() bool {
	return p.Status == StatusRevoked
}
