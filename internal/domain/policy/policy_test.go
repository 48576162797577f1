package policy

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/pkg/errors"
)

func fixedID(id string) func() string {
	return func() string { return id }
}

func TestNew_RejectsEmptyName(t *testing.T) {
	_, _, err := New(fixedID("evt-1"), "pol-1", "", nil, event.Metadata{}, time.Now())

	e, _ := errors.As(err)
	assert.Equal(t, "policy.create.name_required", e.Rule)
}

func TestNew_CreatesDraftAtVersionOne(t *testing.T) {
	p, evt, err := New(fixedID("evt-1"), "pol-1", "P", map[string]any{"x": 1}, event.Metadata{CorrelationID: "c1"}, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, StatusDraft, p.Status)
	assert.Equal(t, 1, p.Version)
	assert.Equal(t, "policy.created", evt.Type)
}

func TestActivate_RequiresDraft(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusActive, Version: 1}

	_, _, _, err := p.Activate(fixedID("evt-2"), 1, event.Metadata{})

	e, _ := errors.As(err)
	assert.Equal(t, "policy.activate.not_draft", e.Rule)
}

func TestActivate_Succeeds(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusDraft, Version: 1}

	next, events, newVersion, err := p.Activate(fixedID("evt-2"), 1, event.Metadata{})

	assert.NoError(t, err)
	assert.Equal(t, StatusActive, next.Status)
	assert.Equal(t, 2, newVersion)
	assert.Equal(t, "policy.activated", events[0].Type)
}

func TestActivate_VersionCheckedBeforeBusinessRule(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusActive, Version: 5}

	_, _, _, err := p.Activate(fixedID("evt-2"), 1, event.Metadata{})

	e, _ := errors.As(err)
	assert.Equal(t, errors.KindOptimisticLock, e.Kind)
}

func TestSuspendThenReactivate(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusActive, Version: 2}

	suspended, events, v, err := p.Suspend(fixedID("evt-3"), 2, "compliance hold", event.Metadata{})
	assert.NoError(t, err)
	assert.Equal(t, StatusSuspended, suspended.Status)
	assert.Equal(t, 3, v)
	assert.Equal(t, "policy.suspended", events[0].Type)

	reactivated, events, v, err := suspended.Reactivate(fixedID("evt-4"), 3, event.Metadata{})
	assert.NoError(t, err)
	assert.Equal(t, StatusActive, reactivated.Status)
	assert.Equal(t, 4, v)
	assert.Equal(t, "policy.activated", events[0].Type)
}

func TestSuspend_RequiresReason(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusActive, Version: 1}

	_, _, _, err := p.Suspend(fixedID("evt-2"), 1, "  ", event.Metadata{})

	e, _ := errors.As(err)
	assert.Equal(t, "policy.suspend.reason_required", e.Rule)
}

func TestRevoke_RequiresReasonAndRevoker(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusActive, Version: 1}

	_, _, _, err := p.Revoke(fixedID("evt-2"), 1, "", "u1", event.Metadata{})
	e, _ := errors.As(err)
	assert.Equal(t, "policy.revoke.reason_required", e.Rule)

	_, _, _, err = p.Revoke(fixedID("evt-2"), 1, "breach", "", event.Metadata{})
	e, _ = errors.As(err)
	assert.Equal(t, "policy.revoke.revoker_required", e.Rule)
}

func TestRevoke_TerminalFromAnyNonRevokedState(t *testing.T) {
	for _, status := range []Status{StatusDraft, StatusActive, StatusSuspended} {
		p := Policy{ID: "pol-1", Status: status, Version: 1}

		next, events, v, err := p.Revoke(fixedID("evt-2"), 1, "breach", "u1", event.Metadata{})

		assert.NoError(t, err)
		assert.Equal(t, StatusRevoked, next.Status)
		assert.Equal(t, 2, v)
		assert.True(t, next.IsTerminal())
		assert.Equal(t, "policy.revoked", events[0].Type)
	}
}

func TestRevoke_RejectsAlreadyRevoked(t *testing.T) {
	p := Policy{ID: "pol-1", Status: StatusRevoked, Version: 2}

	_, _, _, err := p.Revoke(fixedID("evt-3"), 2, "breach", "u1", event.Metadata{})

	e, _ := errors.As(err)
	assert.Equal(t, errors.KindBusinessRule, e.Kind)
	assert.Equal(t, "policy.terminal_state", e.Rule)
}
