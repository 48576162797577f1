package outbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo_ValidTransitions(t *testing.T) {
	cases := []struct {
		from, to OutboxStatus
	}{
		{StatusPending, StatusProcessing},
		{StatusProcessing, StatusPublished},
		{StatusProcessing, StatusFailed},
		{StatusFailed, StatusProcessing},
		{StatusFailed, StatusDLQ},
	}

	for _, c := range cases {
		assert.Truef(t, c.from.CanTransitionTo(c.to), "%s -> %s should be valid", c.from, c.to)
	}
}

func TestCanTransitionTo_InvalidTransitions(t *testing.T) {
	cases := []struct {
		from, to OutboxStatus
	}{
		{StatusPending, StatusPublished},
		{StatusPending, StatusFailed},
		{StatusPending, StatusDLQ},
		{StatusProcessing, StatusPending},
		{StatusProcessing, StatusDLQ},
		{StatusFailed, StatusPublished},
		{StatusPublished, StatusProcessing},
		{StatusPublished, StatusPending},
		{StatusDLQ, StatusProcessing},
		{StatusDLQ, StatusPending},
	}

	for _, c := range cases {
		assert.Falsef(t, c.from.CanTransitionTo(c.to), "%s -> %s should be invalid", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.True(t, StatusPublished.IsTerminal())
	assert.True(t, StatusDLQ.IsTerminal())
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusProcessing.IsTerminal())
	assert.False(t, StatusFailed.IsTerminal())
}

func TestValidOutboxTransitions_TerminalStatesHaveNoTransitions(t *testing.T) {
	assert.Empty(t, ValidOutboxTransitions[StatusPublished])
	assert.Empty(t, ValidOutboxTransitions[StatusDLQ])
}
