package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/meridianhq/eventcore/internal/domain/event"
)

type stubHandler struct {
	name       string
	eventTypes []string
}

func (h stubHandler) Name() string            { return h.name }
func (h stubHandler) EventTypes() []string    { return h.eventTypes }
func (h stubHandler) Invoke(context.Context, event.Event) error { return nil }

func TestRegistry_HandlersForReturnsSubscribedHandlersOnly(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "audit", eventTypes: []string{"action.created", "policy.created"}})
	r.Register(stubHandler{name: "projection", eventTypes: []string{"action.created"}})

	handlers := r.HandlersFor("action.created")

	assert.Len(t, handlers, 2)
	assert.ElementsMatch(t, []string{"audit", "projection"}, []string{handlers[0].Name(), handlers[1].Name()})
}

func TestRegistry_HandlersForUnknownEventTypeReturnsEmpty(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "audit", eventTypes: []string{"action.created"}})

	assert.Empty(t, r.HandlersFor("policy.revoked"))
}

func TestRegistry_RegisterDuplicateNamePanics(t *testing.T) {
	r := NewRegistry()
	r.Register(stubHandler{name: "audit", eventTypes: []string{"action.created"}})

	assert.Panics(t, func() {
		r.Register(stubHandler{name: "audit", eventTypes: []string{"policy.created"}})
	})
}
