// Package worker implements the queue side of the event delivery core:
// it consumes RabbitMQ deliveries, reconstructs domain events, and fans
// each event out to every handler subscribed to its event type, guarded
// by the idempotency ledger. Grounded on the teacher's audit consumer
// loop shape, generalized from one hardcoded consumer to a registry of
// named, independently-subscribed handlers.
package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/meridianhq/eventcore/internal/domain/event"
)

// Handler is a named, idempotency-guarded side effect subscribed to one
// or more event types.
type Handler interface {
	// Name uniquely identifies the handler within a process; it is also
	// the key used in the idempotency ledger.
	Name() string
	// EventTypes lists the dotted event types this handler subscribes to.
	EventTypes() []string
	// Invoke runs the handler's side effect for evt. It must be safe to
	// call again for the same event (the ledger prevents that from
	// actually happening in production, but Invoke itself should not
	// assume exclusivity).
	Invoke(ctx context.Context, evt event.Event) error
}

// Registry is the read-mostly, startup-populated handler lookup table
// described by spec.md §4.4: handler descriptors keyed by name, indexed
// by subscribed event type.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]Handler
	byEvent map[string][]Handler
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		byName:  make(map[string]Handler),
		byEvent: make(map[string][]Handler),
	}
}

// Register adds h to the registry. Registering the same handler name
// twice is a configuration error and panics, matching the teacher's
// fail-fast style for misconfiguration at startup.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[h.Name()]; exists {
		panic(fmt.Sprintf("worker: handler %q already registered", h.Name()))
	}

	r.byName[h.Name()] = h

	for _, eventType := range h.EventTypes() {
		r.byEvent[eventType] = append(r.byEvent[eventType], h)
	}
}

// HandlersFor returns the handlers subscribed to eventType, in
// registration order.
func (r *Registry) HandlersFor(eventType string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return append([]Handler(nil), r.byEvent[eventType]...)
}
