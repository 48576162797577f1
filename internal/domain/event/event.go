// Package event defines the domain event envelope every aggregate
// produces and every downstream handler consumes. It has no I/O: event
// rows are built here and persisted by the adapters/postgres package.
package event

import "time"

// Actor identifies who or what caused an event.
type Actor struct {
	ID        string
	Email     string
	AccountID string
}

// SystemActor is used when an event is produced by the core itself
// rather than by an external caller (e.g. worker-reconstructed context).
var SystemActor = Actor{ID: "system"}

// Metadata travels with every event and is what a worker uses to
// reconstruct a request context at the async boundary.
type Metadata struct {
	CorrelationID      string
	CausationID        string
	Actor              Actor
	ProducerTimestamp  time.Time
	EventSchemaVersion int
}

// Event is the immutable, past-tense fact an aggregate appends to its
// uncommitted-events buffer. OccurredAt is left zero until the write
// path assigns it at persistence time.
type Event struct {
	ID            string
	AggregateType string
	AggregateID   string
	Type          string // dotted, past-tense, e.g. "policy.activated"
	SchemaVersion int
	Payload       map[string]any
	Metadata      Metadata
	OccurredAt    time.Time
}

// New builds an Event with a freshly generated ID and SchemaVersion 1.
// Callers that need a different ID generator or schema version should
// set the fields directly; New just covers the common case aggregates
// use when appending to their own uncommitted-events buffer.
func New(idFn func() string, aggregateType, aggregateID, eventType string, payload map[string]any, md Metadata) Event {
	return Event{
		ID:            idFn(),
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		Type:          eventType,
		SchemaVersion: 1,
		Payload:       payload,
		Metadata:      md,
	}
}
