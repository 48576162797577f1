// Package audit implements the reference audit-sink handler (spec.md
// §4.8): it maps a domain event to an immutable audit row and inserts
// it via the MongoDB adapter. It is wired into the queue worker's
// handler registry like any other handler.
package audit

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/meridianhq/eventcore/internal/adapters/mongodb/audit"
	"github.com/meridianhq/eventcore/internal/domain/event"
)

const HandlerName = "audit-sink"

// actionByEventSuffix maps the past-tense suffix of a dotted event type
// ("created", "activated", ...) to its audit action verb.
var actionByEventSuffix = map[string]string{
	"created":   "create",
	"updated":   "update",
	"activated": "activate",
	"suspended": "suspend",
	"completed": "complete",
	"cancelled": "cancel",
	"revoked":   "revoke",
}

// Handler is the audit sink: one Invoke produces one audit row.
type Handler struct {
	repo audit.Repository

	simulateFailure bool

	mu     sync.Mutex
	counts map[string]int
}

// NewHandler wires a Handler around repo. simulateFailure turns on the
// controlled-fault fixture (fails the first two invocations per
// (aggregateId,eventType) key, succeeds the third) used to exercise the
// worker/outbox retry ladder in tests; it must never be enabled in
// production.
func NewHandler(repo audit.Repository, simulateFailure bool) *Handler {
	if repo == nil {
		panic("audit: repository must not be nil")
	}

	return &Handler{repo: repo, simulateFailure: simulateFailure, counts: make(map[string]int)}
}

// Name identifies this handler in the idempotency ledger.
func (h *Handler) Name() string { return HandlerName }

// EventTypes subscribes to every lifecycle event the Action and Policy
// aggregates produce.
func (h *Handler) EventTypes() []string {
	return []string{
		"action.created", "action.updated", "action.completed", "action.cancelled",
		"policy.created", "policy.activated", "policy.suspended", "policy.revoked",
	}
}

// Invoke maps evt to an audit row and inserts it.
func (h *Handler) Invoke(ctx context.Context, evt event.Event) error {
	if h.simulateFailure && h.shouldFail(evt) {
		return fmt.Errorf("audit: simulated failure for %s/%s", evt.AggregateID, evt.Type)
	}

	record := audit.Record{
		AggregateID:   evt.AggregateID,
		AggregateType: evt.AggregateType,
		EventType:     evt.Type,
		Action:        actionFor(evt.Type),
		AfterSnapshot: evt.Payload,
		CorrelationID: evt.Metadata.CorrelationID,
		Actor:         audit.Actor{ID: evt.Metadata.Actor.ID, Email: evt.Metadata.Actor.Email, AccountID: evt.Metadata.Actor.AccountID},
		Metadata: map[string]any{
			"causationId":        evt.Metadata.CausationID,
			"producerTimestamp":  evt.Metadata.ProducerTimestamp,
			"eventSchemaVersion": evt.Metadata.EventSchemaVersion,
		},
		OccurredAt: evt.OccurredAt,
		RecordedAt: time.Now().UTC(),
	}

	if changes, ok := evt.Payload["changes"]; ok {
		if m, ok := changes.(map[string]any); ok {
			record.Changes = m
		}
	}

	return h.repo.Create(ctx, record)
}

// shouldFail implements the controlled-fault fixture: fails the first
// two invocations per (aggregateId, eventType) key, succeeds the third
// and every one after.
func (h *Handler) shouldFail(evt event.Event) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	key := evt.AggregateID + "|" + evt.Type
	h.counts[key]++

	return h.counts[key] <= 2
}

// actionFor maps a dotted event type's past-tense suffix to its audit
// action verb, falling back to the suffix itself for unmapped types.
func actionFor(eventType string) string {
	idx := strings.LastIndex(eventType, ".")
	if idx < 0 {
		return eventType
	}

	suffix := eventType[idx+1:]

	if action, ok := actionByEventSuffix[suffix]; ok {
		return action
	}

	return suffix
}
