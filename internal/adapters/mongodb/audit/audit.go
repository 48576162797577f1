// Package audit persists the reference audit-sink handler's output:
// one immutable row per event, grounded on the teacher's
// components/ledger/internal/adapters/mongodb/audit package (Database
// .Collection(...).InsertOne, span-wrapped GetDB), generalized from the
// teacher's ledger-tree domain to the generic event-audit row spec.md
// §4.8 describes.
package audit

import "time"

const collectionName = "event_audit"

// Actor identifies who or what caused the audited event.
type Actor struct {
	ID        string
	Email     string
	AccountID string
}

// Record is one immutable audit row: one per (event, handler) success.
type Record struct {
	AggregateID    string
	AggregateType  string
	EventType      string
	Action         string
	BeforeSnapshot map[string]any
	AfterSnapshot  map[string]any
	Changes        map[string]any
	CorrelationID  string
	Actor          Actor
	Metadata       map[string]any
	OccurredAt     time.Time
	RecordedAt     time.Time
}

// AuditMongoDBModel is the bson-tagged shape persisted to MongoDB.
type AuditMongoDBModel struct {
	AggregateID    string         `bson:"aggregate_id"`
	AggregateType  string         `bson:"aggregate_type"`
	EventType      string         `bson:"event_type"`
	Action         string         `bson:"action"`
	BeforeSnapshot map[string]any `bson:"before_snapshot,omitempty"`
	AfterSnapshot  map[string]any `bson:"after_snapshot,omitempty"`
	Changes        map[string]any `bson:"changes,omitempty"`
	CorrelationID  string         `bson:"correlation_id"`
	ActorID        string         `bson:"actor_id"`
	ActorEmail     string         `bson:"actor_email,omitempty"`
	ActorAccountID string         `bson:"actor_account_id,omitempty"`
	Metadata       map[string]any `bson:"metadata,omitempty"`
	OccurredAt     time.Time      `bson:"occurred_at"`
	RecordedAt     time.Time      `bson:"recorded_at"`
}

// FromEntity converts a Record to its persisted shape.
func (m *AuditMongoDBModel) FromEntity(r Record) {
	m.AggregateID = r.AggregateID
	m.AggregateType = r.AggregateType
	m.EventType = r.EventType
	m.Action = r.Action
	m.BeforeSnapshot = r.BeforeSnapshot
	m.AfterSnapshot = r.AfterSnapshot
	m.Changes = r.Changes
	m.CorrelationID = r.CorrelationID
	m.ActorID = r.Actor.ID
	m.ActorEmail = r.Actor.Email
	m.ActorAccountID = r.Actor.AccountID
	m.Metadata = r.Metadata
	m.OccurredAt = r.OccurredAt
	m.RecordedAt = r.RecordedAt
}

// ToEntity reconstructs a Record from its persisted shape.
func (m *AuditMongoDBModel) ToEntity() Record {
	return Record{
		AggregateID:    m.AggregateID,
		AggregateType:  m.AggregateType,
		EventType:      m.EventType,
		Action:         m.Action,
		BeforeSnapshot: m.BeforeSnapshot,
		AfterSnapshot:  m.AfterSnapshot,
		Changes:        m.Changes,
		CorrelationID:  m.CorrelationID,
		Actor:          Actor{ID: m.ActorID, Email: m.ActorEmail, AccountID: m.ActorAccountID},
		Metadata:       m.Metadata,
		OccurredAt:     m.OccurredAt,
		RecordedAt:     m.RecordedAt,
	}
}
