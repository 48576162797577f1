// Package outbox implements the transactional outbox row: its status
// machine, validated constructor, and Postgres persistence. Grounded on
// the teacher's metadata-outbox package (same status machine, same
// constructor-validation shape, same sanitize/jitter helpers), but
// reworked to route Action/Policy domain events instead of ledger
// metadata changes.
package outbox

import (
	"crypto/rand"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/meridianhq/eventcore/pkg/idgen"
)

// Entity types an outbox row may route. Kept as a closed set (mirroring
// the teacher's Transaction/Operation pair) so FindByEntityID and the
// dispatcher's routing logic stay exhaustive.
const (
	EntityTypeAction = "Action"
	EntityTypePolicy = "Policy"
)

const (
	// MaxEntityIDLength bounds the entity_id column.
	MaxEntityIDLength = 255
	// MaxMetadataSize bounds the serialized outbox payload, guarding
	// against unbounded queue-side failures. It is a fixed value; no
	// configuration setting overrides it.
	MaxMetadataSize = 256 * 1024

	// DefaultMaxRetries is the max-attempts default for a fresh outbox
	// row, matching spec.md's stated default of 5.
	DefaultMaxRetries = 5
)

var (
	ErrEntityIDEmpty     = errors.New("outbox: entity id must not be empty")
	ErrEntityIDTooLong   = fmt.Errorf("outbox: entity id exceeds %d characters", MaxEntityIDLength)
	ErrInvalidEntityType = errors.New("outbox: entity type must be Action or Policy")
	ErrMetadataNil       = errors.New("outbox: metadata must not be nil")
	ErrMetadataTooLarge  = fmt.Errorf("outbox: metadata exceeds %d bytes", MaxMetadataSize)
)

// OutboxStatus is the outbox row's lifecycle state.
type OutboxStatus string

const (
	StatusPending    OutboxStatus = "PENDING"
	StatusProcessing OutboxStatus = "PROCESSING"
	StatusPublished  OutboxStatus = "PUBLISHED"
	StatusFailed     OutboxStatus = "FAILED"
	StatusDLQ        OutboxStatus = "DLQ"
)

// ValidOutboxTransitions enumerates the allowed next-states for each
// status. PENDING only ever advances to PROCESSING (the dispatcher
// claim); PROCESSING resolves to PUBLISHED or FAILED; FAILED may be
// retried back into PROCESSING or escalated to the terminal DLQ;
// PUBLISHED and DLQ admit nothing further.
var ValidOutboxTransitions = map[OutboxStatus][]OutboxStatus{
	StatusPending:    {StatusProcessing},
	StatusProcessing: {StatusPublished, StatusFailed},
	StatusFailed:     {StatusProcessing, StatusDLQ},
	StatusPublished:  {},
	StatusDLQ:        {},
}

// CanTransitionTo reports whether s may transition directly to to.
func (s OutboxStatus) CanTransitionTo(to OutboxStatus) bool {
	for _, allowed := range ValidOutboxTransitions[s] {
		if allowed == to {
			return true
		}
	}

	return false
}

// IsTerminal reports whether s admits no further transitions (P4).
func (s OutboxStatus) IsTerminal() bool {
	return s == StatusPublished || s == StatusDLQ
}

// MetadataOutbox is the in-memory outbox row: one per domain event,
// created in the same transaction as the event it routes.
type MetadataOutbox struct {
	ID         uuid.UUID
	EventID    string
	EntityID   string
	EntityType string
	EventType  string
	Metadata   map[string]any
	Status     OutboxStatus
	RetryCount int
	MaxRetries int
	LastError  string
	CreatedAt  time.Time
	UpdatedAt  time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}

func validEntityType(t string) bool {
	return t == EntityTypeAction || t == EntityTypePolicy
}

// NewMetadataOutbox validates inputs and builds a PENDING outbox row
// ready for insertion alongside its domain event.
func NewMetadataOutbox(entityID, entityType string, metadata map[string]any) (*MetadataOutbox, error) {
	if strings.TrimSpace(entityID) == "" {
		return nil, ErrEntityIDEmpty
	}

	if len(entityID) > MaxEntityIDLength {
		return nil, ErrEntityIDTooLong
	}

	if !validEntityType(entityType) {
		return nil, ErrInvalidEntityType
	}

	if metadata == nil {
		return nil, ErrMetadataNil
	}

	encoded, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("outbox: marshal metadata: %w", err)
	}

	if len(encoded) > MaxMetadataSize {
		return nil, ErrMetadataTooLarge
	}

	now := time.Now().UTC()

	id, err := idgen.Parse(idgen.NewString())
	if err != nil {
		return nil, err
	}

	return &MetadataOutbox{
		ID:         id,
		EntityID:   entityID,
		EntityType: entityType,
		Metadata:   metadata,
		Status:     StatusPending,
		RetryCount: 0,
		MaxRetries: DefaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// MetadataOutboxPostgreSQLModel is the flat row shape persisted to the
// event_outbox table.
type MetadataOutboxPostgreSQLModel struct {
	ID          string
	EventID     string
	EntityID    string
	EntityType  string
	EventType   string
	MetadataRaw []byte
	Status      string
	RetryCount  int
	MaxRetries  int
	LastError   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	ProcessedAt *time.Time
	NextRetryAt *time.Time
}

// FromEntity populates m from entry.
func (m *MetadataOutboxPostgreSQLModel) FromEntity(entry *MetadataOutbox) error {
	encoded, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("outbox: marshal metadata: %w", err)
	}

	m.ID = entry.ID.String()
	m.EventID = entry.EventID
	m.EntityID = entry.EntityID
	m.EntityType = entry.EntityType
	m.EventType = entry.EventType
	m.MetadataRaw = encoded
	m.Status = string(entry.Status)
	m.RetryCount = entry.RetryCount
	m.MaxRetries = entry.MaxRetries
	m.LastError = entry.LastError
	m.CreatedAt = entry.CreatedAt
	m.UpdatedAt = entry.UpdatedAt
	m.ProcessedAt = entry.ProcessedAt
	m.NextRetryAt = entry.NextRetryAt

	return nil
}

// ToEntity reconstructs a MetadataOutbox from m.
func (m *MetadataOutboxPostgreSQLModel) ToEntity() (*MetadataOutbox, error) {
	id, err := uuid.Parse(m.ID)
	if err != nil {
		return nil, fmt.Errorf("outbox: parse id: %w", err)
	}

	var metadata map[string]any
	if len(m.MetadataRaw) > 0 {
		if err := json.Unmarshal(m.MetadataRaw, &metadata); err != nil {
			return nil, fmt.Errorf("outbox: unmarshal metadata: %w", err)
		}
	}

	return &MetadataOutbox{
		ID:          id,
		EventID:     m.EventID,
		EntityID:    m.EntityID,
		EntityType:  m.EntityType,
		EventType:   m.EventType,
		Metadata:    metadata,
		Status:      OutboxStatus(m.Status),
		RetryCount:  m.RetryCount,
		MaxRetries:  m.MaxRetries,
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		ProcessedAt: m.ProcessedAt,
		NextRetryAt: m.NextRetryAt,
	}, nil
}

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\b\d{3}[-.]?\d{3}[-.]?\d{4}\b`)
	ipPattern    = regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`)
)

const maxSanitizedErrorLength = 500

// SanitizeErrorMessage redacts obvious PII from an upstream error message
// before it's persisted to last_error, and truncates it so a pathological
// error message can't blow up the outbox row.
func SanitizeErrorMessage(msg string) string {
	msg = emailPattern.ReplaceAllString(msg, "[REDACTED]")
	msg = phonePattern.ReplaceAllString(msg, "[REDACTED]")
	msg = ipPattern.ReplaceAllString(msg, "[REDACTED]")

	if len(msg) > maxSanitizedErrorLength {
		msg = msg[:maxSanitizedErrorLength] + "...[truncated]"
	}

	return msg
}

// SecureRandomFloat64 returns a cryptographically random float64 in
// [0.0, 1.0), used to jitter backoff delays without a global math/rand
// source shared across dispatcher goroutines.
func SecureRandomFloat64() float64 {
	n, err := rand.Int(rand.Reader, big.NewInt(1<<53))
	if err != nil {
		// crypto/rand failing indicates a broken platform entropy
		// source; jitter is not safety critical, so read crypto/rand
		// once more instead of propagating an error through a helper
		// with no error return. If that read fails too, buf stays
		// zeroed and the result is 0.
		var buf [8]byte
		_, _ = randFallback(buf[:])
		return float64(binary.BigEndian.Uint64(buf[:])%(1<<53)) / (1 << 53)
	}

	return float64(n.Int64()) / (1 << 53)
}

func randFallback(b []byte) (int, error) {
	return rand.Read(b)
}
