// Package idgen generates the time-ordered identifiers used for
// aggregate IDs, domain event IDs, and outbox row IDs. Sorting by ID
// also sorts by creation time, which keeps the outbox's PENDING queue
// and the event store's append order index-friendly.
package idgen

import "github.com/google/uuid"

// New returns a new UUIDv7. It panics if the platform's random source
// is unavailable, mirroring uuid.Must: an ID generator that can fail
// silently is worse than one that never returns.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString returns New().String().
func NewString() string {
	return New().String()
}

// IsValid reports whether s parses as a UUID of any version.
func IsValid(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// Parse parses s as a UUID, returning the zero UUID and an error if s
// is not a valid UUID string.
func Parse(s string) (uuid.UUID, error) {
	return uuid.Parse(s)
}
