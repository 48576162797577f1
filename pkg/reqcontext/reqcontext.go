// Package reqcontext carries request-scoped identity across the
// synchronous command path and the asynchronous outbox/worker
// boundary: correlation ID, causation ID, and acting principal. Logger
// and tracer propagation is left to lib-commons' own context helpers
// (commons.ContextWithLogger / commons.NewLoggerFromContext); this
// package only adds the fields lib-commons doesn't know about.
package reqcontext

import (
	"context"

	"github.com/meridianhq/eventcore/pkg/idgen"
)

type contextKey string

const requestContextKey contextKey = "reqcontext"

// Actor identifies who (or what) initiated an operation.
type Actor struct {
	ID   string
	Type string // "user", "service", "system"
}

// Values is the bag of request-scoped identity carried in a context.
type Values struct {
	CorrelationID string
	CausationID   string
	Actor         Actor
}

func fromContext(ctx context.Context) (Values, bool) {
	v, ok := ctx.Value(requestContextKey).(Values)
	return v, ok
}

// WithValues attaches v to ctx, replacing any values already present.
func WithValues(ctx context.Context, v Values) context.Context {
	return context.WithValue(ctx, requestContextKey, v)
}

// New starts a fresh request context: a new correlation ID, no causation
// (this operation is the origin), and the given actor. Use this at a
// synchronous entrypoint (an inbound command).
func New(ctx context.Context, actor Actor) context.Context {
	return WithValues(ctx, Values{CorrelationID: idgen.NewString(), Actor: actor})
}

// FromEvent reconstructs a request context at an asynchronous boundary
// (the queue worker receiving a dispatched event). It is deliberately
// NOT derived from the dispatcher's own context: the correlation ID
// travels in the event's metadata, not in an inherited Go context, so
// the worker's context reflects the event that triggered it rather than
// whatever happened to be polling the outbox at the time.
func FromEvent(ctx context.Context, correlationID, causationID string, actor Actor) context.Context {
	return WithValues(ctx, Values{CorrelationID: correlationID, CausationID: causationID, Actor: actor})
}

// CorrelationID returns the correlation ID carried by ctx, or "" if none
// was set.
func CorrelationID(ctx context.Context) string {
	v, _ := fromContext(ctx)
	return v.CorrelationID
}

// CausationID returns the causation ID carried by ctx, or "" if none was
// set (the operation is itself the origin of the chain).
func CausationID(ctx context.Context) string {
	v, _ := fromContext(ctx)
	return v.CausationID
}

// ActorFrom returns the acting principal carried by ctx, or the zero
// Actor if none was set.
func ActorFrom(ctx context.Context) Actor {
	v, _ := fromContext(ctx)
	return v.Actor
}
