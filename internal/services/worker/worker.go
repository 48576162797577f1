package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/meridianhq/eventcore/internal/adapters/rabbitmq"
	"github.com/meridianhq/eventcore/internal/domain/event"
	"github.com/meridianhq/eventcore/internal/services/ledger"
	"github.com/meridianhq/eventcore/pkg/reqcontext"
)

const defaultConcurrency = 10

// job mirrors dispatcher.job: the wire envelope published by the outbox
// dispatcher. Payload is the outbox blob, which embeds the original
// event's payload alongside its full metadata envelope (correlation id,
// causation id, actor) so a worker never needs to re-read the event row.
type job struct {
	EventID    string         `json:"eventId"`
	EntityID   string         `json:"entityId"`
	EntityType string         `json:"entityType"`
	EventType  string         `json:"eventType"`
	Payload    map[string]any `json:"payload"`
}

// eventPayload extracts the original event's payload from the outbox blob.
func (j job) eventPayload() map[string]any {
	payload, _ := j.Payload["payload"].(map[string]any)

	return payload
}

// eventMetadata reconstructs the event's metadata envelope from the
// outbox blob, defaulting to the zero value field by field when a key
// is missing or of an unexpected shape.
func (j job) eventMetadata() event.Metadata {
	raw, _ := j.Payload["metadata"].(map[string]any)
	if raw == nil {
		return event.Metadata{}
	}

	md := event.Metadata{}

	if v, ok := raw["correlationId"].(string); ok {
		md.CorrelationID = v
	}

	if v, ok := raw["causationId"].(string); ok {
		md.CausationID = v
	}

	if actorRaw, ok := raw["actor"].(map[string]any); ok {
		if v, ok := actorRaw["id"].(string); ok {
			md.Actor.ID = v
		}

		if v, ok := actorRaw["email"].(string); ok {
			md.Actor.Email = v
		}

		if v, ok := actorRaw["accountId"].(string); ok {
			md.Actor.AccountID = v
		}
	}

	if v, ok := raw["producerTimestamp"].(string); ok {
		if ts, err := time.Parse(time.RFC3339Nano, v); err == nil {
			md.ProducerTimestamp = ts
		}
	}

	if v, ok := raw["eventSchemaVersion"].(float64); ok {
		md.EventSchemaVersion = int(v)
	}

	return md
}

// RateLimiter caps how often a keyed operation may run. A nil RateLimiter
// on a Worker means no limit is enforced.
type RateLimiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// Worker consumes queue deliveries, reconstructs events, and dispatches
// them to every handler subscribed to the event's type, bounded by a
// worker-local concurrency limit (spec.md §4.4 step 4).
type Worker struct {
	logger      libLog.Logger
	consumer    rabbitmq.ConsumerRepository
	registry    *Registry
	ledgerSvc   ledger.Service
	concurrency int
	limiter     RateLimiter

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker wires a Worker. It panics on any nil dependency, matching
// the teacher's fail-fast construction style. concurrency defaults to
// 10 when zero.
func NewWorker(logger libLog.Logger, consumer rabbitmq.ConsumerRepository, registry *Registry, ledgerSvc ledger.Service, concurrency int) *Worker {
	if logger == nil {
		panic("worker: logger must not be nil")
	}

	if consumer == nil {
		panic("worker: consumer must not be nil")
	}

	if registry == nil {
		panic("worker: registry must not be nil")
	}

	if ledgerSvc == nil {
		panic("worker: ledger service must not be nil")
	}

	if concurrency == 0 {
		concurrency = defaultConcurrency
	}

	return &Worker{
		logger:      logger,
		consumer:    consumer,
		registry:    registry,
		ledgerSvc:   ledgerSvc,
		concurrency: concurrency,
		stopCh:      make(chan struct{}),
	}
}

// Start registers a consumer and begins processing deliveries in the
// background. Call Stop to shut it down gracefully.
func (w *Worker) Start(ctx context.Context) error {
	deliveries, err := w.consumer.Consume(ctx)
	if err != nil {
		return err
	}

	w.wg.Add(1)

	go w.loop(ctx, deliveries)

	return nil
}

// WithRateLimiter attaches a per-handler rate limiter, keyed by handler
// name, applied before every invocation in invokeOne. Returns w so it
// can be chained onto NewWorker. Optional: a Worker built without it
// enforces no rate limit.
func (w *Worker) WithRateLimiter(l RateLimiter) *Worker {
	w.limiter = l

	return w
}

// Stop signals the consume loop to exit and waits for in-flight jobs to
// finish, matching the dispatcher's graceful-shutdown shape.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() {
		close(w.stopCh)
	})
	w.wg.Wait()
}

func (w *Worker) loop(ctx context.Context, deliveries <-chan amqp.Delivery) {
	defer w.wg.Done()

	var jobWG sync.WaitGroup

	defer jobWG.Wait()

	for {
		select {
		case <-w.stopCh:
			return
		case d, ok := <-deliveries:
			if !ok {
				return
			}

			jobWG.Add(1)

			go func(d amqp.Delivery) {
				defer jobWG.Done()
				w.processDelivery(ctx, d)
			}(d)
		}
	}
}

// processDelivery deserializes one delivery, reconstructs the event and
// a background caller context seeded from it (spec.md §4.4 step 2),
// dispatches to subscribed handlers, and acks or nacks based on the
// aggregate outcome.
func (w *Worker) processDelivery(ctx context.Context, d amqp.Delivery) {
	var j job

	if err := json.Unmarshal(d.Body, &j); err != nil {
		w.logger.Errorf("worker: malformed job payload, dropping: %s", err)
		_ = d.Nack(false, false)

		return
	}

	metadata := j.eventMetadata()

	evt := event.Event{
		ID:            j.EventID,
		AggregateType: j.EntityType,
		AggregateID:   j.EntityID,
		Type:          j.EventType,
		Payload:       j.eventPayload(),
		Metadata:      metadata,
	}

	actor := reqcontext.Actor{ID: metadata.Actor.ID, Type: "user"}
	if metadata.Actor.ID == "" {
		actor = reqcontext.Actor{ID: event.SystemActor.ID, Type: "system"}
	}

	correlationID := metadata.CorrelationID
	if correlationID == "" {
		correlationID = j.EventID
	}

	workerCtx := reqcontext.FromEvent(context.Background(), correlationID, j.EventID, actor)

	handlers := w.registry.HandlersFor(evt.Type)
	if len(handlers) == 0 {
		w.logger.Infof("worker: no handlers subscribed to %s, acknowledging", evt.Type)
		_ = d.Ack(false)

		return
	}

	results := w.dispatchToHandlers(workerCtx, evt, handlers)

	failed := 0

	for _, err := range results {
		if err != nil {
			failed++
		}
	}

	if failed == len(handlers) {
		w.logger.Errorf("worker: all %d handlers failed for event %s", failed, evt.ID)
	}

	if failed > 0 {
		_ = d.Nack(false, true)

		return
	}

	_ = d.Ack(false)
}

// dispatchToHandlers runs every handler concurrently, bounded by the
// worker's concurrency limit.
func (w *Worker) dispatchToHandlers(ctx context.Context, evt event.Event, handlers []Handler) []error {
	sem := make(chan struct{}, w.concurrency)
	results := make([]error, len(handlers))

	var wg sync.WaitGroup

	for i, h := range handlers {
		i, h := i, h

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			results[i] = w.invokeOne(ctx, evt, h)
		}()
	}

	wg.Wait()

	return results
}

// invokeOne applies the idempotency guard around a single handler
// invocation: skip if the ledger already witnesses this (event,
// handler) pair, otherwise invoke and record on success (I4).
func (w *Worker) invokeOne(ctx context.Context, evt event.Event, h Handler) error {
	already, err := w.ledgerSvc.Has(ctx, evt.ID, h.Name())
	if err != nil {
		return err
	}

	if already {
		w.logger.Infof("worker: skipping handler %s for event %s, already processed", h.Name(), evt.ID)

		return nil
	}

	if w.limiter != nil {
		allowed, err := w.limiter.Allow(ctx, h.Name())
		if err != nil {
			return err
		}

		if !allowed {
			return fmt.Errorf("worker: handler %s rate limited, redelivery expected", h.Name())
		}
	}

	if err := h.Invoke(ctx, evt); err != nil {
		return err
	}

	return w.ledgerSvc.Record(ctx, evt.ID, h.Name())
}
