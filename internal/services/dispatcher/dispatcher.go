// Package dispatcher implements the outbox dispatcher: a ticking worker
// that claims PENDING/retry-due rows, publishes them to the queue, and
// routes publish failures to a retry or a terminal DLQ state. Grounded on
// the teacher's MetadataOutboxWorker (bootstrap/metadata_outbox.worker.go)
// for the constructor/backoff/routing contract and on
// other_examples/.../outbox_service.go's StartWorker/StopWorker shape for
// the ticker/stop-channel loop.
package dispatcher

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/outbox"
	"github.com/meridianhq/eventcore/internal/adapters/rabbitmq"
	"github.com/meridianhq/eventcore/pkg/mretry"
)

const (
	defaultMaxWorkers   = 5
	defaultBatchSize    = 100
	defaultPollInterval = 2 * time.Second
	exchange            = "eventcore.events"
)

// Dispatcher polls the outbox and publishes claimed rows to RabbitMQ.
type Dispatcher struct {
	logger       libLog.Logger
	outboxRepo   outbox.Repository
	producer     rabbitmq.ProducerRepository
	maxWorkers   int
	batchSize    int
	pollInterval time.Duration
	retryConfig  mretry.Config

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	ticking  atomic.Bool
}

// NewDispatcher wires a Dispatcher. It panics on a nil logger, outbox
// repository, or producer, matching the teacher's fail-fast construction
// style. maxWorkers and batchSize default to 5/100 when zero; an optional
// mretry.Config overrides the default backoff schedule.
func NewDispatcher(logger libLog.Logger, outboxRepo outbox.Repository, producer rabbitmq.ProducerRepository, maxWorkers, batchSize int, pollInterval time.Duration, retryConfig ...mretry.Config) *Dispatcher {
	if logger == nil {
		panic("dispatcher: logger must not be nil")
	}

	if outboxRepo == nil {
		panic("dispatcher: outbox repository must not be nil")
	}

	if producer == nil {
		panic("dispatcher: producer must not be nil")
	}

	if maxWorkers == 0 {
		maxWorkers = defaultMaxWorkers
	}

	if batchSize == 0 {
		batchSize = defaultBatchSize
	}

	if pollInterval == 0 {
		pollInterval = defaultPollInterval
	}

	cfg := mretry.DefaultMetadataOutboxConfig()
	if len(retryConfig) > 0 {
		cfg = retryConfig[0]
	}

	return &Dispatcher{
		logger:       logger,
		outboxRepo:   outboxRepo,
		producer:     producer,
		maxWorkers:   maxWorkers,
		batchSize:    batchSize,
		pollInterval: pollInterval,
		retryConfig:  cfg,
		stopCh:       make(chan struct{}),
	}
}

// calculateBackoff returns the retry delay for a given 0-indexed attempt.
func (d *Dispatcher) calculateBackoff(attempt int) time.Duration {
	return d.retryConfig.CalculateBackoff(attempt)
}

// Start launches the polling loop in the background. Call Stop to shut it
// down gracefully.
func (d *Dispatcher) Start(ctx context.Context) {
	d.wg.Add(1)

	go func() {
		defer d.wg.Done()

		ticker := time.NewTicker(d.pollInterval)
		defer ticker.Stop()

		d.logger.Infof("outbox dispatcher started, poll interval %s", d.pollInterval)

		for {
			select {
			case <-d.stopCh:
				d.logger.Infof("outbox dispatcher stopping")
				return
			case <-ticker.C:
				if err := d.tick(ctx); err != nil {
					d.logger.Errorf("outbox dispatcher tick error: %s", err)
				}
			}
		}
	}()
}

// Trigger forces one claim-and-publish tick outside the poll interval,
// backing the operator-facing triggerProcessing() surface. It shares
// tick's atomic ticking flag, so a forced tick never overlaps a
// scheduled one.
func (d *Dispatcher) Trigger(ctx context.Context) error {
	return d.tick(ctx)
}

// Stop signals the polling loop to exit and waits for it to finish.
func (d *Dispatcher) Stop() {
	d.stopOnce.Do(func() {
		close(d.stopCh)
	})
	d.wg.Wait()
}

// tick claims one batch and dispatches it across a bounded worker pool, so
// a burst of due entries never spawns more than maxWorkers concurrent
// publishes.
func (d *Dispatcher) tick(ctx context.Context) error {
	if !d.ticking.CompareAndSwap(false, true) {
		return nil
	}
	defer d.ticking.Store(false)

	entries, err := d.outboxRepo.ClaimBatch(ctx, d.batchSize)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	sem := make(chan struct{}, d.maxWorkers)

	var wg sync.WaitGroup

	for _, entry := range entries {
		entry := entry

		wg.Add(1)
		sem <- struct{}{}

		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			d.processEntry(ctx, entry)
		}()
	}

	wg.Wait()

	return nil
}

// job is the wire envelope published to the queue. It carries enough of
// the claimed outbox row for the worker to reconstruct an in-memory
// event and dispatch it to handlers without querying Postgres again.
type job struct {
	EventID    string         `json:"eventId"`
	EntityID   string         `json:"entityId"`
	EntityType string         `json:"entityType"`
	EventType  string         `json:"eventType"`
	Payload    map[string]any `json:"payload"`
}

// processEntry publishes one claimed entry and resolves its terminal or
// retry state.
func (d *Dispatcher) processEntry(ctx context.Context, entry *outbox.MetadataOutbox) {
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "dispatcher.process_entry")
	defer span.End()

	body, err := json.Marshal(job{
		EventID:    entry.EventID,
		EntityID:   entry.EntityID,
		EntityType: entry.EntityType,
		EventType:  entry.EventType,
		Payload:    entry.Metadata,
	})
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to marshal outbox metadata", err)
		d.handleProcessingError(ctx, entry, err)

		return
	}

	routingKey := entry.EntityType + "." + entry.EventType

	if err := d.producer.Publish(ctx, exchange, routingKey, body); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to publish outbox entry", err)
		d.handleProcessingError(ctx, entry, err)

		return
	}

	if err := d.outboxRepo.MarkPublished(ctx, entry.ID.String()); err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to mark outbox entry published", err)
		d.logger.Errorf("failed to mark outbox entry %s published: %s", entry.ID, err)
	}
}

// handleProcessingError routes a failed publish attempt to a retry
// (MarkFailed, with a computed next-retry time) or, once the entry has
// exhausted its retry budget, to the terminal DLQ state. Ground truth:
// TestHandleProcessingError_DLQRouting / _MarkFailedWhenRetriesRemain.
func (d *Dispatcher) handleProcessingError(ctx context.Context, entry *outbox.MetadataOutbox, cause error) {
	newRetryCount := entry.RetryCount + 1

	if newRetryCount >= entry.MaxRetries {
		if err := d.outboxRepo.MarkDLQ(ctx, entry.ID.String(), cause); err != nil {
			d.logger.Errorf("failed to mark outbox entry %s dlq: %s", entry.ID, err)
		}

		return
	}

	nextRetryAt := time.Now().UTC().Add(d.calculateBackoff(entry.RetryCount))

	if err := d.outboxRepo.MarkFailed(ctx, entry.ID.String(), cause, nextRetryAt); err != nil {
		d.logger.Errorf("failed to mark outbox entry %s failed: %s", entry.ID, err)
	}
}
