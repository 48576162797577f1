package bootstrap

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"

	"github.com/meridianhq/eventcore/internal/adapters/postgres/outbox"
	"github.com/meridianhq/eventcore/internal/adapters/rabbitmq"
)

// HealthServer is the operator surface: a health probe, a metrics
// snapshot of outbox row counts, and a manual trigger for one dispatcher
// tick. The health probe reports RabbitMQ producer and consumer liveness
// only; it does not check memory or the database. The teacher's
// HTTP stack is fiber; this is deliberately a bare net/http mux instead,
// since two routes with no middleware don't need a framework.
type HealthServer struct {
	addr       string
	logger     libLog.Logger
	producer   rabbitmq.ProducerRepository
	consumer   rabbitmq.ConsumerRepository
	outboxRepo outbox.Repository
	trigger    func(context.Context) error

	server *http.Server
}

// NewHealthServer wires a HealthServer. addr is the listen address
// (e.g. ":8080"); producer/consumer back the RabbitMQ liveness check;
// outboxRepo backs getMetrics; trigger forces one dispatcher tick.
func NewHealthServer(addr string, logger libLog.Logger, producer rabbitmq.ProducerRepository, consumer rabbitmq.ConsumerRepository) *HealthServer {
	return &HealthServer{addr: addr, logger: logger, producer: producer, consumer: consumer}
}

// WithMetrics attaches the outbox repository and dispatcher trigger used
// by /metrics and the trigger query parameter. Optional: a HealthServer
// built without it still answers /health.
func (h *HealthServer) WithMetrics(outboxRepo outbox.Repository, trigger func(context.Context) error) *HealthServer {
	h.outboxRepo = outboxRepo
	h.trigger = trigger

	return h
}

// Run serves the mux until the process receives a shutdown signal, then
// drains in-flight requests with a bounded grace period. Mirrors
// components/consumer's own signal.Notify wait rather than relying on
// anything from the Launcher, consistent with dispatcherRunner/
// workerRunner in this package.
func (h *HealthServer) Run(_ *libCommons.Launcher) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/metrics", h.handleMetrics)

	h.server = &http.Server{Addr: h.addr, Handler: mux}

	errCh := make(chan error, 1)

	go func() {
		h.logger.Infof("health server listening on %s", h.addr)

		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case <-quit:
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return h.server.Shutdown(ctx)
}

func (h *HealthServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	rabbitUp := h.producer.CheckRabbitMQHealth() && h.consumer.CheckRabbitMQHealth()

	status := "ok"

	code := http.StatusOK
	if !rabbitUp {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"rabbit": rabbitUp,
	})
}

// metricsSnapshot is getMetrics()'s {pending, processing, completed, failed}
// shape from spec.md §6.
type metricsSnapshot struct {
	Pending    int `json:"pending"`
	Processing int `json:"processing"`
	Completed  int `json:"completed"`
	Failed     int `json:"failed"`
}

func (h *HealthServer) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("trigger") == "1" && h.trigger != nil {
		if err := h.trigger(r.Context()); err != nil {
			h.logger.Errorf("triggered dispatcher tick failed: %s", err)
		}
	}

	if h.outboxRepo == nil {
		w.WriteHeader(http.StatusServiceUnavailable)

		return
	}

	counts, err := h.outboxRepo.CountByStatus(r.Context())
	if err != nil {
		h.logger.Errorf("failed to read outbox metrics: %s", err)
		w.WriteHeader(http.StatusInternalServerError)

		return
	}

	snapshot := metricsSnapshot{
		Pending:    counts[outbox.StatusPending] + counts[outbox.StatusProcessing],
		Processing: counts[outbox.StatusProcessing],
		Completed:  counts[outbox.StatusPublished],
		Failed:     counts[outbox.StatusFailed] + counts[outbox.StatusDLQ],
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}
