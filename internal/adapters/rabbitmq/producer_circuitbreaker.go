package rabbitmq

import (
	"context"

	libCircuitBreaker "github.com/LerianStudio/lib-commons/v2/commons/circuitbreaker"
)

// ProducerCircuitBreaker decorates a ProducerRepository with a circuit
// breaker so a stalled RabbitMQ broker fails dispatcher publishes fast
// instead of hanging every outbox tick. Grounded on the teacher's
// producer-circuit-breaker wrapper over ProducerDefault, adapted to this
// module's single-return Publish method.
type ProducerCircuitBreaker struct {
	next ProducerRepository
	cb   *libCircuitBreaker.CircuitBreaker
}

// NewProducerCircuitBreaker wraps next with cb. It panics if either
// argument is nil.
func NewProducerCircuitBreaker(next ProducerRepository, cb *libCircuitBreaker.CircuitBreaker) *ProducerCircuitBreaker {
	if next == nil {
		panic("rabbitmq: wrapped producer must not be nil")
	}

	if cb == nil {
		panic("rabbitmq: circuit breaker must not be nil")
	}

	return &ProducerCircuitBreaker{next: next, cb: cb}
}

// Publish runs the wrapped publish through the circuit breaker. An open
// circuit fails immediately without touching the connection.
func (p *ProducerCircuitBreaker) Publish(ctx context.Context, exchange, routingKey string, message []byte) error {
	_, err := p.cb.Execute(func() (any, error) {
		return nil, p.next.Publish(ctx, exchange, routingKey, message)
	})

	return err
}

// CheckRabbitMQHealth delegates to the wrapped producer; the breaker has
// no bearing on the underlying connection's own health check.
func (p *ProducerCircuitBreaker) CheckRabbitMQHealth() bool {
	return p.next.CheckRabbitMQHealth()
}

var _ ProducerRepository = (*ProducerCircuitBreaker)(nil)
