// Package rabbitmq carries outbox-claimed events from the dispatcher to
// the queue worker, grounded on the teacher's
// components/consumer/internal/adapters/rabbitmq producer.
package rabbitmq

import (
	"context"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libConstants "github.com/LerianStudio/lib-commons/v2/commons/constants"
	libOpentelemetry "github.com/LerianStudio/lib-commons/v2/commons/opentelemetry"
	libRabbitmq "github.com/LerianStudio/lib-commons/v2/commons/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ProducerRepository publishes outbox-claimed event payloads to RabbitMQ.
type ProducerRepository interface {
	Publish(ctx context.Context, exchange, routingKey string, message []byte) error
	CheckRabbitMQHealth() bool
}

// ProducerRabbitMQRepository is the RabbitMQ implementation of ProducerRepository.
type ProducerRabbitMQRepository struct {
	conn *libRabbitmq.RabbitMQConnection
}

// NewProducerRabbitMQ returns a ProducerRabbitMQRepository bound to c. It
// panics if c cannot hand back a live connection.
func NewProducerRabbitMQ(c *libRabbitmq.RabbitMQConnection) *ProducerRabbitMQRepository {
	prmq := &ProducerRabbitMQRepository{conn: c}

	if _, err := c.GetNewConnect(); err != nil {
		panic("Failed to connect rabbitmq")
	}

	return prmq
}

// CheckRabbitMQHealth reports the underlying connection's health.
func (prmq *ProducerRabbitMQRepository) CheckRabbitMQHealth() bool {
	return prmq.conn.HealthCheck()
}

// Publish sends message to exchange/routingKey with persistent delivery
// mode and the correlation id carried forward as a header, so the worker
// can reconstruct reqcontext at the consume boundary.
func (prmq *ProducerRabbitMQRepository) Publish(ctx context.Context, exchange, routingKey string, message []byte) error {
	logger := libCommons.NewLoggerFromContext(ctx)
	tracer := libCommons.NewTracerFromContext(ctx)

	ctx, span := tracer.Start(ctx, "rabbitmq.producer.publish")
	defer span.End()

	err := prmq.conn.Channel.PublishWithContext(ctx,
		exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Headers: amqp.Table{
				libConstants.HeaderID: libCommons.NewHeaderIDFromContext(ctx),
			},
			Body: message,
		})
	if err != nil {
		libOpentelemetry.HandleSpanError(&span, "Failed to publish message", err)

		logger.Errorf("Failed to publish message to exchange %s: %s", exchange, err)

		return err
	}

	logger.Infof("Message published to exchange: %s, key: %s", exchange, routingKey)

	return nil
}
