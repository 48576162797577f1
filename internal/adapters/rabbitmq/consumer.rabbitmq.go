package rabbitmq

import (
	"context"

	libCommons "github.com/LerianStudio/lib-commons/v2/commons"
	libRabbitmq "github.com/LerianStudio/lib-commons/v2/commons/rabbitmq"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ConsumerRepository hands the worker a raw delivery channel. Acking and
// nacking is left to the worker: it is the one that knows whether every
// handler for a job succeeded.
type ConsumerRepository interface {
	Consume(ctx context.Context) (<-chan amqp.Delivery, error)
	CheckRabbitMQHealth() bool
}

// ConsumerRabbitMQRepository is the RabbitMQ implementation of ConsumerRepository.
type ConsumerRabbitMQRepository struct {
	conn *libRabbitmq.RabbitMQConnection
}

// NewConsumerRabbitMQ returns a ConsumerRabbitMQRepository bound to c. It
// panics if c cannot hand back a live connection.
func NewConsumerRabbitMQ(c *libRabbitmq.RabbitMQConnection) *ConsumerRabbitMQRepository {
	crmq := &ConsumerRabbitMQRepository{conn: c}

	if _, err := c.GetNewConnect(); err != nil {
		panic("Failed to connect rabbitmq")
	}

	return crmq
}

// CheckRabbitMQHealth reports the underlying connection's health.
func (crmq *ConsumerRabbitMQRepository) CheckRabbitMQHealth() bool {
	return crmq.conn.HealthCheck()
}

// Consume registers a manual-ack consumer on the connection's queue and
// returns its delivery channel.
func (crmq *ConsumerRabbitMQRepository) Consume(ctx context.Context) (<-chan amqp.Delivery, error) {
	logger := libCommons.NewLoggerFromContext(ctx)

	deliveries, err := crmq.conn.Channel.Consume(
		crmq.conn.Queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		logger.Errorf("Failed to register a consumer: %s", err)

		return nil, err
	}

	logger.Infoln("init consumer message")

	return deliveries, nil
}
