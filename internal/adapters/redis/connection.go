// Package redis lazily establishes a singleton Redis client, mirroring
// the shape of lib-commons' Postgres/Mongo/RabbitMQ connection wrappers
// for the one dependency lib-commons does not itself wrap. Grounded on
// the teacher's common/mredis.RedisConnection.
package redis

import (
	"context"
	"sync"

	libLog "github.com/LerianStudio/lib-commons/v2/commons/log"
	"github.com/redis/go-redis/v9"
)

// Connection holds the connection string for a Redis instance and hands
// back a cached *redis.Client once it has been pinged successfully.
type Connection struct {
	ConnectionStringSource string
	Logger                 libLog.Logger

	mu     sync.Mutex
	client *redis.Client
}

// GetClient returns the cached client, connecting and pinging it on the
// first call.
func (c *Connection) GetClient(ctx context.Context) (*redis.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.client != nil {
		return c.client, nil
	}

	opts, err := redis.ParseURL(c.ConnectionStringSource)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	if err := client.Ping(ctx).Err(); err != nil {
		c.Logger.Errorf("redis: ping failed: %s", err)

		return nil, err
	}

	c.Logger.Infof("redis: connected to %s", opts.Addr)

	c.client = client

	return client, nil
}
