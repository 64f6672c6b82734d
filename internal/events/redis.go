package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jonesrussell/north-cloud/market-scheduler/internal/logger"
)

// publishTimeout bounds one Redis PUBLISH; the bus must never stall on
// the mirror.
const publishTimeout = 2 * time.Second

// RedisMirror relays every bus event to a Redis Pub/Sub channel so
// other services can observe job updates without holding a websocket.
type RedisMirror struct {
	client  *redis.Client
	channel string
	logger  logger.Interface
}

// NewRedisMirror connects a mirror to Redis. Returns an error when the
// server is unreachable.
func NewRedisMirror(addr, password string, db int, channel string, log logger.Interface) (*RedisMirror, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}

	return &RedisMirror{client: client, channel: channel, logger: log.WithComponent("events.redis")}, nil
}

// Publish relays one event. Failures are logged, never propagated.
func (m *RedisMirror) Publish(event Event) {
	payload, err := json.Marshal(event)
	if err != nil {
		m.logger.Error("failed to marshal event", "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := m.client.Publish(ctx, m.channel, payload).Err(); err != nil {
		m.logger.Warn("failed to mirror event to redis", "error", err)
	}
}

// Close releases the Redis connection.
func (m *RedisMirror) Close() error {
	return m.client.Close()
}
