package broadcast

import (
	"context"

	"voicedesk-backend/internal/database"
)

// RedisTransport publishes events over Redis Pub/Sub so that hub instances on
// other nodes can fan them out to their local WebSocket clients.
type RedisTransport struct {
	client *database.RedisClient
}

// NewRedisTransport creates a Redis-backed transport
func NewRedisTransport(client *database.RedisClient) *RedisTransport {
	return &RedisTransport{client: client}
}

// Name returns the transport label used in logs and metrics
func (t *RedisTransport) Name() string {
	return "redis"
}

// Publish sends the payload on the topic channel. In degraded mode the
// underlying client rejects the publish and the broadcaster falls back to the
// remaining transports.
func (t *RedisTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	return t.client.SafePublish(ctx, topic, payload).Err()
}
