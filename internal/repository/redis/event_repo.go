package redis

import (
	"context"
	"fmt"
	"time"

	"voicedesk-backend/internal/database"
)

const (
	deliveryKeyPrefix = "delivered:"
	deliveryTTL       = 24 * time.Hour
)

// EventRepository tracks processed delivery keys across instances. Telephony
// providers redeliver callbacks on timeout and the broadcaster is
// at-least-once, so expensive side effects consult this mark before running.
type EventRepository struct {
	client *database.RedisClient
}

// NewEventRepository creates a new EventRepository
func NewEventRepository(client *database.RedisClient) *EventRepository {
	return &EventRepository{client: client}
}

// MarkDelivered records the key and reports whether this was the first
// delivery. Redis unavailability is reported as an error; callers proceed
// and accept the duplicate work.
func (r *EventRepository) MarkDelivered(ctx context.Context, key string) (bool, error) {
	first, err := r.client.SafeSetNX(ctx, deliveryKeyPrefix+key, 1, deliveryTTL).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark delivery: %w", err)
	}

	return first, nil
}
