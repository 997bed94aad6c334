package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
)

// Transport delivers a serialized event to one fan-out channel. Implementations
// must be safe for concurrent use.
type Transport interface {
	Name() string
	Publish(ctx context.Context, topic string, payload []byte) error
}

// Topic names. Every event goes to the global feed plus its per-call topics.
const (
	TopicEvents = "events"
)

// CallTopic returns the per-call topic for internal subscribers
func CallTopic(callID uuid.UUID) string {
	return fmt.Sprintf("call:%s", callID)
}

// ExternalTopic returns the topic keyed by the telephony provider's call id
func ExternalTopic(externalID string) string {
	return fmt.Sprintf("ext:%s", externalID)
}

// Broadcaster fans events out to every registered transport. Delivery is
// at-least-once: each transport gets every event, a failed transport is
// logged and skipped, and subscribers dedup on EventID. Publish never
// returns an error to the caller.
type Broadcaster struct {
	transports []Transport
	metrics    *metrics.Metrics
}

// NewBroadcaster creates a broadcaster over the given transports
func NewBroadcaster(m *metrics.Metrics, transports ...Transport) *Broadcaster {
	return &Broadcaster{
		transports: transports,
		metrics:    m,
	}
}

// Publish assigns the event identity and fans it out. The EventID is minted
// here so that every transport carries the same id for dedup.
func (b *Broadcaster) Publish(ctx context.Context, event *domain.Event) {
	if event.EventID == uuid.Nil {
		event.EventID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		// Log error but don't fail the request
		logger.Error("Failed to marshal event",
			zap.String("event_id", event.EventID.String()),
			zap.Error(err))
		return
	}

	topics := []string{TopicEvents, CallTopic(event.CallID)}
	if event.ExternalID != "" {
		topics = append(topics, ExternalTopic(event.ExternalID))
	}

	for _, transport := range b.transports {
		for _, topic := range topics {
			if err := transport.Publish(ctx, topic, payload); err != nil {
				// Log error but don't fail the request
				logger.Error("Failed to publish event",
					zap.String("event_id", event.EventID.String()),
					zap.String("transport", transport.Name()),
					zap.String("topic", topic),
					zap.Error(err))
				if b.metrics != nil {
					b.metrics.RecordTransportError(transport.Name())
				}
			}
		}
	}

	if b.metrics != nil {
		b.metrics.RecordEventPublished(event.Type)
	}
}

// Close shuts down transports that hold connections
func (b *Broadcaster) Close() {
	for _, transport := range b.transports {
		if closer, ok := transport.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
