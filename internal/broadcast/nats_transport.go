package broadcast

import (
	"context"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
)

// subjectPrefix namespaces pipeline events on a shared NATS cluster
const subjectPrefix = "voicedesk."

// NATSTransport publishes events to a NATS cluster for downstream consumers
// (analytics, archival) outside the WebSocket path. The transport is optional;
// deployments without a NATS_URL simply never construct it.
type NATSTransport struct {
	conn *nats.Conn
}

// NewNATSTransport connects to NATS and returns the transport
func NewNATSTransport(url string) (*NATSTransport, error) {
	conn, err := nats.Connect(url,
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}
	return &NATSTransport{conn: conn}, nil
}

// Name returns the transport label used in logs and metrics
func (t *NATSTransport) Name() string {
	return "nats"
}

// Publish sends the payload on the subject derived from the topic. NATS
// subjects use dots as separators, so "call:<id>" becomes "voicedesk.call.<id>".
func (t *NATSTransport) Publish(ctx context.Context, topic string, payload []byte) error {
	subject := subjectPrefix + strings.ReplaceAll(topic, ":", ".")
	return t.conn.Publish(subject, payload)
}

// Close drains the connection
func (t *NATSTransport) Close() {
	if t.conn != nil {
		t.conn.Drain()
	}
}
