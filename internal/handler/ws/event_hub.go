package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"voicedesk-backend/internal/broadcast"
	"voicedesk-backend/internal/database"
	"voicedesk-backend/internal/domain"
	"voicedesk-backend/pkg/cache"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
)

const dedupTTL = 5 * time.Minute

// EventHub manages WebSocket connections for the live event feed. Clients
// subscribe to one topic (the global feed, a call, or a provider call id) and
// receive every event published on it.
//
// The hub is also the local broadcaster transport. Events arrive twice on a
// single-node deployment, once from the local transport and once from the
// Redis subscription, so the hub dedups on event id before fan-out.
type EventHub struct {
	// Registered clients per topic
	topics map[string]map[*Client]bool

	redisClient *database.RedisClient
	dedup       *cache.MemoryCache
	metrics     *metrics.Metrics

	mu sync.RWMutex

	register   chan *Client
	unregister chan *Client
	deliver    chan *delivery
}

type delivery struct {
	topic   string
	payload []byte
}

// Client represents a WebSocket client
type Client struct {
	hub     *EventHub
	conn    *websocket.Conn
	send    chan []byte
	agentID uuid.UUID
	topic   string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in dev, restrict in production
	},
}

// NewEventHub creates a new event hub
func NewEventHub(redisClient *database.RedisClient, m *metrics.Metrics) *EventHub {
	hub := &EventHub{
		topics:      make(map[string]map[*Client]bool),
		redisClient: redisClient,
		dedup:       cache.NewMemoryCache(dedupTTL, 10000),
		metrics:     m,
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		deliver:     make(chan *delivery, 256),
	}

	go hub.run()

	return hub
}

// Name returns the transport label used in logs and metrics
func (h *EventHub) Name() string {
	return "local"
}

// Publish implements the broadcaster transport for clients connected to this
// instance. It never blocks the publisher: when the hub is saturated the
// delivery is dropped here and arrives via the Redis subscription instead.
func (h *EventHub) Publish(ctx context.Context, topic string, payload []byte) error {
	select {
	case h.deliver <- &delivery{topic: topic, payload: payload}:
	default:
	}
	return nil
}

var _ broadcast.Transport = (*EventHub)(nil)

// run handles hub operations
func (h *EventHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if h.topics[client.topic] == nil {
				h.topics[client.topic] = make(map[*Client]bool)

				// Subscribe to the Redis channel for this topic
				go h.subscribeToTopic(client.topic)
			}
			h.topics[client.topic][client] = true
			h.mu.Unlock()

			h.updateConnectionGauge()

		case client := <-h.unregister:
			h.mu.Lock()
			if clients, ok := h.topics[client.topic]; ok {
				if _, exists := clients[client]; exists {
					delete(clients, client)
					close(client.send)

					if len(clients) == 0 {
						delete(h.topics, client.topic)
					}
				}
			}
			h.mu.Unlock()

			h.updateConnectionGauge()

		case d := <-h.deliver:
			if !h.firstDelivery(d) {
				if h.metrics != nil {
					h.metrics.RecordDuplicateEvent()
				}
				continue
			}

			h.mu.RLock()
			if clients, ok := h.topics[d.topic]; ok {
				for client := range clients {
					select {
					case client.send <- d.payload:
					default:
						close(client.send)
						delete(clients, client)
					}
				}
			}
			h.mu.RUnlock()
		}
	}
}

// firstDelivery reports whether this event id has not been seen on this topic
// yet. Payloads without a parseable event id are passed through.
func (h *EventHub) firstDelivery(d *delivery) bool {
	var event domain.Event
	if err := json.Unmarshal(d.payload, &event); err != nil || event.EventID == uuid.Nil {
		return true
	}
	return h.dedup.SetIfAbsent(event.EventID.String()+"|"+d.topic, true, dedupTTL)
}

func (h *EventHub) updateConnectionGauge() {
	if h.metrics == nil {
		return
	}
	h.mu.RLock()
	total := 0
	for _, clients := range h.topics {
		total += len(clients)
	}
	h.mu.RUnlock()
	h.metrics.SetWebSocketConnections(total)
}

// subscribeToTopic subscribes to Redis Pub/Sub for a topic so events published
// by other instances reach this hub's clients
func (h *EventHub) subscribeToTopic(topic string) {
	ctx := context.Background()

	pubsub := h.redisClient.SafeSubscribe(ctx, topic)
	if pubsub == nil {
		// Redis degraded; local transport still delivers this instance's events
		logger.Warn("Skipping Redis subscription, degraded mode", zap.String("topic", topic))
		return
	}
	defer pubsub.Close()

	ch := pubsub.Channel()

	for msg := range ch {
		select {
		case h.deliver <- &delivery{topic: topic, payload: []byte(msg.Payload)}:
		default:
		}
	}
}

// ServeWS handles WebSocket subscription requests. The topic comes from query
// params: call_id for one call, external_id for a provider call id, neither
// for the global feed.
func (h *EventHub) ServeWS(c *gin.Context) {
	topic := broadcast.TopicEvents

	if callIDStr := c.Query("call_id"); callIDStr != "" {
		callID, err := uuid.Parse(callIDStr)
		if err != nil {
			c.JSON(400, gin.H{"error": "invalid call_id"})
			return
		}
		topic = broadcast.CallTopic(callID)
	} else if externalID := c.Query("external_id"); externalID != "" {
		topic = broadcast.ExternalTopic(externalID)
	}

	// Get agent ID from context (set by auth middleware)
	agentIDVal, exists := c.Get("agent_id")
	if !exists {
		c.JSON(401, gin.H{"error": "unauthorized"})
		return
	}

	agentID, ok := agentIDVal.(uuid.UUID)
	if !ok {
		c.JSON(500, gin.H{"error": "invalid agent_id"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", zap.Error(err))
		return
	}

	client := &Client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, 256),
		agentID: agentID,
		topic:   topic,
	}

	client.hub.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump drains the connection. The feed is one-way; inbound frames are
// discarded but the read loop detects closes and keeps pong handling alive.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Warn("WebSocket read error", zap.Error(err))
			}
			break
		}
	}
}

// writePump writes events to the WebSocket connection
func (c *Client) writePump() {
	ticker := time.NewTicker(54 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
