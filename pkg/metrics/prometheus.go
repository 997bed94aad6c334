package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the transcript pipeline
type Metrics struct {
	registry *prometheus.Registry

	// HTTP Request Metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Webhook Metrics
	webhooksTotal *prometheus.CounterVec

	// Transcript Metrics
	utterancesTotal    *prometheus.CounterVec
	appendDuration     prometheus.Histogram
	appendErrorsTotal  prometheus.Counter
	transcriptsActive  prometheus.Gauge

	// Trigger / Suggestion Metrics
	triggersTotal      *prometheus.CounterVec
	suggestionsTotal   *prometheus.CounterVec
	suggestionDuration prometheus.Histogram

	// Broadcast Metrics
	eventsPublishedTotal *prometheus.CounterVec
	transportErrorsTotal *prometheus.CounterVec
	duplicateEventsTotal prometheus.Counter

	// WebSocket Metrics
	websocketConnections prometheus.Gauge

	// Call Metrics
	callsTotal  *prometheus.CounterVec
	callsActive prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics on a dedicated
// registry so tests can construct instances without collision
func NewMetrics(serviceName string) *Metrics {
	labels := prometheus.Labels{"service": serviceName}
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,

		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "http_requests_total",
				Help:        "Total number of HTTP requests",
				ConstLabels: labels,
			},
			[]string{"method", "endpoint", "status"},
		),
		httpRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "http_request_duration_seconds",
				Help:        "HTTP request latency in seconds",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
			[]string{"method", "endpoint"},
		),
		httpRequestsInFlight: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "http_requests_in_flight",
				Help:        "Number of HTTP requests currently being processed",
				ConstLabels: labels,
			},
		),
		webhooksTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "telephony_webhooks_total",
				Help:        "Total telephony webhook notifications by type and outcome",
				ConstLabels: labels,
			},
			[]string{"hook", "outcome"},
		),
		utterancesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "transcript_utterances_total",
				Help:        "Total utterances appended to transcripts by speaker role",
				ConstLabels: labels,
			},
			[]string{"speaker"},
		),
		appendDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "transcript_append_duration_seconds",
				Help:        "Transcript append latency (durable write included)",
				ConstLabels: labels,
				Buckets:     prometheus.DefBuckets,
			},
		),
		appendErrorsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "transcript_append_errors_total",
				Help:        "Total failed transcript appends",
				ConstLabels: labels,
			},
		),
		transcriptsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "transcripts_active",
				Help:        "Number of transcripts with an active in-memory log",
				ConstLabels: labels,
			},
		),
		triggersTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "suggestion_triggers_total",
				Help:        "Total triggers fired by type",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		suggestionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "suggestions_total",
				Help:        "Total suggestions produced, by type and source (generated or fallback)",
				ConstLabels: labels,
			},
			[]string{"type", "source"},
		),
		suggestionDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:        "suggestion_generation_duration_seconds",
				Help:        "End-to-end suggestion generation latency",
				ConstLabels: labels,
				Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 4, 6, 10},
			},
		),
		eventsPublishedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "broadcast_events_total",
				Help:        "Total events published by type",
				ConstLabels: labels,
			},
			[]string{"type"},
		),
		transportErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "broadcast_transport_errors_total",
				Help:        "Total transport delivery failures by transport",
				ConstLabels: labels,
			},
			[]string{"transport"},
		),
		duplicateEventsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name:        "broadcast_duplicate_events_total",
				Help:        "Total duplicate events suppressed by event id",
				ConstLabels: labels,
			},
		),
		websocketConnections: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "websocket_connections",
				Help:        "Number of active WebSocket connections",
				ConstLabels: labels,
			},
		),
		callsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "calls_total",
				Help:        "Total calls by final status",
				ConstLabels: labels,
			},
			[]string{"status"},
		),
		callsActive: factory.NewGauge(
			prometheus.GaugeOpts{
				Name:        "calls_active",
				Help:        "Number of currently active calls",
				ConstLabels: labels,
			},
		),
	}
}

// GetRegistry exposes the registry for the /metrics endpoint
func (m *Metrics) GetRegistry() *prometheus.Registry {
	return m.registry
}

// RecordHTTPRequest records an HTTP request with duration
func (m *Metrics) RecordHTTPRequest(method, endpoint, status string, duration time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	m.httpRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// IncrementHTTPRequestsInFlight increments in-flight request gauge
func (m *Metrics) IncrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Inc()
}

// DecrementHTTPRequestsInFlight decrements in-flight request gauge
func (m *Metrics) DecrementHTTPRequestsInFlight() {
	m.httpRequestsInFlight.Dec()
}

// RecordWebhook records a telephony webhook by hook name and outcome
func (m *Metrics) RecordWebhook(hook, outcome string) {
	m.webhooksTotal.WithLabelValues(hook, outcome).Inc()
}

// RecordUtterance records an appended utterance
func (m *Metrics) RecordUtterance(speaker string, duration time.Duration) {
	m.utterancesTotal.WithLabelValues(speaker).Inc()
	m.appendDuration.Observe(duration.Seconds())
}

// RecordAppendError records a failed append
func (m *Metrics) RecordAppendError() {
	m.appendErrorsTotal.Inc()
}

// SetActiveTranscripts sets the active transcript gauge
func (m *Metrics) SetActiveTranscripts(count int) {
	m.transcriptsActive.Set(float64(count))
}

// RecordTrigger records a fired trigger
func (m *Metrics) RecordTrigger(triggerType string) {
	m.triggersTotal.WithLabelValues(triggerType).Inc()
}

// RecordSuggestion records a produced suggestion
func (m *Metrics) RecordSuggestion(suggestionType, source string, duration time.Duration) {
	m.suggestionsTotal.WithLabelValues(suggestionType, source).Inc()
	m.suggestionDuration.Observe(duration.Seconds())
}

// RecordEventPublished records a broadcast event
func (m *Metrics) RecordEventPublished(eventType string) {
	m.eventsPublishedTotal.WithLabelValues(eventType).Inc()
}

// RecordTransportError records a transport delivery failure
func (m *Metrics) RecordTransportError(transport string) {
	m.transportErrorsTotal.WithLabelValues(transport).Inc()
}

// RecordDuplicateEvent records a suppressed duplicate event
func (m *Metrics) RecordDuplicateEvent() {
	m.duplicateEventsTotal.Inc()
}

// SetWebSocketConnections sets the active connection gauge
func (m *Metrics) SetWebSocketConnections(count int) {
	m.websocketConnections.Set(float64(count))
}

// RecordCall records a call reaching a status
func (m *Metrics) RecordCall(status string) {
	m.callsTotal.WithLabelValues(status).Inc()
}

// SetActiveCalls sets the active call gauge
func (m *Metrics) SetActiveCalls(count int) {
	m.callsActive.Set(float64(count))
}
