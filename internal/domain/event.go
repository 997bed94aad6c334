package domain

import (
	"time"

	"github.com/google/uuid"
)

// Event types published by the pipeline
const (
	EventCallStarted     = "call_started"
	EventCallEnded       = "call_ended"
	EventUtteranceAdded  = "utterance_added"
	EventSuggestionReady = "suggestion_ready"
	EventRecordingReady  = "recording_ready"
)

// Event is one realtime notification fanned out to subscribers. EventID is
// generated at publish time; delivery is at-least-once, so consumers dedup
// on EventID.
type Event struct {
	EventID    uuid.UUID   `json:"event_id"`
	Type       string      `json:"type"`
	CallID     uuid.UUID   `json:"call_id"`
	ExternalID string      `json:"external_id,omitempty"`
	Payload    interface{} `json:"payload,omitempty"`
	Timestamp  time.Time   `json:"timestamp"`
}
