package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus represents the lifecycle state of a call
type CallStatus string

const (
	CallStatusQueued    CallStatus = "QUEUED"
	CallStatusActive    CallStatus = "ACTIVE"
	CallStatusCompleted CallStatus = "COMPLETED"
)

// Call represents one phone call handled by the platform
type Call struct {
	CallID       uuid.UUID  `json:"call_id"`
	ExternalID   string     `json:"external_id"` // telephony provider call SID
	TeamID       uuid.UUID  `json:"team_id"`
	CallerNumber string     `json:"caller_number"`
	Status       CallStatus `json:"status"`
	StartedAt    time.Time  `json:"started_at"`
	EndedAt      *time.Time `json:"ended_at,omitempty"`
	RecordingKey string     `json:"recording_key,omitempty"` // object store key, set when recording is ready
	Summary      string     `json:"summary,omitempty"`       // transcript summary, written once at completion
}

// IsTerminal reports whether the call has reached its final state
func (c *Call) IsTerminal() bool {
	return c.Status == CallStatusCompleted
}
