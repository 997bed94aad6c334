package domain

import (
	"time"

	"github.com/google/uuid"
)

// TriggerType classifies the condition that warranted a suggestion
type TriggerType string

const (
	TriggerQuestion        TriggerType = "question"
	TriggerConfusion       TriggerType = "confusion"
	TriggerFrustration     TriggerType = "frustration"
	TriggerAgentAssistance TriggerType = "agent_assistance"
	TriggerRegularUpdate   TriggerType = "regular_update"
)

// Trigger is a detected condition in the recent utterance window
type Trigger struct {
	Type       TriggerType `json:"type"`
	Confidence float64     `json:"confidence"`
}

// SuggestionType classifies the advisory artifact offered to the agent
type SuggestionType string

const (
	SuggestionResponse    SuggestionType = "response"
	SuggestionInformation SuggestionType = "information"
	SuggestionAction      SuggestionType = "action"
)

// SourcePassage is one retrieved knowledge-base passage backing a suggestion
type SourcePassage struct {
	Title     string  `json:"title"`
	Excerpt   string  `json:"excerpt"`
	Relevance float64 `json:"relevance"`
}

// Suggestion is an advisory artifact for the live agent. It is derived from
// a window of utterances and regenerated per trigger, never stored
// authoritatively.
type Suggestion struct {
	SuggestionID uuid.UUID       `json:"suggestion_id"`
	CallID       uuid.UUID       `json:"call_id"`
	Type         SuggestionType  `json:"type"`
	Text         string          `json:"text"`
	Confidence   float64         `json:"confidence"`
	Trigger      TriggerType     `json:"trigger"`
	Sources      []SourcePassage `json:"sources,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}
