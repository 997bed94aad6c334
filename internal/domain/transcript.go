package domain

import (
	"time"

	"github.com/google/uuid"
)

// SpeakerRole identifies who produced an utterance
type SpeakerRole string

const (
	SpeakerCaller  SpeakerRole = "caller"
	SpeakerAgent   SpeakerRole = "agent"
	SpeakerSystem  SpeakerRole = "system"
	SpeakerUnknown SpeakerRole = "unknown"
)

// Utterance is one attributed unit of speech-to-text output.
// Immutable once appended; Seq is the arrival position within the call.
type Utterance struct {
	UtteranceID uuid.UUID   `json:"utterance_id"`
	CallID      uuid.UUID   `json:"call_id"`
	Seq         int         `json:"seq"`
	Speaker     SpeakerRole `json:"speaker"`
	Text        string      `json:"text"`
	Confidence  float64     `json:"confidence,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
}

// Transcript is the ordered utterance log for one call.
// Ordering is arrival order: utterances appear in the order the pipeline
// accepted them, which under network jitter may differ from the order the
// words were actually spoken. No attempt is made to re-sort by speech time.
type Transcript struct {
	CallID     uuid.UUID    `json:"call_id"`
	Utterances []*Utterance `json:"utterances"`
	Summary    string       `json:"summary,omitempty"`
}

// Window returns the most recent n utterances, oldest first.
func (t *Transcript) Window(n int) []*Utterance {
	if n <= 0 || len(t.Utterances) <= n {
		return t.Utterances
	}
	return t.Utterances[len(t.Utterances)-n:]
}
