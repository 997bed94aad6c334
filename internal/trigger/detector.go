package trigger

import (
	"strings"

	"voicedesk-backend/internal/domain"
)

// Config holds detector tuning. The confidence values and thresholds are
// business configuration, not constants: deployments tune them per team.
type Config struct {
	WindowSize      int // most-recent-N utterances considered
	MinAccumulation int // minimum window length for a periodic nudge

	QuestionConfidence      float64
	ConfusionConfidence     float64
	FrustrationConfidence   float64
	AssistanceConfidence    float64
	RegularUpdateConfidence float64
}

// DefaultConfig returns the default detector tuning
func DefaultConfig() *Config {
	return &Config{
		WindowSize:      10,
		MinAccumulation: 5,

		QuestionConfidence:      0.9,
		ConfusionConfidence:     0.8,
		FrustrationConfidence:   0.8,
		AssistanceConfidence:    0.7,
		RegularUpdateConfidence: 0.6,
	}
}

// Lexical marker sets, lowercase. Matched by substring against the newest
// utterance only.
var questionMarkers = []string{
	"?",
	"what",
	"when",
	"where",
	"which",
	"who",
	"why",
	"how",
	"can i",
	"could i",
	"can you",
	"could you",
	"do you",
	"is it possible",
	"help me",
	"i need help",
}

var confusionMarkers = []string{
	"i don't understand",
	"i dont understand",
	"confused",
	"confusing",
	"not clear",
	"what do you mean",
	"doesn't make sense",
	"doesnt make sense",
	"i'm lost",
	"im lost",
}

var frustrationMarkers = []string{
	"frustrated",
	"frustrating",
	"annoyed",
	"annoying",
	"ridiculous",
	"unacceptable",
	"this is taking",
	"still waiting",
	"again and again",
	"third time",
	"speak to a manager",
	"supervisor",
}

var assistanceMarkers = []string{
	"let me check",
	"let me look",
	"let me find",
	"one moment",
	"please hold",
	"bear with me",
	"checking",
	"looking into",
}

// Detector inspects the most recent window of utterances and decides whether
// a suggestion should be generated. It keeps no state between calls.
type Detector struct {
	config *Config
}

// NewDetector creates a new trigger detector
func NewDetector(config *Config) *Detector {
	if config == nil {
		config = DefaultConfig()
	}
	return &Detector{config: config}
}

// Config exposes the active tuning (the pipeline shares WindowSize)
func (d *Detector) Config() *Config {
	return d.config
}

// Detect runs the ordered trigger rules over the window; first match wins.
// A nil result means no suggestion should be produced.
func (d *Detector) Detect(window []*domain.Utterance) *domain.Trigger {
	if len(window) == 0 {
		return nil
	}

	newest := window[len(window)-1]
	text := strings.ToLower(newest.Text)

	switch newest.Speaker {
	case domain.SpeakerSystem:
		return nil

	case domain.SpeakerCaller:
		if matchesAny(text, questionMarkers) {
			return &domain.Trigger{Type: domain.TriggerQuestion, Confidence: d.config.QuestionConfidence}
		}
		if matchesAny(text, confusionMarkers) {
			return &domain.Trigger{Type: domain.TriggerConfusion, Confidence: d.config.ConfusionConfidence}
		}
		if matchesAny(text, frustrationMarkers) {
			return &domain.Trigger{Type: domain.TriggerFrustration, Confidence: d.config.FrustrationConfidence}
		}

	case domain.SpeakerAgent:
		if matchesAny(text, assistanceMarkers) {
			return &domain.Trigger{Type: domain.TriggerAgentAssistance, Confidence: d.config.AssistanceConfidence}
		}
	}

	// Periodic nudge once the window has accumulated enough context
	if len(window) >= d.config.MinAccumulation {
		return &domain.Trigger{Type: domain.TriggerRegularUpdate, Confidence: d.config.RegularUpdateConfidence}
	}

	return nil
}

func matchesAny(text string, markers []string) bool {
	for _, marker := range markers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
