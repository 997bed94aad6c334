package speaker

import (
	"strings"

	"voicedesk-backend/internal/domain"
)

// Input carries everything known about an utterance before attribution
type Input struct {
	Text       string
	Confidence float64
	// ProviderTag is the diarization label from the transcription provider,
	// if any. It is authoritative and bypasses the heuristic.
	ProviderTag domain.SpeakerRole
	// Previous is the speaker of the preceding utterance, for tie-breaking.
	Previous domain.SpeakerRole
}

// Classifier attributes an utterance to a speaker role. The lexical
// implementation below is a best-effort heuristic; the interface exists so a
// model-based classifier can replace it without touching the pipeline.
type Classifier interface {
	Classify(in Input) domain.SpeakerRole
}

// Lexical phrase sets. Caller patterns are checked before agent patterns;
// first match wins.
var callerPhrases = []string{
	"i need",
	"i want",
	"i would like",
	"i'd like",
	"can you help",
	"could you help",
	"i have a problem",
	"i have a question",
	"i'm calling about",
	"i am calling about",
	"my account",
	"my order",
	"my bill",
}

var agentPhrases = []string{
	"how can i help",
	"how may i help",
	"thank you for calling",
	"thanks for calling",
	"is there anything else",
	"let me check",
	"let me look",
	"one moment please",
	"i'll transfer you",
	"i will transfer you",
}

// Config holds heuristic tuning
type Config struct {
	// ConfidenceThreshold: when no phrase set matches, confidence above the
	// threshold attributes to the caller, at or below to the agent.
	ConfidenceThreshold float64
}

// DefaultConfig returns the default heuristic tuning
func DefaultConfig() *Config {
	return &Config{ConfidenceThreshold: 0.8}
}

// LexicalClassifier attributes speakers from fixed phrase sets with a
// confidence-threshold fallback
type LexicalClassifier struct {
	config *Config
}

// NewLexicalClassifier creates a new lexical classifier
func NewLexicalClassifier(config *Config) *LexicalClassifier {
	if config == nil {
		config = DefaultConfig()
	}
	return &LexicalClassifier{config: config}
}

// Classify attributes the utterance to a speaker role
func (c *LexicalClassifier) Classify(in Input) domain.SpeakerRole {
	// Diarization output from the provider is ground truth
	if in.ProviderTag != "" && in.ProviderTag != domain.SpeakerUnknown {
		return in.ProviderTag
	}

	text := strings.ToLower(in.Text)

	for _, phrase := range callerPhrases {
		if strings.Contains(text, phrase) {
			return domain.SpeakerCaller
		}
	}

	for _, phrase := range agentPhrases {
		if strings.Contains(text, phrase) {
			return domain.SpeakerAgent
		}
	}

	// No lexical signal and no confidence score: assume the turn changed
	if in.Confidence == 0 {
		switch in.Previous {
		case domain.SpeakerCaller:
			return domain.SpeakerAgent
		case domain.SpeakerAgent:
			return domain.SpeakerCaller
		}
	}

	if in.Confidence > c.config.ConfidenceThreshold {
		return domain.SpeakerCaller
	}
	return domain.SpeakerAgent
}
