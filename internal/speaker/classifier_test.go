package speaker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicedesk-backend/internal/domain"
)

func TestClassifyProviderTagWins(t *testing.T) {
	c := NewLexicalClassifier(nil)

	// Text matches a caller phrase but the diarization tag says agent
	role := c.Classify(Input{
		Text:        "I need to check that for you",
		Confidence:  0.95,
		ProviderTag: domain.SpeakerAgent,
	})

	assert.Equal(t, domain.SpeakerAgent, role)
}

func TestClassifyCallerPhrases(t *testing.T) {
	c := NewLexicalClassifier(nil)

	tests := []string{
		"I need help with my bill",
		"Can you help me reset my password?",
		"I'm calling about my order",
		"Hi, I have a problem with the app",
	}

	for _, text := range tests {
		role := c.Classify(Input{Text: text, Confidence: 0.5})
		assert.Equal(t, domain.SpeakerCaller, role, "text: %s", text)
	}
}

func TestClassifyAgentPhrases(t *testing.T) {
	c := NewLexicalClassifier(nil)

	tests := []string{
		"Thank you for calling support, how can I help you today?",
		"Let me check that for you",
		"One moment please",
	}

	for _, text := range tests {
		role := c.Classify(Input{Text: text, Confidence: 0.95})
		assert.Equal(t, domain.SpeakerAgent, role, "text: %s", text)
	}
}

func TestClassifyCallerBeforeAgent(t *testing.T) {
	c := NewLexicalClassifier(nil)

	// Both sets match; caller patterns are checked first
	role := c.Classify(Input{
		Text:       "I need help, let me check my statement",
		Confidence: 0.1,
	})

	assert.Equal(t, domain.SpeakerCaller, role)
}

func TestClassifyConfidenceFallback(t *testing.T) {
	c := NewLexicalClassifier(nil)

	// No phrase match: above threshold => caller
	role := c.Classify(Input{Text: "the blue one on the left", Confidence: 0.9})
	assert.Equal(t, domain.SpeakerCaller, role)

	// At threshold => agent
	role = c.Classify(Input{Text: "the blue one on the left", Confidence: 0.8})
	assert.Equal(t, domain.SpeakerAgent, role)

	// Below threshold => agent
	role = c.Classify(Input{Text: "the blue one on the left", Confidence: 0.2})
	assert.Equal(t, domain.SpeakerAgent, role)
}

func TestClassifyAlternatesOnMissingConfidence(t *testing.T) {
	c := NewLexicalClassifier(nil)

	// No phrase match, no confidence score: the turn likely changed
	role := c.Classify(Input{Text: "the blue one on the left", Previous: domain.SpeakerCaller})
	assert.Equal(t, domain.SpeakerAgent, role)

	role = c.Classify(Input{Text: "the blue one on the left", Previous: domain.SpeakerAgent})
	assert.Equal(t, domain.SpeakerCaller, role)

	// First utterance of the call, nothing to alternate from
	role = c.Classify(Input{Text: "the blue one on the left"})
	assert.Equal(t, domain.SpeakerAgent, role)
}

func TestClassifyConfidenceOutweighsPrevious(t *testing.T) {
	c := NewLexicalClassifier(nil)

	// A scored utterance uses the threshold, not the alternation
	role := c.Classify(Input{Text: "the blue one on the left", Confidence: 0.9, Previous: domain.SpeakerCaller})
	assert.Equal(t, domain.SpeakerCaller, role)
}

func TestClassifyCustomThreshold(t *testing.T) {
	c := NewLexicalClassifier(&Config{ConfidenceThreshold: 0.5})

	role := c.Classify(Input{Text: "the blue one on the left", Confidence: 0.6})
	assert.Equal(t, domain.SpeakerCaller, role)
}
