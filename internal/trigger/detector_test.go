package trigger

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"voicedesk-backend/internal/domain"
)

func window(pairs ...[2]string) []*domain.Utterance {
	var out []*domain.Utterance
	for i, p := range pairs {
		out = append(out, &domain.Utterance{
			Seq:     i,
			Speaker: domain.SpeakerRole(p[0]),
			Text:    p[1],
		})
	}
	return out
}

func TestDetectEmptyWindow(t *testing.T) {
	d := NewDetector(nil)
	assert.Nil(t, d.Detect(nil))
	assert.Nil(t, d.Detect([]*domain.Utterance{}))
}

func TestDetectCallerQuestion(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"caller", "How do I reset my password?"},
	))

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerQuestion, trig.Type)
	assert.Equal(t, 0.9, trig.Confidence)
}

func TestDetectCallerConfusion(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"caller", "I don't understand the last invoice"},
	))

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerConfusion, trig.Type)
	assert.Equal(t, 0.8, trig.Confidence)
}

func TestDetectCallerFrustration(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"caller", "This is ridiculous, I am still waiting"},
	))

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerFrustration, trig.Type)
	assert.Equal(t, 0.8, trig.Confidence)
}

func TestDetectQuestionBeatsConfusion(t *testing.T) {
	d := NewDetector(nil)

	// Contains both a question marker and a confusion marker; rules are
	// ordered, so question wins.
	trig := d.Detect(window(
		[2]string{"caller", "What do you mean? I'm confused"},
	))

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerQuestion, trig.Type)
}

func TestDetectAgentAssistance(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"agent", "Let me check your account, one moment"},
	))

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerAgentAssistance, trig.Type)
	assert.Equal(t, 0.7, trig.Confidence)
}

func TestDetectAgentDoesNotMatchCallerRules(t *testing.T) {
	d := NewDetector(nil)

	// Frustration markers only apply to caller speech
	trig := d.Detect(window(
		[2]string{"agent", "I know it is frustrating"},
	))

	assert.Nil(t, trig)
}

func TestDetectSystemNeverTriggers(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"caller", "filler"},
		[2]string{"agent", "filler"},
		[2]string{"caller", "filler"},
		[2]string{"agent", "filler"},
		[2]string{"system", "How do I escalate? This call may be recorded"},
	))

	assert.Nil(t, trig)
}

func TestDetectRegularUpdate(t *testing.T) {
	d := NewDetector(nil)

	w := window(
		[2]string{"caller", "filler"},
		[2]string{"agent", "filler"},
		[2]string{"caller", "filler"},
		[2]string{"agent", "filler"},
		[2]string{"caller", "the blue one on the left"},
	)

	trig := d.Detect(w)

	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerRegularUpdate, trig.Type)
	assert.Equal(t, 0.6, trig.Confidence)
}

func TestDetectNoTriggerBelowAccumulation(t *testing.T) {
	d := NewDetector(nil)

	trig := d.Detect(window(
		[2]string{"caller", "filler"},
		[2]string{"agent", "filler"},
		[2]string{"caller", "the blue one on the left"},
	))

	assert.Nil(t, trig)
}

func TestDetectCustomConfig(t *testing.T) {
	d := NewDetector(&Config{
		WindowSize:              10,
		MinAccumulation:         2,
		QuestionConfidence:      0.95,
		RegularUpdateConfidence: 0.5,
	})

	trig := d.Detect(window(
		[2]string{"caller", "Why is my bill higher"},
	))
	assert.NotNil(t, trig)
	assert.Equal(t, 0.95, trig.Confidence)

	trig = d.Detect(window(
		[2]string{"agent", "filler"},
		[2]string{"caller", "the blue one on the left"},
	))
	assert.NotNil(t, trig)
	assert.Equal(t, domain.TriggerRegularUpdate, trig.Type)
	assert.Equal(t, 0.5, trig.Confidence)
}
