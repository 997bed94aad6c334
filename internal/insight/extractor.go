package insight

import (
	"strings"

	"voicedesk-backend/internal/domain"
)

// Insights summarizes a window of conversation for the suggestion prompt
type Insights struct {
	Topics        []string
	OpenQuestions []string
	Sentiment     string
}

// Sentiment labels
const (
	SentimentPositive = "positive"
	SentimentNeutral  = "neutral"
	SentimentNegative = "negative"
)

// topicVocabulary maps a topic label to the lowercase markers that surface it
var topicVocabulary = map[string][]string{
	"billing":      {"billing", "bill", "invoice", "charge", "charged", "payment", "refund"},
	"account":      {"account", "login", "log in", "password", "username", "sign in"},
	"order":        {"order", "delivery", "shipping", "shipped", "tracking"},
	"cancellation": {"cancel", "cancellation", "terminate", "close my"},
	"technical":    {"error", "not working", "broken", "crash", "bug", "outage"},
	"upgrade":      {"upgrade", "plan", "subscription", "tier"},
}

// topicOrder fixes the output ordering of detected topics
var topicOrder = []string{"billing", "account", "order", "cancellation", "technical", "upgrade"}

var negativeWords = []string{
	"frustrated", "frustrating", "angry", "annoyed", "annoying", "terrible",
	"awful", "ridiculous", "unacceptable", "worst", "broken", "problem",
	"issue", "wrong", "bad", "cancel", "complaint",
}

var positiveWords = []string{
	"thanks", "thank you", "great", "perfect", "wonderful", "appreciate",
	"excellent", "awesome", "helpful", "good", "happy", "resolved",
}

// Extractor derives topics, open questions, and sentiment from a window of
// utterances. It is lexical and stateless; the LLM sees its output as prompt
// context, so cheap-but-rough is acceptable here.
type Extractor struct{}

// NewExtractor creates a new insight extractor
func NewExtractor() *Extractor {
	return &Extractor{}
}

// Extract derives insights from the window
func (e *Extractor) Extract(window []*domain.Utterance) *Insights {
	insights := &Insights{Sentiment: SentimentNeutral}
	if len(window) == 0 {
		return insights
	}

	seen := make(map[string]bool)
	var negative, positive int

	for _, u := range window {
		text := strings.ToLower(u.Text)

		for topic, markers := range topicVocabulary {
			if seen[topic] {
				continue
			}
			for _, marker := range markers {
				if strings.Contains(text, marker) {
					seen[topic] = true
					break
				}
			}
		}

		// Only caller speech moves the sentiment needle
		if u.Speaker == domain.SpeakerCaller {
			for _, w := range negativeWords {
				if strings.Contains(text, w) {
					negative++
				}
			}
			for _, w := range positiveWords {
				if strings.Contains(text, w) {
					positive++
				}
			}

			insights.OpenQuestions = append(insights.OpenQuestions, extractQuestions(u.Text)...)
		}
	}

	for _, topic := range topicOrder {
		if seen[topic] {
			insights.Topics = append(insights.Topics, topic)
		}
	}

	if negative > positive {
		insights.Sentiment = SentimentNegative
	} else if positive > negative {
		insights.Sentiment = SentimentPositive
	}

	return insights
}

// extractQuestions returns the sentences of text that end in a question mark
func extractQuestions(text string) []string {
	var questions []string

	rest := text
	for {
		idx := strings.IndexByte(rest, '?')
		if idx < 0 {
			break
		}

		sentence := rest[:idx+1]
		// Trim back to the start of the sentence
		if cut := strings.LastIndexAny(sentence[:idx], ".!?"); cut >= 0 {
			sentence = sentence[cut+1:]
		}
		sentence = strings.TrimSpace(sentence)
		if sentence != "" && sentence != "?" {
			questions = append(questions, sentence)
		}

		rest = rest[idx+1:]
	}

	return questions
}
