package suggestion

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/insight"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
	"voicedesk-backend/pkg/resilience"
	"voicedesk-backend/pkg/vectorstore"
)

// LanguageModel covers the completion and embedding calls the generator makes
type LanguageModel interface {
	Complete(ctx context.Context, system, user string, maxTokens int, temperature float64) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KnowledgeIndex retrieves ranked passages from the team knowledge base
type KnowledgeIndex interface {
	Query(ctx context.Context, namespace string, vector []float32, topK int, filter map[string]string) ([]vectorstore.Match, error)
}

// Config holds generator tuning
type Config struct {
	QueryMinLength     int
	TopK               int
	MaxTokens          int
	Temperature        float64
	Timeout            time.Duration
	FallbackConfidence float64
}

// DefaultConfig returns the default generator tuning
func DefaultConfig() *Config {
	return &Config{
		QueryMinLength:     12,
		TopK:               3,
		MaxTokens:          300,
		Temperature:        0.3,
		Timeout:            6 * time.Second,
		FallbackConfidence: 0.3,
	}
}

const systemPrompt = `You assist a call-center agent during a live call. ` +
	`Given the recent conversation and knowledge-base passages, write one ` +
	`concise paragraph the agent can act on immediately. Do not invent facts ` +
	`that are not in the passages or the conversation.`

// cannedQueries stand in for the retrieval query when the conversation has
// not produced enough signal yet
var cannedQueries = map[domain.TriggerType]string{
	domain.TriggerQuestion:        "frequently asked customer questions",
	domain.TriggerConfusion:       "explaining products and services simply",
	domain.TriggerFrustration:     "de-escalating an upset customer",
	domain.TriggerAgentAssistance: "agent reference material for account lookups",
	domain.TriggerRegularUpdate:   "general call handling guidance",
}

// cannedSuggestions are the degraded-path texts used when retrieval or
// generation fails
var cannedSuggestions = map[domain.TriggerType]string{
	domain.TriggerQuestion:        "Acknowledge the question and offer to look up the answer while keeping the caller informed.",
	domain.TriggerConfusion:       "Slow down and restate the last explanation in simpler terms, then confirm understanding.",
	domain.TriggerFrustration:     "Acknowledge the caller's frustration, apologize for the inconvenience, and focus on the next concrete step.",
	domain.TriggerAgentAssistance: "Keep the caller updated while you check, and summarize what you found when you return.",
	domain.TriggerRegularUpdate:   "Summarize what has been covered so far and confirm the caller's goal before moving on.",
}

// Generator produces agent-facing suggestions from the live transcript window
type Generator struct {
	model   LanguageModel
	index   KnowledgeIndex
	insight *insight.Extractor
	config  *Config
	metrics *metrics.Metrics
}

// NewGenerator creates a new suggestion generator
func NewGenerator(model LanguageModel, index KnowledgeIndex, config *Config, m *metrics.Metrics) *Generator {
	if config == nil {
		config = DefaultConfig()
	}
	return &Generator{
		model:   model,
		index:   index,
		insight: insight.NewExtractor(),
		config:  config,
		metrics: m,
	}
}

// GenerateInput carries the triggering context
type GenerateInput struct {
	CallID  uuid.UUID
	TeamID  uuid.UUID
	Trigger *domain.Trigger
	Window  []*domain.Utterance
}

// Generate produces a suggestion for the trigger. It never returns an error:
// any retrieval or generation failure degrades to a canned low-confidence
// fallback so the pipeline always has something to hand the agent.
func (g *Generator) Generate(ctx context.Context, input *GenerateInput) *domain.Suggestion {
	start := time.Now()

	ctx, cancel := context.WithTimeout(ctx, g.config.Timeout)
	defer cancel()

	insights := g.insight.Extract(input.Window)
	query := g.buildQuery(insights, input.Trigger)

	passages, err := g.retrieve(ctx, input.TeamID, query)
	if err != nil {
		logger.Warn("Knowledge retrieval failed, degrading to fallback",
			zap.String("call_id", input.CallID.String()),
			zap.String("trigger", string(input.Trigger.Type)),
			zap.Error(err))
		return g.fallback(input, start)
	}

	text, err := g.complete(ctx, input.Window, insights, passages)
	if err != nil {
		logger.Warn("Suggestion generation degraded to fallback",
			zap.String("call_id", input.CallID.String()),
			zap.String("trigger", string(input.Trigger.Type)),
			zap.Error(err))
		return g.fallback(input, start)
	}

	s := &domain.Suggestion{
		SuggestionID: uuid.New(),
		CallID:       input.CallID,
		Type:         suggestionType(input.Trigger.Type),
		Text:         text,
		Confidence:   input.Trigger.Confidence,
		Trigger:      input.Trigger.Type,
		Sources:      passages,
		CreatedAt:    time.Now(),
	}

	if g.metrics != nil {
		g.metrics.RecordSuggestion(string(s.Type), "generated", time.Since(start))
	}

	return s
}

// buildQuery assembles the retrieval query from extracted insights
func (g *Generator) buildQuery(insights *insight.Insights, trigger *domain.Trigger) string {
	var parts []string
	parts = append(parts, insights.Topics...)
	if n := len(insights.OpenQuestions); n > 0 {
		parts = append(parts, insights.OpenQuestions[n-1])
	}

	query := strings.Join(parts, " ")
	if len(query) < g.config.QueryMinLength {
		return cannedQueries[trigger.Type]
	}
	return query
}

// retrieve embeds the query and pulls the top passages for the team. A
// failure of either step fails retrieval as a whole; the caller degrades to
// the canned fallback rather than generating from thin air.
func (g *Generator) retrieve(ctx context.Context, teamID uuid.UUID, query string) ([]domain.SourcePassage, error) {
	var vector []float32
	err := resilience.Do(ctx, resilience.DefaultConfig(), "embed query", func() error {
		var embedErr error
		vector, embedErr = g.model.Embed(ctx, query)
		return embedErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	var matches []vectorstore.Match
	err = resilience.Do(ctx, resilience.DefaultConfig(), "query knowledge index", func() error {
		var queryErr error
		matches, queryErr = g.index.Query(ctx, teamID.String(), vector, g.config.TopK, nil)
		return queryErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query knowledge index: %w", err)
	}

	passages := make([]domain.SourcePassage, 0, len(matches))
	for _, m := range matches {
		passages = append(passages, domain.SourcePassage{
			Title:     m.Metadata["title"],
			Excerpt:   m.Metadata["text"],
			Relevance: m.Score,
		})
	}
	return passages, nil
}

// complete builds the prompt and calls the completion provider
func (g *Generator) complete(ctx context.Context, window []*domain.Utterance, insights *insight.Insights, passages []domain.SourcePassage) (string, error) {
	var b strings.Builder

	b.WriteString("Recent conversation:\n")
	for _, u := range window {
		fmt.Fprintf(&b, "%s: %s\n", u.Speaker, u.Text)
	}

	if len(insights.Topics) > 0 {
		fmt.Fprintf(&b, "\nTopics: %s\n", strings.Join(insights.Topics, ", "))
	}
	fmt.Fprintf(&b, "Caller sentiment: %s\n", insights.Sentiment)

	if len(passages) > 0 {
		b.WriteString("\nKnowledge base passages:\n")
		for i, p := range passages {
			fmt.Fprintf(&b, "[%d] %s: %s\n", i+1, p.Title, p.Excerpt)
		}
	}

	b.WriteString("\nSuggest what the agent should say or do next.")

	var text string
	err := resilience.Do(ctx, resilience.DefaultConfig(), "generate suggestion", func() error {
		var completeErr error
		text, completeErr = g.model.Complete(ctx, systemPrompt, b.String(), g.config.MaxTokens, g.config.Temperature)
		return completeErr
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("empty completion")
	}
	return text, nil
}

// fallback returns the canned low-confidence suggestion for the trigger
func (g *Generator) fallback(input *GenerateInput, start time.Time) *domain.Suggestion {
	text, ok := cannedSuggestions[input.Trigger.Type]
	if !ok {
		text = cannedSuggestions[domain.TriggerRegularUpdate]
	}

	s := &domain.Suggestion{
		SuggestionID: uuid.New(),
		CallID:       input.CallID,
		Type:         domain.SuggestionInformation,
		Text:         text,
		Confidence:   g.config.FallbackConfidence,
		Trigger:      input.Trigger.Type,
		CreatedAt:    time.Now(),
	}

	if g.metrics != nil {
		g.metrics.RecordSuggestion(string(s.Type), "fallback", time.Since(start))
	}

	return s
}

// suggestionType maps the trigger to what kind of help the agent gets
func suggestionType(t domain.TriggerType) domain.SuggestionType {
	switch t {
	case domain.TriggerQuestion:
		return domain.SuggestionResponse
	case domain.TriggerAgentAssistance:
		return domain.SuggestionInformation
	default:
		return domain.SuggestionAction
	}
}
