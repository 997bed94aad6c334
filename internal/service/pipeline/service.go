package pipeline

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/service/lifecycle"
	"voicedesk-backend/internal/service/suggestion"
	"voicedesk-backend/internal/service/transcript"
	"voicedesk-backend/internal/speaker"
	"voicedesk-backend/pkg/metrics"
)

// CallResolver finds or creates the call a speech result belongs to
type CallResolver interface {
	Resolve(ctx context.Context, input *lifecycle.ResolveInput) (*lifecycle.ResolveOutput, error)
}

// SpeakerClassifier attributes an utterance to a speaker role
type SpeakerClassifier interface {
	Classify(in speaker.Input) domain.SpeakerRole
}

// TranscriptLog appends and reads the per-call utterance log
type TranscriptLog interface {
	Append(ctx context.Context, input *transcript.AppendInput) (*transcript.AppendOutput, error)
	Window(ctx context.Context, callID uuid.UUID, n int) []*domain.Utterance
}

// TriggerDetector decides whether the window warrants a suggestion
type TriggerDetector interface {
	Detect(window []*domain.Utterance) *domain.Trigger
}

// SuggestionGenerator produces the suggestion for a trigger
type SuggestionGenerator interface {
	Generate(ctx context.Context, input *suggestion.GenerateInput) *domain.Suggestion
}

// Publisher fans out pipeline events
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event)
}

// Service runs one speech result through the full pipeline
type Service struct {
	calls       CallResolver
	classifier  SpeakerClassifier
	transcripts TranscriptLog
	detector    TriggerDetector
	generator   SuggestionGenerator
	publisher   Publisher
	windowSize  int
	metrics     *metrics.Metrics
}

// NewService creates a new pipeline service
func NewService(
	calls CallResolver,
	classifier SpeakerClassifier,
	transcripts TranscriptLog,
	detector TriggerDetector,
	generator SuggestionGenerator,
	publisher Publisher,
	windowSize int,
	m *metrics.Metrics,
) *Service {
	return &Service{
		calls:       calls,
		classifier:  classifier,
		transcripts: transcripts,
		detector:    detector,
		generator:   generator,
		publisher:   publisher,
		windowSize:  windowSize,
		metrics:     m,
	}
}

// ProcessSpeechResultInput carries one speech recognition result
type ProcessSpeechResultInput struct {
	ExternalID   string
	CallerNumber string
	TeamID       uuid.UUID
	Text         string
	Confidence   float64
	// ProviderTag is the provider's diarization label, if any
	ProviderTag domain.SpeakerRole
}

// ProcessSpeechResultOutput contains the logged utterance and, when a trigger
// fired, the generated suggestion
type ProcessSpeechResultOutput struct {
	Call       *domain.Call
	Utterance  *domain.Utterance
	Suggestion *domain.Suggestion
}

// ProcessSpeechResult resolves the call, attributes and logs the utterance,
// and generates a suggestion when the window warrants one. Only resolve and
// append failures abort; everything downstream degrades.
func (s *Service) ProcessSpeechResult(ctx context.Context, input *ProcessSpeechResultInput) (*ProcessSpeechResultOutput, error) {
	resolved, err := s.calls.Resolve(ctx, &lifecycle.ResolveInput{
		ExternalID:   input.ExternalID,
		CallerNumber: input.CallerNumber,
		TeamID:       input.TeamID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to resolve call: %w", err)
	}
	call := resolved.Call

	var previous domain.SpeakerRole
	if tail := s.transcripts.Window(ctx, call.CallID, 1); len(tail) > 0 {
		previous = tail[len(tail)-1].Speaker
	}

	role := s.classifier.Classify(speaker.Input{
		Text:        input.Text,
		Confidence:  input.Confidence,
		ProviderTag: input.ProviderTag,
		Previous:    previous,
	})

	appended, err := s.transcripts.Append(ctx, &transcript.AppendInput{
		CallID:     call.CallID,
		Speaker:    role,
		Text:       input.Text,
		Confidence: input.Confidence,
		ExternalID: call.ExternalID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append utterance: %w", err)
	}

	output := &ProcessSpeechResultOutput{
		Call:      call,
		Utterance: appended.Utterance,
	}

	window := s.transcripts.Window(ctx, call.CallID, s.windowSize)

	trigger := s.detector.Detect(window)
	if trigger == nil {
		return output, nil
	}

	if s.metrics != nil {
		s.metrics.RecordTrigger(string(trigger.Type))
	}

	sug := s.generator.Generate(ctx, &suggestion.GenerateInput{
		CallID:  call.CallID,
		TeamID:  call.TeamID,
		Trigger: trigger,
		Window:  window,
	})
	output.Suggestion = sug

	if s.publisher != nil && sug != nil {
		s.publisher.Publish(ctx, &domain.Event{
			Type:       domain.EventSuggestionReady,
			CallID:     call.CallID,
			ExternalID: call.ExternalID,
			Payload:    sug,
		})
	}

	return output, nil
}
