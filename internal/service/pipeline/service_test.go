package pipeline

import (
	"context"
	"errors"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/service/lifecycle"
	"voicedesk-backend/internal/service/suggestion"
	"voicedesk-backend/internal/service/transcript"
	"voicedesk-backend/internal/speaker"
	"voicedesk-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	logger.Init(&logger.Config{Level: "error", Format: "json"})
	os.Exit(m.Run())
}

// Mocks
type MockCallResolver struct {
	mock.Mock
}

func (m *MockCallResolver) Resolve(ctx context.Context, input *lifecycle.ResolveInput) (*lifecycle.ResolveOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lifecycle.ResolveOutput), args.Error(1)
}

type MockTranscriptLog struct {
	mock.Mock
}

func (m *MockTranscriptLog) Append(ctx context.Context, input *transcript.AppendInput) (*transcript.AppendOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transcript.AppendOutput), args.Error(1)
}

func (m *MockTranscriptLog) Window(ctx context.Context, callID uuid.UUID, n int) []*domain.Utterance {
	args := m.Called(ctx, callID, n)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).([]*domain.Utterance)
}

type MockDetector struct {
	mock.Mock
}

func (m *MockDetector) Detect(window []*domain.Utterance) *domain.Trigger {
	args := m.Called(window)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.Trigger)
}

type MockGenerator struct {
	mock.Mock
}

func (m *MockGenerator) Generate(ctx context.Context, input *suggestion.GenerateInput) *domain.Suggestion {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*domain.Suggestion)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(ctx context.Context, event *domain.Event) {
	m.Called(ctx, event)
}

func newPipeline(calls *MockCallResolver, transcripts *MockTranscriptLog, detector *MockDetector, generator *MockGenerator, publisher *MockPublisher) *Service {
	return NewService(
		calls,
		speaker.NewLexicalClassifier(nil),
		transcripts,
		detector,
		generator,
		publisher,
		10,
		nil,
	)
}

func TestProcessSpeechResultTriggersSuggestion(t *testing.T) {
	mockCalls := new(MockCallResolver)
	mockTranscripts := new(MockTranscriptLog)
	mockDetector := new(MockDetector)
	mockGenerator := new(MockGenerator)
	mockPublisher := new(MockPublisher)

	service := newPipeline(mockCalls, mockTranscripts, mockDetector, mockGenerator, mockPublisher)

	ctx := context.Background()
	callID := uuid.New()
	teamID := uuid.New()
	call := &domain.Call{CallID: callID, ExternalID: "CA1", TeamID: teamID, Status: domain.CallStatusActive}

	utterance := &domain.Utterance{UtteranceID: uuid.New(), CallID: callID, Seq: 0, Speaker: domain.SpeakerCaller, Text: "I need help with my bill"}
	window := []*domain.Utterance{utterance}
	trigger := &domain.Trigger{Type: domain.TriggerQuestion, Confidence: 0.9}
	sug := &domain.Suggestion{SuggestionID: uuid.New(), CallID: callID, Type: domain.SuggestionResponse}

	mockCalls.On("Resolve", ctx, mock.AnythingOfType("*lifecycle.ResolveInput")).Return(&lifecycle.ResolveOutput{Call: call}, nil)
	mockTranscripts.On("Append", ctx, mock.MatchedBy(func(in *transcript.AppendInput) bool {
		return in.CallID == callID && in.Speaker == domain.SpeakerCaller && in.ExternalID == "CA1"
	})).Return(&transcript.AppendOutput{Utterance: utterance}, nil)
	mockTranscripts.On("Window", ctx, callID, 1).Return(nil)
	mockTranscripts.On("Window", ctx, callID, 10).Return(window)
	mockDetector.On("Detect", window).Return(trigger)
	mockGenerator.On("Generate", ctx, mock.MatchedBy(func(in *suggestion.GenerateInput) bool {
		return in.CallID == callID && in.TeamID == teamID && in.Trigger == trigger
	})).Return(sug)

	var published *domain.Event
	mockPublisher.On("Publish", ctx, mock.AnythingOfType("*domain.Event")).Run(func(args mock.Arguments) {
		published = args.Get(1).(*domain.Event)
	}).Return()

	output, err := service.ProcessSpeechResult(ctx, &ProcessSpeechResultInput{
		ExternalID:   "CA1",
		CallerNumber: "+15551234567",
		TeamID:       teamID,
		Text:         "I need help with my bill",
		Confidence:   0.9,
	})

	assert.NoError(t, err)
	assert.Equal(t, utterance, output.Utterance)
	assert.Equal(t, sug, output.Suggestion)

	assert.NotNil(t, published)
	assert.Equal(t, domain.EventSuggestionReady, published.Type)
	assert.Equal(t, "CA1", published.ExternalID)

	mockCalls.AssertExpectations(t)
	mockTranscripts.AssertExpectations(t)
	mockGenerator.AssertExpectations(t)
}

func TestProcessSpeechResultNoTrigger(t *testing.T) {
	mockCalls := new(MockCallResolver)
	mockTranscripts := new(MockTranscriptLog)
	mockDetector := new(MockDetector)
	mockGenerator := new(MockGenerator)
	mockPublisher := new(MockPublisher)

	service := newPipeline(mockCalls, mockTranscripts, mockDetector, mockGenerator, mockPublisher)

	ctx := context.Background()
	callID := uuid.New()
	call := &domain.Call{CallID: callID, ExternalID: "CA1", Status: domain.CallStatusActive}
	utterance := &domain.Utterance{CallID: callID, Seq: 0, Text: "the blue one"}

	mockCalls.On("Resolve", ctx, mock.Anything).Return(&lifecycle.ResolveOutput{Call: call}, nil)
	mockTranscripts.On("Append", ctx, mock.Anything).Return(&transcript.AppendOutput{Utterance: utterance}, nil)
	mockTranscripts.On("Window", ctx, callID, 1).Return(nil)
	mockTranscripts.On("Window", ctx, callID, 10).Return([]*domain.Utterance{utterance})
	mockDetector.On("Detect", mock.Anything).Return(nil)

	output, err := service.ProcessSpeechResult(ctx, &ProcessSpeechResultInput{
		ExternalID: "CA1",
		Text:       "the blue one",
		Confidence: 0.5,
	})

	assert.NoError(t, err)
	assert.Nil(t, output.Suggestion)
	mockGenerator.AssertNotCalled(t, "Generate", mock.Anything, mock.Anything)
	mockPublisher.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestProcessSpeechResultResolveFailureAborts(t *testing.T) {
	mockCalls := new(MockCallResolver)
	mockTranscripts := new(MockTranscriptLog)

	service := newPipeline(mockCalls, mockTranscripts, new(MockDetector), new(MockGenerator), new(MockPublisher))

	ctx := context.Background()
	mockCalls.On("Resolve", ctx, mock.Anything).Return(nil, errors.New("db down"))

	output, err := service.ProcessSpeechResult(ctx, &ProcessSpeechResultInput{ExternalID: "CA1", Text: "hello"})

	assert.Error(t, err)
	assert.Nil(t, output)
	mockTranscripts.AssertNotCalled(t, "Append", mock.Anything, mock.Anything)
}

func TestProcessSpeechResultProviderTagRespected(t *testing.T) {
	mockCalls := new(MockCallResolver)
	mockTranscripts := new(MockTranscriptLog)
	mockDetector := new(MockDetector)

	service := newPipeline(mockCalls, mockTranscripts, mockDetector, new(MockGenerator), new(MockPublisher))

	ctx := context.Background()
	callID := uuid.New()
	call := &domain.Call{CallID: callID, ExternalID: "CA1"}

	mockCalls.On("Resolve", ctx, mock.Anything).Return(&lifecycle.ResolveOutput{Call: call}, nil)

	var appendedSpeaker domain.SpeakerRole
	mockTranscripts.On("Append", ctx, mock.Anything).Run(func(args mock.Arguments) {
		appendedSpeaker = args.Get(1).(*transcript.AppendInput).Speaker
	}).Return(&transcript.AppendOutput{Utterance: &domain.Utterance{}}, nil)
	mockTranscripts.On("Window", ctx, callID, 1).Return(nil)
	mockTranscripts.On("Window", ctx, callID, 10).Return(nil)
	mockDetector.On("Detect", mock.Anything).Return(nil)

	// Caller phrasing, but the provider tagged the channel as agent
	_, err := service.ProcessSpeechResult(ctx, &ProcessSpeechResultInput{
		ExternalID:  "CA1",
		Text:        "I need to pull up my notes",
		Confidence:  0.95,
		ProviderTag: domain.SpeakerAgent,
	})

	assert.NoError(t, err)
	assert.Equal(t, domain.SpeakerAgent, appendedSpeaker)
}
