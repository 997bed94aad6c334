package telephony

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/service/lifecycle"
	"voicedesk-backend/internal/service/pipeline"
	"voicedesk-backend/internal/service/recording"
	"voicedesk-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init(&logger.Config{Level: "error", Format: "json"})
	os.Exit(m.Run())
}

// Mocks
type MockPipeline struct {
	mock.Mock
}

func (m *MockPipeline) ProcessSpeechResult(ctx context.Context, input *pipeline.ProcessSpeechResultInput) (*pipeline.ProcessSpeechResultOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*pipeline.ProcessSpeechResultOutput), args.Error(1)
}

type MockLifecycle struct {
	mock.Mock
}

func (m *MockLifecycle) Resolve(ctx context.Context, input *lifecycle.ResolveInput) (*lifecycle.ResolveOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lifecycle.ResolveOutput), args.Error(1)
}

func (m *MockLifecycle) UpdateStatus(ctx context.Context, input *lifecycle.UpdateStatusInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

type MockRecordings struct {
	mock.Mock
}

func (m *MockRecordings) StoreRecording(ctx context.Context, input *recording.StoreRecordingInput) error {
	args := m.Called(ctx, input)
	return args.Error(0)
}

func newRouter(h *Handler) *gin.Engine {
	r := gin.New()
	r.POST("/webhooks/voice", h.Voice)
	r.POST("/webhooks/speech", h.Speech)
	r.POST("/webhooks/status", h.Status)
	r.POST("/webhooks/recording", h.Recording)
	return r
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestVoiceWebhookReturnsTwiML(t *testing.T) {
	mockLifecycle := new(MockLifecycle)
	h := NewHandler(new(MockPipeline), mockLifecycle, new(MockRecordings), nil, "https://api.example.com")
	r := newRouter(h)

	team := uuid.New()
	call := &domain.Call{CallID: uuid.New(), ExternalID: "CA1", TeamID: team}
	mockLifecycle.On("Resolve", mock.Anything, mock.MatchedBy(func(in *lifecycle.ResolveInput) bool {
		return in.ExternalID == "CA1" && in.CallerNumber == "+15550001111" && in.TeamID == team
	})).Return(&lifecycle.ResolveOutput{Call: call, Created: true}, nil)

	w := postForm(r, "/webhooks/voice?team_id="+team.String(), url.Values{
		"CallSid": {"CA1"},
		"From":    {"+15550001111"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "application/xml")
	assert.Contains(t, w.Body.String(), "<Response>")
	assert.Contains(t, w.Body.String(), "<Gather")
	assert.Contains(t, w.Body.String(), "/webhooks/speech?team_id="+team.String())

	mockLifecycle.AssertExpectations(t)
}

func TestVoiceWebhookMissingCallSidRejected(t *testing.T) {
	mockLifecycle := new(MockLifecycle)
	h := NewHandler(new(MockPipeline), mockLifecycle, new(MockRecordings), nil, "")
	r := newRouter(h)

	w := postForm(r, "/webhooks/voice?team_id="+uuid.New().String(), url.Values{
		"From": {"+15550001111"},
	})

	// Rejected before any side effect
	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockLifecycle.AssertNotCalled(t, "Resolve", mock.Anything, mock.Anything)
}

func TestVoiceWebhookMissingTeamRejected(t *testing.T) {
	h := NewHandler(new(MockPipeline), new(MockLifecycle), new(MockRecordings), nil, "")
	r := newRouter(h)

	w := postForm(r, "/webhooks/voice", url.Values{
		"CallSid": {"CA1"},
		"From":    {"+15550001111"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSpeechWebhookRunsPipeline(t *testing.T) {
	mockPipeline := new(MockPipeline)
	h := NewHandler(mockPipeline, new(MockLifecycle), new(MockRecordings), nil, "")
	r := newRouter(h)

	team := uuid.New()
	call := &domain.Call{CallID: uuid.New(), ExternalID: "CA1", TeamID: team}

	mockPipeline.On("ProcessSpeechResult", mock.Anything, mock.MatchedBy(func(in *pipeline.ProcessSpeechResultInput) bool {
		return in.ExternalID == "CA1" && in.Text == "I need help with my bill" && in.Confidence == 0.87
	})).Return(&pipeline.ProcessSpeechResultOutput{Call: call, Utterance: &domain.Utterance{}}, nil)

	w := postForm(r, "/webhooks/speech?team_id="+team.String(), url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"I need help with my bill"},
		"Confidence":   {"0.87"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Gather")
	mockPipeline.AssertExpectations(t)
}

func TestSpeechWebhookEmptyResultNoSideEffects(t *testing.T) {
	mockPipeline := new(MockPipeline)
	h := NewHandler(mockPipeline, new(MockLifecycle), new(MockRecordings), nil, "")
	r := newRouter(h)

	w := postForm(r, "/webhooks/speech?team_id="+uuid.New().String(), url.Values{
		"CallSid": {"CA1"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	mockPipeline.AssertNotCalled(t, "ProcessSpeechResult", mock.Anything, mock.Anything)
}

func TestSpeechWebhookPipelineFailureStill200(t *testing.T) {
	mockPipeline := new(MockPipeline)
	h := NewHandler(mockPipeline, new(MockLifecycle), new(MockRecordings), nil, "")
	r := newRouter(h)

	mockPipeline.On("ProcessSpeechResult", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))

	w := postForm(r, "/webhooks/speech?team_id="+uuid.New().String(), url.Values{
		"CallSid":      {"CA1"},
		"SpeechResult": {"hello"},
	})

	// The live call keeps going
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "<Gather")
}

func TestStatusWebhookAlwaysAcknowledged(t *testing.T) {
	mockLifecycle := new(MockLifecycle)
	h := NewHandler(new(MockPipeline), mockLifecycle, new(MockRecordings), nil, "")
	r := newRouter(h)

	mockLifecycle.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(in *lifecycle.UpdateStatusInput) bool {
		return in.ExternalID == "CA1" && in.ProviderStatus == "completed"
	})).Return(errors.New("db down"))

	w := postForm(r, "/webhooks/status", url.Values{
		"CallSid":    {"CA1"},
		"CallStatus": {"completed"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	mockLifecycle.AssertExpectations(t)
}

func TestStatusWebhookMissingStatusRejected(t *testing.T) {
	h := NewHandler(new(MockPipeline), new(MockLifecycle), new(MockRecordings), nil, "")
	r := newRouter(h)

	w := postForm(r, "/webhooks/status", url.Values{
		"CallSid": {"CA1"},
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecordingWebhookStoresRecording(t *testing.T) {
	mockRecordings := new(MockRecordings)
	h := NewHandler(new(MockPipeline), new(MockLifecycle), mockRecordings, nil, "")
	r := newRouter(h)

	mockRecordings.On("StoreRecording", mock.Anything, mock.MatchedBy(func(in *recording.StoreRecordingInput) bool {
		return in.ExternalID == "CA1" && in.RecordingURL == "https://provider.example.com/rec/123"
	})).Return(nil)

	w := postForm(r, "/webhooks/recording", url.Values{
		"CallSid":      {"CA1"},
		"RecordingUrl": {"https://provider.example.com/rec/123"},
	})

	assert.Equal(t, http.StatusOK, w.Code)
	mockRecordings.AssertExpectations(t)
}
