package call

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/repository/cockroach"
	"voicedesk-backend/pkg/logger"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.Init(&logger.Config{Level: "error", Format: "json"})
	os.Exit(m.Run())
}

// Mocks
type MockCallReader struct {
	mock.Mock
}

func (m *MockCallReader) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	args := m.Called(ctx, callID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Call), args.Error(1)
}

func (m *MockCallReader) GetTeamCalls(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	args := m.Called(ctx, teamID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Call), args.Error(1)
}

type MockTranscriptReader struct {
	mock.Mock
}

func (m *MockTranscriptReader) Read(ctx context.Context, callID uuid.UUID) *domain.Transcript {
	args := m.Called(ctx, callID)
	return args.Get(0).(*domain.Transcript)
}

type MockRecordingURLProvider struct {
	mock.Mock
}

func (m *MockRecordingURLProvider) DownloadURL(ctx context.Context, callID uuid.UUID) (string, error) {
	args := m.Called(ctx, callID)
	return args.String(0), args.Error(1)
}

func newRouter(h *Handler, teamID uuid.UUID) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set("team_id", teamID)
		c.Next()
	})
	r.GET("/v1/calls", h.List)
	r.GET("/v1/calls/:id", h.Get)
	r.GET("/v1/calls/:id/transcript", h.GetTranscript)
	r.GET("/v1/calls/:id/recording-url", h.GetRecordingURL)
	return r
}

func doGet(r *gin.Engine, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestList_DefaultsAndEmptyResult(t *testing.T) {
	teamID := uuid.New()
	calls := new(MockCallReader)

	calls.On("GetTeamCalls", mock.Anything, teamID, 20, 0).Return(nil, nil)

	h := NewHandler(calls, new(MockTranscriptReader), new(MockRecordingURLProvider))
	w := doGet(newRouter(h, teamID), "/v1/calls")

	assert.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Success bool           `json:"success"`
		Data    []*domain.Call `json:"data"`
	}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.NotNil(t, body.Data)
	assert.Empty(t, body.Data)
	calls.AssertExpectations(t)
}

func TestList_LimitClamped(t *testing.T) {
	teamID := uuid.New()
	calls := new(MockCallReader)

	calls.On("GetTeamCalls", mock.Anything, teamID, 100, 0).
		Return([]*domain.Call{{CallID: uuid.New(), TeamID: teamID}}, nil)

	h := NewHandler(calls, new(MockTranscriptReader), new(MockRecordingURLProvider))
	w := doGet(newRouter(h, teamID), "/v1/calls?limit=500")

	assert.Equal(t, http.StatusOK, w.Code)
	calls.AssertExpectations(t)
}

func TestGet_NotFound(t *testing.T) {
	teamID := uuid.New()
	callID := uuid.New()
	calls := new(MockCallReader)

	calls.On("GetByID", mock.Anything, callID).Return(nil, cockroach.ErrNotFound)

	h := NewHandler(calls, new(MockTranscriptReader), new(MockRecordingURLProvider))
	w := doGet(newRouter(h, teamID), "/v1/calls/"+callID.String())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "CALL_NOT_FOUND")
}

func TestGet_InvalidID(t *testing.T) {
	h := NewHandler(new(MockCallReader), new(MockTranscriptReader), new(MockRecordingURLProvider))
	w := doGet(newRouter(h, uuid.New()), "/v1/calls/not-a-uuid")

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGet_StoreFailure(t *testing.T) {
	callID := uuid.New()
	calls := new(MockCallReader)

	calls.On("GetByID", mock.Anything, callID).Return(nil, errors.New("connection refused"))

	h := NewHandler(calls, new(MockTranscriptReader), new(MockRecordingURLProvider))
	w := doGet(newRouter(h, uuid.New()), "/v1/calls/"+callID.String())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "DATABASE_ERROR")
}

func TestGetTranscript_UnknownCallReturnsEmpty(t *testing.T) {
	callID := uuid.New()
	transcripts := new(MockTranscriptReader)

	transcripts.On("Read", mock.Anything, callID).
		Return(&domain.Transcript{CallID: callID, Utterances: []*domain.Utterance{}})

	h := NewHandler(new(MockCallReader), transcripts, new(MockRecordingURLProvider))
	w := doGet(newRouter(h, uuid.New()), "/v1/calls/"+callID.String()+"/transcript")

	assert.Equal(t, http.StatusOK, w.Code)
	transcripts.AssertExpectations(t)
}

func TestGetRecordingURL(t *testing.T) {
	callID := uuid.New()
	recordings := new(MockRecordingURLProvider)

	recordings.On("DownloadURL", mock.Anything, callID).
		Return("https://minio.local/presigned", nil)

	h := NewHandler(new(MockCallReader), new(MockTranscriptReader), recordings)
	w := doGet(newRouter(h, uuid.New()), "/v1/calls/"+callID.String()+"/recording-url")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "https://minio.local/presigned")
}
