package call

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/repository/cockroach"
	apperrors "voicedesk-backend/pkg/errors"
	"voicedesk-backend/pkg/response"
)

// CallReader serves tracked calls
type CallReader interface {
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	GetTeamCalls(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]*domain.Call, error)
}

// TranscriptReader serves live transcripts
type TranscriptReader interface {
	Read(ctx context.Context, callID uuid.UUID) *domain.Transcript
}

// RecordingURLProvider issues presigned recording download URLs
type RecordingURLProvider interface {
	DownloadURL(ctx context.Context, callID uuid.UUID) (string, error)
}

// Handler serves the dashboard read API
type Handler struct {
	calls       CallReader
	transcripts TranscriptReader
	recordings  RecordingURLProvider
}

// NewHandler creates a new call handler
func NewHandler(calls CallReader, transcripts TranscriptReader, recordings RecordingURLProvider) *Handler {
	return &Handler{
		calls:       calls,
		transcripts: transcripts,
		recordings:  recordings,
	}
}

// serviceError maps store errors onto the API error vocabulary
func serviceError(err error) *apperrors.AppError {
	if errors.Is(err, cockroach.ErrNotFound) {
		return apperrors.CallNotFoundError()
	}
	return apperrors.DatabaseError(err)
}

func respondError(c *gin.Context, err error) {
	appErr := serviceError(err)
	response.Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
}

// ListQuery represents query parameters for listing calls
type ListQuery struct {
	Limit  int `form:"limit"`
	Offset int `form:"offset"`
}

// List returns the authenticated agent's team calls
// GET /v1/calls?limit=20&offset=0
func (h *Handler) List(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.ValidationError(c, err.Error())
		return
	}

	teamIDVal, exists := c.Get("team_id")
	if !exists {
		response.Unauthorized(c, "Not authenticated")
		return
	}
	teamID, ok := teamIDVal.(uuid.UUID)
	if !ok {
		response.InternalError(c, "Invalid team ID")
		return
	}

	if query.Limit <= 0 {
		query.Limit = 20
	}
	if query.Limit > 100 {
		query.Limit = 100
	}

	calls, err := h.calls.GetTeamCalls(c.Request.Context(), teamID, query.Limit, query.Offset)
	if err != nil {
		respondError(c, err)
		return
	}
	if calls == nil {
		calls = []*domain.Call{}
	}

	response.Success(c, http.StatusOK, calls)
}

// Get returns one call
// GET /v1/calls/:id
func (h *Handler) Get(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	call, err := h.calls.GetByID(c.Request.Context(), callID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, call)
}

// GetTranscript returns the call's transcript. Unknown calls get an empty
// transcript, matching the live read semantics.
// GET /v1/calls/:id/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	response.Success(c, http.StatusOK, h.transcripts.Read(c.Request.Context(), callID))
}

// GetRecordingURL returns a presigned download URL for the call recording
// GET /v1/calls/:id/recording-url
func (h *Handler) GetRecordingURL(c *gin.Context) {
	callID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.ValidationError(c, "Invalid call ID")
		return
	}

	url, err := h.recordings.DownloadURL(c.Request.Context(), callID)
	if err != nil {
		respondError(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"url": url})
}
