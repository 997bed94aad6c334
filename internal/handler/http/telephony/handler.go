package telephony

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/service/lifecycle"
	"voicedesk-backend/internal/service/pipeline"
	"voicedesk-backend/internal/service/recording"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
	"voicedesk-backend/pkg/response"
)

// Pipeline processes speech results
type Pipeline interface {
	ProcessSpeechResult(ctx context.Context, input *pipeline.ProcessSpeechResultInput) (*pipeline.ProcessSpeechResultOutput, error)
}

// Lifecycle tracks call state
type Lifecycle interface {
	Resolve(ctx context.Context, input *lifecycle.ResolveInput) (*lifecycle.ResolveOutput, error)
	UpdateStatus(ctx context.Context, input *lifecycle.UpdateStatusInput) error
}

// Recordings stores finished call recordings
type Recordings interface {
	StoreRecording(ctx context.Context, input *recording.StoreRecordingInput) error
}

// Handler handles telephony provider webhooks. The provider retries on
// non-2xx responses, so only malformed payloads are rejected; failures past
// validation are logged and acknowledged.
type Handler struct {
	pipeline   Pipeline
	lifecycle  Lifecycle
	recordings Recordings
	metrics    *metrics.Metrics
	// baseURL prefixes webhook actions inside generated TwiML
	baseURL string
}

// NewHandler creates a new telephony webhook handler
func NewHandler(p Pipeline, l Lifecycle, r Recordings, m *metrics.Metrics, baseURL string) *Handler {
	return &Handler{
		pipeline:   p,
		lifecycle:  l,
		recordings: r,
		metrics:    m,
		baseURL:    baseURL,
	}
}

// VoiceRequest is the provider's inbound-call webhook payload
type VoiceRequest struct {
	CallSid string `form:"CallSid" binding:"required"`
	From    string `form:"From" binding:"required"`
}

// SpeechRequest is the provider's speech-result webhook payload
type SpeechRequest struct {
	CallSid      string `form:"CallSid" binding:"required"`
	From         string `form:"From"`
	SpeechResult string `form:"SpeechResult"`
	Confidence   string `form:"Confidence"`
}

// StatusRequest is the provider's status-callback payload
type StatusRequest struct {
	CallSid    string `form:"CallSid" binding:"required"`
	CallStatus string `form:"CallStatus" binding:"required"`
}

// RecordingRequest is the provider's recording-ready payload
type RecordingRequest struct {
	CallSid      string `form:"CallSid" binding:"required"`
	RecordingURL string `form:"RecordingUrl" binding:"required"`
}

// teamID pulls the team partition from the webhook URL. The provider console
// is configured with per-team webhook URLs carrying ?team_id=.
func teamID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Query("team_id"))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (h *Handler) recordWebhook(hook, outcome string) {
	if h.metrics != nil {
		h.metrics.RecordWebhook(hook, outcome)
	}
}

func (h *Handler) replyTwiML(c *gin.Context, verbs ...interface{}) {
	body, err := RenderTwiML(verbs...)
	if err != nil {
		logger.Error("Failed to render TwiML", zap.Error(err))
		c.Status(http.StatusOK)
		return
	}
	c.Data(http.StatusOK, "application/xml", []byte(body))
}

// gatherVerb builds the speech-collection verb pointing at the speech webhook
func (h *Handler) gatherVerb(team uuid.UUID, prompt string) *Gather {
	g := &Gather{
		Input:         "speech",
		Action:        h.baseURL + "/webhooks/speech?team_id=" + team.String(),
		Method:        "POST",
		SpeechTimeout: "auto",
	}
	if prompt != "" {
		g.Say = &Say{Text: prompt}
	}
	return g
}

// Voice handles the inbound-call webhook
// POST /webhooks/voice?team_id=uuid
func (h *Handler) Voice(c *gin.Context) {
	var req VoiceRequest
	if err := c.ShouldBind(&req); err != nil {
		h.recordWebhook("voice", "invalid")
		response.ValidationError(c, err.Error())
		return
	}

	team, ok := teamID(c)
	if !ok {
		h.recordWebhook("voice", "invalid")
		response.ValidationError(c, "missing or invalid team_id")
		return
	}

	if _, err := h.lifecycle.Resolve(c.Request.Context(), &lifecycle.ResolveInput{
		ExternalID:   req.CallSid,
		CallerNumber: req.From,
		TeamID:       team,
	}); err != nil {
		// Keep the call alive; the speech webhook will resolve again
		logger.Error("Failed to resolve inbound call",
			zap.String("external_id", req.CallSid),
			zap.Error(err))
	}

	h.recordWebhook("voice", "ok")
	h.replyTwiML(c,
		&Say{Text: "Thank you for calling. How can we help you today?"},
		&Record{
			RecordingStatusCallback:       h.baseURL + "/webhooks/recording?team_id=" + team.String(),
			RecordingStatusCallbackMethod: "POST",
		},
		h.gatherVerb(team, ""),
	)
}

// Speech handles a speech recognition result
// POST /webhooks/speech?team_id=uuid
func (h *Handler) Speech(c *gin.Context) {
	var req SpeechRequest
	if err := c.ShouldBind(&req); err != nil {
		h.recordWebhook("speech", "invalid")
		response.ValidationError(c, err.Error())
		return
	}

	team, ok := teamID(c)
	if !ok {
		h.recordWebhook("speech", "invalid")
		response.ValidationError(c, "missing or invalid team_id")
		return
	}

	// Empty result: the caller stayed silent, just listen again
	if req.SpeechResult == "" {
		h.recordWebhook("speech", "empty")
		h.replyTwiML(c, h.gatherVerb(team, ""))
		return
	}

	confidence, err := strconv.ParseFloat(req.Confidence, 64)
	if err != nil {
		confidence = 0
	}

	output, err := h.pipeline.ProcessSpeechResult(c.Request.Context(), &pipeline.ProcessSpeechResultInput{
		ExternalID:   req.CallSid,
		CallerNumber: req.From,
		TeamID:       team,
		Text:         req.SpeechResult,
		Confidence:   confidence,
	})
	if err != nil {
		// The call must go on even when the pipeline cannot log the utterance
		logger.Error("Speech processing failed",
			zap.String("external_id", req.CallSid),
			zap.Error(err))
		h.recordWebhook("speech", "degraded")
		h.replyTwiML(c, h.gatherVerb(team, ""))
		return
	}

	if output.Suggestion != nil {
		logger.Info("Suggestion generated",
			zap.String("call_id", output.Call.CallID.String()),
			zap.String("type", string(output.Suggestion.Type)),
			zap.Float64("confidence", output.Suggestion.Confidence))
	}

	h.recordWebhook("speech", "ok")
	h.replyTwiML(c, h.gatherVerb(team, ""))
}

// Status handles call status callbacks. Always acknowledged past validation;
// the provider would otherwise retry indefinitely.
// POST /webhooks/status
func (h *Handler) Status(c *gin.Context) {
	var req StatusRequest
	if err := c.ShouldBind(&req); err != nil {
		h.recordWebhook("status", "invalid")
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.lifecycle.UpdateStatus(c.Request.Context(), &lifecycle.UpdateStatusInput{
		ExternalID:     req.CallSid,
		ProviderStatus: req.CallStatus,
	}); err != nil {
		logger.Error("Status update failed",
			zap.String("external_id", req.CallSid),
			zap.String("status", req.CallStatus),
			zap.Error(err))
	}

	h.recordWebhook("status", "ok")
	c.Status(http.StatusOK)
}

// Recording handles recording-ready callbacks
// POST /webhooks/recording
func (h *Handler) Recording(c *gin.Context) {
	var req RecordingRequest
	if err := c.ShouldBind(&req); err != nil {
		h.recordWebhook("recording", "invalid")
		response.ValidationError(c, err.Error())
		return
	}

	if err := h.recordings.StoreRecording(c.Request.Context(), &recording.StoreRecordingInput{
		ExternalID:   req.CallSid,
		RecordingURL: req.RecordingURL,
	}); err != nil {
		logger.Error("Failed to store recording",
			zap.String("external_id", req.CallSid),
			zap.Error(err))
	}

	h.recordWebhook("recording", "ok")
	c.Status(http.StatusOK)
}
