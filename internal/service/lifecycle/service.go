package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/internal/insight"
	"voicedesk-backend/internal/repository/cockroach"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
)

// CallStore persists call records
type CallStore interface {
	Create(ctx context.Context, call *domain.Call) error
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error)
	UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus) error
	Complete(ctx context.Context, callID uuid.UUID) error
	SetSummary(ctx context.Context, callID uuid.UUID, summary string) error
	GetTeamCalls(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]*domain.Call, error)
}

// Publisher fans out lifecycle events
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event)
}

// TranscriptLog is the live transcript state: read and summarized at
// completion, then released
type TranscriptLog interface {
	Read(ctx context.Context, callID uuid.UUID) *domain.Transcript
	SetSummary(ctx context.Context, callID uuid.UUID, summary string)
	Evict(callID uuid.UUID)
}

// providerStatus maps the telephony provider's status vocabulary onto the
// pipeline's three states. Unlisted statuses leave the call untouched.
var providerStatus = map[string]domain.CallStatus{
	"queued":      domain.CallStatusQueued,
	"initiated":   domain.CallStatusQueued,
	"ringing":     domain.CallStatusActive,
	"in-progress": domain.CallStatusActive,
	"answered":    domain.CallStatusActive,
	"completed":   domain.CallStatusCompleted,
	"busy":        domain.CallStatusCompleted,
	"failed":      domain.CallStatusCompleted,
	"no-answer":   domain.CallStatusCompleted,
	"canceled":    domain.CallStatusCompleted,
}

// Service tracks each call from webhook arrival through completion
type Service struct {
	callStore   CallStore
	publisher   Publisher
	transcripts TranscriptLog
	insights    *insight.Extractor
	metrics     *metrics.Metrics
}

// NewService creates a new lifecycle service
func NewService(callStore CallStore, publisher Publisher, transcripts TranscriptLog, m *metrics.Metrics) *Service {
	return &Service{
		callStore:   callStore,
		publisher:   publisher,
		transcripts: transcripts,
		insights:    insight.NewExtractor(),
		metrics:     m,
	}
}

// ResolveInput identifies an inbound call
type ResolveInput struct {
	ExternalID   string
	CallerNumber string
	TeamID       uuid.UUID
}

// ResolveOutput contains the tracked call
type ResolveOutput struct {
	Call    *domain.Call
	Created bool
}

// Resolve returns the call for a provider call id, creating an ACTIVE record
// on first contact. The voice webhook only fires once the provider has a live
// leg, so a freshly resolved call is already in progress. Creation publishes
// call_started.
func (s *Service) Resolve(ctx context.Context, input *ResolveInput) (*ResolveOutput, error) {
	call, err := s.callStore.GetByExternalID(ctx, input.ExternalID)
	if err == nil {
		return &ResolveOutput{Call: call}, nil
	}
	if !errors.Is(err, cockroach.ErrNotFound) {
		return nil, fmt.Errorf("failed to resolve call: %w", err)
	}

	call = &domain.Call{
		CallID:       uuid.New(),
		ExternalID:   input.ExternalID,
		TeamID:       input.TeamID,
		CallerNumber: input.CallerNumber,
		Status:       domain.CallStatusActive,
		StartedAt:    time.Now(),
	}

	if err := s.callStore.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, &domain.Event{
			Type:       domain.EventCallStarted,
			CallID:     call.CallID,
			ExternalID: call.ExternalID,
			Payload:    call,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordCall(string(call.Status))
	}

	return &ResolveOutput{Call: call, Created: true}, nil
}

// GetByID retrieves a tracked call
func (s *Service) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	return s.callStore.GetByID(ctx, callID)
}

// GetTeamCalls lists a team's recent calls, newest first
func (s *Service) GetTeamCalls(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	return s.callStore.GetTeamCalls(ctx, teamID, limit, offset)
}

// UpdateStatusInput carries a provider status callback
type UpdateStatusInput struct {
	ExternalID     string
	ProviderStatus string
}

// UpdateStatus applies a provider status callback. Status callbacks for
// unknown call ids and unmapped statuses are logged and acknowledged; the
// provider retries on anything else.
func (s *Service) UpdateStatus(ctx context.Context, input *UpdateStatusInput) error {
	status, ok := providerStatus[input.ProviderStatus]
	if !ok {
		logger.Warn("Ignoring unmapped provider status",
			zap.String("external_id", input.ExternalID),
			zap.String("provider_status", input.ProviderStatus))
		return nil
	}

	call, err := s.callStore.GetByExternalID(ctx, input.ExternalID)
	if err != nil {
		if errors.Is(err, cockroach.ErrNotFound) {
			logger.Warn("Status callback for unknown call",
				zap.String("external_id", input.ExternalID),
				zap.String("provider_status", input.ProviderStatus))
			return nil
		}
		return fmt.Errorf("failed to look up call: %w", err)
	}

	if call.Status == status {
		return nil
	}
	// Terminal state is sticky; late ringing callbacks after completion
	// must not resurrect the call
	if call.IsTerminal() {
		return nil
	}

	if status == domain.CallStatusCompleted {
		return s.complete(ctx, call)
	}

	if err := s.callStore.UpdateStatus(ctx, call.CallID, status); err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordCall(string(status))
	}

	return nil
}

// complete transitions a call into its terminal state
func (s *Service) complete(ctx context.Context, call *domain.Call) error {
	if err := s.callStore.Complete(ctx, call.CallID); err != nil {
		return fmt.Errorf("failed to complete call: %w", err)
	}

	if s.transcripts != nil {
		if summary := s.summarize(s.transcripts.Read(ctx, call.CallID)); summary != "" {
			// Summary failure is not worth a provider retry of the whole callback
			if err := s.callStore.SetSummary(ctx, call.CallID, summary); err != nil {
				logger.Warn("Failed to persist call summary",
					zap.String("call_id", call.CallID.String()),
					zap.Error(err))
			}
			s.transcripts.SetSummary(ctx, call.CallID, summary)
		}
		s.transcripts.Evict(call.CallID)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, &domain.Event{
			Type:       domain.EventCallEnded,
			CallID:     call.CallID,
			ExternalID: call.ExternalID,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordCall(string(domain.CallStatusCompleted))
	}

	return nil
}

// summarize condenses a finished transcript into the one-line record kept on
// the call. Empty transcripts produce no summary.
func (s *Service) summarize(t *domain.Transcript) string {
	if t == nil || len(t.Utterances) == 0 {
		return ""
	}

	extracted := s.insights.Extract(t.Utterances)

	parts := []string{fmt.Sprintf("%d utterances", len(t.Utterances))}
	if len(extracted.Topics) > 0 {
		parts = append(parts, "topics: "+strings.Join(extracted.Topics, ", "))
	}
	parts = append(parts, "caller sentiment: "+extracted.Sentiment)

	return strings.Join(parts, "; ")
}
