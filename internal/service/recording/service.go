package recording

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/resilience"
)

// CallStore looks up calls and persists the recording key
type CallStore interface {
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error)
	SetRecordingKey(ctx context.Context, callID uuid.UUID, key string) error
}

// ObjectStore stores recording bytes and issues download URLs
type ObjectStore interface {
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

// Publisher fans out recording events
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event)
}

// DeliveryMarker dedups redelivered provider callbacks across instances
type DeliveryMarker interface {
	MarkDelivered(ctx context.Context, key string) (bool, error)
}

// Config holds recording service tuning
type Config struct {
	FetchTimeout time.Duration
	DownloadTTL  time.Duration
}

// DefaultConfig returns the default recording tuning
func DefaultConfig() *Config {
	return &Config{
		FetchTimeout: 30 * time.Second,
		DownloadTTL:  15 * time.Minute,
	}
}

// Service copies finished call recordings from the telephony provider into
// the object store and serves presigned download URLs to the dashboard
type Service struct {
	callStore CallStore
	objects   ObjectStore
	publisher Publisher
	marks     DeliveryMarker
	client    *http.Client
	config    *Config
}

// NewService creates a new recording service. marks may be nil, in which case
// redelivered callbacks are stored again.
func NewService(callStore CallStore, objects ObjectStore, publisher Publisher, marks DeliveryMarker, config *Config) *Service {
	if config == nil {
		config = DefaultConfig()
	}
	return &Service{
		callStore: callStore,
		objects:   objects,
		publisher: publisher,
		marks:     marks,
		client:    &http.Client{Timeout: config.FetchTimeout},
		config:    config,
	}
}

// StoreRecordingInput carries a provider recording-ready callback
type StoreRecordingInput struct {
	ExternalID   string
	RecordingURL string
}

// StoreRecording fetches the recording from the provider and stores it under
// recordings/<team>/<call>. The provider keeps recordings for a retention
// window, so failures here are retried by the provider's callback redelivery.
func (s *Service) StoreRecording(ctx context.Context, input *StoreRecordingInput) error {
	if s.marks != nil {
		first, err := s.marks.MarkDelivered(ctx, "recording:"+input.ExternalID)
		if err == nil && !first {
			logger.Info("Skipping redelivered recording callback",
				zap.String("external_id", input.ExternalID),
			)
			return nil
		}
	}

	call, err := s.callStore.GetByExternalID(ctx, input.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to look up call: %w", err)
	}

	key := fmt.Sprintf("recordings/%s/%s.mp3", call.TeamID, call.CallID)

	err = resilience.Do(ctx, resilience.DefaultConfig(), "store recording", func() error {
		return s.fetchAndStore(ctx, input.RecordingURL, key)
	})
	if err != nil {
		return err
	}

	if err := s.callStore.SetRecordingKey(ctx, call.CallID, key); err != nil {
		return fmt.Errorf("failed to persist recording key: %w", err)
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, &domain.Event{
			Type:       domain.EventRecordingReady,
			CallID:     call.CallID,
			ExternalID: call.ExternalID,
			Payload:    map[string]string{"recording_key": key},
		})
	}

	return nil
}

func (s *Service) fetchAndStore(ctx context.Context, recordingURL, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, recordingURL, nil)
	if err != nil {
		return fmt.Errorf("failed to build recording request: %w", err)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch recording: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("recording fetch returned status %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "audio/mpeg"
	}

	return s.objects.Put(ctx, key, resp.Body, resp.ContentLength, contentType)
}

// DownloadURL returns a presigned URL for a call's recording. Calls without a
// stored recording yield an empty URL, not an error.
func (s *Service) DownloadURL(ctx context.Context, callID uuid.UUID) (string, error) {
	call, err := s.callStore.GetByID(ctx, callID)
	if err != nil {
		return "", fmt.Errorf("failed to look up call: %w", err)
	}

	if call.RecordingKey == "" {
		return "", nil
	}

	return s.objects.PresignedGetURL(ctx, call.RecordingKey, s.config.DownloadTTL)
}
