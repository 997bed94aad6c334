package transcript

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"voicedesk-backend/internal/domain"
	"voicedesk-backend/pkg/logger"
	"voicedesk-backend/pkg/metrics"
	"voicedesk-backend/pkg/resilience"
)

// UtteranceStore is the durable log behind the in-memory transcript
type UtteranceStore interface {
	Save(ctx context.Context, utterance *domain.Utterance) error
	GetByCall(ctx context.Context, callID uuid.UUID) ([]*domain.Utterance, error)
}

// Publisher fans out transcript events
type Publisher interface {
	Publish(ctx context.Context, event *domain.Event)
}

// Service maintains the append-only transcript log per call. Appends for the
// same call are serialized through a per-call mutex so sequence numbers are
// assigned in arrival order; appends for different calls do not contend.
//
// The in-memory transcript is authoritative for live reads. Cassandra is a
// write-through durable copy used to rehydrate after a restart; a failed
// durable write degrades the call to memory-only rather than rejecting the
// utterance.
type Service struct {
	store     UtteranceStore
	publisher Publisher
	metrics   *metrics.Metrics

	mu          sync.Mutex
	locks       map[uuid.UUID]*sync.Mutex
	transcripts map[uuid.UUID]*domain.Transcript
}

// NewService creates a new transcript service
func NewService(store UtteranceStore, publisher Publisher, m *metrics.Metrics) *Service {
	return &Service{
		store:       store,
		publisher:   publisher,
		metrics:     m,
		locks:       make(map[uuid.UUID]*sync.Mutex),
		transcripts: make(map[uuid.UUID]*domain.Transcript),
	}
}

// callLock returns the mutex serializing appends for one call
func (s *Service) callLock(callID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()

	lock, ok := s.locks[callID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[callID] = lock
	}
	return lock
}

// transcript returns the in-memory transcript for the call, hydrating it from
// the durable log on first access. Caller holds the call lock.
func (s *Service) transcript(ctx context.Context, callID uuid.UUID) *domain.Transcript {
	s.mu.Lock()
	t, ok := s.transcripts[callID]
	s.mu.Unlock()
	if ok {
		return t
	}

	t = &domain.Transcript{CallID: callID}

	utterances, err := s.store.GetByCall(ctx, callID)
	if err != nil {
		// Start empty; the durable copy is best effort on the read side too
		logger.Warn("Failed to hydrate transcript",
			zap.String("call_id", callID.String()),
			zap.Error(err))
	} else {
		t.Utterances = utterances
	}

	s.mu.Lock()
	s.transcripts[callID] = t
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveTranscripts(len(s.transcripts))
	}

	return t
}

// AppendInput contains an attributed utterance to log
type AppendInput struct {
	CallID     uuid.UUID
	Speaker    domain.SpeakerRole
	Text       string
	Confidence float64
	// ExternalID routes the utterance_added event to provider-keyed topics
	ExternalID string
}

// AppendOutput contains the logged utterance
type AppendOutput struct {
	Utterance *domain.Utterance
}

// Append assigns the next sequence number and logs the utterance
func (s *Service) Append(ctx context.Context, input *AppendInput) (*AppendOutput, error) {
	start := time.Now()

	lock := s.callLock(input.CallID)
	lock.Lock()
	defer lock.Unlock()

	t := s.transcript(ctx, input.CallID)

	utterance := &domain.Utterance{
		UtteranceID: uuid.New(),
		CallID:      input.CallID,
		Seq:         len(t.Utterances),
		Speaker:     input.Speaker,
		Text:        input.Text,
		Confidence:  input.Confidence,
		CreatedAt:   time.Now(),
	}

	t.Utterances = append(t.Utterances, utterance)

	// Write through to the durable log with one retry
	err := resilience.Do(ctx, resilience.DefaultConfig(), "save utterance", func() error {
		return s.store.Save(ctx, utterance)
	})
	if err != nil {
		// Log error but don't fail the request
		logger.Error("Failed to persist utterance, keeping in-memory copy",
			zap.String("call_id", input.CallID.String()),
			zap.Int("seq", utterance.Seq),
			zap.Error(err))
		if s.metrics != nil {
			s.metrics.RecordAppendError()
		}
	}

	if s.publisher != nil {
		s.publisher.Publish(ctx, &domain.Event{
			Type:       domain.EventUtteranceAdded,
			CallID:     input.CallID,
			ExternalID: input.ExternalID,
			Payload:    utterance,
		})
	}

	if s.metrics != nil {
		s.metrics.RecordUtterance(string(utterance.Speaker), time.Since(start))
	}

	return &AppendOutput{Utterance: utterance}, nil
}

// Read returns the transcript for a call. Unknown calls yield an empty
// transcript, never an error.
func (s *Service) Read(ctx context.Context, callID uuid.UUID) *domain.Transcript {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	t := s.transcript(ctx, callID)

	// Copy so callers iterate without racing later appends
	snapshot := &domain.Transcript{
		CallID:     t.CallID,
		Summary:    t.Summary,
		Utterances: make([]*domain.Utterance, len(t.Utterances)),
	}
	copy(snapshot.Utterances, t.Utterances)
	return snapshot
}

// Window returns the most recent n utterances for a call, oldest first
func (s *Service) Window(ctx context.Context, callID uuid.UUID, n int) []*domain.Utterance {
	return s.Read(ctx, callID).Window(n)
}

// SetSummary records the call summary on the in-memory transcript
func (s *Service) SetSummary(ctx context.Context, callID uuid.UUID, summary string) {
	lock := s.callLock(callID)
	lock.Lock()
	defer lock.Unlock()

	s.transcript(ctx, callID).Summary = summary
}

// Evict drops the in-memory state for a completed call. Later reads rehydrate
// from the durable log.
func (s *Service) Evict(callID uuid.UUID) {
	s.mu.Lock()
	delete(s.transcripts, callID)
	delete(s.locks, callID)
	size := len(s.transcripts)
	s.mu.Unlock()

	if s.metrics != nil {
		s.metrics.SetActiveTranscripts(size)
	}
}
