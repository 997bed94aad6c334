package cassandra

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"voicedesk-backend/internal/database"
	"voicedesk-backend/internal/domain"
)

// UtteranceRepository handles the durable utterance log in Cassandra.
// Rows cluster on (call_id, seq) so a partition read returns the transcript
// in append order without sorting.
type UtteranceRepository struct {
	db *database.CassandraDB
}

// NewUtteranceRepository creates a new UtteranceRepository
func NewUtteranceRepository(db *database.CassandraDB) *UtteranceRepository {
	return &UtteranceRepository{db: db}
}

// Save inserts one utterance
func (r *UtteranceRepository) Save(ctx context.Context, utterance *domain.Utterance) error {
	query := `
		INSERT INTO utterances (
			call_id, seq, utterance_id, speaker, content, confidence, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	err := r.db.ExecWithContext(ctx, query,
		utterance.CallID,
		utterance.Seq,
		utterance.UtteranceID,
		string(utterance.Speaker),
		utterance.Text,
		utterance.Confidence,
		utterance.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to save utterance: %w", err)
	}

	return nil
}

// GetByCall retrieves the full utterance sequence for a call, in append order
func (r *UtteranceRepository) GetByCall(ctx context.Context, callID uuid.UUID) ([]*domain.Utterance, error) {
	query := `
		SELECT call_id, seq, utterance_id, speaker, content, confidence, created_at
		FROM utterances
		WHERE call_id = ?
		ORDER BY seq ASC
	`

	iter := r.db.QueryWithContext(ctx, query, callID).Iter()

	var utterances []*domain.Utterance
	for {
		u := &domain.Utterance{}
		var speaker string
		if !iter.Scan(
			&u.CallID,
			&u.Seq,
			&u.UtteranceID,
			&speaker,
			&u.Text,
			&u.Confidence,
			&u.CreatedAt,
		) {
			break
		}
		u.Speaker = domain.SpeakerRole(speaker)
		utterances = append(utterances, u)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch utterances: %w", err)
	}

	return utterances, nil
}
