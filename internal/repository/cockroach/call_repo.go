package cockroach

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"voicedesk-backend/internal/domain"
)

// ErrNotFound is returned when no call matches the lookup
var ErrNotFound = errors.New("call not found")

// CallRepository handles call record operations
type CallRepository struct {
	pool *pgxpool.Pool
}

// NewCallRepository creates a new call repository
func NewCallRepository(pool *pgxpool.Pool) *CallRepository {
	return &CallRepository{pool: pool}
}

// Create creates a new call record
func (r *CallRepository) Create(ctx context.Context, call *domain.Call) error {
	query := `
		INSERT INTO calls (
			call_id, external_id, team_id, caller_number, status, started_at
		) VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.pool.Exec(ctx, query,
		call.CallID,
		call.ExternalID,
		call.TeamID,
		call.CallerNumber,
		call.Status,
		call.StartedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}

	return nil
}

// GetByID retrieves a call by internal id
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	query := `
		SELECT call_id, external_id, team_id, caller_number, status,
		       started_at, ended_at, COALESCE(recording_key, ''),
		       COALESCE(transcript_summary, '')
		FROM calls
		WHERE call_id = $1
	`

	return r.scanOne(r.pool.QueryRow(ctx, query, callID))
}

// GetByExternalID retrieves a call by the telephony provider call SID
func (r *CallRepository) GetByExternalID(ctx context.Context, externalID string) (*domain.Call, error) {
	query := `
		SELECT call_id, external_id, team_id, caller_number, status,
		       started_at, ended_at, COALESCE(recording_key, ''),
		       COALESCE(transcript_summary, '')
		FROM calls
		WHERE external_id = $1
	`

	return r.scanOne(r.pool.QueryRow(ctx, query, externalID))
}

// UpdateStatus updates call status
func (r *CallRepository) UpdateStatus(ctx context.Context, callID uuid.UUID, status domain.CallStatus) error {
	query := `
		UPDATE calls
		SET status = $2
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID, status)
	if err != nil {
		return fmt.Errorf("failed to update call status: %w", err)
	}

	return nil
}

// Complete marks a call as completed and stamps the end time
func (r *CallRepository) Complete(ctx context.Context, callID uuid.UUID) error {
	query := `
		UPDATE calls
		SET status = 'COMPLETED',
		    ended_at = NOW()
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID)
	if err != nil {
		return fmt.Errorf("failed to complete call: %w", err)
	}

	return nil
}

// SetRecordingKey stores the object store key of the call recording
func (r *CallRepository) SetRecordingKey(ctx context.Context, callID uuid.UUID, key string) error {
	query := `
		UPDATE calls
		SET recording_key = $2
		WHERE call_id = $1
	`

	_, err := r.pool.Exec(ctx, query, callID, key)
	if err != nil {
		return fmt.Errorf("failed to set recording key: %w", err)
	}

	return nil
}

// SetSummary stores the transcript summary written at call completion
func (r *CallRepository) SetSummary(ctx context.Context, callID uuid.UUID, summary string) error {
	query := `
		UPDATE calls
		SET transcript_summary = $2
		WHERE call_id = $1 AND transcript_summary IS NULL
	`

	_, err := r.pool.Exec(ctx, query, callID, summary)
	if err != nil {
		return fmt.Errorf("failed to set summary: %w", err)
	}

	return nil
}

// GetTeamCalls retrieves recent calls for a team
func (r *CallRepository) GetTeamCalls(ctx context.Context, teamID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	query := `
		SELECT call_id, external_id, team_id, caller_number, status,
		       started_at, ended_at, COALESCE(recording_key, ''),
		       COALESCE(transcript_summary, '')
		FROM calls
		WHERE team_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, teamID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get team calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		call := &domain.Call{}
		err := rows.Scan(
			&call.CallID,
			&call.ExternalID,
			&call.TeamID,
			&call.CallerNumber,
			&call.Status,
			&call.StartedAt,
			&call.EndedAt,
			&call.RecordingKey,
			&call.Summary,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, nil
}

func (r *CallRepository) scanOne(row pgx.Row) (*domain.Call, error) {
	call := &domain.Call{}
	err := row.Scan(
		&call.CallID,
		&call.ExternalID,
		&call.TeamID,
		&call.CallerNumber,
		&call.Status,
		&call.StartedAt,
		&call.EndedAt,
		&call.RecordingKey,
		&call.Summary,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}
