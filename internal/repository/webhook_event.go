package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mreyes-dev/payflow/internal/domain"
)

// WebhookEventRepository is the audit trail of accepted deliveries. The
// unique index on event_id doubles as the authoritative dedup guard for
// at-least-once delivery.
type WebhookEventRepository struct {
	db *sql.DB
}

func NewWebhookEventRepository(db *sql.DB) *WebhookEventRepository {
	return &WebhookEventRepository{db: db}
}

func (r *WebhookEventRepository) Create(ctx context.Context, id uuid.UUID, eventID string, kind domain.EventKind, payload json.RawMessage, receivedAt time.Time) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO webhook_events (id, event_id, kind, payload, outcome, received_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, eventID, kind, payload, "", receivedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("Create: %w", domain.ErrDuplicateEvent)
		}
		return fmt.Errorf("Create: %w", err)
	}
	return nil
}

func (r *WebhookEventRepository) SetOutcome(ctx context.Context, id uuid.UUID, outcome domain.Outcome) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE webhook_events SET outcome = $1, processed_at = now() WHERE id = $2`,
		outcome, id,
	)
	if err != nil {
		return fmt.Errorf("SetOutcome: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("SetOutcome: rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("SetOutcome: %w", domain.ErrNotFound)
	}
	return nil
}

// FindByEventID returns the audit row id and recorded outcome for a
// processor event id. The pipeline uses it to decide whether a redelivery is
// a true duplicate or the retry of an attempt that never settled.
func (r *WebhookEventRepository) FindByEventID(ctx context.Context, eventID string) (uuid.UUID, domain.Outcome, error) {
	var id uuid.UUID
	var outcome domain.Outcome
	err := r.db.QueryRowContext(ctx,
		`SELECT id, outcome FROM webhook_events WHERE event_id = $1`, eventID,
	).Scan(&id, &outcome)
	if err != nil {
		if err == sql.ErrNoRows {
			return uuid.Nil, "", fmt.Errorf("FindByEventID: %w", domain.ErrNotFound)
		}
		return uuid.Nil, "", fmt.Errorf("FindByEventID: %w", err)
	}
	return id, outcome, nil
}

// OutcomeForEvent reports the recorded outcome for a processor event id.
// Mostly a test and operations helper.
func (r *WebhookEventRepository) OutcomeForEvent(ctx context.Context, eventID string) (domain.Outcome, error) {
	var outcome domain.Outcome
	err := r.db.QueryRowContext(ctx,
		`SELECT outcome FROM webhook_events WHERE event_id = $1`, eventID,
	).Scan(&outcome)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("OutcomeForEvent: %w", domain.ErrNotFound)
		}
		return "", fmt.Errorf("OutcomeForEvent: %w", err)
	}
	return outcome, nil
}
