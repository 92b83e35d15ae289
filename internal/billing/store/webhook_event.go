package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
)

// StaleProcessingAfter is how long a claim may sit in processing before a
// redelivery may take it over.
const StaleProcessingAfter = 15 * time.Minute

// ErrClaimLost means another delivery took the event over after the caller
// claimed it.
var ErrClaimLost = errors.New("webhook event claim lost")

type WebhookEventStore struct {
	db *sql.DB
}

func NewWebhookEventStore(db *sql.DB) *WebhookEventStore {
	return &WebhookEventStore{db: db}
}

const webhookEventCols = `id, provider, event_type, status, error, created_at, updated_at`

func scanWebhookEvent(scanner interface{ Scan(...any) error }) (*model.WebhookEvent, error) {
	var e model.WebhookEvent
	var errMsg sql.NullString
	var createdAt, updatedAt int64
	err := scanner.Scan(&e.ID, &e.Provider, &e.EventType, &e.Status, &errMsg, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if errMsg.Valid {
		e.Error = &errMsg.String
	}
	e.CreatedAt = fromMillis(createdAt)
	e.UpdatedAt = fromMillis(updatedAt)
	return &e, nil
}

// Claim creates the event record in processing state. It reports false when
// the event is already processed or being processed. A failed event, or one
// stuck in processing past StaleProcessingAfter, is taken over instead.
// The claim is identified by now, which the holder passes back to
// MarkProcessed and MarkFailed.
func (s *WebhookEventStore) Claim(ctx context.Context, q database.DBTX, id, provider, eventType string, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`INSERT INTO billing_webhook_events (id, provider, event_type, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		id, provider, eventType, model.WebhookProcessing, toMillis(now), toMillis(now),
	)
	if err != nil {
		return false, fmt.Errorf("insert webhook event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if n > 0 {
		return true, nil
	}

	res, err = q.ExecContext(ctx,
		`UPDATE billing_webhook_events SET status = ?, error = NULL, updated_at = ?
		 WHERE id = ? AND (status = ? OR (status = ? AND updated_at < ?))`,
		model.WebhookProcessing, toMillis(now), id,
		model.WebhookFailed, model.WebhookProcessing, toMillis(now.Add(-StaleProcessingAfter)),
	)
	if err != nil {
		return false, fmt.Errorf("reclaim webhook event: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// MarkProcessed finishes the claim taken at claimedAt. It returns
// ErrClaimLost if the event has since been taken over or finished.
func (s *WebhookEventStore) MarkProcessed(ctx context.Context, q database.DBTX, id string, claimedAt, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE billing_webhook_events SET status = ?, error = NULL, updated_at = ?
		 WHERE id = ? AND status = ? AND updated_at = ?`,
		model.WebhookProcessed, toMillis(now), id, model.WebhookProcessing, toMillis(claimedAt),
	)
	if err != nil {
		return fmt.Errorf("mark webhook processed: %w", err)
	}
	return claimHeld(res)
}

func (s *WebhookEventStore) MarkFailed(ctx context.Context, q database.DBTX, id, reason string, claimedAt, now time.Time) error {
	res, err := q.ExecContext(ctx,
		`UPDATE billing_webhook_events SET status = ?, error = ?, updated_at = ?
		 WHERE id = ? AND status = ? AND updated_at = ?`,
		model.WebhookFailed, reason, toMillis(now), id, model.WebhookProcessing, toMillis(claimedAt),
	)
	if err != nil {
		return fmt.Errorf("mark webhook failed: %w", err)
	}
	return claimHeld(res)
}

func claimHeld(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrClaimLost
	}
	return nil
}

func (s *WebhookEventStore) GetByID(ctx context.Context, id string) (*model.WebhookEvent, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+webhookEventCols+` FROM billing_webhook_events WHERE id = ?`, id)
	e, err := scanWebhookEvent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get webhook event: %w", err)
	}
	return e, nil
}
