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

type CheckoutSessionStore struct {
	db *sql.DB
}

func NewCheckoutSessionStore(db *sql.DB) *CheckoutSessionStore {
	return &CheckoutSessionStore{db: db}
}

const checkoutSessionCols = `id, list_id, owner_id, provider, status, locale, url, created_at, completed_at`

func scanCheckoutSession(scanner interface{ Scan(...any) error }) (*model.CheckoutSession, error) {
	var cs model.CheckoutSession
	var createdAt int64
	var completedAt sql.NullInt64
	err := scanner.Scan(&cs.ID, &cs.ListID, &cs.OwnerID, &cs.Provider, &cs.Status, &cs.Locale, &cs.URL, &createdAt, &completedAt)
	if err != nil {
		return nil, err
	}
	cs.CreatedAt = fromMillis(createdAt)
	cs.CompletedAt = timePtr(completedAt)
	return &cs, nil
}

// Create records a pending session. Recording the same provider session
// twice keeps the first record.
func (s *CheckoutSessionStore) Create(ctx context.Context, cs model.CheckoutSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO billing_checkout_sessions (id, list_id, owner_id, provider, status, locale, url, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		cs.ID, cs.ListID, cs.OwnerID, cs.Provider, model.CheckoutPending, cs.Locale, cs.URL, toMillis(cs.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert checkout session: %w", err)
	}
	return nil
}

func (s *CheckoutSessionStore) GetByID(ctx context.Context, id string) (*model.CheckoutSession, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+checkoutSessionCols+` FROM billing_checkout_sessions WHERE id = ?`, id)
	cs, err := scanCheckoutSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return cs, nil
}

// MarkCompleted moves a pending session to completed and reports whether a
// row changed. Sessions never recorded locally are left alone.
func (s *CheckoutSessionStore) MarkCompleted(ctx context.Context, q database.DBTX, id string, now time.Time) (bool, error) {
	res, err := q.ExecContext(ctx,
		`UPDATE billing_checkout_sessions SET status = ?, completed_at = ? WHERE id = ? AND status = ?`,
		model.CheckoutCompleted, toMillis(now), id, model.CheckoutPending,
	)
	if err != nil {
		return false, fmt.Errorf("complete checkout session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
