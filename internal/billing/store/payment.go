package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
)

type PaymentStore struct {
	db *sql.DB
}

func NewPaymentStore(db *sql.DB) *PaymentStore {
	return &PaymentStore{db: db}
}

const paymentCols = `id, list_id, owner_id, provider, payment_ref, amount_total, currency, access_ends_at, created_at`

func scanPayment(scanner interface{ Scan(...any) error }) (*model.Payment, error) {
	var p model.Payment
	var amount sql.NullInt64
	var currency sql.NullString
	var accessEnds, createdAt int64
	err := scanner.Scan(&p.ID, &p.ListID, &p.OwnerID, &p.Provider, &p.PaymentRef, &amount, &currency, &accessEnds, &createdAt)
	if err != nil {
		return nil, err
	}
	if amount.Valid {
		p.AmountTotal = &amount.Int64
	}
	if currency.Valid {
		p.Currency = &currency.String
	}
	p.AccessEndsAt = fromMillis(accessEnds)
	p.CreatedAt = fromMillis(createdAt)
	return &p, nil
}

// Create inserts an audit record for one grant.
func (s *PaymentStore) Create(ctx context.Context, q database.DBTX, p model.Payment) error {
	var amount sql.NullInt64
	if p.AmountTotal != nil {
		amount = sql.NullInt64{Int64: *p.AmountTotal, Valid: true}
	}
	var currency sql.NullString
	if p.Currency != nil {
		currency = sql.NullString{String: *p.Currency, Valid: true}
	}
	_, err := q.ExecContext(ctx,
		`INSERT INTO billing_payments (`+paymentCols+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.ListID, p.OwnerID, p.Provider, p.PaymentRef, amount, currency,
		toMillis(p.AccessEndsAt), toMillis(p.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert payment: %w", err)
	}
	return nil
}

func (s *PaymentStore) ListByList(ctx context.Context, listID string) ([]model.Payment, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+paymentCols+` FROM billing_payments WHERE list_id = ? ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer rows.Close()

	var payments []model.Payment
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payment: %w", err)
		}
		payments = append(payments, *p)
	}
	return payments, rows.Err()
}
