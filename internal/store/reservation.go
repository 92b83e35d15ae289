package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/dukerupert/giftlist/internal/access"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/google/uuid"
)

type ReservationStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewReservationStore(db *sql.DB, now func() time.Time) *ReservationStore {
	return &ReservationStore{db: db, now: clockOrDefault(now)}
}

const reservationCols = `id, list_id, item_id, guest_name, guest_message, status, created_at`

func scanReservation(scanner interface{ Scan(...any) error }) (*model.Reservation, error) {
	var r model.Reservation
	var name, message sql.NullString
	var createdAt int64
	if err := scanner.Scan(&r.ID, &r.ListID, &r.ItemID, &name, &message, &r.Status, &createdAt); err != nil {
		return nil, err
	}
	r.GuestName = stringPtr(name)
	r.GuestMessage = stringPtr(message)
	r.CreatedAt = fromMillis(createdAt)
	return &r, nil
}

// Reserve moves an available item to reserved for a guest and appends the
// audit record, all in one transaction. Of any number of concurrent calls
// for the same item exactly one wins; the others get ErrItemUnavailable.
func (s *ReservationStore) Reserve(ctx context.Context, listID, itemID string, guestName, guestMessage *string) (*model.Item, error) {
	name := trimmedOrNil(guestName)
	message := trimmedOrNil(guestMessage)

	var reserved *model.Item
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		l, err := getList(ctx, tx, listID)
		if err != nil {
			return err
		}
		if l == nil || l.Visibility == model.VisibilityPrivate {
			return ErrNotFound
		}
		now := s.now()
		if l.AccessStatus(now) == access.StatusExpired {
			return ErrListExpired
		}

		item, err := getItem(ctx, tx, listID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}
		if item.Status != model.ItemAvailable {
			return ErrItemUnavailable
		}

		res, err := tx.ExecContext(ctx,
			`UPDATE items SET status = ?, reserved_by_name = ?, reserved_message = ?, reserved_at = ?, updated_at = ?
			 WHERE id = ? AND list_id = ? AND status = ?`,
			model.ItemReserved, nullString(name), nullString(message), toMillis(now), toMillis(now),
			itemID, listID, model.ItemAvailable,
		)
		if err != nil {
			return fmt.Errorf("reserve item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrItemUnavailable
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO reservations (id, list_id, item_id, guest_name, guest_message, status, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			uuid.NewString(), listID, itemID, nullString(name), nullString(message),
			model.ReservationActive, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert reservation: %w", err)
		}

		reserved, err = getItem(ctx, tx, listID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return reserved, nil
}

// ListByItem returns the audit trail for one item, oldest first.
func (s *ReservationStore) ListByItem(ctx context.Context, listID, itemID string) ([]model.Reservation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+reservationCols+` FROM reservations WHERE list_id = ? AND item_id = ? ORDER BY created_at, id`,
		listID, itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var out []model.Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

func (s *ReservationStore) CountByList(ctx context.Context, listID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM reservations WHERE list_id = ?`, listID).Scan(&n)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("count reservations: %w", err)
	}
	return n, nil
}
