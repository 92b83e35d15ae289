package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/google/uuid"
)

type ItemStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewItemStore(db *sql.DB, now func() time.Time) *ItemStore {
	return &ItemStore{db: db, now: clockOrDefault(now)}
}

const itemCols = `id, list_id, name, description, link, media_ref, status,
	reserved_by_name, reserved_message, reserved_at, created_at, updated_at`

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var i model.Item
	var status string
	var link, mediaRef, byName, message sql.NullString
	var reservedAt sql.NullInt64
	var createdAt, updatedAt int64

	err := scanner.Scan(
		&i.ID, &i.ListID, &i.Name, &i.Description, &link, &mediaRef, &status,
		&byName, &message, &reservedAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	i.Status = model.ItemStatus(status)
	if !i.Status.Valid() {
		return nil, fmt.Errorf("item %s: unknown status %q", i.ID, status)
	}
	i.Link = stringPtr(link)
	i.MediaRef = stringPtr(mediaRef)
	i.ReservedByName = stringPtr(byName)
	i.ReservedMessage = stringPtr(message)
	i.ReservedAt = timePtr(reservedAt)
	i.CreatedAt = fromMillis(createdAt)
	i.UpdatedAt = fromMillis(updatedAt)
	return &i, nil
}

func getItem(ctx context.Context, q database.DBTX, listID, itemID string) (*model.Item, error) {
	row := q.QueryRowContext(ctx, `SELECT `+itemCols+` FROM items WHERE id = ? AND list_id = ?`, itemID, listID)
	i, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return i, nil
}

type CreateItemInput struct {
	Name        string  `validate:"required,max=200"`
	Description string  `validate:"max=2000"`
	Link        *string `validate:"omitempty,url,max=2048"`
	MediaRef    *string `validate:"omitempty,max=512"`
}

func (s *ItemStore) Create(ctx context.Context, ownerID, listID string, in CreateItemInput) (*model.Item, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Description = strings.TrimSpace(in.Description)
	in.Link = trimmedOrNil(in.Link)
	in.MediaRef = trimmedOrNil(in.MediaRef)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *model.Item
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if _, err := writableList(ctx, tx, ownerID, listID, now); err != nil {
			return err
		}
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO items (id, list_id, name, description, link, media_ref, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, listID, in.Name, in.Description, nullString(in.Link), nullString(in.MediaRef),
			model.ItemAvailable, toMillis(now), toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert item: %w", err)
		}
		created, err = getItem(ctx, tx, listID, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ItemStore) GetByID(ctx context.Context, listID, itemID string) (*model.Item, error) {
	return getItem(ctx, s.db, listID, itemID)
}

// List returns a list's items oldest first.
func (s *ItemStore) List(ctx context.Context, listID string) ([]model.Item, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemCols+` FROM items WHERE list_id = ? ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

func (s *ItemStore) Delete(ctx context.Context, ownerID, listID, itemID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := writableList(ctx, tx, ownerID, listID, s.now()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND list_id = ?`, itemID, listID)
		if err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
}

// SetStatus applies an owner status change. Moving an item back to
// available clears its reserver fields.
func (s *ItemStore) SetStatus(ctx context.Context, ownerID, listID, itemID string, to model.ItemStatus) (*model.Item, error) {
	if !to.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, to)
	}

	var updated *model.Item
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if _, err := writableList(ctx, tx, ownerID, listID, now); err != nil {
			return err
		}
		item, err := getItem(ctx, tx, listID, itemID)
		if err != nil {
			return err
		}
		if item == nil {
			return ErrNotFound
		}
		if !item.Status.OwnerCanSet(to) {
			return ErrInvalidTransition
		}

		query := `UPDATE items SET status = ?, updated_at = ? WHERE id = ? AND list_id = ? AND status = ?`
		if to == model.ItemAvailable {
			query = `UPDATE items SET status = ?, updated_at = ?,
			   reserved_by_name = NULL, reserved_message = NULL, reserved_at = NULL
			 WHERE id = ? AND list_id = ? AND status = ?`
		}
		res, err := tx.ExecContext(ctx, query, to, toMillis(now), itemID, listID, item.Status)
		if err != nil {
			return fmt.Errorf("update item status: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrInvalidTransition
		}
		updated, err = getItem(ctx, tx, listID, itemID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
