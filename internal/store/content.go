package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/google/uuid"
)

// ContentStore manages the owner-curated stories and wheel entries of a list.
type ContentStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewContentStore(db *sql.DB, now func() time.Time) *ContentStore {
	return &ContentStore{db: db, now: clockOrDefault(now)}
}

type CreateStoryInput struct {
	Title    string  `validate:"required,max=200"`
	Body     string  `validate:"max=10000"`
	MediaRef *string `validate:"omitempty,max=512"`
}

func scanStory(scanner interface{ Scan(...any) error }) (*model.Story, error) {
	var st model.Story
	var mediaRef sql.NullString
	var createdAt, updatedAt int64
	if err := scanner.Scan(&st.ID, &st.ListID, &st.Title, &st.Body, &mediaRef, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	st.MediaRef = stringPtr(mediaRef)
	st.CreatedAt = fromMillis(createdAt)
	st.UpdatedAt = fromMillis(updatedAt)
	return &st, nil
}

const storyCols = `id, list_id, title, body, media_ref, created_at, updated_at`

func (s *ContentStore) CreateStory(ctx context.Context, ownerID, listID string, in CreateStoryInput) (*model.Story, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.MediaRef = trimmedOrNil(in.MediaRef)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *model.Story
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if _, err := writableList(ctx, tx, ownerID, listID, now); err != nil {
			return err
		}
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO stories (id, list_id, title, body, media_ref, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, listID, in.Title, in.Body, nullString(in.MediaRef), toMillis(now), toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert story: %w", err)
		}
		created, err = scanStory(tx.QueryRowContext(ctx, `SELECT `+storyCols+` FROM stories WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("get story: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ContentStore) ListStories(ctx context.Context, listID string) ([]model.Story, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+storyCols+` FROM stories WHERE list_id = ? ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list stories: %w", err)
	}
	defer rows.Close()

	var stories []model.Story
	for rows.Next() {
		st, err := scanStory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan story: %w", err)
		}
		stories = append(stories, *st)
	}
	return stories, rows.Err()
}

func (s *ContentStore) DeleteStory(ctx context.Context, ownerID, listID, storyID string) error {
	return s.deleteChild(ctx, ownerID, listID, `DELETE FROM stories WHERE id = ? AND list_id = ?`, storyID)
}

type CreateWheelEntryInput struct {
	Label string `validate:"required,max=120"`
}

const wheelCols = `id, list_id, label, created_at`

func scanWheelEntry(scanner interface{ Scan(...any) error }) (*model.WheelEntry, error) {
	var e model.WheelEntry
	var createdAt int64
	if err := scanner.Scan(&e.ID, &e.ListID, &e.Label, &createdAt); err != nil {
		return nil, err
	}
	e.CreatedAt = fromMillis(createdAt)
	return &e, nil
}

func (s *ContentStore) CreateWheelEntry(ctx context.Context, ownerID, listID string, in CreateWheelEntryInput) (*model.WheelEntry, error) {
	in.Label = strings.TrimSpace(in.Label)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var created *model.WheelEntry
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if _, err := writableList(ctx, tx, ownerID, listID, now); err != nil {
			return err
		}
		id := uuid.NewString()
		_, err := tx.ExecContext(ctx,
			`INSERT INTO wheel_entries (id, list_id, label, created_at) VALUES (?, ?, ?, ?)`,
			id, listID, in.Label, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert wheel entry: %w", err)
		}
		created, err = scanWheelEntry(tx.QueryRowContext(ctx, `SELECT `+wheelCols+` FROM wheel_entries WHERE id = ?`, id))
		if err != nil {
			return fmt.Errorf("get wheel entry: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ContentStore) ListWheelEntries(ctx context.Context, listID string) ([]model.WheelEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+wheelCols+` FROM wheel_entries WHERE list_id = ? ORDER BY created_at, id`, listID)
	if err != nil {
		return nil, fmt.Errorf("list wheel entries: %w", err)
	}
	defer rows.Close()

	var entries []model.WheelEntry
	for rows.Next() {
		e, err := scanWheelEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wheel entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

func (s *ContentStore) DeleteWheelEntry(ctx context.Context, ownerID, listID, entryID string) error {
	return s.deleteChild(ctx, ownerID, listID, `DELETE FROM wheel_entries WHERE id = ? AND list_id = ?`, entryID)
}

func (s *ContentStore) deleteChild(ctx context.Context, ownerID, listID, query, childID string) error {
	return database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		if _, err := writableList(ctx, tx, ownerID, listID, s.now()); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, query, childID, listID)
		if err != nil {
			return fmt.Errorf("delete: %w", err)
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
