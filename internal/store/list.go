package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dukerupert/giftlist/internal/access"
	"github.com/dukerupert/giftlist/internal/auth"
	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/slug"
	"github.com/google/uuid"
)

type ListStore struct {
	db        *sql.DB
	now       func() time.Time
	trialDays int
}

// NewListStore returns a ListStore. A nil now uses time.Now and a
// non-positive trialDays uses the default trial length.
func NewListStore(db *sql.DB, now func() time.Time, trialDays int) *ListStore {
	if trialDays <= 0 {
		trialDays = access.DefaultTrialDays
	}
	return &ListStore{db: db, now: clockOrDefault(now), trialDays: trialDays}
}

const listCols = `id, owner_id, title, slug, event_type, template_id, visibility, status,
	billing_model, trial_ends_at, paid_access_ends_at, purge_at, created_at, updated_at`

func scanList(scanner interface{ Scan(...any) error }) (*model.List, error) {
	var l model.List
	var visibility string
	var trialEnds, paidEnds sql.NullInt64
	var purgeAt, createdAt, updatedAt int64

	err := scanner.Scan(
		&l.ID, &l.OwnerID, &l.Title, &l.Slug, &l.EventType, &l.TemplateID, &visibility, &l.Status,
		&l.BillingModel, &trialEnds, &paidEnds, &purgeAt, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	l.Visibility = model.ParseVisibility(visibility)
	l.TrialEndsAt = timePtr(trialEnds)
	l.PaidAccessEndsAt = timePtr(paidEnds)
	l.PurgeAt = fromMillis(purgeAt)
	l.CreatedAt = fromMillis(createdAt)
	l.UpdatedAt = fromMillis(updatedAt)
	return &l, nil
}

func getList(ctx context.Context, q database.DBTX, id string) (*model.List, error) {
	row := q.QueryRowContext(ctx, `SELECT `+listCols+` FROM lists WHERE id = ?`, id)
	l, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get list: %w", err)
	}
	return l, nil
}

// ownedList loads a list for its owner. Absent and foreign lists are both
// reported as ErrForbidden.
func ownedList(ctx context.Context, q database.DBTX, ownerID, listID string) (*model.List, error) {
	l, err := getList(ctx, q, listID)
	if err != nil {
		return nil, err
	}
	if l == nil || l.OwnerID != ownerID {
		return nil, ErrForbidden
	}
	return l, nil
}

// writableList is ownedList plus the expiry gate applied to every owner
// mutation.
func writableList(ctx context.Context, q database.DBTX, ownerID, listID string, now time.Time) (*model.List, error) {
	l, err := ownedList(ctx, q, ownerID, listID)
	if err != nil {
		return nil, err
	}
	if l.AccessStatus(now) == access.StatusExpired {
		return nil, ErrListExpired
	}
	return l, nil
}

type CreateListInput struct {
	OwnerID    string           `validate:"required"`
	Title      string           `validate:"required,max=120"`
	Slug       string           `validate:"-"`
	EventType  model.EventType  `validate:"required,oneof=wedding birthday babyShower christmas"`
	TemplateID string           `validate:"required,oneof=classic modern festive playful"`
	Visibility model.Visibility `validate:"required,oneof=public private public_password"`
	Password   string           `validate:"-"`
}

// Create validates in, then claims the slug and writes the list in one
// transaction. Exactly one of several concurrent creators of the same slug
// succeeds; the rest get ErrSlugTaken.
func (s *ListStore) Create(ctx context.Context, in CreateListInput) (*model.List, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return nil, err
	}
	normalized, err := slug.Normalize(in.Slug)
	if err != nil {
		return nil, err
	}

	var passwordHash string
	if in.Visibility.RequiresPassword() {
		passwordHash, err = auth.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
	}

	var created *model.List
	err = database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		trialEnds := access.AddDays(now, s.trialDays)
		id := uuid.NewString()

		res, err := tx.ExecContext(ctx,
			`INSERT INTO slug_claims (slug, list_id, owner_id, created_at) VALUES (?, ?, ?, ?)
			 ON CONFLICT (slug) DO NOTHING`,
			normalized, id, in.OwnerID, toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("claim slug: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return ErrSlugTaken
		}

		_, err = tx.ExecContext(ctx,
			`INSERT INTO lists (id, owner_id, title, slug, event_type, template_id, visibility, status,
			   billing_model, trial_ends_at, paid_access_ends_at, purge_at, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)`,
			id, in.OwnerID, in.Title, normalized, in.EventType, in.TemplateID, in.Visibility,
			model.ListStatusDraft, model.BillingModelOneTime90, toMillis(trialEnds),
			toMillis(trialEnds), toMillis(now), toMillis(now),
		)
		if err != nil {
			return fmt.Errorf("insert list: %w", err)
		}

		if passwordHash != "" {
			_, err = tx.ExecContext(ctx,
				`INSERT INTO list_secrets (list_id, password_hash, created_at) VALUES (?, ?, ?)`,
				id, passwordHash, toMillis(now),
			)
			if err != nil {
				return fmt.Errorf("insert list secret: %w", err)
			}
		}

		created, err = getList(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (s *ListStore) GetByID(ctx context.Context, id string) (*model.List, error) {
	return getList(ctx, s.db, id)
}

// GetBySlug resolves a list through its slug claim.
func (s *ListStore) GetBySlug(ctx context.Context, slug string) (*model.List, error) {
	var listID string
	err := s.db.QueryRowContext(ctx, `SELECT list_id FROM slug_claims WHERE slug = ?`, slug).Scan(&listID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get slug claim: %w", err)
	}
	return getList(ctx, s.db, listID)
}

func (s *ListStore) GetOwned(ctx context.Context, ownerID, id string) (*model.List, error) {
	return ownedList(ctx, s.db, ownerID, id)
}

func (s *ListStore) ListByOwner(ctx context.Context, ownerID string) ([]model.List, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listCols+` FROM lists WHERE owner_id = ? ORDER BY created_at DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list lists: %w", err)
	}
	defer rows.Close()

	var lists []model.List
	for rows.Next() {
		l, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, *l)
	}
	return lists, rows.Err()
}

type UpdateListInput struct {
	Title      string          `validate:"required,max=120"`
	EventType  model.EventType `validate:"required,oneof=wedding birthday babyShower christmas"`
	TemplateID string          `validate:"required,oneof=classic modern festive playful"`
}

// Update changes a list's content fields. The slug never changes.
func (s *ListStore) Update(ctx context.Context, ownerID, id string, in UpdateListInput) (*model.List, error) {
	in.Title = strings.TrimSpace(in.Title)
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var updated *model.List
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		if _, err := writableList(ctx, tx, ownerID, id, now); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			`UPDATE lists SET title = ?, event_type = ?, template_id = ?, updated_at = ? WHERE id = ?`,
			in.Title, in.EventType, in.TemplateID, toMillis(now), id,
		)
		if err != nil {
			return fmt.Errorf("update list: %w", err)
		}
		updated, err = getList(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// CheckSlug normalizes raw and reports whether it is currently unclaimed.
// The answer is advisory; Create re-checks inside its transaction.
func (s *ListStore) CheckSlug(ctx context.Context, raw string) (string, bool, error) {
	normalized, err := slug.Normalize(raw)
	if err != nil {
		return normalized, false, err
	}
	var n int
	err = s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM slug_claims WHERE slug = ?`, normalized).Scan(&n)
	if err != nil {
		return normalized, false, fmt.Errorf("check slug: %w", err)
	}
	return normalized, n == 0, nil
}

// GetPublic returns the guest view of a list. Private lists are not found
// and password-gated lists require the matching password.
func (s *ListStore) GetPublic(ctx context.Context, slug, password string) (*model.List, error) {
	l, err := s.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if l == nil || l.Visibility == model.VisibilityPrivate {
		return nil, ErrNotFound
	}
	if l.Visibility.RequiresPassword() {
		ok, err := s.VerifyPassword(ctx, l.ID, password)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrForbidden
		}
	}
	return l, nil
}

// VerifyPassword checks password against the list's stored secret. A list
// without a secret never verifies.
func (s *ListStore) VerifyPassword(ctx context.Context, listID, password string) (bool, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM list_secrets WHERE list_id = ?`, listID).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get list secret: %w", err)
	}
	ok, err := auth.VerifyPassword(hash, password)
	if err != nil {
		return false, fmt.Errorf("verify list password: %w", err)
	}
	return ok, nil
}

// ExtendPaidAccess sets a list's paid access end and purge horizon to until.
// It runs on q so billing can include it in its grant transaction, and it
// re-checks ownership against the row it updates.
func ExtendPaidAccess(ctx context.Context, q database.DBTX, ownerID, listID string, until, now time.Time) (*model.List, error) {
	if _, err := ownedList(ctx, q, ownerID, listID); err != nil {
		return nil, err
	}
	_, err := q.ExecContext(ctx,
		`UPDATE lists SET paid_access_ends_at = ?, purge_at = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		toMillis(until), toMillis(until), toMillis(now), listID, ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("extend paid access: %w", err)
	}
	return getList(ctx, q, listID)
}
