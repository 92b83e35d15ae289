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

// DefaultDeleteChunk bounds each child-row delete statement.
const DefaultDeleteChunk = 300

// Child tables removed with a purged list.
const (
	TableItems        = "items"
	TableReservations = "reservations"
	TableStories      = "stories"
	TableWheelEntries = "wheel_entries"
)

var childTables = map[string]bool{
	TableItems:        true,
	TableReservations: true,
	TableStories:      true,
	TableWheelEntries: true,
}

type PurgeStore struct {
	db    *sql.DB
	chunk int
}

func NewPurgeStore(db *sql.DB, chunk int) *PurgeStore {
	if chunk <= 0 {
		chunk = DefaultDeleteChunk
	}
	return &PurgeStore{db: db, chunk: chunk}
}

// Candidates returns up to limit lists whose purge horizon is at or before
// now, earliest first.
func (s *PurgeStore) Candidates(ctx context.Context, now time.Time, limit int) ([]model.PurgeCandidate, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, slug, purge_at FROM lists WHERE purge_at <= ? ORDER BY purge_at, id LIMIT ?`,
		toMillis(now), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list purge candidates: %w", err)
	}
	defer rows.Close()

	var out []model.PurgeCandidate
	for rows.Next() {
		var c model.PurgeCandidate
		var purgeAt int64
		if err := rows.Scan(&c.ID, &c.Slug, &purgeAt); err != nil {
			return nil, fmt.Errorf("scan purge candidate: %w", err)
		}
		c.PurgeAt = fromMillis(purgeAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Due re-reads a list's purge horizon. A list that is gone is not due.
func (s *PurgeStore) Due(ctx context.Context, listID string, now time.Time) (bool, error) {
	var purgeAt int64
	err := s.db.QueryRowContext(ctx, `SELECT purge_at FROM lists WHERE id = ?`, listID).Scan(&purgeAt)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get purge_at: %w", err)
	}
	return purgeAt <= toMillis(now), nil
}

// DeleteChildren deletes every row of table belonging to listID in chunks
// and returns how many rows went.
func (s *PurgeStore) DeleteChildren(ctx context.Context, table, listID string) (int64, error) {
	if !childTables[table] {
		return 0, fmt.Errorf("delete children: unknown table %q", table)
	}
	query := `DELETE FROM ` + table + ` WHERE rowid IN (SELECT rowid FROM ` + table + ` WHERE list_id = ? LIMIT ?)`

	var total int64
	for {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		res, err := s.db.ExecContext(ctx, query, listID, s.chunk)
		if err != nil {
			return total, fmt.Errorf("delete %s: %w", table, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, fmt.Errorf("rows affected: %w", err)
		}
		total += n
		if n == 0 {
			return total, nil
		}
	}
}

func deleteSlugClaims(ctx context.Context, q database.DBTX, slug, listID string) (int64, error) {
	res, err := q.ExecContext(ctx, `DELETE FROM slug_claims WHERE slug = ? OR list_id = ?`, slug, listID)
	if err != nil {
		return 0, fmt.Errorf("delete slug claims: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

// ListDeletion reports what DeleteList removed.
type ListDeletion struct {
	Deleted    bool
	SlugClaims int64
}

// DeleteList removes the list row only while its purge horizon is still at
// or before now. When the row goes, its secret goes with it, along with the
// claim for slug and any stray claims that still point at listID. A list
// whose access was extended in the meantime is left untouched.
func (s *PurgeStore) DeleteList(ctx context.Context, slug, listID string, now time.Time) (ListDeletion, error) {
	var out ListDeletion
	err := database.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		out = ListDeletion{}
		res, err := tx.ExecContext(ctx, `DELETE FROM lists WHERE id = ? AND purge_at <= ?`, listID, toMillis(now))
		if err != nil {
			return fmt.Errorf("delete list: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return nil
		}
		out.Deleted = true

		if _, err := tx.ExecContext(ctx, `DELETE FROM list_secrets WHERE list_id = ?`, listID); err != nil {
			return fmt.Errorf("delete list secret: %w", err)
		}
		out.SlugClaims, err = deleteSlugClaims(ctx, tx, slug, listID)
		return err
	})
	return out, err
}
