package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

const subscriptionCols = `owner_id, plan, status, active_list_ids, current_period_end, created_at, updated_at`

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var listIDs string
	var periodEnd sql.NullInt64
	var createdAt, updatedAt int64
	err := scanner.Scan(&sub.OwnerID, &sub.Plan, &sub.Status, &listIDs, &periodEnd, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(listIDs), &sub.ActiveListIDs); err != nil {
		return nil, fmt.Errorf("decode active list ids: %w", err)
	}
	sub.CurrentPeriodEnd = timePtr(periodEnd)
	sub.CreatedAt = fromMillis(createdAt)
	sub.UpdatedAt = fromMillis(updatedAt)
	return &sub, nil
}

func getSubscription(ctx context.Context, q database.DBTX, ownerID string) (*model.Subscription, error) {
	row := q.QueryRowContext(ctx, `SELECT `+subscriptionCols+` FROM subscriptions WHERE owner_id = ?`, ownerID)
	sub, err := scanSubscription(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByOwner(ctx context.Context, ownerID string) (*model.Subscription, error) {
	return getSubscription(ctx, s.db, ownerID)
}

// Upsert adds listID to the owner's active lists and moves the period end
// forward to periodEnd if it is later.
func (s *SubscriptionStore) Upsert(ctx context.Context, q database.DBTX, ownerID, listID string, periodEnd, now time.Time) (*model.Subscription, error) {
	existing, err := getSubscription(ctx, q, ownerID)
	if err != nil {
		return nil, err
	}

	listIDs := []string{listID}
	end := periodEnd
	if existing != nil {
		listIDs = existing.ActiveListIDs
		if !slices.Contains(listIDs, listID) {
			listIDs = append(listIDs, listID)
		}
		if existing.CurrentPeriodEnd != nil && existing.CurrentPeriodEnd.After(end) {
			end = *existing.CurrentPeriodEnd
		}
	}
	encoded, err := json.Marshal(listIDs)
	if err != nil {
		return nil, fmt.Errorf("encode active list ids: %w", err)
	}

	_, err = q.ExecContext(ctx,
		`INSERT INTO subscriptions (owner_id, plan, status, active_list_ids, current_period_end, created_at, updated_at)
		 VALUES (?, ?, 'active', ?, ?, ?, ?)
		 ON CONFLICT (owner_id) DO UPDATE SET
		   status = 'active',
		   active_list_ids = excluded.active_list_ids,
		   current_period_end = excluded.current_period_end,
		   updated_at = excluded.updated_at`,
		ownerID, model.BillingModelOneTime90, string(encoded), toMillis(end), toMillis(now), toMillis(now),
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return getSubscription(ctx, q, ownerID)
}
