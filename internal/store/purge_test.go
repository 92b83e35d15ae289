package store

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestPurgeCandidates(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	ls := NewListStore(db, clock.Now, 0)
	ps := NewPurgeStore(db, 0)
	ctx := context.Background()

	first := createTestList(t, ls, "owner-1", "first-due")
	clock.Advance(time.Hour)
	second := createTestList(t, ls, "owner-1", "second-due")
	clock.Advance(30 * 24 * time.Hour)
	createTestList(t, ls, "owner-1", "not-due")

	got, err := ps.Candidates(ctx, clock.Now(), 10)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if got[0].ID != first.ID || got[1].ID != second.ID {
		t.Errorf("order = %q, %q, want earliest purge first", got[0].Slug, got[1].Slug)
	}

	limited, err := ps.Candidates(ctx, clock.Now(), 1)
	if err != nil {
		t.Fatalf("Candidates: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("len = %d, want 1 with limit", len(limited))
	}
}

func TestPurgeDue(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	ls := NewListStore(db, clock.Now, 0)
	ps := NewPurgeStore(db, 0)
	ctx := context.Background()
	l := createTestList(t, ls, "owner-1", "due-list")

	due, err := ps.Due(ctx, l.ID, clock.Now())
	if err != nil {
		t.Fatalf("Due: %v", err)
	}
	if due {
		t.Error("fresh list should not be due")
	}

	if due, _ := ps.Due(ctx, l.ID, l.PurgeAt); !due {
		t.Error("list should be due at its purge horizon")
	}
	if due, _ := ps.Due(ctx, "missing", clock.Now()); due {
		t.Error("missing list should not be due")
	}
}

func TestPurgeDeleteChildrenInChunks(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	ls := NewListStore(db, clock.Now, 0)
	is := NewItemStore(db, clock.Now)
	ps := NewPurgeStore(db, 2)
	ctx := context.Background()

	l := createTestList(t, ls, "owner-1", "chunk-list")
	other := createTestList(t, ls, "owner-1", "keep-list")
	for i := 0; i < 5; i++ {
		createTestItem(t, is, "owner-1", l.ID, fmt.Sprintf("item-%d", i))
	}
	createTestItem(t, is, "owner-1", other.ID, "survivor")

	n, err := ps.DeleteChildren(ctx, TableItems, l.ID)
	if err != nil {
		t.Fatalf("DeleteChildren: %v", err)
	}
	if n != 5 {
		t.Errorf("deleted = %d, want 5", n)
	}
	if c := countRows(t, db, `SELECT COUNT(*) FROM items WHERE list_id = ?`, other.ID); c != 1 {
		t.Errorf("other list items = %d, want 1", c)
	}

	if _, err := ps.DeleteChildren(ctx, "lists", l.ID); err == nil {
		t.Error("expected error for unknown child table")
	}
}

func TestPurgeDeleteList(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	ls := NewListStore(db, clock.Now, 0)
	ps := NewPurgeStore(db, 0)
	ctx := context.Background()
	l := createTestList(t, ls, "owner-1", "claim-list")

	// A stray claim left behind by an earlier inconsistency.
	if _, err := db.Exec(`INSERT INTO slug_claims (slug, list_id, owner_id, created_at) VALUES ('old-name', ?, 'owner-1', 0)`, l.ID); err != nil {
		t.Fatalf("seed stray claim: %v", err)
	}

	del, err := ps.DeleteList(ctx, l.Slug, l.ID, l.PurgeAt)
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if !del.Deleted {
		t.Error("expected list to be deleted")
	}
	if del.SlugClaims != 2 {
		t.Errorf("claims deleted = %d, want 2", del.SlugClaims)
	}
	if got, _ := ls.GetByID(ctx, l.ID); got != nil {
		t.Error("list still present")
	}
	if c := countRows(t, db, `SELECT COUNT(*) FROM list_secrets WHERE list_id = ?`, l.ID); c != 0 {
		t.Errorf("list secrets = %d, want 0", c)
	}

	createTestList(t, ls, "owner-2", "claim-list")
}

func TestPurgeDeleteListKeepsExtendedList(t *testing.T) {
	db := setupTestDB(t)
	clock := newTestClock()
	ls := NewListStore(db, clock.Now, 0)
	ps := NewPurgeStore(db, 0)
	ctx := context.Background()
	l := createTestList(t, ls, "owner-1", "paid-late")
	if _, err := db.Exec(`INSERT INTO list_secrets (list_id, password_hash, created_at) VALUES (?, 'hash', 0)`, l.ID); err != nil {
		t.Fatalf("seed secret: %v", err)
	}

	clock.Advance(15 * 24 * time.Hour)
	if _, err := ExtendPaidAccess(ctx, db, "owner-1", l.ID, clock.Now().Add(90*24*time.Hour), clock.Now()); err != nil {
		t.Fatalf("ExtendPaidAccess: %v", err)
	}

	del, err := ps.DeleteList(ctx, l.Slug, l.ID, clock.Now())
	if err != nil {
		t.Fatalf("DeleteList: %v", err)
	}
	if del.Deleted || del.SlugClaims != 0 {
		t.Errorf("deletion = %+v, want nothing removed", del)
	}
	if got, _ := ls.GetByID(ctx, l.ID); got == nil {
		t.Fatal("extended list was deleted")
	}
	if c := countRows(t, db, `SELECT COUNT(*) FROM list_secrets WHERE list_id = ?`, l.ID); c != 1 {
		t.Errorf("list secrets = %d, want 1", c)
	}
	if c := countRows(t, db, `SELECT COUNT(*) FROM slug_claims WHERE slug = ?`, l.Slug); c != 1 {
		t.Errorf("slug claims = %d, want 1", c)
	}
}
