package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/giftlist/internal/database"
	"github.com/dukerupert/giftlist/internal/model"
)

type testClock struct {
	mu sync.Mutex
	t  time.Time
}

func newTestClock() *testClock {
	return &testClock{t: time.Date(2026, 12, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// setupFileDB opens a file-backed database so concurrent goroutines get
// their own connections.
func setupFileDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open file db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func createTestList(t *testing.T, ls *ListStore, ownerID, slug string) *model.List {
	t.Helper()
	l, err := ls.Create(context.Background(), CreateListInput{
		OwnerID:    ownerID,
		Title:      "Our Wedding",
		Slug:       slug,
		EventType:  model.EventWedding,
		TemplateID: "classic",
		Visibility: model.VisibilityPublic,
	})
	if err != nil {
		t.Fatalf("create list %q: %v", slug, err)
	}
	return l
}

func createTestItem(t *testing.T, is *ItemStore, ownerID, listID, name string) *model.Item {
	t.Helper()
	item, err := is.Create(context.Background(), ownerID, listID, CreateItemInput{Name: name})
	if err != nil {
		t.Fatalf("create item %q: %v", name, err)
	}
	return item
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func strp(s string) *string { return &s }
