// Package purge removes lists whose purge horizon has passed, along with
// everything that hangs off them.
package purge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/giftlist/internal/metrics"
	"github.com/dukerupert/giftlist/internal/model"
	"github.com/dukerupert/giftlist/internal/storage"
	"github.com/dukerupert/giftlist/internal/store"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

// Storage deletes a list's media. Implemented by *storage.Bucket.
type Storage interface {
	DeletePrefix(ctx context.Context, prefix string) (int, error)
}

type Options struct {
	DryRun bool
	Limit  int
}

// Report summarizes one invocation.
type Report struct {
	DryRun         bool                   `json:"dry_run"`
	Limit          int                    `json:"limit"`
	Candidates     []model.PurgeCandidate `json:"candidates"`
	Skipped        []string               `json:"skipped"`
	Lists          int                    `json:"lists"`
	Items          int64                  `json:"items"`
	Reservations   int64                  `json:"reservations"`
	Stories        int64                  `json:"stories"`
	WheelEntries   int64                  `json:"wheel_entries"`
	SlugClaims     int64                  `json:"slug_claims"`
	StorageFolders int                    `json:"storage_folders"`
}

type Purger struct {
	store        *store.PurgeStore
	storage      Storage
	now          func() time.Time
	defaultLimit int
	maxLimit     int
	logger       *slog.Logger
}

// New creates a Purger. storage may be nil when media storage is not
// configured. Non-positive limits fall back to the package defaults.
func New(ps *store.PurgeStore, st Storage, now func() time.Time, defaultLimit, maxLimit int, logger *slog.Logger) *Purger {
	if now == nil {
		now = time.Now
	}
	if maxLimit <= 0 {
		maxLimit = MaxLimit
	}
	if defaultLimit <= 0 {
		defaultLimit = DefaultLimit
	}
	if defaultLimit > maxLimit {
		defaultLimit = maxLimit
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Purger{
		store:        ps,
		storage:      st,
		now:          now,
		defaultLimit: defaultLimit,
		maxLimit:     maxLimit,
		logger:       logger.With("component", "purge"),
	}
}

// ClampLimit applies the default to a non-positive limit and caps it at the
// configured maximum.
func (p *Purger) ClampLimit(limit int) int {
	if limit <= 0 {
		return p.defaultLimit
	}
	if limit > p.maxLimit {
		return p.maxLimit
	}
	return limit
}

// Run purges up to opts.Limit due lists. A database error aborts the rest of
// the batch and is returned with the partial report. The next run picks the
// remaining lists up again since their purge_at has not moved.
func (p *Purger) Run(ctx context.Context, opts Options) (*Report, error) {
	now := p.now()
	report := &Report{
		DryRun:     opts.DryRun,
		Limit:      p.ClampLimit(opts.Limit),
		Candidates: []model.PurgeCandidate{},
		Skipped:    []string{},
	}

	mode := "delete"
	if opts.DryRun {
		mode = "dry_run"
	}
	metrics.PurgeRuns.WithLabelValues(mode).Inc()

	candidates, err := p.store.Candidates(ctx, now, report.Limit)
	if err != nil {
		return report, fmt.Errorf("find candidates: %w", err)
	}
	if candidates != nil {
		report.Candidates = candidates
	}
	if opts.DryRun {
		p.logger.Info("purge dry run", "candidates", len(candidates))
		return report, nil
	}

	for _, c := range candidates {
		if err := p.purgeList(ctx, c, now, report); err != nil {
			p.log(report)
			return report, fmt.Errorf("purge list %s: %w", c.ID, err)
		}
	}
	p.log(report)
	return report, nil
}

func (p *Purger) purgeList(ctx context.Context, c model.PurgeCandidate, now time.Time, report *Report) error {
	due, err := p.store.Due(ctx, c.ID, now)
	if err != nil {
		return err
	}
	if !due {
		report.Skipped = append(report.Skipped, c.ID)
		return nil
	}

	children := []struct {
		table string
		count *int64
	}{
		{store.TableItems, &report.Items},
		{store.TableReservations, &report.Reservations},
		{store.TableStories, &report.Stories},
		{store.TableWheelEntries, &report.WheelEntries},
	}
	for _, ch := range children {
		n, err := p.store.DeleteChildren(ctx, ch.table, c.ID)
		*ch.count += n
		metrics.PurgeDeleted.WithLabelValues(ch.table).Add(float64(n))
		if err != nil {
			return err
		}
	}

	if p.storage != nil {
		objects, err := p.storage.DeletePrefix(ctx, storage.ListPrefix(c.ID))
		if err != nil {
			p.logger.Warn("storage cleanup failed", "list_id", c.ID, "deleted", objects, "error", err)
		} else {
			report.StorageFolders++
			metrics.PurgeDeleted.WithLabelValues("storage_folders").Inc()
		}
	}

	// The list and its slug claims are only removed if purge_at has not
	// moved since Due; a grant landing in between keeps both.
	del, err := p.store.DeleteList(ctx, c.Slug, c.ID, now)
	if err != nil {
		return err
	}
	if !del.Deleted {
		p.logger.Info("list extended during purge", "list_id", c.ID)
		report.Skipped = append(report.Skipped, c.ID)
		return nil
	}
	report.Lists++
	report.SlugClaims += del.SlugClaims
	metrics.PurgeDeleted.WithLabelValues("lists").Inc()
	metrics.PurgeDeleted.WithLabelValues("slug_claims").Add(float64(del.SlugClaims))
	return nil
}

func (p *Purger) log(r *Report) {
	p.logger.Info("purge run",
		"candidates", len(r.Candidates),
		"skipped", len(r.Skipped),
		"lists", r.Lists,
		"items", r.Items,
		"reservations", r.Reservations,
		"stories", r.Stories,
		"wheel_entries", r.WheelEntries,
		"slug_claims", r.SlugClaims,
		"storage_folders", r.StorageFolders,
	)
}
