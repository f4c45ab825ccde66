package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// DefaultStaleAfter is how long a listing may go unseen before the reaper
// marks it REMOVED.
const DefaultStaleAfter = 14 * 24 * time.Hour

// Reaper expires listings that stopped appearing in collection runs.
type Reaper struct {
	listings   domain.ListingStore
	staleAfter time.Duration
	logger     *slog.Logger
}

func NewReaper(listings domain.ListingStore, staleAfter time.Duration, logger *slog.Logger) *Reaper {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	return &Reaper{
		listings:   listings,
		staleAfter: staleAfter,
		logger:     logger.With("component", "reaper"),
	}
}

// Run marks every ACTIVE listing not seen since now minus the staleness
// window as REMOVED. The transition is one bulk statement, so a sighting
// arriving concurrently either lands before the sweep (and keeps the row
// ACTIVE) or after it (and reactivates the row).
func (r *Reaper) Run(ctx context.Context, now time.Time) (int64, error) {
	cutoff := now.Add(-r.staleAfter)
	n, err := r.listings.MarkStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.logger.Info("stale listings removed", "count", n, "cutoff", cutoff)
	}
	return n, nil
}
