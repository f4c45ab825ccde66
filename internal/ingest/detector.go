package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/omaralj/propwatch/internal/domain"
)

const (
	// maxObserveAttempts bounds the read-decide-write retry loop when two
	// workers race on the same (external_id, source_id) key.
	maxObserveAttempts = 3
	observeBackoff     = 25 * time.Millisecond
)

// Outcome reports how an observation was applied.
type Outcome int

const (
	OutcomeInserted Outcome = iota + 1
	OutcomeUpdated
	OutcomeTouched
)

func (o Outcome) String() string {
	switch o {
	case OutcomeInserted:
		return "inserted"
	case OutcomeUpdated:
		return "updated"
	case OutcomeTouched:
		return "touched"
	default:
		return "unknown"
	}
}

// Detector decides, for each normalized observation, whether it is a new
// listing, an unchanged sighting, or a content change, and applies the
// matching store write. All writes are compare-and-set on the stored
// content hash, so two workers observing the same listing serialize: the
// loser re-reads and retries against the fresh row.
type Detector struct {
	listings domain.ListingStore
	logger   *slog.Logger
}

func NewDetector(listings domain.ListingStore, logger *slog.Logger) *Detector {
	return &Detector{listings: listings, logger: logger.With("component", "detector")}
}

// Observe applies one normalized observation seen at seenAt.
func (d *Detector) Observe(ctx context.Context, incoming domain.Listing, seenAt time.Time) (Outcome, error) {
	incoming.ContentHash = Fingerprint(incoming.ExternalID, incoming.Price, incoming.Title)

	var lastErr error
	for attempt := 0; attempt < maxObserveAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(observeBackoff * time.Duration(attempt)):
			}
		}

		outcome, err := d.observeOnce(ctx, incoming, seenAt)
		if err == nil {
			return outcome, nil
		}
		switch {
		case isRetryable(err):
			lastErr = err
			d.logger.Debug("observation raced, retrying",
				"external_id", incoming.ExternalID,
				"source_id", incoming.SourceID,
				"attempt", attempt+1)
		default:
			return 0, err
		}
	}
	return 0, fmt.Errorf("observe %s/%s: retries exhausted: %w",
		incoming.SourceID, incoming.ExternalID, lastErr)
}

func (d *Detector) observeOnce(ctx context.Context, incoming domain.Listing, seenAt time.Time) (Outcome, error) {
	stored, err := d.listings.GetByKey(ctx, incoming.ExternalID, incoming.SourceID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			fresh := incoming
			fresh.ID = uuid.NewString()
			fresh.Status = domain.ListingActive
			fresh.FirstSeen = seenAt
			fresh.LastSeen = seenAt
			if err := d.listings.Insert(ctx, fresh); err != nil {
				return 0, err
			}
			return OutcomeInserted, nil
		}
		return 0, err
	}

	if stored.ContentHash == incoming.ContentHash {
		// Unchanged content. A touch still reactivates a REMOVED listing,
		// since any fresh sighting means it is back on the market.
		if err := d.listings.Touch(ctx, incoming.ExternalID, incoming.SourceID, stored.ContentHash, seenAt); err != nil {
			return 0, err
		}
		return OutcomeTouched, nil
	}

	merged := incoming
	merged.ID = stored.ID
	merged.Status = domain.ListingActive
	merged.FirstSeen = stored.FirstSeen
	merged.LastSeen = seenAt
	merged.CreatedAt = stored.CreatedAt

	var entry *domain.PriceHistoryEntry
	if incoming.Price != stored.Price {
		entry = &domain.PriceHistoryEntry{
			ID:         uuid.NewString(),
			ListingID:  stored.ID,
			OldPrice:   stored.Price,
			NewPrice:   incoming.Price,
			ChangePct:  changePct(stored.Price, incoming.Price),
			RecordedAt: seenAt,
		}
	}

	if err := d.listings.UpdateObserved(ctx, merged, stored.ContentHash, entry); err != nil {
		return 0, err
	}
	return OutcomeUpdated, nil
}

// changePct returns the relative price change in percent, or nil when the
// old price is not positive and a ratio would be meaningless.
func changePct(oldPrice, newPrice int64) *float64 {
	if oldPrice <= 0 {
		return nil
	}
	pct := float64(newPrice-oldPrice) / float64(oldPrice) * 100
	return &pct
}

func isRetryable(err error) bool {
	return errors.Is(err, domain.ErrConflict) || errors.Is(err, domain.ErrAlreadyExists)
}
