package domain

import (
	"context"
	"time"
)

// ListOpts paginates list queries.
type ListOpts struct {
	Limit  int
	Offset int
}

// ListingStore persists listings. The write methods are compare-and-set
// primitives keyed on the stored content hash so concurrent observers of
// the same listing cannot interleave: a write whose expected hash no
// longer matches returns ErrConflict and the caller re-reads and retries.
type ListingStore interface {
	// GetByKey fetches a listing by its (external_id, source_id) dedup key.
	GetByKey(ctx context.Context, externalID, sourceID string) (Listing, error)
	GetByID(ctx context.Context, id string) (Listing, error)

	// Insert creates a brand-new listing. It returns ErrAlreadyExists when
	// another writer inserted the same key first.
	Insert(ctx context.Context, l Listing) error

	// Touch advances last_seen (monotonically) and reactivates the listing,
	// provided the stored content hash still equals expectHash.
	Touch(ctx context.Context, externalID, sourceID, expectHash string, seenAt time.Time) error

	// UpdateObserved applies changed observed fields, swaps the content
	// hash, reactivates the listing, and (when entry is non-nil) appends the
	// price history entry in the same transaction. The update only applies
	// when the stored hash still equals expectHash; otherwise ErrConflict.
	UpdateObserved(ctx context.Context, l Listing, expectHash string, entry *PriceHistoryEntry) error

	// MarkStale flips ACTIVE listings with last_seen before cutoff to
	// REMOVED and returns how many changed.
	MarkStale(ctx context.Context, cutoff time.Time) (int64, error)

	ListActiveByArea(ctx context.Context, area string) ([]Listing, error)
	DistinctActiveAreas(ctx context.Context) ([]string, error)
	CountActive(ctx context.Context) (int64, error)
	CountNewInArea(ctx context.Context, area string, since time.Time) (int64, error)
	CountNewBySource(ctx context.Context, area string, since time.Time) (map[string]int64, error)
	SourceStats(ctx context.Context, area string) ([]SourceStat, error)
}

// PriceHistoryStore reads the append-only price change ledger. Entries are
// appended through ListingStore.UpdateObserved so a listing update and its
// ledger row commit atomically.
type PriceHistoryStore interface {
	ListByListing(ctx context.Context, listingID string, opts ListOpts) ([]PriceHistoryEntry, error)
	// AvgChangePctInArea averages change_pct over entries recorded since
	// the given time for listings in the area. Returns nil when there are
	// no qualifying entries.
	AvgChangePctInArea(ctx context.Context, area string, since time.Time) (*float64, error)
	ListRecentInArea(ctx context.Context, area string, since time.Time, opts ListOpts) ([]PriceHistoryEntry, error)
	ListBefore(ctx context.Context, before time.Time) ([]PriceHistoryEntry, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// MetricStore persists per-area market metric snapshots. Snapshots are
// immutable; every computation inserts a new row.
type MetricStore interface {
	Insert(ctx context.Context, snap MarketMetricSnapshot) error
	Latest(ctx context.Context, area string) (MarketMetricSnapshot, error)
	// LatestBefore returns the most recent snapshot for the area computed
	// strictly before the given time.
	LatestBefore(ctx context.Context, area string, before time.Time) (MarketMetricSnapshot, error)
	SeriesSince(ctx context.Context, area string, since time.Time) ([]MarketMetricSnapshot, error)
	LatestPerArea(ctx context.Context) ([]MarketMetricSnapshot, error)
}

// AlertStore persists alerts.
type AlertStore interface {
	Insert(ctx context.Context, a Alert) error
	GetByID(ctx context.Context, id string) (Alert, error)
	// FindOpen returns the newest unacknowledged alert of the given type
	// and area triggered at or after since, or ErrNotFound.
	FindOpen(ctx context.Context, typ AlertType, area string, since time.Time) (Alert, error)
	// Refresh updates the observed metric value on a still-open alert
	// without creating a new one.
	Refresh(ctx context.Context, id string, metricValue float64, at time.Time) error
	Acknowledge(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, f AlertFilter) ([]Alert, error)
	CountUnacknowledged(ctx context.Context) (int64, error)
}

// ScrapeJobStore persists collection run audit records.
type ScrapeJobStore interface {
	Start(ctx context.Context, job ScrapeJob) error
	Finish(ctx context.Context, job ScrapeJob) error
	GetByID(ctx context.Context, id string) (ScrapeJob, error)
	ListRecent(ctx context.Context, opts ListOpts) ([]ScrapeJob, error)
	ListBefore(ctx context.Context, before time.Time) ([]ScrapeJob, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}
