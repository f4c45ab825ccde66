package metrics

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/store/memory"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedListing(t *testing.T, store *memory.Store, area string, price int64, firstSeen time.Time) domain.Listing {
	t.Helper()
	l := domain.Listing{
		ID:         uuid.NewString(),
		ExternalID: uuid.NewString(),
		SourceID:   "bayut",
		Title:      "test listing",
		Area:       area,
		Price:      price,
		Status:     domain.ListingActive,
		FirstSeen:  firstSeen,
		LastSeen:   firstSeen,
	}
	if err := store.Listings.Insert(context.Background(), l); err != nil {
		t.Fatal(err)
	}
	return l
}

func newAggregator(store *memory.Store, opts Options) *Aggregator {
	return NewAggregator(store.Listings, store.History, store.Metrics, opts, testLogger())
}

func approx(got, want, eps float64) bool {
	return math.Abs(got-want) < eps
}

func TestComputeAreaPriceStats(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	old := asOf.Add(-60 * 24 * time.Hour)
	for _, p := range []int64{100, 200, 600} {
		seedListing(t, store, "Dubai Marina", p, old)
	}

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snap, err := agg.ComputeArea(context.Background(), "Dubai Marina", asOf)
	if err != nil {
		t.Fatal(err)
	}

	if snap.ActiveCount != 3 {
		t.Errorf("active = %d, want 3", snap.ActiveCount)
	}
	if snap.AvgPrice == nil || *snap.AvgPrice != 300 {
		t.Errorf("avg = %v, want 300", snap.AvgPrice)
	}
	if snap.MedianPrice == nil || *snap.MedianPrice != 200 {
		t.Errorf("median = %v, want 200", snap.MedianPrice)
	}
	if snap.MinPrice == nil || *snap.MinPrice != 100 || snap.MaxPrice == nil || *snap.MaxPrice != 600 {
		t.Errorf("min/max = %v/%v, want 100/600", snap.MinPrice, snap.MaxPrice)
	}
	if snap.StdDevPrice == nil || !approx(*snap.StdDevPrice, 264.575, 0.01) {
		t.Errorf("stddev = %v, want ~264.575", snap.StdDevPrice)
	}

	// Snapshot must be persisted.
	latest, err := store.Metrics.Latest(context.Background(), "Dubai Marina")
	if err != nil {
		t.Fatal(err)
	}
	if latest.ID != snap.ID {
		t.Error("persisted snapshot does not match returned one")
	}
}

func TestComputeAreaStdDevNilForSinglePoint(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedListing(t, store, "DIFC", 1000000, asOf.Add(-60*24*time.Hour))

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snap, err := agg.ComputeArea(context.Background(), "DIFC", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if snap.StdDevPrice != nil {
		t.Errorf("stddev = %v, want nil for one price point", *snap.StdDevPrice)
	}
}

func TestComputeAreaVelocityNilWithoutBaseline(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	// All listings predate the 30-day window: no baseline, no ratio.
	seedListing(t, store, "JVC", 700000, asOf.Add(-90*24*time.Hour))
	seedListing(t, store, "JVC", 800000, asOf.Add(-90*24*time.Hour))

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snap, err := agg.ComputeArea(context.Background(), "JVC", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if snap.VelocityRatio != nil || snap.Trend != nil || snap.HeatIndex != nil {
		t.Errorf("velocity/trend/heat = %v/%v/%v, want all nil without 30d activity",
			snap.VelocityRatio, snap.Trend, snap.HeatIndex)
	}
	if snap.AvgPrice == nil {
		t.Error("price stats must still be present")
	}
}

func TestComputeAreaVelocityAndTrend(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	// 7 listings in the last 7 days, 7 more earlier in the 30-day window:
	// daily rate 1.0 vs 14/30 -> ratio 30/14 ~ 2.14, ACCELERATING.
	for i := 0; i < 7; i++ {
		seedListing(t, store, "Business Bay", 1000000, asOf.Add(-3*24*time.Hour))
	}
	for i := 0; i < 7; i++ {
		seedListing(t, store, "Business Bay", 1000000, asOf.Add(-20*24*time.Hour))
	}

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snap, err := agg.ComputeArea(context.Background(), "Business Bay", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if snap.NewCount7d != 7 || snap.NewCount30d != 14 {
		t.Fatalf("new counts = %d/%d, want 7/14", snap.NewCount7d, snap.NewCount30d)
	}
	if snap.VelocityRatio == nil || !approx(*snap.VelocityRatio, 30.0/14.0, 1e-9) {
		t.Errorf("velocity = %v, want %v", snap.VelocityRatio, 30.0/14.0)
	}
	if snap.Trend == nil || *snap.Trend != domain.TrendAccelerating {
		t.Errorf("trend = %v, want ACCELERATING", snap.Trend)
	}
	if snap.HeatIndex == nil {
		t.Error("heat index missing despite velocity being available")
	}
	if snap.Saturation == nil || !approx(*snap.Saturation, 14.0/500.0, 1e-9) {
		t.Errorf("saturation = %v, want 14/500", snap.Saturation)
	}
}

func TestComputeAreaUsesPriceChangeHistory(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	l := seedListing(t, store, "Palm Jumeirah", 5000000, asOf.Add(-10*24*time.Hour))

	pct := 6.0
	err := store.Listings.UpdateObserved(context.Background(), l, l.ContentHash, &domain.PriceHistoryEntry{
		ID:         uuid.NewString(),
		ListingID:  l.ID,
		OldPrice:   5000000,
		NewPrice:   5300000,
		ChangePct:  &pct,
		RecordedAt: asOf.Add(-2 * 24 * time.Hour),
	})
	if err != nil {
		t.Fatal(err)
	}

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snap, err := agg.ComputeArea(context.Background(), "Palm Jumeirah", asOf)
	if err != nil {
		t.Fatal(err)
	}
	if snap.PriceChange14dPct == nil || *snap.PriceChange14dPct != 6 {
		t.Errorf("price change 14d = %v, want 6", snap.PriceChange14dPct)
	}
	if snap.PriceChange30dPct == nil || *snap.PriceChange30dPct != 6 {
		t.Errorf("price change 30d = %v, want 6", snap.PriceChange30dPct)
	}
}

func TestComputeAreaEmpty(t *testing.T) {
	store := memory.New()
	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	_, err := agg.ComputeArea(context.Background(), "Nowhere", time.Now())
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound for empty area", err)
	}
}

// heldLocks denies every acquisition.
type heldLocks struct{}

func (heldLocks) Acquire(context.Context, string, time.Duration) (func(), error) {
	return nil, domain.ErrLockHeld
}

func TestComputeAllSkipsLockedAreas(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedListing(t, store, "Dubai Marina", 1000000, asOf.Add(-40*24*time.Hour))

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500, Locks: heldLocks{}})
	snaps, err := agg.ComputeAll(context.Background(), asOf)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 0 {
		t.Errorf("computed %d snapshots with all locks held, want 0", len(snaps))
	}
}

func TestComputeAllCoversActiveAreas(t *testing.T) {
	store := memory.New()
	asOf := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	seedListing(t, store, "Dubai Marina", 1000000, asOf.Add(-40*24*time.Hour))
	seedListing(t, store, "Business Bay", 900000, asOf.Add(-40*24*time.Hour))

	agg := newAggregator(store, Options{DefaultAreaCapacity: 500})
	snaps, err := agg.ComputeAll(context.Background(), asOf)
	if err != nil {
		t.Fatal(err)
	}
	if len(snaps) != 2 {
		t.Fatalf("snapshots = %d, want 2", len(snaps))
	}
	areas := map[string]bool{}
	for _, s := range snaps {
		areas[s.Area] = true
	}
	if !areas["Dubai Marina"] || !areas["Business Bay"] {
		t.Errorf("areas covered = %v", areas)
	}
}
