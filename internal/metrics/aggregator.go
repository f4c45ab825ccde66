package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/omaralj/propwatch/internal/domain"
)

const (
	velocityShortWindow = 7 * 24 * time.Hour
	velocityLongWindow  = 30 * 24 * time.Hour
	priceShortWindow    = 14 * 24 * time.Hour
	priceLongWindow     = 30 * 24 * time.Hour

	areaLockTTL = 30 * time.Second

	// ChannelMetrics is the signal bus channel snapshot events go out on.
	ChannelMetrics = "metrics"
)

// Options carries the optional collaborators and tuning for an Aggregator.
// Cache, Locks and Bus may be nil; the aggregator then works store-only.
type Options struct {
	Cache               domain.MetricCache
	Locks               domain.LockManager
	Bus                 domain.SignalBus
	DefaultAreaCapacity int
	AreaCapacities      map[string]int
}

// Aggregator computes immutable per-area market snapshots from the live
// listing tables. Snapshot writes are guarded by a per-area distributed
// lock so overlapping runs (scheduled plus manually triggered) do not
// double-compute.
type Aggregator struct {
	listings  domain.ListingStore
	history   domain.PriceHistoryStore
	snapshots domain.MetricStore
	opts      Options
	logger    *slog.Logger
}

func NewAggregator(
	listings domain.ListingStore,
	history domain.PriceHistoryStore,
	snapshots domain.MetricStore,
	opts Options,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		listings:  listings,
		history:   history,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger.With("component", "aggregator"),
	}
}

// ComputeAll computes and persists a snapshot for every area that has at
// least one active listing. Areas whose lock is held elsewhere are
// skipped; persistence errors abort the run.
func (a *Aggregator) ComputeAll(ctx context.Context, asOf time.Time) ([]domain.MarketMetricSnapshot, error) {
	areas, err := a.listings.DistinctActiveAreas(ctx)
	if err != nil {
		return nil, fmt.Errorf("metrics: list areas: %w", err)
	}

	out := make([]domain.MarketMetricSnapshot, 0, len(areas))
	for _, area := range areas {
		snap, err := a.ComputeArea(ctx, area, asOf)
		if err != nil {
			if errors.Is(err, domain.ErrLockHeld) {
				a.logger.Debug("area locked by another computation, skipping", "area", area)
				continue
			}
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return out, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// ComputeArea builds, persists and fans out one snapshot for the area as
// of the given time. Fields whose inputs are insufficient (no 30-day
// activity, a single price point) stay nil.
func (a *Aggregator) ComputeArea(ctx context.Context, area string, asOf time.Time) (domain.MarketMetricSnapshot, error) {
	if a.opts.Locks != nil {
		release, err := a.opts.Locks.Acquire(ctx, "metrics:"+area, areaLockTTL)
		if err != nil {
			return domain.MarketMetricSnapshot{}, err
		}
		defer release()
	}

	active, err := a.listings.ListActiveByArea(ctx, area)
	if err != nil {
		return domain.MarketMetricSnapshot{}, fmt.Errorf("metrics: active listings %s: %w", area, err)
	}
	if len(active) == 0 {
		return domain.MarketMetricSnapshot{}, fmt.Errorf("metrics: %s: no active listings: %w", area, domain.ErrNotFound)
	}

	snap := domain.MarketMetricSnapshot{
		ID:          uuid.NewString(),
		Area:        area,
		ActiveCount: len(active),
		ComputedAt:  asOf,
	}

	a.fillPriceStats(&snap, active)

	if err := a.fillVelocity(ctx, &snap, asOf); err != nil {
		return domain.MarketMetricSnapshot{}, err
	}
	if err := a.fillPriceChanges(ctx, &snap, asOf); err != nil {
		return domain.MarketMetricSnapshot{}, err
	}

	capacity := a.capacityFor(area)
	snap.Saturation = Saturation(len(active), capacity)
	if snap.VelocityRatio != nil {
		pct := 0.0
		if snap.PriceChange14dPct != nil {
			pct = *snap.PriceChange14dPct
		}
		heat := HeatIndex(*snap.VelocityRatio, pct, len(active), capacity)
		snap.HeatIndex = &heat
	}

	if err := a.snapshots.Insert(ctx, snap); err != nil {
		return domain.MarketMetricSnapshot{}, fmt.Errorf("metrics: insert snapshot %s: %w", area, err)
	}

	a.fanOut(ctx, snap)

	a.logger.Info("snapshot computed",
		"area", area,
		"active", snap.ActiveCount,
		"velocity", floatOrNaN(snap.VelocityRatio),
		"heat", floatOrNaN(snap.HeatIndex))
	return snap, nil
}

func (a *Aggregator) fillPriceStats(snap *domain.MarketMetricSnapshot, active []domain.Listing) {
	prices := make([]float64, 0, len(active))
	var psfSum float64
	var psfCount int
	minPrice, maxPrice := active[0].Price, active[0].Price
	for _, l := range active {
		prices = append(prices, float64(l.Price))
		if l.Price < minPrice {
			minPrice = l.Price
		}
		if l.Price > maxPrice {
			maxPrice = l.Price
		}
		if l.PricePerSqft != nil {
			psfSum += *l.PricePerSqft
			psfCount++
		}
	}

	avg := mean(prices)
	med := median(prices)
	snap.AvgPrice = &avg
	snap.MedianPrice = &med
	snap.MinPrice = &minPrice
	snap.MaxPrice = &maxPrice
	if sd, ok := sampleStdDev(prices); ok {
		snap.StdDevPrice = &sd
	}
	if psfCount > 0 {
		avgPsf := psfSum / float64(psfCount)
		snap.AvgPricePerSqft = &avgPsf
	}
}

func (a *Aggregator) fillVelocity(ctx context.Context, snap *domain.MarketMetricSnapshot, asOf time.Time) error {
	new7, err := a.listings.CountNewInArea(ctx, snap.Area, asOf.Add(-velocityShortWindow))
	if err != nil {
		return fmt.Errorf("metrics: new 7d %s: %w", snap.Area, err)
	}
	new30, err := a.listings.CountNewInArea(ctx, snap.Area, asOf.Add(-velocityLongWindow))
	if err != nil {
		return fmt.Errorf("metrics: new 30d %s: %w", snap.Area, err)
	}
	snap.NewCount7d = int(new7)
	snap.NewCount30d = int(new30)

	// No long-window activity means no meaningful baseline; the ratio and
	// everything derived from it stay nil rather than reporting zero.
	if new30 == 0 {
		return nil
	}
	ratio := (float64(new7) / 7) / (float64(new30) / 30)
	snap.VelocityRatio = &ratio
	trend := domain.ClassifyTrend(ratio)
	snap.Trend = &trend
	return nil
}

func (a *Aggregator) fillPriceChanges(ctx context.Context, snap *domain.MarketMetricSnapshot, asOf time.Time) error {
	pc14, err := a.history.AvgChangePctInArea(ctx, snap.Area, asOf.Add(-priceShortWindow))
	if err != nil {
		return fmt.Errorf("metrics: price change 14d %s: %w", snap.Area, err)
	}
	pc30, err := a.history.AvgChangePctInArea(ctx, snap.Area, asOf.Add(-priceLongWindow))
	if err != nil {
		return fmt.Errorf("metrics: price change 30d %s: %w", snap.Area, err)
	}
	snap.PriceChange14dPct = pc14
	snap.PriceChange30dPct = pc30
	return nil
}

// fanOut pushes the snapshot to the cache and the signal bus. Both are
// best-effort: readers fall back to the store.
func (a *Aggregator) fanOut(ctx context.Context, snap domain.MarketMetricSnapshot) {
	if a.opts.Cache != nil {
		if err := a.opts.Cache.SetLatest(ctx, snap); err != nil {
			a.logger.Warn("cache snapshot", "area", snap.Area, "error", err)
		}
	}
	if a.opts.Bus != nil {
		payload, err := json.Marshal(snap)
		if err == nil {
			err = a.opts.Bus.Publish(ctx, ChannelMetrics, payload)
		}
		if err != nil {
			a.logger.Warn("publish snapshot", "area", snap.Area, "error", err)
		}
	}
}

func (a *Aggregator) capacityFor(area string) int {
	if c, ok := a.opts.AreaCapacities[area]; ok {
		return c
	}
	return a.opts.DefaultAreaCapacity
}

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func median(xs []float64) float64 {
	sorted := make([]float64, len(xs))
	copy(sorted, xs)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// sampleStdDev returns the sample standard deviation, or ok=false when
// fewer than two points exist.
func sampleStdDev(xs []float64) (float64, bool) {
	if len(xs) < 2 {
		return 0, false
	}
	m := mean(xs)
	var ss float64
	for _, x := range xs {
		d := x - m
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)-1)), true
}

func floatOrNaN(p *float64) float64 {
	if p == nil {
		return math.NaN()
	}
	return *p
}
