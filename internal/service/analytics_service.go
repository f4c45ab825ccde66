package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

// AnalyticsService serves read-side market analytics. Latest-snapshot reads
// go through the metric cache first and fall back to the persistent store on
// a miss; series and listing-level reads always hit the store.
type AnalyticsService struct {
	listings domain.ListingStore
	history  domain.PriceHistoryStore
	metrics  domain.MetricStore
	alerts   domain.AlertStore
	cache    domain.MetricCache
	logger   *slog.Logger
}

// NewAnalyticsService creates an AnalyticsService with all required
// dependencies. cache may be nil, in which case every read hits the store.
func NewAnalyticsService(
	listings domain.ListingStore,
	history domain.PriceHistoryStore,
	metrics domain.MetricStore,
	alerts domain.AlertStore,
	cache domain.MetricCache,
	logger *slog.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		listings: listings,
		history:  history,
		metrics:  metrics,
		alerts:   alerts,
		cache:    cache,
		logger:   logger,
	}
}

// Overview is the dashboard summary across all tracked areas.
type Overview struct {
	TotalActive   int64                         `json:"total_active"`
	AreaCount     int                           `json:"area_count"`
	AvgPrice      *float64                      `json:"avg_price,omitempty"`
	NewListings7d int                           `json:"new_listings_7d"`
	OpenAlerts    int64                         `json:"open_alerts"`
	Areas         []domain.MarketMetricSnapshot `json:"areas"`
	GeneratedAt   time.Time                     `json:"generated_at"`
}

// GetOverview aggregates the newest snapshot of every area plus global
// counters. The top-level average price weights each area's average by its
// active inventory, matching an average over every active listing.
func (s *AnalyticsService) GetOverview(ctx context.Context) (Overview, error) {
	snaps, err := s.metrics.LatestPerArea(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("analytics_service: latest per area: %w", err)
	}

	active, err := s.listings.CountActive(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("analytics_service: count active: %w", err)
	}

	open, err := s.alerts.CountUnacknowledged(ctx)
	if err != nil {
		return Overview{}, fmt.Errorf("analytics_service: count open alerts: %w", err)
	}

	ov := Overview{
		TotalActive: active,
		AreaCount:   len(snaps),
		OpenAlerts:  open,
		Areas:       snaps,
		GeneratedAt: time.Now().UTC(),
	}

	var priceSum float64
	var priced int
	for _, snap := range snaps {
		ov.NewListings7d += snap.NewCount7d
		if snap.AvgPrice != nil {
			priceSum += *snap.AvgPrice * float64(snap.ActiveCount)
			priced += snap.ActiveCount
		}
	}
	if priced > 0 {
		avg := priceSum / float64(priced)
		ov.AvgPrice = &avg
	}
	return ov, nil
}

// PriceTracker pairs the newest snapshot for an area with the recent price
// changes that fed into it.
type PriceTracker struct {
	Area          string                      `json:"area"`
	Snapshot      domain.MarketMetricSnapshot `json:"snapshot"`
	RecentChanges []domain.PriceHistoryEntry  `json:"recent_changes"`
}

// GetPriceTracker returns price statistics and the recent change ledger for
// one area. days bounds how far back the ledger reaches (default 14).
func (s *AnalyticsService) GetPriceTracker(ctx context.Context, area string, days int) (PriceTracker, error) {
	if days <= 0 {
		days = 14
	}

	snap, err := s.latestSnapshot(ctx, area)
	if err != nil {
		return PriceTracker{}, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	changes, err := s.history.ListRecentInArea(ctx, area, since, domain.ListOpts{Limit: 100})
	if err != nil {
		return PriceTracker{}, fmt.Errorf("analytics_service: recent changes %s: %w", area, err)
	}

	return PriceTracker{Area: area, Snapshot: snap, RecentChanges: changes}, nil
}

// Velocity reports listing velocity for one area alongside the snapshot
// series that shows how it evolved.
type Velocity struct {
	Area          string                        `json:"area"`
	VelocityRatio *float64                      `json:"velocity_ratio,omitempty"`
	Trend         *domain.TrendLabel            `json:"trend,omitempty"`
	NewCount7d    int                           `json:"new_count_7d"`
	NewCount30d   int                           `json:"new_count_30d"`
	Series        []domain.MarketMetricSnapshot `json:"series"`
}

// GetVelocity returns the velocity view for one area. days bounds the series
// window (default 30).
func (s *AnalyticsService) GetVelocity(ctx context.Context, area string, days int) (Velocity, error) {
	if days <= 0 {
		days = 30
	}

	snap, err := s.latestSnapshot(ctx, area)
	if err != nil {
		return Velocity{}, err
	}

	since := time.Now().UTC().AddDate(0, 0, -days)
	series, err := s.metrics.SeriesSince(ctx, area, since)
	if err != nil {
		return Velocity{}, fmt.Errorf("analytics_service: series %s: %w", area, err)
	}

	return Velocity{
		Area:          area,
		VelocityRatio: snap.VelocityRatio,
		Trend:         snap.Trend,
		NewCount7d:    snap.NewCount7d,
		NewCount30d:   snap.NewCount30d,
		Series:        series,
	}, nil
}

// HeatMapCell is one area's heat reading.
type HeatMapCell struct {
	Area       string    `json:"area"`
	HeatIndex  *float64  `json:"heat_index,omitempty"`
	Band       string    `json:"band"`
	ComputedAt time.Time `json:"computed_at"`
}

// GetHeatMap returns the newest heat reading per area, hottest first. Areas
// whose snapshot carries no heat index sort last with band "UNKNOWN".
func (s *AnalyticsService) GetHeatMap(ctx context.Context) ([]HeatMapCell, error) {
	snaps, err := s.metrics.LatestPerArea(ctx)
	if err != nil {
		return nil, fmt.Errorf("analytics_service: latest per area: %w", err)
	}

	cells := make([]HeatMapCell, 0, len(snaps))
	for _, snap := range snaps {
		cell := HeatMapCell{Area: snap.Area, HeatIndex: snap.HeatIndex, ComputedAt: snap.ComputedAt}
		if snap.HeatIndex != nil {
			cell.Band = domain.HeatBand(*snap.HeatIndex)
		} else {
			cell.Band = "UNKNOWN"
		}
		cells = append(cells, cell)
	}

	// Hottest first; unknown heat sinks to the bottom.
	sort.Slice(cells, func(i, j int) bool {
		a, b := cells[i].HeatIndex, cells[j].HeatIndex
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a > *b
		}
	})
	return cells, nil
}

// SourceComparison breaks one area down by portal.
type SourceComparison struct {
	Area    string              `json:"area"`
	Sources []domain.SourceStat `json:"sources"`
}

// GetSourceComparison returns per-source inventory and pricing for one area.
func (s *AnalyticsService) GetSourceComparison(ctx context.Context, area string) (SourceComparison, error) {
	stats, err := s.listings.SourceStats(ctx, area)
	if err != nil {
		return SourceComparison{}, fmt.Errorf("analytics_service: source stats %s: %w", area, err)
	}
	return SourceComparison{Area: area, Sources: stats}, nil
}

// ListListings returns the active listings in one area.
func (s *AnalyticsService) ListListings(ctx context.Context, area string) ([]domain.Listing, error) {
	listings, err := s.listings.ListActiveByArea(ctx, area)
	if err != nil {
		return nil, fmt.Errorf("analytics_service: list active %s: %w", area, err)
	}
	return listings, nil
}

// latestSnapshot reads the newest snapshot for an area, cache first.
func (s *AnalyticsService) latestSnapshot(ctx context.Context, area string) (domain.MarketMetricSnapshot, error) {
	if s.cache != nil {
		if snap, err := s.cache.GetLatest(ctx, area); err == nil {
			return snap, nil
		}
	}

	snap, err := s.metrics.Latest(ctx, area)
	if err != nil {
		return domain.MarketMetricSnapshot{}, fmt.Errorf("analytics_service: latest snapshot %s: %w", area, err)
	}

	// Back-fill cache; log but do not fail on cache write errors.
	if s.cache != nil {
		if cacheErr := s.cache.SetLatest(ctx, snap); cacheErr != nil {
			s.logger.WarnContext(ctx, "analytics_service: cache set failed",
				slog.String("area", area),
				slog.String("error", cacheErr.Error()),
			)
		}
	}
	return snap, nil
}
