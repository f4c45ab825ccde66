package service

import (
	"context"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
	"github.com/omaralj/propwatch/internal/store/memory"
)

func f(v float64) *float64 { return &v }

func TestGetOverviewAggregates(t *testing.T) {
	store := memory.New()
	ctx := context.Background()
	now := time.Now().UTC()

	listings := []domain.Listing{
		{ID: "l1", ExternalID: "m-1", SourceID: "bayut", Title: "1BR", Area: "Dubai Marina",
			Price: 1_800_000, Status: domain.ListingActive, ContentHash: "h1", FirstSeen: now, LastSeen: now},
		{ID: "l2", ExternalID: "m-2", SourceID: "bayut", Title: "2BR", Area: "Dubai Marina",
			Price: 2_200_000, Status: domain.ListingActive, ContentHash: "h2", FirstSeen: now, LastSeen: now},
		{ID: "l3", ExternalID: "d-1", SourceID: "bayut", Title: "3BR", Area: "Downtown Dubai",
			Price: 3_500_000, Status: domain.ListingActive, ContentHash: "h3", FirstSeen: now, LastSeen: now},
	}
	for _, l := range listings {
		if err := store.Listings.Insert(ctx, l); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	snaps := []domain.MarketMetricSnapshot{
		{ID: "s1", Area: "Dubai Marina", ActiveCount: 2, AvgPrice: f(2_000_000), NewCount7d: 5, ComputedAt: now},
		{ID: "s2", Area: "Downtown Dubai", ActiveCount: 1, AvgPrice: f(3_500_000), NewCount7d: 2, ComputedAt: now},
	}
	for _, snap := range snaps {
		if err := store.Metrics.Insert(ctx, snap); err != nil {
			t.Fatalf("Insert snapshot: %v", err)
		}
	}

	svc := NewAnalyticsService(store.Listings, store.History, store.Metrics, store.Alerts, nil, slog.Default())
	ov, err := svc.GetOverview(ctx)
	if err != nil {
		t.Fatalf("GetOverview: %v", err)
	}

	if ov.TotalActive != 3 {
		t.Errorf("TotalActive = %d, want 3", ov.TotalActive)
	}
	if ov.AreaCount != 2 {
		t.Errorf("AreaCount = %d, want 2", ov.AreaCount)
	}
	if ov.NewListings7d != 7 {
		t.Errorf("NewListings7d = %d, want 7", ov.NewListings7d)
	}
	// Weighted by inventory: (2 * 2.0M + 1 * 3.5M) / 3.
	if ov.AvgPrice == nil || math.Abs(*ov.AvgPrice-2_500_000) > 1e-6 {
		t.Errorf("AvgPrice = %v, want 2500000", ov.AvgPrice)
	}
}
