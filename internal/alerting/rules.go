package alerting

import (
	"fmt"

	"github.com/omaralj/propwatch/internal/domain"
)

// Thresholds are the tunable trigger levels for the alert rules.
type Thresholds struct {
	// PriceSurgeWarnPct triggers a PRICE_SURGE at WARNING; CritPct upgrades
	// it to CRITICAL. Both compare against the 14-day average change.
	PriceSurgeWarnPct float64
	PriceSurgeCritPct float64
	// PriceDropPct is negative; the 30-day average change at or below it
	// triggers a PRICE_DROP.
	PriceDropPct float64
	// VelocitySpikeRatio triggers a VELOCITY_SPIKE when the 7d/30d listing
	// rate ratio reaches it.
	VelocitySpikeRatio float64
	// HeatIndexHigh triggers HIGH_HEAT_INDEX.
	HeatIndexHigh float64
	// ListingFloodCount is the per-source 24h new-listing count that
	// triggers a LISTING_FLOOD.
	ListingFloodCount int64
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		PriceSurgeWarnPct:  5,
		PriceSurgeCritPct:  8,
		PriceDropPct:       -3,
		VelocitySpikeRatio: 1.5,
		HeatIndexHigh:      75,
		ListingFloodCount:  30,
	}
}

// candidate is a rule hit before suppression and persistence.
type candidate struct {
	Type           domain.AlertType
	Severity       domain.AlertSeverity
	Title          string
	Description    string
	MetricValue    float64
	ThresholdValue float64
}

// evaluateRules runs every rule against one snapshot. Rules read only the
// snapshot (plus the per-source flood counts gathered at the same time),
// so a rule never mixes data from two computations.
func evaluateRules(snap domain.MarketMetricSnapshot, floodBySource map[string]int64, th Thresholds) []candidate {
	var out []candidate

	if snap.PriceChange14dPct != nil && *snap.PriceChange14dPct >= th.PriceSurgeWarnPct {
		sev := domain.SeverityWarning
		threshold := th.PriceSurgeWarnPct
		if *snap.PriceChange14dPct >= th.PriceSurgeCritPct {
			sev = domain.SeverityCritical
			threshold = th.PriceSurgeCritPct
		}
		out = append(out, candidate{
			Type:           domain.AlertPriceSurge,
			Severity:       sev,
			Title:          fmt.Sprintf("Price surge in %s", snap.Area),
			Description:    fmt.Sprintf("Average asking price up %.1f%% over 14 days", *snap.PriceChange14dPct),
			MetricValue:    *snap.PriceChange14dPct,
			ThresholdValue: threshold,
		})
	}

	if snap.PriceChange30dPct != nil && *snap.PriceChange30dPct <= th.PriceDropPct {
		out = append(out, candidate{
			Type:           domain.AlertPriceDrop,
			Severity:       domain.SeverityInfo,
			Title:          fmt.Sprintf("Price drop in %s", snap.Area),
			Description:    fmt.Sprintf("Average asking price down %.1f%% over 30 days", -*snap.PriceChange30dPct),
			MetricValue:    *snap.PriceChange30dPct,
			ThresholdValue: th.PriceDropPct,
		})
	}

	if snap.VelocityRatio != nil && *snap.VelocityRatio >= th.VelocitySpikeRatio {
		out = append(out, candidate{
			Type:     domain.AlertVelocitySpike,
			Severity: domain.SeverityWarning,
			Title:    fmt.Sprintf("Listing velocity spike in %s", snap.Area),
			Description: fmt.Sprintf("New listings arriving %.1fx faster than the 30-day baseline (%d in 7d vs %d in 30d)",
				*snap.VelocityRatio, snap.NewCount7d, snap.NewCount30d),
			MetricValue:    *snap.VelocityRatio,
			ThresholdValue: th.VelocitySpikeRatio,
		})
	}

	if snap.HeatIndex != nil && *snap.HeatIndex >= th.HeatIndexHigh {
		out = append(out, candidate{
			Type:     domain.AlertHeatHigh,
			Severity: domain.SeverityWarning,
			Title:    fmt.Sprintf("%s market is %s", snap.Area, domain.HeatBand(*snap.HeatIndex)),
			Description: fmt.Sprintf("Heat index at %.0f (velocity, price momentum and demand combined)",
				*snap.HeatIndex),
			MetricValue:    *snap.HeatIndex,
			ThresholdValue: th.HeatIndexHigh,
		})
	}

	if th.ListingFloodCount > 0 {
		var worstSource string
		var worstCount int64
		for src, n := range floodBySource {
			if n >= th.ListingFloodCount && (n > worstCount || (n == worstCount && src < worstSource)) {
				worstSource, worstCount = src, n
			}
		}
		if worstSource != "" {
			out = append(out, candidate{
				Type:     domain.AlertListingFlood,
				Severity: domain.SeverityWarning,
				Title:    fmt.Sprintf("Listing flood in %s", snap.Area),
				Description: fmt.Sprintf("%s pushed %d new listings in 24 hours",
					worstSource, worstCount),
				MetricValue:    float64(worstCount),
				ThresholdValue: float64(th.ListingFloodCount),
			})
		}
	}

	return out
}
