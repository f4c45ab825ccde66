package domain

import "time"

// TrendLabel classifies the velocity ratio of an area.
type TrendLabel string

const (
	TrendAccelerating TrendLabel = "ACCELERATING"
	TrendRising       TrendLabel = "RISING"
	TrendStable       TrendLabel = "STABLE"
	TrendSlowing      TrendLabel = "SLOWING"
)

// ClassifyTrend maps a velocity ratio onto a trend label. Boundary values
// fall to the calmer side: exactly 1.5 is RISING, exactly 1.2 and 0.8 are
// STABLE.
func ClassifyTrend(ratio float64) TrendLabel {
	switch {
	case ratio > 1.5:
		return TrendAccelerating
	case ratio > 1.2:
		return TrendRising
	case ratio >= 0.8:
		return TrendStable
	default:
		return TrendSlowing
	}
}

// MarketMetricSnapshot is an immutable per-area aggregate computed from the
// active listings at a point in time. Fields whose inputs were unavailable
// (too little data, zero denominators) are nil rather than zero.
type MarketMetricSnapshot struct {
	ID                string      `json:"id"`
	Area              string      `json:"area"`
	ActiveCount       int         `json:"active_count"`
	NewCount7d        int         `json:"new_count_7d"`
	NewCount30d       int         `json:"new_count_30d"`
	AvgPrice          *float64    `json:"avg_price,omitempty"`
	MedianPrice       *float64    `json:"median_price,omitempty"`
	MinPrice          *int64      `json:"min_price,omitempty"`
	MaxPrice          *int64      `json:"max_price,omitempty"`
	StdDevPrice       *float64    `json:"stddev_price,omitempty"`
	AvgPricePerSqft   *float64    `json:"avg_price_per_sqft,omitempty"`
	VelocityRatio     *float64    `json:"velocity_ratio,omitempty"`
	Trend             *TrendLabel `json:"trend,omitempty"`
	PriceChange14dPct *float64    `json:"price_change_14d_pct,omitempty"`
	PriceChange30dPct *float64    `json:"price_change_30d_pct,omitempty"`
	HeatIndex         *float64    `json:"heat_index,omitempty"`
	Saturation        *float64    `json:"saturation,omitempty"`
	ComputedAt        time.Time   `json:"computed_at"`
}

// HeatBand labels a heat index value for presentation.
func HeatBand(heat float64) string {
	switch {
	case heat > 75:
		return "HOT"
	case heat >= 50:
		return "ACTIVE"
	case heat >= 25:
		return "BALANCED"
	default:
		return "COOL"
	}
}
