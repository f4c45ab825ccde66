package domain

import "time"

// AlertType identifies the market condition an alert reports.
type AlertType string

const (
	AlertPriceSurge    AlertType = "PRICE_SURGE"
	AlertPriceDrop     AlertType = "PRICE_DROP"
	AlertVelocitySpike AlertType = "VELOCITY_SPIKE"
	AlertHeatHigh      AlertType = "HIGH_HEAT_INDEX"
	AlertListingFlood  AlertType = "LISTING_FLOOD"
)

// AlertSeverity grades how urgent an alert is.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "INFO"
	SeverityWarning  AlertSeverity = "WARNING"
	SeverityCritical AlertSeverity = "CRITICAL"
)

// Alert is a persisted notification that a rule fired for an area.
// An open (unacknowledged) alert suppresses further alerts of the same
// type for the same area within the suppression window; acknowledging it
// re-arms the rule.
type Alert struct {
	ID             string        `json:"id"`
	Type           AlertType     `json:"type"`
	Severity       AlertSeverity `json:"severity"`
	Area           string        `json:"area"`
	Title          string        `json:"title"`
	Description    string        `json:"description,omitempty"`
	MetricValue    float64       `json:"metric_value"`
	ThresholdValue float64       `json:"threshold_value"`
	Acknowledged   bool          `json:"acknowledged"`
	TriggeredAt    time.Time     `json:"triggered_at"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	RefreshedAt    *time.Time    `json:"refreshed_at,omitempty"`
}

// AlertFilter narrows alert listings.
type AlertFilter struct {
	Area           string
	Type           AlertType
	Severity       AlertSeverity
	Unacknowledged bool
	Since          time.Time
	Limit          int
	Offset         int
}
