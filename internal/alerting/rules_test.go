package alerting

import (
	"testing"
	"time"

	"github.com/omaralj/propwatch/internal/domain"
)

func f(v float64) *float64 { return &v }

func snapshot(area string) domain.MarketMetricSnapshot {
	return domain.MarketMetricSnapshot{
		ID:          "snap-1",
		Area:        area,
		ActiveCount: 100,
		ComputedAt:  time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC),
	}
}

func findCandidate(cands []candidate, typ domain.AlertType) *candidate {
	for i := range cands {
		if cands[i].Type == typ {
			return &cands[i]
		}
	}
	return nil
}

func TestPriceSurgeSeverities(t *testing.T) {
	th := DefaultThresholds()

	snap := snapshot("Dubai Marina")
	snap.PriceChange14dPct = f(4.9)
	if c := findCandidate(evaluateRules(snap, nil, th), domain.AlertPriceSurge); c != nil {
		t.Errorf("surge fired at 4.9%%, below warn threshold")
	}

	snap.PriceChange14dPct = f(5)
	c := findCandidate(evaluateRules(snap, nil, th), domain.AlertPriceSurge)
	if c == nil {
		t.Fatal("surge did not fire at 5%")
	}
	if c.Severity != domain.SeverityWarning {
		t.Errorf("severity at 5%% = %s, want WARNING", c.Severity)
	}

	snap.PriceChange14dPct = f(8.2)
	c = findCandidate(evaluateRules(snap, nil, th), domain.AlertPriceSurge)
	if c == nil || c.Severity != domain.SeverityCritical {
		t.Errorf("severity at 8.2%% = %v, want CRITICAL", c)
	}
}

func TestPriceDropRule(t *testing.T) {
	th := DefaultThresholds()
	snap := snapshot("JVC")

	snap.PriceChange30dPct = f(-2.9)
	if c := findCandidate(evaluateRules(snap, nil, th), domain.AlertPriceDrop); c != nil {
		t.Error("drop fired at -2.9%, above threshold")
	}

	snap.PriceChange30dPct = f(-3)
	c := findCandidate(evaluateRules(snap, nil, th), domain.AlertPriceDrop)
	if c == nil {
		t.Fatal("drop did not fire at -3%")
	}
	if c.Severity != domain.SeverityInfo {
		t.Errorf("drop severity = %s, want INFO", c.Severity)
	}
	if c.MetricValue != -3 || c.ThresholdValue != -3 {
		t.Errorf("value/threshold = %v/%v", c.MetricValue, c.ThresholdValue)
	}
}

func TestVelocitySpikeRule(t *testing.T) {
	th := DefaultThresholds()
	snap := snapshot("Business Bay")

	snap.VelocityRatio = f(1.49)
	if c := findCandidate(evaluateRules(snap, nil, th), domain.AlertVelocitySpike); c != nil {
		t.Error("spike fired below threshold")
	}

	snap.VelocityRatio = f(1.5)
	c := findCandidate(evaluateRules(snap, nil, th), domain.AlertVelocitySpike)
	if c == nil || c.Severity != domain.SeverityWarning {
		t.Errorf("spike at 1.5 = %v, want WARNING", c)
	}

	// The severity stays WARNING no matter how far past the threshold.
	snap.VelocityRatio = f(3.1)
	c = findCandidate(evaluateRules(snap, nil, th), domain.AlertVelocitySpike)
	if c == nil || c.Severity != domain.SeverityWarning {
		t.Errorf("spike at 3.1 = %v, want WARNING", c)
	}
}

func TestHeatRule(t *testing.T) {
	th := DefaultThresholds()
	snap := snapshot("Palm Jumeirah")

	snap.HeatIndex = f(74.9)
	if c := findCandidate(evaluateRules(snap, nil, th), domain.AlertHeatHigh); c != nil {
		t.Error("heat alert fired below threshold")
	}

	snap.HeatIndex = f(80)
	c := findCandidate(evaluateRules(snap, nil, th), domain.AlertHeatHigh)
	if c == nil || c.Severity != domain.SeverityWarning {
		t.Errorf("heat at 80 = %v, want WARNING", c)
	}
	if c != nil && c.Type != "HIGH_HEAT_INDEX" {
		t.Errorf("heat alert type = %q, want HIGH_HEAT_INDEX", c.Type)
	}

	snap.HeatIndex = f(92)
	c = findCandidate(evaluateRules(snap, nil, th), domain.AlertHeatHigh)
	if c == nil || c.Severity != domain.SeverityWarning {
		t.Errorf("heat at 92 = %v, want WARNING", c)
	}
}

func TestListingFloodRule(t *testing.T) {
	th := DefaultThresholds()
	snap := snapshot("Downtown Dubai")

	counts := map[string]int64{"bayut": 12, "dubizzle": 29}
	if c := findCandidate(evaluateRules(snap, counts, th), domain.AlertListingFlood); c != nil {
		t.Error("flood fired below threshold")
	}

	counts["dubizzle"] = 45
	c := findCandidate(evaluateRules(snap, counts, th), domain.AlertListingFlood)
	if c == nil {
		t.Fatal("flood did not fire at 45 new listings")
	}
	if c.MetricValue != 45 {
		t.Errorf("flood value = %v, want 45 (worst source)", c.MetricValue)
	}
}

func TestNilMetricsFireNothing(t *testing.T) {
	// A snapshot with all computed fields omitted must not trip any rule.
	snap := snapshot("Quiet Area")
	if cands := evaluateRules(snap, nil, DefaultThresholds()); len(cands) != 0 {
		t.Errorf("nil-field snapshot produced %d candidates", len(cands))
	}
}
