package domain

import "testing"

func TestClassifyTrendBoundaries(t *testing.T) {
	cases := []struct {
		ratio float64
		want  TrendLabel
	}{
		{2.0, TrendAccelerating},
		{1.51, TrendAccelerating},
		{1.5, TrendRising}, // boundary falls to the calmer label
		{1.3, TrendRising},
		{1.2, TrendStable},
		{1.0, TrendStable},
		{0.8, TrendStable},
		{0.79, TrendSlowing},
		{0.0, TrendSlowing},
	}
	for _, c := range cases {
		if got := ClassifyTrend(c.ratio); got != c.want {
			t.Errorf("ClassifyTrend(%v) = %s, want %s", c.ratio, got, c.want)
		}
	}
}

func TestHeatBand(t *testing.T) {
	cases := []struct {
		heat float64
		want string
	}{
		{90, "HOT"},
		{75, "ACTIVE"},
		{50, "ACTIVE"},
		{49.9, "BALANCED"},
		{25, "BALANCED"},
		{10, "COOL"},
	}
	for _, c := range cases {
		if got := HeatBand(c.heat); got != c.want {
			t.Errorf("HeatBand(%v) = %s, want %s", c.heat, got, c.want)
		}
	}
}
