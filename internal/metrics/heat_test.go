package metrics

import "testing"

func TestHeatIndexBounds(t *testing.T) {
	cases := []struct {
		name     string
		velocity float64
		pricePct float64
		active   int
		capacity int
	}{
		{"everything maxed", 10, 100, 0, 1000},
		{"everything floored", 0, -100, 1000, 10},
		{"neutral", 1, 0, 250, 500},
		{"negative velocity", -3, 0, 100, 500},
		{"no capacity", 1.2, 1, 100, 0},
	}
	for _, c := range cases {
		h := HeatIndex(c.velocity, c.pricePct, c.active, c.capacity)
		if h < 0 || h > 100 {
			t.Errorf("%s: heat = %v, out of [0,100]", c.name, h)
		}
	}
}

func TestHeatIndexComponents(t *testing.T) {
	// velocity 1.5 -> 40, flat prices -> 20, empty area -> 20.
	if got := HeatIndex(1.5, 0, 0, 500); got != 80 {
		t.Errorf("HeatIndex(1.5, 0, 0, 500) = %v, want 80", got)
	}
	// velocity 0.5 scores zero.
	if got := HeatIndex(0.5, 0, 500, 500); got != 20 {
		t.Errorf("HeatIndex(0.5, 0, full, full) = %v, want 20 (price only)", got)
	}
	// +5% price change maxes the price component.
	if got := HeatIndex(0.5, 5, 500, 500); got != 40 {
		t.Errorf("HeatIndex(0.5, +5%%, saturated) = %v, want 40", got)
	}
	// -5% zeroes it.
	if got := HeatIndex(0.5, -5, 500, 500); got != 0 {
		t.Errorf("HeatIndex(0.5, -5%%, saturated) = %v, want 0", got)
	}
}

func TestSaturation(t *testing.T) {
	if s := Saturation(250, 500); s == nil || *s != 0.5 {
		t.Errorf("Saturation(250, 500) = %v, want 0.5", s)
	}
	if s := Saturation(900, 500); s == nil || *s != 1 {
		t.Errorf("Saturation(900, 500) = %v, want clamped 1", s)
	}
	if s := Saturation(10, 0); s != nil {
		t.Errorf("Saturation with no capacity = %v, want nil", *s)
	}
}

func TestClamp(t *testing.T) {
	if got := Clamp(-1, 0, 10); got != 0 {
		t.Errorf("Clamp(-1) = %v", got)
	}
	if got := Clamp(11, 0, 10); got != 10 {
		t.Errorf("Clamp(11) = %v", got)
	}
	if got := Clamp(5, 0, 10); got != 5 {
		t.Errorf("Clamp(5) = %v", got)
	}
}
