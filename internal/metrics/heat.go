package metrics

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// HeatIndex scores how hot an area's market is on a 0-100 scale.
//
//	velocity score: (ratio - 0.5) * 40, clamped to [0, 40]
//	price score:    20 + pct * 4,       clamped to [0, 40]
//	demand score:   (1 - saturation) * 20, clamped to [0, 20]
//
// A velocity ratio of 0.5 scores zero, 1.5 maxes the component. Flat
// prices score the neutral 20; +5% maxes the component, -5% zeroes it.
// An undersupplied area (low saturation) scores high demand.
func HeatIndex(velocityRatio, priceChangePct float64, activeCount, capacity int) float64 {
	velocityScore := Clamp((velocityRatio-0.5)*40, 0, 40)
	priceScore := Clamp(20+priceChangePct*4, 0, 40)
	demandScore := Clamp((1-saturation(activeCount, capacity))*20, 0, 20)
	return Clamp(velocityScore+priceScore+demandScore, 0, 100)
}

// Saturation is active inventory over area capacity, clamped to [0, 1].
// Returns nil when capacity is not configured (non-positive).
func Saturation(activeCount, capacity int) *float64 {
	if capacity <= 0 {
		return nil
	}
	s := saturation(activeCount, capacity)
	return &s
}

func saturation(activeCount, capacity int) float64 {
	if capacity <= 0 {
		return 1
	}
	return Clamp(float64(activeCount)/float64(capacity), 0, 1)
}
