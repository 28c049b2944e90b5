package pricing

import (
	"math"
	"time"

	"rideflow/internal/types"
)

// IsPeakHour reports the morning (08-10) and evening (17-19) rush windows, inclusive.
func IsPeakHour(hour int) bool {
	return (hour >= 8 && hour <= 10) || (hour >= 17 && hour <= 19)
}

// IsNightHour reports 22:00 through 05:59.
func IsNightHour(hour int) bool {
	return hour >= 22 || hour <= 5
}

// ComputePrice maps route facts and a wall-clock time to a fare band.
// The hour is read from at as given; callers convert to the pricing zone first.
func ComputePrice(t Tariff, route types.RouteFacts, at time.Time) PriceBand {
	c := components(t, route, at.Hour())
	variance := c.total * t.VarianceRatio
	lo := int64(math.Round(c.total - variance))
	if floor := int64(math.Round(t.BaseFare)); lo < floor {
		lo = floor
	}
	hi := int64(math.Round(c.total + variance))
	if hi < lo {
		hi = lo
	}
	return PriceBand{Min: lo, Max: hi}
}

type fareComponents struct {
	base     float64
	distance float64
	time     float64
	peak     float64
	night    float64
	total    float64
	isPeak   bool
	isNight  bool
}

func components(t Tariff, route types.RouteFacts, hour int) fareComponents {
	km := sanitize(route.DistanceMeters) / 1000
	minutes := sanitize(route.DurationSeconds) / 60

	c := fareComponents{
		base:     t.BaseFare,
		distance: km * t.PerKm,
		time:     minutes * t.PerMin,
		isPeak:   IsPeakHour(hour),
		isNight:  IsNightHour(hour),
	}
	total := c.base + c.distance + c.time
	if c.isPeak {
		c.peak = total * (t.PeakMultiplier - 1)
		total *= t.PeakMultiplier
	}
	if c.isNight {
		c.night = total * (t.NightMultiplier - 1)
		total *= t.NightMultiplier
	}
	c.total = total
	return c
}

// sanitize clamps negative and non-finite inputs to zero.
func sanitize(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return 0
	}
	return v
}
