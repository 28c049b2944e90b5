// README: Tariff definition, fare bands and the fare breakdown returned to callers.
package pricing

import (
	"time"

	"rideflow/internal/types"
)

// Tariff holds the constants of the fare formula for one region.
type Tariff struct {
	Region          string  `json:"region"`
	BaseFare        float64 `json:"base_fare"`
	PerKm           float64 `json:"per_km"`
	PerMin          float64 `json:"per_min"`
	PeakMultiplier  float64 `json:"peak_multiplier"`
	NightMultiplier float64 `json:"night_multiplier"`
	VarianceRatio   float64 `json:"variance_ratio"`
	Currency        string  `json:"currency"`
}

func DefaultTariff() Tariff {
	return Tariff{
		Region:          "default",
		BaseFare:        30,
		PerKm:           12,
		PerMin:          2,
		PeakMultiplier:  1.2,
		NightMultiplier: 1.25,
		VarianceRatio:   0.05,
		Currency:        "INR",
	}
}

// PriceBand is an inclusive fare range in whole currency units.
type PriceBand struct {
	Min int64 `json:"min"`
	Max int64 `json:"max"`
}

type PricingRequest struct {
	Route       types.RouteFacts
	RequestTime time.Time
}

type PricingResult struct {
	Band      PriceBand
	Currency  string
	Peak      bool
	Night     bool
	Breakdown map[string]int64
}
