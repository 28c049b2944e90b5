// README: Ranks alternative drop-off points by fare savings and time reduction.
package ranking

import (
	"math"
	"time"

	"rideflow/internal/modules/pricing"
	"rideflow/internal/types"
)

// Pricer prices a route at an instant.
type Pricer interface {
	Compute(route types.RouteFacts, at time.Time) pricing.PriceBand
}

type RankedAlternative struct {
	Location             string `json:"location"`
	Savings              int64  `json:"savings"`
	TimeReductionMinutes int64  `json:"time_reduction_minutes"`
}

type Input struct {
	Primary      types.RouteFacts
	PrimaryPrice pricing.PriceBand
	Candidates   []types.AlternativeCandidate
	At           time.Time
}

// Rank keeps candidates that are cheaper or faster than the primary route,
// in provider order.
func Rank(p Pricer, in Input) []RankedAlternative {
	out := make([]RankedAlternative, 0, len(in.Candidates))
	for _, c := range in.Candidates {
		price := p.Compute(c.Route, in.At)

		savings := in.PrimaryPrice.Min - price.Min
		if savings < 0 {
			savings = 0
		}
		reduction := int64(math.Round((in.Primary.DurationSeconds - c.Route.DurationSeconds) / 60))
		if reduction < 0 {
			reduction = 0
		}
		if savings == 0 && reduction == 0 {
			continue
		}
		out = append(out, RankedAlternative{
			Location:             c.Location,
			Savings:              savings,
			TimeReductionMinutes: reduction,
		})
	}
	return out
}

// WaitTimeMinutes converts the primary trip duration to whole minutes.
func WaitTimeMinutes(primary types.RouteFacts) int64 {
	w := int64(math.Round(primary.DurationSeconds / 60))
	if w < 0 {
		return 0
	}
	return w
}
