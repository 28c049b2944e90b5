// README: Quote, snapshot and alternative selection types.
package quote

import (
	"errors"
	"time"

	"rideflow/internal/modules/pricing"
	"rideflow/internal/modules/ranking"
	"rideflow/internal/types"
)

type State string

const (
	StateIdle     State = "idle"
	StateFetching State = "fetching"
	StateReady    State = "ready"
	StateFailed   State = "failed"
)

var (
	ErrNoSelection        = errors.New("no quote available")
	ErrUnknownAlternative = errors.New("alternative not in current quote")
	ErrClosed             = errors.New("quote cache closed")
)

// Floors applied when a rider switches to an alternative drop-off.
const (
	minSelectedFareMin = 50
	minSelectedFareMax = 60
	minSelectedWait    = 2
)

// Quote is immutable once published.
type Quote struct {
	Key             types.RouteKey              `json:"key"`
	Price           pricing.PriceBand           `json:"price"`
	WaitTimeMinutes int64                       `json:"wait_time_minutes"`
	Alternatives    []ranking.RankedAlternative `json:"alternatives"`
	ComputedAt      time.Time                   `json:"computed_at"`
}

// Snapshot is what the UI renders.
type Snapshot struct {
	Key           types.RouteKey `json:"key"`
	State         State          `json:"state"`
	Quote         *Quote         `json:"quote"`
	IsLoading     bool           `json:"is_loading"`
	IsRefreshing  bool           `json:"is_refreshing"`
	IsError       bool           `json:"is_error"`
	Error         string         `json:"error,omitempty"`
	LastFetchedAt *time.Time     `json:"last_fetched_at,omitempty"`
}

// Selection is the fare and wait shown after picking an alternative.
type Selection struct {
	Location             string            `json:"location"`
	Price                pricing.PriceBand `json:"price"`
	WaitTimeMinutes      int64             `json:"wait_time_minutes"`
	Savings              int64             `json:"savings"`
	TimeReductionMinutes int64             `json:"time_reduction_minutes"`
}

func (q *Quote) Select(location string) (Selection, error) {
	for _, alt := range q.Alternatives {
		if alt.Location != location {
			continue
		}
		return Selection{
			Location: alt.Location,
			Price: pricing.PriceBand{
				Min: max(q.Price.Min-alt.Savings, minSelectedFareMin),
				Max: max(q.Price.Max-alt.Savings, minSelectedFareMax),
			},
			WaitTimeMinutes:      max(q.WaitTimeMinutes-alt.TimeReductionMinutes, minSelectedWait),
			Savings:              alt.Savings,
			TimeReductionMinutes: alt.TimeReductionMinutes,
		}, nil
	}
	return Selection{}, ErrUnknownAlternative
}
