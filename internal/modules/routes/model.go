// README: Route provider contract and the route bundle shared across sessions.
package routes

import (
	"context"
	"errors"
	"time"

	"rideflow/internal/types"
)

// Provider is an external source of route facts. Implementations wrap their
// failures in types.ErrConfiguration, types.ErrTransport or types.ErrFormat.
type Provider interface {
	GetRouteDetails(ctx context.Context, pickup, dropoff string) (types.RouteFacts, error)
	GetAlternativeRoutes(ctx context.Context, pickup, dropoff string) ([]types.AlternativeCandidate, error)
}

// Bundle is the raw provider result for one key. Callers must not mutate it.
type Bundle struct {
	Key          types.RouteKey               `json:"key"`
	Primary      types.RouteFacts             `json:"primary"`
	Alternatives []types.AlternativeCandidate `json:"alternatives"`
	FetchedAt    time.Time                    `json:"fetched_at"`
}

var ErrEmptyKey = errors.New("pickup and dropoff are required")

const DefaultMaxAlternatives = 3
