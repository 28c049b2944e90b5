package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"

	"rideflow/internal/types"
)

// mapsClient is the part of *maps.Client used here.
type mapsClient interface {
	Directions(ctx context.Context, r *maps.DirectionsRequest) ([]maps.Route, []maps.GeocodedWaypoint, error)
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	NearbySearch(ctx context.Context, r *maps.NearbySearchRequest) (maps.PlacesSearchResponse, error)
	DistanceMatrix(ctx context.Context, r *maps.DistanceMatrixRequest) (*maps.DistanceMatrixResponse, error)
	TextSearch(ctx context.Context, r *maps.TextSearchRequest) (maps.PlacesSearchResponse, error)
}

// Options bias requests to the operating region.
type Options struct {
	Region   string // ccTLD, e.g. "in"
	Language string
	Center   types.Point
}

func newClient(apiKey string) (*maps.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: GOOGLE_MAPS_API_KEY is empty", types.ErrConfiguration)
	}
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

func transportErr(op string, err error) error {
	return fmt.Errorf("%w: maps %s: %v", types.ErrTransport, op, err)
}
