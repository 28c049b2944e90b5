package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"rideflow/internal/types"
)

// alternativeRadiusMeters bounds the search for alternative drop-off points.
const alternativeRadiusMeters = 1000

const maxAlternatives = 3

// RouteService handles interactions with Google Maps API.
// It implements routes.Provider.
type RouteService struct {
	client mapsClient
	opts   Options
}

// NewRouteService creates a new RouteService with the given API Key.
func NewRouteService(apiKey string, opts Options) (*RouteService, error) {
	client, err := newClient(apiKey)
	if err != nil {
		return nil, err
	}
	return &RouteService{client: client, opts: opts}, nil
}

// GetRouteDetails returns distance and duration of the first driving route.
func (s *RouteService) GetRouteDetails(ctx context.Context, pickup, dropoff string) (types.RouteFacts, error) {
	r := &maps.DirectionsRequest{
		Origin:      pickup,
		Destination: dropoff,
		Mode:        maps.TravelModeDriving,
		Language:    s.opts.Language,
		Region:      s.opts.Region,
	}

	routes, _, err := s.client.Directions(ctx, r)
	if err != nil {
		return types.RouteFacts{}, transportErr("directions", err)
	}
	if len(routes) == 0 || len(routes[0].Legs) == 0 {
		return types.RouteFacts{}, fmt.Errorf("%w: no route found", types.ErrFormat)
	}

	var facts types.RouteFacts
	for _, leg := range routes[0].Legs {
		facts.DistanceMeters += float64(leg.Distance.Meters)
		facts.DurationSeconds += leg.Duration.Seconds()
	}
	return facts, nil
}

// GetAlternativeRoutes finds the named places closest to dropoff within
// walking distance and measures the drive from pickup to each.
func (s *RouteService) GetAlternativeRoutes(ctx context.Context, pickup, dropoff string) ([]types.AlternativeCandidate, error) {
	geo, err := s.client.Geocode(ctx, &maps.GeocodingRequest{
		Address:  dropoff,
		Region:   s.opts.Region,
		Language: s.opts.Language,
	})
	if err != nil {
		return nil, transportErr("geocode", err)
	}
	if len(geo) == 0 {
		return nil, nil
	}
	center := geo[0].Geometry.Location

	nearby, err := s.client.NearbySearch(ctx, &maps.NearbySearchRequest{
		Location: &center,
		Radius:   alternativeRadiusMeters,
		Language: s.opts.Language,
	})
	if err != nil {
		return nil, transportErr("nearby search", err)
	}

	var (
		names        []string
		destinations []string
	)
	places := nearby.Results
	types.SortByDistance(places, types.Point{Lat: center.Lat, Lng: center.Lng}, func(p maps.PlacesSearchResult) types.Point {
		return types.Point{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng}
	})
	dropoffName := strings.ToLower(strings.TrimSpace(dropoff))
	for _, p := range places {
		name := strings.TrimSpace(p.Name)
		if name == "" || p.PlaceID == "" || strings.ToLower(name) == dropoffName {
			continue
		}
		names = append(names, name)
		destinations = append(destinations, "place_id:"+p.PlaceID)
		if len(names) == maxAlternatives {
			break
		}
	}
	if len(destinations) == 0 {
		return nil, nil
	}

	matrix, err := s.client.DistanceMatrix(ctx, &maps.DistanceMatrixRequest{
		Origins:      []string{pickup},
		Destinations: destinations,
		Mode:         maps.TravelModeDriving,
		Language:     s.opts.Language,
	})
	if err != nil {
		return nil, transportErr("distance matrix", err)
	}
	if matrix == nil || len(matrix.Rows) == 0 {
		return nil, fmt.Errorf("%w: empty distance matrix", types.ErrFormat)
	}

	out := make([]types.AlternativeCandidate, 0, len(names))
	for i, el := range matrix.Rows[0].Elements {
		if i >= len(names) || el == nil || el.Status != "OK" {
			continue
		}
		out = append(out, types.AlternativeCandidate{
			Location: names[i],
			Route: types.RouteFacts{
				DistanceMeters:  float64(el.Distance.Meters),
				DurationSeconds: el.Duration.Seconds(),
			},
		})
	}
	return out, nil
}
