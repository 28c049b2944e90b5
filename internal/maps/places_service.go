package maps

import (
	"context"
	"strings"

	"googlemaps.github.io/maps"

	"rideflow/internal/types"
)

// searchRadiusMeters keeps text search inside the operating city.
const searchRadiusMeters = 50000

// PlacesService handles interactions with Google Places API.
// It implements search.Lookup.
type PlacesService struct {
	client mapsClient
	opts   Options
	limit  int
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string, opts Options, limit int) (*PlacesService, error) {
	client, err := newClient(apiKey)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 5
	}
	return &PlacesService{client: client, opts: opts, limit: limit}, nil
}

// Search returns up to limit places matching text near the region center.
func (s *PlacesService) Search(ctx context.Context, text string) ([]types.Suggestion, error) {
	r := &maps.TextSearchRequest{
		Query:    text,
		Language: s.opts.Language,
		Region:   s.opts.Region,
	}
	if s.opts.Center != (types.Point{}) {
		r.Location = &maps.LatLng{Lat: s.opts.Center.Lat, Lng: s.opts.Center.Lng}
		r.Radius = searchRadiusMeters
	}

	resp, err := s.client.TextSearch(ctx, r)
	if err != nil {
		return nil, transportErr("text search", err)
	}

	out := make([]types.Suggestion, 0, s.limit)
	for _, p := range resp.Results {
		if strings.TrimSpace(p.Name) == "" {
			continue
		}
		out = append(out, types.Suggestion{
			ID:      p.PlaceID,
			Title:   p.Name,
			Address: p.FormattedAddress,
			Coordinates: types.Point{
				Lat: p.Geometry.Location.Lat,
				Lng: p.Geometry.Location.Lng,
			},
		})
		if len(out) == s.limit {
			break
		}
	}
	return out, nil
}
