package ai

// routeEstimate is the JSON shape requested for a single trip.
// Pointers distinguish a missing field from zero.
type routeEstimate struct {
	DistanceKm  *float64 `json:"distance_km"`
	DurationMin *float64 `json:"duration_min"`
}

type alternativeEstimate struct {
	Location    string   `json:"location"`
	DistanceKm  *float64 `json:"distance_km"`
	DurationMin *float64 `json:"duration_min"`
}

type alternativesResponse struct {
	Alternatives []alternativeEstimate `json:"alternatives"`
}
