// README: Route facts, keys and candidates exchanged with route providers.
package types

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

// MaxPlaceQueryLen caps pickup, dropoff and search text, counted in runes after trimming.
const MaxPlaceQueryLen = 256

// ValidatePlaceText rejects text longer than MaxPlaceQueryLen.
func ValidatePlaceText(text string) error {
	if n := utf8.RuneCountInString(strings.TrimSpace(text)); n > MaxPlaceQueryLen {
		return fmt.Errorf("%w: place text has %d characters, limit is %d", ErrFormat, n, MaxPlaceQueryLen)
	}
	return nil
}

// RouteKey identifies a (pickup, dropoff) selection.
type RouteKey struct {
	Pickup  string `json:"pickup"`
	Dropoff string `json:"dropoff"`
}

func NewRouteKey(pickup, dropoff string) RouteKey {
	return RouteKey{Pickup: strings.TrimSpace(pickup), Dropoff: strings.TrimSpace(dropoff)}
}

// Empty reports whether either endpoint is missing.
func (k RouteKey) Empty() bool {
	return k.Pickup == "" || k.Dropoff == ""
}

// Validate checks both endpoints against MaxPlaceQueryLen.
func (k RouteKey) Validate() error {
	if err := ValidatePlaceText(k.Pickup); err != nil {
		return fmt.Errorf("pickup: %w", err)
	}
	if err := ValidatePlaceText(k.Dropoff); err != nil {
		return fmt.Errorf("dropoff: %w", err)
	}
	return nil
}

func (k RouteKey) String() string {
	return k.Pickup + " -> " + k.Dropoff
}

type RouteFacts struct {
	DistanceMeters  float64 `json:"distance_meters"`
	DurationSeconds float64 `json:"duration_seconds"`
}

// Validate rejects negative and non-finite values.
func (f RouteFacts) Validate() error {
	if !finiteNonNegative(f.DistanceMeters) {
		return fmt.Errorf("%w: distance %v", ErrFormat, f.DistanceMeters)
	}
	if !finiteNonNegative(f.DurationSeconds) {
		return fmt.Errorf("%w: duration %v", ErrFormat, f.DurationSeconds)
	}
	return nil
}

func finiteNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}

type AlternativeCandidate struct {
	Location string     `json:"location"`
	Route    RouteFacts `json:"route"`
}

type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ParsePoint reads "lat,lng".
func ParsePoint(s string) (Point, error) {
	var p Point
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return p, fmt.Errorf("invalid point %q", s)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[0]), "%g", &p.Lat); err != nil {
		return p, fmt.Errorf("invalid latitude %q: %w", parts[0], err)
	}
	if _, err := fmt.Sscanf(strings.TrimSpace(parts[1]), "%g", &p.Lng); err != nil {
		return p, fmt.Errorf("invalid longitude %q: %w", parts[1], err)
	}
	return p, nil
}

func (p Point) String() string {
	return fmt.Sprintf("%g,%g", p.Lat, p.Lng)
}
