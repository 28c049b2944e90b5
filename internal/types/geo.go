package types

import (
	"cmp"
	"math"
	"slices"
)

const earthRadiusKm = 6371.0

// DistanceKm returns the great-circle distance between p and q.
func (p Point) DistanceKm(q Point) float64 {
	dLat := degreesToRadians(q.Lat - p.Lat)
	dLng := degreesToRadians(q.Lng - p.Lng)

	rLat1 := degreesToRadians(p.Lat)
	rLat2 := degreesToRadians(q.Lat)

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(rLat1)*math.Cos(rLat2)*math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))

	return earthRadiusKm * c
}

func degreesToRadians(deg float64) float64 {
	return deg * math.Pi / 180.0
}

// SortByDistance orders items nearest first; ties keep their input order.
func SortByDistance[T any](items []T, from Point, at func(T) Point) {
	slices.SortStableFunc(items, func(a, b T) int {
		return cmp.Compare(from.DistanceKm(at(a)), from.DistanceKm(at(b)))
	})
}
