// Package geo provides the geographic helpers shared by the feature
// providers: great-circle distances, bounding boxes, and an R-Tree over GPX
// track points for exact proximity checks.
package geo

import (
	"math"

	"github.com/paulmach/orb"
)

const (
	// EarthRadiusM is the sphere radius used for haversine distances.
	EarthRadiusM = 6371000.0

	kmPerDegree = 111.0
)

// HaversineMeters returns the great-circle distance between two points in meters.
func HaversineMeters(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180.0
	lon1Rad := lon1 * math.Pi / 180.0
	lat2Rad := lat2 * math.Pi / 180.0
	lon2Rad := lon2 * math.Pi / 180.0

	dLat := lat2Rad - lat1Rad
	dLon := lon2Rad - lon1Rad

	a := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(dLon/2)*math.Sin(dLon/2)

	return 2 * EarthRadiusM * math.Asin(math.Min(1, math.Sqrt(a)))
}

// BoundOf returns the bounding box of points. ok is false for an empty slice.
func BoundOf(points []orb.Point) (b orb.Bound, ok bool) {
	if len(points) == 0 {
		return orb.Bound{}, false
	}
	b = points[0].Bound()
	for _, p := range points[1:] {
		b = b.Extend(p)
	}
	return b, true
}

// ExpandBound grows b by roughly marginKm on every side. One degree of
// latitude is taken as 111 km and longitude is scaled by the cosine of the
// box's middle latitude, clamped so boxes near the poles stay finite.
func ExpandBound(b orb.Bound, marginKm float64) orb.Bound {
	midLat := (b.Min.Lat() + b.Max.Lat()) / 2
	degLat := marginKm / kmPerDegree
	degLon := marginKm / (kmPerDegree * math.Max(0.1, math.Cos(math.Abs(midLat)*math.Pi/180.0)))
	return orb.Bound{
		Min: orb.Point{b.Min.Lon() - degLon, b.Min.Lat() - degLat},
		Max: orb.Point{b.Max.Lon() + degLon, b.Max.Lat() + degLat},
	}
}
