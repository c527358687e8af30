// Package grid implements a uniform square-grid spatial index for geographic
// points. Points are projected onto a local tangent plane around a fixed
// origin, bucketed by floor division into square cells, and each cell has a
// compact reversible string identifier.
//
// The index is a pre-filter: CandidatesNear never misses a point within the
// radius but returns extra points, so callers must apply an exact distance
// check afterwards.
package grid

import "math"

// EarthRadiusM is the mean Earth radius in meters.
const EarthRadiusM = 6371008.8

const degToRad = math.Pi / 180.0

// Origin is the geodetic reference point of the tangent plane. Cell
// identifiers are only meaningful for the origin they were produced with.
type Origin struct {
	Lat float64
	Lon float64
}

// Point is a projected position in meters relative to an Origin.
// X grows eastward, Y grows northward.
type Point struct {
	X float64
	Y float64
}

// Project converts lat/lon to local meters using an equirectangular
// approximation. The east-west scale uses the origin latitude, which keeps
// the mapping linear; distortion grows with distance from the origin, so it
// is only suitable for regional extents.
func Project(lat, lon float64, origin Origin) Point {
	return Point{
		X: EarthRadiusM * (lon - origin.Lon) * degToRad * math.Cos(origin.Lat*degToRad),
		Y: EarthRadiusM * (lat - origin.Lat) * degToRad,
	}
}

func (o Origin) valid() bool {
	return isFinite(o.Lat) && isFinite(o.Lon)
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
