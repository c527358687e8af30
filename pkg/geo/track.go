package geo

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

const (
	tolerance   = 1e-7
	minChildren = 25
	maxChildren = 50
	dimensions  = 2

	// searchSlack widens the degree box so curvature never pushes a point
	// that is within range outside of it.
	searchSlack = 1.01
)

// trackPoint wraps a track vertex to implement rtreego.Spatial
type trackPoint struct {
	lat, lon float64
	rect     *rtreego.Rect
}

func (tp *trackPoint) Bounds() *rtreego.Rect {
	return tp.rect
}

// TrackIndex is an R-Tree over the points of one or more GPX tracks. It is
// immutable once built and safe for concurrent use.
type TrackIndex struct {
	tree *rtreego.Rtree
	size int
}

// NewTrackIndex indexes the given track points (orb.Point is lon, lat).
func NewTrackIndex(points []orb.Point) *TrackIndex {
	tree := rtreego.NewTree(dimensions, minChildren, maxChildren)
	for _, p := range points {
		pt := rtreego.Point{p.Lat(), p.Lon()}
		tree.Insert(&trackPoint{lat: p.Lat(), lon: p.Lon(), rect: pt.ToRect(tolerance)})
	}
	return &TrackIndex{tree: tree, size: len(points)}
}

// Size returns the number of indexed track points.
func (t *TrackIndex) Size() int {
	return t.size
}

// Within reports whether lat/lon lies within maxM meters (haversine) of any
// track point.
func (t *TrackIndex) Within(lat, lon, maxM float64) bool {
	if t.size == 0 || maxM < 0 {
		return false
	}
	for _, tp := range t.search(lat, lon, maxM) {
		if HaversineMeters(lat, lon, tp.lat, tp.lon) <= maxM {
			return true
		}
	}
	return false
}

// MinDistance returns the haversine distance in meters from lat/lon to the
// closest track point, or +Inf when the index is empty.
func (t *TrackIndex) MinDistance(lat, lon float64) float64 {
	if t.size == 0 {
		return math.Inf(1)
	}

	// The planar nearest neighbour bounds the true nearest distance, so a
	// box of that radius is guaranteed to contain it.
	nn, ok := t.tree.NearestNeighbor(rtreego.Point{lat, lon}).(*trackPoint)
	if !ok {
		return math.Inf(1)
	}
	best := HaversineMeters(lat, lon, nn.lat, nn.lon)
	for _, tp := range t.search(lat, lon, best) {
		if d := HaversineMeters(lat, lon, tp.lat, tp.lon); d < best {
			best = d
		}
	}
	return best
}

// search returns the track points inside the lat/lon box that circumscribes
// a circle of radiusM around the query point.
func (t *TrackIndex) search(lat, lon, radiusM float64) []*trackPoint {
	degLat := radiusM / (EarthRadiusM * math.Pi / 180.0) * searchSlack
	maxLat := math.Min(90, math.Abs(lat)+degLat)
	degLon := 360.0
	if c := math.Cos(maxLat * math.Pi / 180.0); c > 1e-6 {
		degLon = math.Min(360, degLat/c)
	}

	bounds, err := rtreego.NewRect(
		rtreego.Point{lat - degLat - tolerance, lon - degLon - tolerance},
		[]float64{2 * (degLat + tolerance), 2 * (degLon + tolerance)},
	)
	if err != nil {
		return nil
	}

	results := t.tree.SearchIntersect(bounds)
	points := make([]*trackPoint, 0, len(results))
	for _, r := range results {
		if tp, ok := r.(*trackPoint); ok {
			points = append(points, tp)
		}
	}
	return points
}
