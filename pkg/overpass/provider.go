package overpass

import (
	"context"
	"log/slog"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kass/waykit/pkg/geo"
	"github.com/kass/waykit/pkg/gpx"
	"github.com/kass/waykit/pkg/logger"
	"github.com/kass/waykit/pkg/models"
)

// Fetcher returns the Overpass elements inside a bounding box.
type Fetcher interface {
	Fetch(ctx context.Context, b orb.Bound) ([]Element, error)
}

// Provider finds live peaks and huts near tracks.
type Provider struct {
	fetcher Fetcher
	log     *slog.Logger
}

// NewProvider returns a provider backed by f.
func NewProvider(f Fetcher, log *slog.Logger) *Provider {
	return &Provider{fetcher: f, log: logger.OrNop(log)}
}

// FromPoints fetches every peak and hut inside the track's bounding box
// grown by marginKm, then keeps those within distanceM meters of any track
// point. One request is made regardless of the number of points.
func (p *Provider) FromPoints(ctx context.Context, points []orb.Point, marginKm, distanceM float64) (*geojson.FeatureCollection, error) {
	bound, ok := geo.BoundOf(points)
	if !ok {
		return models.NewCollection(nil), nil
	}
	bound = geo.ExpandBound(bound, marginKm)

	elements, err := p.fetcher.Fetch(ctx, bound)
	if err != nil {
		return nil, err
	}

	track := geo.NewTrackIndex(points)
	var (
		kept     []*geojson.Feature
		unmapped int
	)
	for _, e := range elements {
		f, ok := ElementToFeature(e)
		if !ok {
			unmapped++
			continue
		}
		pt, _ := models.FeaturePoint(f)
		if track.Within(pt.Lat(), pt.Lon(), distanceM) {
			kept = append(kept, f)
		}
	}

	p.log.Debug("live features filtered",
		"track_points", len(points),
		"elements", len(elements),
		"unmapped", unmapped,
		"kept", len(kept),
	)
	return models.NewCollection(kept), nil
}

// FromGPX combines the points of all files into a single query.
func (p *Provider) FromGPX(ctx context.Context, paths []string, marginKm, distanceM float64) (*geojson.FeatureCollection, error) {
	points, err := gpx.ReadFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	return p.FromPoints(ctx, points, marginKm, distanceM)
}
