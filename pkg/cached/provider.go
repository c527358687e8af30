// Package cached resolves points of interest near GPX tracks from an offline
// dataset. The dataset is loaded once into a grid index; each track point
// pulls candidates from the index, which are then checked with the exact
// haversine distance.
package cached

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kass/waykit/pkg/geo"
	"github.com/kass/waykit/pkg/gpx"
	"github.com/kass/waykit/pkg/grid"
	"github.com/kass/waykit/pkg/logger"
	"github.com/kass/waykit/pkg/models"
)

// Source yields the features to index.
type Source interface {
	Features(ctx context.Context) ([]*geojson.Feature, error)
}

// Options configures a Provider. The origin must stay fixed for as long as
// cell ids from the provider are stored anywhere.
type Options struct {
	CellSizeM float64
	Origin    grid.Origin
	Logger    *slog.Logger
}

// DefaultOptions centers the grid on the central Alps with 200 m cells.
func DefaultOptions() Options {
	return Options{
		CellSizeM: 200.0,
		Origin:    grid.Origin{Lat: 47.0, Lon: 10.0},
	}
}

// Provider answers proximity queries against one Source.
type Provider struct {
	src  Source
	opts Options
	log  *slog.Logger

	once  sync.Once
	index *grid.Index[*geojson.Feature]
	err   error
}

// NewProvider returns a provider that loads src on first use.
func NewProvider(src Source, opts Options) *Provider {
	return &Provider{
		src:  src,
		opts: opts,
		log:  logger.OrNop(opts.Logger),
	}
}

// Index returns the grid index, building it on the first call. A failed
// build is not retried.
func (p *Provider) Index(ctx context.Context) (*grid.Index[*geojson.Feature], error) {
	p.once.Do(func() {
		p.index, p.err = LoadIndex(ctx, p.src, p.opts)
		if p.err == nil {
			p.log.Info("poi index ready",
				"features", p.index.Size(),
				"buckets", p.index.BucketCount(),
				"cell_size_m", p.index.CellSize(),
			)
		}
	})
	return p.index, p.err
}

// LoadIndex reads every feature from src into a new grid index.
func LoadIndex(ctx context.Context, src Source, opts Options) (*grid.Index[*geojson.Feature], error) {
	start := time.Now()

	index, err := grid.NewIndex[*geojson.Feature](opts.CellSizeM, opts.Origin)
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	features, err := src.Features(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load features: %w", err)
	}

	rows := make([]grid.Row[*geojson.Feature], 0, len(features))
	for _, f := range features {
		pt, ok := models.FeaturePoint(f)
		if !ok {
			return nil, fmt.Errorf("feature %s has no point geometry", models.FeatureID(f))
		}
		rows = append(rows, grid.Row[*geojson.Feature]{Lat: pt.Lat(), Lon: pt.Lon(), Payload: f})
	}
	if err := index.BulkInsert(rows); err != nil {
		return nil, fmt.Errorf("failed to index features: %w", err)
	}

	logger.OrNop(opts.Logger).Debug("index built",
		"features", index.Size(),
		"buckets", index.BucketCount(),
		"elapsed", time.Since(start),
	)
	return index, nil
}

// Nearby returns the features within distanceM meters of any of the track
// points, each at most once, in the order they were first matched.
func (p *Provider) Nearby(ctx context.Context, points []orb.Point, distanceM float64) (*geojson.FeatureCollection, error) {
	if len(points) == 0 {
		return models.NewCollection(nil), nil
	}
	index, err := p.Index(ctx)
	if err != nil {
		return nil, err
	}
	kept, err := collectNearby(ctx, points, index, distanceM)
	if err != nil {
		return nil, err
	}
	p.log.Debug("nearby features", "track_points", len(points), "distance_m", distanceM, "features", len(kept))
	return models.NewCollection(kept), nil
}

// FromGPX reads the GPX files and returns the features near any of them.
func (p *Provider) FromGPX(ctx context.Context, paths []string, distanceM float64) (*geojson.FeatureCollection, error) {
	points, err := gpx.ReadFiles(ctx, paths)
	if err != nil {
		return nil, err
	}
	return p.Nearby(ctx, points, distanceM)
}

func collectNearby(ctx context.Context, points []orb.Point, index *grid.Index[*geojson.Feature], distanceM float64) ([]*geojson.Feature, error) {
	seen := make(map[string]struct{})
	var kept []*geojson.Feature

	for i, tp := range points {
		if i%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		candidates, err := index.CandidatesNear(tp.Lat(), tp.Lon(), searchRadius(index.Origin(), tp.Lat(), distanceM))
		if err != nil {
			return nil, fmt.Errorf("track point %d: %w", i, err)
		}
		for _, f := range candidates {
			id := models.FeatureID(f)
			if _, ok := seen[id]; ok {
				continue
			}
			fp, _ := models.FeaturePoint(f)
			if geo.HaversineMeters(fp.Lat(), fp.Lon(), tp.Lat(), tp.Lon()) <= distanceM {
				seen[id] = struct{}{}
				kept = append(kept, f)
			}
		}
	}
	return kept, nil
}

// searchSlack absorbs the gap between haversine and the projected plane.
const searchSlack = 1.01

// searchRadius widens distanceM so the projected search square still holds
// every feature within distanceM on the sphere. Poleward of the origin
// latitude the projection stretches east-west distances by
// cos(origin)/cos(lat).
func searchRadius(origin grid.Origin, lat, distanceM float64) float64 {
	reach := math.Abs(lat) + distanceM/geo.EarthRadiusM*180/math.Pi
	if reach >= 90 {
		return math.MaxFloat64
	}
	stretch := math.Cos(origin.Lat*math.Pi/180) / math.Cos(reach*math.Pi/180)
	r := distanceM * math.Max(stretch, 1) * searchSlack
	if math.IsInf(r, 0) {
		return math.MaxFloat64
	}
	return r
}
