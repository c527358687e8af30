package cached

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/waykit/pkg/grid"
	"github.com/kass/waykit/pkg/models"
)

type countingSource struct {
	features []*geojson.Feature
	err      error
	calls    atomic.Int32
}

func (s *countingSource) Features(context.Context) ([]*geojson.Feature, error) {
	s.calls.Add(1)
	return s.features, s.err
}

func testProvider(t *testing.T) *Provider {
	t.Helper()
	return NewProvider(JSONLSource{Path: filepath.Join("testdata", "huts.jsonl")}, DefaultOptions())
}

func collectionIDs(fc *geojson.FeatureCollection) []string {
	ids := make([]string, 0, len(fc.Features))
	for _, f := range fc.Features {
		ids = append(ids, models.FeatureID(f))
	}
	return ids
}

func TestLoadIndex(t *testing.T) {
	index, err := LoadIndex(context.Background(), JSONLSource{Path: filepath.Join("testdata", "huts.jsonl")}, DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 3, index.Size())
	// the twin huts share a cell
	assert.Equal(t, 2, index.BucketCount())
}

func TestLoadIndexErrors(t *testing.T) {
	ctx := context.Background()

	_, err := LoadIndex(ctx, &countingSource{err: errors.New("boom")}, DefaultOptions())
	assert.ErrorContains(t, err, "boom")

	opts := DefaultOptions()
	opts.CellSizeM = 0
	_, err = LoadIndex(ctx, &countingSource{}, opts)
	assert.ErrorIs(t, err, grid.ErrInvalidArgument)

	noGeom := geojson.NewFeature(orb.LineString{{7, 46}, {7.1, 46.1}})
	noGeom.ID = "line"
	_, err = LoadIndex(ctx, &countingSource{features: []*geojson.Feature{noGeom}}, DefaultOptions())
	assert.ErrorContains(t, err, "line")
}

func TestProviderNearby(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	track := []orb.Point{{7.5, 46.5}, {7.501, 46.501}, {7.502, 46.502}}
	fc, err := p.Nearby(ctx, track, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"osm:node:12345", "osm:node:12346"}, collectionIDs(fc))

	far := []orb.Point{{8.0, 46.6}}
	fc, err = p.Nearby(ctx, far, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"osm:node:22222"}, collectionIDs(fc))

	// 0.01 degrees of latitude is about 1.1 km
	fc, err = p.Nearby(ctx, []orb.Point{{7.5, 46.51}}, 500)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
	assert.NotNil(t, fc.Features)
}

func TestProviderNearbyDeduplicates(t *testing.T) {
	p := testProvider(t)

	track := []orb.Point{{7.5, 46.5}, {7.5, 46.5}, {7.5001, 46.5001}, {7.5, 46.5}}
	fc, err := p.Nearby(context.Background(), track, 100)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2)
}

func TestProviderNearbyEmptyTrack(t *testing.T) {
	src := &countingSource{}
	p := NewProvider(src, DefaultOptions())

	fc, err := p.Nearby(context.Background(), nil, 500)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
	assert.Equal(t, int32(0), src.calls.Load(), "empty tracks must not load the dataset")
}

func TestProviderNearbyBadDistance(t *testing.T) {
	p := testProvider(t)
	_, err := p.Nearby(context.Background(), []orb.Point{{7.5, 46.5}}, -1)
	assert.ErrorIs(t, err, grid.ErrInvalidArgument)
}

func TestProviderNearbyHugeDistance(t *testing.T) {
	fc, err := testProvider(t).Nearby(context.Background(), []orb.Point{{7.5, 46.5}}, 1e300)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 3)
}

func TestProviderNearbyFarNorthOfOrigin(t *testing.T) {
	// ~380 m east of the track point, but three cells away in the plane
	// projected around 47°N.
	f, err := models.NewFeature("osm:node:70", 10.01, 70.0, models.Properties{
		Name: "Polar", Kind: models.KindHut, Source: "osm", SourceID: "node:70",
	})
	require.NoError(t, err)
	p := NewProvider(&countingSource{features: []*geojson.Feature{f}}, DefaultOptions())

	fc, err := p.Nearby(context.Background(), []orb.Point{{10.0, 70.0}}, 400)
	require.NoError(t, err)
	assert.Equal(t, []string{"osm:node:70"}, collectionIDs(fc))

	fc, err = p.Nearby(context.Background(), []orb.Point{{10.0, 70.0}}, 350)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)
}

func TestSearchRadius(t *testing.T) {
	alps := grid.Origin{Lat: 47, Lon: 10}
	assert.InDelta(t, 505.0, searchRadius(alps, 46.5, 500), 1e-9)
	assert.Greater(t, searchRadius(alps, 70, 400), 800.0)
	assert.Greater(t, searchRadius(alps, -70, 400), 800.0)
	assert.Equal(t, math.MaxFloat64, searchRadius(alps, 89.999, 500))
}

func TestProviderLoadsOnce(t *testing.T) {
	f, err := models.NewFeature("osm:node:1", 7.5, 46.5, models.Properties{
		Name: "Solo", Kind: models.KindHut, Source: "osm", SourceID: "node:1",
	})
	require.NoError(t, err)
	src := &countingSource{features: []*geojson.Feature{f}}
	p := NewProvider(src, DefaultOptions())

	for i := 0; i < 3; i++ {
		fc, err := p.Nearby(context.Background(), []orb.Point{{7.5, 46.5}}, 10)
		require.NoError(t, err)
		assert.Len(t, fc.Features, 1)
	}
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestProviderFromGPX(t *testing.T) {
	ctx := context.Background()
	p := testProvider(t)

	fc, err := p.FromGPX(ctx, []string{filepath.Join("testdata", "track.gpx")}, 500)
	require.NoError(t, err)
	assert.Equal(t, []string{"osm:node:12345", "osm:node:12346"}, collectionIDs(fc))

	fc, err = p.FromGPX(ctx, []string{
		filepath.Join("testdata", "track.gpx"),
		filepath.Join("testdata", "far.gpx"),
	}, 500)
	require.NoError(t, err)
	assert.Len(t, fc.Features, 2, "far.gpx is nowhere near the dataset")

	fc, err = p.FromGPX(ctx, []string{filepath.Join("testdata", "empty.gpx")}, 500)
	require.NoError(t, err)
	assert.Empty(t, fc.Features)

	_, err = p.FromGPX(ctx, []string{filepath.Join("testdata", "missing.gpx")}, 500)
	assert.Error(t, err)
}

func TestBundledDataset(t *testing.T) {
	p := NewProvider(JSONLSource{}, DefaultOptions())

	// a walk past Lindauer Hütte in the Rätikon
	track := []orb.Point{{9.8300, 47.0550}, {9.8340, 47.0570}, {9.8400, 47.0600}}
	fc, err := p.Nearby(context.Background(), track, 300)
	require.NoError(t, err)
	require.Len(t, fc.Features, 1)
	assert.Equal(t, "Lindauer Hütte", fc.Features[0].Properties["name"])
}
