package postgis

import (
	"context"
	"os"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/waykit/pkg/models"
)

func testFeature(t *testing.T, id string, lon, lat float64, ele *float64) *geojson.Feature {
	t.Helper()
	f, err := models.NewFeature(id, lon, lat, models.Properties{
		Name:     "Hut " + id,
		Kind:     models.KindHut,
		EleM:     ele,
		Source:   "osm",
		SourceID: id,
		Meta:     map[string]any{"osm_tags": []string{"tourism=alpine_hut"}},
	})
	require.NoError(t, err)
	return f
}

func TestFeatureRowRoundTrip(t *testing.T) {
	ele := 2500.0
	f := testFeature(t, "osm:node:1", 7.5, 46.5, &ele)

	r, err := featureToRow(f)
	require.NoError(t, err)
	assert.Equal(t, "osm:node:1", r.ID)
	assert.Equal(t, "hut", r.Kind)
	assert.True(t, r.EleM.Valid)
	assert.Equal(t, 7.5, r.Lon)
	assert.Equal(t, 46.5, r.Lat)
	assert.JSONEq(t, `{"osm_tags":["tourism=alpine_hut"]}`, string(r.Meta))

	back, err := r.feature()
	require.NoError(t, err)
	assert.Equal(t, f.ID, back.ID)
	assert.Equal(t, f.Geometry, back.Geometry)
	assert.Equal(t, 2500.0, back.Properties["ele_m"])
	assert.Equal(t, []any{"tourism=alpine_hut"}, back.Properties["meta"].(map[string]any)["osm_tags"])
}

func TestFeatureRowNoElevation(t *testing.T) {
	r, err := featureToRow(testFeature(t, "osm:node:2", 7.5, 46.5, nil))
	require.NoError(t, err)
	assert.False(t, r.EleM.Valid)

	back, err := r.feature()
	require.NoError(t, err)
	assert.Nil(t, back.Properties["ele_m"])
}

func TestFeatureToRowRejectsNonPoint(t *testing.T) {
	f := geojson.NewFeature(orb.LineString{{7, 46}, {8, 47}})
	f.ID = "line"
	_, err := featureToRow(f)
	assert.ErrorIs(t, err, models.ErrInvalidFeature)
}

func TestRowFeatureRejectsBadMeta(t *testing.T) {
	_, err := row{ID: "x", Name: "x", Kind: "hut", Source: "osm", Meta: []byte("{")}.feature()
	assert.Error(t, err)
}

// openTestStore connects to the database named by WAYKIT_TEST_PG_DSN, e.g.
// a local postgis/postgis container.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("WAYKIT_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("WAYKIT_TEST_PG_DSN not set")
	}
	s, err := Open(context.Background(), dsn, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.InitSchema(context.Background(), true))
	return s
}

func TestStore(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ele := 2100.0
	features := []*geojson.Feature{
		testFeature(t, "osm:node:1", 7.50, 46.50, &ele),
		testFeature(t, "osm:node:2", 7.51, 46.51, nil),
		testFeature(t, "osm:node:3", 9.00, 47.00, nil),
	}
	require.NoError(t, s.ImportFeatures(ctx, features))
	require.NoError(t, s.CreateSpatialIndex(ctx))

	// re-importing upserts
	require.NoError(t, s.ImportFeatures(ctx, features[:1]))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)

	inBox, err := s.QueryBox(ctx, orb.Bound{Min: orb.Point{7.4, 46.4}, Max: orb.Point{7.6, 46.6}})
	require.NoError(t, err)
	require.Len(t, inBox, 2)
	assert.Equal(t, "osm:node:1", inBox[0].ID)
	assert.Equal(t, 2100.0, inBox[0].Properties["ele_m"])

	all, err := s.Features(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats["row_count"])
}
