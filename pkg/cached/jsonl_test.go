package cached

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kass/waykit/pkg/models"
)

func ptr[T any](v T) *T { return &v }

func TestRowToFeature(t *testing.T) {
	f, err := RowToFeature(Row{
		URI:  "osm:node:12345",
		Lat:  ptr(46.5),
		Lon:  ptr(7.5),
		Name: ptr("Cabane du Test"),
		Ele:  "2500",
		Type: "alpine_hut",
		URL:  ptr("https://example.com/hut"),
		Tags: map[string]string{"tourism": "alpine_hut", "ele": "2500"},
	})
	require.NoError(t, err)

	assert.Equal(t, "osm:node:12345", f.ID)
	pt, ok := models.FeaturePoint(f)
	require.True(t, ok)
	assert.Equal(t, 7.5, pt.Lon())
	assert.Equal(t, 46.5, pt.Lat())

	assert.Equal(t, "Cabane du Test", f.Properties["name"])
	assert.Equal(t, "hut", f.Properties["kind"])
	assert.Equal(t, 2500.0, f.Properties["ele_m"])
	assert.Equal(t, "osm", f.Properties["source"])
	assert.Equal(t, "node:12345", f.Properties["source_id"])

	meta, ok := f.Properties["meta"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "https://example.com/hut", meta["url"])
	assert.Equal(t, []string{"ele=2500", "tourism=alpine_hut"}, meta["osm_tags"])
}

func TestRowToFeatureDefaults(t *testing.T) {
	f, err := RowToFeature(Row{
		URI:  "osm:way:77",
		Lat:  ptr(47.0),
		Lon:  ptr(10.0),
		Type: "wilderness_hut",
		URL:  ptr(""),
	})
	require.NoError(t, err)

	assert.Equal(t, "Hut way:77", f.Properties["name"])
	assert.Equal(t, "other", f.Properties["kind"])
	assert.Nil(t, f.Properties["ele_m"])
	assert.Empty(t, f.Properties["meta"])
}

func TestRowToFeatureRejects(t *testing.T) {
	tests := []struct {
		name string
		row  Row
	}{
		{"missing uri", Row{Lat: ptr(46.0), Lon: ptr(7.0)}},
		{"missing lat", Row{URI: "osm:node:1", Lon: ptr(7.0)}},
		{"missing lon", Row{URI: "osm:node:1", Lat: ptr(46.0)}},
		{"lat out of range", Row{URI: "osm:node:1", Lat: ptr(95.0), Lon: ptr(7.0)}},
		{"lon out of range", Row{URI: "osm:node:1", Lat: ptr(46.0), Lon: ptr(181.0)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RowToFeature(tt.row)
			assert.Error(t, err)
		})
	}
}

func TestElevation(t *testing.T) {
	assert.Nil(t, elevation(nil))
	assert.Nil(t, elevation("unknown"))
	assert.Equal(t, 2510.0, *elevation(2510.0))
	assert.Equal(t, 3187.0, *elevation(" 3187 m"))
}

func TestReadJSONL(t *testing.T) {
	f, err := os.Open(filepath.Join("testdata", "huts.jsonl"))
	require.NoError(t, err)
	defer f.Close()

	features, stats, err := ReadJSONL(f, nil)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Loaded)
	assert.Equal(t, 4, stats.Skipped)
	assert.Equal(t, 8, stats.Lines)
	require.Len(t, features, 3)
	assert.Equal(t, "osm:node:12345", models.FeatureID(features[0]))
	assert.Equal(t, "osm:node:12346", models.FeatureID(features[1]))
	assert.Equal(t, "osm:node:22222", models.FeatureID(features[2]))
}

func TestReadJSONLEmpty(t *testing.T) {
	features, stats, err := ReadJSONL(strings.NewReader("\n\n"), nil)
	require.NoError(t, err)
	assert.Empty(t, features)
	assert.Equal(t, 0, stats.Loaded)
	assert.Equal(t, 0, stats.Skipped)
}

func TestJSONLSource(t *testing.T) {
	ctx := context.Background()

	t.Run("file", func(t *testing.T) {
		src := JSONLSource{Path: filepath.Join("testdata", "huts.jsonl")}
		features, err := src.Features(ctx)
		require.NoError(t, err)
		assert.Len(t, features, 3)
		assert.Contains(t, src.String(), "huts.jsonl")
	})

	t.Run("bundled", func(t *testing.T) {
		src := JSONLSource{}
		features, err := src.Features(ctx)
		require.NoError(t, err)
		assert.Len(t, features, 12)
		assert.Equal(t, "bundled:alps-huts.jsonl", src.String())
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := JSONLSource{Path: filepath.Join("testdata", "nope.jsonl")}.Features(ctx)
		assert.Error(t, err)
	})

	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := JSONLSource{}.Features(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
