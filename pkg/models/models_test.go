package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func hutFeature(t *testing.T) *geojson.Feature {
	t.Helper()
	f, err := NewFeature("osm:node/12345", 10.12345, 46.78901, Properties{
		Name:     "Rifugio Testa",
		Kind:     KindHut,
		EleM:     float(2260),
		Source:   "osm",
		SourceID: "node/12345",
		Meta:     map[string]any{"beds": 32, "services": []string{"meals", "booking"}},
	})
	require.NoError(t, err)
	return f
}

func TestNewFeature(t *testing.T) {
	f := hutFeature(t)
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "osm:node/12345", FeatureID(f))

	p, ok := FeaturePoint(f)
	require.True(t, ok)
	assert.Equal(t, orb.Point{10.12345, 46.78901}, p)

	assert.Equal(t, "Rifugio Testa", f.Properties["name"])
	assert.Equal(t, "hut", f.Properties["kind"])
	assert.Equal(t, 2260.0, f.Properties["ele_m"])
	assert.Equal(t, SchemaVersion, f.Properties["schema_version"])
}

func TestNewFeatureValidation(t *testing.T) {
	valid := Properties{Name: "x", Kind: KindPOI, Source: "custom", SourceID: "x1"}

	testCases := []struct {
		name     string
		id       string
		lon, lat float64
		props    Properties
	}{
		{"empty id", "", 10, 45, valid},
		{"longitude too large", "a", 181, 45, valid},
		{"latitude too small", "a", 10, -95, valid},
		{"nan latitude", "a", 10, math.NaN(), valid},
		{"empty name", "a", 10, 45, Properties{Kind: KindPOI, Source: "custom"}},
		{"empty source", "a", 10, 45, Properties{Name: "x", Kind: KindPOI}},
		{"unknown kind", "a", 10, 45, Properties{Name: "x", Kind: "lake", Source: "custom"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewFeature(tc.id, tc.lon, tc.lat, tc.props)
			assert.ErrorIs(t, err, ErrInvalidFeature)
		})
	}

	t.Run("edges are valid", func(t *testing.T) {
		_, err := NewFeature("a", -180, -90, valid)
		assert.NoError(t, err)
		_, err = NewFeature("b", 180, 90, valid)
		assert.NoError(t, err)
	})
}

func TestMissingElevationEncodesNull(t *testing.T) {
	f, err := NewFeature("custom:no-ele", 12.0, 47.0, Properties{
		Name: "No Elevation", Kind: KindOther, Source: "custom", SourceID: "no-ele",
	})
	require.NoError(t, err)

	data, err := json.Marshal(f)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"ele_m":null`)
	assert.Contains(t, string(data), `"meta":{}`)
}

func TestCollectionJSON(t *testing.T) {
	t.Run("empty collection encodes empty array", func(t *testing.T) {
		data, err := json.Marshal(NewCollection(nil))
		require.NoError(t, err)
		assert.JSONEq(t, `{"type":"FeatureCollection","features":[]}`, string(data))
	})

	t.Run("round trip", func(t *testing.T) {
		data, err := json.Marshal(NewCollection([]*geojson.Feature{hutFeature(t)}))
		require.NoError(t, err)

		fc, err := geojson.UnmarshalFeatureCollection(data)
		require.NoError(t, err)
		require.Len(t, fc.Features, 1)
		assert.Equal(t, "osm:node/12345", FeatureID(fc.Features[0]))
		assert.Equal(t, "Rifugio Testa", fc.Features[0].Properties.MustString("name"))
	})
}

func TestParseElevation(t *testing.T) {
	testCases := []struct {
		raw  string
		want *float64
	}{
		{"2500", float(2500)},
		{"2500m", float(2500)},
		{" 3187 m ", float(3187)},
		{"1640.5", float(1640.5)},
		{"", nil},
		{"unknown", nil},
		{"NaN", nil},
	}

	for _, tc := range testCases {
		t.Run(tc.raw, func(t *testing.T) {
			assert.Equal(t, tc.want, ParseElevation(tc.raw))
		})
	}
}

func TestTagList(t *testing.T) {
	got := TagList(map[string]string{"tourism": "alpine_hut", "name": "Cabane", "ele": "2500"})
	assert.Equal(t, []string{"ele=2500", "name=Cabane", "tourism=alpine_hut"}, got)
	assert.Empty(t, TagList(nil))
}
