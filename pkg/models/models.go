// Package models defines the GeoJSON feature model returned by every
// provider: a Point feature per hut or peak with a fixed property schema.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// SchemaVersion is written into the properties of every feature.
const SchemaVersion = "1.0"

// Kind classifies a point of interest.
type Kind string

const (
	KindHut   Kind = "hut"
	KindPeak  Kind = "peak"
	KindPOI   Kind = "poi"
	KindOther Kind = "other"
)

// ErrInvalidFeature is returned when a feature fails validation.
var ErrInvalidFeature = errors.New("invalid feature")

// Properties is the property schema of a feature.
type Properties struct {
	Name     string
	Kind     Kind
	EleM     *float64
	Source   string
	SourceID string
	Meta     map[string]any
}

// Map renders the properties the way they appear in GeoJSON.
func (p Properties) Map() geojson.Properties {
	meta := p.Meta
	if meta == nil {
		meta = map[string]any{}
	}
	var ele any
	if p.EleM != nil {
		ele = *p.EleM
	}
	return geojson.Properties{
		"name":           p.Name,
		"kind":           string(p.Kind),
		"ele_m":          ele,
		"source":         p.Source,
		"source_id":      p.SourceID,
		"meta":           meta,
		"schema_version": SchemaVersion,
	}
}

// NewFeature builds a validated Point feature at lon/lat.
func NewFeature(id string, lon, lat float64, p Properties) (*geojson.Feature, error) {
	switch {
	case id == "":
		return nil, fmt.Errorf("%w: empty id", ErrInvalidFeature)
	case p.Name == "":
		return nil, fmt.Errorf("%w %s: empty name", ErrInvalidFeature, id)
	case p.Source == "":
		return nil, fmt.Errorf("%w %s: empty source", ErrInvalidFeature, id)
	case !validKind(p.Kind):
		return nil, fmt.Errorf("%w %s: unknown kind %q", ErrInvalidFeature, id, p.Kind)
	case math.IsNaN(lon) || lon < -180 || lon > 180:
		return nil, fmt.Errorf("%w %s: longitude %v out of range", ErrInvalidFeature, id, lon)
	case math.IsNaN(lat) || lat < -90 || lat > 90:
		return nil, fmt.Errorf("%w %s: latitude %v out of range", ErrInvalidFeature, id, lat)
	}

	f := geojson.NewFeature(orb.Point{lon, lat})
	f.ID = id
	f.Properties = p.Map()
	return f, nil
}

func validKind(k Kind) bool {
	switch k {
	case KindHut, KindPeak, KindPOI, KindOther:
		return true
	}
	return false
}

// NewCollection wraps features in a FeatureCollection. The features array is
// never nil so an empty result encodes as [].
func NewCollection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	fc.Features = append(fc.Features, features...)
	return fc
}

// FeatureID returns the string id of f, or "" when it has none.
func FeatureID(f *geojson.Feature) string {
	switch id := f.ID.(type) {
	case string:
		return id
	case nil:
		return ""
	default:
		return fmt.Sprint(id)
	}
}

// FeaturePoint returns the point geometry of f.
func FeaturePoint(f *geojson.Feature) (orb.Point, bool) {
	p, ok := f.Geometry.(orb.Point)
	return p, ok
}

// ParseElevation reads elevations such as "2500", "2500m" or " 3187 m".
// It returns nil when the value is empty or not a number.
func ParseElevation(raw string) *float64 {
	s := strings.TrimSpace(strings.ReplaceAll(raw, "m", ""))
	if s == "" {
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}

// TagList flattens OSM tags into sorted "k=v" strings.
func TagList(tags map[string]string) []string {
	out := make([]string, 0, len(tags))
	for k, v := range tags {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}
