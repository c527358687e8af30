package overpass

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/kass/waykit/pkg/models"
)

// Element is one entry of the "elements" array of an Overpass response.
type Element struct {
	Type   string            `json:"type"`
	ID     int64             `json:"id"`
	Lat    *float64          `json:"lat,omitempty"`
	Lon    *float64          `json:"lon,omitempty"`
	Center *Center           `json:"center,omitempty"`
	Tags   map[string]string `json:"tags,omitempty"`
}

// Center is the centroid Overpass adds to ways and relations for "out center".
type Center struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

type response struct {
	Elements []Element `json:"elements"`
}

// Position returns the element's coordinates: lat/lon for nodes, the center
// for ways and relations.
func (e Element) Position() (lat, lon float64, ok bool) {
	switch e.Type {
	case "node":
		if e.Lat == nil || e.Lon == nil {
			return 0, 0, false
		}
		return *e.Lat, *e.Lon, true
	case "way", "relation":
		if e.Center == nil {
			return 0, 0, false
		}
		return e.Center.Lat, e.Center.Lon, true
	}
	return 0, 0, false
}

// Kind classifies the element. A peak that is also tagged as a hut counts as
// a peak.
func (e Element) Kind() (models.Kind, bool) {
	switch {
	case e.Tags["natural"] == "peak":
		return models.KindPeak, true
	case e.Tags["tourism"] == "alpine_hut":
		return models.KindHut, true
	}
	return "", false
}

// ElementToFeature maps a peak or hut element to a feature. ok is false for
// other elements and for elements without coordinates.
func ElementToFeature(e Element) (*geojson.Feature, bool) {
	lat, lon, ok := e.Position()
	if !ok {
		return nil, false
	}
	kind, ok := e.Kind()
	if !ok {
		return nil, false
	}

	name := e.Tags["name"]
	if name == "" {
		name = e.Tags["ref"]
	}
	if name == "" {
		name = capitalize(string(kind)) + " " + strconv.FormatInt(e.ID, 10)
	}

	var ele *float64
	if raw, ok := e.Tags["ele"]; ok {
		ele = models.ParseElevation(raw)
	}

	sourceID := e.Type + "/" + strconv.FormatInt(e.ID, 10)
	f, err := models.NewFeature("osm:"+sourceID, lon, lat, models.Properties{
		Name:     name,
		Kind:     kind,
		EleM:     ele,
		Source:   "osm",
		SourceID: sourceID,
		Meta:     map[string]any{"osm_tags": models.TagList(e.Tags)},
	})
	if err != nil {
		return nil, false
	}
	return f, true
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
