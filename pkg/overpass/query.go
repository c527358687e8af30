// Package overpass resolves peaks and alpine huts near GPX tracks from live
// OpenStreetMap data served by an Overpass API endpoint.
package overpass

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// DefaultURL is the public Overpass interpreter endpoint.
const DefaultURL = "https://overpass-api.de/api/interpreter"

var selectors = []string{
	`["natural"="peak"]`,
	`["tourism"="alpine_hut"]`,
}

// BuildQuery returns the Overpass QL query for peaks and alpine huts inside
// b. Ways and relations are returned with their center coordinates.
func BuildQuery(b orb.Bound) string {
	bbox := strings.Join([]string{
		formatCoord(b.Min.Lat()),
		formatCoord(b.Min.Lon()),
		formatCoord(b.Max.Lat()),
		formatCoord(b.Max.Lon()),
	}, ",")

	var sb strings.Builder
	sb.WriteString("[out:json][timeout:25];\n(\n")
	for _, sel := range selectors {
		for _, typ := range []string{"node", "way", "relation"} {
			fmt.Fprintf(&sb, "  %s%s(%s);\n", typ, sel, bbox)
		}
	}
	sb.WriteString(");\nout center;\n")
	return sb.String()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
