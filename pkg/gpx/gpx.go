// Package gpx extracts route and track coordinates from GPX files.
package gpx

import (
	"context"
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"github.com/tkrajina/gpxgo/gpx"
	"golang.org/x/sync/errgroup"
)

// maxParallelReads bounds how many files ReadFiles parses at once.
const maxParallelReads = 8

// Parse returns every route point followed by every track point of a GPX
// document, as orb.Point{lon, lat}. Waypoints are not part of a track and
// are ignored.
func Parse(data []byte) ([]orb.Point, error) {
	doc, err := gpx.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse gpx: %w", err)
	}

	var points []orb.Point
	for _, route := range doc.Routes {
		for _, p := range route.Points {
			points = append(points, orb.Point{p.Longitude, p.Latitude})
		}
	}
	for _, track := range doc.Tracks {
		for _, segment := range track.Segments {
			for _, p := range segment.Points {
				points = append(points, orb.Point{p.Longitude, p.Latitude})
			}
		}
	}
	return points, nil
}

// ReadFile parses the GPX file at path.
func ReadFile(path string) ([]orb.Point, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gpx file: %w", err)
	}
	points, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return points, nil
}

// ReadFiles parses several GPX files concurrently and concatenates their
// points in argument order.
func ReadFiles(ctx context.Context, paths []string) ([]orb.Point, error) {
	results := make([][]orb.Point, len(paths))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelReads)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			points, err := ReadFile(path)
			if err != nil {
				return err
			}
			results[i] = points
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []orb.Point
	for _, points := range results {
		all = append(all, points...)
	}
	return all, nil
}
