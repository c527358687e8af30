package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/cached"
	"github.com/kass/waykit/pkg/overpass"
	"github.com/kass/waykit/pkg/postgis"
)

func newCachedCmd(a *app) *cobra.Command {
	var (
		distance float64
		dataset  string
		fromPG   bool
		out      string
	)

	cmd := &cobra.Command{
		Use:   "cached <gpx>...",
		Short: "Find features near tracks in the offline dataset",
		Long:  `Load the offline dataset (bundled, a JSONL file, or PostGIS) into the grid index and print a GeoJSON FeatureCollection of every feature within --distance meters of any track point.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("distance") {
				distance = a.cfg.Query.DistanceM
			}

			src, closeSrc, err := a.source(ctx, dataset, fromPG)
			if err != nil {
				return err
			}
			defer closeSrc()

			fc, err := cached.NewProvider(src, a.cachedOptions()).FromGPX(ctx, args, distance)
			if err != nil {
				return err
			}
			a.log.Info("features found", "count", len(fc.Features), "tracks", len(args))
			return writeCollection(cmd, out, fc)
		},
	}

	cmd.Flags().Float64VarP(&distance, "distance", "d", 500, "Maximum distance to the track in meters")
	cmd.Flags().StringVar(&dataset, "dataset", "", "JSONL dataset (default: bundled Alps huts)")
	cmd.Flags().BoolVar(&fromPG, "postgis", false, "Read the dataset from PostGIS (WAYKIT_PG_DSN)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write GeoJSON to this file instead of stdout")
	return cmd
}

func newOSMCmd(a *app) *cobra.Command {
	var (
		distance float64
		margin   float64
		cache    string
		out      string
	)

	cmd := &cobra.Command{
		Use:   "osm <gpx>...",
		Short: "Find peaks and huts near tracks in live OpenStreetMap data",
		Long:  `Query the Overpass API once for the combined bounding box of all tracks, grown by --margin kilometers, and print the peaks and huts within --distance meters of any track point.`,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if !cmd.Flags().Changed("distance") {
				distance = a.cfg.Query.DistanceM
			}
			if !cmd.Flags().Changed("margin") {
				margin = a.cfg.Query.MarginKm
			}
			if cmd.Flags().Changed("cache") {
				a.cfg.Overpass.CachePath = cache
			}

			client, closeClient, err := a.overpassClient()
			if err != nil {
				return err
			}
			defer closeClient()

			fc, err := overpass.NewProvider(client, a.log).FromGPX(ctx, args, margin, distance)
			if err != nil {
				return err
			}
			a.log.Info("features found", "count", len(fc.Features), "tracks", len(args))
			return writeCollection(cmd, out, fc)
		},
	}

	cmd.Flags().Float64VarP(&distance, "distance", "d", 500, "Maximum distance to the track in meters")
	cmd.Flags().Float64VarP(&margin, "margin", "m", 2, "Bounding box margin in kilometers")
	cmd.Flags().StringVar(&cache, "cache", "", "SQLite file caching Overpass responses")
	cmd.Flags().StringVarP(&out, "out", "o", "", "Write GeoJSON to this file instead of stdout")
	return cmd
}

// source picks the dataset for the offline provider.
func (a *app) source(ctx context.Context, dataset string, fromPG bool) (cached.Source, func(), error) {
	if !fromPG {
		return cached.JSONLSource{Path: dataset, Logger: a.log}, func() {}, nil
	}
	if a.cfg.Postgres.DSN == "" {
		return nil, nil, fmt.Errorf("--postgis needs WAYKIT_PG_DSN")
	}
	store, err := postgis.Open(ctx, a.cfg.Postgres.DSN, a.log)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// overpassClient builds the live client, with a response cache when one is
// configured.
func (a *app) overpassClient() (*overpass.Client, func(), error) {
	oc := a.cfg.Overpass
	opts := overpass.Options{
		URL:               oc.URL,
		UserAgent:         oc.UserAgent,
		Timeout:           oc.Timeout,
		MaxRetries:        oc.MaxRetries,
		RetryBase:         oc.RetryBase,
		RequestsPerMinute: oc.RequestsPerMinute,
		Logger:            a.log,
	}
	closeFn := func() {}
	if oc.CachePath != "" {
		cache, err := overpass.OpenCache(oc.CachePath, oc.CacheMaxAge)
		if err != nil {
			return nil, nil, err
		}
		opts.Cache = cache
		closeFn = func() { _ = cache.Close() }
	}
	return overpass.NewClient(opts), closeFn, nil
}

func writeCollection(cmd *cobra.Command, path string, fc *geojson.FeatureCollection) error {
	w, closeOut, err := output(cmd, path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(fc); err != nil {
		_ = closeOut()
		return fmt.Errorf("failed to write geojson: %w", err)
	}
	return closeOut()
}
