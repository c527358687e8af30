package main

import (
	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/cached"
	"github.com/kass/waykit/pkg/grid"
	"github.com/kass/waykit/pkg/overpass"
	"github.com/kass/waykit/pkg/server"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		addr    string
		dataset string
		fromPG  bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the feature providers over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if cmd.Flags().Changed("addr") {
				a.cfg.Server.Addr = addr
			}

			src, closeSrc, err := a.source(ctx, dataset, fromPG)
			if err != nil {
				return err
			}
			defer closeSrc()

			provider := cached.NewProvider(src, a.cachedOptions())
			// fail at startup rather than on the first request
			if _, err := provider.Index(ctx); err != nil {
				return err
			}

			client, closeClient, err := a.overpassClient()
			if err != nil {
				return err
			}
			defer closeClient()

			locator, err := grid.NewIndex[struct{}](a.cfg.Grid.CellSizeM, a.origin())
			if err != nil {
				return err
			}

			srv := server.New(a.cfg, server.Deps{
				Cached:  provider,
				Live:    overpass.NewProvider(client, a.log),
				Locator: locator,
				Logger:  a.log,
			})
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().StringVar(&dataset, "dataset", "", "JSONL dataset (default: bundled Alps huts)")
	cmd.Flags().BoolVar(&fromPG, "postgis", false, "Read the dataset from PostGIS (WAYKIT_PG_DSN)")
	return cmd
}
