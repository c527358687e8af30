package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/cached"
	"github.com/kass/waykit/pkg/postgis"
)

func newImportCmd(a *app) *cobra.Command {
	var (
		dsn   string
		reset bool
	)

	cmd := &cobra.Command{
		Use:   "import [jsonl]",
		Short: "Load a JSONL dataset into PostGIS",
		Long:  `Read a JSONL dataset (the bundled one when no file is given) and upsert it into the pois table of a PostGIS database, then build the spatial index.`,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if dsn == "" {
				dsn = a.cfg.Postgres.DSN
			}
			if dsn == "" {
				return fmt.Errorf("no database: pass --dsn or set WAYKIT_PG_DSN")
			}

			src := cached.JSONLSource{Logger: a.log}
			if len(args) == 1 {
				src.Path = args[0]
			}
			features, err := src.Features(ctx)
			if err != nil {
				return err
			}

			store, err := postgis.Open(ctx, dsn, a.log)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.InitSchema(ctx, reset); err != nil {
				return err
			}

			start := time.Now()
			if err := store.ImportFeatures(ctx, features); err != nil {
				return err
			}
			elapsed := time.Since(start)
			if err := store.CreateSpatialIndex(ctx); err != nil {
				return err
			}

			count, err := store.Count(ctx)
			if err != nil {
				return err
			}
			stats, err := store.Stats(ctx)
			if err != nil {
				return err
			}
			a.log.Info("import done",
				"source", src.String(),
				"imported", len(features),
				"rows", count,
				"elapsed", elapsed,
				"table_size", stats["table_size"],
				"index_size", stats["index_size"],
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d features in %v (%d rows total)\n", len(features), elapsed, count)
			return nil
		},
	}

	cmd.Flags().StringVar(&dsn, "dsn", "", "PostgreSQL connection string (default: WAYKIT_PG_DSN)")
	cmd.Flags().BoolVar(&reset, "reset", false, "Drop and recreate the pois table first")
	return cmd
}
