package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kass/waykit/pkg/cached"
	"github.com/kass/waykit/pkg/config"
	"github.com/kass/waykit/pkg/grid"
	"github.com/kass/waykit/pkg/logger"
)

// app carries the state shared by every subcommand once the root command has
// loaded configuration.
type app struct {
	cfg *config.Config
	log *slog.Logger

	envFiles  []string
	logLevel  string
	logFormat string
	cellSize  float64
	originLat float64
	originLon float64
}

func newRootCmd() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "waykit",
		Short:         "Find huts and peaks along GPX tracks",
		Long:          `waykit resolves alpine huts and peaks near GPX tracks, either from a bundled offline dataset indexed on an equirectangular grid or from live OpenStreetMap data.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringSliceVar(&a.envFiles, "env-file", []string{".env"}, "Optional .env files to read")
	flags.StringVar(&a.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flags.StringVar(&a.logFormat, "log-format", "", "Log format: text or json")
	flags.Float64Var(&a.cellSize, "cell-size", 0, "Grid cell size in meters")
	flags.Float64Var(&a.originLat, "origin-lat", 0, "Grid origin latitude")
	flags.Float64Var(&a.originLon, "origin-lon", 0, "Grid origin longitude")

	rootCmd.AddCommand(
		newCachedCmd(a),
		newOSMCmd(a),
		newCellCmd(a),
		newServeCmd(a),
		newImportCmd(a),
		newBenchCmd(a),
	)
	return rootCmd
}

func (a *app) load(cmd *cobra.Command) error {
	cfg, err := config.Load(a.envFiles...)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Log.Level = a.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = a.logFormat
	}
	if flags.Changed("cell-size") {
		cfg.Grid.CellSizeM = a.cellSize
	}
	if flags.Changed("origin-lat") {
		cfg.Grid.OriginLat = a.originLat
	}
	if flags.Changed("origin-lon") {
		cfg.Grid.OriginLon = a.originLon
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) origin() grid.Origin {
	return grid.Origin{Lat: a.cfg.Grid.OriginLat, Lon: a.cfg.Grid.OriginLon}
}

func (a *app) cachedOptions() cached.Options {
	return cached.Options{
		CellSizeM: a.cfg.Grid.CellSizeM,
		Origin:    a.origin(),
		Logger:    a.log,
	}
}

// output returns the writer for command results: the --out file when set,
// stdout otherwise.
func output(cmd *cobra.Command, path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, f.Close, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
