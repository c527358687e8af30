// Package config holds the typed configuration shared by the CLI and the
// HTTP server. Values start from Default, may be overridden by .env files
// and WAYKIT_* environment variables, and finally by command-line flags.
package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the top-level configuration container.
type Config struct {
	Grid     GridConfig
	Query    QueryConfig
	Overpass OverpassConfig
	Server   ServerConfig
	Postgres PostgresConfig
	Log      LogConfig
}

// GridConfig fixes the spatial index resolution and projection origin.
// Changing the origin invalidates every cell id produced before.
type GridConfig struct {
	CellSizeM float64
	OriginLat float64
	OriginLon float64
}

// QueryConfig holds defaults for proximity queries.
type QueryConfig struct {
	DistanceM float64 // keep features within this distance of any track point
	MarginKm  float64 // bbox padding for live queries
}

// OverpassConfig configures the live map-data client.
type OverpassConfig struct {
	URL               string
	UserAgent         string
	Timeout           time.Duration
	MaxRetries        int
	RetryBase         time.Duration
	RequestsPerMinute float64
	CachePath         string // sqlite response cache; empty disables caching
	CacheMaxAge       time.Duration
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	MaxUploadMB  int64
}

// PostgresConfig points at an optional PostGIS database holding POIs.
type PostgresConfig struct {
	DSN string
}

// LogConfig selects the log level and output format ("text" or "json").
type LogConfig struct {
	Level  string
	Format string
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Grid: GridConfig{
			CellSizeM: 200.0,
			OriginLat: 47.0,
			OriginLon: 10.0,
		},
		Query: QueryConfig{
			DistanceM: 500.0,
			MarginKm:  2.0,
		},
		Overpass: OverpassConfig{
			URL:               "https://overpass-api.de/api/interpreter",
			UserAgent:         "waykit/1.0",
			Timeout:           30 * time.Second,
			MaxRetries:        3,
			RetryBase:         time.Second,
			RequestsPerMinute: 10,
			CacheMaxAge:       7 * 24 * time.Hour,
		},
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 90 * time.Second,
			MaxUploadMB:  32,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns Default overridden by the given .env files (missing files are
// skipped) and then by WAYKIT_* environment variables.
func Load(envFiles ...string) (*Config, error) {
	for _, f := range envFiles {
		if _, err := os.Stat(f); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", f, err)
		}
	}

	cfg := Default()
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

type lookupFunc func(string) (string, bool)

func (c *Config) applyEnv(lookup lookupFunc) error {
	e := envReader{lookup: lookup}

	e.float("WAYKIT_CELL_SIZE_M", &c.Grid.CellSizeM)
	e.float("WAYKIT_ORIGIN_LAT", &c.Grid.OriginLat)
	e.float("WAYKIT_ORIGIN_LON", &c.Grid.OriginLon)
	e.float("WAYKIT_DISTANCE_M", &c.Query.DistanceM)
	e.float("WAYKIT_MARGIN_KM", &c.Query.MarginKm)

	e.str("WAYKIT_OVERPASS_URL", &c.Overpass.URL)
	e.str("WAYKIT_USER_AGENT", &c.Overpass.UserAgent)
	e.duration("WAYKIT_OVERPASS_TIMEOUT", &c.Overpass.Timeout)
	e.int("WAYKIT_OVERPASS_RETRIES", &c.Overpass.MaxRetries)
	e.duration("WAYKIT_OVERPASS_RETRY_BASE", &c.Overpass.RetryBase)
	e.float("WAYKIT_OVERPASS_RPM", &c.Overpass.RequestsPerMinute)
	e.str("WAYKIT_OVERPASS_CACHE", &c.Overpass.CachePath)
	e.duration("WAYKIT_OVERPASS_CACHE_MAX_AGE", &c.Overpass.CacheMaxAge)

	e.str("WAYKIT_ADDR", &c.Server.Addr)
	e.duration("WAYKIT_READ_TIMEOUT", &c.Server.ReadTimeout)
	e.duration("WAYKIT_WRITE_TIMEOUT", &c.Server.WriteTimeout)
	e.int64("WAYKIT_MAX_UPLOAD_MB", &c.Server.MaxUploadMB)

	e.str("WAYKIT_PG_DSN", &c.Postgres.DSN)
	e.str("WAYKIT_LOG_LEVEL", &c.Log.Level)
	e.str("WAYKIT_LOG_FORMAT", &c.Log.Format)

	return e.err
}

// Validate checks the invariants the rest of the program relies on.
func (c *Config) Validate() error {
	switch {
	case !(c.Grid.CellSizeM > 0) || math.IsInf(c.Grid.CellSizeM, 0):
		return fmt.Errorf("%w: cell size must be positive, got %v", ErrInvalidConfig, c.Grid.CellSizeM)
	case math.IsNaN(c.Grid.OriginLat) || c.Grid.OriginLat < -90 || c.Grid.OriginLat > 90:
		return fmt.Errorf("%w: origin latitude %v out of range", ErrInvalidConfig, c.Grid.OriginLat)
	case math.IsNaN(c.Grid.OriginLon) || c.Grid.OriginLon < -180 || c.Grid.OriginLon > 180:
		return fmt.Errorf("%w: origin longitude %v out of range", ErrInvalidConfig, c.Grid.OriginLon)
	case !(c.Query.DistanceM > 0):
		return fmt.Errorf("%w: distance must be positive, got %v", ErrInvalidConfig, c.Query.DistanceM)
	case c.Query.MarginKm < 0 || math.IsNaN(c.Query.MarginKm):
		return fmt.Errorf("%w: margin must not be negative, got %v", ErrInvalidConfig, c.Query.MarginKm)
	case c.Overpass.MaxRetries < 1:
		return fmt.Errorf("%w: overpass retries must be at least 1, got %d", ErrInvalidConfig, c.Overpass.MaxRetries)
	case c.Overpass.RequestsPerMinute < 0:
		return fmt.Errorf("%w: overpass rate must not be negative", ErrInvalidConfig)
	case c.Log.Format != "text" && c.Log.Format != "json":
		return fmt.Errorf("%w: log format must be text or json, got %q", ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

// envReader collects the first parse error so applyEnv stays linear.
type envReader struct {
	lookup lookupFunc
	err    error
}

func (e *envReader) value(key string) (string, bool) {
	if e.err != nil {
		return "", false
	}
	v, ok := e.lookup(key)
	return v, ok && v != ""
}

func (e *envReader) fail(key, v string, err error) {
	e.err = fmt.Errorf("%w: %s=%q: %v", ErrInvalidConfig, key, v, err)
}

func (e *envReader) str(key string, dst *string) {
	if v, ok := e.value(key); ok {
		*dst = v
	}
}

func (e *envReader) float(key string, dst *float64) {
	if v, ok := e.value(key); ok {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = f
	}
}

func (e *envReader) int(key string, dst *int) {
	if v, ok := e.value(key); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) int64(key string, dst *int64) {
	if v, ok := e.value(key); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = n
	}
}

func (e *envReader) duration(key string, dst *time.Duration) {
	if v, ok := e.value(key); ok {
		d, err := time.ParseDuration(v)
		if err != nil {
			e.fail(key, v, err)
			return
		}
		*dst = d
	}
}
