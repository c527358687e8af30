package cached

import (
	"bufio"
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/paulmach/orb/geojson"

	"github.com/kass/waykit/pkg/logger"
	"github.com/kass/waykit/pkg/models"
)

//go:embed data/alps-huts.jsonl
var bundled []byte

// errMalformedRow marks rows that are skipped while loading.
var errMalformedRow = errors.New("malformed row")

// Row is one line of the JSONL export.
type Row struct {
	URI  string            `json:"uri"`
	Lat  *float64          `json:"lat"`
	Lon  *float64          `json:"lon"`
	Name *string           `json:"name"`
	Ele  any               `json:"ele"`
	Type string            `json:"type"`
	URL  *string           `json:"url"`
	Tags map[string]string `json:"tags"`
}

// RowToFeature converts a JSONL row into a feature. The uri becomes the
// feature id; "osm:node:123" yields source id "node:123".
func RowToFeature(row Row) (*geojson.Feature, error) {
	if row.URI == "" {
		return nil, fmt.Errorf("%w: missing uri", errMalformedRow)
	}
	if row.Lat == nil || row.Lon == nil {
		return nil, fmt.Errorf("%w %s: missing coordinates", errMalformedRow, row.URI)
	}

	sourceID := strings.TrimPrefix(row.URI, "osm:")
	kind := models.KindOther
	if row.Type == "alpine_hut" {
		kind = models.KindHut
	}
	name := "Hut " + sourceID
	if row.Name != nil && *row.Name != "" {
		name = *row.Name
	}

	meta := map[string]any{}
	if len(row.Tags) > 0 {
		meta["osm_tags"] = models.TagList(row.Tags)
	}
	if row.URL != nil && *row.URL != "" {
		meta["url"] = *row.URL
	}

	return models.NewFeature(row.URI, *row.Lon, *row.Lat, models.Properties{
		Name:     name,
		Kind:     kind,
		EleM:     elevation(row.Ele),
		Source:   "osm",
		SourceID: sourceID,
		Meta:     meta,
	})
}

func elevation(raw any) *float64 {
	switch v := raw.(type) {
	case string:
		return models.ParseElevation(v)
	case float64:
		return &v
	case nil:
		return nil
	default:
		return models.ParseElevation(fmt.Sprint(v))
	}
}

// LoadStats reports what ReadJSONL did with its input.
type LoadStats struct {
	Lines   int
	Loaded  int
	Skipped int
}

// ReadJSONL parses a JSONL export. Blank lines are ignored; lines that are
// not valid JSON or do not make a valid feature are logged and skipped. Only
// read errors are returned.
func ReadJSONL(r io.Reader, log *slog.Logger) ([]*geojson.Feature, LoadStats, error) {
	log = logger.OrNop(log)

	var (
		features []*geojson.Feature
		stats    LoadStats
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		stats.Lines++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		var row Row
		if err := json.Unmarshal(line, &row); err != nil {
			stats.Skipped++
			log.Warn("skipping malformed row", "line", stats.Lines, "error", err)
			continue
		}
		f, err := RowToFeature(row)
		if err != nil {
			stats.Skipped++
			log.Warn("skipping invalid row", "line", stats.Lines, "error", err)
			continue
		}
		features = append(features, f)
		stats.Loaded++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("failed to read jsonl: %w", err)
	}
	return features, stats, nil
}

// JSONLSource reads features from a JSONL file, or from the bundled Alps
// dataset when Path is empty.
type JSONLSource struct {
	Path   string
	Logger *slog.Logger
}

// Features implements Source.
func (s JSONLSource) Features(ctx context.Context) ([]*geojson.Feature, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var r io.Reader = bytes.NewReader(bundled)
	name := "bundled"
	if s.Path != "" {
		f, err := os.Open(s.Path)
		if err != nil {
			return nil, fmt.Errorf("failed to open dataset: %w", err)
		}
		defer f.Close()
		r, name = f, s.Path
	}

	features, stats, err := ReadJSONL(r, s.Logger)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	logger.OrNop(s.Logger).Debug("dataset read",
		"source", name,
		"lines", stats.Lines,
		"loaded", stats.Loaded,
		"skipped", stats.Skipped,
	)
	return features, nil
}

// String names the source in logs.
func (s JSONLSource) String() string {
	if s.Path == "" {
		return "bundled:alps-huts.jsonl"
	}
	return "jsonl:" + strconv.Quote(s.Path)
}
