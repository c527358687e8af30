package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/kass/waykit/pkg/config"
	"github.com/kass/waykit/pkg/gpx"
)

// NearbyFinder resolves features from the offline dataset.
type NearbyFinder interface {
	Nearby(ctx context.Context, points []orb.Point, distanceM float64) (*geojson.FeatureCollection, error)
}

// LiveFinder resolves features from live map data.
type LiveFinder interface {
	FromPoints(ctx context.Context, points []orb.Point, marginKm, distanceM float64) (*geojson.FeatureCollection, error)
}

type FeatureHandler struct {
	cached   NearbyFinder
	live     LiveFinder
	defaults config.QueryConfig
	maxBytes int64
	log      *slog.Logger
}

func NewFeatureHandler(cached NearbyFinder, live LiveFinder, defaults config.QueryConfig, maxBytes int64, log *slog.Logger) *FeatureHandler {
	return &FeatureHandler{
		cached:   cached,
		live:     live,
		defaults: defaults,
		maxBytes: maxBytes,
		log:      log,
	}
}

// Cached handles POST /v1/features/cached
func (h *FeatureHandler) Cached(c *gin.Context) {
	points, ok := h.readTracks(c)
	if !ok {
		return
	}
	distance, ok := formFloat(c, "distance_m", h.defaults.DistanceM)
	if !ok {
		return
	}

	fc, err := h.cached.Nearby(c.Request.Context(), points, distance)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fc)
}

// Live handles POST /v1/features/osm
func (h *FeatureHandler) Live(c *gin.Context) {
	points, ok := h.readTracks(c)
	if !ok {
		return
	}
	distance, ok := formFloat(c, "distance_m", h.defaults.DistanceM)
	if !ok {
		return
	}
	margin, ok := formFloat(c, "margin_km", h.defaults.MarginKm)
	if !ok {
		return
	}

	fc, err := h.live.FromPoints(c.Request.Context(), points, margin, distance)
	if err != nil {
		_ = c.Error(err)
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, fc)
}

// readTracks parses every uploaded "gpx" file into one list of points. It
// writes the error response itself and reports whether to continue.
func (h *FeatureHandler) readTracks(c *gin.Context) ([]orb.Point, bool) {
	if h.maxBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxBytes)
	}
	form, err := c.MultipartForm()
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": fmt.Sprintf("upload exceeds %d bytes", h.maxBytes)})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "expected a multipart form with gpx files"})
		return nil, false
	}

	files := form.File["gpx"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no gpx files uploaded"})
		return nil, false
	}

	var points []orb.Point
	for _, fh := range files {
		pts, err := parseUpload(fh)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("%s: %v", fh.Filename, err)})
			return nil, false
		}
		points = append(points, pts...)
	}
	h.log.Debug("tracks uploaded", "files", len(files), "points", len(points))
	return points, true
}

func parseUpload(fh *multipart.FileHeader) ([]orb.Point, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	return gpx.Parse(data)
}

func formFloat(c *gin.Context, key string, def float64) (float64, bool) {
	raw := c.PostForm(key)
	if raw == "" {
		return def, true
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		c.JSON(http.StatusBadRequest, gin.H{"error": key + " must be a non-negative number"})
		return 0, false
	}
	return v, true
}
