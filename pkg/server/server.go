// Package server exposes the feature providers and the cell codec over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kass/waykit/pkg/config"
	"github.com/kass/waykit/pkg/logger"
)

const shutdownTimeout = 10 * time.Second

// Deps are the services behind the HTTP handlers.
type Deps struct {
	Cached  NearbyFinder
	Live    LiveFinder
	Locator CellLocator
	Logger  *slog.Logger
}

// Server is the HTTP API server.
type Server struct {
	http *http.Server
	log  *slog.Logger
}

// NewEngine builds the gin engine with every route registered.
func NewEngine(cfg *config.Config, deps Deps) *gin.Engine {
	log := logger.OrNop(deps.Logger)
	maxBytes := cfg.Server.MaxUploadMB << 20

	engine := gin.New()
	engine.MaxMultipartMemory = maxBytes
	engine.Use(gin.Recovery(), RequestLogger(log))

	router := NewRouter(
		NewFeatureHandler(deps.Cached, deps.Live, cfg.Query, maxBytes, log),
		NewCellHandler(deps.Locator),
	)
	router.Setup(engine)
	return engine
}

// New returns a server listening on cfg.Server.Addr.
func New(cfg *config.Config, deps Deps) *Server {
	return &Server{
		http: &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      NewEngine(cfg, deps),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
		log: logger.OrNop(deps.Logger),
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("starting server", "addr", s.http.Addr)
		if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return <-errCh
}
