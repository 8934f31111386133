// Package httpapi exposes the administrative HTTP API used by cron jobs and
// dashboards: crawl triggers, health, re-processing, embedding backfill and search.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/custodia-labs/lexindex/internal/core/ports/driving"
	"github.com/custodia-labs/lexindex/internal/logger"
)

// CronSecretHeader carries the shared secret of scheduled callers.
const CronSecretHeader = "X-Cron-Secret"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("httpapi: search service is required")

// Ports aggregates the driving ports served over HTTP.
// Only Search is required; routes whose port is nil answer 503.
type Ports struct {
	Search     driving.SearchService
	Monitor    driving.HealthMonitor
	Crawler    driving.Crawler
	Sources    driving.SourceService
	Documents  driving.IngestionService
	Embeddings driving.EmbeddingGenerator
	Reprocess  driving.ReprocessService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Search == nil {
		return ErrMissingSearchService
	}
	return nil
}

// Config configures the HTTP server.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string

	// CronSecret protects admin routes. Empty disables the check.
	CronSecret string
}

// Server is the HTTP admin API.
type Server struct {
	ports *Ports
	cfg   Config
	echo  *echo.Echo
}

// NewServer creates the server and registers its routes.
func NewServer(ports *Ports, cfg Config) (*Server, error) {
	if err := ports.Validate(); err != nil {
		return nil, err
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			logger.Debug("%s %s -> %d (%s)", v.Method, v.URI, v.Status, v.Latency)
			return nil
		},
	}))

	s := &Server{ports: ports, cfg: cfg, echo: e}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	h := &handlers{ports: s.ports}
	secret := RequireCronSecret(s.cfg.CronSecret)

	s.echo.GET("/healthz", h.Healthz)
	s.echo.GET("/api/search", h.Search)
	s.echo.GET("/api/health", h.AllHealth)
	s.echo.GET("/api/documents/:id/chunks/stats", h.ChunkStats)

	src := s.echo.Group("/api/sources/:id")
	src.GET("/health", h.SourceHealth)
	src.GET("/can-crawl", h.CanCrawl)
	src.POST("/crawl", h.Crawl, secret)

	admin := s.echo.Group("/api/admin", secret)
	admin.POST("/reprocess", h.Reprocess)
	admin.GET("/reprocess", h.EligibleCounts)
	admin.POST("/embeddings/backfill", h.Backfill)
	admin.POST("/documents/index-pending", h.IndexPending)
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.cfg.Addr
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	s.echo.Server.ReadHeaderTimeout = 10 * time.Second

	// Graceful shutdown when context is cancelled
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.echo.Shutdown(shutdownCtx) //nolint:errcheck
	}()

	err := s.echo.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}
