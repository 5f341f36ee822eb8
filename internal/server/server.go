package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"transfer-dashboard-backend/internal/live"
	"transfer-dashboard-backend/internal/query"
	"transfer-dashboard-backend/internal/stats"
	"transfer-dashboard-backend/internal/utils"
)

// Config holds HTTP server configuration
type Config struct {
	Addr            string        `yaml:"addr"`
	Mode            string        `yaml:"mode"` // gin mode: debug, release, test
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	Defaults        Defaults      `yaml:"defaults"`
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Addr:            ":8080",
		Mode:            gin.ReleaseMode,
		ReadTimeout:     15 * time.Second,
		WriteTimeout:    60 * time.Second,
		ShutdownTimeout: 10 * time.Second,
		Defaults:        DefaultDefaults(),
	}
}

// QueryEngine evaluates metric sets
type QueryEngine interface {
	Run(ctx context.Context, req query.Request) (*query.Response, error)
	RunMany(ctx context.Context, base query.Request, sets []stats.MetricSet) (map[stats.MetricSet]*query.Response, error)
	ClearCache(ctx context.Context) (int, error)
}

// LiveSource exposes the live collector
type LiveSource interface {
	Snapshot() live.Snapshot
}

// WebSocketHub accepts websocket clients
type WebSocketHub interface {
	UpgradeConnection(w http.ResponseWriter, r *http.Request)
	GetClientCount() int
}

// HealthCheck reports whether a dependency is reachable
type HealthCheck func(ctx context.Context) error

// Option customizes a Server
type Option func(*Server)

// WithLive enables the live endpoints
func WithLive(l LiveSource, hub WebSocketHub) Option {
	return func(s *Server) {
		s.live = l
		s.ws = hub
	}
}

// WithHealthCheck registers a named dependency check for /health
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// Server represents the HTTP server
type Server struct {
	config   Config
	defaults Defaults
	engine   QueryEngine
	live     LiveSource
	ws       WebSocketHub
	checks   map[string]HealthCheck
	log      *zap.Logger
}

// NewServer creates a new server over engine
func NewServer(config Config, engine QueryEngine, opts ...Option) *Server {
	s := &Server{
		config:   config,
		defaults: config.Defaults,
		engine:   engine,
		checks:   make(map[string]HealthCheck),
		log:      utils.Component(utils.ComponentServer),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router builds the gin engine with every route
func (s *Server) Router() *gin.Engine {
	if s.config.Mode != "" {
		gin.SetMode(s.config.Mode)
	}
	r := gin.New()
	r.Use(RequestID(), Recovery(s.log), Logger(s.log), Metrics(), CORS())

	r.GET("/health", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/ws", s.handleWebSocket)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/sets", s.handleSets)
		v1.GET("/sets/:set", s.handleNamedSet)
		v1.GET("/overview", s.handleOverview)

		v1.GET("/kpis", s.handleSet(stats.SetKPI))
		v1.GET("/timeseries", s.handleSet(stats.SetOverTime))
		v1.GET("/services", s.handleSet(stats.SetByService))
		v1.GET("/directions", s.handleSet(stats.SetByDirection))
		v1.GET("/sources", s.handleSet(stats.SetBySourceChain))

		v1.GET("/paths", s.handleSet(stats.SetByPath))
		v1.GET("/paths/top", s.handleRanked(stats.SetTopPathsByCount, stats.SetTopPathsByVolume))
		v1.GET("/users", s.handleSet(stats.SetByUser))
		v1.GET("/users/top", s.handleRanked(stats.SetTopUsersByCount, stats.SetTopUsersByVolume))

		v1.GET("/transfers/recent", s.handleSet(stats.SetRecent))
		v1.GET("/transfers/whales", s.handleSet(stats.SetWhales))

		v1.GET("/live", s.handleLive)
		v1.DELETE("/cache", s.handleClearCache)
	}
	return r
}

// Start serves HTTP until ctx is cancelled, then shuts down gracefully
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.config.Addr,
		Handler:      s.Router(),
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("HTTP server listening", zap.String("addr", s.config.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
