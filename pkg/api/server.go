package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rzzdr/economic-scenario-generator/pkg/metrics"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/backpressure"
	"github.com/rzzdr/economic-scenario-generator/pkg/utils/logger"
)

// Config holds the configuration for the API server
type Config struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Version      string

	// RateLimit is the per-client request rate on the scenario routes;
	// zero disables limiting
	RateLimit float64
	RateBurst int

	CORS CORSConfig
}

// CORSConfig lists what cross-origin callers may do
type CORSConfig struct {
	AllowedOrigins []string
	AllowedMethods []string
	AllowedHeaders []string
}

// Recorder is the part of metrics.Recorder the HTTP layer reports to
type Recorder interface {
	RecordAPIRequest(method, path string, status int, latency time.Duration)
	RecordRateLimited(path string)
}

// HealthCheck reports the state of one dependency on /health
type HealthCheck func() interface{}

// Server represents the API server
type Server struct {
	config     Config
	engine     *gin.Engine
	httpServer *http.Server
	handlers   *Handlers
	recorder   Recorder
	gatherer   prometheus.Gatherer
	feedPath   string
	feed       http.Handler
	checks     map[string]HealthCheck
	log        *logger.Logger
}

// Option configures a Server
type Option func(*Server)

// WithRecorder reports request metrics to r
func WithRecorder(r Recorder) Option {
	return func(s *Server) {
		s.recorder = r
	}
}

// WithMetricsHandler serves the metrics gathered by g on /metrics
func WithMetricsHandler(g prometheus.Gatherer) Option {
	return func(s *Server) {
		s.gatherer = g
	}
}

// WithRunFeed mounts a websocket feed handler at path
func WithRunFeed(path string, h http.Handler) Option {
	return func(s *Server) {
		s.feedPath = path
		s.feed = h
	}
}

// WithHealthCheck adds a named entry to the /health response
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Server) {
		s.checks[name] = check
	}
}

// NewServer creates a new API server
func NewServer(config Config, generator ScenarioGenerator, opts ...Option) *Server {
	if config.ReadTimeout <= 0 {
		config.ReadTimeout = 10 * time.Second
	}
	if config.WriteTimeout <= 0 {
		config.WriteTimeout = 120 * time.Second
	}
	if config.Version == "" {
		config.Version = "1.0.0"
	}

	server := &Server{
		config: config,
		engine: gin.New(),
		checks: make(map[string]HealthCheck),
		log:    logger.GetLogger("api.server"),
	}
	for _, opt := range opts {
		opt(server)
	}
	server.handlers = NewHandlers(generator, config.Version, server.checks)

	server.setupRoutes()

	return server
}

// Handler returns the root HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Start serves until Stop is called
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.engine,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.log.Infof("Starting API server on %s", addr)

	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop stops the API server gracefully
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		s.log.Info("Stopping API server")
		return s.httpServer.Shutdown(ctx)
	}

	return nil
}

func (s *Server) setupRoutes() {
	s.engine.Use(ErrorMiddleware())
	s.engine.Use(LoggingMiddleware())
	if s.recorder != nil {
		s.engine.Use(MetricsMiddleware(s.recorder))
	}
	s.engine.Use(CORSMiddleware(s.config.CORS))

	s.engine.GET("/", s.handlers.RootHandler)
	s.engine.GET("/health", s.handlers.HealthCheckHandler)

	if s.gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(metrics.Handler(s.gatherer)))
	}

	if s.feed != nil {
		s.engine.GET(s.feedPath, gin.WrapH(s.feed))
	}

	// Both routes share one per-client limiter
	chain := []gin.HandlerFunc{s.handlers.GenerateScenariosHandler}
	if s.config.RateLimit > 0 {
		limiter := backpressure.NewKeyedLimiter(s.config.RateLimit, s.config.RateBurst, 10*time.Minute)
		chain = append([]gin.HandlerFunc{RateLimitMiddleware(limiter, s.recorder)}, chain...)
	}
	s.engine.POST("/api/scenarios", chain...)
	s.engine.Group("/api/v1").POST("/scenarios", chain...)

	s.engine.NoRoute(s.handlers.NotFoundHandler)
}
