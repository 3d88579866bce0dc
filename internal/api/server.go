package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platformbuilds/countgate/internal/api/handlers"
	"github.com/platformbuilds/countgate/internal/api/middleware"
	"github.com/platformbuilds/countgate/internal/config"
	"github.com/platformbuilds/countgate/internal/monitoring"
	"github.com/platformbuilds/countgate/internal/services"
	"github.com/platformbuilds/countgate/pkg/logger"
)

// writeMargin is the time left to write an error response once an
// evaluation has hit its deadline.
const writeMargin = 30 * time.Second

type Server struct {
	config      *config.Config
	logger      logger.Logger
	conns       config.ConnectionProvider
	gates       *services.GateService
	evalTimeout time.Duration
	router      *gin.Engine
	httpServer  *http.Server
}

func NewServer(
	cfg *config.Config,
	log logger.Logger,
	conns config.ConnectionProvider,
	gates *services.GateService,
) *Server {
	return newServer(cfg, log, conns, gates, gates.EvaluationBudget())
}

func newServer(
	cfg *config.Config,
	log logger.Logger,
	conns config.ConnectionProvider,
	gates *services.GateService,
	evalTimeout time.Duration,
) *Server {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	server := &Server{
		config:      cfg,
		logger:      log,
		conns:       conns,
		gates:       gates,
		evalTimeout: evalTimeout,
		router:      router,
	}

	server.setupMiddleware()
	server.setupRoutes()

	return server
}

func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.RequestLogger(s.logger))

	if s.config.Monitoring.Enabled {
		s.router.Use(monitoring.HTTPMetricsMiddleware())
		monitoring.SetupPrometheusMetrics(s.router, s.config.Monitoring.MetricsPath)
	}

	s.router.Use(middleware.ErrorHandler(s.logger))
}

func (s *Server) setupRoutes() {
	healthHandler := handlers.NewHealthHandler(s.conns, s.logger)
	s.router.GET("/health", healthHandler.HealthCheck)
	s.router.GET("/ready", healthHandler.ReadinessCheck)

	v1 := s.router.Group("/api/v1")
	v1.GET("/health", healthHandler.HealthCheck)
	v1.GET("/ready", healthHandler.ReadinessCheck)

	checkHandler := handlers.NewCheckHandler()
	v1.GET("/checks/:field", checkHandler.Check)
	v1.GET("/options/:field", checkHandler.Options)

	evaluateHandler := handlers.NewEvaluateHandler(s.gates, s.evalTimeout, s.logger)
	evaluate := []gin.HandlerFunc{evaluateHandler.Evaluate}
	if rl := s.config.Server.RateLimit; rl.Enabled {
		evaluate = append([]gin.HandlerFunc{middleware.RateLimiter(rl.RequestsPerMinute, rl.Burst, s.logger)}, evaluate...)
	}
	v1.POST("/evaluate", evaluate...)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = s.newHTTPServer()

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("countgate API server starting", "port", s.config.Server.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case <-ctx.Done():
		s.logger.Info("Shutting down countgate gracefully")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(config.DefaultShutdownTimeout)*time.Millisecond)
	defer cancel()

	return s.httpServer.Shutdown(shutdownCtx)
}

// newHTTPServer sizes the write deadline from the evaluation budget, which
// covers every retry attempt and backoff wait.
func (s *Server) newHTTPServer() *http.Server {
	return &http.Server{
		Addr:              fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      s.evalTimeout + writeMargin,
	}
}

// Handler returns the underlying Gin engine so tests (or embedders) can mount it.
func (s *Server) Handler() http.Handler {
	return s.router
}
