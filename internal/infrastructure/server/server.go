package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/GriffinCanCode/sessionsync/internal/api/http"
	"github.com/GriffinCanCode/sessionsync/internal/api/middleware"
	"github.com/GriffinCanCode/sessionsync/internal/api/ws"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/logging"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/sessionsync/internal/infrastructure/tracing"
)

// Version is reported by /health
var Version = "0.1.0"

const shutdownTimeout = 10 * time.Second

// Server wraps the HTTP server and dependencies
type Server struct {
	router  *gin.Engine
	engine  *Engine
	hub     *ws.Hub
	tracer  *tracing.Tracer
	logger  *logging.Logger
	config  *config.Config
	metrics *monitoring.Metrics
}

// NewServer creates a new server instance
func NewServer(cfg *config.Config) (*Server, error) {
	logger := logging.NewFromLevel(cfg.Logging.Level, cfg.Logging.Development)

	logger.Info("Initializing sessionsync server",
		zap.String("port", cfg.Server.Port),
		zap.String("remote", cfg.Remote.BaseURL),
	)

	// Metrics first, the engine reports into them
	metrics := monitoring.NewMetrics()
	tracer := tracing.New("sessionsync", logger.Logger)

	engine, err := NewEngine(cfg, logger, metrics, nil)
	if err != nil {
		tracer.Close()
		return nil, err
	}

	hub := ws.NewHub(engine.Index).WithLogger(logger).WithMetrics(metrics)

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Recovery())
	router.Use(tracing.HTTPMiddleware(tracer))
	router.Use(monitoring.Middleware(metrics))
	router.Use(middleware.AccessLog(logger.Named("http")))
	router.Use(middleware.CORS(middleware.DefaultCORSConfig()))
	if cfg.RateLimit.Enabled {
		logger.Info("Rate limiting enabled",
			zap.Int("rps", cfg.RateLimit.RequestsPerSecond),
			zap.Int("burst", cfg.RateLimit.Burst),
		)
		router.Use(middleware.RateLimit(middleware.RateLimitFromConfig(cfg.RateLimit)))
	}

	handlers := apihttp.NewHandlers(apihttp.Deps{
		Session:   engine.Controller,
		Store:     engine.Store,
		Index:     engine.Index,
		Workspace: engine.Workspace,
		Resolver:  engine.Resolver,
		Catalog:   engine.Catalog,
		Metrics:   metrics,
		Logger:    logger,
		Version:   Version,
	})
	handlers.Register(router)
	router.GET("/stream", hub.HandleConnection)

	logger.Info("Server initialized successfully")

	return &Server{
		router:  router,
		engine:  engine,
		hub:     hub,
		tracer:  tracer,
		logger:  logger,
		config:  cfg,
		metrics: metrics,
	}, nil
}

// Handler returns the router
func (s *Server) Handler() http.Handler {
	return s.router
}

// Engine returns the sync engine behind the API
func (s *Server) Engine() *Engine {
	return s.engine
}

// Run serves HTTP until ctx is canceled, then shuts down gracefully
func (s *Server) Run(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Server.Host, s.config.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting HTTP server", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// Hijacked websocket connections are not tracked by Shutdown
	s.hub.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}

// Close releases the engine, closes streams and flushes logs
func (s *Server) Close() error {
	s.logger.Info("Shutting down server...")

	s.hub.Close()
	err := s.engine.Close()
	if err != nil {
		s.logger.Error("Failed to close sync engine", zap.Error(err))
	}
	s.tracer.Close()

	_ = s.logger.Sync()
	return err
}
