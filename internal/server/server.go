package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/feral-file/ff-grid-indexer/internal/logger"
	"github.com/feral-file/ff-grid-indexer/internal/scanner"
)

// StatusProvider reports the outcome of the latest scan pass
type StatusProvider interface {
	Status() scanner.Status
}

// Config holds the server configuration
type Config struct {
	Debug bool
	Host  string
	Port  int
}

// Server exposes health, scan status and Prometheus metrics over HTTP
type Server struct {
	config     Config
	status     StatusProvider
	router     *gin.Engine
	httpServer *http.Server
}

// New creates a new metrics server; it does not listen until Start
func New(cfg Config, status StatusProvider) *Server {
	s := &Server{
		config: cfg,
		status: status,
	}
	s.router = s.setupRouter()
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Router returns the gin router
func (s *Server) Router() *gin.Engine {
	return s.router
}

func (s *Server) setupRouter() *gin.Engine {
	if s.config.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(recovery())
	router.Use(requestLogger())

	router.GET("/healthz", s.healthz)
	router.GET("/status", s.scanStatus)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

func (s *Server) healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) scanStatus(c *gin.Context) {
	c.JSON(http.StatusOK, s.status.Status())
}

// Start serves until Shutdown is called. Shutdown before Start makes Start return at once.
func (s *Server) Start() error {
	logger.Info("Starting metrics server", zap.String("address", s.httpServer.Addr))

	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	logger.Info("Shutting down metrics server")

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
