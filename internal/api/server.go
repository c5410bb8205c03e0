// Package api exposes the interpretation service over HTTP: the REST
// surface under /api/v1, the Prometheus exposition on /metrics, the
// dependency health probe on /health, and the live disposition stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/AzizElGhezal/NRIS-sub000/internal/domain"
	"github.com/AzizElGhezal/NRIS-sub000/internal/events"
	"github.com/AzizElGhezal/NRIS-sub000/internal/middleware"
	"github.com/AzizElGhezal/NRIS-sub000/internal/service"
)

// HealthCheck probes one dependency for the health endpoint.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Server is the HTTP front end of the interpretation service.
type Server struct {
	logger  *logrus.Logger
	config  domain.ServerConfig
	service *service.InterpretationService
	hub     *StreamHub
	checks  []HealthCheck
	router  *gin.Engine
	server  *http.Server
}

// NewServer creates the HTTP server and wires the disposition stream to
// the event bus.
func NewServer(
	cfg *domain.Config,
	logger *logrus.Logger,
	svc *service.InterpretationService,
	bus events.Bus,
	checks []HealthCheck,
) *Server {
	// Set Gin mode based on environment
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Add middleware
	router.Use(gin.Recovery())
	router.Use(middleware.AuditLogger())
	router.Use(middleware.SecurityHeaders())
	router.Use(middleware.CorrelationID())
	router.Use(corsMiddleware())

	server := &Server{
		logger:  logger,
		config:  cfg.Server,
		service: svc,
		hub:     NewStreamHub(logger),
		checks:  checks,
		router:  router,
	}

	bus.Subscribe(server.hub.HandleEvent)
	server.setupRoutes()

	return server
}

// Router exposes the handler tree for tests.
func (s *Server) Router() http.Handler {
	return s.router
}

// Start runs the HTTP server until the context is cancelled, then shuts
// down gracefully.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
		IdleTimeout:  s.config.IdleTimeout,
	}

	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.listenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	s.hub.CloseAll()
	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes registers the versioned API surface.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := s.router.Group("/api/v1")
	{
		v1.POST("/interpretations", s.handleInterpret)
		v1.POST("/interpretations/lis/:accession", s.handleInterpretFromLIS)

		v1.GET("/records", s.handleListRecords)
		v1.GET("/records/:id", s.handleGetRecord)
		v1.DELETE("/records/:id", s.handleDeleteRecord)
		v1.GET("/records/:id/report", s.handleGetReport)
		v1.GET("/records/:id/reportability", s.handleGetReportability)
		v1.POST("/records/:id/override", s.handleApplyOverride)
		v1.DELETE("/records/:id/override", s.handleRevokeOverride)
		v1.GET("/records/:id/overrides", s.handleOverrideHistory)

		v1.GET("/accessions/:accession/records", s.handleRecordHistory)

		v1.GET("/analytics/dispositions", s.handleDispositionCounts)
		v1.GET("/analytics/volumes", s.handleMonthlyVolumes)
		v1.GET("/analytics/qc-reasons", s.handleQCFailureReasons)

		v1.GET("/thresholds", s.handleThresholds)
		v1.GET("/panels/:name", s.handleGetPanel)

		v1.GET("/stream", s.handleStream)
	}
}

// handleHealth reports the server's own status plus one line per probed
// dependency. Any failing dependency degrades the overall status.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	healthy := true
	dependencies := gin.H{}
	for _, check := range s.checks {
		if err := check.Check(ctx); err != nil {
			dependencies[check.Name] = err.Error()
			healthy = false
		} else {
			dependencies[check.Name] = "healthy"
		}
	}

	status := http.StatusOK
	overall := "healthy"
	if !healthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}

	c.JSON(status, gin.H{
		"status":         overall,
		"timestamp":      time.Now().UTC(),
		"version":        "1.0.0",
		"dependencies":   dependencies,
		"stream_clients": s.hub.ClientCount(),
	})
}

// corsMiddleware sets CORS headers and short-circuits preflight requests.
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization, X-Correlation-ID")
		c.Header("Access-Control-Expose-Headers", "Content-Length, X-Correlation-ID")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

func (s *Server) listenAndServe() error {
	if s.config.TLSEnabled {
		return s.server.ListenAndServeTLS(s.config.CertFile, s.config.KeyFile)
	}
	return s.server.ListenAndServe()
}
