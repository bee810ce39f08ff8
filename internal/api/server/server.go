package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"blobscribe/internal/api/middleware"
	"blobscribe/internal/app/ledger"
)

// Config represents dashboard server configuration
type Config struct {
	Addr         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
	Development  bool
}

func (c Config) withDefaults() Config {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = 10 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 60 * time.Second
	}
	return c
}

// Server is the read-only dashboard over a pipeline run: live progress,
// failure listing, ledger history, and Prometheus metrics.
type Server struct {
	config     Config
	router     *gin.Engine
	httpServer *http.Server
	tracker    *Tracker
	history    *ledger.Recorder
	logger     *zap.Logger
}

// NewServer wires the dashboard routes. history may be nil when no ledger
// is configured; gatherer may be nil to omit the metrics endpoint.
func NewServer(
	config Config,
	tracker *Tracker,
	history *ledger.Recorder,
	gatherer prometheus.Gatherer,
	logger *zap.Logger,
) *Server {
	config = config.withDefaults()
	if config.Development {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogging(logger))
	router.Use(gin.Recovery())

	s := &Server{
		config:  config,
		router:  router,
		tracker: tracker,
		history: history,
		logger:  logger,
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now().Unix(),
		})
	})

	v1 := router.Group("/api/v1")
	{
		v1.GET("/status", s.handleStatus)
		v1.GET("/failures", s.handleFailures)
		v1.GET("/history", s.handleHistory)
	}

	if gatherer != nil {
		router.GET("/metrics", gin.WrapH(
			promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	}

	s.httpServer = &http.Server{
		Addr:         config.Addr,
		Handler:      router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}
	return s
}

func (s *Server) handleStatus(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.JSON(http.StatusOK, snap)
}

func (s *Server) handleFailures(c *gin.Context) {
	snap := s.tracker.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"run_id":   snap.RunID,
		"count":    len(snap.Failures),
		"failures": snap.Failures,
	})
}

// handleHistory lists outcomes the ledger has recorded across runs,
// newest first, bounded by an optional limit query parameter.
func (s *Server) handleHistory(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusOK, gin.H{"count": 0, "outcomes": []any{}})
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	outcomes, err := s.history.Recent(limit)
	if err != nil {
		s.logger.Error("failed to read ledger", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read history"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"count":    len(outcomes),
		"outcomes": outcomes,
	})
}

// Start begins serving in a background goroutine.
func (s *Server) Start() error {
	s.logger.Info("starting dashboard server", zap.String("addr", s.config.Addr))

	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("dashboard server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down dashboard server")
	return s.httpServer.Shutdown(ctx)
}

// Router returns the Gin router (useful for testing)
func (s *Server) Router() *gin.Engine {
	return s.router
}
