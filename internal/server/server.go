// Package server exposes the daemon's operational HTTP surface: health,
// Prometheus metrics, and a small authenticated API for settlement
// inspection and manual intervention.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/rendoarsandi/content-boost-sub002/internal/config"
	"github.com/rendoarsandi/content-boost-sub002/internal/constants"
	"github.com/rendoarsandi/content-boost-sub002/internal/metrics"
	"github.com/rendoarsandi/content-boost-sub002/internal/repository"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/ingest"
	"github.com/rendoarsandi/content-boost-sub002/internal/service/payout"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// Server: the ops HTTP server.
type Server struct {
	engine      *gin.Engine
	cfg         config.ServerConfig
	logger      *slog.Logger
	repo        *repository.Repository
	coordinator *payout.Coordinator
	registrar   *ingest.Registrar
	metrics     *metrics.Metrics
	location    *time.Location
	version     string
	startedAt   time.Time
}

// New wires the server and its routes.
func New(
	cfg config.ServerConfig,
	repo *repository.Repository,
	coordinator *payout.Coordinator,
	registrar *ingest.Registrar,
	m *metrics.Metrics,
	location *time.Location,
	version string,
	logger *slog.Logger,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	if len(cfg.CORSOrigins) > 0 {
		engine.Use(cors.New(cors.Config{
			AllowOrigins:  cfg.CORSOrigins,
			AllowMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:  []string{"Origin", "Content-Type", "Authorization", "X-API-Key"},
			ExposeHeaders: []string{"Content-Length"},
			MaxAge:        12 * time.Hour,
		}))
	}

	s := &Server{
		engine:      engine,
		cfg:         cfg,
		logger:      logger,
		repo:        repo,
		coordinator: coordinator,
		registrar:   registrar,
		metrics:     m,
		location:    location,
		version:     version,
		startedAt:   time.Now(),
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.handleHealth)
	s.engine.GET("/metrics",
		APIKeyAuth(s.cfg.APIKey),
		gin.WrapH(promhttp.HandlerFor(s.metrics.Registry, promhttp.HandlerOpts{})),
	)

	api := s.engine.Group("/api", APIKeyAuth(s.cfg.APIKey))
	api.GET("/payouts/batches/:date", s.handleBatchByDate)
	api.GET("/fraud/assessments", s.handleAssessments)
	api.GET("/ingest/failures", s.handleIngestFailures)
	api.GET("/system/status", s.handleSystemStatus)

	admin := api.Group("", AdminAuth(s.cfg.AdminUser, s.cfg.AdminPasswordHash))
	admin.POST("/payouts/manual", s.handleManualPayout)
	admin.POST("/contents", s.handleRegisterContent)
}

// HTTPServer returns the configured net/http server.
func (s *Server) HTTPServer() *http.Server {
	return &http.Server{
		Addr:              s.cfg.Addr(),
		Handler:           s.engine,
		ReadHeaderTimeout: constants.ServerTimeout.ReadHeader,
		IdleTimeout:       constants.ServerTimeout.Idle,
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"version": s.version,
		"uptime":  time.Since(s.startedAt).Round(time.Second).String(),
	})
}

// handleBatchByDate returns the settlement batch for a YYYY-MM-DD date.
func (s *Server) handleBatchByDate(c *gin.Context) {
	date, err := time.ParseInLocation("2006-01-02", c.Param("date"), s.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}
	batch, err := s.repo.BatchByDate(c.Request.Context(), date)
	if err != nil {
		s.logger.Error("batch_lookup_failed", "date", c.Param("date"), "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "batch lookup failed"})
		return
	}
	if batch == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no batch for date"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "batch": batch})
}

// handleAssessments lists recent fraud assessments, optionally filtered by
// promoter.
func (s *Server) handleAssessments(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	assessments, err := s.repo.RecentAssessments(c.Request.Context(), c.Query("promoterId"), limit)
	if err != nil {
		s.logger.Error("assessments_lookup_failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "assessment lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "assessments": assessments, "count": len(assessments)})
}

// handleIngestFailures lists dead-lettered collection jobs.
func (s *Server) handleIngestFailures(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}
	failures, err := s.repo.DeadLetters(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("dead_letters_lookup_failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "dead letter lookup failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "failures": failures, "count": len(failures)})
}

// handleSystemStatus reports host and process health.
func (s *Server) handleSystemStatus(c *gin.Context) {
	ctx := c.Request.Context()

	cpuPct := 0.0
	if percents, err := cpu.PercentWithContext(ctx, 0, false); err == nil && len(percents) > 0 {
		cpuPct = percents[0]
	}
	var memUsedPct float64
	var memTotal uint64
	if vm, err := mem.VirtualMemoryWithContext(ctx); err == nil {
		memUsedPct = vm.UsedPercent
		memTotal = vm.Total
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	c.JSON(http.StatusOK, gin.H{
		"status":           "ok",
		"version":          s.version,
		"uptime":           time.Since(s.startedAt).Round(time.Second).String(),
		"cpu_percent":      cpuPct,
		"mem_used_percent": memUsedPct,
		"mem_total_bytes":  memTotal,
		"goroutines":       runtime.NumGoroutine(),
		"heap_alloc_bytes": ms.HeapAlloc,
	})
}

type manualPayoutRequest struct {
	Date string `json:"date" binding:"required"` // YYYY-MM-DD, settlement timezone
}

// handleManualPayout runs the settlement batch for a date on operator demand.
func (s *Server) handleManualPayout(c *gin.Context) {
	var req manualPayoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	date, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, want YYYY-MM-DD"})
		return
	}

	batch, err := s.coordinator.ExecuteManualPayout(c.Request.Context(), date)
	if err != nil {
		if errors.Is(err, payout.ErrBatchInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": "settlement batch already in progress"})
			return
		}
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("manual_payout_failed", "date", req.Date, "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "manual payout failed"})
		return
	}

	s.logger.Info("manual_payout_executed", "date", req.Date, "batch_id", batch.ID, "total_amount", batch.TotalAmount)
	c.JSON(http.StatusOK, gin.H{"status": "ok", "batch": batch})
}

// handleRegisterContent verifies a submitted content URL and puts the item
// under metrics collection when the check passes.
func (s *Server) handleRegisterContent(c *gin.Context) {
	var req ingest.Registration
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	row, err := s.registrar.Register(c.Request.Context(), req)
	if err != nil {
		if apperrors.IsValidation(err) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("content_registration_failed", "content_id", req.ContentID, "err", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "content verification failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"verified": row.Verified,
		"reason":   row.VerifyReason,
		"tracking": row.TrackingActive,
	})
}
