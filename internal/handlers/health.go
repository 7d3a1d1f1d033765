package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"
	natsClient "github.com/tesseract-hub/commerce-service/internal/nats"
	"gorm.io/gorm"
)

var startTime = time.Now()

// RedisPinger is the connectivity probe the health handler needs from the
// cache client
type RedisPinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check endpoints
type HealthHandler struct {
	db         *gorm.DB
	natsClient *natsClient.Client
	redis      RedisPinger
}

// NewHealthHandler creates a new health handler. NATS and Redis clients may
// be nil when those backends are not configured.
func NewHealthHandler(db *gorm.DB, nc *natsClient.Client, redis RedisPinger) *HealthHandler {
	return &HealthHandler{
		db:         db,
		natsClient: nc,
		redis:      redis,
	}
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string           `json:"status"`
	Service   string           `json:"service"`
	Version   string           `json:"version"`
	Uptime    string           `json:"uptime"`
	Timestamp string           `json:"timestamp"`
	Checks    map[string]Check `json:"checks,omitempty"`
	System    *SystemInfo      `json:"system,omitempty"`
}

// Check represents a health check result
type Check struct {
	Status  string                 `json:"status"`
	Message string                 `json:"message,omitempty"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// SystemInfo represents system runtime information
type SystemInfo struct {
	Goroutines  int    `json:"goroutines"`
	MemoryAlloc uint64 `json:"memory_alloc_mb"`
	MemorySys   uint64 `json:"memory_sys_mb"`
	NumCPU      int    `json:"num_cpu"`
	GoVersion   string `json:"go_version"`
}

// Health returns the liveness status of the service
func (h *HealthHandler) Health(c *gin.Context) {
	response := HealthResponse{
		Status:    "healthy",
		Service:   "commerce-service",
		Version:   "1.0.0",
		Uptime:    time.Since(startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if c.Query("detailed") == "true" {
		response.Checks = h.performHealthChecks(c.Request.Context())
		response.System = h.getSystemInfo()
	}

	c.JSON(http.StatusOK, response)
}

// Ready returns the readiness status of the service and its dependencies.
// The database is required; NATS and Redis are degraded-mode optional.
func (h *HealthHandler) Ready(c *gin.Context) {
	response := HealthResponse{
		Service:   "commerce-service",
		Version:   "1.0.0",
		Uptime:    time.Since(startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    h.performHealthChecks(c.Request.Context()),
	}

	if response.Checks["database"].Status != "healthy" {
		response.Status = "not ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}

	response.Status = "ready"
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) performHealthChecks(ctx context.Context) map[string]Check {
	checks := make(map[string]Check)
	checks["database"] = h.checkDatabase()
	checks["nats"] = h.checkNATS()
	checks["redis"] = h.checkRedis(ctx)
	return checks
}

func (h *HealthHandler) checkDatabase() Check {
	sqlDB, err := h.db.DB()
	if err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Failed to get database instance",
		}
	}

	if err := sqlDB.Ping(); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Database ping failed",
		}
	}

	stats := sqlDB.Stats()
	return Check{
		Status:  "healthy",
		Message: "Database connected",
		Details: map[string]interface{}{
			"open_connections": stats.OpenConnections,
			"in_use":           stats.InUse,
			"idle":             stats.Idle,
			"max_open":         stats.MaxOpenConnections,
		},
	}
}

func (h *HealthHandler) checkNATS() Check {
	if h.natsClient == nil {
		return Check{
			Status:  "degraded",
			Message: "NATS client not configured; events disabled",
		}
	}
	if !h.natsClient.IsConnected() {
		return Check{
			Status:  "unhealthy",
			Message: "NATS disconnected",
		}
	}
	return Check{
		Status:  "healthy",
		Message: "NATS connected",
	}
}

func (h *HealthHandler) checkRedis(ctx context.Context) Check {
	if h.redis == nil {
		return Check{
			Status:  "degraded",
			Message: "Redis not configured; usage snapshots uncached",
		}
	}
	if err := h.redis.Ping(ctx); err != nil {
		return Check{
			Status:  "unhealthy",
			Message: "Redis ping failed",
		}
	}
	return Check{
		Status:  "healthy",
		Message: "Redis connected",
	}
}

func (h *HealthHandler) getSystemInfo() *SystemInfo {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return &SystemInfo{
		Goroutines:  runtime.NumGoroutine(),
		MemoryAlloc: mem.Alloc / 1024 / 1024,
		MemorySys:   mem.Sys / 1024 / 1024,
		NumCPU:      runtime.NumCPU(),
		GoVersion:   runtime.Version(),
	}
}
