package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shirou/gopsutil/v3/mem"
)

var startTime = time.Now()

// HealthChecker is implemented by the postgres and redis clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// MemoryStatFunc reports host memory; mem.VirtualMemory in production.
type MemoryStatFunc func() (*mem.VirtualMemoryStat, error)

type HealthHandler struct {
	db       HealthChecker
	redis    HealthChecker
	version  string
	memStats MemoryStatFunc
}

type SystemStats struct {
	MemoryTotalMB uint64  `json:"memory_total_mb"`
	MemoryUsedMB  uint64  `json:"memory_used_mb"`
	MemoryUsedPct float64 `json:"memory_used_percent"`
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Services  map[string]string `json:"services"`
	System    *SystemStats      `json:"system,omitempty"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
}

func NewHealthHandler(db, redis HealthChecker, version string) *HealthHandler {
	return &HealthHandler{
		db:       db,
		redis:    redis,
		version:  version,
		memStats: mem.VirtualMemory,
	}
}

func checkService(ctx context.Context, checker HealthChecker) string {
	if checker == nil {
		return "unhealthy: not configured"
	}
	if err := checker.HealthCheck(ctx); err != nil {
		return "unhealthy: " + err.Error()
	}
	return "healthy"
}

// HealthCheck reports postgres and redis status plus host memory usage.
// Redis only caches results, so a redis failure degrades but does not fail
// the service.
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	services := map[string]string{
		"database": checkService(ctx, h.db),
		"redis":    checkService(ctx, h.redis),
	}

	status := "healthy"
	statusCode := http.StatusOK
	switch {
	case services["database"] != "healthy":
		status = "unhealthy"
		statusCode = http.StatusServiceUnavailable
	case services["redis"] != "healthy":
		status = "degraded"
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  services,
		Version:   h.version,
		Uptime:    time.Since(startTime).String(),
	}

	if h.memStats != nil {
		if vm, err := h.memStats(); err == nil {
			response.System = &SystemStats{
				MemoryTotalMB: vm.Total / 1024 / 1024,
				MemoryUsedMB:  vm.Used / 1024 / 1024,
				MemoryUsedPct: vm.UsedPercent,
			}
		}
	}

	c.JSON(statusCode, response)
}

// LivenessCheck only confirms the process is serving requests.
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now().Format(time.RFC3339),
	})
}
