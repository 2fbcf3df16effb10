package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"minigame_bot/internal/store"
)

// HealthHandler serves the liveness and readiness probes.
type HealthHandler struct {
	store     store.Store
	startTime time.Time
	version   string
}

func NewHealthHandler(st store.Store, version string) *HealthHandler {
	return &HealthHandler{
		store:     st,
		startTime: time.Now(),
		version:   version,
	}
}

// Liveness returns simple alive status (for k8s liveness probe)
func (h *HealthHandler) Liveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Readiness returns detailed health status (for k8s readiness probe)
func (h *HealthHandler) Readiness(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.store.Ping(ctx); err != nil {
		checks["store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["store"] = "healthy"
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	checks["goroutines"] = fmt.Sprintf("%d", runtime.NumGoroutine())
	checks["heap_mb"] = fmt.Sprintf("%d", mem.HeapAlloc/1024/1024)

	status := http.StatusOK
	overall := "ok"
	if !allHealthy {
		status = http.StatusServiceUnavailable
		overall = "degraded"
	}
	c.JSON(status, gin.H{
		"status":    overall,
		"version":   h.version,
		"uptime":    time.Since(h.startTime).String(),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	})
}
