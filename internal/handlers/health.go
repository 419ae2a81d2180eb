package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/Tad-z/BlockTrace-api/internal/chain"
	"github.com/Tad-z/BlockTrace-api/pkg/metrics"
)

// HealthStatus classifies a dependency or the service as a whole.
type HealthStatus string

const (
	HealthStatusHealthy   HealthStatus = "healthy"
	HealthStatusDegraded  HealthStatus = "degraded"
	HealthStatusUnhealthy HealthStatus = "unhealthy"
)

// HealthCheck is the probe result for one dependency.
type HealthCheck struct {
	Status    HealthStatus `json:"status"`
	Message   string       `json:"message,omitempty"`
	Latency   string       `json:"latency"`
	CheckedAt time.Time    `json:"checked_at"`
}

// HealthResponse is the overall health payload.
type HealthResponse struct {
	Status    HealthStatus            `json:"status"`
	Timestamp time.Time               `json:"timestamp"`
	Services  map[string]*HealthCheck `json:"services"`
	Version   string                  `json:"version,omitempty"`
}

// checkTimeout bounds each dependency probe.
const checkTimeout = 5 * time.Second

// HealthHandler probes the service's dependencies: upstream chain RPCs and
// the Redis store. Redis is optional; memory-backed deployments pass nil.
type HealthHandler struct {
	chains    chain.Registry
	redis     redis.Cmdable
	collector *metrics.Collector
}

// NewHealthHandler creates a health handler.
func NewHealthHandler(chains chain.Registry, redisClient redis.Cmdable, collector *metrics.Collector) *HealthHandler {
	return &HealthHandler{
		chains:    chains,
		redis:     redisClient,
		collector: collector,
	}
}

func (h *HealthHandler) runChecks(ctx context.Context) map[string]*HealthCheck {
	checks := make(map[string]*HealthCheck, len(h.chains)+1)

	for name, client := range h.chains {
		start := time.Now()
		check := &HealthCheck{Status: HealthStatusHealthy, CheckedAt: start}

		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := client.Ping(probeCtx); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = err.Error()
		}
		cancel()

		check.Latency = time.Since(start).String()
		checks["rpc_"+name] = check
	}

	if h.redis != nil {
		start := time.Now()
		check := &HealthCheck{Status: HealthStatusHealthy, CheckedAt: start}

		probeCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		if err := h.redis.Ping(probeCtx).Err(); err != nil {
			check.Status = HealthStatusUnhealthy
			check.Message = err.Error()
		}
		cancel()

		check.Latency = time.Since(start).String()
		checks["redis"] = check
	}

	return checks
}

// overallStatus folds dependency checks into one status. A single failing
// chain degrades the service; losing every chain makes it unhealthy.
func overallStatus(checks map[string]*HealthCheck) HealthStatus {
	total, failed := 0, 0
	redisDown := false

	for name, check := range checks {
		if name == "redis" {
			redisDown = check.Status == HealthStatusUnhealthy
			continue
		}
		total++
		if check.Status == HealthStatusUnhealthy {
			failed++
		}
	}

	switch {
	case total > 0 && failed == total:
		return HealthStatusUnhealthy
	case failed > 0 || redisDown:
		return HealthStatusDegraded
	default:
		return HealthStatusHealthy
	}
}

// GetHealth returns the overall health status with per-dependency detail.
func (h *HealthHandler) GetHealth(c *gin.Context) {
	checks := h.runChecks(c.Request.Context())
	status := overallStatus(checks)

	statusCode := http.StatusOK
	if status == HealthStatusUnhealthy {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, HealthResponse{
		Status:    status,
		Timestamp: time.Now(),
		Services:  checks,
		Version:   "1.0.0",
	})
}

// GetLiveness returns a simple liveness check.
func (h *HealthHandler) GetLiveness(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"timestamp": time.Now(),
	})
}

// GetReadiness reports whether the service can do useful work. At least one
// chain RPC must be reachable.
func (h *HealthHandler) GetReadiness(c *gin.Context) {
	checks := h.runChecks(c.Request.Context())

	if overallStatus(checks) == HealthStatusUnhealthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":    "not_ready",
			"message":   "no chain RPC reachable",
			"timestamp": time.Now(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ready",
		"timestamp": time.Now(),
	})
}

// GetStatus is a lightweight operational summary: health plus headline
// metrics, without per-dependency probes.
func (h *HealthHandler) GetStatus(c *gin.Context) {
	metrics := h.collector.GetMetrics()

	c.JSON(http.StatusOK, gin.H{
		"version":         "1.0.0",
		"uptime":          h.collector.GetUptime().String(),
		"chains":          len(h.chains),
		"total_requests":  metrics.TotalRequests,
		"active_requests": metrics.ActiveRequests,
		"success_rate":    h.collector.GetSuccessRate(),
		"timestamp":       time.Now(),
	})
}

// GetMetrics exposes the in-process metrics snapshot.
func (h *HealthHandler) GetMetrics(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"metrics":         h.collector.GetMetrics(),
		"uptime":          h.collector.GetUptime().String(),
		"cache_hit_ratio": h.collector.GetCacheHitRatio(),
		"success_rate":    h.collector.GetSuccessRate(),
	})
}
