package handlers

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

// Build information - can be set at build time using ldflags
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

const serviceName = "docgraph"

// storeProvider is implemented by clients that expose their vector store.
type storeProvider interface {
	Store() vectorstore.Store
}

// HealthHandler handles health check requests
type HealthHandler struct {
	client docgraph.DocGraph
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(client docgraph.DocGraph) *HealthHandler {
	return &HealthHandler{client: client}
}

// HealthCheck handles GET /health - basic liveness check
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
	})
}

// LivenessCheck handles GET /live - Kubernetes liveness probe endpoint
func (h *HealthHandler) LivenessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "alive",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// ReadinessCheck handles GET /ready. The service is ready once a client is
// wired and its vector store, if any, answers a one-row scan.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	checks, healthy := h.dependencyChecks(ctx)
	response := gin.H{
		"status":    "ready",
		"service":   serviceName,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"checks":    checks,
	}
	if !healthy {
		response["status"] = "not_ready"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

// DetailedHealthCheck handles GET /health/detailed - comprehensive health information
func (h *HealthHandler) DetailedHealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()

	startTime := time.Now()
	checks, healthy := h.dependencyChecks(ctx)

	systemMetrics := h.getSystemMetrics()
	checks["system"] = gin.H{
		"status":       "healthy",
		"memory_usage": systemMetrics.MemoryUsage,
		"goroutines":   systemMetrics.Goroutines,
		"gc_cycles":    systemMetrics.GCCycles,
		"heap_objects": systemMetrics.HeapObjects,
		"stack_usage":  systemMetrics.StackUsage,
	}

	response := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": Version,
		"build_info": gin.H{
			"git_commit": GitCommit,
			"build_time": BuildTime,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"environment": gin.H{
			"go_version": GoVersion,
		},
		"checks": checks,
		"metrics": gin.H{
			"response_time_ms": time.Since(startTime).Milliseconds(),
		},
	}
	if !healthy {
		response["status"] = "unhealthy"
		c.JSON(http.StatusServiceUnavailable, response)
		return
	}
	c.JSON(http.StatusOK, response)
}

func (h *HealthHandler) dependencyChecks(ctx context.Context) (gin.H, bool) {
	checks := gin.H{}
	if h.client == nil {
		checks["client"] = gin.H{
			"status": "unhealthy",
			"error":  "docgraph client not initialized",
		}
		return checks, false
	}
	checks["client"] = gin.H{"status": "healthy"}

	provider, ok := h.client.(storeProvider)
	if !ok || provider.Store() == nil {
		checks["vector_store"] = gin.H{"status": "disabled"}
		return checks, true
	}

	start := time.Now()
	_, err := provider.Store().ScanEmbeddings(ctx, vectorstore.Filter{Limit: 1})
	status := gin.H{
		"status":      "healthy",
		"duration_ms": time.Since(start).Milliseconds(),
		"operation":   "ScanEmbeddings",
	}
	if err != nil {
		status["status"] = "unhealthy"
		status["error"] = err.Error()
		checks["vector_store"] = status
		return checks, false
	}
	checks["vector_store"] = status
	return checks, true
}

// SystemMetrics holds system runtime metrics
type SystemMetrics struct {
	MemoryUsage string `json:"memory_usage"`
	Goroutines  int    `json:"goroutines"`
	GCCycles    uint32 `json:"gc_cycles"`
	HeapObjects uint64 `json:"heap_objects"`
	StackUsage  string `json:"stack_usage"`
}

// getSystemMetrics collects current system runtime metrics
func (h *HealthHandler) getSystemMetrics() SystemMetrics {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	return SystemMetrics{
		MemoryUsage: fmt.Sprintf("%.2f MB", float64(m.Alloc)/(1024*1024)),
		Goroutines:  runtime.NumGoroutine(),
		GCCycles:    m.NumGC,
		HeapObjects: m.HeapObjects,
		StackUsage:  fmt.Sprintf("%.2f MB", float64(m.StackSys)/(1024*1024)),
	}
}
