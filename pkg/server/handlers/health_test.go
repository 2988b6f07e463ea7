package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// failingStore fails every scan.
type failingStore struct{ *vectorstore.MemoryStore }

func (failingStore) ScanEmbeddings(context.Context, vectorstore.Filter) ([]vectorstore.Embedding, error) {
	return nil, errors.New("connection refused")
}

func serve(t *testing.T, handler gin.HandlerFunc, method, path string) map[string]any {
	t.Helper()
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(method, path, nil)
	handler(c)

	var response map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	response["_code"] = float64(w.Code)
	return response
}

func TestHealthCheck(t *testing.T) {
	handler := NewHealthHandler(nil)

	response := serve(t, handler.HealthCheck, http.MethodGet, "/health")
	assert.Equal(t, float64(http.StatusOK), response["_code"])
	assert.Equal(t, "healthy", response["status"])
	assert.Equal(t, "docgraph", response["service"])
	assert.Contains(t, response, "timestamp")
	assert.Contains(t, response, "version")
}

func TestLivenessCheck(t *testing.T) {
	response := serve(t, NewHealthHandler(nil).LivenessCheck, http.MethodGet, "/live")
	assert.Equal(t, "alive", response["status"])
}

func TestReadinessCheck(t *testing.T) {
	t.Run("no client", func(t *testing.T) {
		response := serve(t, NewHealthHandler(nil).ReadinessCheck, http.MethodGet, "/ready")
		assert.Equal(t, float64(http.StatusServiceUnavailable), response["_code"])
		assert.Equal(t, "not_ready", response["status"])
		checks := response["checks"].(map[string]any)
		assert.Equal(t, "unhealthy", checks["client"].(map[string]any)["status"])
	})

	t.Run("no vector store", func(t *testing.T) {
		client := docgraph.NewClient(nil, nil, nil, nil, nil)
		response := serve(t, NewHealthHandler(client).ReadinessCheck, http.MethodGet, "/ready")
		assert.Equal(t, float64(http.StatusOK), response["_code"])
		checks := response["checks"].(map[string]any)
		assert.Equal(t, "disabled", checks["vector_store"].(map[string]any)["status"])
	})

	t.Run("healthy vector store", func(t *testing.T) {
		client := docgraph.NewClient(nil, nil, vectorstore.NewMemoryStore(), nil, nil)
		response := serve(t, NewHealthHandler(client).ReadinessCheck, http.MethodGet, "/ready")
		assert.Equal(t, "ready", response["status"])
	})

	t.Run("failing vector store", func(t *testing.T) {
		client := docgraph.NewClient(nil, nil, failingStore{vectorstore.NewMemoryStore()}, nil, nil)
		response := serve(t, NewHealthHandler(client).ReadinessCheck, http.MethodGet, "/ready")
		assert.Equal(t, float64(http.StatusServiceUnavailable), response["_code"])
		checks := response["checks"].(map[string]any)
		assert.Equal(t, "connection refused", checks["vector_store"].(map[string]any)["error"])
	})
}

func TestDetailedHealthCheck(t *testing.T) {
	response := serve(t, NewHealthHandler(nil).DetailedHealthCheck, http.MethodGet, "/health/detailed")
	assert.Equal(t, float64(http.StatusServiceUnavailable), response["_code"])
	assert.Equal(t, "unhealthy", response["status"])
	assert.Contains(t, response, "build_info")
	assert.Contains(t, response["metrics"], "response_time_ms")
	assert.Contains(t, response["checks"], "system")
}

func TestGetSystemMetrics(t *testing.T) {
	metrics := NewHealthHandler(nil).getSystemMetrics()

	assert.NotEmpty(t, metrics.MemoryUsage)
	assert.GreaterOrEqual(t, metrics.Goroutines, 1)
	assert.NotEmpty(t, metrics.StackUsage)
}
