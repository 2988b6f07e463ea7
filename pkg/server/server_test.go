package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph"
	"github.com/soundprediction/docgraph/pkg/config"
	"github.com/soundprediction/docgraph/pkg/types"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

func testDocuments() []types.SearchResult {
	return []types.SearchResult{
		{
			ID:          "a1",
			DocumentID:  "auth-guide",
			SourceTitle: "Auth Guide",
			Text:        "OAuth tokens expire after 24 hours. Configure OAuth scopes and JWT signing keys.",
			Entities:    []types.Entity{{Text: "OAuth"}, {Text: "JWT"}},
			Topics:      []types.Topic{{Text: "authentication"}},
		},
		{
			ID:          "b1",
			DocumentID:  "api-ref",
			SourceTitle: "API Reference",
			Text:        "The API accepts OAuth bearer tokens that expire after 4 hours and validates the JWT audience.",
			Entities:    []types.Entity{{Text: "OAuth"}, {Text: "JWT"}},
			Topics:      []types.Topic{{Text: "authentication"}, {Text: "api"}},
		},
		{
			ID:          "c1",
			DocumentID:  "billing",
			SourceTitle: "Billing FAQ",
			Text:        "Invoices are issued monthly through Stripe.",
			Entities:    []types.Entity{{Text: "Stripe"}},
			Topics:      []types.Topic{{Text: "billing"}},
		},
	}
}

func newTestServer(t *testing.T, withClient bool) *Server {
	t.Helper()
	t.Setenv("VECTORSTORE_BACKEND", "")
	cfg, err := config.LoadFrom(viper.New())
	require.NoError(t, err)
	cfg.Server.Mode = "test"
	cfg.VectorStore.Backend = vectorstore.BackendNone

	var client docgraph.DocGraph
	if withClient {
		client = docgraph.NewClient(nil, nil, nil, cfg, nil)
	}
	s := New(cfg, client, nil)
	s.Setup()
	return s
}

func doJSON(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Router().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestSetup(t *testing.T) {
	s := newTestServer(t, false)

	require.NotNil(t, s.Router())
	require.NotNil(t, s.server)
	assert.Equal(t, "localhost:8080", s.server.Addr)
}

func TestHealthEndpoints(t *testing.T) {
	s := newTestServer(t, false)

	for _, path := range []string{"/health", "/live"} {
		w := doJSON(t, s, http.MethodGet, path, nil)
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := doJSON(t, s, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "not_ready", decode(t, w)["status"])

	ready := newTestServer(t, true)
	w = doJSON(t, ready, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestCORSMiddleware(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodOptions, "/api/v1/analyze", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestIDMiddleware(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodGet, "/health", nil)
	_, err := uuid.Parse(w.Header().Get(RequestIDHeader))
	assert.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(`{"documents": []}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "req-42", decode(t, rec)["request_id"])
}

func TestAnalyzeEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze", map[string]any{"documents": testDocuments()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	for _, key := range []string{"summary", "document_clusters", "citation_network", "complementary_content", "conflict_analysis", "similarity_insights"} {
		assert.Contains(t, body, key)
	}
	assert.Equal(t, float64(3), body["summary"].(map[string]any)["total_documents"])

	w = doJSON(t, s, http.MethodPost, "/api/v1/analyze", map[string]any{"documents": []types.SearchResult{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalid_request", decode(t, w)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/v1/analyze", bytes.NewBufferString(`{"documents": [`))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestMaxDocuments(t *testing.T) {
	s := newTestServer(t, true)
	s.config.Server.MaxDocuments = 2
	s.Setup()

	w := doJSON(t, s, http.MethodPost, "/api/v1/analyze", map[string]any{"documents": testDocuments()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decode(t, w)["message"], "exceeds maximum")
}

func TestRelationshipsEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/relationships", map[string]any{
		"target_id": "a1",
		"documents": testDocuments(),
		"kinds":     []string{"similar", "same_cluster"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, "a1", body["target_id"])
	rels := body["relationships"].(map[string]any)
	assert.Len(t, rels, 2)

	w = doJSON(t, s, http.MethodPost, "/api/v1/relationships", map[string]any{
		"target_id": "a1",
		"documents": testDocuments(),
		"kinds":     []string{"siblings"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = doJSON(t, s, http.MethodPost, "/api/v1/relationships", map[string]any{"documents": testDocuments()})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestClustersEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/clusters", map[string]any{"documents": testDocuments(), "strategy": "topic_based"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.NotNil(t, decode(t, w)["clusters"])

	w = doJSON(t, s, http.MethodPost, "/api/v1/clusters", map[string]any{"documents": testDocuments(), "strategy": "kmeans"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestConflictsEndpoint(t *testing.T) {
	s := newTestServer(t, true)

	w := doJSON(t, s, http.MethodPost, "/api/v1/conflicts", map[string]any{"documents": testDocuments()})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Contains(t, body, "summary")
	assert.NotNil(t, body["conflicting_pairs"])
}

func TestGraphEndpoints(t *testing.T) {
	s := newTestServer(t, true)

	t.Run("related", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/graph/related", map[string]any{
			"documents": testDocuments(),
			"query":     "How do OAuth scopes work?",
			"strategy":  "weighted",
			"max_hops":  2,
		})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.NotEmpty(t, decode(t, w)["results"])

		w = doJSON(t, s, http.MethodPost, "/api/v1/graph/related", map[string]any{
			"documents": testDocuments(),
			"query":     "oauth",
			"strategy":  "spiral",
		})
		assert.Equal(t, http.StatusBadRequest, w.Code)

		w = doJSON(t, s, http.MethodPost, "/api/v1/graph/related", map[string]any{"documents": testDocuments()})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("export", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/graph/export", map[string]any{"documents": testDocuments()})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
		assert.Contains(t, decode(t, w), "nodes")

		w = doJSON(t, s, http.MethodPost, "/api/v1/graph/export", map[string]any{"documents": testDocuments(), "format": "yaml"})
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
		assert.Contains(t, w.Body.String(), "nodes:")

		w = doJSON(t, s, http.MethodPost, "/api/v1/graph/export", map[string]any{"documents": testDocuments(), "format": "graphml"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("stats", func(t *testing.T) {
		w := doJSON(t, s, http.MethodPost, "/api/v1/graph/stats", map[string]any{"documents": testDocuments()})
		require.Equal(t, http.StatusOK, w.Code)
		body := decode(t, w)
		assert.Equal(t, float64(3), body["node_types"].(map[string]any)["document"])
	})
}
