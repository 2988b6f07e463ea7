package config

import (
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("VECTORSTORE_BACKEND", "")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, graph.DefaultBuilderOptions(), cfg.Builder())
	assert.Equal(t, graph.DefaultCentralityOptions(), cfg.Centrality())

	engine := cfg.Engine()
	defaults := crossdoc.DefaultConfig()
	assert.Equal(t, defaults.Weights, engine.Weights)
	assert.Equal(t, defaults.Thresholds, engine.Thresholds)
	assert.Equal(t, defaults.Clustering, engine.Clustering)
	assert.Equal(t, defaults.Complementary, engine.Complementary)
	assert.Equal(t, defaults.Conflict, engine.Conflict)
	assert.Equal(t, crossdoc.EntityBasedClustering, engine.ClusterStrategy)

	traversal := cfg.TraversalDefaults()
	assert.Equal(t, graph.BreadthFirst, traversal.Strategy)
	assert.Equal(t, graph.DefaultMaxHops, traversal.MaxHops)

	store := cfg.Store()
	assert.Equal(t, vectorstore.BackendNone, store.Backend)
	assert.Nil(t, store.Breaker)
}

func TestLoadFromYAML(t *testing.T) {
	v := viper.New()
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(`
clustering:
  strategy: community
  max_clusters: 4
conflict:
  fetch_timeout: 250ms
  max_concurrent_fetches: 2
similarity:
  weights:
    semantic: 0.6
vectorstore:
  backend: badger
  path: /tmp/embeddings
  circuit_breaker:
    enabled: true
    timeout: 10
`)))

	cfg, err := LoadFrom(v)
	require.NoError(t, err)

	engine := cfg.Engine()
	assert.Equal(t, crossdoc.CommunityClustering, engine.ClusterStrategy)
	assert.Equal(t, 4, engine.MaxClusters)
	assert.Equal(t, 250*time.Millisecond, engine.Conflict.FetchTimeout)
	assert.Equal(t, 2, engine.Conflict.MaxConcurrentFetches)
	assert.Equal(t, 0.6, engine.Weights.Semantic)
	assert.Equal(t, crossdoc.DefaultSimilarityWeights().Entity, engine.Weights.Entity)

	store := cfg.Store()
	assert.Equal(t, vectorstore.BackendBadger, store.Backend)
	assert.Equal(t, "/tmp/embeddings", store.Path)
	require.NotNil(t, store.Breaker)
	assert.Equal(t, 10*time.Second, store.Breaker.Timeout)
	assert.Equal(t, time.Minute, store.Breaker.Interval)
}

func TestEnvironmentOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("NEO4J_URI", "bolt://graph:7687")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("VECTORSTORE_BACKEND", "neo4j")

	cfg, err := LoadFrom(viper.New())
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Embedding.APIKey)
	assert.Equal(t, "bolt://graph:7687", cfg.VectorStore.Neo4j.URI)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, vectorstore.BackendNeo4j, cfg.Store().Backend)
}
