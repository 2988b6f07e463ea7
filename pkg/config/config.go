package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/soundprediction/docgraph/pkg/crossdoc"
	"github.com/soundprediction/docgraph/pkg/embedder"
	"github.com/soundprediction/docgraph/pkg/graph"
	"github.com/soundprediction/docgraph/pkg/vectorstore"
)

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`

	// Knowledge graph construction
	Graph GraphConfig `mapstructure:"graph"`

	// Default traversal settings
	Traversal TraversalConfig `mapstructure:"traversal"`

	// Cross-document analysis
	Similarity    SimilarityConfig    `mapstructure:"similarity"`
	Clustering    ClusteringConfig    `mapstructure:"clustering"`
	Complementary ComplementaryConfig `mapstructure:"complementary"`
	Conflict      ConflictConfig      `mapstructure:"conflict"`

	// NLP configuration
	NLP NLPConfig `mapstructure:"nlp"`

	// Embedding configuration
	Embedding EmbeddingConfig `mapstructure:"embedding"`

	// Vector store configuration
	VectorStore VectorStoreConfig `mapstructure:"vectorstore"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text, json or color
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	Mode string `mapstructure:"mode"` // gin mode: debug, release, test
	// MaxDocuments caps the batch size a single request may submit.
	MaxDocuments int `mapstructure:"max_documents"`
}

// GraphConfig holds knowledge graph construction settings
type GraphConfig struct {
	MinDocumentFrequency     int     `mapstructure:"min_document_frequency"`
	SimilarDocumentThreshold float64 `mapstructure:"similar_document_threshold"`
	// Centrality iteration settings shared by the graph and the citation network.
	DampingFactor float64 `mapstructure:"damping_factor"`
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

// TraversalConfig holds default traversal settings
type TraversalConfig struct {
	Strategy          string  `mapstructure:"strategy"`
	MaxHops           int     `mapstructure:"max_hops"`
	MaxResults        int     `mapstructure:"max_results"`
	MinWeight         float64 `mapstructure:"min_weight"`
	WeightCombination string  `mapstructure:"weight_combination"` // product or minimum
}

// SimilarityConfig holds similarity weights and classification thresholds
type SimilarityConfig struct {
	Weights    crossdoc.SimilarityWeights        `mapstructure:"weights"`
	Thresholds crossdoc.ClassificationThresholds `mapstructure:"thresholds"`
	// SimilarThreshold is the score at which documents are reported as similar.
	SimilarThreshold float64 `mapstructure:"similar_threshold"`
}

// ClusteringConfig holds clustering settings
type ClusteringConfig struct {
	Strategy           string  `mapstructure:"strategy"`
	MaxClusters        int     `mapstructure:"max_clusters"`
	MinClusterSize     int     `mapstructure:"min_cluster_size"`
	EntityThreshold    float64 `mapstructure:"entity_threshold"`
	TopicThreshold     float64 `mapstructure:"topic_threshold"`
	MixedThreshold     float64 `mapstructure:"mixed_threshold"`
	CommunityThreshold float64 `mapstructure:"community_threshold"`
}

// ComplementaryConfig holds recommendation settings
type ComplementaryConfig struct {
	MaxRecommendations int                           `mapstructure:"max_recommendations"`
	Options            crossdoc.ComplementaryOptions `mapstructure:",squash"`
}

// ConflictConfig holds conflict detection settings
type ConflictConfig struct {
	MinTextLength        int           `mapstructure:"min_text_length"`
	PrimaryThreshold     float64       `mapstructure:"primary_threshold"`
	SecondaryThreshold   float64       `mapstructure:"secondary_threshold"`
	MinVectorSimilarity  float64       `mapstructure:"min_vector_similarity"`
	MaxVectorSimilarity  float64       `mapstructure:"max_vector_similarity"`
	MaxPairs             int           `mapstructure:"max_pairs"`
	MaxConcurrentFetches int           `mapstructure:"max_concurrent_fetches"`
	FetchTimeout         time.Duration `mapstructure:"fetch_timeout"`
	SubjectWindow        int           `mapstructure:"subject_window"`
}

// NLPConfig selects the language backends
type NLPConfig struct {
	// Similarity is lexical or embedding.
	Similarity string `mapstructure:"similarity"`
	// Entities is prose, gliner, both or none.
	Entities string `mapstructure:"entities"`
	// NamedEntities enables prose's named-entity model.
	NamedEntities bool     `mapstructure:"named_entities"`
	GlinerModel   string   `mapstructure:"gliner_model"`
	Labels        []string `mapstructure:"labels"`
}

// EmbeddingConfig holds embedding configuration
type EmbeddingConfig struct {
	Provider   string `mapstructure:"provider"` // openai, embedeverything
	Model      string `mapstructure:"model"`
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Dimensions int    `mapstructure:"dimensions"`
	BatchSize  int    `mapstructure:"batch_size"`
	MaxRetries int    `mapstructure:"max_retries"`
	// CacheSize bounds the embedding LRU used by embedding similarity.
	CacheSize int `mapstructure:"cache_size"`
}

// VectorStoreConfig holds vector store configuration
type VectorStoreConfig struct {
	Backend    string `mapstructure:"backend"` // none, memory, postgres, badger, neo4j
	DSN        string `mapstructure:"dsn"`
	Path       string `mapstructure:"path"`
	Table      string `mapstructure:"table"`
	Dimensions int    `mapstructure:"dimensions"`
	Initialize bool   `mapstructure:"initialize"`
	CacheSize  int    `mapstructure:"cache_size"`

	Neo4j          Neo4jConfig          `mapstructure:"neo4j"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
}

// Neo4jConfig holds Neo4j connection settings
type Neo4jConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	Label    string `mapstructure:"label"`
}

// CircuitBreakerConfig holds configuration for circuit breaking
type CircuitBreakerConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MaxRequests      uint32  `mapstructure:"max_requests"`
	Interval         int     `mapstructure:"interval"` // in seconds
	Timeout          int     `mapstructure:"timeout"`  // in seconds
	ReadyToTripRatio float64 `mapstructure:"ready_to_trip_ratio"`
}

// Load loads configuration from file and environment variables
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom decodes configuration from v after applying defaults.
func LoadFrom(v *viper.Viper) (*Config, error) {
	setDefaults(v)

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Override with environment variables if present
	overrideWithEnv(config)

	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "color")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_documents", 500)

	// Graph defaults
	builder := graph.DefaultBuilderOptions()
	centrality := graph.DefaultCentralityOptions()
	v.SetDefault("graph.min_document_frequency", builder.MinDocumentFrequency)
	v.SetDefault("graph.similar_document_threshold", builder.SimilarDocumentThreshold)
	v.SetDefault("graph.damping_factor", centrality.DampingFactor)
	v.SetDefault("graph.max_iterations", centrality.MaxIterations)
	v.SetDefault("graph.tolerance", centrality.Tolerance)

	v.SetDefault("traversal.strategy", string(graph.BreadthFirst))
	v.SetDefault("traversal.max_hops", graph.DefaultMaxHops)
	v.SetDefault("traversal.max_results", graph.DefaultMaxResults)
	v.SetDefault("traversal.min_weight", 0.0)
	v.SetDefault("traversal.weight_combination", string(graph.CombineProduct))

	// Cross-document defaults
	engine := crossdoc.DefaultConfig()
	v.SetDefault("similarity.weights.entity", engine.Weights.Entity)
	v.SetDefault("similarity.weights.topic", engine.Weights.Topic)
	v.SetDefault("similarity.weights.metadata", engine.Weights.Metadata)
	v.SetDefault("similarity.weights.semantic", engine.Weights.Semantic)
	v.SetDefault("similarity.thresholds.high_entity_overlap", engine.Thresholds.HighEntityOverlap)
	v.SetDefault("similarity.thresholds.high_topic_overlap", engine.Thresholds.HighTopicOverlap)
	v.SetDefault("similarity.thresholds.high_semantic", engine.Thresholds.HighSemantic)
	v.SetDefault("similarity.thresholds.low_structural", engine.Thresholds.LowStructural)
	v.SetDefault("similarity.thresholds.salience", engine.Thresholds.Salience)
	v.SetDefault("similarity.similar_threshold", engine.SimilarThreshold)

	v.SetDefault("clustering.strategy", string(engine.ClusterStrategy))
	v.SetDefault("clustering.max_clusters", engine.MaxClusters)
	v.SetDefault("clustering.min_cluster_size", engine.MinClusterSize)
	v.SetDefault("clustering.entity_threshold", engine.Clustering.EntityThreshold)
	v.SetDefault("clustering.topic_threshold", engine.Clustering.TopicThreshold)
	v.SetDefault("clustering.mixed_threshold", engine.Clustering.MixedThreshold)
	v.SetDefault("clustering.community_threshold", engine.Clustering.CommunityThreshold)

	v.SetDefault("complementary.max_recommendations", engine.MaxRecommendations)
	v.SetDefault("complementary.min_similarity", engine.Complementary.MinSimilarity)
	v.SetDefault("complementary.band_min", engine.Complementary.BandMin)
	v.SetDefault("complementary.band_max", engine.Complementary.BandMax)
	v.SetDefault("complementary.duplicate_threshold", engine.Complementary.DuplicateThreshold)
	v.SetDefault("complementary.duplicate_penalty", engine.Complementary.DuplicatePenalty)
	v.SetDefault("complementary.complementary_boost", engine.Complementary.ComplementaryBoost)

	v.SetDefault("conflict.min_text_length", engine.Conflict.MinTextLength)
	v.SetDefault("conflict.primary_threshold", engine.Conflict.PrimaryThreshold)
	v.SetDefault("conflict.secondary_threshold", engine.Conflict.SecondaryThreshold)
	v.SetDefault("conflict.min_vector_similarity", engine.Conflict.MinVectorSimilarity)
	v.SetDefault("conflict.max_vector_similarity", engine.Conflict.MaxVectorSimilarity)
	v.SetDefault("conflict.max_pairs", engine.Conflict.MaxPairs)
	v.SetDefault("conflict.max_concurrent_fetches", engine.Conflict.MaxConcurrentFetches)
	v.SetDefault("conflict.fetch_timeout", engine.Conflict.FetchTimeout)
	v.SetDefault("conflict.subject_window", engine.Conflict.SubjectWindow)

	// NLP defaults
	v.SetDefault("nlp.similarity", "lexical")
	v.SetDefault("nlp.entities", "prose")
	v.SetDefault("nlp.named_entities", true)
	v.SetDefault("nlp.gliner_model", "urchade/gliner_small-v2.1")

	// Embedding defaults
	v.SetDefault("embedding.provider", "openai")
	v.SetDefault("embedding.model", embedder.DefaultModel)
	v.SetDefault("embedding.batch_size", embedder.DefaultBatchSize)
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.cache_size", 1024)

	// Vector store defaults
	v.SetDefault("vectorstore.backend", vectorstore.BackendNone)
	v.SetDefault("vectorstore.table", vectorstore.DefaultPostgresConfig().Table)
	v.SetDefault("vectorstore.neo4j.uri", "bolt://localhost:7687")
	v.SetDefault("vectorstore.neo4j.username", "neo4j")
	v.SetDefault("vectorstore.neo4j.database", "neo4j")
	v.SetDefault("vectorstore.neo4j.label", vectorstore.DefaultNeo4jLabel)
	breaker := vectorstore.DefaultBreakerConfig()
	v.SetDefault("vectorstore.circuit_breaker.max_requests", breaker.MaxRequests)
	v.SetDefault("vectorstore.circuit_breaker.interval", int(breaker.Interval/time.Second))
	v.SetDefault("vectorstore.circuit_breaker.timeout", int(breaker.Timeout/time.Second))
	v.SetDefault("vectorstore.circuit_breaker.ready_to_trip_ratio", breaker.ReadyToTripRatio)

	if home, err := os.UserHomeDir(); err == nil {
		v.SetDefault("vectorstore.path", fmt.Sprintf("%s/.docgraph/embeddings", home))
	}
}

// overrideWithEnv overrides config with environment variables
func overrideWithEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && config.Embedding.APIKey == "" {
		config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" && config.Embedding.BaseURL == "" {
		config.Embedding.BaseURL = baseURL
	}

	// Vector store credentials
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" && config.VectorStore.DSN == "" {
		config.VectorStore.DSN = dsn
	}
	if uri := os.Getenv("NEO4J_URI"); uri != "" {
		config.VectorStore.Neo4j.URI = uri
	}
	if user := os.Getenv("NEO4J_USER"); user != "" {
		config.VectorStore.Neo4j.Username = user
	}
	if pass := os.Getenv("NEO4J_PASSWORD"); pass != "" {
		config.VectorStore.Neo4j.Password = pass
	}
	if backend := os.Getenv("VECTORSTORE_BACKEND"); backend != "" {
		config.VectorStore.Backend = backend
	}

	// Server settings
	if host := os.Getenv("SERVER_HOST"); host != "" {
		config.Server.Host = host
	}
	if port := os.Getenv("SERVER_PORT"); port != "" {
		var p int
		if _, err := fmt.Sscanf(port, "%d", &p); err == nil {
			config.Server.Port = p
		}
	}
}

// Builder returns the graph builder options.
func (c *Config) Builder() graph.BuilderOptions {
	return graph.BuilderOptions{
		MinDocumentFrequency:     c.Graph.MinDocumentFrequency,
		SimilarDocumentThreshold: c.Graph.SimilarDocumentThreshold,
	}
}

// Centrality returns the centrality iteration settings.
func (c *Config) Centrality() graph.CentralityOptions {
	return graph.CentralityOptions{
		DampingFactor: c.Graph.DampingFactor,
		MaxIterations: c.Graph.MaxIterations,
		Tolerance:     c.Graph.Tolerance,
	}
}

// TraversalDefaults returns the default traversal options.
func (c *Config) TraversalDefaults() graph.TraversalOptions {
	return graph.TraversalOptions{
		Strategy:    graph.Strategy(strings.ToLower(c.Traversal.Strategy)),
		MaxHops:     c.Traversal.MaxHops,
		MaxResults:  c.Traversal.MaxResults,
		MinWeight:   c.Traversal.MinWeight,
		Combination: graph.WeightCombination(strings.ToLower(c.Traversal.WeightCombination)),
	}
}

// Engine returns the cross-document engine configuration.
func (c *Config) Engine() crossdoc.Config {
	return crossdoc.Config{
		Weights:         c.Similarity.Weights,
		Thresholds:      c.Similarity.Thresholds,
		ClusterStrategy: crossdoc.ClusterStrategy(c.Clustering.Strategy),
		MaxClusters:     c.Clustering.MaxClusters,
		MinClusterSize:  c.Clustering.MinClusterSize,
		Clustering: crossdoc.ClusterOptions{
			EntityThreshold:    c.Clustering.EntityThreshold,
			TopicThreshold:     c.Clustering.TopicThreshold,
			MixedThreshold:     c.Clustering.MixedThreshold,
			CommunityThreshold: c.Clustering.CommunityThreshold,
		},
		MaxRecommendations: c.Complementary.MaxRecommendations,
		Complementary:      c.Complementary.Options,
		SimilarThreshold:   c.Similarity.SimilarThreshold,
		Conflict: crossdoc.ConflictOptions{
			MinTextLength:        c.Conflict.MinTextLength,
			PrimaryThreshold:     c.Conflict.PrimaryThreshold,
			SecondaryThreshold:   c.Conflict.SecondaryThreshold,
			MinVectorSimilarity:  c.Conflict.MinVectorSimilarity,
			MaxVectorSimilarity:  c.Conflict.MaxVectorSimilarity,
			MaxPairs:             c.Conflict.MaxPairs,
			MaxConcurrentFetches: c.Conflict.MaxConcurrentFetches,
			FetchTimeout:         c.Conflict.FetchTimeout,
			SubjectWindow:        c.Conflict.SubjectWindow,
		},
		Centrality: c.Centrality(),
	}
}

// Embedder returns the embedding client settings.
func (c *Config) Embedder() embedder.Config {
	return embedder.Config{
		Model:      c.Embedding.Model,
		BaseURL:    c.Embedding.BaseURL,
		Dimensions: c.Embedding.Dimensions,
		BatchSize:  c.Embedding.BatchSize,
	}
}

// Store returns the vector store settings.
func (c *Config) Store() vectorstore.Config {
	vs := c.VectorStore
	cfg := vectorstore.Config{
		Backend:    vs.Backend,
		DSN:        vs.DSN,
		Path:       vs.Path,
		Table:      vs.Table,
		Dimensions: vs.Dimensions,
		Initialize: vs.Initialize,
		CacheSize:  vs.CacheSize,
		Neo4j: vectorstore.Neo4jConfig{
			URI:      vs.Neo4j.URI,
			Username: vs.Neo4j.Username,
			Password: vs.Neo4j.Password,
			Database: vs.Neo4j.Database,
			Label:    vs.Neo4j.Label,
		},
	}
	if vs.CircuitBreaker.Enabled {
		cfg.Breaker = &vectorstore.BreakerConfig{
			MaxRequests:      vs.CircuitBreaker.MaxRequests,
			Interval:         time.Duration(vs.CircuitBreaker.Interval) * time.Second,
			Timeout:          time.Duration(vs.CircuitBreaker.Timeout) * time.Second,
			ReadyToTripRatio: vs.CircuitBreaker.ReadyToTripRatio,
		}
	}
	return cfg
}
