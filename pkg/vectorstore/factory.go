package vectorstore

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Backend names accepted by New.
const (
	BackendNone     = "none"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendBadger   = "badger"
	BackendNeo4j    = "neo4j"
)

// Config selects and configures a backend.
type Config struct {
	// Backend is one of none, memory, postgres, badger or neo4j.
	Backend string
	// DSN is the PostgreSQL connection string.
	DSN string
	// Path is the Badger directory; empty opens an in-memory database.
	Path string
	// Table is the PostgreSQL table name.
	Table      string
	Dimensions int

	Neo4j Neo4jConfig

	// CacheSize > 0 wraps the backend in an LRU cache.
	CacheSize int
	// Breaker, when set, wraps the backend in a circuit breaker.
	Breaker *BreakerConfig
	// Initialize creates the PostgreSQL schema when true.
	Initialize bool
}

// New builds the store described by cfg. The none backend returns a nil
// Store and no error.
func New(ctx context.Context, cfg Config, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	var (
		store Store
		err   error
	)
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	switch backend {
	case BackendNone, "":
		return nil, nil
	case BackendMemory:
		store = NewMemoryStore()
	case BackendPostgres:
		if cfg.DSN == "" {
			return nil, fmt.Errorf("postgres vector store requires a dsn")
		}
		pgConfig := DefaultPostgresConfig()
		if cfg.Table != "" {
			pgConfig.Table = cfg.Table
		}
		if cfg.Dimensions > 0 {
			pgConfig.Dimensions = cfg.Dimensions
		}
		var pg *PostgresStore
		pg, err = NewPostgresStore(ctx, cfg.DSN, pgConfig)
		if err == nil && cfg.Initialize {
			if err = pg.Initialize(ctx); err != nil {
				_ = pg.Close()
			}
		}
		store = pg
	case BackendBadger:
		store, err = NewBadgerStore(cfg.Path)
	case BackendNeo4j:
		store, err = NewNeo4jStore(ctx, cfg.Neo4j)
	default:
		return nil, fmt.Errorf("%w: %q (supported: none, memory, postgres, badger, neo4j)", ErrUnsupportedBackend, cfg.Backend)
	}
	if err != nil {
		return nil, err
	}

	if cfg.Breaker != nil {
		store = NewBreakerStore(store, *cfg.Breaker, "vectorstore-"+backend, logger)
	}
	if cfg.CacheSize > 0 {
		cached, err := NewCachedStore(store, cfg.CacheSize)
		if err != nil {
			_ = store.Close()
			return nil, err
		}
		store = cached
	}

	logger.Debug("Opened vector store", "backend", backend, "cache_size", cfg.CacheSize, "breaker", cfg.Breaker != nil)
	return store, nil
}
