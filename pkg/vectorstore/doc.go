/*
Package vectorstore reads stored document embeddings for cross-document
analysis.

Store is the read interface consumed by the conflict detector. Backends:

  - MemoryStore: map-backed, for tests and small batches
  - PostgresStore: a pgvector column via database/sql and lib/pq
  - BadgerStore: an embedded Badger key-value database
  - Neo4jStore: list properties on document nodes

CachedStore and BreakerStore wrap any backend with an LRU cache and a circuit
breaker. New assembles the combination described by a Config:

	store, err := vectorstore.New(ctx, vectorstore.Config{
		Backend:   vectorstore.BackendBadger,
		Path:      "./embeddings",
		CacheSize: 1024,
	}, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	vec, err := store.GetEmbedding(ctx, "auth-guide")
	if errors.Is(err, vectorstore.ErrNotFound) {
		// not indexed yet
	}
*/
package vectorstore
