package vectorstore

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/db"
)

// DefaultNeo4jLabel is the node label used when Neo4jConfig.Label is empty.
const DefaultNeo4jLabel = "Document"

// Neo4jConfig locates document embeddings in a Neo4j database.
type Neo4jConfig struct {
	URI      string
	Username string
	Password string
	// Database defaults to "neo4j".
	Database string
	// Label of the nodes carrying id, project and embedding properties.
	Label string
}

// Neo4jStore reads embeddings stored as list properties on document nodes.
type Neo4jStore struct {
	client   neo4j.DriverWithContext
	database string
	label    string
}

// NewNeo4jStore creates a Neo4j-backed store and verifies connectivity.
func NewNeo4jStore(ctx context.Context, cfg Neo4jConfig) (*Neo4jStore, error) {
	label := cfg.Label
	if label == "" {
		label = DefaultNeo4jLabel
	}
	if !validIdentifier(label) {
		return nil, fmt.Errorf("%w: label %q", ErrInvalidIdentifier, label)
	}
	database := cfg.Database
	if database == "" {
		database = "neo4j"
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.Username, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("failed to reach neo4j: %w", err)
	}

	return &Neo4jStore{client: driver, database: database, label: label}, nil
}

// GetEmbedding implements Store.
func (n *Neo4jStore) GetEmbedding(ctx context.Context, documentID string) ([]float32, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MATCH (d:%s {id: $id})
			WHERE d.embedding IS NOT NULL
			RETURN d.embedding AS embedding
			LIMIT 1
		`, n.label)
		res, err := tx.Run(ctx, query, map[string]any{"id": documentID})
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		return records, nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query embedding: %w", err)
	}

	records := result.([]*db.Record)
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	raw, _ := records[0].Get("embedding")
	vec, err := toFloat32s(raw)
	if err != nil {
		return nil, fmt.Errorf("document %s: %w", documentID, err)
	}
	return vec, nil
}

// ScanEmbeddings implements Store.
func (n *Neo4jStore) ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error) {
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database, AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	query := fmt.Sprintf(`
		MATCH (d:%s)
		WHERE d.embedding IS NOT NULL
		  AND (size($ids) = 0 OR d.id IN $ids)
		  AND ($project = '' OR d.project = $project)
		RETURN d.id AS id, coalesce(d.project, '') AS project, d.embedding AS embedding
		ORDER BY d.id
	`, n.label)
	params := map[string]any{
		"ids":     stringsToAny(filter.IDs),
		"project": filter.Project,
	}
	if filter.Limit > 0 {
		query += " LIMIT $limit"
		params["limit"] = filter.Limit
	}

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}

	records := result.([]*db.Record)
	out := make([]Embedding, 0, len(records))
	for _, record := range records {
		id, _, err := neo4j.GetRecordValue[string](record, "id")
		if err != nil {
			return nil, fmt.Errorf("failed to read id: %w", err)
		}
		project, _, _ := neo4j.GetRecordValue[string](record, "project")
		raw, _ := record.Get("embedding")
		vec, err := toFloat32s(raw)
		if err != nil {
			return nil, fmt.Errorf("document %s: %w", id, err)
		}
		out = append(out, Embedding{DocumentID: id, Project: project, Vector: vec})
	}
	return out, nil
}

// PutEmbedding implements Writer.
func (n *Neo4jStore) PutEmbedding(ctx context.Context, e Embedding) error {
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	session := n.client.NewSession(ctx, neo4j.SessionConfig{DatabaseName: n.database})
	defer session.Close(ctx)

	embedding := make([]float64, len(e.Vector))
	for i, v := range e.Vector {
		embedding[i] = float64(v)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		query := fmt.Sprintf(`
			MERGE (d:%s {id: $id})
			SET d.project = $project, d.embedding = $embedding
		`, n.label)
		_, err := tx.Run(ctx, query, map[string]any{
			"id":        e.DocumentID,
			"project":   e.Project,
			"embedding": embedding,
		})
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("failed to upsert embedding: %w", err)
	}
	return nil
}

// Close implements Store.
func (n *Neo4jStore) Close() error {
	return n.client.Close(context.Background())
}

// toFloat32s converts a Neo4j list property into a vector.
func toFloat32s(raw any) ([]float32, error) {
	switch v := raw.(type) {
	case []float64:
		out := make([]float32, len(v))
		for i, f := range v {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(v))
		for i, item := range v {
			switch f := item.(type) {
			case float64:
				out[i] = float32(f)
			case int64:
				out[i] = float32(f)
			default:
				return nil, fmt.Errorf("unexpected embedding component type %T", item)
			}
		}
		return out, nil
	case nil:
		return nil, ErrNotFound
	}
	return nil, fmt.Errorf("unexpected embedding type %T", raw)
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
