package vectorstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
)

var embeddingKeyPrefix = []byte("embedding/")

func embeddingKey(documentID string) []byte {
	return append(append([]byte(nil), embeddingKeyPrefix...), documentID...)
}

// BadgerStore keeps embeddings in an embedded Badger key-value database,
// one JSON-encoded Embedding per key.
type BadgerStore struct {
	db *badger.DB
}

// NewBadgerStore opens (or creates) the database at path. An empty path
// opens an in-memory database.
func NewBadgerStore(path string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	if path == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

// GetEmbedding implements Store.
func (b *BadgerStore) GetEmbedding(ctx context.Context, documentID string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var e Embedding
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(embeddingKey(documentID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &e)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, documentID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read embedding: %w", err)
	}
	return e.Vector, nil
}

// ScanEmbeddings implements Store. Keys are iterated in byte order, which is
// document id order.
func (b *BadgerStore) ScanEmbeddings(ctx context.Context, filter Filter) ([]Embedding, error) {
	ids := filter.idSet()
	var out []Embedding
	err := b.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = embeddingKeyPrefix
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(embeddingKeyPrefix); it.ValidForPrefix(embeddingKeyPrefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var e Embedding
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &e)
			}); err != nil {
				return fmt.Errorf("failed to decode %s: %w", it.Item().Key(), err)
			}
			if !filter.matches(e, ids) {
				continue
			}
			out = append(out, e)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan embeddings: %w", err)
	}
	return out, nil
}

// PutEmbedding implements Writer.
func (b *BadgerStore) PutEmbedding(ctx context.Context, e Embedding) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(e.Vector) == 0 {
		return ErrEmptyVector
	}
	val, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("failed to encode embedding: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(embeddingKey(e.DocumentID), val)
	})
}

// Close implements Store.
func (b *BadgerStore) Close() error {
	return b.db.Close()
}
