package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// EmbeddingCacheStore keeps question embeddings keyed by content hash and
// model, so a model switch does not overwrite vectors from the previous one.
type EmbeddingCacheStore struct {
	db *DB
}

func NewEmbeddingCacheStore(db *DB) *EmbeddingCacheStore {
	return &EmbeddingCacheStore{db: db}
}

// Get returns the cached embedding of contentHash under model. A miss
// returns nil and no error.
func (s *EmbeddingCacheStore) Get(contentHash, model string) (*models.EmbeddingCacheEntry, error) {
	e := models.EmbeddingCacheEntry{ContentHash: contentHash, Model: model}
	err := s.db.QueryRow(s.db.rebind(
		`SELECT embedding, dimension, updated_at FROM embedding_cache WHERE content_hash = ? AND model = ?`),
		contentHash, model,
	).Scan(&e.Embedding, &e.Dimension, &e.UpdatedAt)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		return nil, fmt.Errorf("get cached embedding: %w", err)
	}
	return &e, nil
}

// Put stores entry, replacing any vector cached for the same hash and model.
func (s *EmbeddingCacheStore) Put(entry *models.EmbeddingCacheEntry) error {
	if entry.ContentHash == "" || entry.Model == "" {
		return &models.ValidationError{Field: "embedding cache key", Reason: "hash and model are required"}
	}
	entry.UpdatedAt = time.Now().Unix()
	_, err := s.db.Exec(s.db.rebind(`
		INSERT INTO embedding_cache (content_hash, model, embedding, dimension, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_hash, model) DO UPDATE SET
			embedding = excluded.embedding,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`), entry.ContentHash, entry.Model, entry.Embedding, entry.Dimension, entry.UpdatedAt)
	if err != nil {
		return fmt.Errorf("put cached embedding: %w", err)
	}
	return nil
}

// Prune drops vectors produced by any model other than keep.
func (s *EmbeddingCacheStore) Prune(keep string) (int64, error) {
	res, err := s.db.Exec(s.db.rebind(`DELETE FROM embedding_cache WHERE model <> ?`), keep)
	if err != nil {
		return 0, fmt.Errorf("prune embedding cache: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("prune embedding cache: %w", err)
	}
	return n, nil
}
