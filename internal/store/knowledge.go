package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// knowledgeColumns is the canonical column list for all SELECT queries.
// Order must match scanOne/scanMany.
const knowledgeColumns = `id, question, answer, normalized_hash, keywords,
	embedding, embedding_model, confidence,
	usage_count, success_count, version,
	category, source, language, active,
	created_at, updated_at, last_used_at`

// ListOrder selects the ordering of ListActive.
type ListOrder string

const (
	OrderByUsage   ListOrder = "usage"
	OrderByRecency ListOrder = "recency"
)

// KnowledgeStore handles KnowledgeEntry persistence on SQLite or Postgres.
type KnowledgeStore struct {
	db *DB
}

func NewKnowledgeStore(db *DB) *KnowledgeStore {
	return &KnowledgeStore{db: db}
}

// Insert stores a new entry. The caller sets ID, NormalizedHash and
// timestamps. A second active entry for the same hash violates the unique
// index and fails.
func (s *KnowledgeStore) Insert(e *models.KnowledgeEntry) error {
	keywordsJSON, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	_, err = s.db.Exec(s.db.rebind(`
		INSERT INTO knowledge (
			id, question, answer, normalized_hash, keywords,
			embedding, embedding_model, confidence,
			usage_count, success_count, version,
			category, source, language, active,
			created_at, updated_at, last_used_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`),
		e.ID, e.Question, e.Answer, e.NormalizedHash, string(keywordsJSON),
		e.Embedding, nullableString(e.EmbeddingModel), float64(e.Confidence),
		e.UsageCount, e.SuccessCount, e.Version,
		e.Category, e.Source, e.Language, e.Active,
		e.CreatedAt, e.UpdatedAt, e.LastUsedAt,
	)
	if err != nil {
		return fmt.Errorf("insert knowledge: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing entry.
func (s *KnowledgeStore) Update(e *models.KnowledgeEntry) error {
	keywordsJSON, err := json.Marshal(e.Keywords)
	if err != nil {
		return fmt.Errorf("encode keywords: %w", err)
	}

	res, err := s.db.Exec(s.db.rebind(`
		UPDATE knowledge SET
			question = ?, answer = ?, keywords = ?,
			embedding = ?, embedding_model = ?, confidence = ?,
			version = ?, category = ?, source = ?, language = ?,
			active = ?, updated_at = ?
		WHERE id = ?
	`),
		e.Question, e.Answer, string(keywordsJSON),
		e.Embedding, nullableString(e.EmbeddingModel), float64(e.Confidence),
		e.Version, e.Category, e.Source, e.Language,
		e.Active, e.UpdatedAt,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("update knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("update knowledge %s: %w", e.ID, models.ErrNotFound)
	}
	return nil
}

// SetEmbedding stores the vector computed for an entry's question.
func (s *KnowledgeStore) SetEmbedding(id string, embedding []byte, model string) error {
	_, err := s.db.Exec(s.db.rebind(`UPDATE knowledge SET embedding = ?, embedding_model = ? WHERE id = ?`),
		embedding, nullableString(model), id)
	if err != nil {
		return fmt.Errorf("set embedding: %w", err)
	}
	return nil
}

// GetByID fetches a single entry, active or not. Returns nil if absent.
func (s *KnowledgeStore) GetByID(id string) (*models.KnowledgeEntry, error) {
	e, err := s.scanOne(s.db.QueryRow(s.db.rebind(
		fmt.Sprintf(`SELECT %s FROM knowledge WHERE id = ?`, knowledgeColumns)), id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

// FindActiveByHash returns the active entry for a normalized hash, or nil.
func (s *KnowledgeStore) FindActiveByHash(hash string) (*models.KnowledgeEntry, error) {
	e, err := s.scanOne(s.db.QueryRow(s.db.rebind(
		fmt.Sprintf(`SELECT %s FROM knowledge WHERE normalized_hash = ? AND active`, knowledgeColumns)), hash))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find by hash: %w", err)
	}
	return e, nil
}

// Deactivate soft-deletes an entry. It reports false when the id is unknown
// or already inactive.
func (s *KnowledgeStore) Deactivate(id string) (bool, error) {
	res, err := s.db.Exec(s.db.rebind(`UPDATE knowledge SET active = ?, updated_at = ? WHERE id = ? AND active`),
		false, time.Now().Unix(), id)
	if err != nil {
		return false, fmt.Errorf("deactivate knowledge: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

// ListActive returns active entries ordered by usage or recency. A
// non-positive limit returns all of them.
func (s *KnowledgeStore) ListActive(order ListOrder, limit int) ([]*models.KnowledgeEntry, error) {
	orderBy := "usage_count DESC, id ASC"
	if order == OrderByRecency {
		orderBy = "updated_at DESC, id ASC"
	}
	query := fmt.Sprintf(`SELECT %s FROM knowledge WHERE active ORDER BY %s`, knowledgeColumns, orderBy)
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.Query(s.db.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("list active: %w", err)
	}
	defer rows.Close()
	return s.scanMany(rows)
}

// RecordUsage bumps an entry's usage counter and last-used timestamp.
// Confident matches also count as successes.
func (s *KnowledgeStore) RecordUsage(id string, confident bool, at int64) error {
	success := 0
	if confident {
		success = 1
	}
	_, err := s.db.Exec(s.db.rebind(`
		UPDATE knowledge SET usage_count = usage_count + 1, success_count = success_count + ?, last_used_at = ?
		WHERE id = ?
	`), success, at, id)
	if err != nil {
		return fmt.Errorf("record usage: %w", err)
	}
	return nil
}

// ResetUsage zeroes the usage counters of an entry.
func (s *KnowledgeStore) ResetUsage(id string) error {
	res, err := s.db.Exec(s.db.rebind(`UPDATE knowledge SET usage_count = 0, success_count = 0 WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("reset usage: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return fmt.Errorf("reset usage %s: %w", id, models.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *KnowledgeStore) scanOne(row scanner) (*models.KnowledgeEntry, error) {
	var e models.KnowledgeEntry
	var keywords, embeddingModel sql.NullString
	var lastUsed sql.NullInt64
	var confidence float64

	err := row.Scan(
		&e.ID, &e.Question, &e.Answer, &e.NormalizedHash, &keywords,
		&e.Embedding, &embeddingModel, &confidence,
		&e.UsageCount, &e.SuccessCount, &e.Version,
		&e.Category, &e.Source, &e.Language, &e.Active,
		&e.CreatedAt, &e.UpdatedAt, &lastUsed,
	)
	if err != nil {
		return nil, err
	}

	e.Confidence = models.ClampConfidence(confidence)
	e.EmbeddingModel = embeddingModel.String
	if keywords.Valid && keywords.String != "" {
		if err := json.Unmarshal([]byte(keywords.String), &e.Keywords); err != nil {
			return nil, fmt.Errorf("decode keywords of %s: %w", e.ID, err)
		}
	}
	if lastUsed.Valid {
		v := lastUsed.Int64
		e.LastUsedAt = &v
	}
	return &e, nil
}

func (s *KnowledgeStore) scanMany(rows *sql.Rows) ([]*models.KnowledgeEntry, error) {
	var out []*models.KnowledgeEntry
	for rows.Next() {
		e, err := s.scanOne(rows)
		if err != nil {
			return nil, fmt.Errorf("scan knowledge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
