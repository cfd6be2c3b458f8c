package store

import (
	"fmt"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// IngestLogStore records document ingestion runs.
type IngestLogStore struct {
	db *DB
}

func NewIngestLogStore(db *DB) *IngestLogStore {
	return &IngestLogStore{db: db}
}

// Record appends a run to the log.
func (s *IngestLogStore) Record(r *models.IngestRecord) error {
	_, err := s.db.Exec(s.db.rebind(`
		INSERT INTO ingest_log (source, extracted, learned, failed, status, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`), r.Source, r.Extracted, r.Learned, r.Failed, string(r.Status), r.DurationMs, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// Recent returns the latest runs, newest first.
func (s *IngestLogStore) Recent(limit int) ([]models.IngestRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(s.db.rebind(`
		SELECT id, source, extracted, learned, failed, status, duration_ms, created_at
		FROM ingest_log ORDER BY created_at DESC, id DESC LIMIT ?
	`), limit)
	if err != nil {
		return nil, fmt.Errorf("list ingest log: %w", err)
	}
	defer rows.Close()

	var out []models.IngestRecord
	for rows.Next() {
		var r models.IngestRecord
		var status string
		if err := rows.Scan(&r.ID, &r.Source, &r.Extracted, &r.Learned, &r.Failed, &status, &r.DurationMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ingest log: %w", err)
		}
		r.Status = models.IngestStatus(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
