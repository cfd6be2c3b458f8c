package store

import (
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"
)

// OpenPostgres connects to a PostgreSQL database and creates the schema if
// needed. Every statement is idempotent.
func OpenPostgres(dsn string) (*DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := initPostgresSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}
	return &DB{DB: db, dialect: DialectPostgres}, nil
}

func initPostgresSchema(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS knowledge (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			normalized_hash TEXT NOT NULL,
			keywords TEXT,
			embedding BYTEA,
			embedding_model TEXT,
			confidence DOUBLE PRECISION NOT NULL DEFAULT 100,
			usage_count INTEGER NOT NULL DEFAULT 0,
			success_count INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			category TEXT NOT NULL DEFAULT 'general',
			source TEXT NOT NULL DEFAULT 'manual',
			language TEXT NOT NULL DEFAULT 'und',
			active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at BIGINT NOT NULL,
			updated_at BIGINT NOT NULL,
			last_used_at BIGINT
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_active_hash ON knowledge(normalized_hash) WHERE active`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_hash ON knowledge(normalized_hash)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_usage ON knowledge(usage_count)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_last_used ON knowledge(last_used_at)`,
		`CREATE INDEX IF NOT EXISTS idx_knowledge_fts ON knowledge
			USING GIN (to_tsvector('simple', question || ' ' || answer || ' ' || coalesce(keywords, '')))`,
		`CREATE TABLE IF NOT EXISTS embedding_cache (
			content_hash TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding BYTEA NOT NULL,
			dimension INTEGER NOT NULL,
			updated_at BIGINT NOT NULL,
			PRIMARY KEY (content_hash, model)
		)`,
		`CREATE TABLE IF NOT EXISTS ingest_log (
			id BIGSERIAL PRIMARY KEY,
			source TEXT NOT NULL,
			extracted INTEGER NOT NULL DEFAULT 0,
			learned INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			duration_ms BIGINT NOT NULL DEFAULT 0,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ingest_log_created ON ingest_log(created_at)`,
	}
	for _, s := range statements {
		if _, err := db.Exec(s); err != nil {
			return fmt.Errorf("create postgres schema: %w", err)
		}
	}
	return nil
}
