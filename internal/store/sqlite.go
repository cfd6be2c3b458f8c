package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// Dialect selects SQL differences between the supported databases.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite3"
	DialectPostgres Dialect = "postgres"
)

// DB is the shared connection pool for every store in this package.
type DB struct {
	*sql.DB
	dialect Dialect
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

// OpenDriver opens the store named by driver ("sqlite3" or "postgres").
func OpenDriver(driver, dsn string) (*DB, error) {
	switch Dialect(driver) {
	case DialectSQLite, "sqlite", "":
		return Open(dsn)
	case DialectPostgres, "postgresql":
		return OpenPostgres(dsn)
	}
	return nil, fmt.Errorf("unsupported db driver %q", driver)
}

// Open creates or opens the SQLite database at path and brings its schema
// up to date. WAL lets readers proceed while the single writer commits.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{DB: db, dialect: DialectSQLite}, nil
}

// sqliteMigrations are applied in order; PRAGMA user_version records how
// many have run. Append only.
var sqliteMigrations = [][]string{
	// 1: knowledge table with full-text search kept in sync by triggers.
	{
		`CREATE TABLE knowledge (
			id TEXT PRIMARY KEY,
			question TEXT NOT NULL,
			answer TEXT NOT NULL,
			normalized_hash TEXT NOT NULL,
			keywords TEXT,
			embedding BLOB,
			embedding_model TEXT,
			confidence REAL NOT NULL DEFAULT 100,
			usage_count INTEGER NOT NULL DEFAULT 0,
			version INTEGER NOT NULL DEFAULT 1,
			category TEXT NOT NULL DEFAULT 'general',
			source TEXT NOT NULL DEFAULT 'manual',
			language TEXT NOT NULL DEFAULT 'und',
			active INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE UNIQUE INDEX idx_knowledge_active_hash ON knowledge(normalized_hash) WHERE active`,
		`CREATE INDEX idx_knowledge_hash ON knowledge(normalized_hash)`,
		`CREATE INDEX idx_knowledge_usage ON knowledge(usage_count)`,
		`CREATE VIRTUAL TABLE knowledge_fts USING fts5(
			question, answer, keywords,
			content='knowledge', content_rowid='rowid'
		)`,
		`CREATE TRIGGER knowledge_ai AFTER INSERT ON knowledge BEGIN
			INSERT INTO knowledge_fts(rowid, question, answer, keywords)
			VALUES (NEW.rowid, NEW.question, NEW.answer, NEW.keywords);
		END`,
		`CREATE TRIGGER knowledge_ad AFTER DELETE ON knowledge BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, keywords)
			VALUES ('delete', OLD.rowid, OLD.question, OLD.answer, OLD.keywords);
		END`,
		`CREATE TRIGGER knowledge_au AFTER UPDATE OF question, answer, keywords ON knowledge BEGIN
			INSERT INTO knowledge_fts(knowledge_fts, rowid, question, answer, keywords)
			VALUES ('delete', OLD.rowid, OLD.question, OLD.answer, OLD.keywords);
			INSERT INTO knowledge_fts(rowid, question, answer, keywords)
			VALUES (NEW.rowid, NEW.question, NEW.answer, NEW.keywords);
		END`,
	},
	// 2: embedding cache, one row per text and model.
	{
		`CREATE TABLE embedding_cache (
			content_hash TEXT NOT NULL,
			model TEXT NOT NULL,
			embedding BLOB NOT NULL,
			dimension INTEGER NOT NULL,
			updated_at INTEGER NOT NULL,
			PRIMARY KEY (content_hash, model)
		)`,
	},
	// 3: usage statistics.
	{
		`ALTER TABLE knowledge ADD COLUMN success_count INTEGER NOT NULL DEFAULT 0`,
		`ALTER TABLE knowledge ADD COLUMN last_used_at INTEGER`,
		`CREATE INDEX idx_knowledge_last_used ON knowledge(last_used_at)`,
	},
	// 4: ingestion history.
	{
		`CREATE TABLE ingest_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			extracted INTEGER NOT NULL DEFAULT 0,
			learned INTEGER NOT NULL DEFAULT 0,
			failed INTEGER NOT NULL DEFAULT 0,
			status TEXT NOT NULL,
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX idx_ingest_log_created ON ingest_log(created_at)`,
	},
}

// migrate applies each pending migration in its own transaction.
func migrate(db *sql.DB) error {
	var version int
	if err := db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version > len(sqliteMigrations) {
		return fmt.Errorf("schema version %d is newer than this binary (%d)", version, len(sqliteMigrations))
	}
	for i := version; i < len(sqliteMigrations); i++ {
		if err := applyMigration(db, i+1, sqliteMigrations[i]); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(db *sql.DB, version int, stmts []string) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin migration %d: %w", version, err)
	}
	defer tx.Rollback()

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("run migration %d: %w", version, err)
		}
	}
	// PRAGMA takes no bind parameters.
	if _, err := tx.Exec(`PRAGMA user_version = ` + strconv.Itoa(version)); err != nil {
		return fmt.Errorf("record migration %d: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %d: %w", version, err)
	}
	return nil
}

// KnowledgeCount returns the number of active knowledge entries.
func (db *DB) KnowledgeCount() (int, error) {
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM knowledge WHERE active`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count knowledge: %w", err)
	}
	return count, nil
}

// rebind rewrites ? placeholders as $1, $2, ... for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
