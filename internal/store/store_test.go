package store_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
)

func setupTestDB(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newEntry(question, answer, hash string) *models.KnowledgeEntry {
	now := time.Now().Unix()
	return &models.KnowledgeEntry{
		ID:             uuid.NewString(),
		Question:       question,
		Answer:         answer,
		NormalizedHash: hash,
		Keywords:       []string{"price", "gold"},
		Confidence:     models.DefaultConfidence,
		Version:        1,
		Category:       models.DefaultCategory,
		Source:         models.SourceManual,
		Language:       "en",
		Active:         true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestKnowledgeStore(t *testing.T) {
	db := setupTestDB(t)
	ks := store.NewKnowledgeStore(db)

	e := newEntry("What is the price of gold?", "About 2000 dollars per ounce.", "h1")
	require.NoError(t, ks.Insert(e))

	t.Run("GetByID round trips fields", func(t *testing.T) {
		got, err := ks.GetByID(e.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, e.Question, got.Question)
		assert.Equal(t, e.Keywords, got.Keywords)
		assert.Equal(t, models.DefaultConfidence, got.Confidence)
		assert.True(t, got.Active)
		assert.Nil(t, got.LastUsedAt)
	})

	t.Run("GetByID returns nil for unknown id", func(t *testing.T) {
		got, err := ks.GetByID("missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("FindActiveByHash", func(t *testing.T) {
		got, err := ks.FindActiveByHash("h1")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, e.ID, got.ID)

		none, err := ks.FindActiveByHash("nope")
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("second active entry for the same hash is rejected", func(t *testing.T) {
		dup := newEntry("what is the price of gold", "other", "h1")
		assert.Error(t, ks.Insert(dup))
	})

	t.Run("Update bumps stored fields", func(t *testing.T) {
		e.Answer = "About 2100 dollars per ounce."
		e.Version = 2
		require.NoError(t, ks.Update(e))

		got, err := ks.GetByID(e.ID)
		require.NoError(t, err)
		assert.Equal(t, "About 2100 dollars per ounce.", got.Answer)
		assert.Equal(t, 2, got.Version)
	})

	t.Run("Update of unknown id is ErrNotFound", func(t *testing.T) {
		ghost := newEntry("q", "a", "ghost")
		assert.ErrorIs(t, ks.Update(ghost), models.ErrNotFound)
	})

	t.Run("RecordUsage and ResetUsage", func(t *testing.T) {
		require.NoError(t, ks.RecordUsage(e.ID, true, 100))
		require.NoError(t, ks.RecordUsage(e.ID, false, 200))

		got, err := ks.GetByID(e.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.UsageCount)
		assert.Equal(t, 1, got.SuccessCount)
		require.NotNil(t, got.LastUsedAt)
		assert.Equal(t, int64(200), *got.LastUsedAt)

		require.NoError(t, ks.ResetUsage(e.ID))
		got, err = ks.GetByID(e.ID)
		require.NoError(t, err)
		assert.Zero(t, got.UsageCount)
		assert.Zero(t, got.SuccessCount)

		assert.ErrorIs(t, ks.ResetUsage("missing"), models.ErrNotFound)
	})

	t.Run("SetEmbedding", func(t *testing.T) {
		require.NoError(t, ks.SetEmbedding(e.ID, []byte{1, 2, 3, 4}, "test-model"))
		got, err := ks.GetByID(e.ID)
		require.NoError(t, err)
		assert.Equal(t, []byte{1, 2, 3, 4}, got.Embedding)
		assert.Equal(t, "test-model", got.EmbeddingModel)
	})
}

func TestKnowledgeStoreCorruptKeywords(t *testing.T) {
	db := setupTestDB(t)
	ks := store.NewKnowledgeStore(db)

	e := newEntry("q1", "a1", "h1")
	require.NoError(t, ks.Insert(e))
	_, err := db.Exec(`UPDATE knowledge SET keywords = '{not json' WHERE id = ?`, e.ID)
	require.NoError(t, err)

	_, err = ks.GetByID(e.ID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode keywords")

	_, err = ks.ListActive(store.OrderByUsage, 0)
	assert.Error(t, err)
}

func TestKnowledgeStoreDeactivate(t *testing.T) {
	db := setupTestDB(t)
	ks := store.NewKnowledgeStore(db)

	e := newEntry("q1", "a1", "h1")
	require.NoError(t, ks.Insert(e))

	ok, err := ks.Deactivate(e.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = ks.Deactivate(e.ID)
	require.NoError(t, err)
	assert.False(t, ok, "already inactive")

	ok, err = ks.Deactivate("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	// The row is kept but no longer active.
	got, err := ks.GetByID(e.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.False(t, got.Active)

	found, err := ks.FindActiveByHash("h1")
	require.NoError(t, err)
	assert.Nil(t, found)

	// The hash is free again for a new active entry.
	require.NoError(t, ks.Insert(newEntry("q1", "a2", "h1")))

	count, err := db.KnowledgeCount()
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestKnowledgeStoreListActive(t *testing.T) {
	db := setupTestDB(t)
	ks := store.NewKnowledgeStore(db)

	a := newEntry("qa", "aa", "ha")
	b := newEntry("qb", "ab", "hb")
	c := newEntry("qc", "ac", "hc")
	b.UpdatedAt = a.UpdatedAt + 10
	for _, e := range []*models.KnowledgeEntry{a, b, c} {
		require.NoError(t, ks.Insert(e))
	}
	require.NoError(t, ks.RecordUsage(c.ID, true, 1))
	require.NoError(t, ks.RecordUsage(c.ID, true, 2))
	_, err := ks.Deactivate(a.ID)
	require.NoError(t, err)

	byUsage, err := ks.ListActive(store.OrderByUsage, 0)
	require.NoError(t, err)
	require.Len(t, byUsage, 2)
	assert.Equal(t, c.ID, byUsage[0].ID)

	limited, err := ks.ListActive(store.OrderByRecency, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, b.ID, limited[0].ID)
}

func TestKnowledgeStoreSearch(t *testing.T) {
	db := setupTestDB(t)
	ks := store.NewKnowledgeStore(db)

	gold := newEntry("What is the price of gold?", "About 2000 dollars per ounce.", "h1")
	silver := newEntry("What is the price of silver?", "About 25 dollars per ounce.", "h2")
	hours := newEntry("When does the shop open?", "At nine in the morning.", "h3")
	gold.Keywords = []string{"gold"}
	silver.Keywords = []string{"silver"}
	hours.Keywords = []string{"shop", "hours"}
	for _, e := range []*models.KnowledgeEntry{gold, silver, hours} {
		require.NoError(t, ks.Insert(e))
	}

	hits, err := ks.Search("gold", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, gold.ID, hits[0].Entry.ID)
	assert.Greater(t, hits[0].Score, 0.0)

	hits, err = ks.Search("ounce", 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	t.Run("query syntax characters are neutralised", func(t *testing.T) {
		hits, err := ks.Search(`shop" OR (`, 10)
		require.NoError(t, err)
		require.Len(t, hits, 1)
		assert.Equal(t, hours.ID, hits[0].Entry.ID)
	})

	t.Run("inactive entries are hidden", func(t *testing.T) {
		_, err := ks.Deactivate(gold.ID)
		require.NoError(t, err)
		hits, err := ks.Search("gold", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})

	t.Run("empty query", func(t *testing.T) {
		hits, err := ks.Search("  ?! ", 10)
		require.NoError(t, err)
		assert.Empty(t, hits)
	})
}

func TestEmbeddingCacheStore(t *testing.T) {
	db := setupTestDB(t)
	cs := store.NewEmbeddingCacheStore(db)

	got, err := cs.Get("abc", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cs.Put(&models.EmbeddingCacheEntry{ContentHash: "abc", Embedding: []byte{1}, Dimension: 1, Model: "m1"}))
	require.NoError(t, cs.Put(&models.EmbeddingCacheEntry{ContentHash: "abc", Embedding: []byte{2}, Dimension: 1, Model: "m2"}))
	require.NoError(t, cs.Put(&models.EmbeddingCacheEntry{ContentHash: "abc", Embedding: []byte{3}, Dimension: 1, Model: "m2"}))

	got, err = cs.Get("abc", "m1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte{1}, got.Embedding)

	got, err = cs.Get("abc", "m2")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, []byte{3}, got.Embedding, "same key replaces")

	n, err := cs.Prune("m2")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	got, err = cs.Get("abc", "m1")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, cs.Put(&models.EmbeddingCacheEntry{ContentHash: "x"}), models.ErrInvalidInput)
}

func TestIngestLogStore(t *testing.T) {
	db := setupTestDB(t)
	ls := store.NewIngestLogStore(db)

	require.NoError(t, ls.Record(&models.IngestRecord{Source: "a.txt", Extracted: 3, Learned: 3, Status: models.IngestSuccess, CreatedAt: 1}))
	require.NoError(t, ls.Record(&models.IngestRecord{Source: "b.txt", Extracted: 2, Learned: 1, Failed: 1, Status: models.IngestPartial, CreatedAt: 2}))

	recent, err := ls.Recent(10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	assert.Equal(t, "b.txt", recent[0].Source)
	assert.Equal(t, models.IngestPartial, recent[0].Status)
	assert.Equal(t, 1, recent[0].Failed)
}

func TestOpenRunsMigrationsIdempotently(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.db")
	db, err := store.Open(path)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	db, err = store.Open(path)
	require.NoError(t, err)
	defer db.Close()
	assert.Equal(t, store.DialectSQLite, db.Dialect())

	var version int
	require.NoError(t, db.QueryRow(`PRAGMA user_version`).Scan(&version))
	assert.Equal(t, 4, version)

	// Every migrated column is usable.
	ks := store.NewKnowledgeStore(db)
	e := newEntry("What is X?", "Y.", "hash-x")
	require.NoError(t, ks.Insert(e))
	require.NoError(t, ks.RecordUsage(e.ID, true, 10))

	t.Run("newer schema is refused", func(t *testing.T) {
		_, err := db.Exec(`PRAGMA user_version = 99`)
		require.NoError(t, err)
		require.NoError(t, db.Close())
		_, err = store.Open(path)
		assert.ErrorContains(t, err, "newer than this binary")
	})
}

func TestOpenDriverRejectsUnknown(t *testing.T) {
	_, err := store.OpenDriver("mysql", "x")
	assert.Error(t, err)
}

func TestPostgresKnowledgeStore(t *testing.T) {
	dsn := os.Getenv("BRAIN_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("BRAIN_TEST_PG_DSN not set")
	}
	db, err := store.OpenDriver("postgres", dsn)
	require.NoError(t, err)
	defer db.Close()

	ks := store.NewKnowledgeStore(db)
	hash := "pg-" + uuid.NewString()
	e := newEntry("What is the price of gold?", "About 2000 dollars per ounce.", hash)
	e.Keywords = []string{"gold", uuid.NewString()[:8]}
	require.NoError(t, ks.Insert(e))
	t.Cleanup(func() { db.Exec(`DELETE FROM knowledge WHERE id = $1`, e.ID) })

	got, err := ks.FindActiveByHash(hash)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.ID, got.ID)

	hits, err := ks.Search(e.Keywords[1], 5)
	require.NoError(t, err)
	require.NotEmpty(t, hits)
	assert.Equal(t, e.ID, hits[0].Entry.ID)

	ok, err := ks.Deactivate(e.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}
