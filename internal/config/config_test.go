package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8742, cfg.Port)
	assert.Equal(t, "sqlite3", cfg.DBDriver)
	assert.Equal(t, 0.6, cfg.SimilarityThreshold)
	assert.Equal(t, 0.8, cfg.CaveatThreshold)
	assert.Equal(t, similarity.DefaultWeights(), cfg.Weights)
	assert.Equal(t, 10000, cfg.CacheCapacity)
	assert.Equal(t, 5*time.Minute, cfg.CacheTTL)
	assert.Equal(t, 5, cfg.Ingest.Window)
	assert.Equal(t, 30.0, cfg.Ingest.MinScore)
	assert.Equal(t, "!این", cfg.Ingest.Marker)
	assert.False(t, cfg.EmbeddingEnabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("BRAIN_PORT", "9000")
	t.Setenv("BRAIN_SIMILARITY_THRESHOLD", "0.7")
	t.Setenv("BRAIN_WEIGHTS_LENGTH_RATIO", "0")
	t.Setenv("BRAIN_CACHE_TTL", "30s")
	t.Setenv("BRAIN_INGEST_WINDOW", "3")
	t.Setenv("BRAIN_EMBEDDING_PROVIDER", "ollama")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, 0.7, cfg.SimilarityThreshold)
	assert.Zero(t, cfg.Weights.LengthRatio)
	assert.Equal(t, 30*time.Second, cfg.CacheTTL)
	assert.Equal(t, 3, cfg.Ingest.Window)
	assert.True(t, cfg.EmbeddingEnabled())
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "brain.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: 8800
db_driver: postgres
db_dsn: postgres://brain@localhost/brain?sslmode=disable
weights:
  exact: 2
ingest:
  min_score: 40
vector_backend: qdrant
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8800, cfg.Port)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 2.0, cfg.Weights.Exact)
	assert.Equal(t, 0.8, cfg.Weights.Partial)
	assert.Equal(t, 40.0, cfg.Ingest.MinScore)
	assert.Equal(t, VectorQdrant, cfg.VectorBackend)

	t.Run("env beats file", func(t *testing.T) {
		t.Setenv("BRAIN_PORT", "8900")
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, 8900, cfg.Port)
	})
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"bad port", map[string]string{"BRAIN_PORT": "0"}},
		{"threshold above one", map[string]string{"BRAIN_SIMILARITY_THRESHOLD": "1.5"}},
		{"negative caveat", map[string]string{"BRAIN_CAVEAT_THRESHOLD": "-0.1"}},
		{"negative weight", map[string]string{"BRAIN_WEIGHTS_EXACT": "-1"}},
		{"zero capacity", map[string]string{"BRAIN_CACHE_CAPACITY": "0"}},
		{"unknown driver", map[string]string{"BRAIN_DB_DRIVER": "mysql"}},
		{"unknown provider", map[string]string{"BRAIN_EMBEDDING_PROVIDER": "openai"}},
		{"unknown backend", map[string]string{"BRAIN_VECTOR_BACKEND": "faiss"}},
		{"empty marker", map[string]string{"BRAIN_INGEST_MARKER": " "}},
		{"zero sweep interval", map[string]string{"BRAIN_SWEEP_INTERVAL": "0s"}},
		{"negative min score", map[string]string{"BRAIN_INGEST_MIN_SCORE": "-1"}},
		{"structured confidence above max", map[string]string{"BRAIN_INGEST_STRUCTURED_CONFIDENCE": "101"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
