package inbox

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

type recordingIngester struct {
	mu   sync.Mutex
	docs map[string]string
}

func (r *recordingIngester) IngestDocument(_ context.Context, text, source string) (models.IngestResponse, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[source] = text
	return models.IngestResponse{LearnedCount: 1, Status: models.IngestSuccess}, nil
}

func (r *recordingIngester) get(source string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.docs[source]
	return text, ok
}

func TestWatcherIngestsSupportedFiles(t *testing.T) {
	dir := t.TempDir()
	ing := &recordingIngester{docs: make(map[string]string)}
	w, err := New(dir, ing, 20*time.Millisecond, slog.New(slog.DiscardHandler))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	go w.Run(ctx)
	t.Cleanup(func() {
		cancel()
		<-w.Done()
	})

	require.NoError(t, os.WriteFile(filepath.Join(dir, "faq.txt"), []byte("What is X? X is Y."), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "prices.csv"), []byte("gold,2000\nsilver,25\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "image.png"), []byte{0x89, 'P', 'N', 'G'}, 0o644))

	assert.Eventually(t, func() bool {
		_, a := ing.get("faq.txt")
		_, b := ing.get("prices.csv")
		return a && b
	}, 5*time.Second, 10*time.Millisecond)

	text, _ := ing.get("faq.txt")
	assert.Equal(t, "What is X? X is Y.", text)
	csv, _ := ing.get("prices.csv")
	assert.Equal(t, "gold\t2000\nsilver\t25\n", csv)

	_, png := ing.get("image.png")
	assert.False(t, png)
}

func TestNewCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "inbox")
	w, err := New(dir, &recordingIngester{docs: map[string]string{}}, 0, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	assert.DirExists(t, dir)
	assert.Equal(t, DefaultDebounce, w.debounce)
	require.NoError(t, w.watcher.Close())
}
