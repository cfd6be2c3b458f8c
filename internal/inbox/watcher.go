// Package inbox ingests documents dropped into a watched directory.
package inbox

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/iammorganparry/clive/apps/brain/internal/ingest"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
)

// Ingester is the brain operation the watcher feeds.
type Ingester interface {
	IngestDocument(ctx context.Context, text, source string) (models.IngestResponse, error)
}

// DefaultDebounce is how long a file must stay quiet before it is read.
const DefaultDebounce = 500 * time.Millisecond

// Watcher ingests supported files when they are created or rewritten.
// Rapid successive writes to one file are debounced into one ingestion.
type Watcher struct {
	mu       sync.Mutex
	watcher  *fsnotify.Watcher
	dir      string
	ingester Ingester
	logger   *slog.Logger
	debounce time.Duration
	pending  map[string]time.Time
	done     chan struct{}
}

func New(dir string, ingester Ingester, debounce time.Duration, logger *slog.Logger) (*Watcher, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create inbox dir: %w", err)
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		watcher:  fw,
		dir:      dir,
		ingester: ingester,
		logger:   logger,
		debounce: debounce,
		pending:  make(map[string]time.Time),
		done:     make(chan struct{}),
	}, nil
}

// Run processes events until ctx is cancelled, then closes the underlying
// watcher. It blocks.
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.done)
	defer w.watcher.Close()

	w.logger.Info("watching inbox", "dir", w.dir)
	tick := time.NewTicker(w.debounce / 4)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("inbox watcher", "error", err)
		case <-tick.C:
			w.flush(ctx)
		}
	}
}

// Done is closed when Run returns.
func (w *Watcher) Done() <-chan struct{} {
	return w.done
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return
	}
	if !ingest.SupportedExtension(event.Name) {
		return
	}
	w.mu.Lock()
	w.pending[event.Name] = time.Now()
	w.mu.Unlock()
}

func (w *Watcher) flush(ctx context.Context) {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			ready = append(ready, path)
			delete(w.pending, path)
		}
	}
	w.mu.Unlock()

	for _, path := range ready {
		w.ingestFile(ctx, path)
	}
}

func (w *Watcher) ingestFile(ctx context.Context, path string) {
	f, err := os.Open(path)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Error("open inbox file", "path", path, "error", err)
		}
		return
	}
	defer f.Close()

	text, err := ingest.ReadDocument(path, f)
	if err != nil {
		w.logger.Warn("read inbox file", "path", path, "error", err)
		return
	}
	resp, err := w.ingester.IngestDocument(ctx, text, filepath.Base(path))
	if err != nil {
		w.logger.Error("ingest inbox file", "path", path, "error", err)
		return
	}
	w.logger.Info("inbox file ingested",
		"path", path,
		"learned", resp.LearnedCount,
		"status", string(resp.Status),
	)
}
