package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/iammorganparry/clive/apps/brain/internal/api"
	"github.com/iammorganparry/clive/apps/brain/internal/brain"
	"github.com/iammorganparry/clive/apps/brain/internal/cache"
	"github.com/iammorganparry/clive/apps/brain/internal/config"
	"github.com/iammorganparry/clive/apps/brain/internal/embedding"
	"github.com/iammorganparry/clive/apps/brain/internal/ingest"
	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/similarity"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
	"github.com/iammorganparry/clive/apps/brain/internal/textnorm"
	"github.com/iammorganparry/clive/apps/brain/internal/vectorindex"
)

// app holds the wired service. Close releases everything it opened.
type app struct {
	cfg     *config.Config
	db      *store.DB
	brain   *brain.Brain
	metrics *metrics.Metrics

	// nil when the collaborator is disabled
	embeddingCheck api.HealthChecker
	vectorCheck    api.HealthChecker

	closers []func() error
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(level))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, metrics: metrics.New()}

	db, err := store.OpenDriver(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	a.db = db
	a.closers = append(a.closers, db.Close)

	lex, err := textnorm.LoadLexicon(cfg.LexiconPath)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load lexicon: %w", err)
	}
	norm := textnorm.New(lex, cfg.MinTokenLength)
	engine, err := similarity.New(norm, cfg.Weights, cfg.KeywordMax)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create similarity engine: %w", err)
	}

	// Answer cache: local LRU, optionally backed by a shared Redis tier.
	local := cache.NewLRU(cfg.CacheCapacity, cfg.CacheTTL)
	var tier cache.Tier = local
	if cfg.RedisURL != "" {
		remote, err := cache.NewRedisTier(ctx, cfg.RedisURL, cfg.CacheTTL, logger)
		if err != nil {
			logger.Warn("redis not available, using local cache only", "error", err)
		} else {
			tier = cache.NewLayered(local, remote, cache.DefaultPromoteTTL)
			a.closers = append(a.closers, remote.Close)
		}
	}

	var embedder embedding.Embedder
	var index vectorindex.Index
	if cfg.EmbeddingEnabled() {
		ollama := embedding.NewOllamaClient(cfg.OllamaBaseURL, cfg.EmbeddingModel)
		vecCache := store.NewEmbeddingCacheStore(db)
		if n, err := vecCache.Prune(ollama.Model()); err != nil {
			logger.Warn("prune embedding cache", "error", err)
		} else if n > 0 {
			logger.Info("dropped embeddings from other models", "count", n)
		}
		embedder = embedding.NewCachedEmbedder(ollama, vecCache, cfg.EmbeddingDim, logger)
		a.embeddingCheck = ollama
		if err := ollama.HealthCheck(ctx); err != nil {
			logger.Warn("embedding backend not available at startup, lexical matching only until it returns", "error", err)
		}

		switch cfg.VectorBackend {
		case config.VectorQdrant:
			var opts []vectorindex.QdrantOption
			if cfg.QdrantAPIKey != "" {
				opts = append(opts, vectorindex.WithAPIKey(cfg.QdrantAPIKey))
			}
			client := vectorindex.NewQdrantClient(cfg.QdrantURL, cfg.EmbeddingDim, opts...)
			qi := vectorindex.NewQdrantIndex(client, cfg.QdrantCollection)
			index = qi
			a.vectorCheck = qi
		default:
			index = vectorindex.NewFlatIndex(cfg.EmbeddingDim)
		}
	}

	b, err := brain.New(brain.Deps{
		Store:      store.NewKnowledgeStore(db),
		IngestLog:  store.NewIngestLogStore(db),
		Cache:      tier,
		Index:      index,
		Embedder:   embedder,
		Normalizer: norm,
		Engine:     engine,
		Extractor:  ingest.NewExtractor(norm, cfg.Ingest),
		Metrics:    a.metrics,
		Logger:     logger,
	}, brainConfig(cfg))
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("create brain: %w", err)
	}
	if err := b.Load(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("load knowledge: %w", err)
	}
	a.brain = b
	return a, nil
}

func brainConfig(cfg *config.Config) brain.Config {
	bc := brain.DefaultConfig()
	bc.SimilarityThreshold = cfg.SimilarityThreshold
	bc.CaveatThreshold = cfg.CaveatThreshold
	bc.CacheTTL = cfg.CacheTTL
	bc.MaxAlternatives = cfg.MaxAlternatives
	bc.KeywordMax = cfg.KeywordMax
	return bc
}

// Close runs the closers in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
