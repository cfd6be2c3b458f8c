package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/brain/internal/brain"
	"github.com/iammorganparry/clive/apps/brain/internal/metrics"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
)

// NewRouter creates the Chi router with all routes and middleware. The
// embedding and vector checkers and m may be nil.
func NewRouter(
	db *store.DB,
	b *brain.Brain,
	embeddingCheck HealthChecker,
	vectorCheck HealthChecker,
	m *metrics.Metrics,
	apiKey string,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Runs on every route, probes included.
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger, m))

	healthH := NewHealthHandler(db, embeddingCheck, vectorCheck)
	knowledgeH := NewKnowledgeHandler(b, store.NewKnowledgeStore(db), store.NewIngestLogStore(db))

	r.Get("/health", healthH.Health)
	if m != nil {
		r.Method(http.MethodGet, "/metrics", m.Handler())
	}

	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(apiKey))

		r.Post("/think", knowledgeH.Think)
		r.Post("/learn", knowledgeH.Learn)
		r.Post("/ingest", knowledgeH.Ingest)
		r.Get("/ingest/log", knowledgeH.IngestLog)
		r.Get("/stats", knowledgeH.Stats)

		r.Route("/knowledge", func(r chi.Router) {
			r.Get("/", knowledgeH.List)
			r.Get("/{id}", knowledgeH.Get)
			r.Delete("/{id}", knowledgeH.Forget)
			r.Post("/{id}/reset-usage", knowledgeH.ResetUsage)
		})
	})

	return r
}
