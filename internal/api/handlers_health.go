package api

import (
	"context"
	"net/http"
	"time"

	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
)

// HealthChecker is implemented by remote collaborators such as the Ollama
// and Qdrant clients.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

type HealthHandler struct {
	db        *store.DB
	embedding HealthChecker
	vector    HealthChecker
}

// NewHealthHandler accepts nil checkers for disabled collaborators.
func NewHealthHandler(db *store.DB, embedding, vector HealthChecker) *HealthHandler {
	return &HealthHandler{db: db, embedding: embedding, vector: vector}
}

// Health reports "degraded" only when the store is unreachable. The
// embedding backend and the vector index are optional, so their failures
// are shown but do not fail the check.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	resp := models.HealthResponse{
		Status:      "ok",
		Embedding:   check(ctx, h.embedding),
		VectorIndex: check(ctx, h.vector),
	}

	count, err := h.db.KnowledgeCount()
	if err != nil {
		resp.DB = models.ServiceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = models.ServiceCheck{Status: "ok"}
		resp.KnowledgeCount = count
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}

func check(ctx context.Context, c HealthChecker) models.ServiceCheck {
	if c == nil {
		return models.ServiceCheck{Status: "disabled"}
	}
	if err := c.HealthCheck(ctx); err != nil {
		return models.ServiceCheck{Status: "error", Message: err.Error()}
	}
	return models.ServiceCheck{Status: "ok"}
}
