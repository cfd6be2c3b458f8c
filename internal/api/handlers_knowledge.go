package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/iammorganparry/clive/apps/brain/internal/brain"
	"github.com/iammorganparry/clive/apps/brain/internal/models"
	"github.com/iammorganparry/clive/apps/brain/internal/store"
)

// KnowledgeHandler translates HTTP requests into brain operations.
type KnowledgeHandler struct {
	brain  *brain.Brain
	search *store.KnowledgeStore
	logs   *store.IngestLogStore
}

func NewKnowledgeHandler(b *brain.Brain, search *store.KnowledgeStore, logs *store.IngestLogStore) *KnowledgeHandler {
	return &KnowledgeHandler{brain: b, search: search, logs: logs}
}

// Think handles POST /think
func (h *KnowledgeHandler) Think(w http.ResponseWriter, r *http.Request) {
	var req models.ThinkRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	res, err := h.brain.Think(r.Context(), req.Question)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Learn handles POST /learn
func (h *KnowledgeHandler) Learn(w http.ResponseWriter, r *http.Request) {
	var req models.LearnRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	req.Source = models.SourceManual

	resp, err := h.brain.Learn(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	status := http.StatusOK
	if resp.Created {
		status = http.StatusCreated
	}
	writeJSON(w, status, resp)
}

// Ingest handles POST /ingest
func (h *KnowledgeHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	var req models.IngestRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	resp, err := h.brain.IngestDocument(r.Context(), req.Text, req.Source)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// IngestLog handles GET /ingest/log
func (h *KnowledgeHandler) IngestLog(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	records, err := h.logs.Recent(limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if records == nil {
		records = []models.IngestRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// Forget handles DELETE /knowledge/{id}
func (h *KnowledgeHandler) Forget(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	ok, err := h.brain.Forget(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if !ok {
		writeError(w, http.StatusNotFound, "knowledge entry not found")
		return
	}
	writeJSON(w, http.StatusOK, models.ForgetResponse{ID: id, Forgotten: true})
}

// Get handles GET /knowledge/{id}
func (h *KnowledgeHandler) Get(w http.ResponseWriter, r *http.Request) {
	e, err := h.brain.Entry(chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// List handles GET /knowledge. With ?q= it runs a full-text search,
// otherwise it lists active entries by usage (or ?order=recency).
func (h *KnowledgeHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	if text := q.Get("q"); text != "" {
		hits, err := h.search.Search(text, limit)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		if hits == nil {
			hits = []models.SearchHit{}
		}
		writeJSON(w, http.StatusOK, hits)
		return
	}

	order := store.OrderByUsage
	if q.Get("order") == string(store.OrderByRecency) {
		order = store.OrderByRecency
	}
	entries, err := h.search.ListActive(order, limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.KnowledgeEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// ResetUsage handles POST /knowledge/{id}/reset-usage
func (h *KnowledgeHandler) ResetUsage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.brain.ResetUsage(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Stats handles GET /stats
func (h *KnowledgeHandler) Stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.brain.Stats())
}
