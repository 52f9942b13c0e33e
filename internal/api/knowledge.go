package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/knowledge"
	"github.com/gambitlabs/gambit/internal/log"
)

// KnowledgeBase is the knowledge surface the endpoints need.
// Satisfied by *knowledge.Store.
type KnowledgeBase interface {
	Add(ctx context.Context, title, content string) (uuid.UUID, error)
	Search(ctx context.Context, query string, topK int) ([]knowledge.Match, error)
}

// KnowledgeHandler handles knowledge base endpoints.
type KnowledgeHandler struct {
	kb     KnowledgeBase
	logger log.Logger
}

// NewKnowledgeHandler creates a knowledge handler.
func NewKnowledgeHandler(kb KnowledgeBase, logger log.Logger) *KnowledgeHandler {
	return &KnowledgeHandler{kb: kb, logger: logger}
}

// RegisterRoutes registers knowledge routes on the given mux.
func (h *KnowledgeHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/knowledge/documents", h.addDocument)
	mux.HandleFunc("POST /api/knowledge/search", h.search)
}

func (h *KnowledgeHandler) addDocument(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	id, err := h.kb.Add(r.Context(), req.Title, req.Content)
	if err != nil {
		// Validation failures come back as plain errors from the store.
		h.logger.Warn("document rejected", "error", err)
		writeError(w, http.StatusBadRequest, "invalid_document", err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"id": id.String()})
}

func (h *KnowledgeHandler) search(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Query string `json:"query"`
		Limit int    `json:"limit"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "missing_query", "query is required")
		return
	}

	limit := req.Limit
	if limit <= 0 {
		limit = 5
	}
	if limit > 10 {
		limit = 10
	}

	matches, err := h.kb.Search(r.Context(), req.Query, limit)
	if err != nil {
		h.logger.Error("knowledge search failed", "error", err)
		writeError(w, http.StatusInternalServerError, "search_failed", "knowledge search failed")
		return
	}
	if matches == nil {
		matches = []knowledge.Match{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"matches": matches})
}
