package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

// SessionManager is the session surface the endpoints need.
// Satisfied by *session.Store.
type SessionManager interface {
	Create(ctx context.Context, title string) (*session.Session, error)
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	List(ctx context.Context, limit, offset int) ([]session.Session, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// SessionHandler handles session management endpoints.
type SessionHandler struct {
	sessions SessionManager
	logger   log.Logger
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(sessions SessionManager, logger log.Logger) *SessionHandler {
	return &SessionHandler{sessions: sessions, logger: logger}
}

// RegisterRoutes registers session routes on the given mux.
func (h *SessionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/sessions", h.list)
	mux.HandleFunc("POST /api/sessions", h.create)
	mux.HandleFunc("GET /api/sessions/{id}", h.get)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.delete)
}

func (h *SessionHandler) list(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.sessions.List(r.Context(), 50, 0)
	if err != nil {
		h.logger.Error("failed to list sessions", "error", err)
		writeError(w, http.StatusInternalServerError, "list_failed", "could not list sessions")
		return
	}
	if sessions == nil {
		sessions = []session.Session{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": sessions})
}

func (h *SessionHandler) create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Title string `json:"title"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sess, err := h.sessions.Create(r.Context(), req.Title)
	if err != nil {
		h.logger.Error("failed to create session", "error", err)
		writeError(w, http.StatusInternalServerError, "create_failed", "could not create session")
		return
	}
	writeJSON(w, http.StatusCreated, sess)
}

func (h *SessionHandler) get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return
	}

	sess, err := h.sessions.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		h.logger.Error("failed to get session", "error", err)
		writeError(w, http.StatusInternalServerError, "get_failed", "could not load session")
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (h *SessionHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "session id must be a UUID")
		return
	}

	if err := h.sessions.Delete(r.Context(), id); err != nil {
		h.logger.Error("failed to delete session", "error", err)
		writeError(w, http.StatusInternalServerError, "delete_failed", "could not delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
