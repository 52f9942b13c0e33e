package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/agent"
	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

// Bounds for the recent-games analysis endpoint.
const (
	DefaultAnalyzeGames = 10
	MaxAnalyzeGames     = 50
)

// AnalysisRunner is the orchestration surface the analysis endpoints
// need. Satisfied by *agent.Agent.
type AnalysisRunner interface {
	Execute(ctx context.Context, sessionID uuid.UUID, input string) (*agent.Response, error)
}

// sessionCreator starts the fresh session each analysis runs in.
type sessionCreator interface {
	Create(ctx context.Context, title string) (*session.Session, error)
}

// AnalysisHandler handles the one-shot analysis endpoints.
//
// Each endpoint builds a fixed prompt, runs one orchestration in a
// fresh session, and returns the final text. The returned sessionId
// lets the client continue the conversation via /api/chat.
type AnalysisHandler struct {
	runner   AnalysisRunner
	sessions sessionCreator
	logger   log.Logger
}

// NewAnalysisHandler creates an analysis handler.
func NewAnalysisHandler(runner AnalysisRunner, sessions sessionCreator, logger log.Logger) *AnalysisHandler {
	return &AnalysisHandler{runner: runner, sessions: sessions, logger: logger}
}

// RegisterRoutes registers analysis routes on the given mux.
func (h *AnalysisHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/analyze/player", h.analyzePlayer)
	mux.HandleFunc("POST /api/analyze/pgn", h.analyzePGN)
	mux.HandleFunc("POST /api/analyze/recent", h.analyzeRecent)
}

// AnalysisResponse is the JSON body of a completed analysis.
type AnalysisResponse struct {
	Analysis  string `json:"analysis"`
	SessionID string `json:"sessionId"`
}

func (h *AnalysisHandler) analyzePlayer(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username", "username is required")
		return
	}

	prompt := fmt.Sprintf(
		"Give me a complete analysis of the Chess.com player %q: their profile, "+
			"current ratings per time control, and what their recent games say about "+
			"their style and openings.", username)
	h.run(w, r, "Player analysis: "+username, prompt)
}

func (h *AnalysisHandler) analyzePGN(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PGN string `json:"pgn"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.PGN) == "" {
		writeError(w, http.StatusBadRequest, "missing_pgn", "pgn is required")
		return
	}

	prompt := "Analyze this chess game: identify the opening, comment on the key " +
		"moments and tactical content, and explain the result.\n\n" + req.PGN
	h.run(w, r, "Game analysis", prompt)
}

func (h *AnalysisHandler) analyzeRecent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		NumGames int    `json:"numGames"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeError(w, http.StatusBadRequest, "missing_username", "username is required")
		return
	}

	numGames := req.NumGames
	if numGames == 0 {
		numGames = DefaultAnalyzeGames
	}
	if numGames < 1 || numGames > MaxAnalyzeGames {
		writeError(w, http.StatusBadRequest, "invalid_num_games",
			fmt.Sprintf("numGames must be between 1 and %d", MaxAnalyzeGames))
		return
	}

	prompt := fmt.Sprintf(
		"Analyze the last %d games of Chess.com player %q: summarize the openings "+
			"they played, their results, and any recurring patterns or weaknesses.",
		numGames, username)
	h.run(w, r, "Recent games: "+username, prompt)
}

// run executes one orchestration in a fresh session and writes the result.
func (h *AnalysisHandler) run(w http.ResponseWriter, r *http.Request, title, prompt string) {
	ctx := r.Context()

	sess, err := h.sessions.Create(ctx, title)
	if err != nil {
		h.logger.Error("failed to create analysis session", "error", err)
		writeError(w, http.StatusInternalServerError, "session_error", "could not start analysis session")
		return
	}

	resp, err := h.runner.Execute(ctx, sess.ID, prompt)
	if err != nil {
		h.writeAgentError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, AnalysisResponse{
		Analysis:  resp.FinalText,
		SessionID: sess.ID.String(),
	})
}

// writeAgentError maps orchestration failures to HTTP statuses.
func (h *AnalysisHandler) writeAgentError(w http.ResponseWriter, err error) {
	h.logger.Error("analysis failed", "error", err)

	switch {
	case errors.Is(err, agent.ErrInvalidSession):
		writeError(w, http.StatusNotFound, "unknown_session", err.Error())
	case errors.Is(err, agent.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, "model_unavailable", "the model provider is unavailable, try again later")
	case errors.Is(err, agent.ErrRoundLimit):
		writeError(w, http.StatusBadGateway, "round_limit", "the analysis did not converge")
	default:
		writeError(w, http.StatusBadGateway, "analysis_failed", "analysis failed")
	}
}
