package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/firebase/genkit/go/genkit"

	"github.com/gambitlabs/gambit/internal/chat"
	"github.com/gambitlabs/gambit/internal/log"
)

// ChatHandler exposes the chat flow over HTTP.
//
//   - POST /api/chat        - synchronous (JSON in/out, via genkit.Handler)
//   - POST /api/chat/stream - streaming (Server-Sent Events)
//
// Both paths run the same flow.
type ChatHandler struct {
	flow   *chat.Flow
	logger log.Logger
}

// NewChatHandler creates a chat handler over the registered flow.
func NewChatHandler(flow *chat.Flow, logger log.Logger) *ChatHandler {
	return &ChatHandler{flow: flow, logger: logger}
}

// RegisterRoutes registers chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	if h.flow == nil {
		h.logger.Warn("chat flow is nil, chat endpoints not registered")
		return
	}
	mux.Handle("POST /api/chat", genkit.Handler(h.flow))
	mux.HandleFunc("POST /api/chat/stream", h.handleStream)
}

// SSEEvent names: "chunk" carries partial text, "done" the final
// output, "error" a terminal failure. The stream never closes silently.
type (
	sseChunkData struct {
		Text string `json:"text"`
	}
	sseDoneData struct {
		Response  string `json:"response"`
		SessionID string `json:"sessionId"`
	}
	sseErrorData struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
)

// handleStream runs the chat flow and forwards chunks as SSE events.
func (h *ChatHandler) handleStream(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // disable nginx buffering

	flusher, ok := w.(http.Flusher)
	if !ok {
		h.logger.Error("streaming not supported by response writer")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	var input chat.Input
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeSSEError(w, flusher, "invalid_request", fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if input.Query == "" {
		h.writeSSEError(w, flusher, "missing_query", "query is required")
		return
	}

	ctx := r.Context()
	h.logger.Debug("SSE stream started", "sessionId", input.SessionID)

	var final chat.Output
	var streamErr error

	for value, err := range h.flow.Stream(ctx, input) {
		// Client disconnect ends the stream between chunks.
		select {
		case <-ctx.Done():
			h.logger.Debug("client disconnected", "sessionId", input.SessionID)
			return
		default:
		}

		if err != nil {
			streamErr = err
			break
		}
		if value.Done {
			final = value.Output
			break
		}
		if value.Stream.Text != "" {
			h.writeSSEChunk(w, flusher, value.Stream.Text)
		}
	}

	if streamErr != nil {
		h.logger.Error("stream failed", "error", streamErr, "sessionId", input.SessionID)
		h.writeSSEError(w, flusher, "stream_error", streamErr.Error())
		return
	}

	h.writeSSEDone(w, flusher, final)
	h.logger.Debug("SSE stream completed",
		"sessionId", final.SessionID, "responseLen", len(final.Response))
}

func (h *ChatHandler) writeSSEChunk(w http.ResponseWriter, flusher http.Flusher, text string) {
	data, _ := json.Marshal(sseChunkData{Text: text})
	fmt.Fprintf(w, "event: chunk\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEDone(w http.ResponseWriter, flusher http.Flusher, out chat.Output) {
	data, _ := json.Marshal(sseDoneData{Response: out.Response, SessionID: out.SessionID})
	fmt.Fprintf(w, "event: done\ndata: %s\n\n", data)
	flusher.Flush()
}

func (h *ChatHandler) writeSSEError(w http.ResponseWriter, flusher http.Flusher, code, message string) {
	data, _ := json.Marshal(sseErrorData{Code: code, Message: message})
	fmt.Fprintf(w, "event: error\ndata: %s\n\n", data)
	flusher.Flush()
}
