package api

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gambitlabs/gambit/internal/log"
)

// The streaming handler decodes and validates the request before it
// touches the flow, so those paths are testable with a nil flow.

func TestHandleStream_InvalidBody(t *testing.T) {
	t.Parallel()

	h := NewChatHandler(nil, log.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.handleStream(rec, req)

	body := rec.Body.String()
	if !strings.Contains(body, "event: error") {
		t.Errorf("body = %q, want an error event", body)
	}
	if !strings.Contains(body, "invalid_request") {
		t.Errorf("body = %q, want invalid_request code", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}
}

func TestHandleStream_MissingQuery(t *testing.T) {
	t.Parallel()

	h := NewChatHandler(nil, log.NewNop())

	req := httptest.NewRequest(http.MethodPost, "/api/chat/stream", strings.NewReader(`{"query": ""}`))
	rec := httptest.NewRecorder()
	h.handleStream(rec, req)

	if !strings.Contains(rec.Body.String(), "missing_query") {
		t.Errorf("body = %q, want missing_query error event", rec.Body.String())
	}
}
