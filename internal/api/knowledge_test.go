package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/knowledge"
	"github.com/gambitlabs/gambit/internal/log"
)

type fakeKnowledgeBase struct {
	addErr    error
	matches   []knowledge.Match
	searchErr error

	lastQuery string
	lastTopK  int
}

func (f *fakeKnowledgeBase) Add(_ context.Context, title, content string) (uuid.UUID, error) {
	if f.addErr != nil {
		return uuid.Nil, f.addErr
	}
	return uuid.New(), nil
}

func (f *fakeKnowledgeBase) Search(_ context.Context, query string, topK int) ([]knowledge.Match, error) {
	f.lastQuery = query
	f.lastTopK = topK
	return f.matches, f.searchErr
}

func newKnowledgeServer(t *testing.T, kb *fakeKnowledgeBase) *httptest.Server {
	t.Helper()
	h := NewKnowledgeHandler(kb, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestKnowledgeAddDocument(t *testing.T) {
	t.Parallel()

	srv := newKnowledgeServer(t, &fakeKnowledgeBase{})

	resp := postJSON(t, srv.URL+"/api/knowledge/documents",
		`{"title": "Sicilian Najdorf", "content": "5...a6 prepares ...e5 without allowing Bb5+."}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := uuid.Parse(out.ID); err != nil {
		t.Errorf("id = %q is not a UUID", out.ID)
	}
}

func TestKnowledgeAddDocument_Rejected(t *testing.T) {
	t.Parallel()

	kb := &fakeKnowledgeBase{addErr: errors.New("title is required")}
	srv := newKnowledgeServer(t, kb)

	resp := postJSON(t, srv.URL+"/api/knowledge/documents", `{"content": "no title"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestKnowledgeSearch(t *testing.T) {
	t.Parallel()

	kb := &fakeKnowledgeBase{matches: []knowledge.Match{
		{ID: uuid.New(), Title: "Najdorf", Content: "main line", Score: 0.91},
	}}
	srv := newKnowledgeServer(t, kb)

	resp := postJSON(t, srv.URL+"/api/knowledge/search", `{"query": "najdorf plans"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}

	var out struct {
		Matches []knowledge.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Matches) != 1 || out.Matches[0].Title != "Najdorf" {
		t.Errorf("matches = %+v", out.Matches)
	}
	if kb.lastTopK != 5 {
		t.Errorf("default topK = %d, want 5", kb.lastTopK)
	}
}

func TestKnowledgeSearch_LimitClamped(t *testing.T) {
	t.Parallel()

	kb := &fakeKnowledgeBase{}
	srv := newKnowledgeServer(t, kb)

	postJSON(t, srv.URL+"/api/knowledge/search", `{"query": "endgames", "limit": 99}`)
	if kb.lastTopK != 10 {
		t.Errorf("topK = %d, want clamp to 10", kb.lastTopK)
	}
}

func TestKnowledgeSearch_MissingQuery(t *testing.T) {
	t.Parallel()

	srv := newKnowledgeServer(t, &fakeKnowledgeBase{})

	resp := postJSON(t, srv.URL+"/api/knowledge/search", `{"query": "   "}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestKnowledgeSearch_EmptyMatches(t *testing.T) {
	t.Parallel()

	srv := newKnowledgeServer(t, &fakeKnowledgeBase{})

	resp := postJSON(t, srv.URL+"/api/knowledge/search", `{"query": "obscure gambit"}`)
	var out struct {
		Matches []knowledge.Match `json:"matches"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Matches == nil {
		t.Error("matches should serialize as an empty array, not null")
	}
}
