package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

type fakeSessionManager struct {
	sessions map[uuid.UUID]*session.Session
	deleted  []uuid.UUID
}

func newFakeSessionManager() *fakeSessionManager {
	return &fakeSessionManager{sessions: make(map[uuid.UUID]*session.Session)}
}

func (f *fakeSessionManager) Create(_ context.Context, title string) (*session.Session, error) {
	sess := &session.Session{ID: uuid.New(), Title: title}
	f.sessions[sess.ID] = sess
	return sess, nil
}

func (f *fakeSessionManager) Get(_ context.Context, id uuid.UUID) (*session.Session, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return sess, nil
}

func (f *fakeSessionManager) List(_ context.Context, _, _ int) ([]session.Session, error) {
	var out []session.Session
	for _, s := range f.sessions {
		out = append(out, *s)
	}
	return out, nil
}

func (f *fakeSessionManager) Delete(_ context.Context, id uuid.UUID) error {
	delete(f.sessions, id)
	f.deleted = append(f.deleted, id)
	return nil
}

func newSessionServer(t *testing.T) (*httptest.Server, *fakeSessionManager) {
	t.Helper()
	mgr := newFakeSessionManager()
	h := NewSessionHandler(mgr, log.NewNop())
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, mgr
}

func TestSessionCreateAndGet(t *testing.T) {
	t.Parallel()

	srv, _ := newSessionServer(t)

	resp := postJSON(t, srv.URL+"/api/sessions", `{"title": "Endgame study"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d", resp.StatusCode)
	}

	var created session.Session
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Title != "Endgame study" {
		t.Errorf("title = %q", created.Title)
	}

	getResp, err := http.Get(srv.URL + "/api/sessions/" + created.ID.String())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", getResp.StatusCode)
	}
}

func TestSessionGet_NotFound(t *testing.T) {
	t.Parallel()

	srv, _ := newSessionServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/" + uuid.NewString())
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSessionGet_InvalidID(t *testing.T) {
	t.Parallel()

	srv, _ := newSessionServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions/not-a-uuid")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSessionList_Empty(t *testing.T) {
	t.Parallel()

	srv, _ := newSessionServer(t)

	resp, err := http.Get(srv.URL + "/api/sessions")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()

	var out struct {
		Sessions []session.Session `json:"sessions"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Sessions == nil {
		t.Error("sessions should serialize as an empty array, not null")
	}
}

func TestSessionDelete(t *testing.T) {
	t.Parallel()

	srv, mgr := newSessionServer(t)
	sess, _ := mgr.Create(context.Background(), "doomed")

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/api/sessions/"+sess.ID.String(), nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("status = %d, want 204", resp.StatusCode)
	}
	if len(mgr.deleted) != 1 || mgr.deleted[0] != sess.ID {
		t.Errorf("deleted = %v", mgr.deleted)
	}
}
