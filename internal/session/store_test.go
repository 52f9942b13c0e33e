package session

import (
	"context"
	"errors"
	"testing"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/log"
)

// mockQuerier implements Querier in memory.
type mockQuerier struct {
	sessions map[uuid.UUID]Session
	messages map[uuid.UUID][]StoredMessage
}

func newMockQuerier() *mockQuerier {
	return &mockQuerier{
		sessions: make(map[uuid.UUID]Session),
		messages: make(map[uuid.UUID][]StoredMessage),
	}
}

func (m *mockQuerier) CreateSession(_ context.Context, sess Session) error {
	m.sessions[sess.ID] = sess
	return nil
}

func (m *mockQuerier) GetSession(_ context.Context, id uuid.UUID) (Session, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return Session{}, ErrNotFound
	}
	return sess, nil
}

func (m *mockQuerier) ListSessions(_ context.Context, limit, _ int) ([]Session, error) {
	out := make([]Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, s)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *mockQuerier) DeleteSession(_ context.Context, id uuid.UUID) error {
	delete(m.sessions, id)
	delete(m.messages, id)
	return nil
}

func (m *mockQuerier) AppendMessages(_ context.Context, id uuid.UUID, messages []StoredMessage) error {
	if _, ok := m.sessions[id]; !ok {
		return ErrNotFound
	}
	seq := len(m.messages[id])
	for _, msg := range messages {
		seq++
		msg.Seq = seq
		m.messages[id] = append(m.messages[id], msg)
	}
	return nil
}

func (m *mockQuerier) GetMessages(_ context.Context, id uuid.UUID, limit int) ([]StoredMessage, error) {
	msgs := m.messages[id]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func newTestStore(t *testing.T) (*Store, *mockQuerier) {
	t.Helper()
	q := newMockQuerier()
	s, err := New(q, log.NewNop())
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return s, q
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "opening prep")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}
	if sess.ID == uuid.Nil {
		t.Fatal("session has nil id")
	}

	got, err := s.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get() = %v", err)
	}
	if got.Title != "opening prep" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestGet_NotFound(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), uuid.New())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get() = %v, want ErrNotFound", err)
	}
}

func TestAppendAndHistory_Roundtrip(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	sess, err := s.Create(ctx, "")
	if err != nil {
		t.Fatalf("Create() = %v", err)
	}

	in := []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("analyze hikaru")),
		ai.NewModelMessage(ai.NewTextPart("Here is the analysis.")),
	}
	if err := s.Append(ctx, sess.ID, in); err != nil {
		t.Fatalf("Append() = %v", err)
	}

	got, err := s.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("History() = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("history has %d messages, want 2", len(got))
	}
	if got[0].Role != ai.RoleUser || got[1].Role != ai.RoleModel {
		t.Errorf("roles = %v, %v", got[0].Role, got[1].Role)
	}
	if got[0].Content[0].Text != "analyze hikaru" {
		t.Errorf("text = %q", got[0].Content[0].Text)
	}
}

func TestAppend_UnknownSession(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	err := s.Append(context.Background(), uuid.New(), []*ai.Message{
		ai.NewUserMessage(ai.NewTextPart("hi")),
	})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Append() = %v, want ErrNotFound", err)
	}
}

func TestAppend_Empty(t *testing.T) {
	t.Parallel()

	s, q := newTestStore(t)
	if err := s.Append(context.Background(), uuid.New(), nil); err != nil {
		t.Fatalf("Append(nil) = %v, want no-op", err)
	}
	if len(q.messages) != 0 {
		t.Error("no-op append stored messages")
	}
}

func TestHistory_ToolMessages(t *testing.T) {
	t.Parallel()

	s, _ := newTestStore(t)
	ctx := context.Background()

	sess, _ := s.Create(ctx, "")

	toolMsg := ai.NewMessage(ai.RoleTool, nil, ai.NewToolResponsePart(&ai.ToolResponse{
		Name:   "playerProfile",
		Output: map[string]any{"status": "success"},
	}))
	if err := s.Append(ctx, sess.ID, []*ai.Message{toolMsg}); err != nil {
		t.Fatalf("Append() = %v", err)
	}

	got, err := s.History(ctx, sess.ID)
	if err != nil {
		t.Fatalf("History() = %v", err)
	}
	if got[0].Role != ai.RoleTool {
		t.Errorf("role = %v", got[0].Role)
	}
	tr := got[0].Content[0].ToolResponse
	if tr == nil || tr.Name != "playerProfile" {
		t.Errorf("tool response = %+v", tr)
	}
}
