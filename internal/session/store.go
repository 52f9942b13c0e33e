// Package session persists conversations server-side in PostgreSQL.
//
// A session is a UUID-keyed conversation; its messages are stored in
// order and rehydrated as Genkit ai.Messages for the next orchestration
// round. Clients hold only the session ID, never the state itself.
//
// Store is safe for concurrent use by multiple goroutines.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/log"
)

// ErrNotFound indicates the requested session does not exist.
// Check with errors.Is().
var ErrNotFound = errors.New("session not found")

// MaxHistoryMessages bounds how many messages are rehydrated per
// session. Conversations longer than this drop their oldest turns.
const MaxHistoryMessages = 200

// Session is one conversation.
type Session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// StoredMessage is the persisted form of one conversation message:
// the Genkit role plus the JSON-encoded content parts.
type StoredMessage struct {
	Role    string
	Content []byte
	Seq     int
}

// Store manages session persistence.
type Store struct {
	queries Querier
	logger  log.Logger
}

// New creates a Store.
func New(queries Querier, logger log.Logger) (*Store, error) {
	if queries == nil {
		return nil, fmt.Errorf("queries is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{queries: queries, logger: logger}, nil
}

// Create starts a new session. title may be empty.
func (s *Store) Create(ctx context.Context, title string) (*Session, error) {
	now := time.Now().UTC()
	sess := Session{
		ID:        uuid.New(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.queries.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	s.logger.Debug("created session", "id", sess.ID)
	return &sess, nil
}

// Get retrieves a session by ID. Returns ErrNotFound when absent.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*Session, error) {
	sess, err := s.queries.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// List returns sessions ordered by most recent activity.
func (s *Store) List(ctx context.Context, limit, offset int) ([]Session, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.queries.ListSessions(ctx, limit, offset)
}

// Delete removes a session and its messages.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	return s.queries.DeleteSession(ctx, id)
}

// Append stores messages at the end of the session's history in one
// transaction. Returns ErrNotFound when the session does not exist.
func (s *Store) Append(ctx context.Context, id uuid.UUID, messages []*ai.Message) error {
	if len(messages) == 0 {
		return nil
	}

	stored := make([]StoredMessage, 0, len(messages))
	for _, msg := range messages {
		content, err := json.Marshal(msg.Content)
		if err != nil {
			return fmt.Errorf("encoding message content: %w", err)
		}
		stored = append(stored, StoredMessage{
			Role:    string(msg.Role),
			Content: content,
		})
	}

	if err := s.queries.AppendMessages(ctx, id, stored); err != nil {
		return fmt.Errorf("appending %d messages to session %s: %w", len(stored), id, err)
	}

	s.logger.Debug("appended messages", "session", id, "count", len(stored))
	return nil
}

// History rehydrates the session's conversation as Genkit messages,
// oldest first, capped at MaxHistoryMessages (newest kept).
func (s *Store) History(ctx context.Context, id uuid.UUID) ([]*ai.Message, error) {
	stored, err := s.queries.GetMessages(ctx, id, MaxHistoryMessages)
	if err != nil {
		return nil, err
	}

	messages := make([]*ai.Message, 0, len(stored))
	for _, sm := range stored {
		var parts []*ai.Part
		if err := json.Unmarshal(sm.Content, &parts); err != nil {
			return nil, fmt.Errorf("decoding message %d of session %s: %w", sm.Seq, id, err)
		}
		messages = append(messages, &ai.Message{
			Role:    ai.Role(sm.Role),
			Content: parts,
		})
	}
	return messages, nil
}
