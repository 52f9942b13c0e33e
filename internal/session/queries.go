package session

// queries.go implements Querier over a pgx connection pool.
//
// AppendMessages serializes concurrent appends to the same session by
// locking the session row, so sequence numbers stay gapless and
// ordered even under concurrent requests.

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the database surface Store depends on.
// Implemented by *Queries; tests substitute a mock.
type Querier interface {
	CreateSession(ctx context.Context, sess Session) error
	GetSession(ctx context.Context, id uuid.UUID) (Session, error)
	ListSessions(ctx context.Context, limit, offset int) ([]Session, error)
	DeleteSession(ctx context.Context, id uuid.UUID) error
	AppendMessages(ctx context.Context, id uuid.UUID, messages []StoredMessage) error
	GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]StoredMessage, error)
}

// DB is the subset of pgxpool.Pool the queries use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Queries runs the session statements against a pgx pool.
type Queries struct {
	db DB
}

// NewQueries creates a Queries over db.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

func (q *Queries) CreateSession(ctx context.Context, sess Session) error {
	_, err := q.db.Exec(ctx,
		`INSERT INTO sessions (id, title, created_at, updated_at) VALUES ($1, $2, $3, $4)`,
		sess.ID, sess.Title, sess.CreatedAt, sess.UpdatedAt)
	return err
}

func (q *Queries) GetSession(ctx context.Context, id uuid.UUID) (Session, error) {
	var sess Session
	err := q.db.QueryRow(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions WHERE id = $1`, id).
		Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Session{}, ErrNotFound
	}
	return sess, err
}

func (q *Queries) ListSessions(ctx context.Context, limit, offset int) ([]Session, error) {
	rows, err := q.db.Query(ctx,
		`SELECT id, title, created_at, updated_at FROM sessions
		 ORDER BY updated_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []Session
	for rows.Next() {
		var sess Session
		if err := rows.Scan(&sess.ID, &sess.Title, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

func (q *Queries) DeleteSession(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	return err
}

func (q *Queries) AppendMessages(ctx context.Context, id uuid.UUID, messages []StoredMessage) error {
	tx, err := q.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	// Lock the session row; concurrent appends queue here.
	var locked uuid.UUID
	err = tx.QueryRow(ctx, `SELECT id FROM sessions WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var seq int
	if err := tx.QueryRow(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM session_messages WHERE session_id = $1`, id).
		Scan(&seq); err != nil {
		return err
	}

	for _, msg := range messages {
		seq++
		if _, err := tx.Exec(ctx,
			`INSERT INTO session_messages (session_id, seq, role, content) VALUES ($1, $2, $3, $4)`,
			id, seq, msg.Role, msg.Content); err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx,
		`UPDATE sessions SET updated_at = now() WHERE id = $1`, id); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// GetMessages returns the newest limit messages in ascending order.
func (q *Queries) GetMessages(ctx context.Context, id uuid.UUID, limit int) ([]StoredMessage, error) {
	rows, err := q.db.Query(ctx,
		`SELECT role, content, seq FROM (
		   SELECT role, content, seq FROM session_messages
		   WHERE session_id = $1 ORDER BY seq DESC LIMIT $2
		 ) tail ORDER BY seq ASC`, id, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []StoredMessage
	for rows.Next() {
		var m StoredMessage
		if err := rows.Scan(&m.Role, &m.Content, &m.Seq); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
