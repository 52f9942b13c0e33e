package knowledge

// queries.go implements Querier over a pgx connection pool.
//
// All statements are parameterized; the only dynamic values are bind
// arguments. The embedding column uses pgvector's cosine distance
// operator (<=>); similarity is 1 - distance.

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pgvector/pgvector-go"
)

// Querier is the database surface Store depends on.
// Implemented by *Queries; tests substitute a mock.
type Querier interface {
	UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error
	SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int) ([]Match, error)
	CountDocuments(ctx context.Context) (int, error)
	DeleteDocument(ctx context.Context, id uuid.UUID) error
}

// DB is the subset of pgxpool.Pool the queries use.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Queries runs the document statements against a pgx pool.
type Queries struct {
	db DB
}

// NewQueries creates a Queries over db.
func NewQueries(db DB) *Queries {
	return &Queries{db: db}
}

const upsertDocumentSQL = `
INSERT INTO documents (id, title, content, embedding, created_at)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE
SET title = EXCLUDED.title, content = EXCLUDED.content, embedding = EXCLUDED.embedding`

func (q *Queries) UpsertDocument(ctx context.Context, doc Document, embedding pgvector.Vector) error {
	_, err := q.db.Exec(ctx, upsertDocumentSQL,
		doc.ID, doc.Title, doc.Content, embedding, doc.CreatedAt)
	return err
}

const searchDocumentsSQL = `
SELECT id, title, content, 1 - (embedding <=> $1) AS score
FROM documents
ORDER BY embedding <=> $1
LIMIT $2`

func (q *Queries) SearchDocuments(ctx context.Context, embedding pgvector.Vector, limit int) ([]Match, error) {
	rows, err := q.db.Query(ctx, searchDocumentsSQL, embedding, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var matches []Match
	for rows.Next() {
		var m Match
		if err := rows.Scan(&m.ID, &m.Title, &m.Content, &m.Score); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, rows.Err()
}

func (q *Queries) CountDocuments(ctx context.Context) (int, error) {
	var count int
	err := q.db.QueryRow(ctx, `SELECT count(*) FROM documents`).Scan(&count)
	return count, err
}

func (q *Queries) DeleteDocument(ctx context.Context, id uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	return err
}
