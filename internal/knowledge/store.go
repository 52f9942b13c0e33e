// Package knowledge manages the chess knowledge base: document storage
// with vector embeddings and semantic search over PostgreSQL + pgvector.
//
// Store is safe for concurrent use by multiple goroutines.
package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"

	"github.com/gambitlabs/gambit/internal/log"
)

// Input limits for stored documents. Oversized content inflates
// embedding cost without improving retrieval.
const (
	MaxContentSize = 10_000
	MaxTitleLength = 500
)

// searchTimeout bounds embedding generation plus the vector query.
const searchTimeout = 10 * time.Second

// scoreThreshold drops matches with low cosine similarity; below this
// the snippet is noise rather than context.
const scoreThreshold = 0.3

// maxExcerptLength caps the content returned per match so a handful of
// matches never dominates the model's context window.
const maxExcerptLength = 1_500

// Document is a knowledge base entry.
type Document struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// Match is a single search result.
type Match struct {
	ID      uuid.UUID `json:"id"`
	Title   string    `json:"title"`
	Content string    `json:"content"`
	Score   float64   `json:"score"` // cosine similarity, 0..1
}

// Store manages knowledge documents: embedding generation on write,
// vector similarity search on read.
type Store struct {
	queries  Querier
	embedder ai.Embedder
	logger   log.Logger
}

// New creates a Store.
func New(queries Querier, embedder ai.Embedder, logger log.Logger) (*Store, error) {
	if queries == nil {
		return nil, fmt.Errorf("queries is required")
	}
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	return &Store{queries: queries, embedder: embedder, logger: logger}, nil
}

// Add embeds and stores a document, returning its generated ID.
func (s *Store) Add(ctx context.Context, title, content string) (uuid.UUID, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)

	switch {
	case title == "":
		return uuid.Nil, fmt.Errorf("title is required")
	case len(title) > MaxTitleLength:
		return uuid.Nil, fmt.Errorf("title exceeds %d characters", MaxTitleLength)
	case content == "":
		return uuid.Nil, fmt.Errorf("content is required")
	case len(content) > MaxContentSize:
		return uuid.Nil, fmt.Errorf("content exceeds %d bytes", MaxContentSize)
	}

	embedding, err := s.embed(ctx, content)
	if err != nil {
		return uuid.Nil, err
	}

	doc := Document{
		ID:        uuid.New(),
		Title:     title,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.queries.UpsertDocument(ctx, doc, embedding); err != nil {
		return uuid.Nil, fmt.Errorf("storing document %q: %w", title, err)
	}

	s.logger.Debug("added knowledge document", "id", doc.ID, "title", title, "bytes", len(content))
	return doc.ID, nil
}

// Search returns up to topK documents semantically similar to query,
// best match first. Low-similarity matches are filtered out, so the
// result may be shorter than topK or empty.
func (s *Store) Search(ctx context.Context, query string, topK int) ([]Match, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if topK < 1 {
		topK = 1
	}

	ctx, cancel := context.WithTimeout(ctx, searchTimeout)
	defer cancel()

	embedding, err := s.embed(ctx, expandQuery(query))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("query embedding timeout: %w", err)
		}
		return nil, err
	}

	matches, err := s.queries.SearchDocuments(ctx, embedding, topK)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("vector search timeout: %w", err)
		}
		return nil, fmt.Errorf("searching documents: %w", err)
	}

	out := matches[:0]
	for _, m := range matches {
		if m.Score < scoreThreshold {
			continue
		}
		if runes := []rune(m.Content); len(runes) > maxExcerptLength {
			m.Content = string(runes[:maxExcerptLength]) + "…"
		}
		out = append(out, m)
	}

	s.logger.Debug("knowledge search", "query", query, "matched", len(out), "requested", topK)
	return out, nil
}

// Count returns the number of stored documents.
func (s *Store) Count(ctx context.Context) (int, error) {
	return s.queries.CountDocuments(ctx)
}

// Delete removes a document.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.queries.DeleteDocument(ctx, id); err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	return nil
}

func (s *Store) embed(ctx context.Context, text string) (pgvector.Vector, error) {
	resp, err := s.embedder.Embed(ctx, &ai.EmbedRequest{
		Input: []*ai.Document{
			{Content: []*ai.Part{ai.NewTextPart(text)}},
		},
	})
	if err != nil {
		return pgvector.Vector{}, fmt.Errorf("generating embedding: %w", err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Embedding) == 0 {
		return pgvector.Vector{}, fmt.Errorf("embedder returned no embedding")
	}
	return pgvector.NewVector(resp.Embeddings[0].Embedding), nil
}

// expansions broadens common chess queries with the vocabulary the
// stored documents actually use, which tightens embedding similarity.
var expansions = []struct {
	substr string
	extra  string
}{
	{"opening", "chess opening theory"},
	{"endgame", "chess endgame technique"},
	{"middlegame", "chess middlegame strategy plans"},
	{"tactic", "chess tactics combinations"},
	{"sacrifice", "chess sacrifice attack"},
}

// expandQuery appends related chess terms for recognized topics.
func expandQuery(query string) string {
	lower := strings.ToLower(query)
	for _, e := range expansions {
		if strings.Contains(lower, e.substr) && !strings.Contains(lower, e.extra) {
			return query + " " + e.extra
		}
	}
	return query
}
