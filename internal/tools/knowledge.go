package tools

// knowledge.go defines the searchKnowledge tool: semantic retrieval
// over the chess knowledge base (openings, strategy notes, uploaded
// documents).

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/gambitlabs/gambit/internal/knowledge"
	"github.com/gambitlabs/gambit/internal/log"
)

// Limits for knowledge searches.
const (
	DefaultKnowledgeTopK = 5
	MaxKnowledgeTopK     = 10
)

// KnowledgeSearchInput is the searchKnowledge tool input.
type KnowledgeSearchInput struct {
	Query string `json:"query" jsonschema_description:"The search query string"`
	Limit int    `json:"limit,omitempty" jsonschema_description:"Maximum results to return (1-10)"`
}

// KnowledgeSearcher is the retrieval interface the tool depends on.
// Satisfied by *knowledge.Store.
type KnowledgeSearcher interface {
	Search(ctx context.Context, query string, topK int) ([]knowledge.Match, error)
}

// Knowledge holds dependencies for the knowledge search handler.
type Knowledge struct {
	searcher KnowledgeSearcher
	topK     int
	logger   log.Logger
}

// NewKnowledge creates the knowledge tool handler.
// defaultTopK outside [1, MaxKnowledgeTopK] falls back to DefaultKnowledgeTopK.
func NewKnowledge(searcher KnowledgeSearcher, defaultTopK int, logger log.Logger) (*Knowledge, error) {
	if searcher == nil {
		return nil, fmt.Errorf("knowledge searcher is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if defaultTopK < 1 || defaultTopK > MaxKnowledgeTopK {
		defaultTopK = DefaultKnowledgeTopK
	}
	return &Knowledge{searcher: searcher, topK: defaultTopK, logger: logger}, nil
}

// Search runs a semantic query against the knowledge base.
func (k *Knowledge) Search(ctx *ai.ToolContext, input KnowledgeSearchInput) (Result, error) {
	query := strings.TrimSpace(input.Query)
	if query == "" {
		return errResult(ErrCodeExecution, "query is required"), nil
	}

	limit := clampLimit(input.Limit, k.topK)

	matches, err := k.searcher.Search(ctx, query, limit)
	if err != nil {
		k.logger.Warn("knowledge search failed", "query", query, "error", err)
		return errResult(ErrCodeExecution, fmt.Sprintf("knowledge search failed: %v", err)), nil
	}

	if len(matches) == 0 {
		return Result{
			Status:  StatusSuccess,
			Message: "No relevant knowledge found",
			Data:    map[string]any{"query": query, "matches": []knowledge.Match{}},
		}, nil
	}

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Found %d knowledge entries", len(matches)),
		Data: map[string]any{
			"query":   query,
			"matches": matches,
		},
	}, nil
}

// clampLimit returns a value within [1, MaxKnowledgeTopK], using
// defaultVal when limit is unset or non-positive.
func clampLimit(limit, defaultVal int) int {
	if limit <= 0 {
		return defaultVal
	}
	if limit > MaxKnowledgeTopK {
		return MaxKnowledgeTopK
	}
	return limit
}
