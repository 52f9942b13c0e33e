// Package tools provides the Genkit tools the assistant can call and
// their structured result envelope.
//
// The tool set is closed: every tool name lives in the registry below
// and is resolved through genkit.LookupTool, so an unknown name coming
// back from the model is a detectable error rather than a dispatch into
// nowhere.
//
// Handlers hold their dependencies (Chess.com client, knowledge store)
// in structs; the Genkit closures registered here are thin adapters.
package tools

import (
	"fmt"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
)

// Tool names registered with Genkit. Single source of truth.
const (
	PlayerProfileName   = "playerProfile"
	GameAnalyzerName    = "gameAnalyzer"
	RatingTrackerName   = "ratingTracker"
	SearchKnowledgeName = "searchKnowledge"
)

var toolNames = []string{
	PlayerProfileName,
	GameAnalyzerName,
	RatingTrackerName,
	SearchKnowledgeName,
}

// ToolNames returns all registered tool names.
func ToolNames() []string {
	out := make([]string, len(toolNames))
	copy(out, toolNames)
	return out
}

// RegisterTools registers the chess analysis and knowledge tools with
// Genkit and returns their refs for ai.WithTools.
func RegisterTools(g *genkit.Genkit, chess *Chess, knowledge *Knowledge) ([]ai.Tool, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if chess == nil {
		return nil, fmt.Errorf("chess handler is required")
	}
	if knowledge == nil {
		return nil, fmt.Errorf("knowledge handler is required")
	}

	return []ai.Tool{
		genkit.DefineTool(g, PlayerProfileName,
			"Get a Chess.com player's profile and current ratings. "+
				"Returns: account status, followers, join date, and per-time-control "+
				"rating, best rating, and win/loss/draw record. "+
				"Use this when the user asks about a player's profile, strength, or ratings.",
			chess.PlayerProfile),
		genkit.DefineTool(g, GameAnalyzerName,
			"Analyze chess games. Accepts raw PGN text for a single-game analysis, "+
				"a Chess.com username for an aggregate over their latest games, or "+
				"username/YYYY/MM for a specific monthly archive. "+
				"Returns: move counts, captures, checks, tactical complexity, opening "+
				"classification, and for aggregates the most common openings and win percentage.",
			chess.GameAnalyzer),
		genkit.DefineTool(g, RatingTrackerName,
			"Track a Chess.com player's rating development. "+
				"Returns: current and best rating per time control with win rates, "+
				"plus the opening repertoire seen in their recent games. "+
				"Use this when the user asks about rating trends or repertoire.",
			chess.RatingTracker),
		genkit.DefineTool(g, SearchKnowledgeName,
			"Search the chess knowledge base (openings, strategy, uploaded documents) "+
				"using semantic similarity. "+
				"Returns: matched entries with titles, content excerpts, and similarity scores. "+
				"Use this to ground explanations of openings, plans, and concepts. "+
				"Default limit: 5. Maximum: 10.",
			knowledge.Search),
	}, nil
}
