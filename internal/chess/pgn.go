// Package chess provides PGN parsing and game statistics for the
// analysis tools.
//
// Parsing and move replay are delegated to github.com/notnil/chess;
// this package layers the statistics the assistant reports: move
// counts, capture/check totals, a tactical-complexity score, opening
// family classification, and aggregates over multiple games.
package chess

import (
	"fmt"
	"strings"

	notnil "github.com/notnil/chess"
)

// ParseError indicates the input could not be parsed as PGN.
// It is recoverable at the tool layer: the orchestrator reports it to
// the model as tool output rather than failing the request.
type ParseError struct {
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing PGN: %v", e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Game wraps a parsed PGN game.
type Game struct {
	inner *notnil.Game
}

// ParseGame parses a single PGN game.
// Returns *ParseError when the input is not valid PGN.
func ParseGame(pgn string) (*Game, error) {
	if strings.TrimSpace(pgn) == "" {
		return nil, &ParseError{Err: fmt.Errorf("empty input")}
	}

	opt, err := notnil.PGN(strings.NewReader(pgn))
	if err != nil {
		return nil, &ParseError{Err: err}
	}
	return &Game{inner: notnil.NewGame(opt)}, nil
}

// LooksLikePGN reports whether text is plausibly PGN game data rather
// than a username or archive reference. Mirrors the heuristic the
// game-analyzer tool documents for its input: movetext with a common
// first move, or a PGN tag section.
func LooksLikePGN(text string) bool {
	if strings.Contains(text, "[Event") {
		return true
	}
	if !strings.Contains(text, "1.") {
		return false
	}
	for _, move := range []string{"e4", "d4", "Nf3", "c4"} {
		if strings.Contains(text, move) {
			return true
		}
	}
	return false
}

// Stats holds per-game statistics extracted from a parsed game.
type Stats struct {
	WhitePlayer   string `json:"whitePlayer"`
	BlackPlayer   string `json:"blackPlayer"`
	Result        string `json:"result"`
	Date          string `json:"date"`
	Event         string `json:"event"`
	Site          string `json:"site"`
	TimeControl   string `json:"timeControl"`
	ECO           string `json:"eco"`
	Opening       string `json:"opening"`
	OpeningFamily string `json:"openingFamily"`

	TotalMoves int `json:"totalMoves"`
	Captures   int `json:"captures"`
	Checks     int `json:"checks"`

	// TacticalComplexity is (captures+checks)/moves; a rough proxy for
	// how sharp the game was.
	TacticalComplexity float64 `json:"tacticalComplexity"`

	// GameLength classifies by ply count: short < 40 <= medium < 80 <= long.
	GameLength string `json:"gameLength"`
}

// tag returns a PGN header value, or fallback when absent.
func (g *Game) tag(key, fallback string) string {
	if tp := g.inner.GetTagPair(key); tp != nil && tp.Value != "" {
		return tp.Value
	}
	return fallback
}

// ExtractStats computes per-game statistics by replaying the move list.
func ExtractStats(g *Game) Stats {
	s := Stats{
		WhitePlayer: g.tag("White", "Unknown"),
		BlackPlayer: g.tag("Black", "Unknown"),
		Result:      g.tag("Result", "*"),
		Date:        g.tag("Date", "Unknown"),
		Event:       g.tag("Event", "Unknown"),
		Site:        g.tag("Site", "Unknown"),
		TimeControl: g.tag("TimeControl", "Unknown"),
		ECO:         g.tag("ECO", "Unknown"),
		Opening:     g.tag("Opening", "Unknown"),
	}
	s.OpeningFamily = ClassifyOpening(s.Opening)

	moves := g.inner.Moves()
	s.TotalMoves = len(moves)

	for _, m := range moves {
		if m.HasTag(notnil.Capture) || m.HasTag(notnil.EnPassant) {
			s.Captures++
		}
		if m.HasTag(notnil.Check) {
			s.Checks++
		}
	}

	denom := len(moves)
	if denom == 0 {
		denom = 1
	}
	s.TacticalComplexity = float64(s.Captures+s.Checks) / float64(denom)

	switch {
	case len(moves) < 40:
		s.GameLength = "short"
	case len(moves) < 80:
		s.GameLength = "medium"
	default:
		s.GameLength = "long"
	}

	return s
}

// openingFamilies maps a lowercase substring of the Opening header to
// its family name. Checked in order; first match wins.
var openingFamilies = []struct {
	substr string
	family string
}{
	{"sicilian", "Sicilian Defense"},
	{"french", "French Defense"},
	{"caro-kann", "Caro-Kann Defense"},
	{"queen's gambit", "Queen's Gambit"},
	{"king's indian", "King's Indian Defense"},
	{"english", "English Opening"},
	{"ruy lopez", "Ruy Lopez"},
	{"spanish", "Ruy Lopez"},
	{"italian", "Italian Game"},
	{"scandinavian", "Scandinavian Defense"},
}

// ClassifyOpening maps an Opening header value to a coarse family name.
// Unknown or unmatched openings classify as "Other".
func ClassifyOpening(opening string) string {
	lower := strings.ToLower(opening)
	for _, f := range openingFamilies {
		if strings.Contains(lower, f.substr) {
			return f.family
		}
	}
	return "Other"
}
