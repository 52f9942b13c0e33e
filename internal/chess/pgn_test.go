package chess

import (
	"errors"
	"testing"
)

// scholarsMate is a short decisive game with captures and checks.
const scholarsMate = `[Event "Casual Game"]
[Site "?"]
[Date "2024.01.15"]
[White "attacker"]
[Black "defender"]
[Result "1-0"]
[Opening "Italian Game"]
[ECO "C50"]
[TimeControl "600"]

1. e4 e5 2. Bc4 Nc6 3. Qh5 Nf6 4. Qxf7# 1-0`

const quietDraw = `[Event "Quiet Game"]
[White "a"]
[Black "b"]
[Result "1/2-1/2"]
[Opening "English Opening"]

1. c4 e5 2. g3 Nf6 3. Bg2 d5 4. cxd5 Nxd5 1/2-1/2`

func TestParseGame_Valid(t *testing.T) {
	t.Parallel()

	g, err := ParseGame(scholarsMate)
	if err != nil {
		t.Fatalf("ParseGame() = %v", err)
	}
	if g == nil {
		t.Fatal("ParseGame() returned nil game")
	}
}

func TestParseGame_Malformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
	}{
		{"not a pgn string", "not a pgn string"},
		{"empty", ""},
		{"whitespace only", "   \n\t"},
		{"illegal moves", "1. e9 z7 2. Qx9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ParseGame(tt.input)
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("ParseGame(%q) = %v, want *ParseError", tt.input, err)
			}
		})
	}
}

func TestExtractStats(t *testing.T) {
	t.Parallel()

	g, err := ParseGame(scholarsMate)
	if err != nil {
		t.Fatalf("ParseGame() = %v", err)
	}

	s := ExtractStats(g)

	if s.WhitePlayer != "attacker" || s.BlackPlayer != "defender" {
		t.Errorf("players = %q vs %q", s.WhitePlayer, s.BlackPlayer)
	}
	if s.Result != "1-0" {
		t.Errorf("result = %q", s.Result)
	}
	if s.TotalMoves != 7 {
		t.Errorf("total moves = %d, want 7 plies", s.TotalMoves)
	}
	// Qxf7# is both a capture and a check.
	if s.Captures != 1 {
		t.Errorf("captures = %d, want 1", s.Captures)
	}
	if s.Checks != 1 {
		t.Errorf("checks = %d, want 1", s.Checks)
	}
	if s.GameLength != "short" {
		t.Errorf("game length = %q, want short", s.GameLength)
	}
	if s.OpeningFamily != "Italian Game" {
		t.Errorf("opening family = %q", s.OpeningFamily)
	}
	want := float64(2) / 7
	if diff := s.TacticalComplexity - want; diff > 0.001 || diff < -0.001 {
		t.Errorf("tactical complexity = %f, want ~%f", s.TacticalComplexity, want)
	}
}

func TestExtractStats_MissingHeaders(t *testing.T) {
	t.Parallel()

	g, err := ParseGame("1. e4 e5 2. Nf3 *")
	if err != nil {
		t.Fatalf("ParseGame() = %v", err)
	}

	s := ExtractStats(g)
	if s.WhitePlayer != "Unknown" {
		t.Errorf("white = %q, want Unknown", s.WhitePlayer)
	}
	if s.Opening != "Unknown" {
		t.Errorf("opening = %q, want Unknown", s.Opening)
	}
	if s.OpeningFamily != "Other" {
		t.Errorf("family = %q, want Other", s.OpeningFamily)
	}
}

func TestLooksLikePGN(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"tag section", `[Event "x"]`, true},
		{"movetext e4", "1. e4 e5 2. Nf3", true},
		{"movetext d4", "1. d4 d5", true},
		{"username", "hikaru", false},
		{"archive ref", "hikaru/2024/01", false},
		{"numbered list", "1. first item", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := LooksLikePGN(tt.input); got != tt.want {
				t.Errorf("LooksLikePGN(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestClassifyOpening(t *testing.T) {
	t.Parallel()

	tests := []struct {
		opening string
		want    string
	}{
		{"Sicilian Defense: Najdorf Variation", "Sicilian Defense"},
		{"French Defense: Winawer", "French Defense"},
		{"Caro-Kann Defense", "Caro-Kann Defense"},
		{"Queen's Gambit Declined", "Queen's Gambit"},
		{"King's Indian Defense: Classical", "King's Indian Defense"},
		{"English Opening: Symmetrical", "English Opening"},
		{"Ruy Lopez: Berlin Defense", "Ruy Lopez"},
		{"Spanish Game", "Ruy Lopez"},
		{"Grob's Attack", "Other"},
		{"Unknown", "Other"},
	}

	for _, tt := range tests {
		t.Run(tt.opening, func(t *testing.T) {
			t.Parallel()
			if got := ClassifyOpening(tt.opening); got != tt.want {
				t.Errorf("ClassifyOpening(%q) = %q, want %q", tt.opening, got, tt.want)
			}
		})
	}
}

func TestAggregateGames(t *testing.T) {
	t.Parallel()

	agg := AggregateGames([]string{scholarsMate, quietDraw, "garbage input"})

	if agg.TotalGames != 2 {
		t.Errorf("total games = %d, want 2", agg.TotalGames)
	}
	if agg.SkippedGames != 1 {
		t.Errorf("skipped = %d, want 1", agg.SkippedGames)
	}
	if agg.Results["1-0"] != 1 || agg.Results["1/2-1/2"] != 1 {
		t.Errorf("results = %v", agg.Results)
	}
	if agg.WinPercentage != 50.0 {
		t.Errorf("win percentage = %f, want 50.0", agg.WinPercentage)
	}
	if len(agg.MostCommonOpenings) != 2 {
		t.Errorf("openings = %v", agg.MostCommonOpenings)
	}
	// (7 + 8) / 2 = 7.5
	if agg.AverageMoves != 7.5 {
		t.Errorf("average moves = %f, want 7.5", agg.AverageMoves)
	}
}

func TestAggregateGames_AllInvalid(t *testing.T) {
	t.Parallel()

	agg := AggregateGames([]string{"nope", ""})
	if agg.TotalGames != 0 {
		t.Errorf("total games = %d, want 0", agg.TotalGames)
	}
	if agg.SkippedGames != 2 {
		t.Errorf("skipped = %d, want 2", agg.SkippedGames)
	}
}

func TestTopOpenings_Deterministic(t *testing.T) {
	t.Parallel()

	counts := map[string]int{"B": 2, "A": 2, "C": 5, "D": 1}
	got := topOpenings(counts, 3)

	want := []OpeningCount{{"C", 5}, {"A", 2}, {"B", 2}}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}
