package chess

import (
	"math"
	"sort"
)

// OpeningCount pairs an opening name with how often it appeared.
type OpeningCount struct {
	Opening string `json:"opening"`
	Count   int    `json:"count"`
}

// Aggregate holds statistics over a batch of games.
type Aggregate struct {
	TotalGames                int     `json:"totalGames"`
	SkippedGames              int     `json:"skippedGames"` // games that failed to parse
	AverageMoves              float64 `json:"averageMoves"`
	AverageTacticalComplexity float64 `json:"averageTacticalComplexity"`

	// MostCommonOpenings lists up to the five most frequent openings,
	// most frequent first. Ties break alphabetically for determinism.
	MostCommonOpenings []OpeningCount `json:"mostCommonOpenings"`

	// Results counts games by PGN result string.
	Results map[string]int `json:"results"`

	// WinPercentage is the share of games won by White, in percent.
	WinPercentage float64 `json:"winPercentage"`
}

// AggregateGames parses each PGN and computes batch statistics.
// Unparseable games are skipped and counted in SkippedGames; the
// aggregate covers only games that parsed. Returns a zero-value
// Aggregate when no game parses.
func AggregateGames(pgns []string) Aggregate {
	agg := Aggregate{
		Results: map[string]int{"1-0": 0, "0-1": 0, "1/2-1/2": 0, "*": 0},
	}

	openings := make(map[string]int)
	var totalMoves, parsed int
	var totalComplexity float64

	for _, pgn := range pgns {
		g, err := ParseGame(pgn)
		if err != nil {
			agg.SkippedGames++
			continue
		}
		parsed++

		s := ExtractStats(g)
		totalMoves += s.TotalMoves
		totalComplexity += s.TacticalComplexity
		openings[s.Opening]++
		if _, known := agg.Results[s.Result]; known {
			agg.Results[s.Result]++
		} else {
			agg.Results["*"]++
		}
	}

	agg.TotalGames = parsed
	if parsed == 0 {
		return agg
	}

	agg.AverageMoves = round1(float64(totalMoves) / float64(parsed))
	agg.AverageTacticalComplexity = round3(totalComplexity / float64(parsed))
	agg.MostCommonOpenings = topOpenings(openings, 5)
	agg.WinPercentage = round1(float64(agg.Results["1-0"]) / float64(parsed) * 100)

	return agg
}

// topOpenings returns the n most frequent openings, most frequent
// first, ties broken alphabetically.
func topOpenings(counts map[string]int, n int) []OpeningCount {
	out := make([]OpeningCount, 0, len(counts))
	for opening, count := range counts {
		out = append(out, OpeningCount{Opening: opening, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Opening < out[j].Opening
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func round1(f float64) float64 { return math.Round(f*10) / 10 }
func round3(f float64) float64 { return math.Round(f*1000) / 1000 }
