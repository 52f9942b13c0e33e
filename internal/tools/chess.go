package tools

// chess.go defines the Chess.com analysis tools the model can call:
// playerProfile, gameAnalyzer, and ratingTracker.
//
// Upstream failures are folded into the Result envelope so the model
// can react to a missing player or a malformed PGN instead of the
// whole request failing.

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/firebase/genkit/go/ai"

	"github.com/gambitlabs/gambit/internal/chess"
	"github.com/gambitlabs/gambit/internal/chesscom"
	"github.com/gambitlabs/gambit/internal/log"
)

// DefaultRecentGames is how many games the analysis tools pull from the
// latest archive when the caller does not say otherwise.
const DefaultRecentGames = 10

// MaxRecentGames caps a single aggregate analysis. A monthly archive of
// an active player can hold hundreds of games; replaying more than this
// adds latency without changing the aggregate meaningfully.
const MaxRecentGames = 50

// ChessAPI is the slice of the Chess.com client the tools need.
// Satisfied by *chesscom.Client; tests substitute a fake.
type ChessAPI interface {
	Profile(ctx context.Context, username string) (*chesscom.Profile, error)
	Stats(ctx context.Context, username string) (chesscom.Stats, error)
	MonthlyGames(ctx context.Context, username string, year, month int) ([]chesscom.Game, error)
	LatestGames(ctx context.Context, username string, limit int) ([]chesscom.Game, error)
}

// PlayerProfileInput is the playerProfile tool input.
type PlayerProfileInput struct {
	Username string `json:"username" jsonschema_description:"Chess.com username to look up"`
}

// GameAnalyzerInput is the gameAnalyzer tool input. Game accepts raw
// PGN text, a bare username (latest games), or username/YYYY/MM for a
// specific monthly archive.
type GameAnalyzerInput struct {
	Game string `json:"game" jsonschema_description:"PGN text, a Chess.com username, or username/YYYY/MM"`
}

// RatingTrackerInput is the ratingTracker tool input.
type RatingTrackerInput struct {
	Username string `json:"username" jsonschema_description:"Chess.com username to track"`
}

// Chess holds dependencies for the Chess.com tool handlers.
type Chess struct {
	api         ChessAPI
	recentLimit int
	logger      log.Logger
}

// NewChess creates the Chess.com tool handler set.
// recentLimit bounds aggregate analyses; values outside [1, MaxRecentGames]
// fall back to DefaultRecentGames.
func NewChess(api ChessAPI, recentLimit int, logger log.Logger) (*Chess, error) {
	if api == nil {
		return nil, fmt.Errorf("chess API client is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if recentLimit < 1 || recentLimit > MaxRecentGames {
		recentLimit = DefaultRecentGames
	}
	return &Chess{api: api, recentLimit: recentLimit, logger: logger}, nil
}

// PlayerProfile fetches a player's profile and current ratings.
func (c *Chess) PlayerProfile(ctx *ai.ToolContext, input PlayerProfileInput) (Result, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return errResult(ErrCodeExecution, "username is required"), nil
	}

	profile, err := c.api.Profile(ctx, username)
	if err != nil {
		return c.upstreamResult("profile", username, err), nil
	}

	data := map[string]any{
		"username":   profile.Username,
		"status":     profile.Status,
		"followers":  profile.Followers,
		"location":   profile.Location,
		"joined":     profile.Joined,
		"lastOnline": profile.LastOnline,
	}

	// Stats are best-effort: a valid account with no rated games 404s
	// on the stats endpoint.
	stats, err := c.api.Stats(ctx, username)
	if err != nil {
		var nf *chesscom.NotFoundError
		if !errors.As(err, &nf) {
			return c.upstreamResult("stats", username, err), nil
		}
	}
	data["ratings"] = ratingSummary(stats)

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Profile for %s", profile.Username),
		Data:    data,
	}, nil
}

// GameAnalyzer analyzes a single PGN, or aggregates a player's games.
func (c *Chess) GameAnalyzer(ctx *ai.ToolContext, input GameAnalyzerInput) (Result, error) {
	game := strings.TrimSpace(input.Game)
	if game == "" {
		return errResult(ErrCodeExecution, "game is required: PGN text, a username, or username/YYYY/MM"), nil
	}

	if chess.LooksLikePGN(game) {
		return c.analyzePGN(game), nil
	}

	if username, year, month, ok := parseArchiveRef(game); ok {
		games, err := c.api.MonthlyGames(ctx, username, year, month)
		if err != nil {
			return c.upstreamResult("games", username, err), nil
		}
		return c.aggregate(username, fmt.Sprintf("%04d/%02d", year, month), games), nil
	}

	games, err := c.api.LatestGames(ctx, game, c.recentLimit)
	if err != nil {
		return c.upstreamResult("games", game, err), nil
	}
	return c.aggregate(game, "latest archive", games), nil
}

// RatingTracker reports per-time-control rating analysis plus the
// opening repertoire seen in the player's latest archive.
func (c *Chess) RatingTracker(ctx *ai.ToolContext, input RatingTrackerInput) (Result, error) {
	username := strings.TrimSpace(input.Username)
	if username == "" {
		return errResult(ErrCodeExecution, "username is required"), nil
	}

	stats, err := c.api.Stats(ctx, username)
	if err != nil {
		return c.upstreamResult("stats", username, err), nil
	}

	data := map[string]any{
		"username": username,
		"ratings":  ratingSummary(stats),
	}

	// Repertoire is best-effort; rating analysis stands on its own.
	if games, err := c.api.LatestGames(ctx, username, c.recentLimit); err == nil {
		pgns := make([]string, 0, len(games))
		for _, g := range games {
			pgns = append(pgns, g.PGN)
		}
		agg := chess.AggregateGames(pgns)
		data["recentOpenings"] = agg.MostCommonOpenings
		data["recentWinPercentage"] = agg.WinPercentage
	} else {
		c.logger.Debug("rating tracker: skipping repertoire", "username", username, "error", err)
	}

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Rating analysis for %s", username),
		Data:    data,
	}, nil
}

func (c *Chess) analyzePGN(pgn string) Result {
	g, err := chess.ParseGame(pgn)
	if err != nil {
		var pe *chess.ParseError
		if errors.As(err, &pe) {
			return errResult(ErrCodeParse, "the provided text is not valid PGN: "+pe.Err.Error())
		}
		return errResult(ErrCodeExecution, err.Error())
	}

	stats := chess.ExtractStats(g)
	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Analyzed %s vs %s (%s)", stats.WhitePlayer, stats.BlackPlayer, stats.Result),
		Data: map[string]any{
			"stats": stats,
		},
	}
}

func (c *Chess) aggregate(username, source string, games []chesscom.Game) Result {
	if len(games) == 0 {
		return errResult(ErrCodeNotFound, fmt.Sprintf("no games found for %s in %s", username, source))
	}

	pgns := make([]string, 0, len(games))
	for _, g := range games {
		pgns = append(pgns, g.PGN)
	}
	agg := chess.AggregateGames(pgns)

	c.logger.Debug("aggregated games",
		"username", username, "source", source,
		"total", agg.TotalGames, "skipped", agg.SkippedGames)

	return Result{
		Status:  StatusSuccess,
		Message: fmt.Sprintf("Analyzed %d games for %s (%s)", agg.TotalGames, username, source),
		Data: map[string]any{
			"username":  username,
			"source":    source,
			"aggregate": agg,
		},
	}
}

// upstreamResult classifies a chesscom error into the Result envelope.
func (c *Chess) upstreamResult(what, username string, err error) Result {
	var nf *chesscom.NotFoundError
	if errors.As(err, &nf) {
		return errResult(ErrCodeNotFound, fmt.Sprintf("no %s found for %q on Chess.com", what, username))
	}

	var ue *chesscom.UpstreamError
	if errors.As(err, &ue) {
		c.logger.Warn("chess.com upstream failure", "what", what, "username", username, "error", err)
		return errResult(ErrCodeUpstream, fmt.Sprintf("Chess.com request for %s of %q failed: %v", what, username, err))
	}

	return errResult(ErrCodeExecution, err.Error())
}

// ratingSummary flattens per-time-control stats in stable order.
func ratingSummary(stats chesscom.Stats) []map[string]any {
	out := make([]map[string]any, 0, len(stats))
	for _, control := range chesscom.TimeControls {
		tc, ok := stats[control]
		if !ok {
			continue
		}
		total := tc.Record.Win + tc.Record.Loss + tc.Record.Draw
		entry := map[string]any{
			"timeControl": strings.TrimPrefix(control, "chess_"),
			"rating":      tc.Last.Rating,
			"best":        tc.Best.Rating,
			"wins":        tc.Record.Win,
			"losses":      tc.Record.Loss,
			"draws":       tc.Record.Draw,
			"games":       total,
		}
		if total > 0 {
			entry["winRate"] = float64(tc.Record.Win) / float64(total) * 100
		}
		out = append(out, entry)
	}
	return out
}

// parseArchiveRef splits "username/YYYY/MM" into its parts.
func parseArchiveRef(s string) (username string, year, month int, ok bool) {
	parts := strings.Split(s, "/")
	if len(parts) != 3 || parts[0] == "" {
		return "", 0, 0, false
	}
	year, err := strconv.Atoi(parts[1])
	if err != nil || year < 2000 || year > 2100 {
		return "", 0, 0, false
	}
	month, err = strconv.Atoi(parts[2])
	if err != nil || month < 1 || month > 12 {
		return "", 0, 0, false
	}
	return parts[0], year, month, true
}
