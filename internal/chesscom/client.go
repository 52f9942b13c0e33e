// Package chesscom provides a read-only client for the Chess.com public API.
//
// The client covers the four endpoints the analysis tools need: player
// profile, player stats, the monthly archive index, and one month of
// games. All methods are safe for concurrent use; a single pooled
// http.Client is shared across in-flight requests.
//
// Error contract: a 404 from the upstream maps to *NotFoundError, any
// other transport or HTTP failure maps to *UpstreamError. Callers pick
// the class apart with errors.As().
package chesscom

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gambitlabs/gambit/internal/log"
)

// DefaultBaseURL is the Chess.com public data API root.
const DefaultBaseURL = "https://api.chess.com/pub"

// maxResponseSize bounds upstream response bodies. Monthly archives of
// very active players run to a few MB of PGN; 20MB leaves headroom
// without risking unbounded reads.
const maxResponseSize int64 = 20 * 1024 * 1024

// NotFoundError indicates the requested player or archive does not exist upstream.
type NotFoundError struct {
	Resource string // e.g. "player hikaru"
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("chess.com: %s not found", e.Resource)
}

// UpstreamError indicates a transport or non-404 HTTP failure from Chess.com.
type UpstreamError struct {
	Resource string
	Status   int // 0 for transport errors
	Err      error
}

func (e *UpstreamError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("chess.com: fetching %s: HTTP %d", e.Resource, e.Status)
	}
	return fmt.Sprintf("chess.com: fetching %s: %v", e.Resource, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// Client is a Chess.com public API client.
// The zero value is not usable; construct with New.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root. Used by tests to point at a
// local httptest server.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithHTTPClient replaces the underlying http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a Chess.com API client.
// The default http.Client carries a 30s timeout and pooled transport,
// shared safely by concurrent requests.
func New(logger log.Logger, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Profile is a Chess.com player profile.
type Profile struct {
	Username   string `json:"username"`
	Status     string `json:"status"`
	Followers  int    `json:"followers"`
	Location   string `json:"location"`
	Joined     int64  `json:"joined"`
	LastOnline int64  `json:"last_online"`
}

// RatingSnapshot is a single rating observation.
type RatingSnapshot struct {
	Rating int   `json:"rating"`
	Date   int64 `json:"date"`
}

// Record is the win/loss/draw record for one time control.
type Record struct {
	Win  int `json:"win"`
	Loss int `json:"loss"`
	Draw int `json:"draw"`
}

// TimeControlStats holds per-time-control stats (rapid, blitz, bullet, daily).
type TimeControlStats struct {
	Last   RatingSnapshot `json:"last"`
	Best   RatingSnapshot `json:"best"`
	Record Record         `json:"record"`
}

// Stats maps "chess_rapid", "chess_blitz", "chess_bullet", "chess_daily"
// to their stats. Controls the player never used are absent.
type Stats map[string]TimeControlStats

// TimeControls lists the stat keys in a stable presentation order.
var TimeControls = []string{"chess_rapid", "chess_blitz", "chess_bullet", "chess_daily"}

// Game is one archived game.
type Game struct {
	PGN         string   `json:"pgn"`
	ECO         string   `json:"eco"` // opening reference URL
	TimeControl string   `json:"time_control"`
	EndTime     int64    `json:"end_time"`
	White       GameSide `json:"white"`
	Black       GameSide `json:"black"`
}

// GameSide identifies one side of an archived game.
type GameSide struct {
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Result   string `json:"result"`
}

// Profile fetches a player's public profile.
func (c *Client) Profile(ctx context.Context, username string) (*Profile, error) {
	var p Profile
	resource := "player " + username
	if err := c.getJSON(ctx, "/player/"+url.PathEscape(username), resource, &p); err != nil {
		return nil, err
	}
	if p.Username == "" {
		p.Username = username
	}
	return &p, nil
}

// Stats fetches a player's per-time-control statistics.
func (c *Client) Stats(ctx context.Context, username string) (Stats, error) {
	var s Stats
	resource := "stats for " + username
	if err := c.getJSON(ctx, "/player/"+url.PathEscape(username)+"/stats", resource, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Archives fetches the list of monthly archive URLs for a player,
// oldest first (upstream ordering).
func (c *Client) Archives(ctx context.Context, username string) ([]string, error) {
	var out struct {
		Archives []string `json:"archives"`
	}
	resource := "archives for " + username
	if err := c.getJSON(ctx, "/player/"+url.PathEscape(username)+"/games/archives", resource, &out); err != nil {
		return nil, err
	}
	return out.Archives, nil
}

// MonthlyGames fetches one month of games for a player.
// month is 1..12 and is zero-padded in the request path.
func (c *Client) MonthlyGames(ctx context.Context, username string, year, month int) ([]Game, error) {
	path := fmt.Sprintf("/player/%s/games/%04d/%02d", url.PathEscape(username), year, month)
	resource := fmt.Sprintf("games for %s %04d/%02d", username, year, month)

	var out struct {
		Games []Game `json:"games"`
	}
	if err := c.getJSON(ctx, path, resource, &out); err != nil {
		return nil, err
	}
	return out.Games, nil
}

// LatestGames fetches the most recent archive and returns up to limit
// games from its tail (newest games last in the upstream payload).
func (c *Client) LatestGames(ctx context.Context, username string, limit int) ([]Game, error) {
	archives, err := c.Archives(ctx, username)
	if err != nil {
		return nil, err
	}
	if len(archives) == 0 {
		return nil, &NotFoundError{Resource: "game archives for " + username}
	}

	// Archive URLs are absolute; fetch the most recent one directly.
	var out struct {
		Games []Game `json:"games"`
	}
	resource := "recent games for " + username
	if err := c.getJSONURL(ctx, archives[len(archives)-1], resource, &out); err != nil {
		return nil, err
	}

	games := out.Games
	if limit > 0 && len(games) > limit {
		games = games[len(games)-limit:]
	}
	return games, nil
}

// getJSON performs a GET against baseURL+path and decodes the body into v.
func (c *Client) getJSON(ctx context.Context, path, resource string, v any) error {
	return c.getJSONURL(ctx, c.baseURL+path, resource, v)
}

func (c *Client) getJSONURL(ctx context.Context, fullURL, resource string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return &UpstreamError{Resource: resource, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "gambit/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("chess.com request failed", "resource", resource, "error", err)
		return &UpstreamError{Resource: resource, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{Resource: resource}
	case resp.StatusCode != http.StatusOK:
		c.logger.Warn("chess.com non-200 response", "resource", resource, "status", resp.StatusCode)
		return &UpstreamError{Resource: resource, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return &UpstreamError{Resource: resource, Err: fmt.Errorf("reading response: %w", err)}
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &UpstreamError{Resource: resource, Err: fmt.Errorf("decoding response: %w", err)}
	}

	c.logger.Debug("chess.com request succeeded", "resource", resource, "bytes", len(body))
	return nil
}
