// Package chat exposes the analysis agent as a Genkit streaming flow.
//
// The flow is a thin wrapper: session resolution plus chunk forwarding.
// Orchestration lives in internal/agent.
package chat

import (
	"context"
	"fmt"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"

	"github.com/gambitlabs/gambit/internal/agent"
	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

// FlowName is the registered name of the chat flow in Genkit.
const FlowName = "gambit/chat"

// maxTitleLength bounds the session title derived from the first query.
const maxTitleLength = 80

// Input is the chat flow input. An empty SessionID starts a new
// conversation; the assigned ID comes back in Output.
type Input struct {
	Query     string `json:"query"`
	SessionID string `json:"sessionId,omitempty"`
}

// Output is the chat flow output.
type Output struct {
	Response  string `json:"response"`
	SessionID string `json:"sessionId"`
}

// StreamChunk is one streamed piece of the response text.
type StreamChunk struct {
	Text string `json:"text"`
}

// Flow is the chat flow type, exported for genkit.Handler in the API layer.
type Flow = core.Flow[Input, Output, StreamChunk]

// Runner is the orchestration surface the flow depends on.
// Satisfied by *agent.Agent.
type Runner interface {
	ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback agent.StreamCallback) (*agent.Response, error)
}

// Sessions is the session surface the flow depends on.
// Satisfied by *session.Store.
type Sessions interface {
	Create(ctx context.Context, title string) (*session.Session, error)
}

// NewFlow registers the chat flow with Genkit.
// Call once at startup; Genkit panics on re-registration.
func NewFlow(g *genkit.Genkit, runner Runner, sessions Sessions, logger log.Logger) *Flow {
	return genkit.DefineStreamingFlow(g, FlowName, handler(runner, sessions, logger))
}

// handler builds the flow function. Split from NewFlow so tests can
// exercise it without a Genkit instance.
func handler(runner Runner, sessions Sessions, logger log.Logger) func(context.Context, Input, func(context.Context, StreamChunk) error) (Output, error) {
	return func(ctx context.Context, input Input, streamCb func(context.Context, StreamChunk) error) (Output, error) {
		query := strings.TrimSpace(input.Query)
		if query == "" {
			return Output{}, fmt.Errorf("%w: empty query", agent.ErrExecutionFailed)
		}

		sessionID, created, err := resolveSession(ctx, sessions, input.SessionID, query)
		if err != nil {
			return Output{SessionID: input.SessionID}, err
		}
		if created {
			logger.Debug("started new session", "session", sessionID)
		}

		var callback agent.StreamCallback
		if streamCb != nil {
			callback = func(ctx context.Context, chunk *ai.ModelResponseChunk) error {
				if chunk == nil {
					return nil
				}
				for _, part := range chunk.Content {
					if part.Text == "" {
						continue
					}
					if err := streamCb(ctx, StreamChunk{Text: part.Text}); err != nil {
						return err
					}
				}
				return nil
			}
		}

		resp, err := runner.ExecuteStream(ctx, sessionID, query, callback)
		if err != nil {
			return Output{SessionID: sessionID.String()}, err
		}

		return Output{
			Response:  resp.FinalText,
			SessionID: sessionID.String(),
		}, nil
	}
}

// resolveSession parses the given session ID or starts a new session
// titled after the first query.
func resolveSession(ctx context.Context, sessions Sessions, raw, query string) (uuid.UUID, bool, error) {
	if raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, false, fmt.Errorf("%w: %w", agent.ErrInvalidSession, err)
		}
		return id, false, nil
	}

	title := query
	// Truncate on runes; a byte slice could split a multibyte character
	// and Postgres rejects invalid UTF-8 text.
	if runes := []rune(title); len(runes) > maxTitleLength {
		title = string(runes[:maxTitleLength])
	}
	sess, err := sessions.Create(ctx, title)
	if err != nil {
		return uuid.Nil, false, fmt.Errorf("creating session: %w", err)
	}
	return sess.ID, true, nil
}
