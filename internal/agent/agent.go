// Package agent runs the model/tool orchestration loop.
//
// One run: call the model with the full conversation, and while the
// response carries tool requests, execute them sequentially in request
// order, append the model message and one tool message per request, and
// call the model again. A response without tool requests is terminal.
// The loop is explicit (ai.WithReturnToolRequests) so ordering, the
// round bound, and failure classification stay under our control
// rather than inside the framework.
//
// Model calls go through a rate limiter, retry with exponential
// backoff, and a circuit breaker.
package agent

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

const (
	// PromptName is the dotprompt file the agent executes (prompts/gambit.prompt).
	// The model is configured in the prompt file, not here.
	PromptName = "gambit"

	// DefaultMaxRounds bounds the tool loop per run.
	DefaultMaxRounds = 8

	// FallbackResponse is returned when the model produces neither text
	// nor tool requests.
	FallbackResponse = "I couldn't generate a response. Please try rephrasing your question."
)

// Response is the result of one orchestration run.
type Response struct {
	FinalText string // model's final text output
	Rounds    int    // model calls made
	ToolCalls int    // tools executed
}

// StreamCallback receives each model response chunk as it is generated.
// Returning an error aborts the stream.
type StreamCallback func(ctx context.Context, chunk *ai.ModelResponseChunk) error

// SessionStore is the persistence surface the agent needs.
// Satisfied by *session.Store.
type SessionStore interface {
	Get(ctx context.Context, id uuid.UUID) (*session.Session, error)
	History(ctx context.Context, id uuid.UUID) ([]*ai.Message, error)
	Append(ctx context.Context, id uuid.UUID, messages []*ai.Message) error
}

// toolRunner is the executable slice of ai.Tool the loop uses.
type toolRunner interface {
	RunRaw(ctx context.Context, input any) (any, error)
}

// Config contains all parameters for the Agent.
type Config struct {
	Genkit       *genkit.Genkit
	SessionStore SessionStore
	Logger       log.Logger
	Tools        []ai.Tool // pre-registered via tools.RegisterTools

	MaxRounds int // tool loop bound (default DefaultMaxRounds)

	RetryConfig          RetryConfig          // zero value uses defaults
	CircuitBreakerConfig CircuitBreakerConfig // zero value uses defaults
	RateLimiter          *rate.Limiter        // nil uses default (10 rps, burst 30)
}

func (cfg Config) validate() error {
	if cfg.Genkit == nil {
		return errors.New("genkit instance is required")
	}
	if cfg.SessionStore == nil {
		return errors.New("session store is required")
	}
	if cfg.Logger == nil {
		return errors.New("logger is required")
	}
	if len(cfg.Tools) == 0 {
		return errors.New("at least one tool is required")
	}
	return nil
}

// Agent is the chess analysis assistant's orchestrator.
//
// All configuration is captured immutably at construction, so one
// Agent serves concurrent requests safely.
type Agent struct {
	maxRounds int

	retryConfig    RetryConfig
	circuitBreaker *CircuitBreaker
	rateLimiter    *rate.Limiter

	g        *genkit.Genkit
	sessions SessionStore
	logger   log.Logger
	toolRefs []ai.ToolRef

	// Seams for the model call and tool dispatch; production values are
	// set in New, tests substitute fakes.
	generate   func(ctx context.Context, opts ...ai.PromptExecuteOption) (*ai.ModelResponse, error)
	lookupTool func(name string) toolRunner
}

// New creates an Agent.
// Requires prompts/gambit.prompt to be loadable through the Genkit
// instance's prompt directory.
func New(cfg Config) (*Agent, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	maxRounds := cfg.MaxRounds
	if maxRounds <= 0 {
		maxRounds = DefaultMaxRounds
	}

	retryConfig := cfg.RetryConfig
	if retryConfig.MaxRetries == 0 {
		retryConfig = DefaultRetryConfig()
	}

	cbConfig := cfg.CircuitBreakerConfig
	if cbConfig.FailureThreshold == 0 {
		cbConfig = DefaultCircuitBreakerConfig()
	}

	rl := cfg.RateLimiter
	if rl == nil {
		rl = rate.NewLimiter(10, 30)
	}

	toolRefs := make([]ai.ToolRef, len(cfg.Tools))
	names := make([]string, len(cfg.Tools))
	for i, t := range cfg.Tools {
		toolRefs[i] = t
		names[i] = t.Name()
	}

	prompt := genkit.LookupPrompt(cfg.Genkit, PromptName)
	if prompt == nil {
		return nil, fmt.Errorf("dotprompt %q not found: check the prompts directory", PromptName)
	}

	a := &Agent{
		maxRounds:      maxRounds,
		retryConfig:    retryConfig,
		circuitBreaker: NewCircuitBreaker(cbConfig),
		rateLimiter:    rl,
		g:              cfg.Genkit,
		sessions:       cfg.SessionStore,
		logger:         cfg.Logger,
		toolRefs:       toolRefs,
		generate:       prompt.Execute,
	}
	a.lookupTool = func(name string) toolRunner {
		if t := genkit.LookupTool(a.g, name); t != nil {
			return t
		}
		return nil
	}

	a.logger.Info("agent initialized",
		"tools", strings.Join(names, ", "),
		"maxRounds", a.maxRounds)

	return a, nil
}

// Execute runs one orchestration without streaming.
func (a *Agent) Execute(ctx context.Context, sessionID uuid.UUID, input string) (*Response, error) {
	return a.ExecuteStream(ctx, sessionID, input, nil)
}

// ExecuteStream runs one orchestration, forwarding model chunks to
// callback when it is non-nil. The user input, every intermediate
// model/tool message, and the final answer are appended to the session.
func (a *Agent) ExecuteStream(ctx context.Context, sessionID uuid.UUID, input string, callback StreamCallback) (*Response, error) {
	if strings.TrimSpace(input) == "" {
		return nil, fmt.Errorf("%w: empty input", ErrExecutionFailed)
	}

	if _, err := a.sessions.Get(ctx, sessionID); err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidSession, sessionID)
		}
		return nil, fmt.Errorf("loading session: %w", err)
	}

	history, err := a.sessions.History(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}

	// Deep copy: Genkit mutates message content in place during
	// rendering, which races when runs share history objects.
	messages := deepCopyMessages(history)
	messages = append(messages, ai.NewUserMessage(ai.NewTextPart(input)))

	var toolCalls int
	for round := 1; round <= a.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := a.circuitBreaker.Allow(); err != nil {
			a.logger.Warn("circuit breaker rejecting request",
				"state", a.circuitBreaker.State().String())
			return nil, fmt.Errorf("model unavailable: %w", err)
		}

		resp, err := a.executeWithRetry(ctx, a.executeOpts(messages, callback))
		if err != nil {
			a.circuitBreaker.Failure()
			return nil, fmt.Errorf("%w: %w", ErrExecutionFailed, err)
		}
		a.circuitBreaker.Success()

		requests := resp.ToolRequests()
		if len(requests) == 0 {
			return a.finish(ctx, sessionID, resp, messages, len(history), round, toolCalls)
		}

		a.logger.Debug("model requested tools",
			"session", sessionID, "round", round, "count", len(requests))

		if resp.Message == nil {
			return nil, fmt.Errorf("%w: tool requests without a model message", ErrExecutionFailed)
		}
		messages = append(messages, resp.Message)

		// Execute sequentially in request order; each request gets its
		// own tool message carrying the matching Ref.
		for _, req := range requests {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			runner := a.lookupTool(req.Name)
			if runner == nil {
				return nil, fmt.Errorf("%w: %q", ErrUnknownTool, req.Name)
			}

			output, err := runner.RunRaw(ctx, req.Input)
			if err != nil {
				// Recoverable tool failures come back inside the Result
				// envelope; a Go error here means misconfiguration.
				return nil, fmt.Errorf("tool %s: %w", req.Name, err)
			}
			toolCalls++

			messages = append(messages, ai.NewMessage(ai.RoleTool, nil,
				ai.NewToolResponsePart(&ai.ToolResponse{
					Name:   req.Name,
					Ref:    req.Ref,
					Output: output,
				})))
		}
	}

	return nil, fmt.Errorf("%w: %d rounds", ErrRoundLimit, a.maxRounds)
}

// finish persists the run and builds the terminal response.
func (a *Agent) finish(ctx context.Context, sessionID uuid.UUID, resp *ai.ModelResponse, messages []*ai.Message, historyLen, rounds, toolCalls int) (*Response, error) {
	text := strings.TrimSpace(resp.Text())

	final := resp.Message
	if text == "" {
		a.logger.Warn("model returned empty terminal response", "session", sessionID)
		text = FallbackResponse
		final = nil
	}
	if final == nil {
		final = ai.NewModelMessage(ai.NewTextPart(text))
	}

	// Everything after the rehydrated history is new this run: the user
	// input plus intermediate tool traffic, then the final answer.
	newMessages := append(slices.Clone(messages[historyLen:]), final)
	if err := a.sessions.Append(ctx, sessionID, newMessages); err != nil {
		// The user still gets their answer; the session just loses this turn.
		a.logger.Error("failed to persist conversation turn",
			"session", sessionID, "error", err)
	}

	a.logger.Debug("run complete",
		"session", sessionID, "rounds", rounds, "toolCalls", toolCalls)

	return &Response{FinalText: text, Rounds: rounds, ToolCalls: toolCalls}, nil
}

func (a *Agent) executeOpts(messages []*ai.Message, callback StreamCallback) []ai.PromptExecuteOption {
	msgs := messages
	opts := []ai.PromptExecuteOption{
		ai.WithMessagesFn(func(_ context.Context, _ any) ([]*ai.Message, error) {
			return msgs, nil
		}),
		ai.WithTools(a.toolRefs...),
		ai.WithReturnToolRequests(true),
	}
	if callback != nil {
		opts = append(opts, ai.WithStreaming(ai.ModelStreamCallback(callback)))
	}
	return opts
}

// deepCopyMessages creates independent copies of messages and parts.
// Genkit's renderMessages() modifies msg.Content in place; shared
// history objects would race across concurrent runs.
func deepCopyMessages(msgs []*ai.Message) []*ai.Message {
	if msgs == nil {
		return nil
	}
	copied := make([]*ai.Message, len(msgs))
	for i, msg := range msgs {
		parts := make([]*ai.Part, len(msg.Content))
		for j, part := range msg.Content {
			parts[j] = deepCopyPart(part)
		}
		copied[i] = &ai.Message{
			Role:     msg.Role,
			Content:  parts,
			Metadata: shallowCopyMap(msg.Metadata),
		}
	}
	return copied
}

// deepCopyPart copies an ai.Part. ToolRequest.Input and
// ToolResponse.Output are copied by reference: Genkit only mutates the
// Content slice, not tool payloads.
func deepCopyPart(p *ai.Part) *ai.Part {
	if p == nil {
		return nil
	}
	cp := &ai.Part{
		Kind:        p.Kind,
		ContentType: p.ContentType,
		Text:        p.Text,
		Custom:      shallowCopyMap(p.Custom),
		Metadata:    shallowCopyMap(p.Metadata),
	}
	if p.ToolRequest != nil {
		cp.ToolRequest = &ai.ToolRequest{
			Input: p.ToolRequest.Input,
			Name:  p.ToolRequest.Name,
			Ref:   p.ToolRequest.Ref,
		}
	}
	if p.ToolResponse != nil {
		cp.ToolResponse = &ai.ToolResponse{
			Name:   p.ToolResponse.Name,
			Output: p.ToolResponse.Output,
			Ref:    p.ToolResponse.Ref,
		}
	}
	return cp
}

func shallowCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cp := make(map[string]any, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
