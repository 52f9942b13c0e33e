package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/compat_oai/openai"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"github.com/gambitlabs/gambit/db"
	"github.com/gambitlabs/gambit/internal/agent"
	"github.com/gambitlabs/gambit/internal/chat"
	"github.com/gambitlabs/gambit/internal/chesscom"
	"github.com/gambitlabs/gambit/internal/config"
	"github.com/gambitlabs/gambit/internal/knowledge"
	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/observability"
	"github.com/gambitlabs/gambit/internal/session"
	"github.com/gambitlabs/gambit/internal/tools"
)

// Setup creates and initializes the application.
// Returns an App with embedded cleanup — call Close() to release.
func Setup(ctx context.Context, cfg *config.Config, logger log.Logger) (_ *App, retErr error) {
	a := &App{Config: cfg, Logger: logger}

	// On error, release everything already initialized.
	defer func() {
		if retErr != nil {
			if err := a.Close(); err != nil {
				logger.Warn("cleanup during setup failure", "error", err)
			}
		}
	}()

	// Tracing must be registered before genkit.Init so the
	// TracerProvider is ready when the first flow executes.
	a.otelCleanup = observability.Setup(ctx, observability.Config{
		Endpoint:    cfg.OTLPEndpoint,
		ServiceName: cfg.ServiceName,
		Environment: cfg.Environment,
	}, logger)

	pool, err := provideDBPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	a.DBPool = pool

	g, err := provideGenkit(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	a.Genkit = g

	embedder := provideEmbedder(g, cfg)
	if embedder == nil {
		return nil, fmt.Errorf("embedder %q not found for provider %q", cfg.EmbedderModel, cfg.Provider)
	}
	a.Embedder = embedder

	a.Chess = chesscom.New(logger,
		chesscom.WithBaseURL(cfg.ChessBaseURL),
		chesscom.WithHTTPClient(&http.Client{
			Timeout: time.Duration(cfg.ChessTimeoutSecs) * time.Second,
		}))

	a.Knowledge, err = knowledge.New(knowledge.NewQueries(pool), embedder, logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge store: %w", err)
	}

	a.Sessions, err = session.New(session.NewQueries(pool), logger)
	if err != nil {
		return nil, fmt.Errorf("creating session store: %w", err)
	}

	allTools, err := provideTools(a)
	if err != nil {
		return nil, err
	}

	a.Agent, err = agent.New(agent.Config{
		Genkit:       g,
		SessionStore: a.Sessions,
		Logger:       logger,
		Tools:        allTools,
		MaxRounds:    cfg.MaxRounds,
	})
	if err != nil {
		return nil, fmt.Errorf("creating agent: %w", err)
	}

	a.Flow = chat.NewFlow(g, a.Agent, a.Sessions, logger)

	return a, nil
}

// provideDBPool runs migrations and creates the PostgreSQL pool.
// pgvector types are registered on every new connection so embedding
// columns scan directly into pgvector.Vector.
func provideDBPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	if err := db.Migrate(cfg.PostgresURL()); err != nil {
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, fmt.Errorf("parsing connection config: %w", err)
	}

	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = 1 * time.Minute
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvector.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, nil
}

// provideGenkit initializes Genkit with the configured model provider.
// Supports gemini (default) and openai.
func provideGenkit(ctx context.Context, cfg *config.Config, logger log.Logger) (*genkit.Genkit, error) {
	promptDir := cfg.PromptDir
	if promptDir == "" {
		promptDir = "prompts"
	}

	var g *genkit.Genkit

	switch cfg.Provider {
	case config.ProviderOpenAI:
		g = genkit.Init(ctx,
			genkit.WithPlugins(&openai.OpenAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with openai provider")
		}
		logger.Info("initialized Genkit with openai provider", "model", cfg.ModelName)

	default: // gemini
		g = genkit.Init(ctx,
			genkit.WithPlugins(&googlegenai.GoogleAI{}),
			genkit.WithPromptDir(promptDir),
		)
		if g == nil {
			return nil, errors.New("initializing genkit with gemini provider")
		}
		logger.Info("initialized Genkit with gemini provider", "model", cfg.ModelName)
	}

	return g, nil
}

// provideEmbedder looks up the embedder registered by the provider plugin.
//   - gemini: GoogleAIEmbedder(g, modelName)
//   - openai: auto-registered in Init(), looked up by model name
func provideEmbedder(g *genkit.Genkit, cfg *config.Config) ai.Embedder {
	switch cfg.Provider {
	case config.ProviderOpenAI:
		return genkit.LookupEmbedder(g, api.NewName("openai", cfg.EmbedderModel))
	default:
		return googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel)
	}
}

// provideTools creates the toolsets and registers them with Genkit.
func provideTools(a *App) ([]ai.Tool, error) {
	cfg := a.Config

	chessTools, err := tools.NewChess(a.Chess, cfg.RecentGamesLimit, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating chess tools: %w", err)
	}

	knowledgeTool, err := tools.NewKnowledge(a.Knowledge, cfg.KnowledgeTopK, a.Logger)
	if err != nil {
		return nil, fmt.Errorf("creating knowledge tool: %w", err)
	}

	allTools, err := tools.RegisterTools(a.Genkit, chessTools, knowledgeTool)
	if err != nil {
		return nil, fmt.Errorf("registering tools: %w", err)
	}

	a.Logger.Info("tools registered", "count", len(allTools))
	return allTools, nil
}
