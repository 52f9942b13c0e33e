// Package app provides application initialization and dependency wiring.
//
// Setup builds the full component graph: configuration, tracing, the
// PostgreSQL pool (with migrations), Genkit with the configured model
// provider, the knowledge and session stores, the tool set, the agent,
// and the chat flow. Close releases everything in reverse order.
package app

import (
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gambitlabs/gambit/internal/agent"
	"github.com/gambitlabs/gambit/internal/chat"
	"github.com/gambitlabs/gambit/internal/chesscom"
	"github.com/gambitlabs/gambit/internal/config"
	"github.com/gambitlabs/gambit/internal/knowledge"
	"github.com/gambitlabs/gambit/internal/log"
	"github.com/gambitlabs/gambit/internal/session"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger log.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	DBPool   *pgxpool.Pool

	Chess     *chesscom.Client
	Knowledge *knowledge.Store
	Sessions  *session.Store
	Agent     *agent.Agent
	Flow      *chat.Flow

	otelCleanup func()
}

// Close releases all resources. Safe to call on a partially built App.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Info("shutting down application")
	}

	if a.DBPool != nil {
		a.DBPool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
