// Package app assembles the application: configuration, storage, Genkit,
// the agents, the workflow, and the HTTP server. Setup wires everything and
// returns a container whose Close releases resources in reverse order.
package app

import (
	"context"
	"log/slog"

	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mrady9280/asfoor/internal/agent"
	"github.com/mrady9280/asfoor/internal/api"
	"github.com/mrady9280/asfoor/internal/chat"
	"github.com/mrady9280/asfoor/internal/config"
	"github.com/mrady9280/asfoor/internal/index"
	"github.com/mrady9280/asfoor/internal/ingest"
	"github.com/mrady9280/asfoor/internal/memory"
)

// App is the application container.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit *genkit.Genkit
	Pool   *pgxpool.Pool

	Index   *index.Store
	Memory  *memory.Store
	Factory *agent.Factory

	Chat   *chat.Service
	Ingest *ingest.Service
	Server *api.Server

	otelShutdown func(context.Context) error
}

// Close releases all resources. Safe to call after a partial Setup failure.
func (a *App) Close(ctx context.Context) error {
	a.Logger.Info("shutting down")

	if a.otelShutdown != nil {
		if err := a.otelShutdown(ctx); err != nil {
			a.Logger.Warn("flushing traces failed", "error", err)
		}
	}
	if a.Pool != nil {
		a.Pool.Close()
		a.Logger.Debug("database pool closed")
	}
	return nil
}
