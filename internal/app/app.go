// Package app wires the application together: configuration, database,
// Genkit provider plugins, stores, ingestion and chat.
package app

import (
	"log/slog"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mozadev/docubot/internal/chat"
	"github.com/mozadev/docubot/internal/config"
	"github.com/mozadev/docubot/internal/ingest"
	"github.com/mozadev/docubot/internal/knowledge"
	"github.com/mozadev/docubot/internal/session"
)

// App is the application container. Build one with Setup and release it
// with Close.
type App struct {
	Config *config.Config
	Logger *slog.Logger

	Genkit   *genkit.Genkit
	Embedder ai.Embedder
	Pool     *pgxpool.Pool

	Knowledge *knowledge.Store
	Sessions  *session.Store
	Ingestor  *ingest.Ingestor
	Chat      *chat.Manager

	otelCleanup func()
}

// Close releases resources in reverse initialization order.
func (a *App) Close() error {
	if a.Logger != nil {
		a.Logger.Debug("shutting down application")
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
	if a.otelCleanup != nil {
		a.otelCleanup()
	}
	return nil
}
