// Package cmd provides the DocuBot CLI commands.
//
// Commands:
//   - init: create ~/.docubot, write the default config, run migrations
//   - doctor: preflight checks (dirs, config, API key, database, pgvector)
//   - ingest: index a file, directory, or web page
//   - watch: watch a directory and re-index on changes
//   - ask: answer a single question
//   - chat: interactive question answering
//   - sessions: list and delete conversations
//   - stats: per-source chunk counts
//   - serve: HTTP API server with SSE streaming
//
// Signal handling and graceful shutdown are implemented for long-running
// commands via context cancellation.
package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mozadev/docubot/internal/app"
	"github.com/mozadev/docubot/internal/config"
	"github.com/mozadev/docubot/internal/log"
)

// Version information (injected at build time via ldflags).
var (
	AppVersion = "development"
	BuildTime  = "unknown"
	GitCommit  = "unknown"
)

// Execute is the main entry point for the DocuBot CLI.
func Execute() error {
	if len(os.Args) < 2 {
		runHelp()
		return nil
	}

	switch os.Args[1] {
	case "init":
		return runInit()
	case "doctor":
		return runDoctor()
	case "ingest":
		return runIngest(os.Args[2:])
	case "watch":
		return runWatch(os.Args[2:])
	case "ask":
		return runAsk(os.Args[2:])
	case "chat":
		return runChat()
	case "sessions":
		return runSessions(os.Args[2:])
	case "stats":
		return runStats()
	case "serve":
		return runServe()
	case "version", "--version", "-v":
		runVersion()
		return nil
	case "help", "--help", "-h":
		runHelp()
		return nil
	default:
		return fmt.Errorf("unknown command: %s (run `docubot help`)", os.Args[1])
	}
}

// stderrLogger builds a logger for commands that run before configuration
// exists (init, doctor). DEBUG in the environment enables debug level.
func stderrLogger() log.Logger {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	return log.NewWithWriter(os.Stderr, log.Config{Level: level})
}

// setupApp loads configuration and initializes the full application:
// logger, database, Genkit, and the chat/ingest pipelines. The returned
// cleanup closes the app and the log file.
func setupApp(ctx context.Context) (*app.App, func(), error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading config (run `docubot init` first?): %w", err)
	}

	level := log.ParseLevel(cfg.LogLevel)
	if cfg.Debug || os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger, closeLog, err := log.New(log.Config{Level: level, File: cfg.LogFile})
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		_ = closeLog()
		return nil, nil, fmt.Errorf("initializing application: %w", err)
	}

	cleanup := func() {
		if err := a.Close(); err != nil {
			logger.Warn("shutdown error", "error", err)
		}
		_ = closeLog()
	}
	return a, cleanup, nil
}

// signalContext returns a context canceled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runVersion() {
	fmt.Printf("DocuBot %s\n", AppVersion)
	fmt.Printf("Build Time: %s\n", BuildTime)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}

func runHelp() {
	fmt.Println("DocuBot - Chat with your documents")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  docubot init               Create ~/.docubot and run database migrations")
	fmt.Println("  docubot doctor             Check the installation (exit 1 on failure)")
	fmt.Println("  docubot ingest <path|url>  Index a file, directory, or web page")
	fmt.Println("  docubot watch <dir>        Watch a directory and re-index on changes")
	fmt.Println("  docubot ask <question>     Answer a single question")
	fmt.Println("  docubot chat               Interactive question answering")
	fmt.Println("  docubot sessions list      List conversations")
	fmt.Println("  docubot sessions delete <id>")
	fmt.Println("  docubot stats              Per-source chunk counts")
	fmt.Println("  docubot serve [addr]       HTTP API server (default: 127.0.0.1:3400)")
	fmt.Println("  docubot version            Show version information")
	fmt.Println()
	fmt.Println("Chat Commands (in interactive mode):")
	fmt.Println("  /summary           Summarize the conversation")
	fmt.Println("  /clear             Clear conversation history")
	fmt.Println("  /exit, /quit       Exit DocuBot")
	fmt.Println()
	fmt.Println("Environment Variables:")
	fmt.Println("  OPENAI_API_KEY     API key for the openai provider (default)")
	fmt.Println("  GEMINI_API_KEY     API key for the googleai provider")
	fmt.Println("  DATABASE_URL       PostgreSQL connection (overrides config file)")
	fmt.Println("  DEBUG              Enable debug logging")
	fmt.Println()
	fmt.Println("Learn more: https://github.com/mozadev/docubot")
}
