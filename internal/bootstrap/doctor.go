package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mozadev/docubot/db"
	"github.com/mozadev/docubot/internal/app"
	"github.com/mozadev/docubot/internal/config"
)

// doctorDBTimeout bounds each database probe.
const doctorDBTimeout = 5 * time.Second

// Check is the outcome of one installation probe.
type Check struct {
	Name     string
	Required bool
	Err      error // nil means the check passed
	Detail   string
}

// OK reports whether the check passed.
func (c Check) OK() bool { return c.Err == nil }

// ExitCode returns the process exit code for a doctor run: 1 when any
// required check failed, 0 otherwise.
func ExitCode(checks []Check) int {
	for _, c := range checks {
		if c.Required && !c.OK() {
			return 1
		}
	}
	return 0
}

// errSkipped marks checks that could not run because a prerequisite failed.
var errSkipped = errors.New("skipped: prerequisite check failed")

// Doctor verifies an installation and returns one Check per probe.
// Database probes run only when the configuration loads and the connection
// succeeds; otherwise they are reported as skipped failures.
func Doctor(ctx context.Context, paths Paths, logger *slog.Logger) []Check {
	if logger == nil {
		logger = slog.Default()
	}
	if paths.Root == "" {
		defaults, err := DefaultPaths()
		if err != nil {
			return []Check{{Name: "home directory", Required: true, Err: err}}
		}
		paths = defaults
	}

	var checks []Check
	add := func(c Check) {
		checks = append(checks, c)
		if c.OK() {
			logger.Debug("check passed", "check", c.Name)
		} else {
			logger.Warn("check failed", "check", c.Name, "error", c.Err)
		}
	}

	add(checkDirs(paths))

	cfg, err := config.LoadUnvalidated()
	add(Check{Name: "configuration loads", Required: true, Err: err})
	if err != nil {
		for _, name := range []string{"configuration valid", "api key", "embedder resolvable", "postgres connection", "pgvector extension", "migrations applied"} {
			add(Check{Name: name, Required: true, Err: errSkipped})
		}
		return checks
	}

	validErr := cfg.Validate()
	add(Check{Name: "configuration valid", Required: true, Err: validErr})
	keyCheck := checkAPIKey(cfg)
	add(keyCheck)
	add(checkEmbedder(ctx, cfg, validErr == nil && keyCheck.OK(), logger))

	pool, err := connect(ctx, cfg)
	add(Check{Name: "postgres connection", Required: true, Err: err, Detail: cfg.PostgresHost})
	if err != nil {
		add(Check{Name: "pgvector extension", Required: true, Err: errSkipped})
		add(Check{Name: "migrations applied", Required: true, Err: errSkipped})
		return checks
	}
	defer pool.Close()

	add(checkPgvector(ctx, pool))
	add(checkMigrations(ctx, pool))
	return checks
}

func checkDirs(paths Paths) Check {
	for _, dir := range []string{paths.Root, paths.LogsDir, paths.DataDir, paths.DocsDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return Check{Name: "directories", Required: true,
				Err: fmt.Errorf("%s missing, run `docubot init`: %w", dir, err)}
		}
		if !info.IsDir() {
			return Check{Name: "directories", Required: true,
				Err: fmt.Errorf("%s exists but is not a directory", dir)}
		}
	}
	return Check{Name: "directories", Required: true}
}

func checkAPIKey(cfg *config.Config) Check {
	envVar := cfg.APIKeyEnvVar()
	if envVar == "" {
		return Check{Name: "api key", Required: true, Detail: "not needed for " + cfg.Provider}
	}
	if os.Getenv(envVar) == "" {
		return Check{Name: "api key", Required: true,
			Err: fmt.Errorf("%s is not set", envVar), Detail: envVar}
	}
	return Check{Name: "api key", Required: true, Detail: envVar}
}

// checkEmbedder initializes the configured provider and verifies the embedder
// model resolves. ready is false when the configuration or API key checks
// failed; provider plugins cannot initialize without them.
func checkEmbedder(ctx context.Context, cfg *config.Config, ready bool, logger *slog.Logger) Check {
	if !ready {
		return Check{Name: "embedder resolvable", Required: true, Err: errSkipped}
	}
	if err := app.ResolveEmbedder(ctx, cfg, logger); err != nil {
		return Check{Name: "embedder resolvable", Required: true, Err: err}
	}
	return Check{Name: "embedder resolvable", Required: true,
		Detail: fmt.Sprintf("%s via %s", cfg.EmbedderModel, cfg.Provider)}
}

func connect(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, doctorDBTimeout)
	defer cancel()
	return db.Connect(ctx, cfg.PostgresConnectionString())
}

func checkPgvector(ctx context.Context, pool *pgxpool.Pool) Check {
	ctx, cancel := context.WithTimeout(ctx, doctorDBTimeout)
	defer cancel()

	var installed bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')`).Scan(&installed)
	if err != nil {
		return Check{Name: "pgvector extension", Required: true, Err: fmt.Errorf("querying pg_extension: %w", err)}
	}
	if !installed {
		return Check{Name: "pgvector extension", Required: true,
			Err: errors.New("extension 'vector' is not installed, run `docubot init`")}
	}
	return Check{Name: "pgvector extension", Required: true}
}

func checkMigrations(ctx context.Context, pool *pgxpool.Pool) Check {
	ctx, cancel := context.WithTimeout(ctx, doctorDBTimeout)
	defer cancel()

	var version int64
	var dirty bool
	err := pool.QueryRow(ctx,
		`SELECT version, dirty FROM schema_migrations ORDER BY version DESC LIMIT 1`).Scan(&version, &dirty)
	if err != nil {
		return Check{Name: "migrations applied", Required: true,
			Err: fmt.Errorf("schema_migrations unreadable, run `docubot init`: %w", err)}
	}
	if dirty {
		return Check{Name: "migrations applied", Required: true,
			Err: fmt.Errorf("migration version %d is dirty, manual repair needed", version)}
	}
	return Check{Name: "migrations applied", Required: true,
		Detail: fmt.Sprintf("version %d", version)}
}
