// Package bootstrap sets up and verifies a DocuBot installation.
//
// Init scaffolds the configuration directory and runs database migrations;
// it is idempotent and safe to run concurrently. Doctor verifies an
// existing installation check by check.
package bootstrap

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/mozadev/docubot/db"
	"github.com/mozadev/docubot/internal/config"
)

//go:embed template/config.yaml
var templateFS embed.FS

// lockRetryInterval is how often a waiting Init retries the file lock.
const lockRetryInterval = 100 * time.Millisecond

// lockTimeout bounds how long Init waits for a concurrent Init to finish.
const lockTimeout = 30 * time.Second

// ErrLockTimeout indicates another init held the lock for too long.
var ErrLockTimeout = errors.New("timed out waiting for init lock")

// Paths are the filesystem locations an installation uses.
type Paths struct {
	Root       string // ~/.docubot
	ConfigFile string // Root/config.yaml
	LogsDir    string // Root/logs
	DataDir    string // Root/data
	DocsDir    string // Root/documents
	LockFile   string // Root/init.lock
}

// DefaultPaths returns the standard installation layout under the user's
// home directory.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("getting user home directory: %w", err)
	}
	return PathsIn(filepath.Join(home, ".docubot")), nil
}

// PathsIn returns the installation layout rooted at dir.
func PathsIn(dir string) Paths {
	return Paths{
		Root:       dir,
		ConfigFile: filepath.Join(dir, "config.yaml"),
		LogsDir:    filepath.Join(dir, "logs"),
		DataDir:    filepath.Join(dir, "data"),
		DocsDir:    filepath.Join(dir, "documents"),
		LockFile:   filepath.Join(dir, "init.lock"),
	}
}

// InitOptions configures Init.
type InitOptions struct {
	Paths  Paths
	Logger *slog.Logger

	// SkipMigrations leaves the database untouched. Used when initializing
	// a machine before PostgreSQL is available.
	SkipMigrations bool
}

// InitResult reports what Init did.
type InitResult struct {
	ConfigCreated bool     // false when config.yaml already existed
	DirsCreated   []string // directories that did not exist before
	MigrationsRan bool
}

// Init prepares the installation: directories, a config file (written from
// the embedded template only when absent, never overwritten) and database
// migrations. Concurrent runs are serialized through a file lock, so a
// second run is always a cheap no-op.
func Init(ctx context.Context, opts InitOptions) (*InitResult, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	paths := opts.Paths
	if paths.Root == "" {
		var err error
		if paths, err = DefaultPaths(); err != nil {
			return nil, err
		}
	}

	if err := os.MkdirAll(paths.Root, 0o750); err != nil {
		return nil, fmt.Errorf("creating %s: %w", paths.Root, err)
	}

	lock := flock.New(paths.LockFile)
	lockCtx, cancel := context.WithTimeout(ctx, lockTimeout)
	defer cancel()
	locked, err := lock.TryLockContext(lockCtx, lockRetryInterval)
	if err != nil {
		return nil, fmt.Errorf("acquiring init lock: %w", err)
	}
	if !locked {
		return nil, ErrLockTimeout
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			logger.Warn("releasing init lock", "error", err)
		}
	}()

	result := &InitResult{}

	for _, dir := range []string{paths.LogsDir, paths.DataDir, paths.DocsDir} {
		created, err := ensureDir(dir)
		if err != nil {
			return nil, err
		}
		if created {
			result.DirsCreated = append(result.DirsCreated, dir)
		}
	}

	created, err := writeConfigIfAbsent(paths.ConfigFile)
	if err != nil {
		return nil, err
	}
	result.ConfigCreated = created
	if created {
		logger.Info("wrote configuration template", "path", paths.ConfigFile)
	} else {
		logger.Debug("configuration file already exists, keeping it", "path", paths.ConfigFile)
	}

	// The config must at least parse before the database is touched.
	cfg, err := config.LoadUnvalidated()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	if !opts.SkipMigrations {
		if err := db.Migrate(cfg.PostgresURL()); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		result.MigrationsRan = true
		logger.Info("database migrations applied")
	}

	logger.Info("initialization complete",
		"config_created", result.ConfigCreated,
		"dirs_created", len(result.DirsCreated),
		"migrations_ran", result.MigrationsRan,
	)
	return result, nil
}

// ensureDir creates dir if needed and reports whether it was created.
func ensureDir(dir string) (bool, error) {
	if _, err := os.Stat(dir); err == nil {
		return false, nil
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return false, fmt.Errorf("creating %s: %w", dir, err)
	}
	return true, nil
}

// writeConfigIfAbsent writes the embedded template to path unless a config
// file is already there. O_EXCL makes the existence check atomic, so two
// racing inits cannot clobber each other's file.
func writeConfigIfAbsent(path string) (bool, error) {
	template, err := templateFS.ReadFile("template/config.yaml")
	if err != nil {
		return false, fmt.Errorf("reading embedded config template: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, os.ErrExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := f.Write(template); err != nil {
		f.Close()
		return false, fmt.Errorf("writing %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing %s: %w", path, err)
	}
	return true, nil
}
