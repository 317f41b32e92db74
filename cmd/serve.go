package cmd

import (
	"fmt"

	"github.com/mozadev/docubot/api"
)

// runServe starts the HTTP API server and blocks until SIGINT/SIGTERM.
func runServe() error {
	addr, err := parseServeAddr()
	if err != nil {
		return fmt.Errorf("parsing address: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, cleanup, err := setupApp(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	a.Logger.Info("starting DocuBot API", "version", AppVersion)

	srv := api.NewServer(api.Deps{
		Pool:      a.Pool,
		Sessions:  a.Sessions,
		Chat:      a.Chat,
		Ingestor:  a.Ingestor,
		Documents: a.Knowledge,
		Logger:    a.Logger,
		UploadDir: a.Config.DocsDir,
	})
	return srv.Run(ctx, addr)
}
