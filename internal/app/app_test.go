package app

import (
	"context"
	"testing"

	"github.com/mozadev/docubot/internal/config"
	"github.com/mozadev/docubot/internal/testutil"
)

func TestCloseOnEmptyApp(t *testing.T) {
	t.Parallel()

	// Close must be safe on a partially built container, since Setup
	// calls it on any failure path.
	a := &App{}
	if err := a.Close(); err != nil {
		t.Errorf("Close() on empty app failed: %v", err)
	}
}

func TestProvideTracingDisabled(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cleanup := provideTracing(context.Background(), cfg, testutil.DiscardLogger())
	if cleanup == nil {
		t.Fatal("provideTracing() returned nil cleanup")
	}
	cleanup()
}
