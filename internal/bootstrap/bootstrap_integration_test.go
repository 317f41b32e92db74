package bootstrap_test

import (
	"context"
	"testing"

	"github.com/mozadev/docubot/internal/bootstrap"
	"github.com/mozadev/docubot/internal/testutil"
)

// TestInitAndDoctorIntegration runs the full installation flow against a
// real pgvector container: init twice, then verify every doctor check
// passes.
func TestInitAndDoctorIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	tdb, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("DATABASE_URL", tdb.URL)
	t.Setenv("OPENAI_API_KEY", "test-key")

	paths := bootstrap.PathsIn(home + "/.docubot")
	opts := bootstrap.InitOptions{Paths: paths, Logger: testutil.DiscardLogger()}

	result, err := bootstrap.Init(context.Background(), opts)
	if err != nil {
		t.Fatalf("Init() failed: %v", err)
	}
	if !result.MigrationsRan {
		t.Error("MigrationsRan = false, want true")
	}

	// Second run must succeed without duplicating anything.
	result, err = bootstrap.Init(context.Background(), opts)
	if err != nil {
		t.Fatalf("second Init() failed: %v", err)
	}
	if result.ConfigCreated || len(result.DirsCreated) != 0 {
		t.Errorf("second Init() was not a no-op: %+v", result)
	}

	checks := bootstrap.Doctor(context.Background(), paths, testutil.DiscardLogger())
	for _, c := range checks {
		if !c.OK() {
			t.Errorf("check %q failed: %v", c.Name, c.Err)
		}
	}
	if code := bootstrap.ExitCode(checks); code != 0 {
		t.Errorf("exit code = %d, want 0", code)
	}
}
