package cmd

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/mozadev/docubot/internal/bootstrap"
)

var (
	okStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10")) // green
	failStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))  // red
	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// runInit prepares the installation. Safe to run repeatedly: an already
// initialized machine is a no-op.
func runInit() error {
	ctx, cancel := signalContext()
	defer cancel()

	paths, err := bootstrap.DefaultPaths()
	if err != nil {
		return err
	}

	result, err := bootstrap.Init(ctx, bootstrap.InitOptions{
		Paths:  paths,
		Logger: stderrLogger(),
	})
	if err != nil {
		return fmt.Errorf("init failed: %w", err)
	}

	for _, dir := range result.DirsCreated {
		fmt.Printf("%s created %s\n", okStyle.Render("✓"), dir)
	}
	if result.ConfigCreated {
		fmt.Printf("%s wrote %s\n", okStyle.Render("✓"), paths.ConfigFile)
	} else {
		fmt.Printf("%s %s already exists, left untouched\n", okStyle.Render("✓"), paths.ConfigFile)
	}
	if result.MigrationsRan {
		fmt.Printf("%s database migrations applied\n", okStyle.Render("✓"))
	}

	fmt.Println()
	fmt.Println("DocuBot is ready. Next steps:")
	fmt.Println("  docubot ingest <path>   Index your documents")
	fmt.Println("  docubot chat            Start asking questions")
	return nil
}

// errChecksFailed maps a failed doctor run to exit code 1 in main.
var errChecksFailed = errors.New("preflight checks failed")

// runDoctor prints one line per installation probe and fails when any
// required check fails.
func runDoctor() error {
	ctx, cancel := signalContext()
	defer cancel()

	paths, err := bootstrap.DefaultPaths()
	if err != nil {
		return err
	}

	checks := bootstrap.Doctor(ctx, paths, stderrLogger())
	for _, c := range checks {
		switch {
		case c.OK():
			line := fmt.Sprintf("%s %s", okStyle.Render("✓"), c.Name)
			if c.Detail != "" {
				line += dimStyle.Render(" (" + c.Detail + ")")
			}
			fmt.Println(line)
		default:
			fmt.Printf("%s %s: %v\n", failStyle.Render("✗"), c.Name, c.Err)
			if c.Detail != "" {
				fmt.Println(dimStyle.Render("  " + c.Detail))
			}
		}
	}

	if bootstrap.ExitCode(checks) != 0 {
		return errChecksFailed
	}
	fmt.Println()
	fmt.Println(okStyle.Render("All checks passed."))
	return nil
}
