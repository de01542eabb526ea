package handlers

import (
	"context"
	"fmt"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/config/wizard"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// runWizard runs the interactive configuration flow.
	runWizard = wizard.Run

	// isTerminal reports whether stdin is an interactive terminal.
	isTerminal = func() bool {
		return isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd())
	}

	// statFile checks whether the target config file already exists.
	statFile = os.Stat
)

var (
	titleStyle = lipgloss.NewStyle().Bold(true)
	pathStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("6"))
)

// Init walks the user through the configuration wizard and writes the result
// to k3dops.yaml in the working directory. An existing file is never
// overwritten.
func Init(ctx context.Context) error {
	if !isTerminal() {
		return fmt.Errorf("init is interactive and needs a terminal; write %s by hand for scripted setups", config.DefaultConfigFile)
	}

	if _, err := statFile(config.DefaultConfigFile); err == nil {
		return fmt.Errorf("%s already exists, edit it directly or remove it first", config.DefaultConfigFile)
	}

	fmt.Println(titleStyle.Render("k3dops configuration"))
	fmt.Println("Answers become " + config.DefaultConfigFile + " and can be edited later.")
	fmt.Println()

	result, err := runWizard(ctx)
	if err != nil {
		return fmt.Errorf("wizard aborted: %w", err)
	}

	cfg := result.ToConfig()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("wizard produced an invalid config: %w", err)
	}
	if err := cfg.WriteFile(config.DefaultConfigFile); err != nil {
		return err
	}

	fmt.Println()
	fmt.Println("Wrote " + pathStyle.Render(config.DefaultConfigFile))
	fmt.Println("Next: run " + pathStyle.Render("k3dops apply") + " to provision the environment.")
	return nil
}
