package commands

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/imamik/k3dops/cmd/k3dops/handlers"
)

// Doctor returns the command for diagnosing the local and remote setup.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: auto-detect k3dops.yaml)
//	--json:       Emit the report as JSON
func Doctor() *cobra.Command {
	var (
		configPath string
		jsonOutput bool
	)

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Diagnose the local toolchain and the provisioned instance",
		Long: `Check that the required client tools are installed and, when a config
with provisioned infrastructure exists, that the EC2 instance is running.

Examples:
  # Human-readable report
  k3dops doctor

  # Machine-readable report
  k3dops doctor --json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Doctor(cmd.Context(), configPath, jsonOutput, os.Stdout)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: k3dops.yaml)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit the report as JSON")

	return cmd
}
