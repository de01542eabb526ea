package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k3dops/cmd/k3dops/handlers"
)

// Apply returns the command for provisioning the full environment.
//
// This command runs the complete pipeline: pre-flight validation, EC2
// infrastructure via terraform, host bootstrap over SSH, k3d cluster
// creation, manifest deployment, and optional addons.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: auto-detect k3dops.yaml)
func Apply() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Create or update the environment",
		Long: `Create or update the k3d environment on AWS.

This command provisions the EC2 instance and networking with terraform,
prepares the host over SSH, creates the k3d cluster, and deploys the
configured manifests in dependency order.

If no config file is specified, it looks for k3dops.yaml in the current
directory. Use 'k3dops init' to create a configuration file.

Examples:
  # Provision using k3dops.yaml in current directory
  k3dops apply

  # Provision using a specific config file
  k3dops apply -c staging.yaml

  # Re-apply after configuration changes
  k3dops apply`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Apply(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: k3dops.yaml)")

	return cmd
}
