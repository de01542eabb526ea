package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k3dops/cmd/k3dops/handlers"
)

// Init returns the command for interactive configuration setup.
func Init() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file interactively",
		Long: `Create a k3dops.yaml configuration file through an interactive wizard.

The wizard asks about the cluster name, AWS region and instance type,
SSH access, the cluster topology, and optional addons, then writes the
answers to k3dops.yaml in the current directory.

An existing k3dops.yaml is never overwritten.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Init(cmd.Context())
		},
	}
}
