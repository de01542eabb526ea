package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k3dops/cmd/k3dops/handlers"
)

// Destroy returns the command for tearing down the environment.
//
// Optional flags:
//
//	--config, -c:  Path to configuration YAML file (default: auto-detect k3dops.yaml)
//	--keep-data:   Stop the cluster but keep containers, volumes, and the instance
func Destroy() *cobra.Command {
	var (
		configPath string
		keepData   bool
	)

	cmd := &cobra.Command{
		Use:   "destroy",
		Short: "Tear down the environment",
		Long: `Tear down the k3d environment on AWS.

By default this deletes the cluster, destroys the EC2 infrastructure, and
removes the stored credentials. With --keep-data the cluster is only
stopped: containers, volumes, and the instance survive, and a later apply
resumes where it left off.

Examples:
  # Full teardown
  k3dops destroy

  # Pause the environment, keeping all data
  k3dops destroy --keep-data`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Destroy(cmd.Context(), configPath, keepData)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: k3dops.yaml)")
	cmd.Flags().BoolVar(&keepData, "keep-data", false, "Stop the cluster but keep containers, volumes, and the instance")

	return cmd
}
