package commands

import (
	"github.com/spf13/cobra"

	"github.com/imamik/k3dops/cmd/k3dops/handlers"
)

// Backup returns the command for uploading state snapshots to S3.
//
// Optional flags:
//
//	--config, -c: Path to configuration YAML file (default: auto-detect k3dops.yaml)
func Backup() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Upload kubeconfig and terraform state to S3",
		Long: `Upload a snapshot of the stored kubeconfig and the local terraform state
to the S3 bucket configured under backup.bucket.

Snapshots are keyed by cluster name and a UTC timestamp, so repeated
backups never overwrite each other.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return handlers.Backup(cmd.Context(), configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to configuration file (default: k3dops.yaml)")

	return cmd
}
