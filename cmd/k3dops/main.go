// Package main is the entry point for the k3dops CLI.
//
// k3dops provisions a single-host k3d Kubernetes environment on AWS EC2:
// it creates the instance with terraform, prepares the host over SSH,
// builds the k3d cluster, and deploys manifests in dependency order.
//
// Commands: init, apply, destroy, doctor, backup.
//
// For detailed usage information, run:
//
//	k3dops --help
package main

import (
	"fmt"
	"os"

	"github.com/imamik/k3dops/cmd/k3dops/commands"
)

// Version information set by goreleaser at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	commands.SetVersionInfo(version, commit, date)
	if err := commands.Root().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
