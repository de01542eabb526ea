// Package handlers implements the business logic for CLI commands.
//
// Handlers are framework-agnostic and are called by the cobra command
// definitions in the commands package. Collaborators are created through
// package-level factory variables so tests can inject fakes.
package handlers

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/credstore"
	"github.com/imamik/k3dops/internal/infra"
	"github.com/imamik/k3dops/internal/platform/terraform"
	"github.com/imamik/k3dops/internal/provisioning"
)

// terraformSubdir is the working directory with the infrastructure module,
// resolved relative to the config file.
const terraformSubdir = "terraform"

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// loadConfigFile loads config from a file.
	loadConfigFile = config.LoadFile

	// findConfigFile locates the default config file.
	findConfigFile = config.FindConfigFile

	// newEngine creates a terraform engine for a working directory.
	newEngine = func(dir string) terraform.Engine {
		return terraform.NewEngine(dir)
	}

	// newCredStore opens the credential store.
	newCredStore = func() (*credstore.Store, error) {
		dir, err := credstore.DefaultDir()
		if err != nil {
			return nil, err
		}
		return credstore.New(dir), nil
	}

	// newPhases assembles the apply pipeline.
	newPhases = provisioning.DefaultPhases

	// runPipeline executes the assembled phases.
	runPipeline = provisioning.RunPhases
)

// Apply provisions the environment end to end: EC2 infrastructure, host
// bootstrap, k3d cluster, manifest set, and addons. Re-running against an
// unchanged config converges without modifying anything.
func Apply(ctx context.Context, configPath string) error {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	baseDir := filepath.Dir(resolvedPath)

	provisioner := infra.NewProvisioner(newEngine(filepath.Join(baseDir, terraformSubdir)))

	store, err := newCredStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	pctx := provisioning.NewContext(ctx, cfg)
	provisioner.Logf = pctx.Observer.Printf

	if err := runPipeline(pctx, newPhases(provisioner, store, baseDir)); err != nil {
		return err
	}

	log.Printf("cluster %s is ready", cfg.ClusterName)
	if pctx.State.Infra != nil {
		log.Printf("  host:       %s", pctx.State.Infra.PublicIP)
	}
	if pctx.State.KubeconfigPath != "" {
		log.Printf("  kubeconfig: %s", pctx.State.KubeconfigPath)
		log.Printf("  try:        kubectl --kubeconfig %s get nodes", pctx.State.KubeconfigPath)
	}
	return nil
}

// loadConfig resolves and loads the config file, returning the config and
// the path it was loaded from. The file's directory is the base for
// relative manifest paths and the terraform working directory.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		found, err := findConfigFile()
		if err != nil {
			return nil, "", fmt.Errorf("no config file found: %w (run 'k3dops init' to create one)", err)
		}
		path = found
	}

	cfg, err := loadConfigFile(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}
