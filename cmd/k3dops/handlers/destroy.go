package handlers

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/imamik/k3dops/internal/cluster"
	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/infra"
	"github.com/imamik/k3dops/internal/platform/k3d"
	"github.com/imamik/k3dops/internal/platform/ssh"
	"github.com/imamik/k3dops/internal/platform/terraform"
	"github.com/imamik/k3dops/internal/teardown"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// dialSession connects to the provisioned host.
	dialSession = func(ctx context.Context, cfg *config.Config, host string) (ssh.Session, error) {
		key, err := os.ReadFile(config.ExpandHome(cfg.Bootstrap.PrivateKeyPath))
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}
		timeouts := config.LoadTimeouts()
		client, err := ssh.NewClient(&ssh.Config{
			Host:       host,
			Port:       config.SSHPort,
			User:       cfg.Bootstrap.User,
			PrivateKey: key,
			MaxRetries: timeouts.RetryMaxAttempts,
			RetryDelay: timeouts.RetryInitialDelay,
		})
		if err != nil {
			return nil, err
		}
		// Probe the connection now so an unreachable host fails here
		// instead of midway through teardown.
		if _, err := client.Execute(ctx, "true"); err != nil {
			return nil, err
		}
		return client, nil
	}

	// newController assembles the teardown controller.
	newController = func(cl teardown.ClusterController, inf teardown.InfraDestroyer, creds teardown.CredentialRemover) *teardown.Controller {
		return teardown.NewController(cl, inf, creds)
	}
)

// Destroy tears down the environment described by the config. With keepData
// the cluster is stopped but its containers, volumes, and the instance stay
// in place; otherwise the cluster, the infrastructure, and the stored
// credentials are all removed.
func Destroy(ctx context.Context, configPath string, keepData bool) error {
	cfg, resolvedPath, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	engine := newEngine(filepath.Join(filepath.Dir(resolvedPath), terraformSubdir))
	provisioner := infra.NewProvisioner(engine)

	var destroyer teardown.InfraDestroyer = provisioner
	if d := config.LoadTimeouts().TerraformDestroy; d > 0 {
		destroyer = &timedDestroyer{inner: provisioner, timeout: d}
	}

	store, err := newCredStore()
	if err != nil {
		return fmt.Errorf("failed to open credential store: %w", err)
	}

	clusterCtl, err := connectCluster(ctx, engine, cfg)
	if err != nil {
		if keepData {
			return fmt.Errorf("cannot stop cluster, host unreachable: %w", err)
		}
		// On a full destroy the cluster dies with the instance anyway.
		log.Printf("host unreachable, skipping cluster removal: %v", err)
		clusterCtl = unreachableCluster{}
	}

	return newController(clusterCtl, destroyer, store).Run(ctx, cfg, teardown.Options{KeepData: keepData})
}

// timedDestroyer bounds terraform destroy with the configured timeout.
type timedDestroyer struct {
	inner   teardown.InfraDestroyer
	timeout time.Duration
}

func (d *timedDestroyer) Destroy(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()
	return d.inner.Destroy(ctx, cfg)
}

// connectCluster resolves the host IP from the terraform outputs and returns
// a cluster controller talking to the k3d binary on that host.
func connectCluster(ctx context.Context, engine terraform.Engine, cfg *config.Config) (teardown.ClusterController, error) {
	outputs, err := engine.Output(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read infrastructure outputs: %w", err)
	}
	host := outputs.StringOr("public_ip", "")
	if host == "" {
		return nil, fmt.Errorf("no public_ip output, infrastructure may already be destroyed")
	}

	session, err := dialSession(ctx, cfg, host)
	if err != nil {
		return nil, err
	}
	return cluster.NewBuilder(k3d.NewClient(k3d.NewRemoteRunner(session))), nil
}

// unreachableCluster satisfies teardown when the host is already gone.
type unreachableCluster struct{}

func (unreachableCluster) Stop(context.Context, string) error   { return nil }
func (unreachableCluster) Delete(context.Context, string) error { return nil }
