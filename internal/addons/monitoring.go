// Package addons installs optional cluster components that ship as Helm
// charts rather than raw manifests.
package addons

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/k8s"
)

// HelmInstaller is the Helm surface addon installers use.
type HelmInstaller interface {
	AddRepo(name, url string) error
	InstallOrUpgrade(ctx context.Context, rel k8s.Release) error
}

// Monitoring converges the monitoring stack release.
type Monitoring struct {
	helm HelmInstaller
	cfg  config.MonitoringConfig

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// NewMonitoring creates the monitoring installer.
func NewMonitoring(helm HelmInstaller, cfg config.MonitoringConfig) *Monitoring {
	return &Monitoring{helm: helm, cfg: cfg, Logf: log.Printf}
}

// Install installs or upgrades the monitoring release. Disabled monitoring
// is a no-op, not an error.
func (m *Monitoring) Install(ctx context.Context) error {
	if !m.cfg.Enabled {
		m.Logf("monitoring disabled, skipping")
		return nil
	}

	if err := m.helm.AddRepo("prometheus-community", m.cfg.RepoURL); err != nil {
		return fmt.Errorf("failed to add monitoring chart repo: %w", err)
	}

	m.Logf("installing monitoring release %s/%s", m.cfg.Namespace, m.cfg.Release)
	err := m.helm.InstallOrUpgrade(ctx, k8s.Release{
		Namespace: m.cfg.Namespace,
		Name:      m.cfg.Release,
		RepoURL:   m.cfg.RepoURL,
		Chart:     m.cfg.Chart,
		Version:   m.cfg.Version,
		Values:    m.cfg.Values,
	})
	if err != nil {
		return fmt.Errorf("failed to install monitoring stack: %w", err)
	}
	return nil
}
