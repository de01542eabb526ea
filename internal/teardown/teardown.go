// Package teardown reverses a provisioned environment. The cluster is
// always handled before the infrastructure: deleting the instance out from
// under a running cluster would leave docker state that cannot be cleaned
// up afterwards.
package teardown

import (
	"context"
	"fmt"
	"log"

	"github.com/imamik/k3dops/internal/config"
)

// ClusterController is the cluster lifecycle surface teardown needs.
type ClusterController interface {
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
}

// InfraDestroyer tears down the provisioned infrastructure.
type InfraDestroyer interface {
	Destroy(ctx context.Context, cfg *config.Config) error
}

// CredentialRemover forgets stored cluster credentials.
type CredentialRemover interface {
	Delete(clusterName string) error
}

// Error wraps a teardown failure with the stage it occurred in, so the
// operator knows what is left standing.
type Error struct {
	Stage string // "cluster-stop", "cluster-delete", "infrastructure", "credentials"
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("teardown stage %s failed: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Options control how much a teardown removes.
type Options struct {
	// KeepData stops the cluster but preserves its containers, volumes,
	// and the instance they live on. Credentials are kept too, so a later
	// apply can resume.
	KeepData bool
}

// Controller orchestrates teardown across cluster, infrastructure, and
// credentials.
type Controller struct {
	cluster ClusterController
	infra   InfraDestroyer
	creds   CredentialRemover

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// NewController creates a teardown controller.
func NewController(cluster ClusterController, infra InfraDestroyer, creds CredentialRemover) *Controller {
	return &Controller{cluster: cluster, infra: infra, creds: creds, Logf: log.Printf}
}

// Run tears the environment down. With KeepData it only stops the cluster;
// otherwise it deletes the cluster, destroys the infrastructure, and forgets
// the stored credentials, in that order. Every stage tolerates already-gone
// resources, so Run can be retried after a partial failure.
func (c *Controller) Run(ctx context.Context, cfg *config.Config, opts Options) error {
	name := cfg.ClusterName

	if opts.KeepData {
		c.Logf("stopping cluster %s, preserving data and infrastructure", name)
		if err := c.cluster.Stop(ctx, name); err != nil {
			return &Error{Stage: "cluster-stop", Err: err}
		}
		return nil
	}

	c.Logf("deleting cluster %s", name)
	if err := c.cluster.Delete(ctx, name); err != nil {
		return &Error{Stage: "cluster-delete", Err: err}
	}

	c.Logf("destroying infrastructure for %s", name)
	if err := c.infra.Destroy(ctx, cfg); err != nil {
		return &Error{Stage: "infrastructure", Err: err}
	}

	if err := c.creds.Delete(name); err != nil {
		return &Error{Stage: "credentials", Err: err}
	}

	c.Logf("teardown of %s complete", name)
	return nil
}
