// Package cluster manages the k3d cluster lifecycle on the provisioned
// host: idempotent creation, readiness, start/stop, and deletion.
package cluster

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/platform/k3d"
)

// State is the observable lifecycle state of a cluster.
type State string

const (
	StateAbsent  State = "absent"
	StateRunning State = "running"
	StateStopped State = "stopped"
)

var (
	// ErrTimeout means the cluster did not reach readiness in time. The
	// cluster may still converge; the error is advisory, not a rollback.
	ErrTimeout = errors.New("timed out waiting for cluster readiness")

	// ErrCreationFailed means k3d reported the cluster but its nodes never
	// came up.
	ErrCreationFailed = errors.New("cluster creation failed")
)

// Handle identifies a cluster the builder has converged.
type Handle struct {
	Name    string
	Servers int
	Agents  int

	// Existing is true when the cluster predated this Ensure call.
	Existing bool
}

// Engine is the k3d surface the builder drives. *k3d.Client implements it.
type Engine interface {
	Get(ctx context.Context, name string) (*k3d.Cluster, error)
	Create(ctx context.Context, opts k3d.CreateOptions) error
	Start(ctx context.Context, name string) error
	Stop(ctx context.Context, name string) error
	Delete(ctx context.Context, name string) error
	Kubeconfig(ctx context.Context, name string) (string, error)
}

// Builder converges a cluster to the declared topology.
type Builder struct {
	engine Engine

	// ReadyTimeout bounds the post-create readiness wait.
	ReadyTimeout time.Duration

	// PollInterval is how often the readiness wait re-checks.
	PollInterval time.Duration

	// APIPort publishes new clusters' API server on a fixed host address
	// instead of a random port.
	APIPort string

	// K3sArgs are extra k3s arguments passed through on creation.
	K3sArgs []string

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// NewBuilder creates a builder on the given engine.
func NewBuilder(engine Engine) *Builder {
	return &Builder{
		engine:       engine,
		ReadyTimeout: 5 * time.Minute,
		PollInterval: 5 * time.Second,
		Logf:         log.Printf,
	}
}

// Ensure converges the named cluster: creates it when absent, starts it when
// stopped, and returns a handle once every node is running. Ensuring a
// cluster that already runs makes no create or start calls.
func (b *Builder) Ensure(ctx context.Context, cfg *config.Config) (*Handle, error) {
	name := cfg.ClusterName

	existing, err := b.engine.Get(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to inspect cluster %s: %w", name, err)
	}

	handle := &Handle{
		Name:    name,
		Servers: cfg.Topology.Servers,
		Agents:  cfg.Topology.Agents,
	}

	switch {
	case existing == nil:
		b.Logf("cluster %s absent, creating with %d servers and %d agents",
			name, cfg.Topology.Servers, cfg.Topology.Agents)
		err = b.engine.Create(ctx, k3d.CreateOptions{
			Name:        name,
			Servers:     cfg.Topology.Servers,
			Agents:      cfg.Topology.Agents,
			APIPort:     b.APIPort,
			K3sArgs:     b.K3sArgs,
			Ports:       cfg.Topology.Ports,
			Volumes:     cfg.Topology.Volumes,
			WaitTimeout: b.ReadyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrCreationFailed, err)
		}

	case existing.Running():
		b.Logf("cluster %s already running, reusing", name)
		handle.Existing = true
		return handle, nil

	default:
		b.Logf("cluster %s exists but is stopped, starting", name)
		handle.Existing = true
		if err := b.engine.Start(ctx, name); err != nil {
			return nil, fmt.Errorf("failed to start cluster %s: %w", name, err)
		}
	}

	if err := b.waitRunning(ctx, name); err != nil {
		return nil, err
	}
	return handle, nil
}

// waitRunning polls until all declared nodes of the cluster are up.
func (b *Builder) waitRunning(ctx context.Context, name string) error {
	deadline := time.Now().Add(b.ReadyTimeout)

	for {
		cluster, err := b.engine.Get(ctx, name)
		if err == nil && cluster != nil && cluster.Running() {
			return nil
		}
		if err == nil && cluster == nil {
			// Created a moment ago and now gone: creation failed hard.
			return fmt.Errorf("%w: cluster %s disappeared during startup", ErrCreationFailed, name)
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: cluster %s not running after %s", ErrTimeout, name, b.ReadyTimeout)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", ErrTimeout, ctx.Err())
		case <-time.After(b.PollInterval):
		}
	}
}

// Status reports the cluster's lifecycle state.
func (b *Builder) Status(ctx context.Context, name string) (State, error) {
	cluster, err := b.engine.Get(ctx, name)
	if err != nil {
		return "", err
	}
	switch {
	case cluster == nil:
		return StateAbsent, nil
	case cluster.Running():
		return StateRunning, nil
	default:
		return StateStopped, nil
	}
}

// Stop stops the cluster, preserving containers and volumes. Stopping an
// absent or already-stopped cluster is a success.
func (b *Builder) Stop(ctx context.Context, name string) error {
	cluster, err := b.engine.Get(ctx, name)
	if err != nil {
		return err
	}
	if cluster == nil || !cluster.Running() {
		b.Logf("cluster %s already stopped or absent, nothing to do", name)
		return nil
	}
	return b.engine.Stop(ctx, name)
}

// Delete removes the cluster and its data. Deleting an absent cluster is a
// success.
func (b *Builder) Delete(ctx context.Context, name string) error {
	cluster, err := b.engine.Get(ctx, name)
	if err != nil {
		return err
	}
	if cluster == nil {
		b.Logf("cluster %s already absent, nothing to delete", name)
		return nil
	}
	return b.engine.Delete(ctx, name)
}

// Kubeconfig fetches the cluster's kubeconfig.
func (b *Builder) Kubeconfig(ctx context.Context, name string) ([]byte, error) {
	out, err := b.engine.Kubeconfig(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch kubeconfig for %s: %w", name, err)
	}
	return []byte(out), nil
}
