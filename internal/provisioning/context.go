package provisioning

import (
	"context"

	"github.com/imamik/k3dops/internal/bootstrap"
	"github.com/imamik/k3dops/internal/cluster"
	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/infra"
	"github.com/imamik/k3dops/internal/manifest"
	"github.com/imamik/k3dops/internal/platform/ssh"
)

// State holds the shared results of pipeline phases. It is progressively
// populated as each phase completes and read by later phases.
type State struct {
	// Infrastructure results
	Infra *infra.State

	// Bootstrap results
	Session         ssh.Session
	BootstrapReport *bootstrap.Report

	// Cluster results
	Handle         *cluster.Handle
	Kubeconfig     []byte
	KubeconfigPath string

	// Manifest results
	ManifestResult *manifest.Result
}

// NewState creates an empty pipeline state.
func NewState() *State {
	return &State{}
}

// Context wraps everything a phase needs: cancellation, configuration,
// shared state, observability, and timeouts.
type Context struct {
	context.Context
	Config   *config.Config
	State    *State
	Observer Observer
	Timeouts *config.Timeouts
}

// NewContext creates a pipeline context with a console observer and
// environment-derived timeouts.
func NewContext(ctx context.Context, cfg *config.Config) *Context {
	return &Context{
		Context:  ctx,
		Config:   cfg,
		State:    NewState(),
		Observer: NewConsoleObserver(),
		Timeouts: config.LoadTimeouts(),
	}
}
