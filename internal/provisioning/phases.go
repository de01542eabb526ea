package provisioning

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/imamik/k3dops/internal/addons"
	"github.com/imamik/k3dops/internal/bootstrap"
	"github.com/imamik/k3dops/internal/cluster"
	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/credstore"
	"github.com/imamik/k3dops/internal/infra"
	"github.com/imamik/k3dops/internal/k8s"
	"github.com/imamik/k3dops/internal/manifest"
	"github.com/imamik/k3dops/internal/platform/k3d"
	"github.com/imamik/k3dops/internal/platform/kubectl"
	"github.com/imamik/k3dops/internal/platform/ssh"

	"k8s.io/client-go/tools/clientcmd"
)

// InfraApplier is the infrastructure surface the pipeline drives.
// *infra.Provisioner implements it.
type InfraApplier interface {
	Apply(ctx context.Context, cfg *config.Config) (*infra.State, error)
}

// InfrastructurePhase converges the EC2 infrastructure.
type InfrastructurePhase struct {
	provisioner InfraApplier
}

// NewInfrastructurePhase creates the infrastructure phase.
func NewInfrastructurePhase(provisioner InfraApplier) *InfrastructurePhase {
	return &InfrastructurePhase{provisioner: provisioner}
}

// Name implements Phase.
func (p *InfrastructurePhase) Name() string { return "infrastructure" }

// Provision implements Phase.
func (p *InfrastructurePhase) Provision(ctx *Context) error {
	applyCtx := context.Context(ctx)
	if ctx.Timeouts.TerraformApply > 0 {
		var cancel context.CancelFunc
		applyCtx, cancel = context.WithTimeout(applyCtx, ctx.Timeouts.TerraformApply)
		defer cancel()
	}

	state, err := p.provisioner.Apply(applyCtx, ctx.Config)
	if err != nil {
		return err
	}
	ctx.State.Infra = state

	LogResourceCreated(ctx.Observer, p.Name(), "ec2-instance", state.InstanceID)
	ctx.Observer.Printf("[Infrastructure] instance %s reachable at %s", state.InstanceID, state.PublicIP)
	return nil
}

// SessionDialer establishes the SSH session to the provisioned host.
type SessionDialer func(ctx *Context) (ssh.Session, error)

// DefaultSessionDialer reads the configured private key and dials the
// host's public IP, retrying until the connect timeout elapses.
func DefaultSessionDialer(ctx *Context) (ssh.Session, error) {
	key, err := os.ReadFile(config.ExpandHome(ctx.Config.Bootstrap.PrivateKeyPath))
	if err != nil {
		return nil, fmt.Errorf("failed to read private key: %w", err)
	}

	retryDelay := ctx.Timeouts.RetryInitialDelay
	if retryDelay <= 0 {
		retryDelay = 5 * time.Second
	}
	maxRetries := int(ctx.Timeouts.SSHConnect / retryDelay)
	if maxRetries < 1 {
		maxRetries = 1
	}

	return ssh.NewClient(&ssh.Config{
		Host:       ctx.State.Infra.PublicIP,
		Port:       config.SSHPort,
		User:       ctx.Config.Bootstrap.User,
		PrivateKey: key,
		MaxRetries: maxRetries,
		RetryDelay: retryDelay,
	})
}

// BootstrapPhase prepares the host: container runtime, cluster tooling, and
// the docker group change.
type BootstrapPhase struct {
	dial SessionDialer
}

// NewBootstrapPhase creates the bootstrap phase.
func NewBootstrapPhase(dial SessionDialer) *BootstrapPhase {
	return &BootstrapPhase{dial: dial}
}

// Name implements Phase.
func (p *BootstrapPhase) Name() string { return "bootstrap" }

// Provision implements Phase.
func (p *BootstrapPhase) Provision(ctx *Context) error {
	session, err := p.dial(ctx)
	if err != nil {
		return fmt.Errorf("failed to reach host: %w", err)
	}
	ctx.State.Session = session

	b := bootstrap.New(session, ctx.Config.Bootstrap.User)
	b.StepTimeout = ctx.Timeouts.BootstrapStep
	b.Logf = ctx.Observer.Printf

	report, err := b.Run(ctx)
	if err != nil {
		return err
	}
	ctx.State.BootstrapReport = report
	return nil
}

// ClusterBuilder is the cluster surface the pipeline drives.
// *cluster.Builder implements it.
type ClusterBuilder interface {
	Ensure(ctx context.Context, cfg *config.Config) (*cluster.Handle, error)
	Kubeconfig(ctx context.Context, name string) ([]byte, error)
}

// NodeWaiter blocks until cluster nodes are ready.
type NodeWaiter interface {
	WaitForNodesReady(ctx context.Context, expected int, timeout time.Duration) error
}

// CredentialWriter persists the fetched kubeconfig.
type CredentialWriter interface {
	Write(clusterName string, content []byte) (string, error)
}

// ClusterPhase converges the k3d cluster and stores its credentials.
type ClusterPhase struct {
	builderFor func(ctx *Context) ClusterBuilder
	waiterFor  func(kubeconfig []byte) (NodeWaiter, error)
	creds      CredentialWriter

	// mergeTo is the kubeconfig the stored credentials are also merged
	// into, so plain kubectl works right after an apply. Empty disables
	// the merge.
	mergeTo string
	merge   func(content []byte, destPath string) error
}

// NewClusterPhase creates the cluster phase with production collaborators:
// k3d over the bootstrap SSH session, client-go for readiness, and the
// given credential store.
func NewClusterPhase(creds CredentialWriter) *ClusterPhase {
	return &ClusterPhase{
		builderFor: func(ctx *Context) ClusterBuilder {
			b := cluster.NewBuilder(k3d.NewClient(k3d.NewRemoteRunner(ctx.State.Session)))
			b.ReadyTimeout = ctx.Timeouts.ClusterReady
			b.Logf = ctx.Observer.Printf
			b.APIPort, b.K3sArgs = apiServerAccess(ctx.State.Infra.PublicIP)
			return b
		},
		waiterFor: func(kubeconfig []byte) (NodeWaiter, error) {
			return k8s.NewClientFromBytes(kubeconfig)
		},
		creds:   creds,
		mergeTo: clientcmd.RecommendedHomeFile,
		merge:   credstore.MergeIntoFile,
	}
}

// apiServerAccess pins a new cluster's API server to the host port the
// security group admits and adds the public IP to the server certificate,
// so the rewritten kubeconfig both reaches the endpoint and verifies TLS
// from outside the VPC.
func apiServerAccess(publicIP string) (apiPort string, k3sArgs []string) {
	return fmt.Sprintf("0.0.0.0:%d", config.KubeAPIPort),
		[]string{fmt.Sprintf("--tls-san=%s@server:*", publicIP)}
}

// NewClusterPhaseWithDeps creates the phase with injected collaborators.
func NewClusterPhaseWithDeps(
	builderFor func(ctx *Context) ClusterBuilder,
	waiterFor func(kubeconfig []byte) (NodeWaiter, error),
	creds CredentialWriter,
) *ClusterPhase {
	return &ClusterPhase{builderFor: builderFor, waiterFor: waiterFor, creds: creds}
}

// Name implements Phase.
func (p *ClusterPhase) Name() string { return "cluster" }

// Provision implements Phase.
func (p *ClusterPhase) Provision(ctx *Context) error {
	builder := p.builderFor(ctx)

	handle, err := builder.Ensure(ctx, ctx.Config)
	if err != nil {
		return err
	}
	ctx.State.Handle = handle

	if handle.Existing {
		LogResourceExists(ctx.Observer, p.Name(), "k3d-cluster", handle.Name)
	} else {
		LogResourceCreated(ctx.Observer, p.Name(), "k3d-cluster", handle.Name)
	}

	kubeconfig, err := builder.Kubeconfig(ctx, handle.Name)
	if err != nil {
		return err
	}
	// The kubeconfig was generated on the host, so its server address
	// points at a loopback. Rewrite it to the instance's public IP.
	kubeconfig = rewriteServerAddress(kubeconfig, ctx.State.Infra.PublicIP)
	ctx.State.Kubeconfig = kubeconfig

	path, err := p.creds.Write(handle.Name, kubeconfig)
	if err != nil {
		return err
	}
	ctx.State.KubeconfigPath = path

	waiter, err := p.waiterFor(kubeconfig)
	if err != nil {
		return fmt.Errorf("failed to build cluster client: %w", err)
	}

	expected := ctx.Config.Topology.Servers + ctx.Config.Topology.Agents
	ctx.Observer.Printf("[Cluster] waiting for %d nodes to report ready", expected)
	if err := waiter.WaitForNodesReady(ctx, expected, ctx.Timeouts.ClusterReady); err != nil {
		return err
	}

	// Best effort: the stored copy is authoritative, the merged one is a
	// convenience for plain kubectl.
	if p.mergeTo != "" && p.merge != nil {
		if err := p.merge(kubeconfig, p.mergeTo); err != nil {
			ctx.Observer.Printf("[Cluster] could not merge kubeconfig into %s: %v", p.mergeTo, err)
		} else {
			ctx.Observer.Printf("[Cluster] kubeconfig merged into %s, current context switched", p.mergeTo)
		}
	}
	return nil
}

// rewriteServerAddress points loopback server URLs at the host's public IP.
func rewriteServerAddress(kubeconfig []byte, publicIP string) []byte {
	s := string(kubeconfig)
	for _, loopback := range []string{"https://0.0.0.0:", "https://127.0.0.1:", "https://localhost:"} {
		s = strings.ReplaceAll(s, loopback, "https://"+publicIP+":")
	}
	return []byte(s)
}

// ManifestApplier is the manifest surface the pipeline drives.
// *manifest.Applier implements it.
type ManifestApplier interface {
	Apply(ctx context.Context, entries []manifest.Entry) (*manifest.Result, error)
}

// ManifestPhase validates and applies the declared manifest set.
type ManifestPhase struct {
	baseDir    string
	applierFor func(ctx *Context) ManifestApplier
}

// NewManifestPhase creates the manifest phase. Manifest paths resolve
// relative to baseDir, normally the config file's directory.
func NewManifestPhase(baseDir string) *ManifestPhase {
	return &ManifestPhase{
		baseDir: baseDir,
		applierFor: func(ctx *Context) ManifestApplier {
			a := manifest.NewApplier(kubectl.NewClient(&kubectl.CLIRunner{}, ctx.State.KubeconfigPath))
			a.RolloutTimeout = ctx.Timeouts.Rollout
			a.ServerValidate = ctx.Config.ValidateManifests
			a.Logf = ctx.Observer.Printf
			return a
		},
	}
}

// NewManifestPhaseWithApplier creates the phase with an injected applier.
func NewManifestPhaseWithApplier(baseDir string, applierFor func(ctx *Context) ManifestApplier) *ManifestPhase {
	return &ManifestPhase{baseDir: baseDir, applierFor: applierFor}
}

// Name implements Phase.
func (p *ManifestPhase) Name() string { return "manifests" }

// Provision implements Phase.
func (p *ManifestPhase) Provision(ctx *Context) error {
	if len(ctx.Config.Manifests) == 0 {
		ctx.Observer.Printf("[Manifests] no manifests declared, skipping")
		return nil
	}

	entries, err := manifest.Load(p.baseDir, ctx.Config.Manifests)
	if err != nil {
		return err
	}

	result, applyErr := p.applierFor(ctx).Apply(ctx, entries)
	ctx.State.ManifestResult = result
	if applyErr != nil {
		if result != nil && len(result.NotAttempted) > 0 {
			ctx.Observer.Printf("[Manifests] aborted; not attempted: %s", strings.Join(result.NotAttempted, ", "))
		}
		return applyErr
	}

	ctx.Observer.Progress(p.Name(), len(result.Applied), len(entries))
	return nil
}

// AddonInstaller converges one addon.
type AddonInstaller interface {
	Install(ctx context.Context) error
}

// MonitoringPhase installs the monitoring stack when enabled.
type MonitoringPhase struct {
	installerFor func(ctx *Context) AddonInstaller
}

// NewMonitoringPhase creates the monitoring phase backed by Helm.
func NewMonitoringPhase() *MonitoringPhase {
	return &MonitoringPhase{
		installerFor: func(ctx *Context) AddonInstaller {
			m := addons.NewMonitoring(k8s.NewHelmClient(ctx.State.Kubeconfig), ctx.Config.Monitoring)
			m.Logf = ctx.Observer.Printf
			return m
		},
	}
}

// NewMonitoringPhaseWithInstaller creates the phase with an injected
// installer.
func NewMonitoringPhaseWithInstaller(installerFor func(ctx *Context) AddonInstaller) *MonitoringPhase {
	return &MonitoringPhase{installerFor: installerFor}
}

// Name implements Phase.
func (p *MonitoringPhase) Name() string { return "monitoring" }

// Provision implements Phase.
func (p *MonitoringPhase) Provision(ctx *Context) error {
	return p.installerFor(ctx).Install(ctx)
}

// DefaultPhases assembles the standard apply pipeline.
func DefaultPhases(provisioner InfraApplier, creds *credstore.Store, manifestDir string) []Phase {
	return []Phase{
		NewValidationPhase(),
		NewInfrastructurePhase(provisioner),
		NewBootstrapPhase(DefaultSessionDialer),
		NewClusterPhase(creds),
		NewManifestPhase(manifestDir),
		NewMonitoringPhase(),
	}
}
