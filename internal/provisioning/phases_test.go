package provisioning

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gossh "golang.org/x/crypto/ssh"

	"github.com/imamik/k3dops/internal/cluster"
	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/infra"
	"github.com/imamik/k3dops/internal/manifest"
)

type fakeInfra struct {
	state *infra.State
	err   error
	calls int

	sawDeadline bool
}

func (f *fakeInfra) Apply(ctx context.Context, _ *config.Config) (*infra.State, error) {
	f.calls++
	_, f.sawDeadline = ctx.Deadline()
	return f.state, f.err
}

func pipelineContext() (*Context, *recordingObserver) {
	observer := &recordingObserver{}
	cfg := &config.Config{
		ClusterName: "local-k8s",
		Topology:    config.Topology{Servers: 1, Agents: 2},
	}
	ctx := NewContext(context.Background(), cfg)
	ctx.Observer = observer
	return ctx, observer
}

func TestInfrastructurePhase_PopulatesState(t *testing.T) {
	t.Parallel()
	ctx, observer := pipelineContext()
	provisioner := &fakeInfra{state: &infra.State{InstanceID: "i-0abc", PublicIP: "54.1.2.3"}}
	phase := NewInfrastructurePhase(provisioner)

	require.NoError(t, phase.Provision(ctx))

	assert.Equal(t, "i-0abc", ctx.State.Infra.InstanceID)
	require.NotEmpty(t, observer.events)
	assert.Equal(t, EventResourceCreated, observer.events[0].Type)
}

func TestInfrastructurePhase_BoundsApply(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()
	ctx.Timeouts.TerraformApply = time.Minute

	provisioner := &fakeInfra{state: &infra.State{InstanceID: "i-0abc"}}
	require.NoError(t, NewInfrastructurePhase(provisioner).Provision(ctx))
	assert.True(t, provisioner.sawDeadline, "terraform apply must run under a deadline")

	ctx2, _ := pipelineContext()
	ctx2.Timeouts.TerraformApply = 0
	provisioner2 := &fakeInfra{state: &infra.State{InstanceID: "i-0abc"}}
	require.NoError(t, NewInfrastructurePhase(provisioner2).Provision(ctx2))
	assert.False(t, provisioner2.sawDeadline, "zero timeout means unbounded")
}

func TestInfrastructurePhase_Failure(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()
	phase := NewInfrastructurePhase(&fakeInfra{err: errors.New("quota exceeded")})

	err := phase.Provision(ctx)
	require.Error(t, err)
	assert.Nil(t, ctx.State.Infra)
}

func TestDefaultSessionDialer_ExpandsHomeKeyPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	block, err := gossh.MarshalPrivateKey(priv, "")
	require.NoError(t, err)

	keyDir := filepath.Join(home, ".ssh")
	require.NoError(t, os.MkdirAll(keyDir, 0o700))
	require.NoError(t, os.WriteFile(filepath.Join(keyDir, "deployer.pem"), pem.EncodeToMemory(block), 0o600))

	ctx, _ := pipelineContext()
	ctx.Config.Bootstrap.User = "ubuntu"
	ctx.Config.Bootstrap.PrivateKeyPath = "~/.ssh/deployer.pem"
	ctx.State.Infra = &infra.State{PublicIP: "54.1.2.3"}

	_, err = DefaultSessionDialer(ctx)
	require.NoError(t, err, "a ~/ key path must resolve against the home directory")
}

type fakeClusterBuilder struct {
	handle     *cluster.Handle
	kubeconfig string
	ensureErr  error
}

func (f *fakeClusterBuilder) Ensure(context.Context, *config.Config) (*cluster.Handle, error) {
	return f.handle, f.ensureErr
}

func (f *fakeClusterBuilder) Kubeconfig(context.Context, string) ([]byte, error) {
	return []byte(f.kubeconfig), nil
}

type fakeWaiter struct {
	expected int
	err      error
}

func (f *fakeWaiter) WaitForNodesReady(_ context.Context, expected int, _ time.Duration) error {
	f.expected = expected
	return f.err
}

type fakeCreds struct {
	written map[string][]byte
}

func (f *fakeCreds) Write(name string, content []byte) (string, error) {
	if f.written == nil {
		f.written = map[string][]byte{}
	}
	f.written[name] = content
	return "/tmp/" + name + ".kubeconfig", nil
}

func TestClusterPhase_RewritesAndStoresKubeconfig(t *testing.T) {
	t.Parallel()
	ctx, observer := pipelineContext()
	ctx.State.Infra = &infra.State{PublicIP: "54.1.2.3"}

	builder := &fakeClusterBuilder{
		handle:     &cluster.Handle{Name: "local-k8s", Servers: 1, Agents: 2},
		kubeconfig: "server: https://0.0.0.0:41753\n",
	}
	waiter := &fakeWaiter{}
	creds := &fakeCreds{}

	phase := NewClusterPhaseWithDeps(
		func(*Context) ClusterBuilder { return builder },
		func([]byte) (NodeWaiter, error) { return waiter, nil },
		creds,
	)

	var mergedContent []byte
	var mergedDest string
	phase.mergeTo = "/home/user/.kube/config"
	phase.merge = func(content []byte, dest string) error {
		mergedContent = content
		mergedDest = dest
		return nil
	}

	require.NoError(t, phase.Provision(ctx))

	assert.Equal(t, "server: https://54.1.2.3:41753\n", string(ctx.State.Kubeconfig))
	assert.Equal(t, ctx.State.Kubeconfig, creds.written["local-k8s"])
	assert.Equal(t, "/tmp/local-k8s.kubeconfig", ctx.State.KubeconfigPath)
	assert.Equal(t, 3, waiter.expected, "waits for servers plus agents")
	assert.Equal(t, EventResourceCreated, observer.events[0].Type)

	assert.Equal(t, ctx.State.Kubeconfig, mergedContent, "the rewritten config is what gets merged")
	assert.Equal(t, "/home/user/.kube/config", mergedDest)
}

func TestClusterPhase_MergeFailureIsNonFatal(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()
	ctx.State.Infra = &infra.State{PublicIP: "54.1.2.3"}

	builder := &fakeClusterBuilder{
		handle:     &cluster.Handle{Name: "local-k8s"},
		kubeconfig: "server: https://127.0.0.1:6443\n",
	}
	phase := NewClusterPhaseWithDeps(
		func(*Context) ClusterBuilder { return builder },
		func([]byte) (NodeWaiter, error) { return &fakeWaiter{}, nil },
		&fakeCreds{},
	)
	phase.mergeTo = "/home/user/.kube/config"
	phase.merge = func([]byte, string) error { return errors.New("read-only filesystem") }

	require.NoError(t, phase.Provision(ctx), "merge is a convenience, not a gate")
}

func TestClusterPhase_ExistingClusterEvent(t *testing.T) {
	t.Parallel()
	ctx, observer := pipelineContext()
	ctx.State.Infra = &infra.State{PublicIP: "54.1.2.3"}

	builder := &fakeClusterBuilder{
		handle:     &cluster.Handle{Name: "local-k8s", Existing: true},
		kubeconfig: "server: https://127.0.0.1:6443\n",
	}
	phase := NewClusterPhaseWithDeps(
		func(*Context) ClusterBuilder { return builder },
		func([]byte) (NodeWaiter, error) { return &fakeWaiter{}, nil },
		&fakeCreds{},
	)

	require.NoError(t, phase.Provision(ctx))
	assert.Equal(t, EventResourceExists, observer.events[0].Type)
}

func TestNewClusterPhase_PinsAPIServer(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()
	ctx.State.Infra = &infra.State{PublicIP: "54.1.2.3"}

	phase := NewClusterPhase(&fakeCreds{})
	b, ok := phase.builderFor(ctx).(*cluster.Builder)
	require.True(t, ok)

	// The security group only admits the fixed API port, and the server
	// certificate must cover the address operators actually dial.
	assert.Equal(t, "0.0.0.0:6443", b.APIPort)
	assert.Equal(t, []string{"--tls-san=54.1.2.3@server:*"}, b.K3sArgs)

	assert.NotEmpty(t, phase.mergeTo)
	assert.NotNil(t, phase.merge)
}

func TestAPIServerAccess(t *testing.T) {
	t.Parallel()
	port, args := apiServerAccess("203.0.113.7")
	assert.Equal(t, "0.0.0.0:6443", port)
	assert.Equal(t, []string{"--tls-san=203.0.113.7@server:*"}, args)
}

func TestRewriteServerAddress(t *testing.T) {
	t.Parallel()
	tests := []struct {
		in   string
		want string
	}{
		{"server: https://0.0.0.0:41753", "server: https://54.1.2.3:41753"},
		{"server: https://127.0.0.1:6443", "server: https://54.1.2.3:6443"},
		{"server: https://localhost:6443", "server: https://54.1.2.3:6443"},
		{"server: https://10.0.1.10:6443", "server: https://10.0.1.10:6443"},
	}
	for _, tt := range tests {
		got := rewriteServerAddress([]byte(tt.in), "54.1.2.3")
		assert.Equal(t, tt.want, string(got))
	}
}

type fakeManifestApplier struct {
	entries []manifest.Entry
	result  *manifest.Result
	err     error
}

func (f *fakeManifestApplier) Apply(_ context.Context, entries []manifest.Entry) (*manifest.Result, error) {
	f.entries = entries
	return f.result, f.err
}

func TestManifestPhase_EmptySetSkips(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()

	applier := &fakeManifestApplier{}
	phase := NewManifestPhaseWithApplier("/nonexistent",
		func(*Context) ManifestApplier { return applier })

	require.NoError(t, phase.Provision(ctx))
	assert.Nil(t, applier.entries, "no manifests means no applier call")
}

type fakeInstaller struct {
	calls int
	err   error
}

func (f *fakeInstaller) Install(context.Context) error {
	f.calls++
	return f.err
}

func TestMonitoringPhase(t *testing.T) {
	t.Parallel()
	ctx, _ := pipelineContext()

	installer := &fakeInstaller{}
	phase := NewMonitoringPhaseWithInstaller(func(*Context) AddonInstaller { return installer })

	require.NoError(t, phase.Provision(ctx))
	assert.Equal(t, 1, installer.calls)

	installer.err = errors.New("chart unreachable")
	require.Error(t, phase.Provision(ctx))
}
