package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imamik/k3dops/internal/platform/ssh"
	"github.com/imamik/k3dops/internal/util/prerequisites"
)

// fakeSession records executed commands and answers check commands from a
// set of already-satisfied steps.
type fakeSession struct {
	executed   []string
	satisfied  map[string]bool // check command -> passes
	failOn     string          // command substring that fails
	failErr    error
	mode       ssh.Mode
	reconnects int
}

func (f *fakeSession) Execute(_ context.Context, command string) (string, error) {
	if f.satisfied[command] {
		return "", nil
	}
	if _, isCheck := f.satisfied[command]; isCheck {
		return "", errors.New("check failed")
	}
	f.executed = append(f.executed, command)
	if f.failOn != "" && strings.Contains(command, f.failOn) {
		if f.failErr != nil {
			return "", f.failErr
		}
		return "", fmt.Errorf("command failed: %s", command)
	}
	return "ok", nil
}

func (f *fakeSession) Mode() ssh.Mode { return f.mode }

func (f *fakeSession) MarkPrivilegePending() {
	if f.mode == ssh.ModeUnprivileged {
		f.mode = ssh.ModePrivilegedPendingRestart
	}
}

func (f *fakeSession) Reconnect(context.Context) error {
	f.reconnects++
	if f.mode == ssh.ModePrivilegedPendingRestart {
		f.mode = ssh.ModePrivileged
	}
	return nil
}

func checksFor(steps []Step, pass ...string) map[string]bool {
	m := map[string]bool{}
	for _, s := range steps {
		if s.Check == "" {
			continue
		}
		m[s.Check] = false
		for _, name := range pass {
			if s.Name == name {
				m[s.Check] = true
			}
		}
	}
	return m
}

func newTestBootstrapper(session ssh.Session, steps []Step) *Bootstrapper {
	b := NewWithSteps(session, steps)
	b.Logf = func(string, ...any) {}
	return b
}

func TestRun_FreshHostRunsAllSteps(t *testing.T) {
	t.Parallel()
	steps := DefaultSteps("ubuntu")
	session := &fakeSession{satisfied: checksFor(steps)}
	b := newTestBootstrapper(session, steps)

	report, err := b.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, report.Steps, len(steps))
	assert.Equal(t, len(steps), report.Ran())
	assert.Equal(t, ssh.ModePrivileged, session.Mode(), "group change must promote the session")
	assert.Equal(t, 1, session.reconnects)
}

func TestRun_PreparedHostSkipsInstalls(t *testing.T) {
	t.Parallel()
	steps := DefaultSteps("ubuntu")
	session := &fakeSession{
		satisfied: checksFor(steps, "install-docker", "docker-group", "install-k3d", "install-kubectl", "install-helm"),
	}
	b := newTestBootstrapper(session, steps)

	report, err := b.Run(context.Background())
	require.NoError(t, err)

	// Only the check-less steps run: apt-refresh and verify-runtime.
	assert.Equal(t, 2, report.Ran())
	assert.Zero(t, session.reconnects, "satisfied group change needs no reconnect")
	assert.Equal(t, ssh.ModeUnprivileged, session.Mode())
}

func TestRun_StepFailureAborts(t *testing.T) {
	t.Parallel()
	steps := DefaultSteps("ubuntu")
	session := &fakeSession{
		satisfied: checksFor(steps),
		failOn:    "get.docker.com",
	}
	b := newTestBootstrapper(session, steps)

	report, err := b.Run(context.Background())
	require.Error(t, err)

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "install-docker", se.Step)

	// apt-refresh completed before the failure; nothing after ran.
	assert.Len(t, report.Steps, 1)
	assert.Equal(t, "apt-refresh", report.Steps[0].Name)
}

func TestRun_RerunAfterPartialFailure(t *testing.T) {
	t.Parallel()
	steps := DefaultSteps("ubuntu")

	// First run fails on k3d install.
	session := &fakeSession{satisfied: checksFor(steps), failOn: "k3d/main/install.sh"}
	b := newTestBootstrapper(session, steps)
	_, err := b.Run(context.Background())
	require.Error(t, err)

	// Second run: the completed steps now pass their checks.
	session2 := &fakeSession{satisfied: checksFor(steps, "install-docker", "docker-group")}
	b2 := newTestBootstrapper(session2, steps)
	report, err := b2.Run(context.Background())
	require.NoError(t, err)

	var ran []string
	for _, s := range report.Steps {
		if !s.Skipped {
			ran = append(ran, s.Name)
		}
	}
	assert.Equal(t, []string{"apt-refresh", "install-k3d", "install-kubectl", "install-helm", "verify-runtime"}, ran)
}

func TestRun_TimeoutIncludesLastOutput(t *testing.T) {
	t.Parallel()
	steps := []Step{{Name: "slow-install", Command: "sleep forever"}}
	session := &fakeSession{
		satisfied: map[string]bool{},
		failOn:    "sleep",
		failErr:   fmt.Errorf("%w: sleep forever", ssh.ErrTimedOut),
	}
	b := newTestBootstrapper(session, steps)

	_, err := b.Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ssh.ErrTimedOut))

	var se *StepError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "slow-install", se.Step)
}

func TestDefaultSteps_GroupChangeOrdering(t *testing.T) {
	t.Parallel()
	steps := DefaultSteps("ubuntu")

	dockerIdx, groupIdx, verifyIdx := -1, -1, -1
	for i, s := range steps {
		switch s.Name {
		case "install-docker":
			dockerIdx = i
		case "docker-group":
			groupIdx = i
			assert.True(t, s.PrivilegeChange)
		case "verify-runtime":
			verifyIdx = i
		}
	}

	require.GreaterOrEqual(t, dockerIdx, 0)
	assert.Less(t, dockerIdx, groupIdx, "docker must be installed before the group change")
	assert.Less(t, groupIdx, verifyIdx, "verification must run in the promoted session")
}

func TestVerifyRuntimeCommand_CoversRemoteTools(t *testing.T) {
	t.Parallel()
	cmd := verifyRuntimeCommand()

	for _, tool := range prerequisites.RemoteTools() {
		assert.Contains(t, cmd, tool.Name, "every remote tool must be probed")
	}
	assert.Contains(t, cmd, "docker info", "docker must be probed through its socket")
}
