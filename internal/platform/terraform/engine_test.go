package terraform

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner records invocations and replays scripted responses.
type fakeRunner struct {
	calls     [][]string
	responses map[string]fakeResponse // keyed by subcommand (args[0])
}

type fakeResponse struct {
	stdout string
	err    error
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	f.calls = append(f.calls, args)
	resp := f.responses[args[0]]
	return resp.stdout, resp.err
}

// exitErr simulates an *exec.ExitError carrying an exit code.
type exitErr struct{ code int }

func (e *exitErr) Error() string { return fmt.Sprintf("exit status %d", e.code) }
func (e *exitErr) ExitCode() int { return e.code }

func TestVars_ArgsSortedAndFormatted(t *testing.T) {
	t.Parallel()
	vars := Vars{"region": "us-east-1", "instance_type": "t3.large", "volume_size": "50"}

	args := vars.args()

	assert.Equal(t, []string{
		"-var=instance_type=t3.large",
		"-var=region=us-east-1",
		"-var=volume_size=50",
	}, args)
}

func TestPlan_NoChanges(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"plan": {stdout: "No changes. Your infrastructure matches the configuration."},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	result, err := engine.Plan(context.Background(), Vars{"region": "us-east-1"})
	require.NoError(t, err)
	assert.False(t, result.HasChanges)
}

func TestPlan_DetailedExitCodeChanges(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"plan": {stdout: "Plan: 4 to add, 0 to change, 0 to destroy.", err: &exitErr{code: 2}},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	result, err := engine.Plan(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, result.HasChanges)
	assert.Contains(t, result.Summary, "4 to add")
}

func TestPlan_RealFailure(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"plan": {err: &exitErr{code: 1}},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	_, err := engine.Plan(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "plan")
}

func TestApply_PassesVars(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	require.NoError(t, engine.Apply(context.Background(), Vars{"region": "us-east-1"}))

	require.Len(t, runner.calls, 1)
	joined := strings.Join(runner.calls[0], " ")
	assert.Contains(t, joined, "apply")
	assert.Contains(t, joined, "-auto-approve")
	assert.Contains(t, joined, "-var=region=us-east-1")
}

func TestDestroy_AlreadyDestroyedIsSuccess(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"destroy": {stdout: "No objects need to be destroyed.", err: errors.New("exit status 1")},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	assert.NoError(t, engine.Destroy(context.Background(), nil))
}

func TestDestroy_RealFailure(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"destroy": {stdout: "Error: deleting security group", err: errors.New("exit status 1")},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	err := engine.Destroy(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "destroy")
}

func TestOutput_DecodesTypedValues(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"output": {stdout: `{
			"instance_id":       {"sensitive": false, "type": "string", "value": "i-0abc123"},
			"public_ip":         {"sensitive": false, "type": "string", "value": "54.12.34.56"},
			"security_group_id": {"sensitive": false, "type": "string", "value": "sg-0def456"}
		}`},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	outputs, err := engine.Output(context.Background())
	require.NoError(t, err)

	id, err := outputs.String("instance_id")
	require.NoError(t, err)
	assert.Equal(t, "i-0abc123", id)

	assert.Equal(t, "54.12.34.56", outputs.StringOr("public_ip", ""))
	assert.Equal(t, "none", outputs.StringOr("missing", "none"))

	_, err = outputs.String("missing")
	assert.Error(t, err)
}

func TestOutput_InvalidJSON(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"output": {stdout: "not json"},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	_, err := engine.Output(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode")
}

func TestInit_WrapsError(t *testing.T) {
	t.Parallel()
	runner := &fakeRunner{responses: map[string]fakeResponse{
		"init": {err: errors.New("could not download provider")},
	}}
	engine := NewEngineWithRunner("deploy/terraform", runner)

	err := engine.Init(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "could not download provider")
}
