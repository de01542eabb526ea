// Package terraform wraps the terraform CLI plan/apply/destroy/output cycle.
//
// The engine never parses the state file: it reads typed values through
// `terraform output -json` and leaves state management to terraform itself,
// which is what makes re-applying an unchanged configuration a no-op.
package terraform

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Vars holds -var assignments passed to plan, apply, and destroy.
type Vars map[string]string

// args returns the variables as sorted -var arguments for stable commands.
func (v Vars) args() []string {
	keys := make([]string, 0, len(v))
	for k := range v {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(v))
	for _, k := range keys {
		out = append(out, fmt.Sprintf("-var=%s=%s", k, v[k]))
	}
	return out
}

// PlanResult reports whether a plan found changes and the plan summary.
type PlanResult struct {
	HasChanges bool
	Summary    string
}

// Engine drives a terraform working directory through its lifecycle.
type Engine interface {
	Init(ctx context.Context) error
	Plan(ctx context.Context, vars Vars) (*PlanResult, error)
	Apply(ctx context.Context, vars Vars) error
	Destroy(ctx context.Context, vars Vars) error
	Output(ctx context.Context) (Outputs, error)
}

// CLIEngine implements Engine by shelling out to the terraform binary.
type CLIEngine struct {
	runner Runner
	dir    string
}

// NewEngine creates an engine for the given working directory using the
// real terraform binary.
func NewEngine(dir string) *CLIEngine {
	return &CLIEngine{runner: NewCLIRunner(), dir: dir}
}

// NewEngineWithRunner creates an engine with a custom runner (for tests).
func NewEngineWithRunner(dir string, runner Runner) *CLIEngine {
	return &CLIEngine{runner: runner, dir: dir}
}

// Init runs terraform init. Safe to re-run; terraform caches providers.
func (e *CLIEngine) Init(ctx context.Context) error {
	if _, err := e.runner.Run(ctx, e.dir, "init", "-input=false", "-no-color"); err != nil {
		return fmt.Errorf("init: %w", err)
	}
	return nil
}

// Plan runs terraform plan with -detailed-exitcode: exit 0 means no changes,
// exit 2 means the plan contains changes. The summary is surfaced so callers
// can show the diff before a destructive update.
func (e *CLIEngine) Plan(ctx context.Context, vars Vars) (*PlanResult, error) {
	args := append([]string{"plan", "-input=false", "-no-color", "-detailed-exitcode"}, vars.args()...)

	out, err := e.runner.Run(ctx, e.dir, args...)
	if err != nil {
		if exitCode(err) == 2 {
			return &PlanResult{HasChanges: true, Summary: out}, nil
		}
		return nil, fmt.Errorf("plan: %w", err)
	}

	return &PlanResult{HasChanges: false, Summary: out}, nil
}

// Apply runs terraform apply -auto-approve. Terraform tracks partial state,
// so a failed apply is safe to re-run after the underlying cause is fixed.
func (e *CLIEngine) Apply(ctx context.Context, vars Vars) error {
	args := append([]string{"apply", "-input=false", "-no-color", "-auto-approve"}, vars.args()...)

	if _, err := e.runner.Run(ctx, e.dir, args...); err != nil {
		return fmt.Errorf("apply: %w", err)
	}
	return nil
}

// Destroy runs terraform destroy -auto-approve. Destroying an empty or
// absent state is a success, which makes Destroy idempotent.
func (e *CLIEngine) Destroy(ctx context.Context, vars Vars) error {
	args := append([]string{"destroy", "-input=false", "-no-color", "-auto-approve"}, vars.args()...)

	out, err := e.runner.Run(ctx, e.dir, args...)
	if err != nil {
		if isAlreadyDestroyed(out, err) {
			return nil
		}
		return fmt.Errorf("destroy: %w", err)
	}
	return nil
}

// Output reads all root-module outputs as JSON.
func (e *CLIEngine) Output(ctx context.Context) (Outputs, error) {
	out, err := e.runner.Run(ctx, e.dir, "output", "-json", "-no-color")
	if err != nil {
		return nil, fmt.Errorf("output: %w", err)
	}

	var raw map[string]struct {
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return nil, fmt.Errorf("output: failed to decode terraform output json: %w", err)
	}

	outputs := make(Outputs, len(raw))
	for name, entry := range raw {
		outputs[name] = entry.Value
	}
	return outputs, nil
}

// isAlreadyDestroyed recognizes destroy failures that mean the resources are
// simply gone already: a missing state file or a working directory that was
// never initialized because a previous destroy cleaned it up.
func isAlreadyDestroyed(output string, err error) bool {
	combined := output + " " + err.Error()
	for _, marker := range []string{
		"No objects need to be destroyed",
		"state file does not exist",
		"no state file was found",
	} {
		if strings.Contains(combined, marker) {
			return true
		}
	}
	return false
}
