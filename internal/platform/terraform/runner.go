package terraform

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
)

// Runner abstracts invocation of the terraform binary so the engine can be
// tested without a terraform installation or AWS credentials.
type Runner interface {
	// Run executes terraform with the given arguments in dir and returns
	// stdout. Diagnostics go to stderr and are folded into the error.
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// CLIRunner executes the real terraform binary.
type CLIRunner struct {
	// Binary overrides the binary name, defaulting to "terraform".
	Binary string
}

// NewCLIRunner creates a runner for the terraform binary on PATH.
func NewCLIRunner() *CLIRunner {
	return &CLIRunner{Binary: "terraform"}
}

// Run implements Runner.
func (r *CLIRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "terraform"
	}

	// #nosec G204 - args are built from validated config, not user input
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Dir = dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("terraform %v failed: %w\n%s", args, err, stderr.String())
	}

	return stdout.String(), nil
}

// exitCode extracts the process exit code from a Runner error.
// Returns -1 when the error carries no exit code (e.g. binary not found).
func exitCode(err error) int {
	var ec interface{ ExitCode() int }
	if errors.As(err, &ec) {
		return ec.ExitCode()
	}
	return -1
}
