package k3d

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner executes k3d CLI commands. Extracted as an interface so cluster
// logic can be tested against a fake.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CLIRunner invokes the k3d binary found on PATH.
type CLIRunner struct {
	// Binary overrides the executable name; defaults to "k3d".
	Binary string
}

// Run executes k3d with the given arguments and returns stdout. Stderr is
// folded into the error on failure.
func (r *CLIRunner) Run(ctx context.Context, args ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "k3d"
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("k3d %s failed: %w\nstderr: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}
