// Package kubectl wraps the kubectl CLI for manifest application. Apply and
// delete shell out to kubectl so behavior (server-side validation, pruning
// semantics, CRD handling) matches what operators get by hand.
package kubectl

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes kubectl commands.
type Runner interface {
	Run(ctx context.Context, args ...string) (string, error)
}

// CLIRunner invokes the kubectl binary found on PATH.
type CLIRunner struct {
	// Binary overrides the executable name; defaults to "kubectl".
	Binary string
}

// Run executes kubectl and returns stdout. Stderr is folded into the error.
func (r *CLIRunner) Run(ctx context.Context, args ...string) (string, error) {
	binary := r.Binary
	if binary == "" {
		binary = "kubectl"
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return stdout.String(), fmt.Errorf("kubectl %s failed: %w\nstderr: %s",
			strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.String(), nil
}

// Client applies manifests against one cluster. The kubeconfig path is
// passed explicitly on every invocation so concurrent pipelines cannot leak
// into each other through process environment.
type Client struct {
	runner     Runner
	kubeconfig string
}

// NewClient creates a kubectl client bound to the given kubeconfig path.
func NewClient(runner Runner, kubeconfigPath string) *Client {
	return &Client{runner: runner, kubeconfig: kubeconfigPath}
}

func (c *Client) baseArgs() []string {
	if c.kubeconfig == "" {
		return nil
	}
	return []string{"--kubeconfig", c.kubeconfig}
}

// Apply applies a manifest file.
func (c *Client) Apply(ctx context.Context, path string) (string, error) {
	args := append(c.baseArgs(), "apply", "-f", path)
	return c.runner.Run(ctx, args...)
}

// DryRunApply validates a manifest server-side without persisting it.
func (c *Client) DryRunApply(ctx context.Context, path string) (string, error) {
	args := append(c.baseArgs(), "apply", "-f", path, "--dry-run=server")
	return c.runner.Run(ctx, args...)
}

// Delete deletes the resources in a manifest file. Missing resources are
// not an error.
func (c *Client) Delete(ctx context.Context, path string) (string, error) {
	args := append(c.baseArgs(), "delete", "-f", path, "--ignore-not-found")
	return c.runner.Run(ctx, args...)
}

// RolloutStatus blocks until the workload reports a complete rollout or the
// timeout elapses. Target is "kind/name", e.g. "deployment/postgres".
func (c *Client) RolloutStatus(ctx context.Context, namespace, target string, timeout time.Duration) error {
	args := append(c.baseArgs(), "rollout", "status", target,
		"--namespace", namespace,
		"--timeout", timeout.String())
	_, err := c.runner.Run(ctx, args...)
	return err
}
