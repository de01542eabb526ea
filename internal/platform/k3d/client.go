// Package k3d wraps the k3d CLI. It shells out rather than linking the k3d
// packages: the cluster runs on a remote docker daemon and the CLI is the
// supported surface for that.
package k3d

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Cluster is the subset of `k3d cluster list -o json` the builder needs.
type Cluster struct {
	Name           string `json:"name"`
	ServersRunning int    `json:"serversRunning"`
	ServersCount   int    `json:"serversCount"`
	AgentsRunning  int    `json:"agentsRunning"`
	AgentsCount    int    `json:"agentsCount"`
}

// Running reports whether every declared node of the cluster is up.
func (c *Cluster) Running() bool {
	return c.ServersCount > 0 &&
		c.ServersRunning == c.ServersCount &&
		c.AgentsRunning == c.AgentsCount
}

// CreateOptions configure a new cluster.
type CreateOptions struct {
	Name    string
	Servers int
	Agents  int

	// APIPort publishes the API server on a fixed host address, e.g.
	// "0.0.0.0:6443". Empty lets k3d pick a random host port.
	APIPort string

	// K3sArgs are extra k3s arguments, e.g. "--tls-san=54.1.2.3@server:*".
	K3sArgs []string

	// Ports are k3d port mapping specs, e.g. "8080:80@loadbalancer".
	Ports []string

	// Volumes are k3d volume mount specs, e.g. "/data:/data@server:0".
	Volumes []string

	// WaitTimeout bounds the CLI's own readiness wait. Zero disables the
	// flag and leaves waiting to the caller.
	WaitTimeout time.Duration
}

// Client drives cluster lifecycle through the k3d CLI.
type Client struct {
	runner Runner
}

// NewClient creates a client on the given runner.
func NewClient(runner Runner) *Client {
	return &Client{runner: runner}
}

// List returns all clusters known to k3d.
func (c *Client) List(ctx context.Context) ([]Cluster, error) {
	out, err := c.runner.Run(ctx, "cluster", "list", "-o", "json")
	if err != nil {
		return nil, err
	}

	var clusters []Cluster
	if err := json.Unmarshal([]byte(out), &clusters); err != nil {
		return nil, fmt.Errorf("failed to parse k3d cluster list: %w", err)
	}
	return clusters, nil
}

// Get returns the named cluster, or (nil, nil) when it does not exist.
func (c *Client) Get(ctx context.Context, name string) (*Cluster, error) {
	clusters, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range clusters {
		if clusters[i].Name == name {
			return &clusters[i], nil
		}
	}
	return nil, nil
}

// Create creates a cluster with the given topology.
func (c *Client) Create(ctx context.Context, opts CreateOptions) error {
	args := []string{
		"cluster", "create", opts.Name,
		"--servers", strconv.Itoa(opts.Servers),
		"--agents", strconv.Itoa(opts.Agents),
	}
	if opts.APIPort != "" {
		args = append(args, "--api-port", opts.APIPort)
	}
	for _, a := range opts.K3sArgs {
		args = append(args, "--k3s-arg", a)
	}
	for _, p := range opts.Ports {
		args = append(args, "--port", p)
	}
	for _, v := range opts.Volumes {
		args = append(args, "--volume", v)
	}
	if opts.WaitTimeout > 0 {
		args = append(args, "--wait", "--timeout", opts.WaitTimeout.String())
	}

	_, err := c.runner.Run(ctx, args...)
	return err
}

// Start starts a stopped cluster.
func (c *Client) Start(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "cluster", "start", name)
	return err
}

// Stop stops a running cluster without removing its containers or volumes.
func (c *Client) Stop(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "cluster", "stop", name)
	return err
}

// Delete removes the cluster and its resources.
func (c *Client) Delete(ctx context.Context, name string) error {
	_, err := c.runner.Run(ctx, "cluster", "delete", name)
	return err
}

// Kubeconfig returns the kubeconfig for the named cluster.
func (c *Client) Kubeconfig(ctx context.Context, name string) (string, error) {
	out, err := c.runner.Run(ctx, "kubeconfig", "get", name)
	if err != nil {
		return "", err
	}
	return out, nil
}
