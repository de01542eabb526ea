// Package prerequisites provides utilities for checking required client tools.
//
// The pipeline shells out to terraform, k3d, kubectl, and helm; this package
// probes the execution PATH for them before any stage runs. Probing is
// read-only and never fails a run by itself — callers decide what a missing
// tool means for them.
package prerequisites

import (
	"fmt"
	"os/exec"
	"strings"
)

// Tool represents a client tool that may be required.
type Tool struct {
	// Name is the binary name to look for in PATH.
	Name string

	// Required indicates if this tool is mandatory.
	Required bool

	// Description explains what the tool is used for.
	Description string

	// InstallURL provides a URL for installation instructions.
	InstallURL string
}

// DefaultTools returns the tools the provisioning pipeline needs locally.
// terraform drives infrastructure, kubectl applies manifests against the
// remote cluster via the merged kubeconfig.
func DefaultTools() []Tool {
	return []Tool{
		{
			Name:        "terraform",
			Required:    true,
			Description: "Required for provisioning the EC2 instance, VPC, and security group",
			InstallURL:  "https://developer.hashicorp.com/terraform/install",
		},
		{
			Name:        "kubectl",
			Required:    true,
			Description: "Required for applying Kubernetes manifests to the cluster",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
	}
}

// RemoteTools returns the tools the bootstrapper installs on the EC2 host.
// They are probed remotely over SSH, not on the local PATH.
func RemoteTools() []Tool {
	return []Tool{
		{
			Name:        "docker",
			Required:    true,
			Description: "Container runtime backing the k3d cluster nodes",
			InstallURL:  "https://docs.docker.com/engine/install/ubuntu/",
		},
		{
			Name:        "k3d",
			Required:    true,
			Description: "Creates and manages the k3s-in-docker cluster",
			InstallURL:  "https://k3d.io/stable/#installation",
		},
		{
			Name:        "kubectl",
			Required:    true,
			Description: "Applies manifests from the remote host",
			InstallURL:  "https://kubernetes.io/docs/tasks/tools/",
		},
		{
			Name:        "helm",
			Required:    true,
			Description: "Installs the monitoring chart release",
			InstallURL:  "https://helm.sh/docs/intro/install/",
		},
	}
}

// OptionalTools returns tools that are useful but not required.
func OptionalTools() []Tool {
	return []Tool{
		{
			Name:        "aws",
			Required:    false,
			Description: "Useful for inspecting provisioned EC2 resources manually",
			InstallURL:  "https://docs.aws.amazon.com/cli/latest/userguide/getting-started-install.html",
		},
		{
			Name:        "helm",
			Required:    false,
			Description: "Useful for inspecting chart releases from the workstation",
			InstallURL:  "https://helm.sh/docs/intro/install/",
		},
	}
}

// CheckResult contains the result of checking a single tool.
type CheckResult struct {
	Tool    Tool
	Found   bool
	Path    string
	Version string
}

// CheckResults contains the results of checking multiple tools.
// It is the pipeline's toolchain status record: recomputed on every probe,
// never persisted.
type CheckResults struct {
	Results []CheckResult
	Missing []Tool
}

// HasErrors returns true if any required tools are missing.
func (r *CheckResults) HasErrors() bool {
	for _, tool := range r.Missing {
		if tool.Required {
			return true
		}
	}
	return false
}

// Error returns an error if any required tools are missing.
func (r *CheckResults) Error() error {
	var missing []string
	for _, tool := range r.Missing {
		if tool.Required {
			missing = append(missing, fmt.Sprintf("%s (%s)", tool.Name, tool.InstallURL))
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required tools: %s", strings.Join(missing, ", "))
}

// Check verifies that the specified tools are available on the local PATH.
func Check(tools []Tool) *CheckResults {
	results := &CheckResults{}

	for _, tool := range tools {
		result := CheckResult{Tool: tool}

		path, err := exec.LookPath(tool.Name)
		if err == nil {
			result.Found = true
			result.Path = path
			// Try to get version (best effort)
			result.Version = getToolVersion(tool.Name)
		} else {
			results.Missing = append(results.Missing, tool)
		}

		results.Results = append(results.Results, result)
	}

	return results
}

// CheckDefault checks the default required tools.
func CheckDefault() *CheckResults {
	return Check(DefaultTools())
}

// CheckAll checks all tools (default + optional).
func CheckAll() *CheckResults {
	defaults := DefaultTools()
	optional := OptionalTools()
	all := make([]Tool, 0, len(defaults)+len(optional))
	all = append(all, defaults...)
	all = append(all, optional...)
	return Check(all)
}

// getToolVersion attempts to get the version of a tool.
// Returns empty string if version cannot be determined.
func getToolVersion(name string) string {
	versionFlags := []string{"--version", "version", "-v"}

	for _, flag := range versionFlags {
		// #nosec G204 - name comes from trusted Tool definitions, not user input
		cmd := exec.Command(name, flag)
		output, err := cmd.Output()
		if err == nil {
			lines := strings.Split(string(output), "\n")
			if len(lines) > 0 {
				return strings.TrimSpace(lines[0])
			}
		}
	}

	return ""
}
