package bootstrap

import (
	"fmt"
	"strings"

	"github.com/imamik/k3dops/internal/util/prerequisites"
)

// Tool versions pinned for the remote host. Bumping these is the only change
// needed to roll a newer toolchain out to new hosts.
const (
	k3dVersion     = "v5.8.3"
	kubectlVersion = "v1.33.4"
	helmVersion    = "v3.18.6"
)

// DefaultSteps returns the ordered preparation sequence for an Ubuntu host.
// Ordering matters: docker must exist before the group change, and the group
// change must precede anything that talks to the docker socket without sudo.
func DefaultSteps(user string) []Step {
	return []Step{
		{
			Name:    "apt-refresh",
			Command: "sudo DEBIAN_FRONTEND=noninteractive apt-get update -y && sudo DEBIAN_FRONTEND=noninteractive apt-get install -y curl ca-certificates",
		},
		{
			Name:    "install-docker",
			Check:   "command -v docker",
			Command: "curl -fsSL https://get.docker.com | sudo sh && sudo systemctl enable --now docker",
		},
		{
			Name:            "docker-group",
			Check:           fmt.Sprintf("id -nG %s | grep -qw docker", user),
			Command:         fmt.Sprintf("sudo usermod -aG docker %s", user),
			PrivilegeChange: true,
		},
		{
			Name:  "install-k3d",
			Check: "command -v k3d",
			Command: fmt.Sprintf(
				"curl -fsSL https://raw.githubusercontent.com/k3d-io/k3d/main/install.sh | TAG=%s sudo -E bash", k3dVersion),
		},
		{
			Name:  "install-kubectl",
			Check: "command -v kubectl",
			Command: fmt.Sprintf(
				"curl -fsSLo /tmp/kubectl https://dl.k8s.io/release/%s/bin/linux/amd64/kubectl && sudo install -m 0755 /tmp/kubectl /usr/local/bin/kubectl && rm -f /tmp/kubectl",
				kubectlVersion),
		},
		{
			Name:  "install-helm",
			Check: "command -v helm",
			Command: fmt.Sprintf(
				"curl -fsSL https://raw.githubusercontent.com/helm/helm/main/scripts/get-helm-3 | DESIRED_VERSION=%s sudo -E bash",
				helmVersion),
		},
		{
			// Runs in the reconnected session, so a failure here means the
			// group change did not take effect.
			Name:    "verify-runtime",
			Command: verifyRuntimeCommand(),
		},
	}
}

// verifyRuntimeCommand probes every remote tool the pipeline depends on.
// Docker is probed through its socket, not just the binary, because that is
// what the group change is for.
func verifyRuntimeCommand() string {
	probes := []string{"docker info --format '{{.ServerVersion}}'"}
	for _, tool := range prerequisites.RemoteTools() {
		if tool.Name == "docker" {
			continue
		}
		probes = append(probes, "command -v "+tool.Name)
	}
	return strings.Join(probes, " && ")
}
