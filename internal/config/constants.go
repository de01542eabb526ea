package config

const (
	// DefaultConfigFile is the config filename looked up in the working
	// directory when no --config flag is given.
	DefaultConfigFile = "k3dops.yaml"

	// MinVolumeSizeGB is the smallest root volume accepted. Below this the
	// docker image cache fills up before the sample services are deployed.
	MinVolumeSizeGB = 30

	// DefaultSSHUser matches the Ubuntu AMIs the Terraform module launches.
	DefaultSSHUser = "ubuntu"

	// SSHPort is the remote session port on the provisioned host.
	SSHPort = 22

	// KubeAPIPort is the host port the cluster's API server is published
	// on. It must stay in sync with the security group's ingress rules.
	KubeAPIPort = 6443
)

// Monitoring chart defaults, applied when monitoring is enabled but the
// chart coordinates are not overridden.
const (
	DefaultMonitoringNamespace = "monitoring"
	DefaultMonitoringRelease   = "kube-prometheus-stack"
	DefaultMonitoringRepoURL   = "https://prometheus-community.github.io/helm-charts"
	DefaultMonitoringChart     = "kube-prometheus-stack"
)

// AllowedInstanceTypes is the allow-list for Provisioning.InstanceType.
// k3d needs at least 2 vCPUs / 4 GiB to run the sample stack; everything
// here clears that bar.
var AllowedInstanceTypes = []string{
	"t3.medium",
	"t3.large",
	"t3.xlarge",
	"t3a.medium",
	"t3a.large",
	"t3a.xlarge",
	"m5.large",
	"m5.xlarge",
	"c5.large",
	"c5.xlarge",
}

// AllowedEnvironments is the fixed enum for Provisioning.Environment.
var AllowedEnvironments = []string{"dev", "staging", "prod"}
