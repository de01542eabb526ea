// Package config defines the pipeline configuration: the provisioning
// parameters for the EC2 host, the k3d cluster topology, and the ordered
// manifest set deployed onto the cluster.
package config

// Config holds the full pipeline configuration loaded from k3dops.yaml.
// It is read once at the start of a run and treated as immutable afterwards.
type Config struct {
	ClusterName string `yaml:"cluster_name"`

	Provisioning ProvisioningConfig `yaml:"provisioning"`
	Bootstrap    BootstrapConfig    `yaml:"bootstrap"`
	Topology     Topology           `yaml:"topology"`
	Manifests    []ManifestEntry    `yaml:"manifests"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Backup       BackupConfig       `yaml:"backup"`

	// ValidateManifests runs a server-side dry-run of the whole manifest
	// set before the first real apply.
	ValidateManifests bool `yaml:"validate_manifests"`
}

// ProvisioningConfig describes the AWS infrastructure to create.
type ProvisioningConfig struct {
	Region       string   `yaml:"region"`        // e.g. "us-east-1"
	InstanceType string   `yaml:"instance_type"` // e.g. "t3.large"
	VolumeSizeGB int      `yaml:"volume_size"`   // root volume, GiB
	KeyName      string   `yaml:"key_name"`      // EC2 key pair name
	AllowedCIDRs []string `yaml:"allowed_cidrs"` // SSH/API ingress sources
	Environment  string   `yaml:"environment"`   // dev, staging, or prod
}

// BootstrapConfig describes how to reach and prepare the provisioned host.
type BootstrapConfig struct {
	User           string `yaml:"user"`             // SSH user on the AMI
	PrivateKeyPath string `yaml:"private_key_path"` // key matching Provisioning.KeyName
}

// Topology declares the shape of the k3d cluster. The cluster name is the
// natural key: creating a cluster whose name already exists is a no-op.
type Topology struct {
	Servers int      `yaml:"servers"`
	Agents  int      `yaml:"agents"`
	Ports   []string `yaml:"ports"`   // k3d port mappings, e.g. "8080:80@loadbalancer"
	Volumes []string `yaml:"volumes"` // k3d volume mounts, e.g. "/data:/data@all"
}

// ManifestEntry references one manifest file and its position in the
// dependency order. Tier replaces lexical filename ordering: lower tiers
// apply strictly before higher ones.
type ManifestEntry struct {
	Name      string `yaml:"name"`
	Path      string `yaml:"path"`
	Kind      string `yaml:"kind,omitempty"`      // sniffed from the file when empty
	Namespace string `yaml:"namespace,omitempty"` // sniffed from the file when empty
	Tier      int    `yaml:"tier"`
}

// MonitoringConfig controls the optional kube-prometheus-stack install.
type MonitoringConfig struct {
	Enabled   bool           `yaml:"enabled"`
	Namespace string         `yaml:"namespace"`
	Release   string         `yaml:"release"`
	RepoURL   string         `yaml:"repo_url"`
	Chart     string         `yaml:"chart"`
	Version   string         `yaml:"version"`
	Values    map[string]any `yaml:"values,omitempty"`
}

// BackupConfig controls the optional S3 upload of kubeconfig and
// Terraform state snapshots.
type BackupConfig struct {
	Bucket string `yaml:"bucket"`
	Prefix string `yaml:"prefix"`
}
