package wizard

import (
	"context"
	"fmt"
	"net"
	"regexp"
	"strconv"
	"strings"

	"github.com/charmbracelet/huh"

	"github.com/imamik/k3dops/internal/config"
)

var clusterNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,30}[a-z0-9])?$`)

// Result holds the answers from the interactive wizard.
type Result struct {
	ClusterName  string
	Region       string
	InstanceType string
	VolumeSizeGB int
	KeyName      string
	AllowedCIDRs []string
	Environment  string

	PrivateKeyPath string

	Servers int
	Agents  int

	MonitoringEnabled bool
}

// Run walks the user through all question groups.
func Run(ctx context.Context) (*Result, error) {
	result := &Result{
		Region:       "eu-central-1",
		InstanceType: "t3.large",
		VolumeSizeGB: 50,
		Environment:  "dev",
		Servers:      1,
		Agents:       2,
	}

	if err := runIdentityGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("cluster identity: %w", err)
	}
	if err := runInstanceGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("instance: %w", err)
	}
	if err := runAccessGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("access: %w", err)
	}
	if err := runTopologyGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("topology: %w", err)
	}
	if err := runAddonsGroup(ctx, result); err != nil {
		return nil, fmt.Errorf("addons: %w", err)
	}

	return result, nil
}

func runIdentityGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Cluster Name").
				Description("1-32 lowercase alphanumeric characters or hyphens").
				Placeholder("local-k8s").
				Value(&result.ClusterName).
				Validate(validateClusterName),
			huh.NewSelect[string]().
				Title("AWS Region").
				Description("Where the EC2 instance is launched").
				Options(regionOptions...).
				Value(&result.Region),
			huh.NewSelect[string]().
				Title("Environment").
				Description("Tag applied to all provisioned resources").
				Options(environmentOptions()...).
				Value(&result.Environment),
		).Title("Cluster Identity"),
	).RunWithContext(ctx)
}

func runInstanceGroup(ctx context.Context, result *Result) error {
	volume := strconv.Itoa(result.VolumeSizeGB)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Instance Type").
				Description("At least 2 vCPUs and 4 GiB are needed for the cluster").
				Options(instanceTypeOptions()...).
				Value(&result.InstanceType),
			huh.NewInput().
				Title("Root Volume Size (GiB)").
				Description(fmt.Sprintf("Minimum %d GiB", config.MinVolumeSizeGB)).
				Value(&volume).
				Validate(validateVolumeSize),
		).Title("Instance"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	result.VolumeSizeGB, _ = strconv.Atoi(strings.TrimSpace(volume))
	return nil
}

func runAccessGroup(ctx context.Context, result *Result) error {
	var cidrsInput string

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("EC2 Key Pair Name").
				Description("Existing key pair used for SSH access to the host").
				Placeholder("deployer").
				Value(&result.KeyName).
				Validate(validateNonEmpty("key pair name")),
			huh.NewInput().
				Title("Private Key Path").
				Description("Local path to the key pair's private key").
				Placeholder("~/.ssh/deployer.pem").
				Value(&result.PrivateKeyPath),
			huh.NewInput().
				Title("Allowed CIDRs").
				Description("Comma-separated source ranges for SSH and API access").
				Placeholder("203.0.113.0/24").
				Value(&cidrsInput).
				Validate(validateCIDRList),
		).Title("Access"),
	).RunWithContext(ctx)
	if err != nil {
		return err
	}

	result.AllowedCIDRs = parseCIDRs(cidrsInput)
	return nil
}

func runTopologyGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[int]().
				Title("Server Nodes").
				Description("k3s control plane containers").
				Options(countOptions(3)[1:]...).
				Value(&result.Servers),
			huh.NewSelect[int]().
				Title("Agent Nodes").
				Description("k3s worker containers").
				Options(countOptions(5)...).
				Value(&result.Agents),
		).Title("Topology"),
	).RunWithContext(ctx)
}

func runAddonsGroup(ctx context.Context, result *Result) error {
	return huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Install Monitoring?").
				Description("Deploys kube-prometheus-stack via Helm").
				Value(&result.MonitoringEnabled),
		).Title("Addons"),
	).RunWithContext(ctx)
}

// ToConfig converts the wizard answers into a Config with defaults applied.
func (r *Result) ToConfig() *config.Config {
	cfg := &config.Config{
		ClusterName: r.ClusterName,
		Provisioning: config.ProvisioningConfig{
			Region:       r.Region,
			InstanceType: r.InstanceType,
			VolumeSizeGB: r.VolumeSizeGB,
			KeyName:      r.KeyName,
			AllowedCIDRs: r.AllowedCIDRs,
			Environment:  r.Environment,
		},
		Bootstrap: config.BootstrapConfig{
			PrivateKeyPath: r.PrivateKeyPath,
		},
		Topology: config.Topology{
			Servers: r.Servers,
			Agents:  r.Agents,
		},
		Monitoring: config.MonitoringConfig{
			Enabled: r.MonitoringEnabled,
		},
	}
	cfg.ApplyDefaults()
	return cfg
}

func validateClusterName(s string) error {
	if !clusterNameRegex.MatchString(s) {
		return fmt.Errorf("must be 1-32 lowercase alphanumeric characters or hyphens")
	}
	return nil
}

func validateVolumeSize(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("must be a number")
	}
	if n < config.MinVolumeSizeGB {
		return fmt.Errorf("must be at least %d GiB", config.MinVolumeSizeGB)
	}
	return nil
}

func validateNonEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s cannot be empty", what)
		}
		return nil
	}
}

func validateCIDRList(s string) error {
	for _, cidr := range parseCIDRs(s) {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			return fmt.Errorf("%q is not a valid CIDR", cidr)
		}
	}
	return nil
}

func parseCIDRs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
