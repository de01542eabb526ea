package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		ClusterName: "local-k8s",
		Provisioning: ProvisioningConfig{
			Region:       "us-east-1",
			InstanceType: "t3.large",
			VolumeSizeGB: 50,
			KeyName:      "deployer",
			AllowedCIDRs: []string{"203.0.113.0/24"},
			Environment:  "dev",
		},
		Bootstrap: BootstrapConfig{User: "ubuntu", PrivateKeyPath: "~/.ssh/deployer.pem"},
		Topology:  Topology{Servers: 1, Agents: 2},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	t.Parallel()
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_VolumeTooSmall(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Provisioning.VolumeSizeGB = 10

	err := cfg.Validate()
	require.Error(t, err)

	var ice *InvalidConfigError
	require.True(t, errors.As(err, &ice))
	require.Len(t, ice.Fields, 1)
	assert.Equal(t, "provisioning.volume_size", ice.Fields[0].Field)
	assert.Contains(t, ice.Fields[0].Message, "30")
}

func TestValidate_RegionPattern(t *testing.T) {
	t.Parallel()
	tests := []struct {
		region string
		valid  bool
	}{
		{"us-east-1", true},
		{"eu-central-1", true},
		{"ap-southeast-2", true},
		{"us-gov-west-1", true},
		{"US-EAST-1", false},
		{"useast1", false},
		{"us-east", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.region, func(t *testing.T) {
			t.Parallel()
			cfg := validConfig()
			cfg.Provisioning.Region = tt.region
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestValidate_InstanceTypeAllowList(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Provisioning.InstanceType = "t2.nano"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "t2.nano")
	assert.Contains(t, err.Error(), "not in the allowed set")
}

func TestValidate_EnvironmentEnum(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Provisioning.Environment = "production"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "production")
}

func TestValidate_InvalidCIDR(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Provisioning.AllowedCIDRs = []string{"10.0.0.0/8", "not-a-cidr"}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "allowed_cidrs[1]")
}

func TestValidate_ClusterName(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.ClusterName = "Invalid_Name"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cluster_name")
}

func TestValidate_TierOrdering(t *testing.T) {
	t.Parallel()
	cfg := validConfig()
	cfg.Manifests = []ManifestEntry{
		{Name: "namespaces", Path: "manifests/namespaces.yaml", Tier: 0},
		{Name: "postgres", Path: "manifests/postgres.yaml", Tier: 2},
		{Name: "storage", Path: "manifests/storage.yaml", Tier: 1},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "non-decreasing")
}

func TestValidate_CollectsAllErrors(t *testing.T) {
	t.Parallel()
	cfg := &Config{}

	err := cfg.Validate()
	require.Error(t, err)

	var ice *InvalidConfigError
	require.True(t, errors.As(err, &ice))
	assert.GreaterOrEqual(t, len(ice.Fields), 5)
	assert.Equal(t, strings.Count(err.Error(), "\n")+1, len(ice.Fields)+1)
}
