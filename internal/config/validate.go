package config

import (
	"fmt"
	"net"
	"regexp"
	"slices"
	"strings"
)

// clusterNameRegex validates cluster name format: 1-32 lowercase
// alphanumeric characters with hyphens. k3d uses the name as a docker
// network and container prefix.
var clusterNameRegex = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9-]{0,30}[a-z0-9])?$`)

// regionRegex matches AWS region names like us-east-1 or ap-southeast-2.
var regionRegex = regexp.MustCompile(`^[a-z]{2}(?:-[a-z]+)+-\d$`)

// FieldError describes a single invalid configuration field.
type FieldError struct {
	Field   string
	Message string
}

func (fe FieldError) Error() string {
	return fmt.Sprintf("%s: %s", fe.Field, fe.Message)
}

// InvalidConfigError aggregates all field errors found during validation.
// It is returned before any external tool is contacted.
type InvalidConfigError struct {
	Fields []FieldError
}

func (e *InvalidConfigError) Error() string {
	msgs := make([]string, 0, len(e.Fields))
	for _, fe := range e.Fields {
		msgs = append(msgs, fe.Error())
	}
	return fmt.Sprintf("invalid config:\n  %s", strings.Join(msgs, "\n  "))
}

// Validate checks the configuration and returns an *InvalidConfigError
// listing every violated constraint, or nil when the config is valid.
func (c *Config) Validate() error {
	var fields []FieldError

	add := func(field, message string) {
		fields = append(fields, FieldError{Field: field, Message: message})
	}

	if c.ClusterName == "" {
		add("cluster_name", "cluster name is required")
	} else if !clusterNameRegex.MatchString(c.ClusterName) {
		add("cluster_name", "must be 1-32 lowercase alphanumeric characters or hyphens")
	}

	p := c.Provisioning

	if p.Region == "" {
		add("provisioning.region", "region is required (e.g. 'us-east-1')")
	} else if !regionRegex.MatchString(p.Region) {
		add("provisioning.region", fmt.Sprintf("%q does not look like an AWS region", p.Region))
	}

	if p.InstanceType == "" {
		add("provisioning.instance_type", "instance type is required")
	} else if !slices.Contains(AllowedInstanceTypes, p.InstanceType) {
		add("provisioning.instance_type",
			fmt.Sprintf("%q is not in the allowed set %v", p.InstanceType, AllowedInstanceTypes))
	}

	if p.VolumeSizeGB < MinVolumeSizeGB {
		add("provisioning.volume_size",
			fmt.Sprintf("volume size %d GiB is below the minimum of %d GiB", p.VolumeSizeGB, MinVolumeSizeGB))
	}

	if p.KeyName == "" {
		add("provisioning.key_name", "EC2 key pair name is required")
	}

	if p.Environment == "" {
		add("provisioning.environment", "environment is required")
	} else if !slices.Contains(AllowedEnvironments, p.Environment) {
		add("provisioning.environment",
			fmt.Sprintf("%q must be one of %v", p.Environment, AllowedEnvironments))
	}

	for i, cidr := range p.AllowedCIDRs {
		if _, _, err := net.ParseCIDR(cidr); err != nil {
			add(fmt.Sprintf("provisioning.allowed_cidrs[%d]", i), fmt.Sprintf("invalid CIDR: %v", err))
		}
	}

	if c.Topology.Servers < 1 {
		add("topology.servers", "at least one server node is required")
	}
	if c.Topology.Agents < 0 {
		add("topology.agents", "agent count must be non-negative")
	}

	for i, m := range c.Manifests {
		if m.Path == "" {
			add(fmt.Sprintf("manifests[%d].path", i), "manifest path is required")
		}
		if m.Tier < 0 {
			add(fmt.Sprintf("manifests[%d].tier", i), "tier must be non-negative")
		}
		if i > 0 && m.Tier < c.Manifests[i-1].Tier {
			add(fmt.Sprintf("manifests[%d].tier", i), "tiers must be non-decreasing in declaration order")
		}
	}

	if len(fields) > 0 {
		return &InvalidConfigError{Fields: fields}
	}
	return nil
}
