package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/platform/terraform"
)

// Provisioner applies and destroys the Terraform-managed infrastructure:
// VPC, security group, IAM role, and the EC2 instance that hosts the
// k3d cluster.
type Provisioner struct {
	engine terraform.Engine

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// NewProvisioner creates a provisioner on top of a terraform engine.
func NewProvisioner(engine terraform.Engine) *Provisioner {
	return &Provisioner{engine: engine, Logf: log.Printf}
}

// Apply validates the config, then runs init, plan, and apply, and reads the
// typed outputs into a State.
//
// Validation failures return *config.InvalidConfigError before any engine
// call. Re-applying an unchanged config is a no-op (terraform semantics);
// when the plan contains changes its summary is logged so the diff is
// visible before the update happens.
func (p *Provisioner) Apply(ctx context.Context, cfg *config.Config) (*State, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	vars, err := varsFor(cfg)
	if err != nil {
		return nil, err
	}

	if err := p.engine.Init(ctx); err != nil {
		return nil, &ProvisionError{Op: "init", Err: err}
	}

	plan, err := p.engine.Plan(ctx, vars)
	if err != nil {
		return nil, &ProvisionError{Op: "plan", Err: err}
	}
	if plan.HasChanges {
		p.Logf("infrastructure plan has changes:\n%s", plan.Summary)
	} else {
		p.Logf("infrastructure up to date, nothing to apply")
	}

	if plan.HasChanges {
		if err := p.engine.Apply(ctx, vars); err != nil {
			return nil, &ProvisionError{Op: "apply", Err: err}
		}
	}

	return p.readState(ctx)
}

// Destroy reverses all provisioned resources. Destroying infrastructure
// that is already gone is a success.
func (p *Provisioner) Destroy(ctx context.Context, cfg *config.Config) error {
	vars, err := varsFor(cfg)
	if err != nil {
		return err
	}

	if err := p.engine.Destroy(ctx, vars); err != nil {
		return &ProvisionError{Op: "destroy", Err: err}
	}
	return nil
}

// readState reads the terraform outputs into a State and checks the fields
// later stages depend on.
func (p *Provisioner) readState(ctx context.Context) (*State, error) {
	outputs, err := p.engine.Output(ctx)
	if err != nil {
		return nil, &ProvisionError{Op: "output", Err: err}
	}

	state := &State{
		InstanceID:      outputs.StringOr("instance_id", ""),
		PublicIP:        outputs.StringOr("public_ip", ""),
		PrivateIP:       outputs.StringOr("private_ip", ""),
		SecurityGroupID: outputs.StringOr("security_group_id", ""),
		VPCID:           outputs.StringOr("vpc_id", ""),
	}

	if state.InstanceID == "" || state.PublicIP == "" {
		return nil, &ProvisionError{
			Op:  "output",
			Err: fmt.Errorf("incomplete outputs: instance_id=%q public_ip=%q", state.InstanceID, state.PublicIP),
		}
	}

	return state, nil
}

// varsFor maps the provisioning config onto the module's input variables.
// The CIDR list is passed as a JSON-encoded terraform list.
func varsFor(cfg *config.Config) (terraform.Vars, error) {
	cidrs, err := json.Marshal(cfg.Provisioning.AllowedCIDRs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode allowed_cidrs: %w", err)
	}

	return terraform.Vars{
		"cluster_name":  cfg.ClusterName,
		"region":        cfg.Provisioning.Region,
		"instance_type": cfg.Provisioning.InstanceType,
		"volume_size":   strconv.Itoa(cfg.Provisioning.VolumeSizeGB),
		"key_name":      cfg.Provisioning.KeyName,
		"allowed_cidrs": string(cidrs),
		"environment":   cfg.Provisioning.Environment,
	}, nil
}
