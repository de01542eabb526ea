package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/imamik/k3dops/internal/platform/aws"
	"github.com/imamik/k3dops/internal/util/prerequisites"
)

// Factory function variables - can be replaced in tests for dependency injection.
var (
	// checkTools probes the local PATH for client tools.
	checkTools = prerequisites.CheckAll

	// newEC2Client creates the EC2 diagnostics client.
	newEC2Client = func(ctx context.Context, region string) (instanceDescriber, error) {
		return aws.NewEC2Client(ctx, region)
	}
)

// instanceDescriber is the EC2 surface doctor needs.
type instanceDescriber interface {
	DescribeInstance(ctx context.Context, instanceID string) (*aws.InstanceInfo, error)
}

// DoctorReport is the diagnosis of the local toolchain and, when a config
// with provisioned infrastructure is present, the remote instance and the
// backup bucket.
type DoctorReport struct {
	Tools      []ToolStatus      `json:"tools"`
	ConfigFile string            `json:"config_file,omitempty"`
	Instance   *aws.InstanceInfo `json:"instance,omitempty"`
	Backup     *BackupStatus     `json:"backup,omitempty"`
	Healthy    bool              `json:"healthy"`
}

// BackupStatus reports whether the configured backup bucket is reachable.
type BackupStatus struct {
	Bucket string `json:"bucket"`
	Exists bool   `json:"exists"`
}

// ToolStatus is one PATH probe result.
type ToolStatus struct {
	Name     string `json:"name"`
	Required bool   `json:"required"`
	Found    bool   `json:"found"`
	Path     string `json:"path,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Doctor checks the local toolchain and, when the config and terraform state
// are available, the live EC2 instance. It reports findings to w; only an
// inability to produce the report is an error, an unhealthy result is not.
func Doctor(ctx context.Context, configPath string, jsonOutput bool, w io.Writer) error {
	report := &DoctorReport{Healthy: true}

	results := checkTools()
	for _, r := range results.Results {
		report.Tools = append(report.Tools, ToolStatus{
			Name:     r.Tool.Name,
			Required: r.Tool.Required,
			Found:    r.Found,
			Path:     r.Path,
			Version:  r.Version,
		})
	}
	if results.HasErrors() {
		report.Healthy = false
	}

	// Instance diagnosis is best effort: no config or no state just means
	// there is nothing provisioned to inspect.
	if cfg, resolvedPath, err := loadConfig(configPath); err == nil {
		report.ConfigFile = resolvedPath

		outputs, err := newEngine(filepath.Join(filepath.Dir(resolvedPath), terraformSubdir)).Output(ctx)
		if err == nil {
			if id := outputs.StringOr("instance_id", ""); id != "" {
				if client, err := newEC2Client(ctx, cfg.Provisioning.Region); err == nil {
					if info, err := client.DescribeInstance(ctx, id); err == nil {
						report.Instance = info
						if info == nil || info.State != "running" {
							report.Healthy = false
						}
					}
				}
			}
		}

		if cfg.Backup.Bucket != "" {
			if store, err := newS3Client(ctx, cfg.Provisioning.Region); err == nil {
				if exists, err := store.BucketExists(ctx, cfg.Backup.Bucket); err == nil {
					report.Backup = &BackupStatus{Bucket: cfg.Backup.Bucket, Exists: exists}
					if !exists {
						report.Healthy = false
					}
				}
			}
		}
	}

	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	printReport(w, report)
	return nil
}

func printReport(w io.Writer, report *DoctorReport) {
	fmt.Fprintln(w, "Local tools:")
	for _, t := range report.Tools {
		mark := "ok"
		if !t.Found {
			mark = "missing"
			if !t.Required {
				mark = "missing (optional)"
			}
		}
		detail := t.Version
		if detail == "" {
			detail = t.Path
		}
		fmt.Fprintf(w, "  %-10s %-18s %s\n", t.Name, mark, detail)
	}

	if report.Instance != nil {
		fmt.Fprintln(w, "Instance:")
		fmt.Fprintf(w, "  %s  %s  %s  %s\n",
			report.Instance.InstanceID, report.Instance.State,
			report.Instance.InstanceType, report.Instance.PublicIP)
	}

	if report.Backup != nil {
		state := "ok"
		if !report.Backup.Exists {
			state = "missing"
		}
		fmt.Fprintf(w, "Backup bucket:\n  %s  %s\n", report.Backup.Bucket, state)
	}

	if report.Healthy {
		fmt.Fprintln(w, "All checks passed.")
	} else {
		fmt.Fprintln(w, "Problems found, see above.")
	}
}
