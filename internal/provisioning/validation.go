package provisioning

import (
	"fmt"
	"os"
	"strings"

	"github.com/imamik/k3dops/internal/config"
	"github.com/imamik/k3dops/internal/util/prerequisites"
)

// ValidationError is one pre-flight finding.
type ValidationError struct {
	Field    string // configuration field or prerequisite that failed
	Message  string
	Severity string // "error" or "warning"
}

// Error implements the error interface.
func (ve ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", ve.Severity, ve.Field, ve.Message)
}

// IsError reports whether this finding is fatal.
func (ve ValidationError) IsError() bool {
	return ve.Severity == "error"
}

// ValidationPhase probes the local environment before anything is created:
// configuration sanity, required local tools, and the SSH key material.
type ValidationPhase struct{}

// NewValidationPhase creates the pre-flight validation phase.
func NewValidationPhase() *ValidationPhase {
	return &ValidationPhase{}
}

// Name implements Phase.
func (vp *ValidationPhase) Name() string {
	return "validation"
}

// Provision implements Phase.
func (vp *ValidationPhase) Provision(ctx *Context) error {
	ctx.Observer.Printf("[Validation] Running pre-flight validation...")

	findings := validate(ctx)

	var errs []ValidationError
	for _, f := range findings {
		if f.IsError() {
			errs = append(errs, f)
			continue
		}
		ctx.Observer.Event(Event{
			Type:    EventValidationWarning,
			Phase:   vp.Name(),
			Message: f.Message,
		})
	}

	if len(errs) > 0 {
		var msgs []string
		for _, e := range errs {
			msgs = append(msgs, e.Error())
		}
		return fmt.Errorf("pre-flight validation failed:\n  %s", strings.Join(msgs, "\n  "))
	}

	ctx.Observer.Printf("[Validation] Validation passed")
	return nil
}

// validate runs all pre-flight checks and returns findings.
func validate(ctx *Context) []ValidationError {
	var findings []ValidationError

	if err := ctx.Config.Validate(); err != nil {
		findings = append(findings, ValidationError{
			Field:    "config",
			Message:  err.Error(),
			Severity: "error",
		})
	}

	results := prerequisites.CheckDefault()
	for _, r := range results.Results {
		if r.Found {
			continue
		}
		severity := "warning"
		if r.Tool.Required {
			severity = "error"
		}
		findings = append(findings, ValidationError{
			Field:    r.Tool.Name,
			Message:  fmt.Sprintf("%s not found on PATH (%s)", r.Tool.Name, r.Tool.InstallURL),
			Severity: severity,
		})
	}

	if keyPath := config.ExpandHome(ctx.Config.Bootstrap.PrivateKeyPath); keyPath != "" {
		info, err := os.Stat(keyPath)
		switch {
		case err != nil:
			findings = append(findings, ValidationError{
				Field:    "bootstrap.private_key_path",
				Message:  fmt.Sprintf("private key %s not readable: %v", keyPath, err),
				Severity: "error",
			})
		case info.Mode().Perm()&0o077 != 0:
			findings = append(findings, ValidationError{
				Field:    "bootstrap.private_key_path",
				Message:  fmt.Sprintf("private key %s is group or world accessible; sshd on the host may reject it", keyPath),
				Severity: "warning",
			})
		}
	}

	if os.Getenv("AWS_ACCESS_KEY_ID") == "" && os.Getenv("AWS_PROFILE") == "" {
		if _, err := os.Stat(awsCredentialsPath()); err != nil {
			findings = append(findings, ValidationError{
				Field:    "aws",
				Message:  "no AWS credentials found in environment or ~/.aws; terraform will fail to authenticate",
				Severity: "warning",
			})
		}
	}

	return findings
}

func awsCredentialsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "/nonexistent"
	}
	return home + "/.aws/credentials"
}
