package infra

import "fmt"

// ProvisionError wraps an infrastructure engine failure with the operation
// that failed. The provisioner does not auto-rollback: terraform tracks
// partial state, so the documented remedy is to fix the cause and re-apply.
type ProvisionError struct {
	Op  string // "init", "plan", "apply", "destroy", "output"
	Err error
}

func (e *ProvisionError) Error() string {
	return fmt.Sprintf("infrastructure %s failed: %v", e.Op, e.Err)
}

func (e *ProvisionError) Unwrap() error {
	return e.Err
}
