// Package bootstrap installs the container runtime and cluster tooling on a
// freshly provisioned host over SSH.
//
// Every step is idempotent: each one carries a check command that detects an
// already-satisfied state, so re-running the bootstrapper against a prepared
// host skips all installs and succeeds.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/imamik/k3dops/internal/platform/ssh"
)

// Step is one unit of host preparation.
type Step struct {
	// Name identifies the step in reports and errors.
	Name string

	// Check exits zero when the step's outcome is already in place. An
	// empty Check means the step always runs.
	Check string

	// Command performs the step. It must be safe to re-run.
	Command string

	// PrivilegeChange marks steps whose effect only applies to sessions
	// opened afterwards (group membership changes). After such a step the
	// bootstrapper reconnects before continuing.
	PrivilegeChange bool
}

// StepResult records the outcome of a single step.
type StepResult struct {
	Name     string
	Skipped  bool
	Duration time.Duration
}

// Report summarizes a bootstrap run.
type Report struct {
	Steps []StepResult
}

// Ran returns the number of steps that executed (were not skipped).
func (r *Report) Ran() int {
	n := 0
	for _, s := range r.Steps {
		if !s.Skipped {
			n++
		}
	}
	return n
}

// StepError wraps a failure with the step it occurred in. Steps before the
// failing one have completed and are not rolled back; re-running the
// bootstrapper skips them.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("bootstrap step %q failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Bootstrapper prepares a remote host for running k3d.
type Bootstrapper struct {
	session ssh.Session
	steps   []Step

	// StepTimeout bounds each individual step. Zero means no per-step bound
	// beyond the caller's context.
	StepTimeout time.Duration

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// New creates a bootstrapper with the default step sequence for an Ubuntu
// host identified by user.
func New(session ssh.Session, user string) *Bootstrapper {
	return &Bootstrapper{
		session: session,
		steps:   DefaultSteps(user),
		Logf:    log.Printf,
	}
}

// NewWithSteps creates a bootstrapper with a custom step sequence.
func NewWithSteps(session ssh.Session, steps []Step) *Bootstrapper {
	return &Bootstrapper{
		session: session,
		steps:   steps,
		Logf:    log.Printf,
	}
}

// Run executes the step sequence in order and returns a report of what ran.
// The first failing step aborts the run with a *StepError.
func (b *Bootstrapper) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	for _, step := range b.steps {
		result, err := b.runStep(ctx, step)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, result)

		if step.PrivilegeChange && !result.Skipped {
			b.session.MarkPrivilegePending()
			b.Logf("bootstrap: reconnecting to pick up privilege change from %q", step.Name)
			if err := b.session.Reconnect(ctx); err != nil {
				return report, &StepError{Step: step.Name, Err: fmt.Errorf("reconnect after privilege change: %w", err)}
			}
		}
	}

	b.Logf("bootstrap: complete, %d of %d steps ran", report.Ran(), len(report.Steps))
	return report, nil
}

func (b *Bootstrapper) runStep(ctx context.Context, step Step) (StepResult, error) {
	if step.Check != "" {
		if _, err := b.session.Execute(ctx, step.Check); err == nil {
			b.Logf("bootstrap: %s already satisfied, skipping", step.Name)
			return StepResult{Name: step.Name, Skipped: true}, nil
		}
	}

	stepCtx := ctx
	if b.StepTimeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, b.StepTimeout)
		defer cancel()
	}

	b.Logf("bootstrap: running %s", step.Name)
	start := time.Now()

	out, err := b.session.Execute(stepCtx, step.Command)
	if err != nil {
		if errors.Is(err, ssh.ErrTimedOut) {
			return StepResult{}, &StepError{
				Step: step.Name,
				Err:  fmt.Errorf("%w (last output: %s)", err, lastLine(out)),
			}
		}
		return StepResult{}, &StepError{Step: step.Name, Err: err}
	}

	return StepResult{Name: step.Name, Duration: time.Since(start)}, nil
}

func lastLine(out string) string {
	out = strings.TrimSpace(out)
	if out == "" {
		return "<none>"
	}
	lines := strings.Split(out, "\n")
	return lines[len(lines)-1]
}
