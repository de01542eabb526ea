package manifest

import (
	"context"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/imamik/k3dops/internal/util/async"
)

// Client is the kubectl surface the applier needs.
type Client interface {
	Apply(ctx context.Context, path string) (string, error)
	DryRunApply(ctx context.Context, path string) (string, error)
	RolloutStatus(ctx context.Context, namespace, target string, timeout time.Duration) error
}

// ApplyError wraps the first failure with the entry that caused it.
type ApplyError struct {
	Entry string
	Err   error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("failed to apply manifest %q: %v", e.Entry, e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// Result reports what a run did. On failure, Failed lists every entry that
// was attempted and failed (a parallel tier can fail more than one), and
// NotAttempted lists the entries the abort skipped, so the operator knows
// the cluster's exact shape.
type Result struct {
	Applied      []string
	Failed       []string
	NotAttempted []string
}

// Applier applies a validated set tier by tier.
type Applier struct {
	client Client

	// RolloutTimeout bounds the readiness wait per workload entry.
	RolloutTimeout time.Duration

	// Parallel applies entries within one tier concurrently. Ordering
	// across tiers is always sequential.
	Parallel bool

	// ServerValidate dry-runs every entry server-side before the first
	// real apply. A rejection aborts with nothing applied.
	ServerValidate bool

	// Logf reports progress; defaults to log.Printf.
	Logf func(format string, v ...any)
}

// NewApplier creates an applier on the given client.
func NewApplier(client Client) *Applier {
	return &Applier{
		client:         client,
		RolloutTimeout: 3 * time.Minute,
		Logf:           log.Printf,
	}
}

// Apply validates the set and applies it in tier order. The first failure
// aborts the run: later tiers are reported as not attempted, and nothing
// already applied is rolled back.
func (a *Applier) Apply(ctx context.Context, entries []Entry) (*Result, error) {
	if err := Validate(entries); err != nil {
		return &Result{NotAttempted: names(entries)}, err
	}

	if a.ServerValidate {
		if err := a.dryRunAll(ctx, entries); err != nil {
			return &Result{NotAttempted: names(entries)}, err
		}
	}

	result := &Result{}
	tiers := Tiers(entries)

	for i, tier := range tiers {
		a.Logf("applying tier %d (%d manifests)", tier[0].Tier, len(tier))

		applied, failed, err := a.applyTier(ctx, tier)
		result.Applied = append(result.Applied, applied...)

		if err != nil {
			result.Failed = failed
			for _, e := range tier {
				if !contains(applied, e.Name) && !contains(failed, e.Name) {
					result.NotAttempted = append(result.NotAttempted, e.Name)
				}
			}
			for _, later := range tiers[i+1:] {
				result.NotAttempted = append(result.NotAttempted, names(later)...)
			}
			return result, err
		}
	}

	a.Logf("manifest set applied: %d manifests", len(result.Applied))
	return result, nil
}

// dryRunAll validates every entry server-side before anything is applied.
func (a *Applier) dryRunAll(ctx context.Context, entries []Entry) error {
	a.Logf("validating %d manifests server-side", len(entries))
	for _, e := range entries {
		if _, err := a.client.DryRunApply(ctx, e.Path); err != nil {
			return &ApplyError{Entry: e.Name, Err: fmt.Errorf("server-side validation rejected manifest: %w", err)}
		}
	}
	return nil
}

// applyTier applies one tier's entries and waits for workload rollouts.
// Returns the names that applied successfully and the names that were
// attempted and failed.
func (a *Applier) applyTier(ctx context.Context, tier []Entry) (applied, failed []string, err error) {
	if !a.Parallel || len(tier) == 1 {
		for _, e := range tier {
			if err := a.applyOne(ctx, e); err != nil {
				return applied, []string{e.Name}, err
			}
			applied = append(applied, e.Name)
		}
		return applied, nil, nil
	}

	var mu sync.Mutex

	tasks := make([]async.Task, 0, len(tier))
	for _, e := range tier {
		entry := e
		tasks = append(tasks, async.Task{
			Name: entry.Name,
			Func: func(ctx context.Context) error {
				applyErr := a.applyOne(ctx, entry)
				mu.Lock()
				if applyErr != nil {
					failed = append(failed, entry.Name)
				} else {
					applied = append(applied, entry.Name)
				}
				mu.Unlock()
				return applyErr
			},
		})
	}

	err = async.RunParallel(ctx, tasks)
	sort.Strings(applied)
	sort.Strings(failed)
	if err == nil {
		failed = nil
	}
	return applied, failed, err
}

func (a *Applier) applyOne(ctx context.Context, e Entry) error {
	if _, err := a.client.Apply(ctx, e.Path); err != nil {
		return &ApplyError{Entry: e.Name, Err: err}
	}

	if e.Workload() && e.ResourceName != "" {
		a.Logf("waiting for rollout of %s in %s", e.RolloutTarget(), e.Namespace)
		if err := a.client.RolloutStatus(ctx, e.Namespace, e.RolloutTarget(), a.RolloutTimeout); err != nil {
			return &ApplyError{Entry: e.Name, Err: fmt.Errorf("rollout did not complete: %w", err)}
		}
	}
	return nil
}

func names(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
