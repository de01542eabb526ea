package manifest

import (
	"fmt"
	"strings"
)

// builtinNamespaces exist on every cluster and need no declared manifest.
var builtinNamespaces = map[string]bool{
	"default":         true,
	"kube-system":     true,
	"kube-public":     true,
	"kube-node-lease": true,
}

// ValidationError aggregates every precondition violation in the set, so
// one run surfaces all of them.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("manifest set invalid:\n  - %s", strings.Join(e.Problems, "\n  - "))
}

// Validate checks the set's ordering preconditions before anything touches
// the cluster:
//
//   - every namespaced entry targets a namespace that is either built in or
//     declared by a Namespace entry in a strictly lower tier
//   - Namespace entries do not themselves carry a namespace
//   - entry names are unique
func Validate(entries []Entry) error {
	var problems []string

	// Namespace declarations by resource name, with the tier they land in.
	declared := map[string]int{}
	seen := map[string]bool{}

	for _, e := range entries {
		if seen[e.Name] {
			problems = append(problems, fmt.Sprintf("duplicate manifest name %q", e.Name))
		}
		seen[e.Name] = true

		if e.Kind == "Namespace" {
			if e.Namespace != "" {
				problems = append(problems, fmt.Sprintf("%s: Namespace manifest must not set a namespace", e.Name))
			}
			if prev, ok := declared[e.ResourceName]; ok {
				problems = append(problems, fmt.Sprintf("%s: namespace %q already declared in tier %d", e.Name, e.ResourceName, prev))
				continue
			}
			declared[e.ResourceName] = e.Tier
		}
	}

	for _, e := range entries {
		if e.Kind == "Namespace" || e.Namespace == "" || builtinNamespaces[e.Namespace] {
			continue
		}
		tier, ok := declared[e.Namespace]
		if !ok {
			problems = append(problems, fmt.Sprintf(
				"%s targets namespace %q which no Namespace manifest declares", e.Name, e.Namespace))
			continue
		}
		// Tiers apply in parallel internally, so same-tier is not enough.
		if tier >= e.Tier {
			problems = append(problems, fmt.Sprintf(
				"%s (tier %d) targets namespace %q declared in tier %d; the namespace must land in an earlier tier",
				e.Name, e.Tier, e.Namespace, tier))
		}
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}
