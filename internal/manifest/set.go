// Package manifest loads, validates, and applies the declared manifest set
// in dependency order.
//
// Ordering is explicit: every entry carries a tier, and tiers are applied
// strictly ascending. Namespaces sit in the lowest tier so that nothing is
// ever applied into a namespace that was not created first. Filename-based
// ordering is deliberately not supported.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	sigyaml "sigs.k8s.io/yaml"

	"github.com/imamik/k3dops/internal/config"
)

// Entry is one manifest in the set, resolved and sniffed.
type Entry struct {
	Name      string
	Path      string
	Kind      string
	Namespace string
	Tier      int

	// ResourceName is metadata.name of the first document in the file.
	ResourceName string
}

// Workload reports whether the entry's kind has rollout semantics worth
// waiting on.
func (e *Entry) Workload() bool {
	switch e.Kind {
	case "Deployment", "StatefulSet", "DaemonSet":
		return true
	}
	return false
}

// RolloutTarget is the kubectl rollout target, e.g. "deployment/postgres".
func (e *Entry) RolloutTarget() string {
	return strings.ToLower(e.Kind) + "/" + e.ResourceName
}

// header is the sniffed shape of a manifest document.
type header struct {
	Kind     string `json:"kind"`
	Metadata struct {
		Name      string `json:"name"`
		Namespace string `json:"namespace"`
	} `json:"metadata"`
}

// Load resolves the configured manifest entries against baseDir, reads each
// file, and fills in kind, namespace, and resource name from the manifest
// content where the config leaves them unset.
func Load(baseDir string, entries []config.ManifestEntry) ([]Entry, error) {
	out := make([]Entry, 0, len(entries))

	for _, ce := range entries {
		path := ce.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(baseDir, path)
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest %s: %w", ce.Name, err)
		}

		h, err := sniff(content)
		if err != nil {
			return nil, fmt.Errorf("failed to parse manifest %s: %w", ce.Name, err)
		}

		entry := Entry{
			Name:         ce.Name,
			Path:         path,
			Kind:         ce.Kind,
			Namespace:    ce.Namespace,
			Tier:         ce.Tier,
			ResourceName: h.Metadata.Name,
		}
		if entry.Kind == "" {
			entry.Kind = h.Kind
		}
		if entry.Namespace == "" {
			entry.Namespace = h.Metadata.Namespace
		}
		out = append(out, entry)
	}

	return out, nil
}

// sniff parses the first document of a possibly multi-document manifest.
func sniff(content []byte) (*header, error) {
	doc := content
	if idx := strings.Index(string(content), "\n---"); idx >= 0 {
		doc = content[:idx]
	}

	var h header
	if err := sigyaml.Unmarshal(doc, &h); err != nil {
		return nil, err
	}
	if h.Kind == "" {
		return nil, fmt.Errorf("manifest has no kind")
	}
	return &h, nil
}

// Tiers groups entries by tier in ascending order.
func Tiers(entries []Entry) [][]Entry {
	byTier := map[int][]Entry{}
	maxTier := 0
	for _, e := range entries {
		byTier[e.Tier] = append(byTier[e.Tier], e)
		if e.Tier > maxTier {
			maxTier = e.Tier
		}
	}

	var out [][]Entry
	for tier := 0; tier <= maxTier; tier++ {
		if group, ok := byTier[tier]; ok {
			out = append(out, group)
		}
	}
	return out
}
