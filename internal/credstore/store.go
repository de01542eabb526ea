// Package credstore keeps cluster credentials on disk, one kubeconfig per
// cluster, outside the user's default kubeconfig. Later stages receive the
// path explicitly instead of reading KUBECONFIG, so two pipelines on one
// machine cannot cross-wire.
package credstore

import (
	"fmt"
	"os"
	"path/filepath"

	"k8s.io/client-go/tools/clientcmd"
	clientcmdapi "k8s.io/client-go/tools/clientcmd/api"
)

// Store manages per-cluster kubeconfig files under a base directory.
type Store struct {
	dir string
}

// New creates a store rooted at dir. DefaultDir() is the usual choice.
func New(dir string) *Store {
	return &Store{dir: dir}
}

// DefaultDir returns the standard credential directory for the current user.
func DefaultDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return filepath.Join(home, ".k3dops", "credentials"), nil
}

// KubeconfigPath returns the path a cluster's kubeconfig is stored at. The
// file may not exist yet.
func (s *Store) KubeconfigPath(clusterName string) string {
	return filepath.Join(s.dir, clusterName+".kubeconfig")
}

// Write stores a cluster's kubeconfig with owner-only permissions and
// returns its path.
func (s *Store) Write(clusterName string, content []byte) (string, error) {
	if err := os.MkdirAll(s.dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create credential directory: %w", err)
	}

	path := s.KubeconfigPath(clusterName)
	if err := os.WriteFile(path, content, 0o600); err != nil {
		return "", fmt.Errorf("failed to write kubeconfig for %s: %w", clusterName, err)
	}
	return path, nil
}

// Load reads a cluster's stored kubeconfig.
func (s *Store) Load(clusterName string) ([]byte, error) {
	content, err := os.ReadFile(s.KubeconfigPath(clusterName))
	if err != nil {
		return nil, fmt.Errorf("no stored credentials for %s: %w", clusterName, err)
	}
	return content, nil
}

// Delete removes a cluster's stored kubeconfig. Deleting credentials that
// are already gone is a success.
func (s *Store) Delete(clusterName string) error {
	err := os.Remove(s.KubeconfigPath(clusterName))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete credentials for %s: %w", clusterName, err)
	}
	return nil
}

// MergeIntoFile merges the given kubeconfig content into the kubeconfig at
// destPath (typically ~/.kube/config), creating it if absent, and switches
// the current context to the incoming config's current context. Entries with
// the same name are overwritten so re-provisioning a cluster refreshes its
// credentials.
func MergeIntoFile(content []byte, destPath string) error {
	incoming, err := clientcmd.Load(content)
	if err != nil {
		return fmt.Errorf("failed to parse kubeconfig: %w", err)
	}

	dest := clientcmdapi.NewConfig()
	if _, statErr := os.Stat(destPath); statErr == nil {
		dest, err = clientcmd.LoadFromFile(destPath)
		if err != nil {
			return fmt.Errorf("failed to load existing kubeconfig %s: %w", destPath, err)
		}
	}

	for name, cluster := range incoming.Clusters {
		dest.Clusters[name] = cluster
	}
	for name, auth := range incoming.AuthInfos {
		dest.AuthInfos[name] = auth
	}
	for name, kctx := range incoming.Contexts {
		dest.Contexts[name] = kctx
	}
	if incoming.CurrentContext != "" {
		dest.CurrentContext = incoming.CurrentContext
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("failed to create kubeconfig directory: %w", err)
	}
	if err := clientcmd.WriteToFile(*dest, destPath); err != nil {
		return fmt.Errorf("failed to write merged kubeconfig: %w", err)
	}
	return nil
}
