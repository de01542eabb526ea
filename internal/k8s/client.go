// Package k8s provides the Kubernetes API surface the pipeline needs:
// node readiness waits and Helm releases for addons. Workload readiness
// goes through kubectl rollout status and helm's own wait instead.
package k8s

import (
	"context"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
	"k8s.io/client-go/tools/clientcmd"
)

// Client wraps a typed clientset built from a cluster's kubeconfig.
type Client struct {
	clientset  kubernetes.Interface
	restConfig *rest.Config
}

// NewClientFromBytes creates a client from kubeconfig bytes, as handed out
// by the credential store.
func NewClientFromBytes(kubeconfig []byte) (*Client, error) {
	restConfig, err := clientcmd.RESTConfigFromKubeConfig(kubeconfig)
	if err != nil {
		return nil, fmt.Errorf("failed to build rest config from kubeconfig: %w", err)
	}

	clientset, err := kubernetes.NewForConfig(restConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create clientset: %w", err)
	}

	return &Client{clientset: clientset, restConfig: restConfig}, nil
}

// NewClientForTesting creates a client on an injected clientset.
func NewClientForTesting(clientset kubernetes.Interface) *Client {
	return &Client{clientset: clientset}
}

// NodeCounts reports how many nodes exist and how many are Ready.
func (c *Client) NodeCounts(ctx context.Context) (total, ready int, err error) {
	nodes, err := c.clientset.CoreV1().Nodes().List(ctx, metav1.ListOptions{})
	if err != nil {
		return 0, 0, fmt.Errorf("failed to list nodes: %w", err)
	}

	for _, node := range nodes.Items {
		total++
		if isNodeReady(&node) {
			ready++
		}
	}
	return total, ready, nil
}

// ServerVersion returns the cluster's reported version string, as a cheap
// connectivity probe.
func (c *Client) ServerVersion() (string, error) {
	clientset, ok := c.clientset.(*kubernetes.Clientset)
	if !ok {
		return "fake", nil
	}
	info, err := clientset.Discovery().ServerVersion()
	if err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return info.GitVersion, nil
}

func isNodeReady(node *corev1.Node) bool {
	for _, condition := range node.Status.Conditions {
		if condition.Type == corev1.NodeReady && condition.Status == corev1.ConditionTrue {
			return true
		}
	}
	return false
}

// pollInterval is how often readiness waits re-check the API.
const pollInterval = 5 * time.Second
