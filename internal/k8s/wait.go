package k8s

import (
	"context"
	"fmt"
	"time"

	"k8s.io/apimachinery/pkg/util/wait"
)

// WaitForNodesReady blocks until at least expected nodes report Ready or the
// timeout elapses. Transient API errors during the wait are retried, not
// surfaced; only the timeout fails the wait.
func (c *Client) WaitForNodesReady(ctx context.Context, expected int, timeout time.Duration) error {
	var lastTotal, lastReady int

	err := wait.PollUntilContextTimeout(ctx, pollInterval, timeout, true,
		func(ctx context.Context) (bool, error) {
			total, ready, err := c.NodeCounts(ctx)
			if err != nil {
				return false, nil
			}
			lastTotal, lastReady = total, ready
			return ready >= expected, nil
		})

	if err != nil {
		return fmt.Errorf("timed out waiting for %d ready nodes (have %d/%d): %w",
			expected, lastReady, lastTotal, err)
	}
	return nil
}
