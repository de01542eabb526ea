package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithExponentialBackoff_SucceedsFirstAttempt(t *testing.T) {
	t.Parallel()
	calls := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		calls++
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithExponentialBackoff_SucceedsAfterRetries(t *testing.T) {
	t.Parallel()
	calls := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, WithInitialDelay(time.Millisecond), WithMaxDelay(5*time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestWithExponentialBackoff_ExhaustsRetries(t *testing.T) {
	t.Parallel()
	calls := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		calls++
		return errors.New("always failing")
	}, WithMaxRetries(2), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "operation failed after 3 retries")
}

func TestWithExponentialBackoff_FatalNotRetried(t *testing.T) {
	t.Parallel()
	calls := 0

	err := WithExponentialBackoff(context.Background(), func() error {
		calls++
		return Fatal(errors.New("bad credentials"))
	}, WithMaxRetries(5), WithInitialDelay(time.Millisecond))

	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "not retrying")
}

func TestWithExponentialBackoff_ContextCancelled(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithExponentialBackoff(ctx, func() error {
		return errors.New("transient")
	}, WithMaxRetries(3), WithInitialDelay(50*time.Millisecond))

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithExponentialBackoff_DelayCapped(t *testing.T) {
	t.Parallel()
	start := time.Now()
	calls := 0

	_ = WithExponentialBackoff(context.Background(), func() error {
		calls++
		return errors.New("transient")
	},
		WithMaxRetries(3),
		WithInitialDelay(time.Millisecond),
		WithMaxDelay(2*time.Millisecond),
		WithMultiplier(100),
	)

	assert.Equal(t, 4, calls)
	assert.Less(t, time.Since(start), time.Second)
}

func TestFatal_NilError(t *testing.T) {
	t.Parallel()
	assert.NoError(t, Fatal(nil))
}

func TestIsFatal_WrappedFatal(t *testing.T) {
	t.Parallel()
	inner := Fatal(errors.New("boom"))
	wrapped := errors.Join(errors.New("outer"), inner)

	assert.True(t, IsFatal(wrapped))
	assert.False(t, IsFatal(errors.New("plain")))
}

func TestFatalError_Unwrap(t *testing.T) {
	t.Parallel()
	inner := errors.New("inner")
	err := Fatal(inner)

	assert.ErrorIs(t, err, inner)
	assert.Equal(t, "inner", err.Error())
}
