package camunda

import (
	"context"
	"errors"
	"testing"
	"time"

	"propensity-scoring/internal/common/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastRetry = RetryConfig{MaxRetries: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetryWithBackoff(t *testing.T) {
	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry, logger.NewTestLogger(t), "redis", func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := RetryWithBackoff(context.Background(), fastRetry, logger.NewTestLogger(t), "postgres", func(context.Context) error {
			calls++
			return errors.New("connection refused")
		})
		require.Error(t, err)
		assert.Equal(t, fastRetry.MaxRetries+1, calls)
		assert.Contains(t, err.Error(), "postgres: failed after 3 retries")
	})

	t.Run("stops when context is cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryConfig{MaxRetries: 5, BaseDelay: time.Hour, MaxDelay: time.Hour}
		calls := 0
		err := RetryWithBackoff(ctx, slow, logger.NewTestLogger(t), "elasticsearch", func(context.Context) error {
			calls++
			cancel()
			return errors.New("unreachable")
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	})
}
