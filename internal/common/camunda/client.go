package camunda

import (
	"context"
	"fmt"
	"time"

	"propensity-scoring/internal/common/config"
	"propensity-scoring/internal/common/logger"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
)

type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

var DefaultRetryConfig = RetryConfig{
	MaxRetries: 5,
	BaseDelay:  1 * time.Second,
	MaxDelay:   10 * time.Second,
}

// Connect opens a Zeebe client and checks the gateway topology, retrying
// with exponential backoff.
func Connect(ctx context.Context, cfg config.CamundaConfig, log logger.Logger) (zbc.Client, error) {
	var client zbc.Client
	err := RetryWithBackoff(ctx, DefaultRetryConfig, log, "zeebe", func(ctx context.Context) error {
		c, err := zbc.NewClient(&zbc.ClientConfig{
			GatewayAddress:         cfg.BrokerAddress,
			UsePlaintextConnection: cfg.UsePlaintext,
		})
		if err != nil {
			return fmt.Errorf("create zeebe client: %w", err)
		}

		topoCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.RequestTimeout))
		defer cancel()
		if _, err := c.NewTopologyCommand().Send(topoCtx); err != nil {
			_ = c.Close()
			return fmt.Errorf("zeebe gateway %s unreachable: %w", cfg.BrokerAddress, err)
		}
		client = c
		return nil
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// RetryWithBackoff runs fn until it succeeds, the retries are spent or ctx
// is done.
func RetryWithBackoff(ctx context.Context, rc RetryConfig, log logger.Logger, name string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := 0; attempt <= rc.MaxRetries; attempt++ {
		if lastErr = fn(ctx); lastErr == nil {
			return nil
		}
		if attempt == rc.MaxRetries {
			break
		}

		delay := rc.BaseDelay * time.Duration(1<<attempt)
		if delay > rc.MaxDelay {
			delay = rc.MaxDelay
		}
		log.Warn("connection attempt failed", map[string]interface{}{
			"target":  name,
			"attempt": attempt + 1,
			"delay":   delay.String(),
			"error":   lastErr,
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s: cancelled after %d attempts: %w", name, attempt+1, ctx.Err())
		}
	}
	return fmt.Errorf("%s: failed after %d retries: %w", name, rc.MaxRetries, lastErr)
}
