package resilience

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"voicedesk-backend/pkg/logger"
)

// Config controls retry behavior for collaborator calls
type Config struct {
	Attempts int           // total attempts, including the first
	Backoff  time.Duration // wait between attempts
}

// DefaultConfig retries once after a short backoff. Transient collaborator
// failures (store, retrieval, generation) get exactly one more chance before
// the caller degrades to its fallback path.
func DefaultConfig() *Config {
	return &Config{
		Attempts: 2,
		Backoff:  200 * time.Millisecond,
	}
}

// Do runs fn up to cfg.Attempts times, respecting ctx between attempts.
// The last error is returned wrapped with the operation name.
func Do(ctx context.Context, cfg *Config, operation string, fn func() error) error {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.Attempts; attempt++ {
		if attempt > 1 {
			logger.Warn("retrying operation",
				zap.String("operation", operation),
				zap.Int("attempt", attempt),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return fmt.Errorf("%s: %w", operation, ctx.Err())
			case <-time.After(cfg.Backoff):
			}
		}

		if err := fn(); err != nil {
			lastErr = err
			continue
		}
		return nil
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operation, cfg.Attempts, lastErr)
}
