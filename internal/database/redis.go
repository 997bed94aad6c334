package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// RedisClient wraps the Redis client with degraded mode support. When Redis
// is unreachable the pipeline keeps running: pub/sub fan-out falls back to
// the local transports and event dedup falls back to the in-process cache.
type RedisClient struct {
	Client         *redis.Client
	degradedMode   bool
	degradedModeMu sync.RWMutex
	healthCheckMu  sync.Mutex
}

// NewRedisDB creates a new Redis client from config with degraded mode support
func NewRedisDB(cfg *RedisConfig) (*RedisClient, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		ReadTimeout:  cfg.Timeout,
		WriteTimeout: cfg.Timeout,
		DialTimeout:  cfg.Timeout,
	})

	return &RedisClient{Client: client}, nil
}

// Close closes the Redis client connection
func (r *RedisClient) Close() {
	r.Client.Close()
}

// StartHealthCheck starts a background goroutine that periodically checks Redis health
func (r *RedisClient) StartHealthCheck(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				r.HealthCheck(context.Background())
			}
		}
	}()
}

// IsDegraded returns true if Redis is in degraded mode
func (r *RedisClient) IsDegraded() bool {
	r.degradedModeMu.RLock()
	defer r.degradedModeMu.RUnlock()
	return r.degradedMode
}

func (r *RedisClient) setDegradedState(degraded bool) {
	r.degradedModeMu.Lock()
	defer r.degradedModeMu.Unlock()
	r.degradedMode = degraded
}

// HealthCheck performs a health check on Redis and updates degraded mode.
// It uses a mutex to prevent concurrent health checks from overwhelming Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	r.healthCheckMu.Lock()
	defer r.healthCheckMu.Unlock()

	healthCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := r.Client.Ping(healthCtx).Err(); err != nil {
		r.setDegradedState(true)
		return fmt.Errorf("redis health check failed: %w", err)
	}

	r.setDegradedState(false)
	return nil
}

// SafePublish performs a PUBLISH operation with degraded mode handling
func (r *RedisClient) SafePublish(ctx context.Context, channel string, message interface{}) *redis.IntCmd {
	if r.IsDegraded() {
		return redis.NewIntResult(0, fmt.Errorf("redis is in degraded mode, publish skipped"))
	}
	return r.Client.Publish(ctx, channel, message)
}

// SafeSubscribe performs a SUBSCRIBE operation with degraded mode handling
func (r *RedisClient) SafeSubscribe(ctx context.Context, channels ...string) *redis.PubSub {
	if r.IsDegraded() {
		return nil // no subscription in degraded mode
	}
	return r.Client.Subscribe(ctx, channels...)
}

// SafeSetNX performs a SET NX operation with degraded mode handling
func (r *RedisClient) SafeSetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd {
	if r.IsDegraded() {
		return redis.NewBoolResult(false, fmt.Errorf("redis is in degraded mode, setnx skipped"))
	}
	return r.Client.SetNX(ctx, key, value, expiration)
}
