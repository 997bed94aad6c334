package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"sync"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"voicedesk-backend/pkg/logger"
)

// breakerState represents the state of the circuit breaker
type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
)

// BreakerConfig holds circuit breaker configuration for object operations
type BreakerConfig struct {
	MaxFailures  int
	ResetTimeout time.Duration
}

// DefaultBreakerConfig returns default circuit breaker settings
func DefaultBreakerConfig() *BreakerConfig {
	return &BreakerConfig{
		MaxFailures:  5,
		ResetTimeout: 30 * time.Second,
	}
}

// Config holds object store connection settings
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

// ObjectStore wraps MinIO for call recording storage. Repeated failures open
// a circuit breaker so a dead object store does not stall webhook handling;
// the breaker re-closes after ResetTimeout.
type ObjectStore struct {
	client *minio.Client
	bucket string

	breaker     *BreakerConfig
	mu          sync.Mutex
	state       breakerState
	failures    int
	lastFailure time.Time
}

// NewObjectStore creates a new object store client
func NewObjectStore(cfg *Config) (*ObjectStore, error) {
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create object store client: %w", err)
	}

	return &ObjectStore{
		client:  client,
		bucket:  cfg.Bucket,
		breaker: DefaultBreakerConfig(),
		state:   breakerClosed,
	}, nil
}

// EnsureBucket creates the bucket if it does not exist
func (s *ObjectStore) EnsureBucket(ctx context.Context) error {
	exists, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket: %w", err)
	}
	if exists {
		return nil
	}

	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Put stores an object under key
func (s *ObjectStore) Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error {
	if err := s.allow(); err != nil {
		return err
	}

	_, err := s.client.PutObject(ctx, s.bucket, key, reader, size, minio.PutObjectOptions{
		ContentType: contentType,
	})
	s.record(err)
	if err != nil {
		return fmt.Errorf("failed to store object: %w", err)
	}
	return nil
}

// PresignedGetURL returns a time-limited download URL for key
func (s *ObjectStore) PresignedGetURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if err := s.allow(); err != nil {
		return "", err
	}

	u, err := s.client.PresignedGetObject(ctx, s.bucket, key, ttl, url.Values{})
	s.record(err)
	if err != nil {
		return "", fmt.Errorf("failed to presign object: %w", err)
	}
	return u.String(), nil
}

// Remove deletes an object
func (s *ObjectStore) Remove(ctx context.Context, key string) error {
	if err := s.allow(); err != nil {
		return err
	}

	err := s.client.RemoveObject(ctx, s.bucket, key, minio.RemoveObjectOptions{})
	s.record(err)
	if err != nil {
		return fmt.Errorf("failed to remove object: %w", err)
	}
	return nil
}

// allow rejects the call while the breaker is open
func (s *ObjectStore) allow() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == breakerOpen {
		if time.Since(s.lastFailure) < s.breaker.ResetTimeout {
			return errors.New("object store circuit breaker is open")
		}
		// Probe again after the reset window
		s.state = breakerClosed
		s.failures = 0
	}
	return nil
}

// record updates breaker state after an operation
func (s *ObjectStore) record(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err == nil {
		s.failures = 0
		s.state = breakerClosed
		return
	}

	s.failures++
	s.lastFailure = time.Now()
	if s.failures >= s.breaker.MaxFailures && s.state != breakerOpen {
		s.state = breakerOpen
		logger.Warn("Object store circuit breaker opened",
			zap.Int("failures", s.failures))
	}
}
