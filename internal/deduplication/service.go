package deduplication

import (
	"context"
	"fmt"
	"time"

	"tableflow/internal/config"
	"tableflow/internal/constants"
	"tableflow/internal/logger"
	"tableflow/pkg/metrics"
	"tableflow/pkg/tracing"
)

// Service claims inbound events so each one is processed once across
// consumers. A claim expires after the configured TTL.
type Service struct {
	repo   Repository
	hasher *Hasher
	cfg    config.DeduplicationConfig
	ttl    time.Duration
	logger logger.Logger
}

func NewService(repo Repository, cfg config.DeduplicationConfig, log logger.Logger) *Service {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	if ttl <= 0 {
		ttl = constants.DefaultDedupTTLSeconds * time.Second
	}

	return &Service{
		repo:   repo,
		hasher: NewHasher(cfg.HashAlgorithm),
		cfg:    cfg,
		ttl:    ttl,
		logger: log,
	}
}

// Key returns the claim key for an event. Events without an ID are keyed
// by a hash of fields.
func (s *Service) Key(eventID string, fields map[string]any) (string, error) {
	if eventID != "" {
		return constants.CacheKeyPrefixEvent + eventID, nil
	}

	hash, err := s.hasher.ComputeHash(fields)
	if err != nil {
		return "", fmt.Errorf("failed to compute event hash: %w", err)
	}
	return constants.CacheKeyPrefixEvent + "h:" + hash, nil
}

// Claim reports whether the caller is the first to see key. When the store
// fails the configured fallback decides.
func (s *Service) Claim(ctx context.Context, key string) (bool, error) {
	ctx, span := tracing.GetTracer("deduplication").Start(ctx, "deduplication.claim")
	defer span.End()

	if err := ctx.Err(); err != nil {
		return false, err
	}

	start := time.Now()
	claimed, err := s.repo.SetNX(ctx, key, start.Unix(), s.ttl)
	duration := time.Since(start)

	if err != nil {
		metrics.ObserveDedup("error", duration)
		return s.handleRedisError(ctx, err, key)
	}

	status := "duplicate"
	if claimed {
		status = "unique"
	}
	metrics.ObserveDedup(status, duration)
	return claimed, nil
}

// Release drops a claim so a failed event can be redelivered.
func (s *Service) Release(ctx context.Context, key string) error {
	if err := s.repo.Delete(ctx, key); err != nil {
		s.logger.WarnwCtx(ctx, "Failed to release dedup claim", "key", key, "error", err)
		return err
	}
	return nil
}

func (s *Service) handleRedisError(ctx context.Context, err error, key string) (bool, error) {
	if s.cfg.OnRedisError == constants.FallbackDeny {
		metrics.FallbackUsageTotal.WithLabelValues("deduplication", "deny_on_error").Inc()
		return false, fmt.Errorf("redis error during dedup check for %s: %w", key, err)
	}

	metrics.FallbackUsageTotal.WithLabelValues("deduplication", "allow_on_error").Inc()
	s.logger.WarnwCtx(ctx, "Redis error during dedup check, allowing event (fallback: allow)",
		"key", key,
		"error", err,
	)
	return true, nil
}
