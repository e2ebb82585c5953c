package deduplication

import (
	"context"
	"fmt"
	"time"

	"tableflow/internal/config"
	"tableflow/pkg/circuitbreaker"
)

const breakerName = "redis-dedup"

// CircuitBreakerRepository stops hammering Redis once it keeps failing. The
// service then applies its on_redis_error fallback.
type CircuitBreakerRepository struct {
	repo Repository
	cb   *circuitbreaker.Breaker
}

func NewCircuitBreakerRepository(repo Repository, cfg config.CircuitBreakerConfig) *CircuitBreakerRepository {
	if !cfg.Enabled {
		return &CircuitBreakerRepository{repo: repo}
	}
	return &CircuitBreakerRepository{
		repo: repo,
		cb:   circuitbreaker.New(breakerName, cfg),
	}
}

func (r *CircuitBreakerRepository) SetNX(ctx context.Context, key string, value interface{}, ttl time.Duration) (bool, error) {
	if r.cb == nil {
		return r.repo.SetNX(ctx, key, value, ttl)
	}

	claimed, err := circuitbreaker.Call(ctx, r.cb, func(ctx context.Context) (bool, error) {
		return r.repo.SetNX(ctx, key, value, ttl)
	})
	if circuitbreaker.IsRejected(err) {
		return false, fmt.Errorf("circuit breaker is open for %s: %w", breakerName, err)
	}
	return claimed, err
}

func (r *CircuitBreakerRepository) Delete(ctx context.Context, key string) error {
	if r.cb == nil {
		return r.repo.Delete(ctx, key)
	}
	return r.cb.Do(ctx, func(ctx context.Context) error {
		return r.repo.Delete(ctx, key)
	})
}

func (r *CircuitBreakerRepository) State() string {
	if r.cb == nil {
		return "disabled"
	}
	return r.cb.State().String()
}

func (r *CircuitBreakerRepository) IsOpen() bool {
	return r.cb != nil && r.cb.IsOpen()
}
