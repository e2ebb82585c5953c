package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tableflow/internal/config"
)

func TestBreakerTrips(t *testing.T) {
	b := New("test-trips", config.CircuitBreakerConfig{MinRequests: 2, FailureRatio: 0.5, Timeout: time.Minute})
	boom := errors.New("boom")
	calls := 0

	for i := 0; i < 4; i++ {
		err := b.Do(context.Background(), func(context.Context) error {
			calls++
			return boom
		})
		require.Error(t, err)
		if i >= 2 {
			assert.True(t, IsRejected(err))
		} else {
			assert.ErrorIs(t, err, boom)
		}
	}

	assert.Equal(t, 2, calls)
	assert.True(t, b.IsOpen())
	assert.Equal(t, gobreaker.StateOpen, b.State())
}

func TestBreakerDefaultsNeedThreeRequests(t *testing.T) {
	b := New("test-defaults", config.CircuitBreakerConfig{})
	for i := 0; i < 2; i++ {
		_ = b.Do(context.Background(), func(context.Context) error { return errors.New("fail") })
	}
	assert.False(t, b.IsOpen())

	_ = b.Do(context.Background(), func(context.Context) error { return errors.New("fail") })
	assert.True(t, b.IsOpen())
}

func TestCall(t *testing.T) {
	b := New("test-call", config.CircuitBreakerConfig{})

	got, err := Call(context.Background(), b, func(context.Context) (bool, error) { return true, nil })
	require.NoError(t, err)
	assert.True(t, got)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	_, err = Call(ctx, b, func(context.Context) (bool, error) {
		called = true
		return true, nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
	assert.False(t, IsRejected(err))
}
