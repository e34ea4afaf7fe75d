package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransient = errors.New("transient")
	errPermanent = errors.New("permanent")
)

func fastConfig() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	result, err := Retry(context.Background(), fastConfig(), func(ctx context.Context) (interface{}, error) {
		attempts++
		if attempts < 3 {
			return nil, errTransient
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 3, attempts)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	attempts := 0
	_, err := Retry(context.Background(), fastConfig(), func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errTransient
	})

	assert.Equal(t, errTransient, err)
	assert.Equal(t, 3, attempts)
}

func TestRetry_CheckerStopsPermanentErrors(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableChecker = func(err error) bool { return errors.Is(err, errTransient) }

	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errPermanent
	})

	assert.Equal(t, errPermanent, err)
	assert.Equal(t, 1, attempts)
}

func TestRetry_RetryableErrorList(t *testing.T) {
	cfg := fastConfig()
	cfg.RetryableErrors = []error{errTransient}

	attempts := 0
	_, _ = Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errPermanent
	})
	assert.Equal(t, 1, attempts)

	attempts = 0
	_, _ = Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return nil, errTransient
	})
	assert.Equal(t, cfg.MaxAttempts, attempts)
}

func TestRetry_NeverRetriesOpenBreakerOrCancellation(t *testing.T) {
	for _, e := range []error{ErrCircuitOpen, context.Canceled, context.DeadlineExceeded} {
		attempts := 0
		_, err := Retry(context.Background(), fastConfig(), func(ctx context.Context) (interface{}, error) {
			attempts++
			return nil, e
		})
		assert.ErrorIs(t, err, e)
		assert.Equal(t, 1, attempts)
	}
}

func TestRetry_StopsWhenContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = 50 * time.Millisecond
	cfg.EnableJitter = false

	attempts := 0
	_, err := Retry(ctx, cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		cancel()
		return nil, errTransient
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}

func TestRetry_ZeroMaxAttemptsRunsOnce(t *testing.T) {
	cfg := fastConfig()
	cfg.MaxAttempts = 0

	attempts := 0
	_, err := Retry(context.Background(), cfg, func(ctx context.Context) (interface{}, error) {
		attempts++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, 1, attempts)
}

func TestCalculateBackoff_ExponentialAndCapped(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: time.Second, MaxBackoff: 30 * time.Second, BackoffMultiplier: 2}

	assert.Equal(t, time.Second, calculateBackoff(1, cfg))
	assert.Equal(t, 4*time.Second, calculateBackoff(3, cfg))
	assert.Equal(t, 16*time.Second, calculateBackoff(5, cfg))
	assert.Equal(t, 30*time.Second, calculateBackoff(6, cfg))
	assert.Equal(t, 30*time.Second, calculateBackoff(40, cfg))
}

func TestAddJitter_Bounds(t *testing.T) {
	assert.Equal(t, time.Duration(0), addJitter(0))
	for i := 0; i < 20; i++ {
		j := addJitter(10 * time.Second)
		assert.GreaterOrEqual(t, j, time.Duration(0))
		assert.LessOrEqual(t, j, 10*time.Second)
	}
}

func TestPresetConfigs(t *testing.T) {
	assert.Equal(t, 3, DefaultRetryConfig().MaxAttempts)
	assert.Equal(t, 5, AggressiveRetryConfig().MaxAttempts)
	assert.Equal(t, 500*time.Millisecond, AggressiveRetryConfig().InitialBackoff)
	assert.Equal(t, 2, ConservativeRetryConfig().MaxAttempts)
	assert.Equal(t, 10*time.Second, ConservativeRetryConfig().MaxBackoff)
}

func TestIsRetryableHTTPStatus(t *testing.T) {
	for status, want := range map[int]bool{200: false, 400: false, 404: false, 408: true, 429: true, 500: true, 503: true} {
		assert.Equal(t, want, IsRetryableHTTPStatus(status), "status %d", status)
	}
}
