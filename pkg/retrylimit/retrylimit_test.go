package retrylimit

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type statusErr int

func (s statusErr) Error() string   { return http.StatusText(int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func fastConfig(attempts int) RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.MaxAttempts = attempts
	cfg.InitialDelay = time.Millisecond
	cfg.RateLimitDelay = time.Millisecond
	cfg.Jitter = false
	return cfg
}

func TestDoRetriesTransientErrors(t *testing.T) {
	calls := 0
	var retries []int
	cfg := fastConfig(3)
	cfg.OnRetry = func(attempt int, _ error, _ time.Duration) { retries = append(retries, attempt) }

	err := Do(context.Background(), nil, cfg, func(context.Context) error {
		calls++
		if calls < 3 {
			return statusErr(http.StatusBadGateway)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDoStopsOnNonTransientError(t *testing.T) {
	calls := 0
	boom := statusErr(http.StatusForbidden)

	err := Do(context.Background(), nil, fastConfig(5), func(context.Context) error {
		calls++
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, calls)
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	cause := errors.New("nope")
	cfg := fastConfig(5)
	cfg.Retryable = func(error) bool { return true }

	err := Do(context.Background(), nil, cfg, func(context.Context) error {
		calls++
		return Permanent(cause)
	})

	assert.Equal(t, cause, err)
	assert.Equal(t, 1, calls)
}

func TestDoGivesUp(t *testing.T) {
	calls := 0
	err := Do(context.Background(), nil, fastConfig(2), func(context.Context) error {
		calls++
		return statusErr(http.StatusTooManyRequests)
	})

	require.Error(t, err)
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, 2, calls)
}

func TestDoHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(5)
	cfg.InitialDelay = time.Hour

	err := Do(ctx, nil, cfg, func(context.Context) error {
		cancel()
		return statusErr(http.StatusServiceUnavailable)
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestAdaptiveLimiterBounds(t *testing.T) {
	lim := NewAdaptiveLimiter(4, 1, 8, 2, 0.5)
	assert.Equal(t, 4.0, lim.CurrentLimit())

	lim.RateLimited()
	assert.Equal(t, 2.0, lim.CurrentLimit())
	lim.RateLimited()
	lim.RateLimited()
	assert.Equal(t, 1.0, lim.CurrentLimit())

	lim.cooldown = 0
	lim.lastError = time.Time{}
	for i := 0; i < 10; i++ {
		lim.Success()
	}
	assert.Equal(t, 8.0, lim.CurrentLimit())
}

func TestLimiterFeedback(t *testing.T) {
	lim := NewAdaptiveLimiter(10, 1, 10, 1, 0.5)
	_ = Do(context.Background(), lim, fastConfig(1), func(context.Context) error {
		return statusErr(http.StatusTooManyRequests)
	})
	assert.Equal(t, 5.0, lim.CurrentLimit())
}
