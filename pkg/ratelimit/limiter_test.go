package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/richxcame/ride-booking/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const createBooking = "POST /api/v1/bookings"

var bucketNow = time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)

func bookingLimits() config.RateLimitConfig {
	return config.RateLimitConfig{
		Enabled:        true,
		WindowSeconds:  60,
		DefaultLimit:   100,
		DefaultBurst:   10,
		AnonymousLimit: 30,
		AnonymousBurst: 5,
		RedisPrefix:    "rl",
	}
}

func newTestLimiter(cfg config.RateLimitConfig) (*Limiter, redismock.ClientMock) {
	client, mock := redismock.NewClientMock()
	return NewLimiter(client, cfg).WithNow(func() time.Time { return bucketNow }), mock
}

func TestRuleFor(t *testing.T) {
	overrides := map[string]config.EndpointRateLimitConfig{
		createBooking: {
			AuthenticatedLimit: 10,
			AuthenticatedBurst: 3,
			AnonymousLimit:     -1,
			AnonymousBurst:     -1,
		},
		"GET /api/v1/trips/:id/availability": {WindowSeconds: 10},
	}

	cases := []struct {
		endpoint string
		identity IdentityType
		want     Rule
	}{
		{"GET /api/v1/bookings", IdentityAuthenticated, Rule{Limit: 100, Burst: 10, Window: time.Minute}},
		{"GET /api/v1/bookings", IdentityAnonymous, Rule{Limit: 30, Burst: 5, Window: time.Minute}},
		{createBooking, IdentityAuthenticated, Rule{Limit: 10, Burst: 3, Window: time.Minute}},
		// negative override values leave the defaults alone
		{createBooking, IdentityAnonymous, Rule{Limit: 30, Burst: 5, Window: time.Minute}},
		// zero burst in an override is a real value
		{"GET /api/v1/trips/:id/availability", IdentityAuthenticated, Rule{Limit: 100, Burst: 0, Window: 10 * time.Second}},
	}

	cfg := bookingLimits()
	cfg.EndpointOverrides = overrides
	limiter, _ := newTestLimiter(cfg)

	for _, tc := range cases {
		assert.Equal(t, tc.want, limiter.RuleFor(tc.endpoint, tc.identity), "%s identity=%d", tc.endpoint, tc.identity)
	}
}

func TestRuleFor_ClampsNegativeBurst(t *testing.T) {
	cfg := bookingLimits()
	cfg.DefaultBurst = -5
	limiter, _ := newTestLimiter(cfg)

	assert.Zero(t, limiter.RuleFor(createBooking, IdentityAuthenticated).Burst)
}

func TestAllow_SkipsRedis(t *testing.T) {
	disabled := bookingLimits()
	disabled.Enabled = false

	t.Run("disabled", func(t *testing.T) {
		limiter, mock := newTestLimiter(disabled)
		rule := Rule{Limit: 10, Burst: 2, Window: time.Minute}

		res, err := limiter.Allow(context.Background(), createBooking, "user-1", rule, IdentityAuthenticated)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 10, res.Remaining)
		assert.Equal(t, "user-1", res.IdentityKey)
		assert.Equal(t, createBooking, res.EndpointKey)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unlimited rule", func(t *testing.T) {
		limiter, mock := newTestLimiter(bookingLimits())

		res, err := limiter.Allow(context.Background(), createBooking, "10.0.0.7", Rule{Window: time.Minute}, IdentityAnonymous)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, IdentityAnonymous, res.IdentityType)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

// 10 tokens a minute plus 2 of burst.
func expectBucket(mock redismock.ClientMock, limiter *Limiter) *redismock.ExpectedCmd {
	return mock.ExpectEvalSha(limiter.script.Hash(),
		[]string{"rl:" + createBooking + ":user-1"},
		"12.0000000000", "0.0001666667", bucketNow.UnixMilli(), int64(120000))
}

func TestAllow_Bucket(t *testing.T) {
	rule := Rule{Limit: 10, Burst: 2, Window: time.Minute}

	t.Run("takes a token", func(t *testing.T) {
		limiter, mock := newTestLimiter(bookingLimits())
		expectBucket(mock, limiter).SetVal([]interface{}{int64(1), "11.0000000000", "0", "6000.0000000000"})

		res, err := limiter.Allow(context.Background(), createBooking, "user-1", rule, IdentityAuthenticated)
		require.NoError(t, err)
		assert.True(t, res.Allowed)
		assert.Equal(t, 11, res.Remaining)
		assert.Zero(t, res.RetryAfter)
		assert.Equal(t, 6*time.Second, res.ResetAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("empty bucket denies", func(t *testing.T) {
		limiter, mock := newTestLimiter(bookingLimits())
		expectBucket(mock, limiter).SetVal([]interface{}{int64(0), "0.4000000000", "3600.0000000000", "69600.0000000000"})

		res, err := limiter.Allow(context.Background(), createBooking, "user-1", rule, IdentityAuthenticated)
		require.NoError(t, err)
		assert.False(t, res.Allowed)
		assert.Zero(t, res.Remaining)
		assert.Equal(t, 3600*time.Millisecond, res.RetryAfter)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		limiter, mock := newTestLimiter(bookingLimits())
		expectBucket(mock, limiter).SetErr(errors.New("connection refused"))

		_, err := limiter.Allow(context.Background(), createBooking, "user-1", rule, IdentityAuthenticated)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("short reply", func(t *testing.T) {
		limiter, mock := newTestLimiter(bookingLimits())
		expectBucket(mock, limiter).SetVal([]interface{}{int64(1)})

		_, err := limiter.Allow(context.Background(), createBooking, "user-1", rule, IdentityAuthenticated)
		assert.ErrorContains(t, err, "unexpected reply")
	})
}

func TestReplyConversions(t *testing.T) {
	assert.Equal(t, "0.0001666667", formatFloat(10.0/60000))

	assert.Equal(t, 1, toInt(int64(1)))
	assert.Equal(t, 7, toInt(float64(7.9)))
	assert.Equal(t, 12, toInt("12"))
	assert.Zero(t, toInt("twelve"))
	assert.Zero(t, toInt(nil))

	assert.InDelta(t, 0.4, toFloat("0.4000000000"), 1e-9)
	assert.InDelta(t, 3.0, toFloat(int64(3)), 1e-9)
	assert.Zero(t, toFloat(true))
}

func TestRateLimitConfig_Window(t *testing.T) {
	assert.Equal(t, 90*time.Second, config.RateLimitConfig{WindowSeconds: 90}.Window())
	assert.Equal(t, time.Minute, config.RateLimitConfig{}.Window())
	assert.Equal(t, time.Minute, config.RateLimitConfig{WindowSeconds: -1}.Window())
}
