// Package ratelimit is a Redis token bucket shared by every API replica.
package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/richxcame/ride-booking/pkg/config"
)

// IdentityType distinguishes callers with a verified token from the rest.
type IdentityType int

const (
	IdentityAnonymous IdentityType = iota
	IdentityAuthenticated
)

// Rule is the bucket for one endpoint and caller kind. The bucket holds
// Limit+Burst tokens and refills Limit tokens per Window.
type Rule struct {
	Limit  int
	Burst  int
	Window time.Duration
}

// Result describes a single Allow decision.
type Result struct {
	Allowed      bool
	Remaining    int
	RetryAfter   time.Duration
	Limit        int
	Window       time.Duration
	ResetAfter   time.Duration
	IdentityKey  string
	EndpointKey  string
	IdentityType IdentityType
}

// The bucket state lives in a hash. Fractional values are returned as strings
// because Redis truncates Lua numbers to integers.
const tokenBucketLua = `
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local state = redis.call('HMGET', key, 'tokens', 'ts')
local tokens = tonumber(state[1])
local ts = tonumber(state[2])
if tokens == nil or ts == nil then
  tokens = capacity
  ts = now
end

local elapsed = math.max(0, now - ts)
tokens = math.min(capacity, tokens + elapsed * rate)

local allowed = 0
local retry = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
else
  retry = (1 - tokens) / rate
end

redis.call('HSET', key, 'tokens', tostring(tokens), 'ts', tostring(now))
redis.call('PEXPIRE', key, ttl)

local reset = (capacity - tokens) / rate
return {allowed, tostring(tokens), tostring(retry), tostring(reset)}
`

// Limiter evaluates rules against Redis.
type Limiter struct {
	client redis.Scripter
	cfg    config.RateLimitConfig
	script *redis.Script
	now    func() time.Time
}

// NewLimiter creates a limiter over any Redis client that can run scripts.
func NewLimiter(client redis.Scripter, cfg config.RateLimitConfig) *Limiter {
	return &Limiter{
		client: client,
		cfg:    cfg,
		script: redis.NewScript(tokenBucketLua),
		now:    time.Now,
	}
}

// WithNow replaces the clock. Tests only.
func (l *Limiter) WithNow(now func() time.Time) *Limiter {
	l.now = now
	return l
}

// RuleFor resolves the rule of endpoint, applying any configured override.
func (l *Limiter) RuleFor(endpoint string, identity IdentityType) Rule {
	rule := Rule{Window: l.cfg.Window()}
	if identity == IdentityAuthenticated {
		rule.Limit, rule.Burst = l.cfg.DefaultLimit, l.cfg.DefaultBurst
	} else {
		rule.Limit, rule.Burst = l.cfg.AnonymousLimit, l.cfg.AnonymousBurst
	}

	if o, ok := l.cfg.EndpointOverrides[endpoint]; ok {
		limit, burst := o.AnonymousLimit, o.AnonymousBurst
		if identity == IdentityAuthenticated {
			limit, burst = o.AuthenticatedLimit, o.AuthenticatedBurst
		}
		if limit > 0 {
			rule.Limit = limit
		}
		if burst >= 0 {
			rule.Burst = burst
		}
		if o.WindowSeconds > 0 {
			rule.Window = time.Duration(o.WindowSeconds) * time.Second
		}
	}

	if rule.Burst < 0 {
		rule.Burst = 0
	}
	return rule
}

// Allow takes one token from the bucket of identity on endpoint. A disabled
// limiter or a rule without a positive limit always allows.
func (l *Limiter) Allow(ctx context.Context, endpoint, identity string, rule Rule, identityType IdentityType) (*Result, error) {
	result := &Result{
		Allowed:      true,
		Remaining:    rule.Limit,
		Limit:        rule.Limit,
		Window:       rule.Window,
		IdentityKey:  identity,
		EndpointKey:  endpoint,
		IdentityType: identityType,
	}
	if !l.cfg.Enabled || rule.Limit <= 0 {
		return result, nil
	}

	window := rule.Window
	if window <= 0 {
		window = l.cfg.Window()
		result.Window = window
	}

	capacity := float64(rule.Limit + rule.Burst)
	perMilli := float64(rule.Limit) / float64(window.Milliseconds())
	nowMs := l.now().UnixMilli()
	ttl := 2 * window.Milliseconds()

	raw, err := l.script.Run(ctx, l.client, []string{l.key(endpoint, identity)},
		formatFloat(capacity), formatFloat(perMilli), nowMs, ttl).Slice()
	if err != nil {
		return nil, fmt.Errorf("rate limit script: %w", err)
	}
	if len(raw) != 4 {
		return nil, fmt.Errorf("rate limit script: unexpected reply of %d values", len(raw))
	}

	result.Allowed = toInt(raw[0]) == 1
	result.Remaining = int(toFloat(raw[1]))
	result.RetryAfter = time.Duration(toFloat(raw[2]) * float64(time.Millisecond))
	result.ResetAfter = time.Duration(toFloat(raw[3]) * float64(time.Millisecond))
	return result, nil
}

func (l *Limiter) key(endpoint, identity string) string {
	return l.cfg.RedisPrefix + ":" + endpoint + ":" + identity
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 10, 64)
}

func toInt(v interface{}) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	case float64:
		return int(n)
	case string:
		i, err := strconv.Atoi(n)
		if err != nil {
			return 0
		}
		return i
	}
	return 0
}

func toFloat(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int64:
		return float64(n)
	case int:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil {
			return 0
		}
		return f
	}
	return 0
}
