package middleware

import (
	"context"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/logger"
	"github.com/richxcame/ride-booking/pkg/ratelimit"
	"go.uber.org/zap"
)

// ReasonRateLimited is the error reason of a throttled request.
const ReasonRateLimited = "RATE_LIMITED"

// RateLimiter decides whether a caller may proceed. *ratelimit.Limiter implements it.
type RateLimiter interface {
	RuleFor(endpoint string, identity ratelimit.IdentityType) ratelimit.Rule
	Allow(ctx context.Context, endpoint, identity string, rule ratelimit.Rule, identityType ratelimit.IdentityType) (*ratelimit.Result, error)
}

// RateLimit throttles each caller per route. Mount it after AuthMiddleware so
// authenticated callers are keyed by user id; others are keyed by client IP.
// Redis failures let the request through.
func RateLimit(limiter RateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		endpoint := c.Request.Method + " " + c.FullPath()

		identity, identityType := c.ClientIP(), ratelimit.IdentityAnonymous
		if userID, err := GetUserID(c); err == nil {
			identity, identityType = userID.String(), ratelimit.IdentityAuthenticated
		}

		rule := limiter.RuleFor(endpoint, identityType)
		result, err := limiter.Allow(c.Request.Context(), endpoint, identity, rule, identityType)
		if err != nil {
			logger.WithContext(c.Request.Context()).Warn("Rate limiter unavailable",
				zap.String("endpoint", endpoint), zap.Error(err))
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		if !result.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(math.Ceil(result.RetryAfter.Seconds()))))
			common.AppErrorResponse(c, &common.AppError{
				Code:      http.StatusTooManyRequests,
				Reason:    ReasonRateLimited,
				Message:   "too many requests, retry later",
				Retryable: true,
			})
			c.Abort()
			return
		}
		c.Next()
	}
}
