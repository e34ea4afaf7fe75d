package resilience

import (
	"context"

	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// FallbackFunc decides the result of a call the breaker rejected.
type FallbackFunc func(ctx context.Context, err error) (interface{}, error)

// NoopFallback surfaces ErrCircuitOpen so the caller can map it, e.g. to a retryable 503.
func NoopFallback(ctx context.Context, err error) (interface{}, error) {
	return nil, ErrCircuitOpen
}

// Degrade is NoopFallback plus a warning carrying the request correlation id.
// Notification senders use it: a dropped SMS or push must leave a trace.
func Degrade(collaborator string) FallbackFunc {
	return func(ctx context.Context, err error) (interface{}, error) {
		logger.WithContext(ctx).Warn("circuit open, call skipped",
			zap.String("collaborator", collaborator),
			zap.Error(err))
		return nil, ErrCircuitOpen
	}
}
