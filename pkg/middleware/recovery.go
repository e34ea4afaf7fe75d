package middleware

import (
	"fmt"
	"runtime/debug"

	"github.com/getsentry/sentry-go"
	"github.com/gin-gonic/gin"
	"github.com/richxcame/ride-booking/pkg/common"
	"github.com/richxcame/ride-booking/pkg/logger"
	"go.uber.org/zap"
)

// Recovery answers a panicking handler with a 500. The panic is logged with
// its stack and, when Sentry is configured, reported tagged with the route
// and correlation id.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}

			route := c.FullPath()
			logger.WithContext(c.Request.Context()).Error("Handler panicked",
				zap.Any("panic", rec),
				zap.String("method", c.Request.Method),
				zap.String("route", route),
				zap.ByteString("stack", debug.Stack()),
			)

			if hub := sentry.CurrentHub(); hub.Client() != nil {
				hub.WithScope(func(scope *sentry.Scope) {
					scope.SetTag("route", route)
					scope.SetTag("correlation_id", GetCorrelationID(c))
					hub.Recover(fmt.Errorf("panic: %v", rec))
				})
			}

			common.AppErrorResponse(c, common.NewInternalServerError("internal server error"))
			c.Abort()
		}()

		c.Next()
	}
}
