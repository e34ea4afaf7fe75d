package health

import (
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
)

// Register mounts /healthz (liveness) and /health/ready (every check must pass).
func Register(r *gin.Engine, service, version string, checks map[string]func() error) {
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": service, "version": version})
	})
	r.GET("/health/ready", Ready(service, version, checks))
}

// Ready runs the checks in name order and answers 503 on the first failure.
func Ready(service, version string, checks map[string]func() error) gin.HandlerFunc {
	names := make([]string, 0, len(checks))
	for name := range checks {
		names = append(names, name)
	}
	sort.Strings(names)

	return func(c *gin.Context) {
		for _, name := range names {
			if err := checks[name](); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":       "not ready",
					"service":      service,
					"failed_check": name,
					"error":        err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready", "service": service, "version": version})
	}
}
