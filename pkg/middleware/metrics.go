package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_booking",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route template and status.",
	}, []string{"service", "method", "route", "status"})

	httpLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ride_booking",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP latency by route template. Booking writes include the trip lock wait.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2, 4},
	}, []string{"service", "method", "route"})

	httpInFlight = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ride_booking",
		Subsystem: "http",
		Name:      "requests_in_flight",
		Help:      "Requests being served.",
	}, []string{"service"})
)

// Metrics records per-route request counts and latency. Websocket upgrades
// are counted once the connection closes.
func Metrics(service string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		inFlight := httpInFlight.WithLabelValues(service)
		inFlight.Inc()
		defer inFlight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		httpRequests.WithLabelValues(service, c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		httpLatency.WithLabelValues(service, c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
