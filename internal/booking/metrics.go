package booking

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	transitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_transitions_total",
			Help: "Committed booking status transitions",
		},
		[]string{"from", "to"},
	)

	bookingsCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_created_total",
			Help: "Bookings created by kind",
		},
		[]string{"kind"},
	)

	operationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "booking_operation_errors_total",
			Help: "Failed booking operations by operation and reason",
		},
		[]string{"operation", "reason"},
	)
)

func recordTransition(from, to Status) {
	transitionsTotal.WithLabelValues(string(from), string(to)).Inc()
}
