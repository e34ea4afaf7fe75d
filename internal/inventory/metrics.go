package inventory

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	seatReservationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "inventory_seat_reservations_total",
			Help: "Seat reservation attempts by result",
		},
		[]string{"result"},
	)

	seatsReleasedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_seats_released_total",
			Help: "Seats returned to trip inventory",
		},
	)

	lockWaitSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "inventory_trip_lock_wait_seconds",
			Help:    "Time spent acquiring per-trip locks",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2, 5},
		},
	)

	lockBusyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "inventory_trip_lock_busy_total",
			Help: "Lock acquisitions that gave up after the bounded wait",
		},
	)
)
