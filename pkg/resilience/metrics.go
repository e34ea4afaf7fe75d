package resilience

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/sony/gobreaker"
)

var (
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ride_booking",
		Subsystem: "breaker",
		Name:      "state",
		Help:      "Breaker state per collaborator: 0 closed, 0.5 half-open, 1 open.",
	}, []string{"collaborator"})

	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_booking",
		Subsystem: "breaker",
		Name:      "calls_total",
		Help:      "Calls to external collaborators by outcome (ok, error, rejected).",
	}, []string{"collaborator", "outcome"})

	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ride_booking",
		Subsystem: "breaker",
		Name:      "transitions_total",
		Help:      "Breaker state changes.",
	}, []string{"collaborator", "from", "to"})
)

const (
	outcomeOK       = "ok"
	outcomeError    = "error"
	outcomeRejected = "rejected"
)

func stateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 0.5
	case gobreaker.StateOpen:
		return 1
	}
	return -1
}

func recordState(name string, state gobreaker.State) {
	breakerState.WithLabelValues(name).Set(stateValue(state))
}

func recordTransition(name string, from, to gobreaker.State) {
	breakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
	recordState(name, to)
}

func recordCall(name, outcome string) {
	breakerCalls.WithLabelValues(name, outcome).Inc()
}
