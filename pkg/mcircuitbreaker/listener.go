// Package mcircuitbreaker adapts lib-commons' circuit breaker state
// notifications to this module's own StateListener interface, so a
// caller can depend on a small local type instead of lib-commons'
// breaker package directly. No other package in this module imports it.
package mcircuitbreaker

import (
	libCircuitBreaker "github.com/LerianStudio/lib-commons/v2/commons/circuitbreaker"
)

// State mirrors lib-commons' circuit breaker State without exposing it
// directly to callers.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
	StateUnknown  State = "unknown"
)

// Counts mirrors lib-commons' circuitbreaker.Counts.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// StateChangeEvent describes one circuit breaker transition.
type StateChangeEvent struct {
	ServiceName string
	FromState   State
	ToState     State
	Counts      Counts
}

// StateListener receives circuit breaker transitions, so that an open
// breaker can be made visible in logs/metrics. The RabbitMQ producer's
// breaker is wired in bootstrap without a StateListener.
type StateListener interface {
	OnCircuitBreakerStateChange(event StateChangeEvent)
}

// LibCommonsAdapter implements lib-commons' circuitbreaker.StateChangeListener
// and forwards every callback to a wrapped StateListener.
type LibCommonsAdapter struct {
	listener StateListener
}

// NewLibCommonsAdapter wraps listener for use as a lib-commons
// circuitbreaker.StateChangeListener. listener may be nil, in which case
// state changes are observed but not forwarded anywhere.
func NewLibCommonsAdapter(listener StateListener) *LibCommonsAdapter {
	return &LibCommonsAdapter{listener: listener}
}

// OnStateChange implements libCircuitBreaker.StateChangeListener.
func (a *LibCommonsAdapter) OnStateChange(serviceName string, from, to libCircuitBreaker.State, counts libCircuitBreaker.Counts) {
	if a.listener == nil {
		return
	}

	a.listener.OnCircuitBreakerStateChange(StateChangeEvent{
		ServiceName: serviceName,
		FromState:   convertState(from),
		ToState:     convertState(to),
		Counts: Counts{
			Requests:             counts.Requests,
			TotalSuccesses:       counts.TotalSuccesses,
			TotalFailures:        counts.TotalFailures,
			ConsecutiveSuccesses: counts.ConsecutiveSuccesses,
			ConsecutiveFailures:  counts.ConsecutiveFailures,
		},
	})
}

func convertState(s libCircuitBreaker.State) State {
	switch s {
	case libCircuitBreaker.StateClosed:
		return StateClosed
	case libCircuitBreaker.StateOpen:
		return StateOpen
	case libCircuitBreaker.StateHalfOpen:
		return StateHalfOpen
	default:
		return StateUnknown
	}
}

var _ libCircuitBreaker.StateChangeListener = (*LibCommonsAdapter)(nil)
