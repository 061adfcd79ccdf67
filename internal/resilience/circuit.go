// Package resilience classifies transient model API failures and guards the
// pipeline's agent calls with retry and circuit-breaker wrappers.
package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned without touching the API while the breaker
// waits out a run of failures.
var ErrCircuitOpen = eris.New("resilience: circuit open")

// CircuitState is the breaker's position: closed (calls flow), open (calls
// rejected), or half-open (one probe allowed through).
type CircuitState int

const (
	CircuitClosed CircuitState = iota
	CircuitOpen
	CircuitHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case CircuitClosed:
		return "closed"
	case CircuitOpen:
		return "open"
	case CircuitHalfOpen:
		return "half-open"
	}
	return "unknown"
}

// CircuitBreakerConfig tunes when the breaker trips and recovers.
type CircuitBreakerConfig struct {
	// FailureThreshold is how many consecutive tripping failures open the
	// circuit.
	FailureThreshold int

	// ResetTimeout is how long an open circuit waits before letting one
	// probe call through.
	ResetTimeout time.Duration

	// ShouldTrip decides which errors count toward the threshold. Nil counts
	// every error.
	ShouldTrip func(err error) bool

	// OnStateChange observes transitions, for logging.
	OnStateChange func(from, to CircuitState)
}

// DefaultCircuitBreakerConfig opens after five straight failures and probes
// again after thirty seconds.
func DefaultCircuitBreakerConfig() CircuitBreakerConfig {
	return CircuitBreakerConfig{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
	}
}

// CircuitBreaker guards one upstream service. After FailureThreshold
// consecutive failures it rejects calls for ResetTimeout, then lets a single
// probe through: a probe success closes the circuit, a probe failure reopens
// it.
type CircuitBreaker struct {
	cfg CircuitBreakerConfig

	mu       sync.Mutex
	failures int
	openedAt time.Time
	open     bool
	probing  bool

	now func() time.Time
}

// NewCircuitBreaker builds a breaker, filling unset config from the defaults.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	def := DefaultCircuitBreakerConfig()
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = def.ResetTimeout
	}
	return &CircuitBreaker{cfg: cfg, now: time.Now}
}

// State reports the breaker's current position.
func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state()
}

// caller holds cb.mu.
func (cb *CircuitBreaker) state() CircuitState {
	switch {
	case !cb.open:
		return CircuitClosed
	case cb.probing || cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout:
		return CircuitHalfOpen
	default:
		return CircuitOpen
	}
}

// ExecuteVal runs fn through the breaker, returning ErrCircuitOpen without
// calling it when the circuit is open.
func ExecuteVal[T any](ctx context.Context, cb *CircuitBreaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !cb.admit() {
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	cb.record(err)
	if err != nil {
		return zero, err
	}
	return val, nil
}

// admit decides whether a call may proceed, claiming the half-open probe
// slot when the reset timeout has elapsed.
func (cb *CircuitBreaker) admit() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if !cb.open {
		return true
	}
	if cb.probing {
		return false
	}
	if cb.now().Sub(cb.openedAt) >= cb.cfg.ResetTimeout {
		cb.probing = true
		cb.notify(CircuitOpen, CircuitHalfOpen)
		return true
	}
	return false
}

// record folds one call outcome into the breaker.
func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	trips := err != nil
	if err != nil && cb.cfg.ShouldTrip != nil {
		trips = cb.cfg.ShouldTrip(err)
	}

	if !trips {
		if cb.open {
			cb.notify(CircuitHalfOpen, CircuitClosed)
		}
		cb.open = false
		cb.probing = false
		cb.failures = 0
		return
	}

	cb.failures++
	cb.openedAt = cb.now()
	if cb.open {
		// Failed probe.
		cb.probing = false
		cb.notify(CircuitHalfOpen, CircuitOpen)
		return
	}
	if cb.failures >= cb.cfg.FailureThreshold {
		cb.open = true
		cb.notify(CircuitClosed, CircuitOpen)
	}
}

// caller holds cb.mu.
func (cb *CircuitBreaker) notify(from, to CircuitState) {
	if cb.cfg.OnStateChange != nil {
		cb.cfg.OnStateChange(from, to)
	}
}
