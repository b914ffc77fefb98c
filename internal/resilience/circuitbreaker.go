// Package resilience provides failover across interchangeable speech
// pipeline backends.
//
// The transcription, reasoning, and synthesis services a session depends on
// fail independently of the audio front-end. A [FallbackGroup] chains several
// providers of one kind so that a dead primary degrades the pipeline to a
// secondary instead of ending the conversation. Every chained backend sits
// behind its own [CircuitBreaker]: a backend that keeps failing is skipped
// outright until its reset timeout expires, rather than being retried on
// every utterance.
//
// All types are safe for concurrent use.
package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by [CircuitBreaker.Execute] when the breaker
// refuses the call: it is open and the reset timeout has not elapsed, or the
// half-open probe budget is spent.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State is the operating mode of a [CircuitBreaker].
type State int

const (
	// StateClosed forwards every call. Normal operation.
	StateClosed State = iota

	// StateOpen rejects every call with [ErrCircuitOpen]. Entered after
	// MaxFailures consecutive failures; left when ResetTimeout elapses.
	StateOpen

	// StateHalfOpen forwards a bounded number of probe calls. Enough
	// successes close the breaker; one failure re-opens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig tunes a [CircuitBreaker]. Zero-valued fields take the
// documented defaults.
type CircuitBreakerConfig struct {
	// Name labels the backend in log output, e.g. "stt/deepgram".
	Name string

	// MaxFailures is how many consecutive failures the closed breaker
	// tolerates before opening. Default 5.
	MaxFailures int

	// ResetTimeout is how long the breaker stays open before letting probe
	// calls through. Default 30s.
	ResetTimeout time.Duration

	// HalfOpenProbes is the probe budget of the half-open state: after this
	// many successful probes the breaker closes. Default 3.
	HalfOpenProbes int

	// Logger receives state-transition events. Defaults to slog.Default().
	Logger *slog.Logger
}

// CircuitBreaker guards calls to a single backend with the classic
// closed → open → half-open state machine.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration
	probeBudget  int
	logger       *slog.Logger

	mu            sync.Mutex
	state         State
	failureRun    int
	lastFailureAt time.Time
	probesUsed    int
	probeHits     int
}

// NewCircuitBreaker creates a breaker in the closed state.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 3
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &CircuitBreaker{
		name:         cfg.Name,
		maxFailures:  cfg.MaxFailures,
		resetTimeout: cfg.ResetTimeout,
		probeBudget:  cfg.HalfOpenProbes,
		logger:       cfg.Logger,
	}
}

// Execute runs fn unless the breaker refuses the call, and feeds the outcome
// back into the state machine. The error from fn is returned unwrapped so
// callers can inspect it.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	probe, err := cb.admit()
	if err != nil {
		return err
	}
	err = fn()
	cb.settle(err, probe)
	return err
}

// admit decides whether a call may proceed, performing the open → half-open
// transition when the reset timeout has elapsed. probe reports whether the
// admitted call counts against the half-open budget.
func (cb *CircuitBreaker) admit() (probe bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.lastFailureAt) < cb.resetTimeout {
			return false, ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probesUsed = 0
		cb.probeHits = 0
		cb.logger.Info("circuit breaker half-open", "name", cb.name)

	case StateHalfOpen:
		if cb.probesUsed >= cb.probeBudget {
			return false, ErrCircuitOpen
		}
	}

	if cb.state == StateHalfOpen {
		cb.probesUsed++
		return true, nil
	}
	return false, nil
}

// settle records the outcome of an admitted call.
func (cb *CircuitBreaker) settle(err error, probe bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch {
	case err != nil && probe:
		// One failed probe re-opens immediately.
		cb.lastFailureAt = time.Now()
		cb.state = StateOpen
		cb.failureRun = cb.maxFailures
		cb.logger.Warn("circuit breaker re-opened", "name", cb.name)

	case err != nil:
		cb.lastFailureAt = time.Now()
		cb.failureRun++
		if cb.failureRun >= cb.maxFailures {
			cb.state = StateOpen
			cb.logger.Warn("circuit breaker opened",
				"name", cb.name, "consecutive_failures", cb.failureRun)
		}

	case probe:
		cb.probeHits++
		if cb.probeHits >= cb.probeBudget {
			cb.state = StateClosed
			cb.failureRun = 0
			cb.logger.Info("circuit breaker closed", "name", cb.name)
		}

	default:
		cb.failureRun = 0
	}
}

// State reports the breaker's mode. An open breaker whose reset timeout has
// elapsed reports half-open; the stored state changes on the next Execute.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateOpen && time.Since(cb.lastFailureAt) >= cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}
