package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] either
// failed or had an open circuit breaker.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures a [FallbackGroup]. The CircuitBreaker settings
// apply to the per-backend breaker created for each entry; Name is filled in
// per backend.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig

	// Logger receives failover events. Defaults to slog.Default().
	Logger *slog.Logger
}

// backend pairs one provider instance with its dedicated circuit breaker.
type backend[T any] struct {
	name    string
	impl    T
	breaker *CircuitBreaker
}

// FallbackGroup holds an ordered chain of interchangeable backends: the
// primary first, then fallbacks in registration order. Executing against the
// group tries each backend until one succeeds, skipping any whose breaker is
// open.
//
// The chain is assembled once at startup; Execute may then be called
// concurrently.
type FallbackGroup[T any] struct {
	backends []backend[T]
	cfg      FallbackConfig
	logger   *slog.Logger
}

// NewFallbackGroup creates a group with primary as its first backend.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	fg := &FallbackGroup[T]{cfg: cfg, logger: cfg.Logger}
	fg.AddFallback(primaryName, primary)
	return fg
}

// AddFallback appends a backend to the end of the chain.
func (fg *FallbackGroup[T]) AddFallback(name string, impl T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	cbCfg.Logger = fg.logger
	fg.backends = append(fg.backends, backend[T]{
		name:    name,
		impl:    impl,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Primary returns the first backend in the chain. Decorators use it for
// metadata queries (capabilities, sample rate) that must not trigger
// failover.
func (fg *FallbackGroup[T]) Primary() T {
	return fg.backends[0].impl
}

// Execute runs fn against each backend in order until one succeeds. Returns
// [ErrAllFailed] wrapping the last error when the whole chain is exhausted.
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(impl T) (struct{}, error) {
		return struct{}{}, fn(impl)
	})
	return err
}

// ExecuteWithResult runs fn against each backend in fg's chain until one
// succeeds, returning that backend's result. A package-level function rather
// than a method because methods cannot introduce the result type parameter.
func ExecuteWithResult[T, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var lastErr error
	for i := range fg.backends {
		b := &fg.backends[i]
		var result R
		err := b.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(b.impl)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			fg.logger.Debug("skipping backend, circuit open", "provider", b.name)
		} else {
			fg.logger.Warn("backend failed, trying next",
				"provider", b.name, "error", err)
		}
	}
	var zero R
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
