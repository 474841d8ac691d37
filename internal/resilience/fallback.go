package resilience

import (
	"errors"
	"fmt"
	"log/slog"
)

// ErrAllFailed is returned when every backend in a [FallbackGroup] either
// failed or was skipped because its circuit breaker is open.
var ErrAllFailed = errors.New("all providers failed")

// FallbackConfig configures the circuit breaker created for each backend in
// a [FallbackGroup]. The breaker Name is set per backend.
type FallbackConfig struct {
	CircuitBreaker CircuitBreakerConfig
}

// member is one backend in the chain together with its own breaker.
type member[T any] struct {
	name    string
	backend T
	breaker *CircuitBreaker
}

// FallbackGroup chains a primary backend and any number of fallbacks of the
// same type. Calls go to the first member whose breaker admits them; a
// failing or tripped primary is bypassed in favour of the next member in
// registration order.
//
// Safe for concurrent use once all fallbacks are registered.
type FallbackGroup[T any] struct {
	members []member[T]
	cfg     FallbackConfig
}

// NewFallbackGroup creates a group with primary as its first member. Register
// further backends with [FallbackGroup.AddFallback] before serving traffic.
func NewFallbackGroup[T any](primary T, primaryName string, cfg FallbackConfig) *FallbackGroup[T] {
	fg := &FallbackGroup[T]{cfg: cfg}
	fg.add(primaryName, primary)
	return fg
}

// AddFallback appends a backend tried after all earlier members.
func (fg *FallbackGroup[T]) AddFallback(name string, backend T) {
	fg.add(name, backend)
}

func (fg *FallbackGroup[T]) add(name string, backend T) {
	cbCfg := fg.cfg.CircuitBreaker
	cbCfg.Name = name
	fg.members = append(fg.members, member[T]{
		name:    name,
		backend: backend,
		breaker: NewCircuitBreaker(cbCfg),
	})
}

// Execute tries fn against each member in order until one call succeeds.
// Members with an open breaker are skipped without invoking fn. When no
// member succeeds the last error is wrapped in [ErrAllFailed].
func (fg *FallbackGroup[T]) Execute(fn func(T) error) error {
	_, err := ExecuteWithResult(fg, func(backend T) (struct{}, error) {
		return struct{}{}, fn(backend)
	})
	return err
}

// ExecuteWithResult is [FallbackGroup.Execute] for calls that produce a
// value. It is a package-level function because Go methods cannot introduce
// their own type parameters.
func ExecuteWithResult[T any, R any](fg *FallbackGroup[T], fn func(T) (R, error)) (R, error) {
	var (
		lastErr error
		zero    R
	)
	for i := range fg.members {
		m := &fg.members[i]
		var result R
		err := m.breaker.Execute(func() error {
			var callErr error
			result, callErr = fn(m.backend)
			return callErr
		})
		if err == nil {
			return result, nil
		}
		lastErr = err
		if errors.Is(err, ErrCircuitOpen) {
			slog.Debug("skipping backend, circuit open", "provider", m.name)
		} else {
			slog.Warn("backend failed, trying next",
				"provider", m.name, "error", err)
		}
	}
	return zero, fmt.Errorf("%w: %v", ErrAllFailed, lastErr)
}
