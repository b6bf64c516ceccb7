// Package resilience wraps calls to flaky upstreams in a circuit breaker
// with a per-call timeout and structured state-change logging.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen indicates the circuit breaker is open
	ErrCircuitOpen = gobreaker.ErrOpenState
	// ErrTooManyProbes indicates the half-open breaker already has its probe in flight
	ErrTooManyProbes = gobreaker.ErrTooManyRequests
	// ErrTimeout indicates an operation timed out
	ErrTimeout = errors.New("operation timed out")
)

// CircuitState represents the state of a circuit breaker
type CircuitState int

// Breaker states.
const (
	StateClosed CircuitState = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of CircuitState
func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateHalfOpen:
		return "HALF-OPEN"
	case StateOpen:
		return "OPEN"
	default:
		return "UNKNOWN"
	}
}

// CircuitBreakerConfig holds configuration for circuit breakers
type CircuitBreakerConfig struct {
	Name        string
	MaxFailures int
	Timeout     time.Duration
	// Cooldown is how long the breaker stays open before letting a probe through.
	Cooldown time.Duration
	// IsFailure decides which errors count against the breaker. Nil counts every error.
	IsFailure func(err error) bool
	Logger    *slog.Logger
}

// CircuitBreaker implements the circuit breaker pattern using gobreaker
type CircuitBreaker struct {
	name     string
	timeout  time.Duration
	cooldown time.Duration
	cb       *gobreaker.CircuitBreaker
}

func mapState(state gobreaker.State) CircuitState {
	switch state {
	case gobreaker.StateHalfOpen:
		return StateHalfOpen
	case gobreaker.StateOpen:
		return StateOpen
	default:
		return StateClosed
	}
}

// NewCircuitBreaker creates a new circuit breaker
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 30 * time.Second
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With("component", "circuit_breaker", "breaker", cfg.Name)

	maxFailures := uint32(cfg.MaxFailures) //nolint:gosec // validated positive above
	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("Circuit breaker state changed", "from", mapState(from), "to", mapState(to))
		},
	}
	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		settings.IsSuccessful = func(err error) bool {
			return err == nil || !isFailure(err)
		}
	}

	return &CircuitBreaker{
		name:     cfg.Name,
		timeout:  cfg.Timeout,
		cooldown: cfg.Cooldown,
		cb:       gobreaker.NewCircuitBreaker(settings),
	}
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() CircuitState {
	return mapState(cb.cb.State())
}

// Cooldown returns how long the breaker stays open.
func (cb *CircuitBreaker) Cooldown() time.Duration {
	return cb.cooldown
}

// Execute runs an operation through the circuit breaker. A context without a
// deadline gets the breaker's timeout.
func (cb *CircuitBreaker) Execute(ctx context.Context, operation func(context.Context) error) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cb.timeout)
		defer cancel()
	}

	_, err := cb.cb.Execute(func() (interface{}, error) {
		err := operation(ctx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
		}
		return nil, err
	})
	return err
}

// IsOpen reports whether err was returned because the breaker refused the call.
func IsOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen) || errors.Is(err, ErrTooManyProbes)
}
