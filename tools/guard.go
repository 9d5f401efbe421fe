package tools

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/forgewell/acengine/core"
)

// CircuitState is the guard's current posture toward a tool.
type CircuitState int32

const (
	StateClosed CircuitState = iota
	StateOpen
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "closed"
	}
}

// CircuitConfig configures a per-tool CircuitBreaker. Simplified from
// the teacher's sliding-window error-rate breaker to a consecutive-
// failure counter, appropriate to the much lower call volume of tool
// invocation (most tools are called at most a handful of times per AC).
type CircuitConfig struct {
	FailureThreshold int           // consecutive failures before opening
	SleepWindow      time.Duration // time in Open before a half-open probe is allowed
	HalfOpenProbes   int           // consecutive successes in half-open before closing
}

func DefaultCircuitConfig() CircuitConfig {
	return CircuitConfig{FailureThreshold: 5, SleepWindow: 30 * time.Second, HalfOpenProbes: 2}
}

// CircuitBreaker guards one tool's invocations, grounded on teacher's
// resilience/circuit_breaker.go state machine (closed -> open ->
// half-open -> closed), narrowed to consecutive-failure counting.
type CircuitBreaker struct {
	name   string
	config CircuitConfig
	logger core.Logger

	mu              sync.Mutex
	state           CircuitState
	openedAt        time.Time
	consecutiveFail int
	halfOpenOK      int
}

func NewCircuitBreaker(name string, config CircuitConfig, logger core.Logger) *CircuitBreaker {
	if logger == nil {
		logger = &core.NoOpLogger{}
	}
	return &CircuitBreaker{name: name, config: config, logger: logger, state: StateClosed}
}

// Allow reports whether a call should proceed, transitioning Open ->
// HalfOpen once SleepWindow has elapsed.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.config.SleepWindow {
			cb.state = StateHalfOpen
			cb.halfOpenOK = 0
			return true
		}
		return false
	default:
		return true
	}
}

func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateHalfOpen:
		cb.halfOpenOK++
		if cb.halfOpenOK >= cb.config.HalfOpenProbes {
			cb.state = StateClosed
			cb.consecutiveFail = 0
		}
	default:
		cb.consecutiveFail = 0
	}
}

func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if cb.state == StateHalfOpen {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		return
	}

	cb.consecutiveFail++
	if cb.consecutiveFail >= cb.config.FailureThreshold {
		cb.state = StateOpen
		cb.openedAt = time.Now()
		cb.logger.Debug("circuit opened", map[string]interface{}{"tool": cb.name, "consecutive_failures": cb.consecutiveFail})
	}
}

func (cb *CircuitBreaker) State() CircuitState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// RetryConfig configures exponential backoff retry.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

func DefaultRetryConfig() RetryConfig {
	return RetryConfig{MaxAttempts: 3, InitialDelay: 100 * time.Millisecond, MaxDelay: 5 * time.Second, BackoffFactor: 2.0}
}

// Retry runs fn up to config.MaxAttempts times with exponential
// backoff, stopping early if ctx is canceled or err is not retriable
// per core.IsRetriable. Grounded on teacher's resilience/retry.go.
func Retry(ctx context.Context, config RetryConfig, fn func() error) error {
	delay := config.InitialDelay
	var lastErr error

	for attempt := 1; attempt <= config.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !core.IsRetriable(err) {
			return err
		}
		if attempt == config.MaxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay = time.Duration(math.Min(float64(delay)*config.BackoffFactor, float64(config.MaxDelay)))
	}
	return core.New("tools.Retry", core.KindTool, fmt.Errorf("exhausted %d attempts: %w", config.MaxAttempts, lastErr))
}

// GuardedRegistry wraps Registry.Invoke with a per-tool circuit
// breaker and retry, so a failing MCP tool server degrades gracefully
// instead of cascading failures into the AC Tree scheduler (spec §4.7).
type GuardedRegistry struct {
	*Registry
	retry    RetryConfig
	circuits sync.Map // tool name -> *CircuitBreaker
	cbConfig CircuitConfig
}

func NewGuardedRegistry(logger core.Logger) *GuardedRegistry {
	return &GuardedRegistry{
		Registry: NewRegistry(logger),
		retry:    DefaultRetryConfig(),
		cbConfig: DefaultCircuitConfig(),
	}
}

func (g *GuardedRegistry) circuitFor(name string) *CircuitBreaker {
	if cb, ok := g.circuits.Load(name); ok {
		return cb.(*CircuitBreaker)
	}
	cb := NewCircuitBreaker(name, g.cbConfig, nil)
	actual, _ := g.circuits.LoadOrStore(name, cb)
	return actual.(*CircuitBreaker)
}

// InvokeGuarded invokes name through its circuit breaker and retry
// policy, failing fast with core.ErrCircuitOpen if the breaker is open.
func (g *GuardedRegistry) InvokeGuarded(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	cb := g.circuitFor(name)
	if !cb.Allow() {
		return nil, core.New("tools.InvokeGuarded", core.KindTool, core.ErrCircuitOpen).WithID(name)
	}

	var result interface{}
	err := Retry(ctx, g.retry, func() error {
		var innerErr error
		result, innerErr = g.Registry.Invoke(ctx, name, args)
		return innerErr
	})

	if err != nil {
		cb.RecordFailure()
		return nil, err
	}
	cb.RecordSuccess()
	return result, nil
}
