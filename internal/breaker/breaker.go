// Package breaker implements the failure-rate circuit breaker guarding
// automated executions. One instance is global to the trading process:
// concurrent monitors sharing an execution gateway must share the same
// breaker or trip behavior becomes inconsistent.
package breaker

import (
	"context"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/eventlog"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
)

// State is the breaker position.
type State string

const (
	StateClosed   State = "CLOSED"
	StateOpen     State = "OPEN"
	StateHalfOpen State = "HALF_OPEN"
)

// Config holds breaker thresholds.
type Config struct {
	// FailureThreshold is the consecutive failure count that opens the breaker.
	FailureThreshold int
	// CoolDown is how long the breaker stays open before allowing a trial.
	CoolDown time.Duration
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		CoolDown:         5 * time.Minute,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure threshold must be positive, got %d", c.FailureThreshold)
	}
	if c.CoolDown <= 0 {
		return fmt.Errorf("cool-down must be positive, got %s", c.CoolDown)
	}
	return nil
}

// Breaker is the failure-rate safety valve. Safe for concurrent use.
type Breaker struct {
	mu       sync.Mutex
	cfg      Config
	state    State
	failures int
	openedAt time.Time
	events   *eventlog.Logger
	logger   *log.Logger
	nowFn    func() time.Time
}

// New creates a closed Breaker. Events may be nil to skip audit logging.
func New(cfg Config, events *eventlog.Logger, logger *log.Logger) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Breaker{
		cfg:    cfg,
		state:  StateClosed,
		events: events,
		logger: logger,
		nowFn:  time.Now,
	}, nil
}

// SetNowFn overrides the time provider (useful for tests).
func (b *Breaker) SetNowFn(fn func() time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if fn == nil {
		fn = time.Now
	}
	b.nowFn = fn
}

// State returns the current breaker position.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Allow reports whether an automated execution may proceed. When the
// cool-down has elapsed on an open breaker, it transitions to HALF_OPEN
// and admits a single trial.
func (b *Breaker) Allow(ctx context.Context) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if b.nowFn().Sub(b.openedAt) >= b.cfg.CoolDown {
			b.transition(ctx, StateHalfOpen, "cool-down elapsed, admitting trial")
			return true
		}
		return false
	}
	return false
}

// RecordSuccess reports a successful execution. Closes the breaker
// after a successful HALF_OPEN trial and clears the failure streak.
func (b *Breaker) RecordSuccess(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state == StateHalfOpen {
		b.transition(ctx, StateClosed, "trial succeeded")
	}
}

// RecordFailure reports a failed execution. Opens the breaker after
// the configured consecutive-failure streak, and re-opens immediately
// on a failed HALF_OPEN trial.
func (b *Breaker) RecordFailure(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures++

	switch b.state {
	case StateClosed:
		if b.failures >= b.cfg.FailureThreshold {
			b.openedAt = b.nowFn()
			b.transition(ctx, StateOpen, fmt.Sprintf("%d consecutive failures", b.failures))
		}
	case StateHalfOpen:
		b.openedAt = b.nowFn()
		b.transition(ctx, StateOpen, "trial failed")
	}
}

// Reset manually forces the breaker closed regardless of counters.
func (b *Breaker) Reset(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures = 0
	if b.state != StateClosed {
		b.transition(ctx, StateClosed, "manual reset")
	}
}

// ConsecutiveFailures returns the current failure streak.
func (b *Breaker) ConsecutiveFailures() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.failures
}

// transition moves to a new state and records it. Caller holds the lock.
func (b *Breaker) transition(ctx context.Context, to State, reason string) {
	from := b.state
	b.state = to
	b.logger.Printf("circuit breaker %s -> %s: %s", from, to, reason)
	observability.RecordBreakerState(string(to))

	if b.events == nil {
		return
	}

	var eventType domain.RiskEventType
	switch to {
	case StateOpen:
		eventType = domain.EventBreakerOpened
	case StateHalfOpen:
		eventType = domain.EventBreakerHalfOpen
	default:
		eventType = domain.EventBreakerClosed
	}

	err := b.events.Record(ctx, &domain.RiskEvent{
		Component: "circuit_breaker",
		Type:      eventType,
		Reason:    reason,
		Value:     float64(b.failures),
	})
	if err != nil {
		b.logger.Printf("record breaker event: %v", err)
	}
}
