// Package monitor orchestrates the per-position decision cycle: refresh
// the mark premium, advance the trailing stop, check strategy integrity,
// delegate to the rule evaluator and record the outcome.
package monitor

import (
	"context"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/alerting"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/eventlog"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/marketdata"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/trailing"
)

// Evaluator is the rule-based decision collaborator consulted for every
// position that the trailing stop and integrity check let through.
type Evaluator interface {
	Evaluate(ctx context.Context, p *domain.PositionSnapshot) (*domain.Decision, error)
}

// QuoteSource supplies the latest cached premium quote per position.
// Satisfied by the streaming marketdata feed.
type QuoteSource interface {
	Latest(executionID string) (marketdata.Quote, bool)
}

// Config holds monitor cadence settings.
type Config struct {
	// Interval is the monitoring cycle cadence.
	Interval time.Duration
}

// DefaultConfig returns the standard cadence.
func DefaultConfig() Config {
	return Config{Interval: 30 * time.Second}
}

// Validate checks the cadence settings.
func (c Config) Validate() error {
	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %s", c.Interval)
	}
	return nil
}

// Monitor runs the per-position decision cycle.
type Monitor struct {
	cfg       Config
	positions storage.PositionStore
	history   storage.PositionHistoryStore // nil disables P&L tracking
	trailing  *trailing.Manager
	evaluator Evaluator
	quotes    QuoteSource // nil falls back to stored premiums
	events    *eventlog.Logger
	alerts    alerting.Sink
	logger    *log.Logger
	nowFn     func() time.Time
}

// New creates a Monitor. History, quotes, events and alerts may each be
// nil to disable the corresponding side effect.
func New(cfg Config, positions storage.PositionStore, history storage.PositionHistoryStore,
	tm *trailing.Manager, evaluator Evaluator, quotes QuoteSource,
	events *eventlog.Logger, alerts alerting.Sink, logger *log.Logger) (*Monitor, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if positions == nil {
		return nil, fmt.Errorf("position store is required")
	}
	if tm == nil {
		return nil, fmt.Errorf("trailing manager is required")
	}
	if evaluator == nil {
		return nil, fmt.Errorf("evaluator is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Monitor{
		cfg:       cfg,
		positions: positions,
		history:   history,
		trailing:  tm,
		evaluator: evaluator,
		quotes:    quotes,
		events:    events,
		alerts:    alerts,
		logger:    logger,
		nowFn:     time.Now,
	}, nil
}

// SetNowFn overrides the time provider (useful for tests).
func (m *Monitor) SetNowFn(fn func() time.Time) {
	if fn != nil {
		m.nowFn = fn
	}
}

// EnableTrailingStop registers a trailing stop for a newly opened
// position. A nil config uses the defaults.
func (m *Monitor) EnableTrailingStop(ctx context.Context, executionID string, entryPremium float64, cfg *trailing.Config) error {
	return m.trailing.Enable(ctx, executionID, entryPremium, cfg)
}

// Run executes monitoring cycles at the configured cadence until the
// context is cancelled. Cancellation takes effect between cycles, never
// mid-cycle.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.logger.Printf("position monitor running, interval %s", m.cfg.Interval)
	for {
		select {
		case <-ctx.Done():
			m.logger.Printf("position monitor stopped: %v", ctx.Err())
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.MonitorPositions(ctx); err != nil {
				m.logger.Printf("monitoring cycle failed: %v", err)
			}
		}
	}
}

// MonitorPositions runs one cycle over every open position and returns
// the decision per execution id. A failure on one position is logged
// and skipped; it never aborts the rest of the cycle.
func (m *Monitor) MonitorPositions(ctx context.Context) (map[string]*domain.Decision, error) {
	started := m.nowFn()

	open, err := m.positions.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("load open positions: %w", err)
	}

	decisions := make(map[string]*domain.Decision, len(open))
	var samples []*domain.PositionHistorySample

	for _, p := range open {
		decision, err := m.evaluatePosition(ctx, p)
		if err != nil {
			m.logger.Printf("position %s: %v", p.ExecutionID, err)
			continue
		}
		decisions[p.ExecutionID] = decision
		samples = append(samples, &domain.PositionHistorySample{
			ExecutionID:   p.ExecutionID,
			Symbol:        p.Symbol,
			TimestampMs:   m.nowFn().UnixMilli(),
			Premium:       p.CurrentPremium,
			UnrealizedPnL: p.UnrealizedPnL(),
			Delta:         p.Delta,
		})

		m.recordDecision(ctx, p, decision)
	}

	if m.history != nil && len(samples) > 0 {
		if err := m.history.InsertBulk(ctx, samples); err != nil {
			m.logger.Printf("write position history: %v", err)
		}
	}

	observability.RecordCycle(len(open), m.nowFn().Sub(started).Seconds())
	return decisions, nil
}

// evaluatePosition produces the decision for one position. Rule order:
// trailing stop trigger, then strategy integrity, then the evaluator.
func (m *Monitor) evaluatePosition(ctx context.Context, p *domain.PositionSnapshot) (*domain.Decision, error) {
	if q, ok := m.latestQuote(p.ExecutionID); ok {
		p.CurrentPremium = q.Premium
		if err := m.positions.Upsert(ctx, p); err != nil {
			m.logger.Printf("refresh premium for %s: %v", p.ExecutionID, err)
		}
	}

	if _, registered := m.trailing.Get(p.ExecutionID); registered {
		outcome, err := m.trailing.Update(ctx, p.ExecutionID, p.CurrentPremium)
		if err != nil {
			return nil, fmt.Errorf("update trailing stop: %w", err)
		}
		if outcome == trailing.OutcomeTriggered {
			return &domain.Decision{
				Action:  domain.ActionClose,
				Urgency: domain.UrgencyImmediate,
				Reason:  fmt.Sprintf("trailing stop triggered at premium %.4f", p.CurrentPremium),
				Rule:    "trailing_stop",
			}, nil
		}
	}

	if p.Strategy != nil {
		if integrity := p.Strategy.CheckIntegrity(); integrity.Broken {
			m.recordBrokenStrategy(ctx, p, integrity.Reason)
			return &domain.Decision{
				Action:  domain.ActionClose,
				Urgency: domain.UrgencyHigh,
				Reason:  integrity.Reason,
				Rule:    "strategy_integrity",
			}, nil
		}
	}

	decision, err := m.evaluator.Evaluate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	if decision == nil {
		decision = domain.HoldDecision("evaluator", "no rule fired")
	}
	return decision, nil
}

func (m *Monitor) latestQuote(executionID string) (marketdata.Quote, bool) {
	if m.quotes == nil {
		return marketdata.Quote{}, false
	}
	return m.quotes.Latest(executionID)
}

// recordDecision logs, audits and alerts one decision.
func (m *Monitor) recordDecision(ctx context.Context, p *domain.PositionSnapshot, d *domain.Decision) {
	observability.RecordDecision(string(d.Action), string(d.Urgency))

	if d.Action == domain.ActionHold {
		return
	}

	m.logger.Printf("decision for %s: %s %s (%s): %s", p.ExecutionID, d.Action, d.Urgency, d.Rule, d.Reason)

	if m.events != nil {
		err := m.events.Record(ctx, &domain.RiskEvent{
			Component:   "position_monitor",
			Type:        domain.EventDecision,
			Symbol:      p.Symbol,
			ExecutionID: p.ExecutionID,
			Reason:      fmt.Sprintf("%s %s (%s): %s", d.Action, d.Urgency, d.Rule, d.Reason),
			Value:       p.UnrealizedPnL(),
		})
		if err != nil {
			m.logger.Printf("record decision event for %s: %v", p.ExecutionID, err)
		}
	}

	if m.alerts != nil {
		severity := alerting.SeverityWarning
		if d.Urgency == domain.UrgencyImmediate {
			severity = alerting.SeverityCritical
		}
		msg := fmt.Sprintf("%s %s: %s %s: %s", p.Symbol, p.ExecutionID, d.Action, d.Urgency, d.Reason)
		if err := m.alerts.Alert(ctx, severity, msg); err != nil {
			m.logger.Printf("alert for %s: %v", p.ExecutionID, err)
		}
	}
}

func (m *Monitor) recordBrokenStrategy(ctx context.Context, p *domain.PositionSnapshot, reason string) {
	if m.events == nil {
		return
	}
	err := m.events.Record(ctx, &domain.RiskEvent{
		Component:   "position_monitor",
		Type:        domain.EventStrategyBroken,
		Symbol:      p.Symbol,
		ExecutionID: p.ExecutionID,
		Reason:      reason,
	})
	if err != nil {
		m.logger.Printf("record integrity event for %s: %v", p.ExecutionID, err)
	}
}
