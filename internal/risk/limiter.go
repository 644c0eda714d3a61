// Package risk gates prospective positions against portfolio-wide
// exposure ceilings. The limiter is stateless: every evaluation takes a
// fresh aggregated risk snapshot from the portfolio aggregator.
package risk

import (
	"context"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/eventlog"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
)

// Aggregator supplies the current aggregated portfolio risk on demand.
type Aggregator interface {
	PortfolioRisk(ctx context.Context) (*domain.PortfolioRisk, error)
}

// LimitsConfig holds the immutable exposure ceilings.
type LimitsConfig struct {
	MaxPortfolioDelta    float64
	MaxPortfolioGamma    float64
	MaxPerSymbolDelta    float64
	MaxSinglePositionPct float64 // concentration of one position, percent
	MaxCorrelatedPct     float64 // per-symbol share of total exposure, percent
	TotalExposureCap     float64 // zero disables the hard cap
}

// DefaultLimits returns conservative ceilings for a small account.
func DefaultLimits() LimitsConfig {
	return LimitsConfig{
		MaxPortfolioDelta:    50.0,
		MaxPortfolioGamma:    10.0,
		MaxPerSymbolDelta:    25.0,
		MaxSinglePositionPct: 20.0,
		MaxCorrelatedPct:     40.0,
		TotalExposureCap:     0,
	}
}

// Validate checks the ceilings.
func (c LimitsConfig) Validate() error {
	if c.MaxPortfolioDelta <= 0 {
		return fmt.Errorf("max portfolio delta must be positive, got %.2f", c.MaxPortfolioDelta)
	}
	if c.MaxPortfolioGamma <= 0 {
		return fmt.Errorf("max portfolio gamma must be positive, got %.2f", c.MaxPortfolioGamma)
	}
	if c.MaxPerSymbolDelta <= 0 {
		return fmt.Errorf("max per-symbol delta must be positive, got %.2f", c.MaxPerSymbolDelta)
	}
	if c.MaxSinglePositionPct <= 0 || c.MaxSinglePositionPct > 100 {
		return fmt.Errorf("max single-position pct must be in (0, 100], got %.2f", c.MaxSinglePositionPct)
	}
	if c.MaxCorrelatedPct <= 0 || c.MaxCorrelatedPct > 100 {
		return fmt.Errorf("max correlated pct must be in (0, 100], got %.2f", c.MaxCorrelatedPct)
	}
	if c.TotalExposureCap < 0 {
		return fmt.Errorf("total exposure cap must be non-negative, got %.2f", c.TotalExposureCap)
	}
	return nil
}

// Proposal is a prospective position's risk contribution.
type Proposal struct {
	Symbol string
	Delta  float64
	Gamma  float64
	Value  float64 // notional value in dollars
}

// Capacity is the remaining per-symbol headroom on each dimension.
// All fields are clamped to zero, never negative.
type Capacity struct {
	Symbol           string
	PortfolioDelta   float64
	PortfolioGamma   float64
	SymbolDelta      float64
	ExposureHeadroom float64 // math.Inf(1) when no hard cap is set
}

// Limiter evaluates proposals against the configured ceilings.
type Limiter struct {
	cfg        LimitsConfig
	aggregator Aggregator
	events     *eventlog.Logger
	logger     *log.Logger
}

// NewLimiter creates a Limiter. Events may be nil to skip audit logging.
func NewLimiter(cfg LimitsConfig, aggregator Aggregator, events *eventlog.Logger, logger *log.Logger) (*Limiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if aggregator == nil {
		return nil, fmt.Errorf("aggregator is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Limiter{
		cfg:        cfg,
		aggregator: aggregator,
		events:     events,
		logger:     logger,
	}, nil
}

// Allow evaluates the ordered exposure checks against the current
// portfolio plus the proposal. It returns (false, reason) at the first
// failing check. Rejections are business outcomes, not errors: the
// error return covers only aggregator failures.
func (l *Limiter) Allow(ctx context.Context, p *Proposal) (bool, string, error) {
	if p == nil || p.Symbol == "" {
		return false, "", fmt.Errorf("proposal with symbol is required")
	}

	current, err := l.aggregator.PortfolioRisk(ctx)
	if err != nil {
		return false, "", fmt.Errorf("fetch portfolio risk: %w", err)
	}

	violations := l.check(current, p, true)
	if len(violations) == 0 {
		return true, "", nil
	}

	v := violations[0]
	l.logger.Printf("proposal for %s rejected: %s", p.Symbol, v.reason)
	observability.RecordLimitRejection(v.check)
	l.recordEvent(ctx, domain.EventLimitRejected, p.Symbol, v.reason)
	return false, v.reason, nil
}

// HealthCheck runs every check against the current portfolio with no
// proposed addition and returns all violations as warnings. Used for
// passive monitoring rather than gating.
func (l *Limiter) HealthCheck(ctx context.Context) ([]string, error) {
	current, err := l.aggregator.PortfolioRisk(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch portfolio risk: %w", err)
	}

	violations := l.check(current, &Proposal{Symbol: ""}, false)
	warnings := make([]string, 0, len(violations))
	for _, v := range violations {
		l.logger.Printf("portfolio health warning: %s", v.reason)
		l.recordEvent(ctx, domain.EventLimitWarning, "", v.reason)
		warnings = append(warnings, v.reason)
	}
	return warnings, nil
}

// SymbolCapacity returns the remaining headroom for a symbol on each
// limited dimension, clamped to zero.
func (l *Limiter) SymbolCapacity(ctx context.Context, symbol string) (*Capacity, error) {
	current, err := l.aggregator.PortfolioRisk(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch portfolio risk: %w", err)
	}

	exposureHeadroom := math.Inf(1)
	if l.cfg.TotalExposureCap > 0 {
		exposureHeadroom = clampZero(l.cfg.TotalExposureCap - current.TotalExposure)
	}
	return &Capacity{
		Symbol:           symbol,
		PortfolioDelta:   clampZero(l.cfg.MaxPortfolioDelta - math.Abs(current.TotalDelta)),
		PortfolioGamma:   clampZero(l.cfg.MaxPortfolioGamma - math.Abs(current.TotalGamma)),
		SymbolDelta:      clampZero(l.cfg.MaxPerSymbolDelta - math.Abs(current.DeltaBySymbol[symbol])),
		ExposureHeadroom: exposureHeadroom,
	}, nil
}

// violation pairs a check label with its human-readable reason.
type violation struct {
	check  string
	reason string
}

// check runs the six ordered checks against current + proposal. With
// firstOnly set it stops at the first violation (gating mode).
func (l *Limiter) check(current *domain.PortfolioRisk, p *Proposal, firstOnly bool) []violation {
	var violations []violation
	add := func(check, reason string) bool {
		violations = append(violations, violation{check: check, reason: reason})
		return firstOnly
	}

	// 1. Total portfolio delta.
	totalDelta := math.Abs(current.TotalDelta + p.Delta)
	if totalDelta > l.cfg.MaxPortfolioDelta {
		if add("portfolio_delta", fmt.Sprintf("portfolio delta %.1f > %.1f", totalDelta, l.cfg.MaxPortfolioDelta)) {
			return violations
		}
	}

	// 2. Total portfolio gamma.
	totalGamma := math.Abs(current.TotalGamma + p.Gamma)
	if totalGamma > l.cfg.MaxPortfolioGamma {
		if add("portfolio_gamma", fmt.Sprintf("portfolio gamma %.1f > %.1f", totalGamma, l.cfg.MaxPortfolioGamma)) {
			return violations
		}
	}

	// 3. Per-symbol delta.
	if p.Symbol != "" {
		symbolDelta := math.Abs(current.DeltaBySymbol[p.Symbol] + p.Delta)
		if symbolDelta > l.cfg.MaxPerSymbolDelta {
			if add("symbol_delta", fmt.Sprintf("%s delta %.1f > %.1f", p.Symbol, symbolDelta, l.cfg.MaxPerSymbolDelta)) {
				return violations
			}
		}
	}

	// 4. Single-position concentration.
	if p.Value > 0 {
		total := current.TotalExposure + p.Value
		concentration := p.Value / total * 100
		if concentration > l.cfg.MaxSinglePositionPct {
			if add("concentration", fmt.Sprintf("position concentration %.1f%% > %.1f%%", concentration, l.cfg.MaxSinglePositionPct)) {
				return violations
			}
		}
	}

	// 5. Per-symbol correlated exposure.
	total := current.TotalExposure + p.Value
	if total > 0 {
		for symbol, exposure := range current.ExposureBySymbol {
			if p.Symbol != "" && symbol != p.Symbol {
				continue
			}
			if symbol == p.Symbol {
				exposure += p.Value
			}
			correlated := exposure / total * 100
			if correlated > l.cfg.MaxCorrelatedPct {
				if add("correlated_exposure", fmt.Sprintf("%s correlated exposure %.1f%% > %.1f%%", symbol, correlated, l.cfg.MaxCorrelatedPct)) {
					return violations
				}
			}
		}
		if p.Symbol != "" {
			if _, known := current.ExposureBySymbol[p.Symbol]; !known && p.Value > 0 {
				correlated := p.Value / total * 100
				if correlated > l.cfg.MaxCorrelatedPct {
					if add("correlated_exposure", fmt.Sprintf("%s correlated exposure %.1f%% > %.1f%%", p.Symbol, correlated, l.cfg.MaxCorrelatedPct)) {
						return violations
					}
				}
			}
		}
	}

	// 6. Optional total exposure hard cap.
	if l.cfg.TotalExposureCap > 0 && total > l.cfg.TotalExposureCap {
		add("total_exposure", fmt.Sprintf("total exposure %.0f > %.0f", total, l.cfg.TotalExposureCap))
	}

	return violations
}

func (l *Limiter) recordEvent(ctx context.Context, eventType domain.RiskEventType, symbol, reason string) {
	if l.events == nil {
		return
	}
	err := l.events.Record(ctx, &domain.RiskEvent{
		Component: "risk_limiter",
		Type:      eventType,
		Symbol:    symbol,
		Reason:    reason,
	})
	if err != nil {
		l.logger.Printf("record limiter event: %v", err)
	}
}

func clampZero(v float64) float64 {
	if v < 0 {
		return 0
	}
	return v
}
