// Package strategy builds candidate multi-leg option strategies from
// delta targets and scores them for ranking at entry time.
package strategy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/idhash"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/marketdata"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/observability"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/strike"
)

// ErrWingTooNarrow is returned when a requested wing or spread width is
// below the minimum protective distance.
var ErrWingTooNarrow = errors.New("wing width below minimum")

// BuilderConfig bounds strategy construction.
type BuilderConfig struct {
	// MinWingWidth is the minimum distance between a sold strike and
	// its protective strike.
	MinWingWidth float64
	// Selection bounds the per-leg strike search.
	Selection strike.Config
}

// DefaultBuilderConfig returns the standard construction bounds.
func DefaultBuilderConfig() BuilderConfig {
	return BuilderConfig{
		MinWingWidth: 2.5,
		Selection:    strike.DefaultConfig(),
	}
}

// Validate checks the construction bounds.
func (c BuilderConfig) Validate() error {
	if c.MinWingWidth <= 0 {
		return fmt.Errorf("min wing width must be positive, got %.2f", c.MinWingWidth)
	}
	return c.Selection.Validate()
}

// CondorParams describes one iron-condor build.
type CondorParams struct {
	Symbol       string
	Underlying   float64
	TargetDelta  float64 // absolute short-leg delta target, e.g. 0.20
	PutWidth     float64
	CallWidth    float64
	DaysToExpiry float64
	Quantity     int
	Volatility   float64
	SkewRatio    float64 // put IV / call IV; zero skips skew adjustment
}

// SpreadParams describes one vertical-spread build.
type SpreadParams struct {
	Symbol       string
	Underlying   float64
	TargetDelta  float64
	Right        domain.OptionRight
	Width        float64
	DaysToExpiry float64
	Quantity     int
	Volatility   float64
	SkewRatio    float64
}

// Builder assembles strategies by selecting sold strikes via the strike
// search and attaching protective legs at a fixed width.
type Builder struct {
	cfg      BuilderConfig
	selector *strike.Selector
	provider marketdata.Provider
	logger   *log.Logger
	nowFn    func() time.Time
}

// NewBuilder creates a Builder.
func NewBuilder(cfg BuilderConfig, provider marketdata.Provider, logger *log.Logger) (*Builder, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if provider == nil {
		return nil, fmt.Errorf("market data provider is required")
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	selector, err := strike.NewSelector(cfg.Selection, logger)
	if err != nil {
		return nil, err
	}
	return &Builder{
		cfg:      cfg,
		selector: selector,
		provider: provider,
		logger:   logger,
		nowFn:    time.Now,
	}, nil
}

// SetNowFn overrides the time provider (useful for tests).
func (b *Builder) SetNowFn(fn func() time.Time) {
	if fn != nil {
		b.nowFn = fn
	}
}

// BuildIronCondor produces a four-leg condor: short put and short call
// selected by delta target, protective long legs one wing width out.
func (b *Builder) BuildIronCondor(ctx context.Context, p CondorParams) (*domain.Strategy, error) {
	if p.PutWidth < b.cfg.MinWingWidth || p.CallWidth < b.cfg.MinWingWidth {
		observability.RecordBuildFailure("wing_too_narrow")
		return nil, fmt.Errorf("condor for %s (put %.1f, call %.1f, min %.1f): %w",
			p.Symbol, p.PutWidth, p.CallWidth, b.cfg.MinWingWidth, ErrWingTooNarrow)
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", p.Quantity)
	}

	shortPut, err := b.selectStrike(ctx, p.Symbol, p.Underlying, p.TargetDelta,
		domain.RightPut, p.Volatility, p.DaysToExpiry, p.SkewRatio)
	if err != nil {
		observability.RecordBuildFailure("strike_selection")
		return nil, fmt.Errorf("select short put for %s: %w", p.Symbol, err)
	}
	shortCall, err := b.selectStrike(ctx, p.Symbol, p.Underlying, p.TargetDelta,
		domain.RightCall, p.Volatility, p.DaysToExpiry, p.SkewRatio)
	if err != nil {
		observability.RecordBuildFailure("strike_selection")
		return nil, fmt.Errorf("select short call for %s: %w", p.Symbol, err)
	}

	longPut := shortPut.Strike - p.PutWidth
	longCall := shortCall.Strike + p.CallWidth
	if longPut <= 0 {
		observability.RecordBuildFailure("invalid_strike")
		return nil, fmt.Errorf("condor for %s: protective put strike %.2f is not positive", p.Symbol, longPut)
	}

	now := b.nowFn()
	expiration := now.AddDate(0, 0, int(p.DaysToExpiry))
	legs := []domain.Leg{
		{Right: domain.RightPut, Strike: longPut, Quantity: p.Quantity, Action: domain.ActionBuy, Expiration: expiration},
		{Right: domain.RightPut, Strike: shortPut.Strike, Quantity: p.Quantity, Action: domain.ActionSell, Expiration: expiration},
		{Right: domain.RightCall, Strike: shortCall.Strike, Quantity: p.Quantity, Action: domain.ActionSell, Expiration: expiration},
		{Right: domain.RightCall, Strike: longCall, Quantity: p.Quantity, Action: domain.ActionBuy, Expiration: expiration},
	}

	s := &domain.Strategy{
		Symbol:    p.Symbol,
		Type:      domain.StrategyTypeIronCondor,
		Legs:      legs,
		CreatedAt: now,
		Status:    domain.StatusPending,
		Metadata: map[string]string{
			"short_put_delta":  fmt.Sprintf("%.4f", shortPut.Sensitivity),
			"short_call_delta": fmt.Sprintf("%.4f", shortCall.Sensitivity),
		},
	}
	s.ID = strategyID(s)

	if err := s.Validate(); err != nil {
		observability.RecordBuildFailure("validation")
		return nil, fmt.Errorf("condor for %s: %w", p.Symbol, err)
	}

	b.logger.Printf("built condor %s for %s: puts %.1f/%.1f, calls %.1f/%.1f",
		s.ID[:8], p.Symbol, longPut, shortPut.Strike, shortCall.Strike, longCall)
	observability.RecordStrategyBuilt(string(domain.StrategyTypeIronCondor))
	return s, nil
}

// BuildVerticalSpread produces a two-leg credit spread: short leg
// selected by delta target, protective leg one width out of the money.
func (b *Builder) BuildVerticalSpread(ctx context.Context, p SpreadParams) (*domain.Strategy, error) {
	if p.Width < b.cfg.MinWingWidth {
		observability.RecordBuildFailure("wing_too_narrow")
		return nil, fmt.Errorf("spread for %s (width %.1f, min %.1f): %w",
			p.Symbol, p.Width, b.cfg.MinWingWidth, ErrWingTooNarrow)
	}
	if p.Quantity <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", p.Quantity)
	}

	short, err := b.selectStrike(ctx, p.Symbol, p.Underlying, p.TargetDelta,
		p.Right, p.Volatility, p.DaysToExpiry, p.SkewRatio)
	if err != nil {
		observability.RecordBuildFailure("strike_selection")
		return nil, fmt.Errorf("select short %s for %s: %w", p.Right, p.Symbol, err)
	}

	var long float64
	if p.Right == domain.RightPut {
		long = short.Strike - p.Width
	} else {
		long = short.Strike + p.Width
	}
	if long <= 0 {
		observability.RecordBuildFailure("invalid_strike")
		return nil, fmt.Errorf("spread for %s: protective strike %.2f is not positive", p.Symbol, long)
	}

	now := b.nowFn()
	expiration := now.AddDate(0, 0, int(p.DaysToExpiry))
	legs := []domain.Leg{
		{Right: p.Right, Strike: short.Strike, Quantity: p.Quantity, Action: domain.ActionSell, Expiration: expiration},
		{Right: p.Right, Strike: long, Quantity: p.Quantity, Action: domain.ActionBuy, Expiration: expiration},
	}

	s := &domain.Strategy{
		Symbol:    p.Symbol,
		Type:      domain.StrategyTypeVerticalSpread,
		Legs:      legs,
		CreatedAt: now,
		Status:    domain.StatusPending,
		Metadata: map[string]string{
			"short_delta": fmt.Sprintf("%.4f", short.Sensitivity),
		},
	}
	s.ID = strategyID(s)

	if err := s.Validate(); err != nil {
		observability.RecordBuildFailure("validation")
		return nil, fmt.Errorf("spread for %s: %w", p.Symbol, err)
	}

	b.logger.Printf("built %s spread %s for %s: %.1f/%.1f",
		p.Right, s.ID[:8], p.Symbol, short.Strike, long)
	observability.RecordStrategyBuilt(string(domain.StrategyTypeVerticalSpread))
	return s, nil
}

// selectStrike runs the delta-targeted search for one sold leg,
// widening the target on the side with richer implied vol.
func (b *Builder) selectStrike(ctx context.Context, symbol string, underlying, target float64,
	right domain.OptionRight, vol, daysToExpiry, skewRatio float64) (*strike.Result, error) {

	if skewRatio > 0 {
		target = strike.AdjustTargetForSkew(target, skewRatio, right)
	}

	return b.selector.Select(ctx, strike.Params{
		Symbol:       symbol,
		Underlying:   underlying,
		TargetDelta:  target,
		Right:        right,
		Volatility:   vol,
		DaysToExpiry: daysToExpiry,
		Sensitivity: func(ctx context.Context, k float64) (float64, error) {
			return b.provider.Sensitivity(ctx, symbol, k, right, daysToExpiry)
		},
	})
}

// strategyID derives the deterministic identifier from the leg set.
func strategyID(s *domain.Strategy) string {
	keys := make([]idhash.LegKey, len(s.Legs))
	for i, l := range s.Legs {
		keys[i] = idhash.LegKey{
			Right:  string(l.Right),
			Strike: l.Strike,
			Action: string(l.Action),
		}
	}
	return idhash.ComputeStrategyID(s.Symbol, string(s.Type), s.CreatedAt.UnixMilli(), keys)
}
