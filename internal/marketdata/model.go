package marketdata

import (
	"context"
	"fmt"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// ModelProvider answers sensitivity and implied-vol queries from a
// Black-Scholes model instead of a live chain. Used by the offline
// scanner and by tests; live deployments swap in a broker-backed
// Provider.
type ModelProvider struct {
	underlying map[string]float64 // spot price per symbol
	vol        map[string]float64 // flat implied vol per symbol
	rate       float64            // risk-free rate
}

// NewModelProvider creates a model-backed provider with a flat vol
// surface per symbol.
func NewModelProvider(rate float64) *ModelProvider {
	return &ModelProvider{
		underlying: make(map[string]float64),
		vol:        make(map[string]float64),
		rate:       rate,
	}
}

// SetSymbol registers a symbol's spot price and flat implied vol.
func (m *ModelProvider) SetSymbol(symbol string, spot, vol float64) {
	m.underlying[symbol] = spot
	m.vol[symbol] = vol
}

// Sensitivity returns the Black-Scholes delta at the given strike.
func (m *ModelProvider) Sensitivity(_ context.Context, symbol string, strike float64, right domain.OptionRight, daysToExpiry float64) (float64, error) {
	spot, ok := m.underlying[symbol]
	if !ok {
		return 0, fmt.Errorf("symbol %s: %w", symbol, ErrNoData)
	}
	if strike <= 0 || daysToExpiry <= 0 {
		return 0, fmt.Errorf("strike %.2f, dte %.1f: %w", strike, daysToExpiry, ErrNoData)
	}

	t := daysToExpiry / 365.0
	vol := m.vol[symbol]
	d1 := (math.Log(spot/strike) + (m.rate+vol*vol/2)*t) / (vol * math.Sqrt(t))

	callDelta := stdNormCDF(d1)
	if right == domain.RightCall {
		return callDelta, nil
	}
	return callDelta - 1, nil
}

// ImpliedVol returns the flat model vol for the symbol.
func (m *ModelProvider) ImpliedVol(_ context.Context, symbol string, _ float64, _ domain.OptionRight, _ float64) (float64, error) {
	vol, ok := m.vol[symbol]
	if !ok {
		return 0, fmt.Errorf("symbol %s: %w", symbol, ErrNoData)
	}
	return vol, nil
}

// stdNormCDF is the standard normal cumulative distribution function.
func stdNormCDF(x float64) float64 {
	return 0.5 * math.Erfc(-x/math.Sqrt2)
}

var _ Provider = (*ModelProvider)(nil)
