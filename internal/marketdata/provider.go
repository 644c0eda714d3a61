// Package marketdata defines the option-chain data surface consumed by
// strike selection and strategy building, plus a streaming quote feed.
package marketdata

import (
	"context"
	"errors"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// ErrNoData indicates the provider has no chain, expiration, or quote
// for the requested contract. Builders treat it as a per-symbol abort.
var ErrNoData = errors.New("no market data")

// Provider answers per-strike queries against an option chain.
type Provider interface {
	// Sensitivity returns the option delta at the given strike.
	// Negative for puts, positive for calls.
	Sensitivity(ctx context.Context, symbol string, strike float64, right domain.OptionRight, daysToExpiry float64) (float64, error)

	// ImpliedVol returns the implied volatility at the given strike.
	ImpliedVol(ctx context.Context, symbol string, strike float64, right domain.OptionRight, daysToExpiry float64) (float64, error)
}

// Quote is one mark-to-market observation for a position's premium.
type Quote struct {
	Symbol      string  `json:"symbol"`
	ExecutionID string  `json:"execution_id"`
	Premium     float64 `json:"premium"`
	Underlying  float64 `json:"underlying"`
	TimestampMs int64   `json:"timestamp_ms"`
}
