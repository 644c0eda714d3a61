package risk

import (
	"context"
	"fmt"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage"
)

// PositionAggregator computes portfolio exposure from the open
// positions in the position store. Deltas are share equivalents, so a
// one-lot with per-contract delta -0.20 contributes -20.
type PositionAggregator struct {
	positions storage.PositionStore
}

// NewPositionAggregator creates a PositionAggregator.
func NewPositionAggregator(positions storage.PositionStore) *PositionAggregator {
	return &PositionAggregator{positions: positions}
}

// Compile-time interface check.
var _ Aggregator = (*PositionAggregator)(nil)

// PortfolioRisk aggregates delta, gamma and premium exposure across all
// open positions.
func (a *PositionAggregator) PortfolioRisk(ctx context.Context) (*domain.PortfolioRisk, error) {
	open, err := a.positions.GetOpen(ctx)
	if err != nil {
		return nil, fmt.Errorf("aggregate portfolio risk: %w", err)
	}

	risk := &domain.PortfolioRisk{
		DeltaBySymbol:    make(map[string]float64),
		ExposureBySymbol: make(map[string]float64),
	}

	for _, p := range open {
		qty := float64(p.Quantity) * domain.ContractMultiplier
		delta := p.Delta * qty
		exposure := math.Abs(p.CurrentPremium * qty)

		risk.TotalDelta += delta
		risk.TotalGamma += p.Gamma * qty
		risk.DeltaBySymbol[p.Symbol] += delta
		risk.ExposureBySymbol[p.Symbol] += exposure
		risk.TotalExposure += exposure
	}

	return risk, nil
}
