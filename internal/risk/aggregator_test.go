package risk

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage/memory"
)

func TestPositionAggregator(t *testing.T) {
	ctx := context.Background()
	store := memory.NewPositionStore()

	opened := time.Date(2024, 1, 2, 15, 0, 0, 0, time.UTC)
	positions := []*domain.PositionSnapshot{
		{ExecutionID: "exec-1", Symbol: "SPY", StrategyID: "s1", EntryPremium: 1.50,
			CurrentPremium: 1.20, Quantity: 2, Delta: -0.20, Gamma: 0.01, OpenedAt: opened},
		{ExecutionID: "exec-2", Symbol: "SPY", StrategyID: "s2", EntryPremium: 2.00,
			CurrentPremium: 2.10, Quantity: 1, Delta: 0.10, Gamma: 0.02, OpenedAt: opened},
		{ExecutionID: "exec-3", Symbol: "QQQ", StrategyID: "s3", EntryPremium: 1.00,
			CurrentPremium: 0.90, Quantity: 1, Delta: -0.15, Gamma: 0.01, OpenedAt: opened},
	}
	for _, p := range positions {
		if err := store.Upsert(ctx, p); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}

	// Closed positions must not count.
	closed := &domain.PositionSnapshot{ExecutionID: "exec-4", Symbol: "SPY", StrategyID: "s4",
		EntryPremium: 5.00, CurrentPremium: 5.00, Quantity: 10, Delta: 0.5, OpenedAt: opened,
		ClosedAtMs: opened.UnixMilli()}
	if err := store.Upsert(ctx, closed); err != nil {
		t.Fatalf("Upsert closed: %v", err)
	}

	agg := NewPositionAggregator(store)
	risk, err := agg.PortfolioRisk(ctx)
	if err != nil {
		t.Fatalf("PortfolioRisk: %v", err)
	}

	// exec-1: delta -0.20*200 = -40, exec-2: 0.10*100 = 10, exec-3: -0.15*100 = -15.
	if got, want := risk.TotalDelta, -45.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalDelta = %v, want %v", got, want)
	}
	if got, want := risk.DeltaBySymbol["SPY"], -30.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("DeltaBySymbol[SPY] = %v, want %v", got, want)
	}

	// exec-1: 1.20*200 = 240, exec-2: 2.10*100 = 210, exec-3: 0.90*100 = 90.
	if got, want := risk.TotalExposure, 540.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalExposure = %v, want %v", got, want)
	}
	if got, want := risk.ExposureBySymbol["QQQ"], 90.0; math.Abs(got-want) > 1e-9 {
		t.Errorf("ExposureBySymbol[QQQ] = %v, want %v", got, want)
	}

	if got, want := risk.TotalGamma, 2.0*0.01*100+0.02*100+0.01*100; math.Abs(got-want) > 1e-9 {
		t.Errorf("TotalGamma = %v, want %v", got, want)
	}
}

func TestPositionAggregator_Empty(t *testing.T) {
	agg := NewPositionAggregator(memory.NewPositionStore())
	risk, err := agg.PortfolioRisk(context.Background())
	if err != nil {
		t.Fatalf("PortfolioRisk: %v", err)
	}
	if risk.TotalDelta != 0 || risk.TotalExposure != 0 {
		t.Errorf("empty portfolio must aggregate to zero, got %+v", risk)
	}
}
