package domain

import "time"

// PositionSnapshot is the monitor's view of one open position.
type PositionSnapshot struct {
	ExecutionID    string
	Symbol         string
	StrategyID     string
	Strategy       *Strategy // nil when only the flat snapshot was restored
	EntryPremium   float64
	CurrentPremium float64
	Quantity       int
	Delta          float64
	Gamma          float64
	DaysToExpiry   float64
	OpenedAt       time.Time
	ClosedAtMs     int64 // zero while open
}

// Open reports whether the position is still open.
func (p *PositionSnapshot) Open() bool { return p.ClosedAtMs == 0 }

// UnrealizedPnL estimates the current mark-to-market P&L in dollars.
// Short-premium positions profit as the premium decays.
func (p *PositionSnapshot) UnrealizedPnL() float64 {
	return (p.EntryPremium - p.CurrentPremium) * float64(p.Quantity) * ContractMultiplier
}

// PositionHistorySample is one P&L observation written per monitoring
// cycle for later analysis.
type PositionHistorySample struct {
	ExecutionID   string
	Symbol        string
	TimestampMs   int64
	Premium       float64
	UnrealizedPnL float64
	Delta         float64
}

// PortfolioRisk is the aggregated portfolio exposure snapshot supplied
// by the risk-aggregation collaborator.
type PortfolioRisk struct {
	TotalDelta       float64
	TotalGamma       float64
	DeltaBySymbol    map[string]float64
	ExposureBySymbol map[string]float64
	TotalExposure    float64
}

// TrailingStopState is the persistable form of a trailing stop,
// used for crash recovery of the position monitor.
type TrailingStopState struct {
	ExecutionID    string
	EntryPremium   float64
	HighestPremium float64
	StopPremium    *float64 // nil until activated
	Active         bool
	ActivationPct  float64
	TrailPct       float64
	MinMovePct     float64
	UpdatedAtMs    int64
}
