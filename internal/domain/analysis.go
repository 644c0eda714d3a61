package domain

// StrategyAnalysis is a derived, read-only view of a candidate strategy.
// Computed once per candidate per evaluation cycle, never mutated.
type StrategyAnalysis struct {
	StrategyID string
	Symbol     string

	// Credit is the estimated net premium collected, in dollars.
	Credit float64

	// MaxRisk is the defined worst-case loss, in dollars.
	MaxRisk float64

	// RiskReward is MaxRisk / Credit.
	RiskReward float64

	// ProbabilityOfSuccess is derived from the short-leg sensitivity,
	// expressed as a percentage (0-100).
	ProbabilityOfSuccess float64

	// ExpectedReturn is credit*POS - max_risk*(1-POS), in dollars.
	ExpectedReturn float64

	// Score is the composite 0-100 ranking score.
	Score float64
}
