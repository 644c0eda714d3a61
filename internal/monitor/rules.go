package monitor

import (
	"context"
	"fmt"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// RuleConfig holds the thresholds for the default rule evaluator.
type RuleConfig struct {
	// ProfitTargetPct closes winners once this share of the entry
	// credit has decayed away, in percent.
	ProfitTargetPct float64
	// LossMultiple closes losers once the mark premium reaches this
	// multiple of the entry premium.
	LossMultiple float64
	// RollBelowDays rolls positions this close to expiration.
	RollBelowDays float64
}

// DefaultRuleConfig returns the standard exit thresholds.
func DefaultRuleConfig() RuleConfig {
	return RuleConfig{
		ProfitTargetPct: 50.0,
		LossMultiple:    2.0,
		RollBelowDays:   7,
	}
}

// Validate checks the exit thresholds.
func (c RuleConfig) Validate() error {
	if c.ProfitTargetPct <= 0 || c.ProfitTargetPct > 100 {
		return fmt.Errorf("profit target pct must be in (0, 100], got %.1f", c.ProfitTargetPct)
	}
	if c.LossMultiple <= 1 {
		return fmt.Errorf("loss multiple must exceed 1, got %.2f", c.LossMultiple)
	}
	if c.RollBelowDays < 0 {
		return fmt.Errorf("roll-below days must be non-negative, got %.1f", c.RollBelowDays)
	}
	return nil
}

// RuleEvaluator is the default rule-based decision collaborator:
// ordered exit rules evaluated against the position snapshot, first
// firing rule wins.
type RuleEvaluator struct {
	cfg RuleConfig
}

// NewRuleEvaluator creates the default evaluator.
func NewRuleEvaluator(cfg RuleConfig) (*RuleEvaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RuleEvaluator{cfg: cfg}, nil
}

// Evaluate applies the exit rules in order: loss limit, profit target,
// expiration proximity. Positions matching none of them hold.
func (e *RuleEvaluator) Evaluate(_ context.Context, p *domain.PositionSnapshot) (*domain.Decision, error) {
	if p.EntryPremium <= 0 {
		return nil, fmt.Errorf("position %s has non-positive entry premium %.4f", p.ExecutionID, p.EntryPremium)
	}

	if p.CurrentPremium >= p.EntryPremium*e.cfg.LossMultiple {
		return &domain.Decision{
			Action:  domain.ActionClose,
			Urgency: domain.UrgencyHigh,
			Reason: fmt.Sprintf("premium %.4f reached %.1fx entry %.4f",
				p.CurrentPremium, e.cfg.LossMultiple, p.EntryPremium),
			Rule: "loss_limit",
		}, nil
	}

	capturedPct := (p.EntryPremium - p.CurrentPremium) / p.EntryPremium * 100
	if capturedPct >= e.cfg.ProfitTargetPct {
		return &domain.Decision{
			Action:  domain.ActionClose,
			Urgency: domain.UrgencyNormal,
			Reason:  fmt.Sprintf("captured %.1f%% of entry credit", capturedPct),
			Rule:    "profit_target",
		}, nil
	}

	if p.DaysToExpiry > 0 && p.DaysToExpiry <= e.cfg.RollBelowDays {
		return &domain.Decision{
			Action:  domain.ActionRoll,
			Urgency: domain.UrgencyNormal,
			Reason:  fmt.Sprintf("%.1f days to expiration", p.DaysToExpiry),
			Rule:    "time_exit",
		}, nil
	}

	return domain.HoldDecision("default", "no exit rule fired"), nil
}

var _ Evaluator = (*RuleEvaluator)(nil)
