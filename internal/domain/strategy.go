package domain

import (
	"fmt"
	"time"
)

// StrategyType identifies the multi-leg structure of a strategy.
type StrategyType string

const (
	StrategyTypeIronCondor     StrategyType = "IRON_CONDOR"
	StrategyTypeVerticalSpread StrategyType = "VERTICAL_SPREAD"
	StrategyTypeCustom         StrategyType = "CUSTOM"
)

// StrategyStatus tracks a strategy through its lifecycle.
type StrategyStatus string

const (
	StatusPending  StrategyStatus = "PENDING"
	StatusOpen     StrategyStatus = "OPEN"
	StatusClosed   StrategyStatus = "CLOSED"
	StatusRejected StrategyStatus = "REJECTED"
)

// legCountByType maps strategy types to their required leg count.
// Custom strategies only require a non-empty leg list.
var legCountByType = map[StrategyType]int{
	StrategyTypeIronCondor:     4,
	StrategyTypeVerticalSpread: 2,
}

// Strategy is a named multi-leg option position.
type Strategy struct {
	ID        string
	Symbol    string
	Type      StrategyType
	Legs      []Leg
	CreatedAt time.Time
	Status    StrategyStatus
	Metadata  map[string]string
}

// Validate checks structural invariants: non-empty legs, leg count
// matching the strategy type, and each leg valid at creation time.
func (s *Strategy) Validate() error {
	if s.Symbol == "" {
		return fmt.Errorf("strategy symbol is required")
	}
	if len(s.Legs) == 0 {
		return fmt.Errorf("strategy %s has no legs", s.ID)
	}
	if want, ok := legCountByType[s.Type]; ok && len(s.Legs) != want {
		return fmt.Errorf("strategy type %s requires %d legs, got %d", s.Type, want, len(s.Legs))
	}
	for i := range s.Legs {
		if err := s.Legs[i].Validate(s.CreatedAt); err != nil {
			return fmt.Errorf("leg %d: %w", i, err)
		}
	}
	return nil
}

// ShortLegs returns the sold legs of the strategy.
func (s *Strategy) ShortLegs() []Leg {
	var legs []Leg
	for _, l := range s.Legs {
		if l.Action == ActionSell {
			legs = append(legs, l)
		}
	}
	return legs
}

// Integrity is the result of a strategy integrity check. A strategy is
// either intact or broken with a reason, computed once per check rather
// than probed field by field.
type Integrity struct {
	Broken bool
	Reason string
}

// Intact is the integrity value for a healthy strategy.
var Intact = Integrity{}

// BrokenWith builds a broken integrity value.
func BrokenWith(format string, args ...any) Integrity {
	return Integrity{Broken: true, Reason: fmt.Sprintf(format, args...)}
}

// CheckIntegrity inspects a strategy for structural damage: missing
// legs, leg-count mismatch, or open legs that lost their broker
// contract assignment (e.g. after early assignment).
func (s *Strategy) CheckIntegrity() Integrity {
	if len(s.Legs) == 0 {
		return BrokenWith("strategy %s has no legs", s.ID)
	}
	if want, ok := legCountByType[s.Type]; ok && len(s.Legs) != want {
		return BrokenWith("strategy type %s has %d legs, expected %d", s.Type, len(s.Legs), want)
	}
	if s.Status == StatusOpen {
		for i, l := range s.Legs {
			if l.ContractID == 0 {
				return BrokenWith("leg %d (%s %s %.2f) has no broker contract id", i, l.Action, l.Right, l.Strike)
			}
		}
	}
	return Intact
}
