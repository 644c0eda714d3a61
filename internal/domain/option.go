package domain

import (
	"fmt"
	"time"
)

// OptionRight identifies the option side of a leg.
type OptionRight string

const (
	RightCall OptionRight = "CALL"
	RightPut  OptionRight = "PUT"
)

// LegAction identifies whether a leg is bought or sold.
type LegAction string

const (
	ActionBuy  LegAction = "BUY"
	ActionSell LegAction = "SELL"
)

// ContractMultiplier is the share count covered by one option contract.
const ContractMultiplier = 100

// Leg is a single option contract within a strategy.
type Leg struct {
	Right      OptionRight
	Strike     float64
	Quantity   int
	Action     LegAction
	Expiration time.Time

	// ContractID is the broker contract identifier, assigned once the
	// leg has been submitted. Zero means not yet assigned.
	ContractID int64
}

// Validate checks leg invariants. Expiration must be strictly after now.
func (l *Leg) Validate(now time.Time) error {
	if l.Right != RightCall && l.Right != RightPut {
		return fmt.Errorf("leg right must be CALL or PUT, got %q", l.Right)
	}
	if l.Action != ActionBuy && l.Action != ActionSell {
		return fmt.Errorf("leg action must be BUY or SELL, got %q", l.Action)
	}
	if l.Strike <= 0 {
		return fmt.Errorf("leg strike must be positive, got %.2f", l.Strike)
	}
	if l.Quantity <= 0 {
		return fmt.Errorf("leg quantity must be positive, got %d", l.Quantity)
	}
	if !l.Expiration.After(now) {
		return fmt.Errorf("leg expiration %s is not in the future", l.Expiration.Format("2006-01-02"))
	}
	return nil
}
