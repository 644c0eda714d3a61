// Package trailing implements the per-position trailing-stop state
// machine: the protective stop level rises as premium moves favorably
// and triggers when premium falls back to it.
package trailing

import (
	"fmt"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// Config holds the trailing-stop thresholds, all in percent.
type Config struct {
	// ActivationPct is the favorable move above entry that arms the stop.
	ActivationPct float64
	// TrailPct is the distance of the stop below the peak premium.
	TrailPct float64
	// MinMovePct is the smallest stop adjustment worth adopting;
	// smaller candidate moves are ignored to prevent whipsaw churn.
	MinMovePct float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		ActivationPct: 2.0,
		TrailPct:      1.5,
		MinMovePct:    0.5,
	}
}

// Validate checks threshold invariants. The trail distance must sit
// inside the activation move, otherwise a stop could arm already
// triggered.
func (c Config) Validate() error {
	if c.ActivationPct <= 0 {
		return fmt.Errorf("activation_pct must be positive, got %.2f", c.ActivationPct)
	}
	if c.TrailPct <= 0 {
		return fmt.Errorf("trailing_pct must be positive, got %.2f", c.TrailPct)
	}
	if c.MinMovePct <= 0 {
		return fmt.Errorf("min_move_pct must be positive, got %.2f", c.MinMovePct)
	}
	if c.TrailPct >= c.ActivationPct {
		return fmt.Errorf("trailing_pct %.2f must be below activation_pct %.2f", c.TrailPct, c.ActivationPct)
	}
	return nil
}

// Outcome is the result of one Update call.
type Outcome string

const (
	OutcomeHold      Outcome = "HOLD"
	OutcomeActivated Outcome = "ACTIVATED"
	OutcomeUpdated   Outcome = "UPDATED"
	OutcomeTriggered Outcome = "TRIGGERED"
)

// Stop tracks one position's premium peak and protective stop level.
// A Stop is exclusively owned by the monitor iteration processing its
// position; it is not safe for concurrent use.
type Stop struct {
	cfg            Config
	entryPremium   float64
	highestPremium float64
	stopPremium    *float64
	active         bool
}

// NewStop creates a trailing stop at position entry.
func NewStop(entryPremium float64, cfg Config) (*Stop, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if entryPremium <= 0 {
		return nil, fmt.Errorf("entry premium must be positive, got %.4f", entryPremium)
	}
	return &Stop{
		cfg:            cfg,
		entryPremium:   entryPremium,
		highestPremium: entryPremium,
	}, nil
}

// Update advances the state machine with the current mark premium.
// Invoked once per monitoring cycle.
func (s *Stop) Update(premium float64) (Outcome, error) {
	if premium <= 0 {
		return "", fmt.Errorf("premium must be positive, got %.4f", premium)
	}

	if premium > s.highestPremium {
		s.highestPremium = premium
	}

	if !s.active {
		movePct := (s.highestPremium - s.entryPremium) / s.entryPremium * 100
		if movePct < s.cfg.ActivationPct {
			return OutcomeHold, nil
		}
		stop := s.highestPremium * (1 - s.cfg.TrailPct/100)
		s.stopPremium = &stop
		s.active = true
		return OutcomeActivated, nil
	}

	if premium <= *s.stopPremium {
		return OutcomeTriggered, nil
	}

	candidate := s.highestPremium * (1 - s.cfg.TrailPct/100)
	movePct := math.Abs(candidate-*s.stopPremium) / *s.stopPremium * 100
	if movePct < s.cfg.MinMovePct {
		return OutcomeHold, nil
	}
	s.stopPremium = &candidate
	return OutcomeUpdated, nil
}

// Reset re-arms the stop from scratch: peak back to entry, activation
// cleared. Used for manual override.
func (s *Stop) Reset() {
	s.highestPremium = s.entryPremium
	s.stopPremium = nil
	s.active = false
}

// EntryPremium returns the premium recorded at position entry.
func (s *Stop) EntryPremium() float64 { return s.entryPremium }

// HighestPremium returns the peak premium seen so far.
func (s *Stop) HighestPremium() float64 { return s.highestPremium }

// Active reports whether the stop has armed.
func (s *Stop) Active() bool { return s.active }

// StopPremium returns the current stop level, or nil before activation.
func (s *Stop) StopPremium() *float64 {
	if s.stopPremium == nil {
		return nil
	}
	v := *s.stopPremium
	return &v
}

// Config returns the stop's thresholds.
func (s *Stop) Config() Config { return s.cfg }

// State exports the stop for persistence.
func (s *Stop) State(executionID string, nowMs int64) *domain.TrailingStopState {
	return &domain.TrailingStopState{
		ExecutionID:    executionID,
		EntryPremium:   s.entryPremium,
		HighestPremium: s.highestPremium,
		StopPremium:    s.StopPremium(),
		Active:         s.active,
		ActivationPct:  s.cfg.ActivationPct,
		TrailPct:       s.cfg.TrailPct,
		MinMovePct:     s.cfg.MinMovePct,
		UpdatedAtMs:    nowMs,
	}
}

// Restore rebuilds a stop from persisted state.
func Restore(st *domain.TrailingStopState) (*Stop, error) {
	cfg := Config{
		ActivationPct: st.ActivationPct,
		TrailPct:      st.TrailPct,
		MinMovePct:    st.MinMovePct,
	}
	s, err := NewStop(st.EntryPremium, cfg)
	if err != nil {
		return nil, fmt.Errorf("restore trailing stop %s: %w", st.ExecutionID, err)
	}
	s.highestPremium = st.HighestPremium
	s.active = st.Active
	if st.StopPremium != nil {
		v := *st.StopPremium
		s.stopPremium = &v
	}
	return s, nil
}
