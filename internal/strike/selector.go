// Package strike converts a target option sensitivity into a concrete
// strike price via directional search over the discrete strike ladder.
package strike

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// ErrNoSensitivityData is returned when not a single probe produced a
// usable sensitivity value.
var ErrNoSensitivityData = errors.New("no sensitivity data")

// SensitivityFunc returns the sensitivity (delta) of the option at the
// given strike. The callback may block on market data.
type SensitivityFunc func(ctx context.Context, strike float64) (float64, error)

// Config bounds the directional search.
type Config struct {
	// Tolerance is the acceptable absolute error against the target.
	Tolerance float64
	// MaxProbes caps the number of sensitivity lookups per selection.
	MaxProbes int
}

// DefaultConfig returns the standard search bounds.
func DefaultConfig() Config {
	return Config{
		Tolerance: 0.03,
		MaxProbes: 10,
	}
}

// Validate checks the search bounds.
func (c Config) Validate() error {
	if c.Tolerance <= 0 {
		return fmt.Errorf("tolerance must be positive, got %.4f", c.Tolerance)
	}
	if c.MaxProbes <= 0 {
		return fmt.Errorf("max probes must be positive, got %d", c.MaxProbes)
	}
	return nil
}

// Params describes one strike selection.
type Params struct {
	Symbol       string
	Underlying   float64 // underlying reference price
	TargetDelta  float64 // target absolute sensitivity, e.g. 0.20
	Right        domain.OptionRight
	Volatility   float64 // annualized, e.g. 0.25
	DaysToExpiry float64
	Sensitivity  SensitivityFunc
}

// Result is the selected strike with its observed sensitivity.
type Result struct {
	Strike      float64
	Sensitivity float64 // absolute value at Strike
	Probes      int
	Converged   bool // false when the best-effort candidate was returned
}

// Selector performs delta-targeted strike selection.
type Selector struct {
	cfg    Config
	logger *log.Logger
}

// NewSelector creates a Selector. A nil logger disables search warnings.
func NewSelector(cfg Config, logger *log.Logger) (*Selector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Selector{cfg: cfg, logger: logger}, nil
}

// StrikeIncrement infers the instrument's strike ladder spacing from
// the underlying price magnitude.
func StrikeIncrement(underlying float64) float64 {
	switch {
	case underlying < 50:
		return 1.0
	case underlying < 100:
		return 2.5
	case underlying < 500:
		return 5.0
	default:
		return 10.0
	}
}

// roundToIncrement snaps a price to the nearest ladder strike.
func roundToIncrement(price, increment float64) float64 {
	return math.Round(price/increment) * increment
}

// Select searches the strike ladder for the strike whose absolute
// sensitivity is closest to the target. The search seeds one standard
// deviation out of the money and steps one increment per probe: away
// from the money when the observed sensitivity overshoots the target,
// toward the money when it undershoots. It stops on convergence within
// tolerance, on a strike cycle, or when the probe budget is exhausted,
// in which case the closest candidate seen is returned best-effort.
func (s *Selector) Select(ctx context.Context, p Params) (*Result, error) {
	if p.Underlying <= 0 {
		return nil, fmt.Errorf("underlying price must be positive, got %.2f", p.Underlying)
	}
	if p.TargetDelta <= 0 || p.TargetDelta >= 1 {
		return nil, fmt.Errorf("target sensitivity must be in (0,1), got %.4f", p.TargetDelta)
	}
	if p.Sensitivity == nil {
		return nil, fmt.Errorf("sensitivity callback is required")
	}

	increment := StrikeIncrement(p.Underlying)

	// One standard deviation of underlying movement over the holding
	// period seeds the search out of the money.
	sigma := p.Volatility * p.Underlying * math.Sqrt(math.Max(p.DaysToExpiry, 0)/365)

	var current float64
	if p.Right == domain.RightCall {
		current = roundToIncrement(p.Underlying+sigma, increment)
	} else {
		current = roundToIncrement(p.Underlying-sigma, increment)
	}
	if current <= 0 {
		current = increment
	}

	var (
		best     *Result
		bestErr  = math.MaxFloat64
		visited  = map[float64]struct{}{}
		probes   int
		haveData bool
	)

	for probes = 0; probes < s.cfg.MaxProbes; probes++ {
		if _, seen := visited[current]; seen {
			break // strike cycle: the ladder has no closer candidate
		}
		visited[current] = struct{}{}

		obs, err := p.Sensitivity(ctx, current)
		if err != nil {
			// No data at this strike: step toward the money where the
			// chain is more likely to be quoted.
			current = s.stepTowardMoney(current, increment, p.Right)
			if current <= 0 {
				break
			}
			continue
		}
		haveData = true

		absObs := math.Abs(obs)
		diff := math.Abs(absObs - p.TargetDelta)
		if diff < bestErr {
			bestErr = diff
			best = &Result{Strike: current, Sensitivity: absObs}
		}

		if diff <= s.cfg.Tolerance {
			best.Probes = probes + 1
			best.Converged = true
			return best, nil
		}

		if absObs > p.TargetDelta {
			// Too aggressive: this strike sits too close to the money.
			current = s.stepFromMoney(current, increment, p.Right)
		} else {
			// Too conservative: step toward the money.
			current = s.stepTowardMoney(current, increment, p.Right)
		}
		if current <= 0 {
			break
		}
	}

	if !haveData || best == nil {
		return nil, fmt.Errorf("select strike for %s: %w", p.Symbol, ErrNoSensitivityData)
	}

	s.logger.Printf("strike search for %s exhausted after %d probes, returning best-effort strike %.2f (error %.4f)",
		p.Symbol, probes, best.Strike, bestErr)
	best.Probes = probes
	best.Converged = false
	return best, nil
}

// stepTowardMoney moves one increment toward the underlying price.
func (s *Selector) stepTowardMoney(strike, increment float64, right domain.OptionRight) float64 {
	if right == domain.RightCall {
		return strike - increment
	}
	return strike + increment
}

// stepFromMoney moves one increment away from the underlying price.
func (s *Selector) stepFromMoney(strike, increment float64, right domain.OptionRight) float64 {
	if right == domain.RightCall {
		return strike + increment
	}
	return strike - increment
}
