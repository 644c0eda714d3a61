package strike

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// modelDelta returns a smooth monotone delta curve for testing: delta
// shrinks as a call strike moves above the underlying and as a put
// strike moves below it, mirroring real chains away from expiration.
func modelDelta(underlying, vol, days float64, right domain.OptionRight) SensitivityFunc {
	sigma := vol * underlying * math.Sqrt(days/365)
	return func(_ context.Context, strike float64) (float64, error) {
		var z float64
		if right == domain.RightCall {
			z = (strike - underlying) / sigma
			return 0.5 * math.Erfc(z/math.Sqrt2), nil
		}
		z = (underlying - strike) / sigma
		return -0.5 * math.Erfc(z/math.Sqrt2), nil
	}
}

func TestStrikeIncrement(t *testing.T) {
	cases := []struct {
		underlying float64
		want       float64
	}{
		{25, 1.0},
		{49.99, 1.0},
		{50, 2.5},
		{99, 2.5},
		{100, 5.0},
		{450, 5.0},
		{500, 10.0},
		{4500, 10.0},
	}

	for _, tc := range cases {
		if got := StrikeIncrement(tc.underlying); got != tc.want {
			t.Errorf("StrikeIncrement(%.2f) = %.2f, want %.2f", tc.underlying, got, tc.want)
		}
	}
}

func TestSelect_ConvergesOnMonotoneCurve(t *testing.T) {
	selector, err := NewSelector(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewSelector failed: %v", err)
	}

	rng := rand.New(rand.NewSource(42))
	const samples = 200
	converged := 0

	for i := 0; i < samples; i++ {
		target := 0.05 + rng.Float64()*0.35 // [0.05, 0.40]
		right := domain.RightCall
		if i%2 == 1 {
			right = domain.RightPut
		}

		result, err := selector.Select(context.Background(), Params{
			Symbol:       "SPY",
			Underlying:   450,
			TargetDelta:  target,
			Right:        right,
			Volatility:   0.30,
			DaysToExpiry: 60,
			Sensitivity:  modelDelta(450, 0.30, 60, right),
		})
		if err != nil {
			t.Fatalf("sample %d (target %.4f): Select failed: %v", i, target, err)
		}
		if result.Converged {
			converged++
			if diff := math.Abs(result.Sensitivity - target); diff > DefaultConfig().Tolerance {
				t.Errorf("sample %d: converged but error %.4f exceeds tolerance", i, diff)
			}
		}
	}

	rate := float64(converged) / samples
	if rate < 0.95 {
		t.Errorf("convergence rate %.2f below required 0.95 (%d/%d)", rate, converged, samples)
	}
}

func TestSelect_PutSensitivitySign(t *testing.T) {
	selector, _ := NewSelector(DefaultConfig(), nil)

	result, err := selector.Select(context.Background(), Params{
		Symbol:       "SPY",
		Underlying:   420,
		TargetDelta:  0.20,
		Right:        domain.RightPut,
		Volatility:   0.22,
		DaysToExpiry: 45,
		Sensitivity:  modelDelta(420, 0.22, 45, domain.RightPut),
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}

	if result.Strike >= 420 {
		t.Errorf("expected put strike below underlying, got %.2f", result.Strike)
	}
	if result.Sensitivity < 0 {
		t.Errorf("expected absolute sensitivity, got %.4f", result.Sensitivity)
	}
}

func TestSelect_NoDataFails(t *testing.T) {
	selector, _ := NewSelector(DefaultConfig(), nil)

	_, err := selector.Select(context.Background(), Params{
		Symbol:       "XYZ",
		Underlying:   100,
		TargetDelta:  0.20,
		Right:        domain.RightCall,
		Volatility:   0.30,
		DaysToExpiry: 30,
		Sensitivity: func(_ context.Context, _ float64) (float64, error) {
			return 0, errors.New("quote unavailable")
		},
	})
	if !errors.Is(err, ErrNoSensitivityData) {
		t.Errorf("expected ErrNoSensitivityData, got %v", err)
	}
}

func TestSelect_BestEffortOnExhaustion(t *testing.T) {
	cfg := Config{Tolerance: 0.0001, MaxProbes: 3}
	selector, _ := NewSelector(cfg, nil)

	result, err := selector.Select(context.Background(), Params{
		Symbol:       "SPY",
		Underlying:   420,
		TargetDelta:  0.20,
		Right:        domain.RightCall,
		Volatility:   0.22,
		DaysToExpiry: 45,
		Sensitivity:  modelDelta(420, 0.22, 45, domain.RightCall),
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if result.Converged {
		t.Error("expected best-effort result with a 0.0001 tolerance and 3 probes")
	}
	if result.Strike <= 0 {
		t.Errorf("expected a candidate strike, got %.2f", result.Strike)
	}
}

func TestSelect_CycleDetection(t *testing.T) {
	selector, _ := NewSelector(DefaultConfig(), nil)

	// A sensitivity that flips across the target at adjacent strikes
	// forces the search to revisit a strike.
	calls := 0
	result, err := selector.Select(context.Background(), Params{
		Symbol:       "SPY",
		Underlying:   420,
		TargetDelta:  0.20,
		Right:        domain.RightCall,
		Volatility:   0.22,
		DaysToExpiry: 45,
		Sensitivity: func(_ context.Context, strike float64) (float64, error) {
			calls++
			if math.Mod(strike, 10) == 0 {
				return 0.30, nil
			}
			return 0.10, nil
		},
	})
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if calls >= DefaultConfig().MaxProbes {
		t.Errorf("expected cycle detection to stop early, used %d probes", calls)
	}
	if result.Converged {
		t.Error("expected non-converged result from oscillating curve")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := (Config{Tolerance: 0, MaxProbes: 10}).Validate(); err == nil {
		t.Error("expected error for zero tolerance")
	}
	if err := (Config{Tolerance: 0.03, MaxProbes: 0}).Validate(); err == nil {
		t.Error("expected error for zero probe budget")
	}
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}
