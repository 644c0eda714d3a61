package strike

import (
	"math"
	"testing"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

func TestSkewRatio(t *testing.T) {
	ratio, err := SkewRatio(0.30, 0.24)
	if err != nil {
		t.Fatalf("SkewRatio failed: %v", err)
	}
	if math.Abs(ratio-1.25) > 1e-9 {
		t.Errorf("expected ratio 1.25, got %.4f", ratio)
	}

	if _, err := SkewRatio(0, 0.24); err == nil {
		t.Error("expected error for non-positive put IV")
	}
	if _, err := SkewRatio(0.30, -0.1); err == nil {
		t.Error("expected error for non-positive call IV")
	}
}

func TestAdjustTargetForSkew(t *testing.T) {
	cases := []struct {
		name   string
		target float64
		ratio  float64
		right  domain.OptionRight
		want   float64
	}{
		{"puts rich widens put target", 0.20, 1.10, domain.RightPut, 0.22},
		{"puts rich leaves call target", 0.20, 1.10, domain.RightCall, 0.20},
		{"calls rich widens call target", 0.20, 1 / 1.10, domain.RightCall, 0.22},
		{"widening capped at 20 pct", 0.20, 1.50, domain.RightPut, 0.24},
		{"adjusted target capped at 0.30", 0.28, 1.20, domain.RightPut, 0.30},
		{"flat skew unchanged", 0.20, 1.0, domain.RightPut, 0.20},
		{"invalid ratio unchanged", 0.20, 0, domain.RightPut, 0.20},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := AdjustTargetForSkew(tc.target, tc.ratio, tc.right)
			if math.Abs(got-tc.want) > 1e-6 {
				t.Errorf("AdjustTargetForSkew(%.2f, %.4f, %s) = %.4f, want %.4f",
					tc.target, tc.ratio, tc.right, got, tc.want)
			}
		})
	}
}
