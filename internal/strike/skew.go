package strike

import (
	"fmt"
	"math"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

const (
	// maxSkewWidening caps how far skew can widen the target sensitivity.
	maxSkewWidening = 0.20
	// maxAdjustedTarget is the hard ceiling for a skew-adjusted target.
	maxAdjustedTarget = 0.30
)

// SkewRatio computes the volatility-skew ratio: put implied volatility
// divided by call implied volatility at symmetric strikes. A ratio
// above 1 means puts trade rich.
func SkewRatio(putIV, callIV float64) (float64, error) {
	if putIV <= 0 || callIV <= 0 {
		return 0, fmt.Errorf("implied volatilities must be positive, got put=%.4f call=%.4f", putIV, callIV)
	}
	return putIV / callIV, nil
}

// AdjustTargetForSkew widens the target sensitivity on the side whose
// volatility trades rich: expensive premium justifies accepting a
// strike closer to the money. The widening is capped at 20% and the
// adjusted target never exceeds 0.30.
func AdjustTargetForSkew(target, skewRatio float64, right domain.OptionRight) float64 {
	if skewRatio <= 0 {
		return target
	}

	var richness float64
	switch right {
	case domain.RightPut:
		richness = skewRatio - 1
	case domain.RightCall:
		richness = 1/skewRatio - 1
	}
	if richness <= 0 {
		return target
	}

	widened := target * (1 + math.Min(richness, maxSkewWidening))
	return math.Min(widened, maxAdjustedTarget)
}
