package strategy

import (
	"fmt"
	"io"
	"log"
	"math"
	"sort"
	"strconv"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
)

// Fill-ratio assumptions used when no live quotes are available. The
// mid estimate bounds max risk; realized credit runs well below mid for
// delta-targeted wings.
const (
	midFillRatio    = 0.5
	creditFillRatio = 0.1
)

// Composite score weights.
const (
	weightRiskReward = 0.30
	weightPOS        = 0.30
	weightReturn     = 0.25
	weightIVRank     = 0.15
)

// Scorer derives the read-only analysis view of a built strategy and
// ranks candidates by composite score.
type Scorer struct {
	logger *log.Logger
}

// NewScorer creates a Scorer.
func NewScorer(logger *log.Logger) *Scorer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Scorer{logger: logger}
}

// Score computes credit, max risk, risk/reward, probability of success,
// expected return and the composite 0-100 score for a built strategy.
// The IV rank (0-100 percentile of current implied vol against its
// one-year range) supplies the volatility-context component.
func (sc *Scorer) Score(s *domain.Strategy, ivRank float64) (*domain.StrategyAnalysis, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("score strategy: %w", err)
	}
	if ivRank < 0 || ivRank > 100 {
		return nil, fmt.Errorf("iv rank must be in [0, 100], got %.1f", ivRank)
	}

	width, err := riskWidth(s)
	if err != nil {
		return nil, err
	}
	creditWidth, err := creditBasisWidth(s)
	if err != nil {
		return nil, err
	}
	shortDelta, err := worstShortDelta(s)
	if err != nil {
		return nil, err
	}

	qty := float64(s.Legs[0].Quantity)
	credit := creditFillRatio * creditWidth * domain.ContractMultiplier * qty
	maxRisk := (width - midFillRatio*width) * domain.ContractMultiplier * qty
	if credit <= 0 || maxRisk <= 0 {
		return nil, fmt.Errorf("degenerate economics for %s: credit %.2f, max risk %.2f", s.ID, credit, maxRisk)
	}

	riskReward := maxRisk / credit
	pos := 100 - math.Abs(shortDelta)*100
	posFrac := pos / 100
	expectedReturn := credit*posFrac - maxRisk*(1-posFrac)

	score := 100 * (weightRiskReward*riskRewardComponent(riskReward) +
		weightPOS*posComponent(pos) +
		weightReturn*returnComponent(expectedReturn, maxRisk) +
		weightIVRank*ivRankComponent(ivRank))

	return &domain.StrategyAnalysis{
		StrategyID:           s.ID,
		Symbol:               s.Symbol,
		Credit:               credit,
		MaxRisk:              maxRisk,
		RiskReward:           riskReward,
		ProbabilityOfSuccess: pos,
		ExpectedReturn:       expectedReturn,
		Score:                score,
	}, nil
}

// Rank sorts analyses by composite score, best first. The sort is
// stable: candidates with equal scores keep their build order.
func (sc *Scorer) Rank(analyses []*domain.StrategyAnalysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		return analyses[i].Score > analyses[j].Score
	})
}

// riskRewardComponent saturates at ratio 3 and zeroes out at 10.
func riskRewardComponent(rr float64) float64 {
	switch {
	case rr <= 3:
		return 1
	case rr >= 10:
		return 0
	default:
		return (10 - rr) / 7
	}
}

// posComponent is zero below 50% and saturates at 80%.
func posComponent(pos float64) float64 {
	switch {
	case pos <= 50:
		return 0
	case pos >= 80:
		return 1
	default:
		return (pos - 50) / 30
	}
}

// returnComponent scores expected return as a percent of max risk,
// saturating at 20%.
func returnComponent(expectedReturn, maxRisk float64) float64 {
	pct := expectedReturn / maxRisk * 100
	if pct <= 0 {
		return 0
	}
	if pct >= 20 {
		return 1
	}
	return pct / 20
}

// ivRankComponent is best inside the 25-75 percentile band and
// penalized linearly toward the extremes.
func ivRankComponent(ivRank float64) float64 {
	switch {
	case ivRank >= 25 && ivRank <= 75:
		return 1
	case ivRank < 25:
		return ivRank / 25
	default:
		return (100 - ivRank) / 25
	}
}

// riskWidth returns the width backing max risk: the worse wing for a
// condor, the spread width otherwise.
func riskWidth(s *domain.Strategy) (float64, error) {
	putW, callW, err := wingWidths(s)
	if err != nil {
		return 0, err
	}
	return math.Max(putW, callW), nil
}

// creditBasisWidth returns the width the credit estimate is based on:
// the mean wing for a condor, the spread width otherwise.
func creditBasisWidth(s *domain.Strategy) (float64, error) {
	putW, callW, err := wingWidths(s)
	if err != nil {
		return 0, err
	}
	switch s.Type {
	case domain.StrategyTypeIronCondor:
		return (putW + callW) / 2, nil
	default:
		return math.Max(putW, callW), nil
	}
}

// wingWidths extracts the distance between each sold strike and its
// protective strike. For a spread one of the two is zero.
func wingWidths(s *domain.Strategy) (putWidth, callWidth float64, err error) {
	var shortPut, longPut, shortCall, longCall float64
	for _, l := range s.Legs {
		switch {
		case l.Right == domain.RightPut && l.Action == domain.ActionSell:
			shortPut = l.Strike
		case l.Right == domain.RightPut && l.Action == domain.ActionBuy:
			longPut = l.Strike
		case l.Right == domain.RightCall && l.Action == domain.ActionSell:
			shortCall = l.Strike
		case l.Right == domain.RightCall && l.Action == domain.ActionBuy:
			longCall = l.Strike
		}
	}

	if shortPut > 0 && longPut > 0 {
		putWidth = shortPut - longPut
		if putWidth <= 0 {
			return 0, 0, fmt.Errorf("strategy %s: protective put %.2f not below sold put %.2f", s.ID, longPut, shortPut)
		}
	}
	if shortCall > 0 && longCall > 0 {
		callWidth = longCall - shortCall
		if callWidth <= 0 {
			return 0, 0, fmt.Errorf("strategy %s: protective call %.2f not above sold call %.2f", s.ID, longCall, shortCall)
		}
	}
	if putWidth == 0 && callWidth == 0 {
		return 0, 0, fmt.Errorf("strategy %s has no protected sold leg", s.ID)
	}
	return putWidth, callWidth, nil
}

// worstShortDelta returns the short-leg delta with the largest absolute
// value, preferring the builder's recorded deltas when present.
func worstShortDelta(s *domain.Strategy) (float64, error) {
	var worst float64
	found := false
	for _, key := range []string{"short_delta", "short_put_delta", "short_call_delta"} {
		raw, ok := s.Metadata[key]
		if !ok {
			continue
		}
		d, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return 0, fmt.Errorf("strategy %s: bad %s %q", s.ID, key, raw)
		}
		if math.Abs(d) > math.Abs(worst) {
			worst = d
		}
		found = true
	}
	if !found {
		return 0, fmt.Errorf("strategy %s has no recorded short-leg delta", s.ID)
	}
	return worst, nil
}
