// Package main scans iron-condor candidates for one symbol: builds a
// strategy per target delta, scores and ranks them, and gates the best
// candidate through the portfolio limiter.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/rainermokros/IBKR-BOT-sub002/internal/domain"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/marketdata"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/risk"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/storage/memory"
	"github.com/rainermokros/IBKR-BOT-sub002/internal/strategy"
)

// candidate pairs a built strategy with its analysis for output.
type candidate struct {
	Strategy *domain.Strategy         `json:"strategy"`
	Analysis *domain.StrategyAnalysis `json:"analysis"`
}

func main() {
	// Parse flags
	symbol := flag.String("symbol", "", "Underlying symbol (required)")
	underlying := flag.Float64("underlying", 0, "Spot price of the underlying (required)")
	vol := flag.Float64("vol", 0, "Implied volatility, e.g. 0.25 (required)")
	ivRank := flag.Float64("iv-rank", 50, "IV rank percentile 0-100")
	dte := flag.Float64("dte", 45, "Days to expiry")
	deltas := flag.String("deltas", "0.15,0.20,0.25,0.30", "Comma-separated short-leg delta targets")
	putWidth := flag.Float64("put-width", 10, "Put wing width")
	callWidth := flag.Float64("call-width", 10, "Call wing width")
	quantity := flag.Int("quantity", 1, "Contracts per leg")
	skewRatio := flag.Float64("skew-ratio", 0, "Put IV / call IV skew (0 disables)")
	rate := flag.Float64("rate", 0.05, "Risk-free rate for the pricing model")
	outputJSON := flag.Bool("json", false, "Output as JSON")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stderr, "[scan] ", log.LstdFlags)

	// Validate required flags
	if *symbol == "" {
		logger.Fatal("--symbol is required")
	}
	if *underlying <= 0 {
		logger.Fatal("--underlying must be positive")
	}
	if *vol <= 0 {
		logger.Fatal("--vol must be positive")
	}

	targets, err := parseDeltas(*deltas)
	if err != nil {
		logger.Fatalf("Invalid --deltas: %v", err)
	}

	ctx := context.Background()

	// Model-backed market data for offline scanning
	provider := marketdata.NewModelProvider(*rate)
	provider.SetSymbol(*symbol, *underlying, *vol)

	builder, err := strategy.NewBuilder(strategy.DefaultBuilderConfig(), provider, logger)
	if err != nil {
		logger.Fatalf("Failed to create builder: %v", err)
	}
	scorer := strategy.NewScorer(logger)

	// Build and score one condor per delta target
	var candidates []*candidate
	var analyses []*domain.StrategyAnalysis
	for _, target := range targets {
		s, err := builder.BuildIronCondor(ctx, strategy.CondorParams{
			Symbol:       *symbol,
			Underlying:   *underlying,
			TargetDelta:  target,
			PutWidth:     *putWidth,
			CallWidth:    *callWidth,
			DaysToExpiry: *dte,
			Quantity:     *quantity,
			Volatility:   *vol,
			SkewRatio:    *skewRatio,
		})
		if err != nil {
			logger.Printf("Skipping delta %.2f: %v", target, err)
			continue
		}

		analysis, err := scorer.Score(s, *ivRank)
		if err != nil {
			logger.Printf("Skipping delta %.2f: %v", target, err)
			continue
		}

		candidates = append(candidates, &candidate{Strategy: s, Analysis: analysis})
		analyses = append(analyses, analysis)
	}

	if len(candidates) == 0 {
		logger.Fatal("No viable candidates")
	}

	scorer.Rank(analyses)

	// Gate the best candidate through the portfolio limiter. The scan
	// runs against an empty book, so this flags candidates that would
	// breach limits even on a clean portfolio.
	limiter, err := risk.NewLimiter(risk.DefaultLimits(),
		risk.NewPositionAggregator(memory.NewPositionStore()), nil, logger)
	if err != nil {
		logger.Fatalf("Failed to create limiter: %v", err)
	}

	best := analyses[0]
	allowed, reason, err := limiter.Allow(ctx, proposalFor(best))
	if err != nil {
		logger.Fatalf("Limit check failed: %v", err)
	}

	if *outputJSON {
		printJSON(candidates, analyses, allowed, reason)
		return
	}
	printTable(candidates, analyses, allowed, reason)
}

// parseDeltas parses the comma-separated delta target list.
func parseDeltas(s string) ([]float64, error) {
	var out []float64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := strconv.ParseFloat(part, 64)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", part, err)
		}
		if v <= 0 || v >= 1 {
			return nil, fmt.Errorf("delta target %.2f out of range (0, 1)", v)
		}
		out = append(out, v)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("no delta targets")
	}
	return out, nil
}

// proposalFor converts an analysis into a limiter proposal. The scan
// has no live greeks for the whole structure, so the proposal carries
// the premium at risk as exposure with neutral delta and gamma.
func proposalFor(a *domain.StrategyAnalysis) *risk.Proposal {
	return &risk.Proposal{
		Symbol: a.Symbol,
		Delta:  0,
		Gamma:  0,
		Value:  a.MaxRisk,
	}
}

// printTable writes the ranked candidates as a fixed-width table.
func printTable(candidates []*candidate, ranked []*domain.StrategyAnalysis, allowed bool, reason string) {
	byID := make(map[string]*candidate, len(candidates))
	for _, c := range candidates {
		byID[c.Analysis.StrategyID] = c
	}

	fmt.Printf("%-4s %-18s %8s %9s %6s %6s %9s %7s\n",
		"RANK", "STRATEGY", "CREDIT", "MAX_RISK", "RR", "POS%", "EXP_RET", "SCORE")
	for i, a := range ranked {
		c := byID[a.StrategyID]
		fmt.Printf("%-4d %-18s %8.2f %9.2f %6.2f %6.1f %9.2f %7.1f\n",
			i+1, shortID(c.Strategy.ID), a.Credit, a.MaxRisk, a.RiskReward,
			a.ProbabilityOfSuccess, a.ExpectedReturn, a.Score)
	}

	fmt.Println()
	if allowed {
		fmt.Println("Portfolio limits: best candidate ALLOWED")
	} else {
		fmt.Printf("Portfolio limits: best candidate REJECTED (%s)\n", reason)
	}
}

// printJSON writes the full scan result as JSON.
func printJSON(candidates []*candidate, ranked []*domain.StrategyAnalysis, allowed bool, reason string) {
	out := struct {
		Ranked     []*domain.StrategyAnalysis `json:"ranked"`
		Candidates []*candidate               `json:"candidates"`
		Allowed    bool                       `json:"allowed"`
		Reason     string                     `json:"reason,omitempty"`
	}{
		Ranked:     ranked,
		Candidates: candidates,
		Allowed:    allowed,
		Reason:     reason,
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		log.Fatalf("encode output: %v", err)
	}
}

func shortID(id string) string {
	if len(id) > 16 {
		return id[:16]
	}
	return id
}
