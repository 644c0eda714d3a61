package trailing

import (
	"math"
	"math/rand"
	"testing"
)

func mustStop(t *testing.T, entry float64) *Stop {
	t.Helper()
	s, err := NewStop(entry, DefaultConfig())
	if err != nil {
		t.Fatalf("NewStop failed: %v", err)
	}
	return s
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", DefaultConfig(), false},
		{"zero activation", Config{ActivationPct: 0, TrailPct: 1.5, MinMovePct: 0.5}, true},
		{"zero trail", Config{ActivationPct: 2.0, TrailPct: 0, MinMovePct: 0.5}, true},
		{"zero min move", Config{ActivationPct: 2.0, TrailPct: 1.5, MinMovePct: 0}, true},
		{"trail equals activation", Config{ActivationPct: 2.0, TrailPct: 2.0, MinMovePct: 0.5}, true},
		{"trail above activation", Config{ActivationPct: 2.0, TrailPct: 3.0, MinMovePct: 0.5}, true},
		{"tight but valid", Config{ActivationPct: 2.0, TrailPct: 1.9, MinMovePct: 0.1}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestNewStop_RejectsNonPositiveEntry(t *testing.T) {
	if _, err := NewStop(0, DefaultConfig()); err == nil {
		t.Error("expected error for zero entry premium")
	}
	if _, err := NewStop(-10, DefaultConfig()); err == nil {
		t.Error("expected error for negative entry premium")
	}
}

func TestUpdate_RejectsNonPositivePremium(t *testing.T) {
	s := mustStop(t, 100)
	if _, err := s.Update(0); err == nil {
		t.Error("expected precondition error for zero premium")
	}
	if _, err := s.Update(-1); err == nil {
		t.Error("expected precondition error for negative premium")
	}
}

// TestUpdate_Scenario walks the documented lifecycle: entry 100.0 with
// default thresholds.
func TestUpdate_Scenario(t *testing.T) {
	s := mustStop(t, 100.0)

	outcome, err := s.Update(101.0)
	if err != nil {
		t.Fatalf("Update(101) failed: %v", err)
	}
	if outcome != OutcomeHold {
		t.Errorf("Update(101) = %s, want HOLD", outcome)
	}
	if s.StopPremium() != nil {
		t.Errorf("expected nil stop before activation, got %.4f", *s.StopPremium())
	}

	outcome, err = s.Update(103.0)
	if err != nil {
		t.Fatalf("Update(103) failed: %v", err)
	}
	if outcome != OutcomeActivated {
		t.Errorf("Update(103) = %s, want ACTIVATED", outcome)
	}
	if got := *s.StopPremium(); math.Abs(got-101.455) > 1e-9 {
		t.Errorf("stop after activation = %.4f, want 101.455", got)
	}

	outcome, err = s.Update(105.0)
	if err != nil {
		t.Fatalf("Update(105) failed: %v", err)
	}
	if outcome != OutcomeUpdated {
		t.Errorf("Update(105) = %s, want UPDATED", outcome)
	}
	if got := *s.StopPremium(); math.Abs(got-103.425) > 1e-9 {
		t.Errorf("stop after raise = %.4f, want 103.425", got)
	}

	outcome, err = s.Update(103.0)
	if err != nil {
		t.Fatalf("Update(103) failed: %v", err)
	}
	if outcome != OutcomeTriggered {
		t.Errorf("Update(103) = %s, want TRIGGERED", outcome)
	}
	if got := *s.StopPremium(); math.Abs(got-103.425) > 1e-9 {
		t.Errorf("stop after trigger = %.4f, want unchanged 103.425", got)
	}
}

// TestUpdate_Idempotent verifies an unchanged, non-triggering premium
// yields HOLD twice with an unchanged stop.
func TestUpdate_Idempotent(t *testing.T) {
	s := mustStop(t, 100.0)

	if _, err := s.Update(103.0); err != nil { // activate
		t.Fatalf("activation failed: %v", err)
	}
	before := *s.StopPremium()

	for i := 0; i < 2; i++ {
		outcome, err := s.Update(103.0)
		if err != nil {
			t.Fatalf("Update failed: %v", err)
		}
		// 103.0 > stop 101.455, candidate unchanged -> HOLD
		if outcome != OutcomeHold {
			t.Errorf("repeat update %d = %s, want HOLD", i, outcome)
		}
	}
	if after := *s.StopPremium(); after != before {
		t.Errorf("stop changed from %.4f to %.4f on idempotent updates", before, after)
	}
}

// TestUpdate_PeakMonotonic verifies highest_premium never decreases.
func TestUpdate_PeakMonotonic(t *testing.T) {
	s := mustStop(t, 100.0)
	rng := rand.New(rand.NewSource(7))

	prevPeak := s.HighestPremium()
	for i := 0; i < 500; i++ {
		premium := 50 + rng.Float64()*100
		if _, err := s.Update(premium); err != nil {
			t.Fatalf("Update(%f) failed: %v", premium, err)
		}
		if s.HighestPremium() < prevPeak {
			t.Fatalf("peak decreased from %.4f to %.4f", prevPeak, s.HighestPremium())
		}
		prevPeak = s.HighestPremium()
	}
}

// TestUpdate_WhipsawProtection verifies the stop never moves by less
// than min_move_pct across random premium sequences.
func TestUpdate_WhipsawProtection(t *testing.T) {
	rng := rand.New(rand.NewSource(99))

	for run := 0; run < 50; run++ {
		s := mustStop(t, 100.0)

		for i := 0; i < 200; i++ {
			// Drift upward slowly so the stop activates and candidate
			// moves are frequently below the min-move threshold.
			premium := 100.0 + float64(i)*0.02 + rng.Float64()*0.5

			var before *float64
			if sp := s.StopPremium(); sp != nil {
				before = sp
			}

			outcome, err := s.Update(premium)
			if err != nil {
				t.Fatalf("run %d: Update failed: %v", run, err)
			}
			if outcome == OutcomeTriggered {
				break
			}

			after := s.StopPremium()
			if before != nil && after != nil && *after != *before {
				movePct := math.Abs(*after-*before) / *before * 100
				if movePct < s.Config().MinMovePct {
					t.Fatalf("run %d: stop moved %.4f%% which is below min_move_pct %.2f%%",
						run, movePct, s.Config().MinMovePct)
				}
			}
			if before != nil && after != nil && outcome == OutcomeHold && *after != *before {
				t.Fatalf("run %d: HOLD outcome but stop moved", run)
			}
		}
	}
}

func TestReset(t *testing.T) {
	s := mustStop(t, 100.0)

	if _, err := s.Update(105.0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !s.Active() {
		t.Fatal("expected active stop after 5% move")
	}

	s.Reset()

	if s.Active() {
		t.Error("expected inactive stop after reset")
	}
	if s.StopPremium() != nil {
		t.Error("expected cleared stop premium after reset")
	}
	if s.HighestPremium() != s.EntryPremium() {
		t.Errorf("expected peak reset to entry %.2f, got %.2f", s.EntryPremium(), s.HighestPremium())
	}
}

func TestRestore_RoundTrip(t *testing.T) {
	s := mustStop(t, 100.0)
	if _, err := s.Update(104.0); err != nil {
		t.Fatalf("Update failed: %v", err)
	}

	state := s.State("exec-1", 1700000000000)
	restored, err := Restore(state)
	if err != nil {
		t.Fatalf("Restore failed: %v", err)
	}

	if restored.EntryPremium() != s.EntryPremium() {
		t.Errorf("entry premium mismatch: %.4f vs %.4f", restored.EntryPremium(), s.EntryPremium())
	}
	if restored.HighestPremium() != s.HighestPremium() {
		t.Errorf("peak mismatch: %.4f vs %.4f", restored.HighestPremium(), s.HighestPremium())
	}
	if restored.Active() != s.Active() {
		t.Errorf("active mismatch")
	}
	if *restored.StopPremium() != *s.StopPremium() {
		t.Errorf("stop mismatch: %.4f vs %.4f", *restored.StopPremium(), *s.StopPremium())
	}
}
