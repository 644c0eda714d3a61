package domain

// Action is the operational verb of a monitoring decision.
type Action string

const (
	ActionHold  Action = "HOLD"
	ActionClose Action = "CLOSE"
	ActionRoll  Action = "ROLL"
	ActionEnter Action = "ENTER"
)

// Urgency ranks how quickly a decision should be acted on.
// UrgencyImmediate bypasses normal rule evaluation.
type Urgency string

const (
	UrgencyLow       Urgency = "LOW"
	UrgencyNormal    Urgency = "NORMAL"
	UrgencyHigh      Urgency = "HIGH"
	UrgencyImmediate Urgency = "IMMEDIATE"
)

// Decision is the single actionable outcome of one monitoring cycle
// for one position. Decisions are produced fresh every cycle and only
// ever logged, never persisted as mutable state.
type Decision struct {
	Action   Action
	Urgency  Urgency
	Reason   string
	Rule     string
	Metadata map[string]string
}

// HoldDecision builds the default no-action decision.
func HoldDecision(rule, reason string) *Decision {
	return &Decision{
		Action:  ActionHold,
		Urgency: UrgencyLow,
		Reason:  reason,
		Rule:    rule,
	}
}
