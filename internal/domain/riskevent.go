package domain

import "fmt"

// RiskEventType is the closed set of auditable risk-core transitions.
// The string values double as the persisted wire representation; the
// mapping is explicit so in-process dispatch never depends on storage
// formatting.
type RiskEventType string

const (
	EventTrailingActivated RiskEventType = "TRAILING_ACTIVATED"
	EventTrailingUpdated   RiskEventType = "TRAILING_UPDATED"
	EventTrailingTriggered RiskEventType = "TRAILING_TRIGGERED"
	EventTrailingReset     RiskEventType = "TRAILING_RESET"

	EventBreakerOpened   RiskEventType = "BREAKER_OPENED"
	EventBreakerHalfOpen RiskEventType = "BREAKER_HALF_OPEN"
	EventBreakerClosed   RiskEventType = "BREAKER_CLOSED"

	EventLimitRejected RiskEventType = "LIMIT_REJECTED"
	EventLimitWarning  RiskEventType = "LIMIT_WARNING"

	EventDecision       RiskEventType = "DECISION"
	EventStrategyBroken RiskEventType = "STRATEGY_BROKEN"
)

// riskEventTypes is the serialization whitelist.
var riskEventTypes = map[RiskEventType]struct{}{
	EventTrailingActivated: {},
	EventTrailingUpdated:   {},
	EventTrailingTriggered: {},
	EventTrailingReset:     {},
	EventBreakerOpened:     {},
	EventBreakerHalfOpen:   {},
	EventBreakerClosed:     {},
	EventLimitRejected:     {},
	EventLimitWarning:      {},
	EventDecision:          {},
	EventStrategyBroken:    {},
}

// ParseRiskEventType maps a stored string back to an event type.
func ParseRiskEventType(s string) (RiskEventType, error) {
	t := RiskEventType(s)
	if _, ok := riskEventTypes[t]; !ok {
		return "", fmt.Errorf("unknown risk event type %q", s)
	}
	return t, nil
}

// String returns the wire representation.
func (t RiskEventType) String() string { return string(t) }

// RiskEvent is an immutable, append-only fact record of a risk-core
// transition or rejection.
type RiskEvent struct {
	EventID     string
	Component   string // originating component, e.g. "trailing_stop"
	Type        RiskEventType
	Symbol      string
	ExecutionID string
	TimestampMs int64
	Reason      string
	Value       float64 // transition-specific scalar (stop level, delta, ...)
}
