package idhash

import (
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
)

// ComputeEventID computes a deterministic risk-event identifier.
// Formula: SHA256(component|event_type|execution_id|timestamp_ms),
// base58-encoded for compact storage keys (44 characters or fewer).
func ComputeEventID(component, eventType, executionID string, timestampMs int64) string {
	data := fmt.Sprintf("%s|%s|%s|%d",
		component,
		eventType,
		executionID,
		timestampMs,
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
