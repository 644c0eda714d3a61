package idhash

import (
	"crypto/sha256"
	"fmt"
	"strings"

	"github.com/mr-tron/base58"
)

// LegKey is the part of a leg that contributes to strategy identity.
type LegKey struct {
	Right  string
	Strike float64
	Action string
}

// ComputeStrategyID computes a deterministic strategy identifier from
// symbol, type, creation time and the ordered leg set.
// Formula: SHA256(symbol|type|created_ms|action:right:strike,...),
// base58-encoded.
func ComputeStrategyID(symbol, strategyType string, createdMs int64, legs []LegKey) string {
	parts := make([]string, len(legs))
	for i, l := range legs {
		parts[i] = fmt.Sprintf("%s:%s:%.2f", l.Action, l.Right, l.Strike)
	}

	data := fmt.Sprintf("%s|%s|%d|%s",
		symbol,
		strategyType,
		createdMs,
		strings.Join(parts, ","),
	)

	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:])
}
