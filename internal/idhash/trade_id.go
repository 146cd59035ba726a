package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeEntryID computes a deterministic trade entry id using SHA256.
// Formula: SHA256(wallet|seq|timestamp_ms|trade_type|pair)
// seq is the user's TotalTrades after recording, so replays of the same
// event stream yield the same ids. Returns hex-encoded hash (64 characters).
func ComputeTradeEntryID(
	wallet string,
	seq int64,
	timestampMs int64,
	tradeType string,
	pair string,
) string {
	data := fmt.Sprintf("%s|%d|%d|%s|%s",
		wallet,
		seq,
		timestampMs,
		tradeType,
		pair,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}
