package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// TxStatus is the local lifecycle state of a submitted transaction.
type TxStatus string

// Transaction status values.
const (
	TxStatusPending   TxStatus = "pending"
	TxStatusConfirmed TxStatus = "confirmed"
	TxStatusFailed    TxStatus = "failed"
)

// Valid reports whether s is a known status.
func (s TxStatus) Valid() bool {
	switch s {
	case TxStatusPending, TxStatusConfirmed, TxStatusFailed:
		return true
	}
	return false
}

// Terminal reports whether s can no longer change.
func (s TxStatus) Terminal() bool {
	return s == TxStatusConfirmed || s == TxStatusFailed
}

// CanTransitionTo reports whether a stored status may be moved to next.
// Only pending->confirmed and pending->failed are allowed; a same-status
// write is accepted as a no-op.
func (s TxStatus) CanTransitionTo(next TxStatus) bool {
	if !next.Valid() {
		return false
	}
	if s == next {
		return true
	}
	return s == TxStatusPending && next.Terminal()
}

// Transaction is a locally recorded transfer keyed by its ledger signature.
// Only Status changes after creation.
type Transaction struct {
	Signature string          `json:"signature"`       // base58 ledger signature, natural key
	Sender    string          `json:"sender"`
	Recipient string          `json:"recipient"`
	Amount    decimal.Decimal `json:"amount"`          // > 0
	Token     string          `json:"token,omitempty"` // mint or symbol, empty for SOL
	Timestamp time.Time       `json:"timestamp"`       // submission time (UTC)
	Status    TxStatus        `json:"status"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// Involves reports whether wallet is the sender or recipient.
func (t *Transaction) Involves(wallet string) bool {
	return t.Sender == wallet || t.Recipient == wallet
}

// NetworkState is the ledger's view of a signature.
type NetworkState string

// Network state values. Unknown covers both "not yet seen" and "ledger unreachable".
const (
	NetworkUnknown   NetworkState = "unknown"
	NetworkPending   NetworkState = "pending"
	NetworkConfirmed NetworkState = "confirmed"
	NetworkFailed    NetworkState = "failed"
)

// TxStatus maps a terminal network state onto the local status it settles to.
// ok is false while the network has not reached a final answer.
func (n NetworkState) TxStatus() (status TxStatus, ok bool) {
	switch n {
	case NetworkConfirmed:
		return TxStatusConfirmed, true
	case NetworkFailed:
		return TxStatusFailed, true
	}
	return "", false
}

// NetworkStatus is the raw answer from the ledger for one signature.
type NetworkStatus struct {
	State              NetworkState `json:"state"`
	Slot               int64        `json:"slot,omitempty"`
	ConfirmationStatus string       `json:"confirmationStatus,omitempty"` // processed | confirmed | finalized
	Err                interface{}  `json:"err,omitempty"`
}
