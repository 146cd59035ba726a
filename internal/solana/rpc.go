package solana

import "context"

// RPCClient defines the Solana RPC HTTP methods used for reconciliation.
type RPCClient interface {
	// GetSignatureStatuses returns one entry per signature, nil when the
	// ledger does not know the signature.
	GetSignatureStatuses(ctx context.Context, signatures []string, searchHistory bool) ([]*SignatureStatus, error)

	// GetBalance returns the lamport balance of an account.
	GetBalance(ctx context.Context, pubkey string) (uint64, error)

	// GetSlot returns the current slot.
	GetSlot(ctx context.Context) (int64, error)
}

// Commitment levels reported in SignatureStatus.ConfirmationStatus.
const (
	CommitmentProcessed = "processed"
	CommitmentConfirmed = "confirmed"
	CommitmentFinalized = "finalized"
)

// SignatureStatus is the ledger status of a single signature.
type SignatureStatus struct {
	Slot               int64
	Confirmations      *int64 // nil once rooted
	Err                interface{}
	ConfirmationStatus string
}

// Failed reports whether the transaction executed with an error.
func (s *SignatureStatus) Failed() bool {
	return s.Err != nil
}

// Reached reports whether the status is at least at commitment level c.
// Older nodes omit confirmationStatus. A nil confirmation count then means
// the slot is rooted (finalized); a present one means it is only processed.
func (s *SignatureStatus) Reached(c string) bool {
	level := s.ConfirmationStatus
	if level == "" {
		level = CommitmentProcessed
		if s.Confirmations == nil {
			level = CommitmentFinalized
		}
	}
	return commitmentRank(level) >= commitmentRank(c)
}

func commitmentRank(c string) int {
	switch c {
	case CommitmentProcessed:
		return 1
	case CommitmentConfirmed:
		return 2
	case CommitmentFinalized:
		return 3
	}
	return 0
}

// JSON-RPC error codes.
const (
	RPCErrInvalidParams = -32602
)
