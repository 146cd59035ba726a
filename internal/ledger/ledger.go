// Package ledger adapts the Solana RPC client to the capability the core
// services need: signature status and account balance, with a bounded wait.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/solana"
)

// DefaultTimeout bounds each ledger call when Config.Timeout is zero.
const DefaultTimeout = 5 * time.Second

// Client is the ledger capability used by the reconciler and wallet service.
// Every failure to reach the ledger wraps domain.ErrNetworkUnavailable.
type Client interface {
	// SignatureStatus returns the ledger's view of signature. A signature the
	// ledger has not seen is NetworkUnknown with a nil error.
	SignatureStatus(ctx context.Context, signature string) (domain.NetworkStatus, error)

	// Balance returns the account balance in lamports.
	Balance(ctx context.Context, wallet string) (uint64, error)
}

// Config configures the RPC adapter.
type Config struct {
	Timeout       time.Duration // per call; DefaultTimeout when zero
	MinCommitment string        // commitment treated as confirmed; "confirmed" when empty
	Logger        *zap.Logger
	Metrics       *observability.Metrics
}

// RPCLedger implements Client on top of solana.RPCClient.
type RPCLedger struct {
	rpc           solana.RPCClient
	timeout       time.Duration
	minCommitment string
	logger        *zap.Logger
	metrics       *observability.Metrics
}

// NewRPCLedger creates a new RPCLedger.
func NewRPCLedger(rpc solana.RPCClient, cfg Config) *RPCLedger {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MinCommitment == "" {
		cfg.MinCommitment = solana.CommitmentConfirmed
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &RPCLedger{
		rpc:           rpc,
		timeout:       cfg.Timeout,
		minCommitment: cfg.MinCommitment,
		logger:        cfg.Logger.Named("ledger"),
		metrics:       cfg.Metrics,
	}
}

// Compile-time interface check.
var _ Client = (*RPCLedger)(nil)

// SignatureStatus queries getSignatureStatuses with history search enabled.
func (l *RPCLedger) SignatureStatus(ctx context.Context, signature string) (domain.NetworkStatus, error) {
	unknown := domain.NetworkStatus{State: domain.NetworkUnknown}

	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	statuses, err := l.rpc.GetSignatureStatuses(ctx, []string{signature}, true)
	l.metrics.RecordLedgerCall("getSignatureStatuses", time.Since(start).Seconds(), err)
	if err != nil {
		return unknown, l.translate("getSignatureStatuses", err)
	}
	if len(statuses) == 0 || statuses[0] == nil {
		return unknown, nil
	}

	return l.classify(statuses[0]), nil
}

// Balance queries getBalance.
func (l *RPCLedger) Balance(ctx context.Context, wallet string) (uint64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	lamports, err := l.rpc.GetBalance(ctx, wallet)
	l.metrics.RecordLedgerCall("getBalance", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, l.translate("getBalance", err)
	}
	return lamports, nil
}

// Slot queries getSlot. It serves as a reachability check for the ledger.
func (l *RPCLedger) Slot(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	start := time.Now()
	slot, err := l.rpc.GetSlot(ctx)
	l.metrics.RecordLedgerCall("getSlot", time.Since(start).Seconds(), err)
	if err != nil {
		return 0, l.translate("getSlot", err)
	}
	return slot, nil
}

func (l *RPCLedger) classify(st *solana.SignatureStatus) domain.NetworkStatus {
	ns := domain.NetworkStatus{
		Slot:               st.Slot,
		ConfirmationStatus: st.ConfirmationStatus,
		Err:                st.Err,
	}
	switch {
	case st.Failed():
		ns.State = domain.NetworkFailed
	case st.Reached(l.minCommitment):
		ns.State = domain.NetworkConfirmed
	default:
		ns.State = domain.NetworkPending
	}
	return ns
}

// translate maps an RPC failure onto the domain taxonomy. Only a node-side
// rejection of the parameters is a caller error; everything else, including
// a caller cancellation, is reported as the ledger being unavailable.
func (l *RPCLedger) translate(method string, err error) error {
	var rpcErr *solana.RPCError
	if errors.As(err, &rpcErr) && rpcErr.Code == solana.RPCErrInvalidParams {
		return fmt.Errorf("%s: %w: %s", method, domain.ErrValidation, rpcErr.Message)
	}
	l.logger.Warn("ledger call failed", zap.String("method", method), zap.Error(err))
	return fmt.Errorf("%s: %w: %v", method, domain.ErrNetworkUnavailable, err)
}
