// Package reconciler records submitted transfers and reconciles their local
// status with the ledger. Local status only moves forward, and only on an
// explicit Settle; reads from the ledger never write.
package reconciler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/ledger"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/solana"
	"solana-wallet-tracker/internal/storage"
)

// History paging bounds.
const (
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// SubmitRequest describes a transfer the caller has sent to the network.
type SubmitRequest struct {
	Sender    string
	Recipient string
	Amount    decimal.Decimal
	Signature string
	Token     string
}

// ReconcileResult pairs the stored status with the ledger's answer.
type ReconcileResult struct {
	Signature string               `json:"signature"`
	DBStatus  domain.TxStatus      `json:"dbStatus"`
	Network   domain.NetworkStatus `json:"networkStatus"`
	Timestamp time.Time            `json:"timestamp"`
	Settled   bool                 `json:"settled,omitempty"` // set by SettleFromLedger when a transition was written
}

// Config configures the Service.
type Config struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Service implements the transaction lifecycle.
type Service struct {
	txs     storage.TransactionStore
	ledger  ledger.Client
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewService creates a new Service.
func NewService(txs storage.TransactionStore, l ledger.Client, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		txs:     txs,
		ledger:  l,
		logger:  cfg.Logger.Named("reconciler"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// Submit records a new pending transaction.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (*domain.Transaction, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	now := s.now()
	tx := &domain.Transaction{
		Signature: req.Signature,
		Sender:    req.Sender,
		Recipient: req.Recipient,
		Amount:    req.Amount,
		Token:     req.Token,
		Timestamp: now,
		Status:    domain.TxStatusPending,
		UpdatedAt: now,
	}

	if err := s.txs.Insert(ctx, tx); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("signature %s: %w", req.Signature, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}

	s.metrics.RecordSubmitted()
	s.logger.Debug("transaction submitted",
		zap.String("signature", tx.Signature),
		zap.String("sender", tx.Sender),
		zap.String("recipient", tx.Recipient),
		zap.String("amount", tx.Amount.String()))
	return tx, nil
}

func validateSubmit(req SubmitRequest) error {
	switch {
	case req.Sender == "":
		return domain.Validationf("sender is required")
	case req.Recipient == "":
		return domain.Validationf("recipient is required")
	case req.Signature == "":
		return domain.Validationf("signature is required")
	case !req.Amount.IsPositive():
		return domain.Validationf("amount must be positive, got %s", req.Amount)
	}
	if err := solana.ValidateAddress(req.Sender); err != nil {
		return domain.Validationf("sender: %v", err)
	}
	if err := solana.ValidateAddress(req.Recipient); err != nil {
		return domain.Validationf("recipient: %v", err)
	}
	if err := solana.ValidateSignature(req.Signature); err != nil {
		return domain.Validationf("signature: %v", err)
	}
	return nil
}

// Reconcile reports the stored status next to the ledger's current view.
// It never writes. When the ledger cannot be reached the result is still
// returned, with the network state unknown, alongside an error wrapping
// domain.ErrNetworkUnavailable.
func (s *Service) Reconcile(ctx context.Context, signature string) (*ReconcileResult, error) {
	tx, err := s.get(ctx, signature)
	if err != nil {
		return nil, err
	}

	res := &ReconcileResult{
		Signature: tx.Signature,
		DBStatus:  tx.Status,
		Timestamp: s.now(),
	}

	ns, err := s.ledger.SignatureStatus(ctx, signature)
	if err != nil {
		res.Network = domain.NetworkStatus{State: domain.NetworkUnknown}
		s.metrics.RecordReconcile(string(domain.NetworkUnknown))
		return res, fmt.Errorf("reconcile %s: %w", signature, err)
	}

	res.Network = ns
	s.metrics.RecordReconcile(string(ns.State))
	return res, nil
}

// History returns transactions where wallet is sender or recipient, newest
// first, and the total number of matches ignoring paging.
func (s *Service) History(ctx context.Context, wallet string, limit, offset int) ([]*domain.Transaction, int, error) {
	if wallet == "" {
		return nil, 0, domain.Validationf("wallet is required")
	}
	if offset < 0 {
		return nil, 0, domain.Validationf("offset must not be negative, got %d", offset)
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	txs, total, err := s.txs.ListByWallet(ctx, wallet, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list transactions: %w", err)
	}
	if txs == nil {
		txs = []*domain.Transaction{}
	}
	return txs, total, nil
}

// Settle persists a status transition decided by the caller. Writing the
// current status again is a no-op. Any move out of a terminal status fails
// with domain.ErrInvalidTransition; concurrent settles cannot overwrite one
// another because the store applies the change as a compare-and-set.
func (s *Service) Settle(ctx context.Context, signature string, next domain.TxStatus) (*domain.Transaction, error) {
	if !next.Valid() {
		return nil, domain.Validationf("unknown status %q", next)
	}

	tx, err := s.get(ctx, signature)
	if err != nil {
		return nil, err
	}
	if tx.Status == next {
		return tx, nil
	}
	if !tx.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, tx.Status, next)
	}

	at := s.now()
	err = s.txs.UpdateStatus(ctx, signature, tx.Status, next, at)
	switch {
	case err == nil:
		tx.Status = next
		tx.UpdatedAt = at
		s.metrics.RecordSettle(string(next))
		s.logger.Info("transaction settled",
			zap.String("signature", signature),
			zap.String("status", string(next)))
		return tx, nil

	case errors.Is(err, storage.ErrStatusMismatch):
		// Lost a race; accept it only if the winner wrote the same status.
		cur, gerr := s.get(ctx, signature)
		if gerr != nil {
			return nil, gerr
		}
		if cur.Status == next {
			return cur, nil
		}
		return nil, fmt.Errorf("%w: %s -> %s", domain.ErrInvalidTransition, cur.Status, next)

	case errors.Is(err, storage.ErrNotFound):
		return nil, fmt.Errorf("transaction %s: %w", signature, domain.ErrNotFound)
	}
	return nil, fmt.Errorf("update status: %w", err)
}

// SettleFromLedger reconciles signature and settles it when the ledger has
// reached a terminal answer. An unknown or pending answer, or a ledger
// failure, leaves the stored status untouched.
func (s *Service) SettleFromLedger(ctx context.Context, signature string) (*ReconcileResult, error) {
	res, err := s.Reconcile(ctx, signature)
	if err != nil {
		return res, err
	}

	next, terminal := res.Network.State.TxStatus()
	if !terminal || res.DBStatus == next {
		return res, nil
	}
	if res.DBStatus.Terminal() {
		s.logger.Warn("ledger disagrees with settled status",
			zap.String("signature", signature),
			zap.String("db_status", string(res.DBStatus)),
			zap.String("network_state", string(res.Network.State)))
		return res, nil
	}

	tx, err := s.Settle(ctx, signature, next)
	if err != nil {
		return res, err
	}
	res.DBStatus = tx.Status
	res.Settled = true
	return res, nil
}

func (s *Service) get(ctx context.Context, signature string) (*domain.Transaction, error) {
	if signature == "" {
		return nil, domain.Validationf("signature is required")
	}
	tx, err := s.txs.GetBySignature(ctx, signature)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("transaction %s: %w", signature, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get transaction: %w", err)
	}
	return tx, nil
}
