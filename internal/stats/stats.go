// Package stats maintains each user's rolling trading statistics.
package stats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/idhash"
	"solana-wallet-tracker/internal/keylock"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/storage"
)

// TradeOutcome is one completed trade reported by a client.
type TradeOutcome struct {
	Success   bool
	TradeType string
	Amount    decimal.Decimal
	Pair      string
	Token     string
}

// Snapshot is a user's stats together with the derived success rate.
type Snapshot struct {
	Stats       domain.TradingStats
	SuccessRate decimal.Decimal
}

// MarshalJSON renders the success rate with exactly two decimals.
func (s Snapshot) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Stats       domain.TradingStats `json:"tradingStats"`
		SuccessRate string              `json:"successRate"`
	}{s.Stats, s.SuccessRate.StringFixed(2)})
}

func newSnapshot(ts domain.TradingStats) *Snapshot {
	return &Snapshot{Stats: ts, SuccessRate: SuccessRate(ts)}
}

// SuccessRate returns successful/total*100 rounded to two places, zero without trades.
func SuccessRate(ts domain.TradingStats) decimal.Decimal {
	return ts.SuccessRate()
}

// Config configures the Aggregator.
type Config struct {
	Archive storage.TradeArchive // optional
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Aggregator records trades into the per-user rolling stats.
type Aggregator struct {
	users   storage.UserStore
	locker  keylock.Locker
	archive storage.TradeArchive
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewAggregator creates a new Aggregator.
func NewAggregator(users storage.UserStore, locker keylock.Locker, cfg Config) *Aggregator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Aggregator{
		users:   users,
		locker:  locker,
		archive: cfg.Archive,
		logger:  cfg.Logger.Named("stats"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// RecordTrade folds outcome into the user's stats in one atomic update:
// totals, last trade time and the bounded history change together or not at
// all. Same-user calls are serialized; different users run in parallel.
func (a *Aggregator) RecordTrade(ctx context.Context, wallet string, outcome TradeOutcome) (*Snapshot, error) {
	if wallet == "" {
		return nil, domain.Validationf("wallet is required")
	}
	if outcome.TradeType == "" {
		return nil, domain.Validationf("trade type is required")
	}
	if outcome.Amount.IsNegative() {
		return nil, domain.Validationf("amount must not be negative, got %s", outcome.Amount)
	}

	unlock, err := a.locker.Lock(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", wallet, err)
	}
	defer unlock()

	var entry domain.TradeEntry
	u, err := a.users.Update(ctx, wallet, func(u *domain.User) error {
		now := a.now()
		seq := u.TradingStats.TotalTrades + 1
		entry = domain.TradeEntry{
			ID:        idhash.ComputeTradeEntryID(wallet, seq, now.UnixMilli(), outcome.TradeType, outcome.Pair),
			Timestamp: now,
			Success:   outcome.Success,
			TradeType: outcome.TradeType,
			Amount:    outcome.Amount,
			Pair:      outcome.Pair,
			Token:     outcome.Token,
		}
		u.TradingStats.Record(entry)
		return nil
	})
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", wallet, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("record trade: %w", err)
	}

	a.metrics.RecordTrade(outcome.Success)
	a.archiveEntry(ctx, wallet, entry)

	return newSnapshot(u.TradingStats), nil
}

// archiveEntry copies a committed entry to the archive. Failures are logged
// and counted; the user document is already committed.
func (a *Aggregator) archiveEntry(ctx context.Context, wallet string, entry domain.TradeEntry) {
	if a.archive == nil {
		return
	}
	if err := a.archive.Append(ctx, wallet, entry); err != nil {
		a.metrics.RecordArchiveError()
		a.logger.Warn("archive trade failed",
			zap.String("wallet", wallet),
			zap.String("entry_id", entry.ID),
			zap.Error(err))
	}
}

// Stats returns the user's current stats without modifying them.
func (a *Aggregator) Stats(ctx context.Context, wallet string) (*Snapshot, error) {
	u, err := a.getUser(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return newSnapshot(u.TradingStats), nil
}

// Trades returns up to limit trades, newest first. With an archive configured
// this reaches past the bounded in-document history.
func (a *Aggregator) Trades(ctx context.Context, wallet string, limit int) ([]domain.TradeEntry, error) {
	if limit <= 0 || limit > 1000 {
		limit = domain.MaxTradeHistory
	}

	u, err := a.getUser(ctx, wallet)
	if err != nil {
		return nil, err
	}

	if a.archive != nil {
		entries, err := a.archive.ListByWallet(ctx, wallet, limit)
		if err == nil {
			return entries, nil
		}
		a.logger.Warn("archive read failed, serving embedded history",
			zap.String("wallet", wallet), zap.Error(err))
	}

	entries := u.TradingStats.TradeHistory.Entries()
	out := make([]domain.TradeEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, entries[i])
	}
	return out, nil
}

func (a *Aggregator) getUser(ctx context.Context, wallet string) (*domain.User, error) {
	if wallet == "" {
		return nil, domain.Validationf("wallet is required")
	}
	u, err := a.users.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", wallet, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
