package memory

import (
	"context"
	"sort"
	"sync"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TradeArchive is an in-memory implementation of storage.TradeArchive.
type TradeArchive struct {
	mu      sync.RWMutex
	entries map[string][]domain.TradeEntry // keyed by wallet
	ids     map[string]struct{}
}

// NewTradeArchive creates a new in-memory trade archive.
func NewTradeArchive() *TradeArchive {
	return &TradeArchive{
		entries: make(map[string][]domain.TradeEntry),
		ids:     make(map[string]struct{}),
	}
}

// Append stores one entry. Re-appending the same entry ID is a no-op.
func (a *TradeArchive) Append(_ context.Context, wallet string, e domain.TradeEntry) error {
	if wallet == "" || e.ID == "" {
		return storage.ErrInvalidInput
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, seen := a.ids[e.ID]; seen {
		return nil
	}
	a.ids[e.ID] = struct{}{}
	a.entries[wallet] = append(a.entries[wallet], e)
	return nil
}

// ListByWallet returns up to limit entries, newest first.
func (a *TradeArchive) ListByWallet(_ context.Context, wallet string, limit int) ([]domain.TradeEntry, error) {
	a.mu.RLock()
	result := append([]domain.TradeEntry{}, a.entries[wallet]...)
	a.mu.RUnlock()

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

var _ storage.TradeArchive = (*TradeArchive)(nil)
