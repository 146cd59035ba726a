package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by signature
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Insert adds a new transaction. Returns ErrDuplicateKey if signature exists.
func (s *TransactionStore) Insert(_ context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.Signature == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[tx.Signature]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *tx
	s.data[tx.Signature] = &copy
	return nil
}

// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
func (s *TransactionStore) GetBySignature(_ context.Context, signature string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tx, exists := s.data[signature]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *tx
	return &copy, nil
}

// ListByWallet returns transactions involving wallet, newest first, plus the total count.
func (s *TransactionStore) ListByWallet(_ context.Context, wallet string, limit, offset int) ([]*domain.Transaction, int, error) {
	if limit < 0 || offset < 0 {
		return nil, 0, storage.ErrInvalidInput
	}

	s.mu.RLock()
	var matched []*domain.Transaction
	for _, tx := range s.data {
		if tx.Involves(wallet) {
			copy := *tx
			matched = append(matched, &copy)
		}
	}
	s.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].Timestamp.Equal(matched[j].Timestamp) {
			return matched[i].Timestamp.After(matched[j].Timestamp)
		}
		return matched[i].Signature > matched[j].Signature
	})

	total := len(matched)
	if offset >= total {
		return []*domain.Transaction{}, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return matched[offset:end], total, nil
}

// ListPending returns pending transactions submitted at or before cutoff, oldest first.
func (s *TransactionStore) ListPending(_ context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error) {
	s.mu.RLock()
	var result []*domain.Transaction
	for _, tx := range s.data {
		if tx.Status == domain.TxStatusPending && !tx.Timestamp.After(cutoff) {
			copy := *tx
			result = append(result, &copy)
		}
	}
	s.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		if !result[i].Timestamp.Equal(result[j].Timestamp) {
			return result[i].Timestamp.Before(result[j].Timestamp)
		}
		return result[i].Signature < result[j].Signature
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// UpdateStatus sets status to `to` only if the stored status equals `from`.
func (s *TransactionStore) UpdateStatus(_ context.Context, signature string, from, to domain.TxStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, exists := s.data[signature]
	if !exists {
		return storage.ErrNotFound
	}
	if tx.Status != from {
		return storage.ErrStatusMismatch
	}

	tx.Status = to
	tx.UpdatedAt = at
	return nil
}

var _ storage.TransactionStore = (*TransactionStore)(nil)
