package memory

import (
	"context"
	"sync"
	"time"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
// Users are deep-copied on the way in and out, so callers never share state.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*domain.User // keyed by wallet address
	now  func() time.Time
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{
		data: make(map[string]*domain.User),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Insert adds a new user. Returns ErrDuplicateKey if wallet exists.
func (s *UserStore) Insert(_ context.Context, u *domain.User) error {
	if u == nil || u.WalletAddress == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[u.WalletAddress]; exists {
		return storage.ErrDuplicateKey
	}

	s.data[u.WalletAddress] = u.Clone()
	return nil
}

// Get retrieves a user. Returns ErrNotFound if not exists.
func (s *UserStore) Get(_ context.Context, wallet string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, exists := s.data[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return u.Clone(), nil
}

// Update applies fn to a copy of the user and swaps it in only if fn succeeds.
func (s *UserStore) Update(ctx context.Context, wallet string, fn func(u *domain.User) error) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, exists := s.data[wallet]
	if !exists {
		return nil, storage.ErrNotFound
	}

	next := current.Clone()
	if err := fn(next); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	next.WalletAddress = wallet
	next.Version = current.Version + 1
	next.UpdatedAt = s.now()
	s.data[wallet] = next
	return next.Clone(), nil
}

// Delete removes a user. Returns ErrNotFound if not exists.
func (s *UserStore) Delete(_ context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[wallet]; !exists {
		return storage.ErrNotFound
	}
	delete(s.data, wallet)
	return nil
}

var _ storage.UserStore = (*UserStore)(nil)
