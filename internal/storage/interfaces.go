package storage

import (
	"context"
	"time"

	"solana-wallet-tracker/internal/domain"
)

// TransactionStore provides access to transactions storage.
type TransactionStore interface {
	// Insert adds a new transaction. Returns ErrDuplicateKey if signature exists.
	Insert(ctx context.Context, tx *domain.Transaction) error

	// GetBySignature retrieves a transaction. Returns ErrNotFound if not exists.
	GetBySignature(ctx context.Context, signature string) (*domain.Transaction, error)

	// ListByWallet returns transactions where wallet is sender or recipient,
	// ordered by timestamp DESC, and the total number of matches ignoring paging.
	ListByWallet(ctx context.Context, wallet string, limit, offset int) ([]*domain.Transaction, int, error)

	// ListPending returns up to limit pending transactions submitted at or
	// before cutoff, ordered by timestamp ASC.
	ListPending(ctx context.Context, cutoff time.Time, limit int) ([]*domain.Transaction, error)

	// UpdateStatus sets status to `to` only if the stored status equals `from`.
	// Returns ErrNotFound if signature is absent, ErrStatusMismatch otherwise.
	UpdateStatus(ctx context.Context, signature string, from, to domain.TxStatus, at time.Time) error
}

// UserStore provides access to users storage.
type UserStore interface {
	// Insert adds a new user. Returns ErrDuplicateKey if wallet exists.
	Insert(ctx context.Context, u *domain.User) error

	// Get retrieves a user. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet string) (*domain.User, error)

	// Update applies fn to a private copy of the user and persists the result
	// atomically. If fn returns an error nothing is written and the error is
	// returned unwrapped. On commit Version is incremented and UpdatedAt set.
	// Returns ErrNotFound if not exists.
	Update(ctx context.Context, wallet string, fn func(u *domain.User) error) (*domain.User, error)

	// Delete removes a user. Returns ErrNotFound if not exists.
	Delete(ctx context.Context, wallet string) error
}

// TradeArchive keeps an append-only copy of every recorded trade, beyond the
// bounded history embedded in the user document.
type TradeArchive interface {
	// Append stores one entry. Re-appending the same entry ID is idempotent.
	Append(ctx context.Context, wallet string, e domain.TradeEntry) error

	// ListByWallet returns up to limit entries, ordered by timestamp DESC.
	ListByWallet(ctx context.Context, wallet string, limit int) ([]domain.TradeEntry, error)
}
