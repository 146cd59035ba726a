// Package watch manages a user's watchlist and alerts and evaluates them
// against market quotes.
package watch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/keylock"
	"solana-wallet-tracker/internal/observability"
	"solana-wallet-tracker/internal/storage"
)

// Config configures the Evaluator.
type Config struct {
	Logger  *zap.Logger
	Metrics *observability.Metrics
	Now     func() time.Time
}

// Evaluator owns watchlist and alert state. Mutations of one user are
// serialized; evaluation is read-only.
type Evaluator struct {
	users   storage.UserStore
	locker  keylock.Locker
	logger  *zap.Logger
	metrics *observability.Metrics
	now     func() time.Time
}

// NewEvaluator creates a new Evaluator.
func NewEvaluator(users storage.UserStore, locker keylock.Locker, cfg Config) *Evaluator {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Evaluator{
		users:   users,
		locker:  locker,
		logger:  cfg.Logger.Named("watch"),
		metrics: cfg.Metrics,
		now:     cfg.Now,
	}
}

// mutate runs fn on the user inside the per-user critical section and
// commits the result atomically.
func (e *Evaluator) mutate(ctx context.Context, wallet string, fn func(u *domain.User) error) (*domain.User, error) {
	if wallet == "" {
		return nil, domain.Validationf("wallet is required")
	}

	unlock, err := e.locker.Lock(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", wallet, err)
	}
	defer unlock()

	u, err := e.users.Update(ctx, wallet, fn)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", wallet, domain.ErrNotFound)
		}
		if errors.Is(err, domain.ErrValidation) || errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("update user: %w", err)
	}
	return u, nil
}

func (e *Evaluator) get(ctx context.Context, wallet string) (*domain.User, error) {
	if wallet == "" {
		return nil, domain.Validationf("wallet is required")
	}
	u, err := e.users.Get(ctx, wallet)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("user %s: %w", wallet, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}
