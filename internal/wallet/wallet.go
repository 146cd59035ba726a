// Package wallet manages user accounts keyed by wallet address.
package wallet

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/keylock"
	"solana-wallet-tracker/internal/ledger"
	"solana-wallet-tracker/internal/solana"
	"solana-wallet-tracker/internal/storage"
)

var lamportsPerSOL = decimal.NewFromInt(domain.LamportsPerSOL)

// ProfileUpdate lists the profile fields to change; nil fields are kept.
type ProfileUpdate struct {
	Email              *string `validate:"omitempty,email"`
	ProfileImage       *string `validate:"omitempty,url"`
	EmailNotifications *bool
	PriceAlerts        *bool
}

// Config configures the Service.
type Config struct {
	Logger *zap.Logger
	Now    func() time.Time
}

// Service registers users and keeps their profile and balance.
type Service struct {
	users    storage.UserStore
	locker   keylock.Locker
	ledger   ledger.Client
	validate *validator.Validate
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a new Service.
func NewService(users storage.UserStore, locker keylock.Locker, l ledger.Client, cfg Config) *Service {
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		users:    users,
		locker:   locker,
		ledger:   l,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   cfg.Logger.Named("wallet"),
		now:      cfg.Now,
	}
}

// Register creates an empty user for wallet. The address must be a
// base58 public key on the ed25519 curve.
func (s *Service) Register(ctx context.Context, wallet string) (*domain.User, error) {
	if err := solana.ValidateAddress(wallet); err != nil {
		return nil, domain.Validationf("wallet: %v", err)
	}
	if !solana.IsOnCurve(wallet) {
		return nil, domain.Validationf("wallet %s is not an ed25519 public key", wallet)
	}

	u := domain.NewUser(wallet, s.now())
	if err := s.users.Insert(ctx, u); err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return nil, fmt.Errorf("wallet %s: %w", wallet, domain.ErrConflict)
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	s.logger.Info("user registered", zap.String("wallet", wallet))
	return u, nil
}

// Get returns the user for wallet.
func (s *Service) Get(ctx context.Context, wallet string) (*domain.User, error) {
	u, err := s.users.Get(ctx, wallet)
	if err != nil {
		return nil, translate(wallet, err)
	}
	return u, nil
}

// UpdateProfile applies the non-nil fields of p.
func (s *Service) UpdateProfile(ctx context.Context, wallet string, p ProfileUpdate) (*domain.User, error) {
	if err := s.validate.Struct(p); err != nil {
		return nil, domain.Validationf("profile: %v", err)
	}

	return s.mutate(ctx, wallet, func(u *domain.User) error {
		if p.Email != nil {
			u.Profile.Email = *p.Email
		}
		if p.ProfileImage != nil {
			u.Profile.ProfileImage = *p.ProfileImage
		}
		if p.EmailNotifications != nil {
			u.Profile.EmailNotifications = *p.EmailNotifications
		}
		if p.PriceAlerts != nil {
			u.Profile.PriceAlerts = *p.PriceAlerts
		}
		return nil
	})
}

// Remove deletes the user and everything embedded in it.
func (s *Service) Remove(ctx context.Context, wallet string) error {
	unlock, err := s.locker.Lock(ctx, wallet)
	if err != nil {
		return fmt.Errorf("lock %s: %w", wallet, err)
	}
	defer unlock()

	if err := s.users.Delete(ctx, wallet); err != nil {
		return translate(wallet, err)
	}
	s.logger.Info("user removed", zap.String("wallet", wallet))
	return nil
}

// RefreshBalance reads the on-chain balance and stores it in SOL. When the
// ledger cannot be reached the stored balance is left as it was.
func (s *Service) RefreshBalance(ctx context.Context, wallet string) (*domain.User, error) {
	if _, err := s.Get(ctx, wallet); err != nil {
		return nil, err
	}

	lamports, err := s.ledger.Balance(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("balance of %s: %w", wallet, err)
	}
	sol := decimal.NewFromBigInt(new(big.Int).SetUint64(lamports), 0).Div(lamportsPerSOL)

	return s.mutate(ctx, wallet, func(u *domain.User) error {
		u.Balance = sol
		return nil
	})
}

func (s *Service) mutate(ctx context.Context, wallet string, fn func(u *domain.User) error) (*domain.User, error) {
	unlock, err := s.locker.Lock(ctx, wallet)
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", wallet, err)
	}
	defer unlock()

	u, err := s.users.Update(ctx, wallet, fn)
	if err != nil {
		return nil, translate(wallet, err)
	}
	return u, nil
}

func translate(wallet string, err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("user %s: %w", wallet, domain.ErrNotFound)
	}
	return fmt.Errorf("user %s: %w", wallet, err)
}
