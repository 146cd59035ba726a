package watch

import (
	"context"
	"slices"

	"github.com/shopspring/decimal"

	"solana-wallet-tracker/internal/domain"
)

// AddWatch sets a target price on pair. A pair already on the watchlist has
// its target and condition replaced, so the watchlist never holds duplicates.
// An empty condition means above.
func (e *Evaluator) AddWatch(ctx context.Context, wallet, pair string, target decimal.Decimal, cond domain.Condition) (*domain.WatchlistEntry, error) {
	if cond == "" {
		cond = domain.ConditionAbove
	}
	switch {
	case pair == "":
		return nil, domain.Validationf("pair is required")
	case !target.IsPositive():
		return nil, domain.Validationf("target price must be positive, got %s", target)
	case !cond.Valid():
		return nil, domain.Validationf("unknown condition %q", cond)
	}

	var entry domain.WatchlistEntry
	_, err := e.mutate(ctx, wallet, func(u *domain.User) error {
		if i := u.FindWatch(pair); i >= 0 {
			u.Watchlist[i].TargetPrice = target
			u.Watchlist[i].Condition = cond
			entry = u.Watchlist[i]
			return nil
		}
		entry = domain.WatchlistEntry{
			Pair:        pair,
			TargetPrice: target,
			Condition:   cond,
			AddedAt:     e.now(),
		}
		u.Watchlist = append(u.Watchlist, entry)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

// RemoveWatch drops pair from the watchlist and returns what remains.
// Removing an absent pair is not an error and writes nothing.
func (e *Evaluator) RemoveWatch(ctx context.Context, wallet, pair string) ([]domain.WatchlistEntry, error) {
	u, err := e.get(ctx, wallet)
	if err != nil {
		return nil, err
	}
	if u.FindWatch(pair) < 0 {
		return u.Watchlist, nil
	}

	u, err = e.mutate(ctx, wallet, func(u *domain.User) error {
		u.Watchlist = slices.DeleteFunc(u.Watchlist, func(w domain.WatchlistEntry) bool {
			return w.Pair == pair
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return u.Watchlist, nil
}

// Watchlist returns the user's watchlist in insertion order.
func (e *Evaluator) Watchlist(ctx context.Context, wallet string) ([]domain.WatchlistEntry, error) {
	u, err := e.get(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return u.Watchlist, nil
}
