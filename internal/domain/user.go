package domain

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// LamportsPerSOL converts ledger balances to SOL.
const LamportsPerSOL = 1_000_000_000

// Profile holds the optional account settings a user can edit.
type Profile struct {
	Email              string `json:"email,omitempty"`
	ProfileImage       string `json:"profileImage,omitempty"`
	EmailNotifications bool   `json:"emailNotifications"`
	PriceAlerts        bool   `json:"priceAlerts"`
}

// DefaultProfile returns the settings a freshly registered user starts with.
func DefaultProfile() Profile {
	return Profile{}
}

// User is the per-wallet aggregate. TradingStats, Watchlist and Alerts are
// owned by the user and only change inside a per-user critical section.
type User struct {
	WalletAddress string           `json:"walletAddress"`
	Balance       decimal.Decimal  `json:"balance"` // SOL
	Profile       Profile          `json:"profile"`
	TradingStats  TradingStats     `json:"tradingStats"`
	Watchlist     []WatchlistEntry `json:"watchlist"`
	Alerts        []Alert          `json:"alerts"`
	CreatedAt     time.Time        `json:"createdAt"`
	UpdatedAt     time.Time        `json:"updatedAt"`
	Version       int64            `json:"version"` // bumped by every committed update
}

// NewUser returns an empty user for wallet.
func NewUser(wallet string, now time.Time) *User {
	return &User{
		WalletAddress: wallet,
		Balance:       decimal.Zero,
		Profile:       DefaultProfile(),
		TradingStats:  TradingStats{TradeHistory: NewTradeHistory()},
		Watchlist:     []WatchlistEntry{},
		Alerts:        []Alert{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Clone returns a deep copy so callers can mutate it without touching shared state.
func (u *User) Clone() *User {
	c := *u
	c.TradingStats = u.TradingStats.Clone()
	c.Watchlist = slices.Clone(u.Watchlist)
	c.Alerts = make([]Alert, len(u.Alerts))
	for i, a := range u.Alerts {
		c.Alerts[i] = a.clone()
	}
	return &c
}

// FindWatch returns the index of pair in the watchlist, or -1.
func (u *User) FindWatch(pair string) int {
	for i, w := range u.Watchlist {
		if w.Pair == pair {
			return i
		}
	}
	return -1
}

// FindAlert returns the index of the alert with id, or -1.
func (u *User) FindAlert(id string) int {
	for i, a := range u.Alerts {
		if a.ID == id {
			return i
		}
	}
	return -1
}
