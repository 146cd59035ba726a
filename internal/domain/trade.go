package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-tracker/internal/ringbuf"
)

// MaxTradeHistory is the number of trades kept per user; older entries are evicted FIFO.
const MaxTradeHistory = 100

// Trade type values seen from clients. Other values are accepted verbatim.
const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
	TradeTypeSwap = "swap"
)

// TradeEntry is one element of a user's rolling trade history.
type TradeEntry struct {
	ID        string          `json:"id"` // deterministic hash, see idhash.ComputeTradeEntryID
	Timestamp time.Time       `json:"timestamp"`
	Success   bool            `json:"success"`
	TradeType string          `json:"tradeType"`
	Amount    decimal.Decimal `json:"amount"`
	Pair      string          `json:"pair"`
	Token     string          `json:"token,omitempty"`
}

// TradeHistory is the bounded, oldest-first trade log of a user.
// The zero value is an empty history with capacity MaxTradeHistory.
type TradeHistory struct {
	buf *ringbuf.Buffer[TradeEntry]
}

// NewTradeHistory returns an empty history seeded with entries (oldest first).
// Only the newest MaxTradeHistory entries are kept.
func NewTradeHistory(entries ...TradeEntry) TradeHistory {
	h := TradeHistory{buf: ringbuf.New[TradeEntry](MaxTradeHistory)}
	for _, e := range entries {
		h.buf.Push(e)
	}
	return h
}

func (h *TradeHistory) ensure() {
	if h.buf == nil {
		h.buf = ringbuf.New[TradeEntry](MaxTradeHistory)
	}
}

// Append adds an entry, evicting the oldest one when full.
func (h *TradeHistory) Append(e TradeEntry) {
	h.ensure()
	h.buf.Push(e)
}

// Len returns the number of entries held.
func (h TradeHistory) Len() int {
	if h.buf == nil {
		return 0
	}
	return h.buf.Len()
}

// Entries returns a copy of the entries, oldest first.
func (h TradeHistory) Entries() []TradeEntry {
	if h.buf == nil {
		return []TradeEntry{}
	}
	return h.buf.Items()
}

// Clone returns an independent copy.
func (h TradeHistory) Clone() TradeHistory {
	if h.buf == nil {
		return TradeHistory{}
	}
	return TradeHistory{buf: h.buf.Clone()}
}

// MarshalJSON encodes the history as an oldest-first array.
func (h TradeHistory) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.Entries())
}

// UnmarshalJSON decodes an array, keeping the newest MaxTradeHistory entries.
func (h *TradeHistory) UnmarshalJSON(data []byte) error {
	var entries []TradeEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	*h = NewTradeHistory(entries...)
	return nil
}

// TradingStats is the rolling trading summary embedded in a User.
// SuccessfulTrades never exceeds TotalTrades.
type TradingStats struct {
	TotalTrades      int64        `json:"totalTrades"`
	SuccessfulTrades int64        `json:"successfulTrades"`
	LastTradeAt      *time.Time   `json:"lastTradeAt,omitempty"`
	TradeHistory     TradeHistory `json:"tradeHistory"`
}

// Record folds one trade into the stats.
func (s *TradingStats) Record(e TradeEntry) {
	s.TotalTrades++
	if e.Success {
		s.SuccessfulTrades++
	}
	ts := e.Timestamp
	s.LastTradeAt = &ts
	s.TradeHistory.Append(e)
}

// SuccessRate returns successful/total*100 rounded to two decimals, or zero
// when no trades were recorded.
func (s TradingStats) SuccessRate() decimal.Decimal {
	if s.TotalTrades == 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(s.SuccessfulTrades).
		Mul(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(s.TotalTrades)).
		Round(2)
}

// Clone returns a deep copy.
func (s TradingStats) Clone() TradingStats {
	out := s
	if s.LastTradeAt != nil {
		ts := *s.LastTradeAt
		out.LastTradeAt = &ts
	}
	out.TradeHistory = s.TradeHistory.Clone()
	return out
}
