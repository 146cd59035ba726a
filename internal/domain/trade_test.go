package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestTradingStats_SuccessRate(t *testing.T) {
	tests := []struct {
		name       string
		total      int64
		successful int64
		want       string
	}{
		{"no trades", 0, 0, "0.00"},
		{"three of four", 4, 3, "75.00"},
		{"one of three", 3, 1, "33.33"},
		{"two of three", 3, 2, "66.67"},
		{"all", 7, 7, "100.00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := TradingStats{TotalTrades: tt.total, SuccessfulTrades: tt.successful}
			if got := s.SuccessRate().StringFixed(2); got != tt.want {
				t.Errorf("SuccessRate() = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestTradingStats_RecordEvictsOldest(t *testing.T) {
	var s TradingStats
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 0; i < MaxTradeHistory+1; i++ {
		s.Record(TradeEntry{
			ID:        string(rune('a' + i%26)),
			Timestamp: base.Add(time.Duration(i) * time.Second),
			Success:   i%2 == 0,
			Amount:    decimal.NewFromInt(int64(i + 1)),
		})
	}

	if s.TotalTrades != int64(MaxTradeHistory+1) {
		t.Fatalf("TotalTrades = %d, want %d", s.TotalTrades, MaxTradeHistory+1)
	}
	if s.SuccessfulTrades != 51 {
		t.Errorf("SuccessfulTrades = %d, want 51", s.SuccessfulTrades)
	}
	if s.TradeHistory.Len() != MaxTradeHistory {
		t.Fatalf("history len = %d, want %d", s.TradeHistory.Len(), MaxTradeHistory)
	}

	entries := s.TradeHistory.Entries()
	if !entries[0].Amount.Equal(decimal.NewFromInt(2)) {
		t.Errorf("oldest amount = %s, want 2 (first trade evicted)", entries[0].Amount)
	}
	if !s.LastTradeAt.Equal(base.Add(MaxTradeHistory * time.Second)) {
		t.Errorf("LastTradeAt = %v", s.LastTradeAt)
	}
}

func TestTradeHistory_UnmarshalKeepsNewest(t *testing.T) {
	entries := make([]TradeEntry, MaxTradeHistory+5)
	for i := range entries {
		entries[i] = TradeEntry{Amount: decimal.NewFromInt(int64(i))}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var h TradeHistory
	if err := json.Unmarshal(data, &h); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if h.Len() != MaxTradeHistory {
		t.Fatalf("Len() = %d, want %d", h.Len(), MaxTradeHistory)
	}
	if !h.Entries()[0].Amount.Equal(decimal.NewFromInt(5)) {
		t.Errorf("oldest kept = %s, want 5", h.Entries()[0].Amount)
	}
}

func TestTradingStats_CloneIsDeep(t *testing.T) {
	var s TradingStats
	s.Record(TradeEntry{Timestamp: time.Now(), Success: true})

	c := s.Clone()
	c.Record(TradeEntry{Timestamp: time.Now()})

	if s.TradeHistory.Len() != 1 || s.TotalTrades != 1 {
		t.Errorf("original mutated: total=%d len=%d", s.TotalTrades, s.TradeHistory.Len())
	}
}

func TestTradeHistory_ZeroValue(t *testing.T) {
	var h TradeHistory
	if h.Len() != 0 || len(h.Entries()) != 0 {
		t.Error("zero history should be empty")
	}
	data, err := json.Marshal(h)
	if err != nil || string(data) != "[]" {
		t.Errorf("Marshal zero history = %s, %v", data, err)
	}
}
