package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Condition is the direction a watched value must cross.
type Condition string

// Condition values. Comparisons are strict: equality never triggers.
const (
	ConditionAbove Condition = "above"
	ConditionBelow Condition = "below"
)

// Valid reports whether c is a known condition.
func (c Condition) Valid() bool {
	return c == ConditionAbove || c == ConditionBelow
}

// Met reports whether current crosses target in direction c.
func (c Condition) Met(current, target decimal.Decimal) bool {
	switch c {
	case ConditionAbove:
		return current.GreaterThan(target)
	case ConditionBelow:
		return current.LessThan(target)
	}
	return false
}

// AlertType selects which quote metric an alert watches.
type AlertType string

// Alert types.
const (
	AlertTypePrice  AlertType = "price"  // Quote.Price
	AlertTypeVolume AlertType = "volume" // Quote.Volume
	AlertTypePump   AlertType = "pump"   // Quote.ChangePct
)

// Valid reports whether t is a known alert type.
func (t AlertType) Valid() bool {
	switch t {
	case AlertTypePrice, AlertTypeVolume, AlertTypePump:
		return true
	}
	return false
}

// WatchlistEntry is a target price on a pair. At most one entry per pair.
type WatchlistEntry struct {
	Pair        string          `json:"pair"`
	TargetPrice decimal.Decimal `json:"targetPrice"` // > 0
	Condition   Condition       `json:"condition"`
	AddedAt     time.Time       `json:"addedAt"`
}

// Alert is a user-defined condition on a pair metric. Firing does not
// deactivate or delete it; RecordTrigger persists a firing explicitly.
type Alert struct {
	ID              string          `json:"id"`
	Type            AlertType       `json:"type"`
	Pair            string          `json:"pair"`
	Condition       Condition       `json:"condition"`
	Value           decimal.Decimal `json:"value"` // > 0
	Active          bool            `json:"active"`
	CreatedAt       time.Time       `json:"createdAt"`
	LastTriggeredAt *time.Time      `json:"lastTriggeredAt,omitempty"`
	TriggerCount    int64           `json:"triggerCount"`
}

func (a Alert) clone() Alert {
	if a.LastTriggeredAt != nil {
		ts := *a.LastTriggeredAt
		a.LastTriggeredAt = &ts
	}
	return a
}

// Quote is the market data for one pair at evaluation time.
// Every metric is optional; watches and alerts on an absent metric are skipped.
type Quote struct {
	Price     decimal.NullDecimal `json:"price"`
	Volume    decimal.NullDecimal `json:"volume"`
	ChangePct decimal.NullDecimal `json:"changePct"`
}

// Metric returns the quote value watched by alert type t.
func (q Quote) Metric(t AlertType) (decimal.Decimal, bool) {
	switch t {
	case AlertTypePrice:
		return q.Price.Decimal, q.Price.Valid
	case AlertTypeVolume:
		return q.Volume.Decimal, q.Volume.Valid
	case AlertTypePump:
		return q.ChangePct.Decimal, q.ChangePct.Valid
	}
	return decimal.Zero, false
}

// Quotes maps pair to its current quote.
type Quotes map[string]Quote

// Validate rejects a present price that is not positive and a negative
// volume. ChangePct may take any sign.
func (qs Quotes) Validate() error {
	for pair, q := range qs {
		if q.Price.Valid && !q.Price.Decimal.IsPositive() {
			return Validationf("price for %s must be positive, got %s", pair, q.Price.Decimal)
		}
		if q.Volume.Valid && q.Volume.Decimal.IsNegative() {
			return Validationf("volume for %s must not be negative, got %s", pair, q.Volume.Decimal)
		}
	}
	return nil
}

// PriceQuotes builds Quotes from a plain price map. The result is not
// validated; Evaluate does that.
func PriceQuotes(prices map[string]decimal.Decimal) Quotes {
	q := make(Quotes, len(prices))
	for pair, p := range prices {
		q[pair] = Quote{Price: decimal.NewNullDecimal(p)}
	}
	return q
}

// TriggerSource tells whether a trigger came from the watchlist or an alert.
type TriggerSource string

// Trigger sources.
const (
	TriggerSourceWatchlist TriggerSource = "watchlist"
	TriggerSourceAlert     TriggerSource = "alert"
)

// Trigger reports one condition that held at evaluation time.
type Trigger struct {
	Source      TriggerSource   `json:"source"`
	AlertID     string          `json:"alertId,omitempty"`
	Pair        string          `json:"pair"`
	AlertType   AlertType       `json:"alertType"`
	Condition   Condition       `json:"condition"`
	Target      decimal.Decimal `json:"target"`
	Current     decimal.Decimal `json:"current"`
	EvaluatedAt time.Time       `json:"evaluatedAt"`
}
