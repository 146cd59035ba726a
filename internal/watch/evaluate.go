package watch

import (
	"context"
	"iter"
	"maps"

	"solana-wallet-tracker/internal/domain"
)

// Evaluate loads one snapshot of the user's watchlist and alerts and returns
// the conditions that hold against quotes. The sequence is lazy, finite and
// can be ranged over again with the same result; nothing is written.
// Watchlist entries come first, then active alerts, each in stored order.
// Comparisons are strict, so a value equal to its target never fires.
// A quote without a price is skipped by watchlist entries and price alerts.
func (e *Evaluator) Evaluate(ctx context.Context, wallet string, quotes domain.Quotes) (iter.Seq[domain.Trigger], error) {
	if err := quotes.Validate(); err != nil {
		return nil, err
	}
	u, err := e.get(ctx, wallet)
	if err != nil {
		return nil, err
	}
	e.metrics.RecordEvaluation()

	watchlist := u.Watchlist
	alerts := u.Alerts
	quotes = maps.Clone(quotes)
	at := e.now()

	return func(yield func(domain.Trigger) bool) {
		for _, w := range watchlist {
			q, ok := quotes[w.Pair]
			if !ok || !q.Price.Valid {
				continue
			}
			cond := w.Condition
			if cond == "" {
				cond = domain.ConditionAbove
			}
			if !cond.Met(q.Price.Decimal, w.TargetPrice) {
				continue
			}
			if !yield(domain.Trigger{
				Source:      domain.TriggerSourceWatchlist,
				Pair:        w.Pair,
				AlertType:   domain.AlertTypePrice,
				Condition:   cond,
				Target:      w.TargetPrice,
				Current:     q.Price.Decimal,
				EvaluatedAt: at,
			}) {
				return
			}
		}

		for _, a := range alerts {
			if !a.Active {
				continue
			}
			q, ok := quotes[a.Pair]
			if !ok {
				continue
			}
			current, ok := q.Metric(a.Type)
			if !ok || !a.Condition.Met(current, a.Value) {
				continue
			}
			if !yield(domain.Trigger{
				Source:      domain.TriggerSourceAlert,
				AlertID:     a.ID,
				Pair:        a.Pair,
				AlertType:   a.Type,
				Condition:   a.Condition,
				Target:      a.Value,
				Current:     current,
				EvaluatedAt: at,
			}) {
				return
			}
		}
	}, nil
}
