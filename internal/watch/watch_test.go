package watch

import (
	"context"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-wallet-tracker/internal/domain"
	"solana-wallet-tracker/internal/keylock"
	"solana-wallet-tracker/internal/storage/memory"
)

const wallet = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"

var baseTime = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newEvaluator(t *testing.T) (*Evaluator, *memory.UserStore) {
	t.Helper()
	users := memory.NewUserStore()
	require.NoError(t, users.Insert(context.Background(), domain.NewUser(wallet, baseTime)))
	e := NewEvaluator(users, keylock.NewMap(), Config{Now: func() time.Time { return baseTime }})
	return e, users
}

func collect(t *testing.T, e *Evaluator, quotes domain.Quotes) []domain.Trigger {
	t.Helper()
	seq, err := e.Evaluate(context.Background(), wallet, quotes)
	require.NoError(t, err)
	return slices.Collect(seq)
}

func TestAddWatch(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	entry, err := e.AddWatch(ctx, wallet, "SOL/USDC", dec("100"), "")
	require.NoError(t, err)
	assert.Equal(t, domain.ConditionAbove, entry.Condition)
	assert.Equal(t, baseTime, entry.AddedAt)

	_, err = e.AddWatch(ctx, wallet, "JUP/USDC", dec("0.8"), domain.ConditionBelow)
	require.NoError(t, err)

	list, err := e.Watchlist(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "SOL/USDC", list[0].Pair)
	assert.Equal(t, "JUP/USDC", list[1].Pair)
}

func TestAddWatch_Upsert(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	_, err := e.AddWatch(ctx, wallet, "SOL/USDC", dec("100"), domain.ConditionAbove)
	require.NoError(t, err)
	_, err = e.AddWatch(ctx, wallet, "SOL/USDC", dec("90"), domain.ConditionBelow)
	require.NoError(t, err)

	list, err := e.Watchlist(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].TargetPrice.Equal(dec("90")))
	assert.Equal(t, domain.ConditionBelow, list[0].Condition)
}

func TestAddWatch_Validation(t *testing.T) {
	e, users := newEvaluator(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		pair   string
		target decimal.Decimal
		cond   domain.Condition
	}{
		{"zero target", "SOL/USDC", decimal.Zero, domain.ConditionAbove},
		{"negative target", "SOL/USDC", dec("-1"), domain.ConditionAbove},
		{"empty pair", "", dec("1"), domain.ConditionAbove},
		{"bad condition", "SOL/USDC", dec("1"), domain.Condition("sideways")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := e.AddWatch(ctx, wallet, tt.pair, tt.target, tt.cond)
			require.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	u, err := users.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Empty(t, u.Watchlist)
	assert.Zero(t, u.Version, "validation failures must not write")
}

func TestAddWatch_UnknownUser(t *testing.T) {
	e, _ := newEvaluator(t)
	_, err := e.AddWatch(context.Background(), "nobody", "SOL/USDC", dec("1"), "")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemoveWatch(t *testing.T) {
	e, users := newEvaluator(t)
	ctx := context.Background()

	_, err := e.AddWatch(ctx, wallet, "SOL/USDC", dec("100"), "")
	require.NoError(t, err)
	_, err = e.AddWatch(ctx, wallet, "JUP/USDC", dec("1"), "")
	require.NoError(t, err)

	list, err := e.RemoveWatch(ctx, wallet, "SOL/USDC")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "JUP/USDC", list[0].Pair)

	before, err := users.Get(ctx, wallet)
	require.NoError(t, err)

	list, err = e.RemoveWatch(ctx, wallet, "SOL/USDC")
	require.NoError(t, err)
	require.Len(t, list, 1)

	after, err := users.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "removing an absent pair must not write")
}

func TestAlerts_Lifecycle(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	a, err := e.CreateAlert(ctx, wallet, AlertRequest{
		Type:      domain.AlertTypePrice,
		Pair:      "SOL/USDC",
		Condition: domain.ConditionAbove,
		Value:     dec("150"),
	})
	require.NoError(t, err)
	assert.True(t, a.Active)
	assert.NotEmpty(t, a.ID)

	off, err := e.SetAlertActive(ctx, wallet, a.ID, false)
	require.NoError(t, err)
	assert.False(t, off.Active)

	value := dec("175")
	updated, err := e.UpdateAlert(ctx, wallet, a.ID, AlertPatch{Value: &value})
	require.NoError(t, err)
	assert.True(t, updated.Value.Equal(value))
	assert.False(t, updated.Active)

	bad := dec("0")
	_, err = e.UpdateAlert(ctx, wallet, a.ID, AlertPatch{Value: &bad})
	require.ErrorIs(t, err, domain.ErrValidation)

	fired, err := e.RecordTrigger(ctx, wallet, a.ID, baseTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), fired.TriggerCount)
	require.NotNil(t, fired.LastTriggeredAt)
	assert.Equal(t, baseTime.Add(time.Hour), *fired.LastTriggeredAt)

	alerts, err := e.Alerts(ctx, wallet)
	require.NoError(t, err)
	require.Len(t, alerts, 1)
	assert.True(t, alerts[0].Value.Equal(value))

	require.NoError(t, e.DeleteAlert(ctx, wallet, a.ID))
	require.ErrorIs(t, e.DeleteAlert(ctx, wallet, a.ID), domain.ErrNotFound)

	_, err = e.SetAlertActive(ctx, wallet, a.ID, true)
	require.ErrorIs(t, err, domain.ErrNotFound)
	_, err = e.RecordTrigger(ctx, wallet, a.ID, time.Time{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCreateAlert_Validation(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	reqs := []AlertRequest{
		{Type: "rug", Pair: "SOL/USDC", Condition: domain.ConditionAbove, Value: dec("1")},
		{Type: domain.AlertTypeVolume, Pair: "", Condition: domain.ConditionAbove, Value: dec("1")},
		{Type: domain.AlertTypeVolume, Pair: "SOL/USDC", Condition: "", Value: dec("1")},
		{Type: domain.AlertTypePump, Pair: "SOL/USDC", Condition: domain.ConditionBelow, Value: dec("-5")},
	}
	for _, req := range reqs {
		_, err := e.CreateAlert(ctx, wallet, req)
		assert.ErrorIs(t, err, domain.ErrValidation, "%+v", req)
	}
}

func TestEvaluate_StrictBoundary(t *testing.T) {
	tests := []struct {
		cond  domain.Condition
		price string
		fires bool
	}{
		{domain.ConditionAbove, "100", false},
		{domain.ConditionAbove, "100.0001", true},
		{domain.ConditionAbove, "99.9999", false},
		{domain.ConditionBelow, "100", false},
		{domain.ConditionBelow, "99.9999", true},
		{domain.ConditionBelow, "100.0001", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.cond)+"_"+tt.price, func(t *testing.T) {
			e, _ := newEvaluator(t)
			_, err := e.AddWatch(context.Background(), wallet, "SOL/USDC", dec("100"), tt.cond)
			require.NoError(t, err)

			triggers := collect(t, e, domain.PriceQuotes(map[string]decimal.Decimal{"SOL/USDC": dec(tt.price)}))
			if tt.fires {
				require.Len(t, triggers, 1)
				assert.Equal(t, domain.TriggerSourceWatchlist, triggers[0].Source)
				assert.True(t, triggers[0].Current.Equal(dec(tt.price)))
			} else {
				assert.Empty(t, triggers)
			}
		})
	}
}

func TestEvaluate_Alerts(t *testing.T) {
	e, users := newEvaluator(t)
	ctx := context.Background()

	price, err := e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypePrice, Pair: "SOL/USDC", Condition: domain.ConditionBelow, Value: dec("120")})
	require.NoError(t, err)
	volume, err := e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypeVolume, Pair: "SOL/USDC", Condition: domain.ConditionAbove, Value: dec("1000000")})
	require.NoError(t, err)
	pump, err := e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypePump, Pair: "BONK/USDC", Condition: domain.ConditionAbove, Value: dec("20")})
	require.NoError(t, err)
	inactive, err := e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypePrice, Pair: "SOL/USDC", Condition: domain.ConditionBelow, Value: dec("500")})
	require.NoError(t, err)
	_, err = e.SetAlertActive(ctx, wallet, inactive.ID, false)
	require.NoError(t, err)

	before, err := users.Get(ctx, wallet)
	require.NoError(t, err)

	quotes := domain.Quotes{
		"SOL/USDC": {
			Price:  decimal.NewNullDecimal(dec("110")),
			Volume: decimal.NewNullDecimal(dec("2500000")),
		},
		// No change percentage: the pump alert is skipped.
		"BONK/USDC": {Price: decimal.NewNullDecimal(dec("0.00002"))},
	}

	triggers := collect(t, e, quotes)
	require.Len(t, triggers, 2)
	assert.Equal(t, price.ID, triggers[0].AlertID)
	assert.Equal(t, volume.ID, triggers[1].AlertID)
	assert.True(t, triggers[1].Current.Equal(dec("2500000")))

	quotes["BONK/USDC"] = domain.Quote{Price: decimal.NewNullDecimal(dec("0.00002")), ChangePct: decimal.NewNullDecimal(dec("35.5"))}
	triggers = collect(t, e, quotes)
	require.Len(t, triggers, 3)
	assert.Equal(t, pump.ID, triggers[2].AlertID)
	assert.Equal(t, domain.AlertTypePump, triggers[2].AlertType)

	after, err := users.Get(ctx, wallet)
	require.NoError(t, err)
	assert.Equal(t, before.Version, after.Version, "evaluation must not write")
	for _, a := range after.Alerts {
		assert.Zero(t, a.TriggerCount)
	}
}

func TestEvaluate_LazyAndRestartable(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	for _, pair := range []string{"A/USDC", "B/USDC", "C/USDC"} {
		_, err := e.AddWatch(ctx, wallet, pair, dec("1"), domain.ConditionAbove)
		require.NoError(t, err)
	}
	quotes := domain.PriceQuotes(map[string]decimal.Decimal{
		"A/USDC": dec("2"), "B/USDC": dec("2"), "C/USDC": dec("2"),
	})

	seq, err := e.Evaluate(ctx, wallet, quotes)
	require.NoError(t, err)

	// Snapshot semantics: later changes are not observed.
	_, err = e.RemoveWatch(ctx, wallet, "B/USDC")
	require.NoError(t, err)
	delete(quotes, "C/USDC")

	var first []string
	for tr := range seq {
		first = append(first, tr.Pair)
		if len(first) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"A/USDC", "B/USDC"}, first)

	all := slices.Collect(seq)
	require.Len(t, all, 3)
	assert.Equal(t, "C/USDC", all[2].Pair)
}

func TestEvaluate_VolumeOnlyQuote(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	_, err := e.AddWatch(ctx, wallet, "SOL/USDC", dec("100"), domain.ConditionBelow)
	require.NoError(t, err)
	_, err = e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypePrice, Pair: "SOL/USDC", Condition: domain.ConditionBelow, Value: dec("50")})
	require.NoError(t, err)
	volume, err := e.CreateAlert(ctx, wallet, AlertRequest{Type: domain.AlertTypeVolume, Pair: "SOL/USDC", Condition: domain.ConditionAbove, Value: dec("1000")})
	require.NoError(t, err)

	// Without a price, the below-watch and the price alert must not read zero.
	triggers := collect(t, e, domain.Quotes{
		"SOL/USDC": {Volume: decimal.NewNullDecimal(dec("5000"))},
	})
	require.Len(t, triggers, 1)
	assert.Equal(t, volume.ID, triggers[0].AlertID)
	assert.Equal(t, domain.AlertTypeVolume, triggers[0].AlertType)
}

func TestEvaluate_RejectsNonPositivePrice(t *testing.T) {
	e, _ := newEvaluator(t)
	_, err := e.AddWatch(context.Background(), wallet, "SOL/USDC", dec("100"), domain.ConditionBelow)
	require.NoError(t, err)

	for _, price := range []string{"0", "-3"} {
		_, err := e.Evaluate(context.Background(), wallet, domain.PriceQuotes(map[string]decimal.Decimal{"SOL/USDC": dec(price)}))
		assert.ErrorIs(t, err, domain.ErrValidation, price)
	}
}

func TestEvaluate_UnknownUser(t *testing.T) {
	e, _ := newEvaluator(t)
	_, err := e.Evaluate(context.Background(), "nobody", domain.Quotes{})
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConcurrentAlertCreation(t *testing.T) {
	e, _ := newEvaluator(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.CreateAlert(ctx, wallet, AlertRequest{
				Type: domain.AlertTypePrice, Pair: "SOL/USDC", Condition: domain.ConditionAbove, Value: dec("1"),
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	alerts, err := e.Alerts(ctx, wallet)
	require.NoError(t, err)
	assert.Len(t, alerts, 30)
}
