package watch

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"solana-wallet-tracker/internal/domain"
)

// AlertRequest describes a new alert.
type AlertRequest struct {
	Type      domain.AlertType
	Pair      string
	Condition domain.Condition
	Value     decimal.Decimal
}

// AlertPatch lists the fields of an alert to change; nil fields are kept.
type AlertPatch struct {
	Type      *domain.AlertType
	Pair      *string
	Condition *domain.Condition
	Value     *decimal.Decimal
	Active    *bool
}

func validateAlert(t domain.AlertType, pair string, cond domain.Condition, value decimal.Decimal) error {
	switch {
	case !t.Valid():
		return domain.Validationf("unknown alert type %q", t)
	case pair == "":
		return domain.Validationf("pair is required")
	case !cond.Valid():
		return domain.Validationf("unknown condition %q", cond)
	case !value.IsPositive():
		return domain.Validationf("alert value must be positive, got %s", value)
	}
	return nil
}

// CreateAlert adds an active alert with a fresh ID.
func (e *Evaluator) CreateAlert(ctx context.Context, wallet string, req AlertRequest) (*domain.Alert, error) {
	if err := validateAlert(req.Type, req.Pair, req.Condition, req.Value); err != nil {
		return nil, err
	}

	alert := domain.Alert{
		ID:        uuid.NewString(),
		Type:      req.Type,
		Pair:      req.Pair,
		Condition: req.Condition,
		Value:     req.Value,
		Active:    true,
		CreatedAt: e.now(),
	}
	_, err := e.mutate(ctx, wallet, func(u *domain.User) error {
		u.Alerts = append(u.Alerts, alert)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &alert, nil
}

// UpdateAlert applies patch to the alert with id. The result is validated
// as a whole before anything is written.
func (e *Evaluator) UpdateAlert(ctx context.Context, wallet, id string, patch AlertPatch) (*domain.Alert, error) {
	var updated domain.Alert
	_, err := e.mutate(ctx, wallet, func(u *domain.User) error {
		i := u.FindAlert(id)
		if i < 0 {
			return fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
		}
		a := u.Alerts[i]
		if patch.Type != nil {
			a.Type = *patch.Type
		}
		if patch.Pair != nil {
			a.Pair = *patch.Pair
		}
		if patch.Condition != nil {
			a.Condition = *patch.Condition
		}
		if patch.Value != nil {
			a.Value = *patch.Value
		}
		if patch.Active != nil {
			a.Active = *patch.Active
		}
		if err := validateAlert(a.Type, a.Pair, a.Condition, a.Value); err != nil {
			return err
		}
		u.Alerts[i] = a
		updated = a
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SetAlertActive turns an alert on or off.
func (e *Evaluator) SetAlertActive(ctx context.Context, wallet, id string, active bool) (*domain.Alert, error) {
	return e.UpdateAlert(ctx, wallet, id, AlertPatch{Active: &active})
}

// DeleteAlert removes the alert with id.
func (e *Evaluator) DeleteAlert(ctx context.Context, wallet, id string) error {
	_, err := e.mutate(ctx, wallet, func(u *domain.User) error {
		if u.FindAlert(id) < 0 {
			return fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
		}
		u.Alerts = slices.DeleteFunc(u.Alerts, func(a domain.Alert) bool { return a.ID == id })
		return nil
	})
	return err
}

// Alerts returns the user's alerts in creation order.
func (e *Evaluator) Alerts(ctx context.Context, wallet string) ([]domain.Alert, error) {
	u, err := e.get(ctx, wallet)
	if err != nil {
		return nil, err
	}
	return u.Alerts, nil
}

// RecordTrigger persists that an alert fired at the given time. The alert
// stays active; deactivating it is a separate user decision.
func (e *Evaluator) RecordTrigger(ctx context.Context, wallet, id string, at time.Time) (*domain.Alert, error) {
	if at.IsZero() {
		at = e.now()
	}

	var fired domain.Alert
	_, err := e.mutate(ctx, wallet, func(u *domain.User) error {
		i := u.FindAlert(id)
		if i < 0 {
			return fmt.Errorf("alert %s: %w", id, domain.ErrNotFound)
		}
		ts := at
		u.Alerts[i].LastTriggeredAt = &ts
		u.Alerts[i].TriggerCount++
		fired = u.Alerts[i]
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.metrics.RecordTrigger(string(domain.TriggerSourceAlert))
	return &fired, nil
}
