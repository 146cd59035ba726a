package api

import (
	"time"

	"github.com/shopspring/decimal"

	"solana-wallet-tracker/internal/domain"
)

type registerRequest struct {
	WalletAddress string `json:"walletAddress" validate:"required"`
}

type profileRequest struct {
	Email              *string `json:"email" validate:"omitempty,email"`
	ProfileImage       *string `json:"profileImage" validate:"omitempty,url"`
	EmailNotifications *bool   `json:"emailNotifications"`
	PriceAlerts        *bool   `json:"priceAlerts"`
}

type submitRequest struct {
	Sender    string          `json:"sender" validate:"required"`
	Recipient string          `json:"recipient" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Signature string          `json:"signature" validate:"required"`
	Token     string          `json:"token"`
}

type historyResponse struct {
	Transactions []*domain.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

// statusResponse carries the reconcile result and, on a ledger outage, the reason.
type statusResponse struct {
	Signature string               `json:"signature"`
	DBStatus  domain.TxStatus      `json:"dbStatus"`
	Network   domain.NetworkStatus `json:"networkStatus"`
	Settled   bool                 `json:"settled,omitempty"`
	Error     string               `json:"error,omitempty"`
}

type settleRequest struct {
	Status domain.TxStatus `json:"status" validate:"omitempty,oneof=pending confirmed failed"`
}

type tradeRequest struct {
	Success   *bool           `json:"success" validate:"required"`
	TradeType string          `json:"tradeType" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	Pair      string          `json:"pair"`
	Token     string          `json:"token"`
}

type watchRequest struct {
	Pair        string           `json:"pair" validate:"required"`
	TargetPrice decimal.Decimal  `json:"targetPrice"`
	Condition   domain.Condition `json:"condition" validate:"omitempty,oneof=above below"`
}

type alertRequest struct {
	Type      domain.AlertType `json:"type" validate:"required,oneof=price volume pump"`
	Pair      string           `json:"pair" validate:"required"`
	Condition domain.Condition `json:"condition" validate:"required,oneof=above below"`
	Value     decimal.Decimal  `json:"value"`
}

type alertPatchRequest struct {
	Type      *domain.AlertType `json:"type" validate:"omitempty,oneof=price volume pump"`
	Pair      *string           `json:"pair" validate:"omitempty,min=1"`
	Condition *domain.Condition `json:"condition" validate:"omitempty,oneof=above below"`
	Value     *decimal.Decimal  `json:"value"`
	Active    *bool             `json:"active"`
}

type triggerRequest struct {
	At *time.Time `json:"at"`
}

// evaluateRequest accepts either full quotes or a plain price map. Quotes win
// for a pair present in both.
type evaluateRequest struct {
	Prices map[string]decimal.Decimal `json:"prices"`
	Quotes domain.Quotes              `json:"quotes"`
}

type evaluateResponse struct {
	Triggers []domain.Trigger `json:"triggers"`
}
