package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentSettled is published after an order reaches SUCCESS and the benefit is credited.
type PaymentSettled struct {
	TradeID         string          `json:"trade_no"`
	ExternalTradeID string          `json:"out_trade_no"`
	Rail            string          `json:"rail"`
	UserID          int             `json:"user_id"`
	ProductID       int             `json:"product_id"`
	Amount          decimal.Decimal `json:"amount"`
	GrantedSeconds  int             `json:"granted_seconds"`
	SettledAt       time.Time       `json:"settled_at"`
}
