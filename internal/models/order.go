package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is the lifecycle state of an order row.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "PENDING"
	OrderStatusSuccess OrderStatus = "SUCCESS"
	OrderStatusUnpaid  OrderStatus = "UNPAID"
)

// Terminal reports whether no further transition is allowed out of s.
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusSuccess || s == OrderStatusUnpaid
}

// Order is one purchase attempt. TradeID is ours, ExternalTradeID belongs to the payment rail.
type Order struct {
	ID              int64           `json:"id"`
	TradeID         string          `json:"trade_no"`
	ExternalTradeID string          `json:"out_trade_no,omitempty"`
	UserID          int             `json:"user_id"`
	ProductID       int             `json:"product_id"`
	Amount          decimal.Decimal `json:"amount"`
	Status          OrderStatus     `json:"status"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Order log entry kinds.
const (
	OrderLogSubmit = "submit"
	OrderLogNotify = "notify"
	OrderLogReturn = "return"
)

// OrderLogEntry is an append-only record of something that happened to a trade id.
type OrderLogEntry struct {
	ID        int64           `json:"id"`
	LogID     string          `json:"log_id"`
	TradeID   string          `json:"trade_no"`
	Kind      string          `json:"kind"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}
