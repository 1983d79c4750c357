package fsm

import (
	"context"
	"database/sql"
	"errors"

	"vpsBack/internal/models"
)

var transitions = map[models.OrderStatus]map[models.OrderStatus]struct{}{
	models.OrderStatusPending: {
		models.OrderStatusSuccess: {},
		models.OrderStatusUnpaid:  {},
	},
	models.OrderStatusSuccess: {},
	models.OrderStatusUnpaid:  {},
}

// ErrInvalidTransition is returned by Apply for a move the table does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition returns whether an order can move from the current status to the target status.
func CanTransition(from, to models.OrderStatus) bool {
	if from == to {
		return true
	}
	allowed, ok := transitions[from]
	if !ok {
		return false
	}
	_, ok = allowed[to]
	return ok
}

// Change describes one conditional status update.
type Change struct {
	TradeID    string
	From       models.OrderStatus
	To         models.OrderStatus
	ExternalID string
	// SettleKey is written only when To is SUCCESS. Empty leaves the column NULL.
	SettleKey string
}

// Apply updates an order status using optimistic validation. Zero affected rows
// means the order was not in c.From and sql.ErrNoRows is returned.
func Apply(ctx context.Context, tx *sql.Tx, c Change) error {
	if c.From == c.To || !CanTransition(c.From, c.To) {
		return ErrInvalidTransition
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE orders SET status = ?, out_trade_no = ?, settle_key = ?, updated_at = CURRENT_TIMESTAMP WHERE trade_no = ? AND status = ?`,
		c.To, nullable(c.ExternalID), nullable(c.SettleKey), c.TradeID, c.From,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
