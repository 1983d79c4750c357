package repositories

import (
	"context"
	"database/sql"

	"vpsBack/internal/models"
)

// OrderLogRepository stores the append-only audit trail per trade id.
type OrderLogRepository struct {
	DB *sql.DB
}

func NewOrderLogRepository(db *sql.DB) *OrderLogRepository {
	return &OrderLogRepository{DB: db}
}

func (r *OrderLogRepository) Append(ctx context.Context, entry models.OrderLogEntry) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO order_logs (log_id, trade_no, kind, payload) VALUES (?, ?, ?, ?)`,
		entry.LogID, entry.TradeID, entry.Kind, []byte(entry.Payload),
	)
	return err
}
