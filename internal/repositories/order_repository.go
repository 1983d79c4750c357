package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"

	"vpsBack/internal/fsm"
	"vpsBack/internal/models"
	"vpsBack/internal/tradeno"
)

const mysqlDuplicateEntry = 1062

// GrantFunc runs inside the settlement transaction after the status update succeeded.
type GrantFunc func(ctx context.Context, tx *sql.Tx) error

// SettleRequest moves one order out of PENDING.
type SettleRequest struct {
	TradeID    string
	ExternalID string
	To         models.OrderStatus
	Rail       models.RailTag
}

// SettleResult reports what the ledger did. Applied is false when the order had
// already left PENDING; Status is then its current status.
type SettleResult struct {
	Applied bool
	Status  models.OrderStatus
}

type OrderRepository struct {
	DB *sql.DB
}

func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{DB: db}
}

const orderColumns = `id, trade_no, COALESCE(out_trade_no, ''), user_id, product_id, amount, status, created_at, updated_at`

func scanOrder(scanner interface{ Scan(dest ...any) error }) (models.Order, error) {
	var o models.Order
	err := scanner.Scan(&o.ID, &o.TradeID, &o.ExternalTradeID, &o.UserID, &o.ProductID, &o.Amount, &o.Status, &o.CreatedAt, &o.UpdatedAt)
	return o, err
}

// CreateOrder inserts a PENDING order. A duplicate trade id means the generator is broken.
func (r *OrderRepository) CreateOrder(ctx context.Context, tradeID string, userID, productID int, amount decimal.Decimal) (models.Order, error) {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO orders (trade_no, user_id, product_id, amount, status) VALUES (?, ?, ?, ?, ?)`,
		tradeID, userID, productID, amount, models.OrderStatusPending,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return models.Order{}, fmt.Errorf("create order %s: %w", tradeID, models.ErrDuplicateTradeID)
		}
		return models.Order{}, fmt.Errorf("create order %s: %w", tradeID, err)
	}
	return r.FindByTradeID(ctx, tradeID)
}

func (r *OrderRepository) FindByTradeID(ctx context.Context, tradeID string) (models.Order, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE trade_no = ?`, tradeID)
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, models.ErrOrderNotFound
	}
	return o, err
}

// FindSettledByExternalID returns the SUCCESS order that consumed externalID on the given rail.
func (r *OrderRepository) FindSettledByExternalID(ctx context.Context, externalID string, rail models.RailTag) (models.Order, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE settle_key = ?`, SettleKey(rail, externalID))
	o, err := scanOrder(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Order{}, models.ErrOrderNotFound
	}
	return o, err
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID, limit int) ([]models.Order, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY id DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []models.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// UpdateOrder moves a PENDING order to status without granting anything.
func (r *OrderRepository) UpdateOrder(ctx context.Context, tradeID, externalID string, status models.OrderStatus) error {
	rail, err := tradeno.Rail(tradeID)
	if err != nil {
		return err
	}
	_, err = r.Settle(ctx, SettleRequest{TradeID: tradeID, ExternalID: externalID, To: status, Rail: rail}, nil)
	return err
}

// Settle runs the conditional status update and grant in one transaction. Only the
// caller whose update moved the row out of PENDING runs grant.
func (r *OrderRepository) Settle(ctx context.Context, req SettleRequest, grant GrantFunc) (SettleResult, error) {
	res, err := r.settle(ctx, req, grant)
	if isDuplicateEntry(err) {
		existing, findErr := r.FindSettledByExternalID(ctx, req.ExternalID, req.Rail)
		if findErr != nil {
			return SettleResult{}, fmt.Errorf("settle %s: %w", req.TradeID, models.ErrTransactionConflict)
		}
		return SettleResult{}, &models.ConflictError{TradeID: existing.TradeID}
	}
	return res, err
}

func (r *OrderRepository) settle(ctx context.Context, req SettleRequest, grant GrantFunc) (res SettleResult, err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return SettleResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		} else {
			err = tx.Commit()
		}
	}()

	change := fsm.Change{
		TradeID:    req.TradeID,
		From:       models.OrderStatusPending,
		To:         req.To,
		ExternalID: req.ExternalID,
	}
	if req.To == models.OrderStatusSuccess && req.ExternalID != "" {
		change.SettleKey = SettleKey(req.Rail, req.ExternalID)
	}

	switch applyErr := fsm.Apply(ctx, tx, change); {
	case applyErr == nil:
	case errors.Is(applyErr, sql.ErrNoRows):
		var current models.OrderStatus
		scanErr := tx.QueryRowContext(ctx, `SELECT status FROM orders WHERE trade_no = ?`, req.TradeID).Scan(&current)
		if errors.Is(scanErr, sql.ErrNoRows) {
			err = models.ErrOrderNotFound
			return SettleResult{}, err
		}
		if scanErr != nil {
			err = scanErr
			return SettleResult{}, err
		}
		return SettleResult{Applied: false, Status: current}, nil
	default:
		err = applyErr
		return SettleResult{}, err
	}

	if grant != nil {
		if err = grant(ctx, tx); err != nil {
			return SettleResult{}, err
		}
	}
	return SettleResult{Applied: true, Status: req.To}, nil
}

// SettleKey is the unique key that binds one external transaction to one settled order.
func SettleKey(rail models.RailTag, externalID string) string {
	return string(rail) + ":" + externalID
}

func isDuplicateEntry(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
