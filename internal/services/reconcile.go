package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"vpsBack/internal/models"
	"vpsBack/internal/repositories"
)

// OrderLedger is the persisted order state.
type OrderLedger interface {
	CreateOrder(ctx context.Context, tradeID string, userID, productID int, amount decimal.Decimal) (models.Order, error)
	FindByTradeID(ctx context.Context, tradeID string) (models.Order, error)
	FindSettledByExternalID(ctx context.Context, externalID string, rail models.RailTag) (models.Order, error)
	Settle(ctx context.Context, req repositories.SettleRequest, grant repositories.GrantFunc) (repositories.SettleResult, error)
	ListByUser(ctx context.Context, userID, limit int) ([]models.Order, error)
}

type ProductCatalog interface {
	GetByID(ctx context.Context, id int) (models.Product, error)
}

// AccountCrediter adds purchased time to a user inside the settlement transaction.
type AccountCrediter interface {
	CreditTime(ctx context.Context, tx *sql.Tx, userID int, seconds int) error
}

type SettledMarker interface {
	MarkSettled(ctx context.Context, tradeID string) error
	IsSettled(ctx context.Context, tradeID string) (bool, error)
}

type SettlementPublisher interface {
	PublishSettled(ctx context.Context, ev models.PaymentSettled) error
}

// Outcome is what a reconciliation did to an order.
type Outcome struct {
	TradeID string
	Status  models.OrderStatus
	// Granted is true only for the call that moved the order to SUCCESS.
	Granted        bool
	GrantedSeconds int
}

// ReconcileEngine applies verified confirmations to the ledger. Marker and
// publisher are optional and never decide anything on their own.
type ReconcileEngine struct {
	orders    OrderLedger
	products  ProductCatalog
	accounts  AccountCrediter
	marker    SettledMarker
	publisher SettlementPublisher
	log       logrus.FieldLogger
	now       func() time.Time
}

func NewReconcileEngine(orders OrderLedger, products ProductCatalog, accounts AccountCrediter, marker SettledMarker, publisher SettlementPublisher, log logrus.FieldLogger) *ReconcileEngine {
	return &ReconcileEngine{
		orders:    orders,
		products:  products,
		accounts:  accounts,
		marker:    marker,
		publisher: publisher,
		log:       log,
		now:       time.Now,
	}
}

// Reconcile settles the order named by c. It credits the product benefit at most
// once per order, however many times the same confirmation arrives.
func (e *ReconcileEngine) Reconcile(ctx context.Context, rail PaymentRail, c Confirmation) (Outcome, error) {
	log := e.log.WithFields(logrus.Fields{"trade_no": c.TradeID, "rail": rail.Tag().Name(), "out_trade_no": c.ExternalTradeID})
	paid := rail.Paid(c.Status)

	if paid && e.marker != nil {
		settled, err := e.marker.IsSettled(ctx, c.TradeID)
		if err != nil {
			log.WithError(err).Warn("settled marker lookup failed")
		} else if settled {
			log.Debug("order already settled (marker)")
			return Outcome{TradeID: c.TradeID, Status: models.OrderStatusSuccess}, nil
		}
	}

	order, err := e.orders.FindByTradeID(ctx, c.TradeID)
	if err != nil {
		if errors.Is(err, models.ErrOrderNotFound) {
			log.Error("confirmation for unknown order")
		}
		return Outcome{}, err
	}

	if rail.ExclusiveExternalID() && c.ExternalTradeID != "" {
		prior, err := e.orders.FindSettledByExternalID(ctx, c.ExternalTradeID, rail.Tag())
		switch {
		case err == nil && prior.TradeID != order.TradeID:
			log.WithField("prior_trade_no", prior.TradeID).Warn("external transaction already consumed")
			return Outcome{}, &models.ConflictError{TradeID: prior.TradeID}
		case err != nil && !errors.Is(err, models.ErrOrderNotFound):
			return Outcome{}, err
		}
	}

	if order.Status.Terminal() {
		log.WithField("status", order.Status).Info("order already settled, nothing to do")
		return Outcome{TradeID: order.TradeID, Status: order.Status}, nil
	}

	if !paid {
		res, err := e.orders.Settle(ctx, repositories.SettleRequest{
			TradeID: order.TradeID, ExternalID: c.ExternalTradeID, To: models.OrderStatusUnpaid, Rail: rail.Tag(),
		}, nil)
		if err != nil {
			return Outcome{}, err
		}
		log.WithField("status", res.Status).Info("order not paid")
		return Outcome{TradeID: order.TradeID, Status: res.Status}, nil
	}

	product, err := e.products.GetByID(ctx, order.ProductID)
	if err != nil {
		if errors.Is(err, models.ErrProductNotFound) {
			log.WithField("product_id", order.ProductID).Error("product vanished before settlement")
			return Outcome{}, fmt.Errorf("%w: product %d", models.ErrProductMissing, order.ProductID)
		}
		return Outcome{}, err
	}
	seconds := product.BenefitSeconds()

	res, err := e.orders.Settle(ctx, repositories.SettleRequest{
		TradeID: order.TradeID, ExternalID: c.ExternalTradeID, To: models.OrderStatusSuccess, Rail: rail.Tag(),
	}, func(ctx context.Context, tx *sql.Tx) error {
		return e.accounts.CreditTime(ctx, tx, order.UserID, seconds)
	})
	if err != nil {
		var conflict *models.ConflictError
		if errors.As(err, &conflict) {
			log.WithField("prior_trade_no", conflict.TradeID).Warn("external transaction settled concurrently")
		}
		return Outcome{}, err
	}
	if !res.Applied {
		log.WithField("status", res.Status).Info("order settled concurrently, no grant")
		return Outcome{TradeID: order.TradeID, Status: res.Status}, nil
	}

	log.WithFields(logrus.Fields{"user_id": order.UserID, "seconds": seconds}).Info("order settled")
	e.afterSettle(ctx, log, rail, order, c, seconds)
	return Outcome{TradeID: order.TradeID, Status: models.OrderStatusSuccess, Granted: true, GrantedSeconds: seconds}, nil
}

func (e *ReconcileEngine) afterSettle(ctx context.Context, log logrus.FieldLogger, rail PaymentRail, order models.Order, c Confirmation, seconds int) {
	if e.marker != nil {
		if err := e.marker.MarkSettled(ctx, order.TradeID); err != nil {
			log.WithError(err).Warn("settled marker not written")
		}
	}
	if e.publisher != nil {
		ev := models.PaymentSettled{
			TradeID:         order.TradeID,
			ExternalTradeID: c.ExternalTradeID,
			Rail:            rail.Tag().Name(),
			UserID:          order.UserID,
			ProductID:       order.ProductID,
			Amount:          order.Amount,
			GrantedSeconds:  seconds,
			SettledAt:       e.now(),
		}
		if err := e.publisher.PublishSettled(ctx, ev); err != nil {
			log.WithError(err).Warn("settlement event not published")
		}
	}
}
