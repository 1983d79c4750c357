package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"vpsBack/internal/audit"
	"vpsBack/internal/models"
	"vpsBack/internal/pay"
	"vpsBack/internal/tradeno"
)

type UserLookup interface {
	GetUserByID(ctx context.Context, id int) (models.User, error)
}

// ProductStore is the catalog plus the listing the product endpoint needs.
type ProductStore interface {
	ProductCatalog
	List(ctx context.Context) ([]models.Product, error)
}

type TradeIDGenerator interface {
	New(tag models.RailTag, userID int) string
}

// PaymentService is the entry point for both rails.
type PaymentService struct {
	Orders   OrderLedger
	Products ProductStore
	Users    UserLookup
	IDs      TradeIDGenerator
	Gateway  *GatewayRail
	InApp    *InAppRail
	Engine   *ReconcileEngine
	Audit    *audit.Recorder
	Log      logrus.FieldLogger
}

// CreatePayment records a PENDING order and returns the gateway artifact for it.
// The order exists before the artifact is built so a lost response can be retried.
func (s *PaymentService) CreatePayment(ctx context.Context, userID, productID int, format models.OutputFormat, qr pay.QROptions) (pay.Artifact, models.Order, error) {
	if _, err := s.Users.GetUserByID(ctx, userID); err != nil {
		return pay.Artifact{}, models.Order{}, err
	}
	product, err := s.Products.GetByID(ctx, productID)
	if err != nil {
		return pay.Artifact{}, models.Order{}, err
	}

	tradeID := s.IDs.New(models.RailGateway, userID)
	order, err := s.Orders.CreateOrder(ctx, tradeID, userID, productID, product.PayAmount())
	if err != nil {
		if errors.Is(err, models.ErrDuplicateTradeID) {
			s.Log.WithField("trade_no", tradeID).Error("trade id collision")
		}
		return pay.Artifact{}, models.Order{}, err
	}

	art, err := s.Gateway.BuildArtifact(order, product, format, qr)
	if err != nil {
		return pay.Artifact{}, order, fmt.Errorf("build %s artifact: %w", format, err)
	}
	s.Audit.Order(ctx, order.TradeID, models.OrderLogSubmit, map[string]any{
		"format": format,
		"params": art.Params,
	})
	s.Log.WithFields(logrus.Fields{"trade_no": order.TradeID, "user_id": userID, "amount": order.Amount.StringFixed(2), "format": format}).Info("payment created")
	return art, order, nil
}

// HandleNotify processes a gateway server-to-server notification.
func (s *PaymentService) HandleNotify(ctx context.Context, params map[string]string) (Outcome, error) {
	s.Audit.Day(audit.CategoryPayNotify, params)

	c, err := s.Gateway.VerifyConfirmation(params)
	if err != nil {
		s.Log.WithError(err).WithField("out_trade_no", params["out_trade_no"]).Warn("notify rejected")
		return Outcome{}, err
	}
	rail, err := tradeno.Rail(c.TradeID)
	if err != nil {
		return Outcome{}, err
	}
	if rail != models.RailGateway {
		return Outcome{}, fmt.Errorf("notify for %s order: %w", rail.Name(), models.ErrUnknownRail)
	}
	s.Audit.Order(ctx, c.TradeID, models.OrderLogNotify, params)

	return s.Engine.Reconcile(ctx, s.Gateway, c)
}

// HandleReturn verifies a browser return redirect. It never changes order state.
func (s *PaymentService) HandleReturn(ctx context.Context, params map[string]string) (map[string]string, error) {
	c, err := s.Gateway.VerifyConfirmation(params)
	if err != nil {
		return nil, err
	}
	s.Audit.Order(ctx, c.TradeID, models.OrderLogReturn, params)
	return params, nil
}

// InAppRequest is a client-submitted receipt for productID.
type InAppRequest struct {
	UserID        int
	ProductID     int
	Receipt       string
	TransactionID string
	Environment   models.ReceiptEnvironment
}

// VerifyInApp checks the receipt, refuses already consumed transactions and settles
// a fresh in-app order for it.
func (s *PaymentService) VerifyInApp(ctx context.Context, req InAppRequest) (Outcome, error) {
	log := s.Log.WithFields(logrus.Fields{"user_id": req.UserID, "product_id": req.ProductID, "transaction_id": req.TransactionID})

	product, err := s.Products.GetByID(ctx, req.ProductID)
	if err != nil {
		return Outcome{}, err
	}

	res, err := s.InApp.VerifyReceipt(ctx, req.Receipt, req.TransactionID, req.Environment)
	s.Audit.Day(audit.CategoryInAppReceiptVerify, map[string]any{
		"user_id":        req.UserID,
		"product_id":     req.ProductID,
		"transaction_id": req.TransactionID,
		"environment":    req.Environment,
		"status":         res.Status,
		"response":       res.Raw,
	})
	if err != nil {
		log.WithError(err).Warn("receipt rejected")
		return Outcome{}, err
	}
	if product.AppleProductID != "" && res.Item.ProductID != product.AppleProductID {
		log.WithField("receipt_product", res.Item.ProductID).Warn("receipt is for another product")
		return Outcome{}, &models.ReceiptError{Status: models.ReceiptStatusNoMatch, Reason: "product mismatch"}
	}

	prior, err := s.Orders.FindSettledByExternalID(ctx, res.Item.TransactionID, models.RailInApp)
	switch {
	case err == nil:
		log.WithField("prior_trade_no", prior.TradeID).Warn("transaction already consumed")
		return Outcome{}, &models.ConflictError{TradeID: prior.TradeID}
	case !errors.Is(err, models.ErrOrderNotFound):
		return Outcome{}, err
	}

	tradeID := s.IDs.New(models.RailInApp, req.UserID)
	order, err := s.Orders.CreateOrder(ctx, tradeID, req.UserID, req.ProductID, product.PayAmount())
	if err != nil {
		return Outcome{}, err
	}
	s.Audit.Order(ctx, order.TradeID, models.OrderLogSubmit, map[string]any{
		"transaction_id": res.Item.TransactionID,
		"product_id":     res.Item.ProductID,
		"environment":    req.Environment,
	})
	return s.Engine.Reconcile(ctx, s.InApp, s.InApp.Confirm(order.TradeID, res))
}

// GetOrder returns one of the user's orders.
func (s *PaymentService) GetOrder(ctx context.Context, userID int, tradeID string) (models.Order, error) {
	order, err := s.Orders.FindByTradeID(ctx, tradeID)
	if err != nil {
		return models.Order{}, err
	}
	if order.UserID != userID {
		return models.Order{}, models.ErrOrderNotFound
	}
	return order, nil
}

func (s *PaymentService) ListOrders(ctx context.Context, userID int) ([]models.Order, error) {
	return s.Orders.ListByUser(ctx, userID, 50)
}

func (s *PaymentService) ListProducts(ctx context.Context) ([]models.Product, error) {
	return s.Products.List(ctx)
}
