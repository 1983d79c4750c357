package services

import (
	"context"
	"strconv"

	"vpsBack/internal/models"
	"vpsBack/internal/pay"
)

const DefaultGatewaySuccessStatus = "TRADE_SUCCESS"

// PaymentRail carries the rail-specific settlement rules the engine needs.
type PaymentRail interface {
	Tag() models.RailTag
	// Paid maps the rail's external status to a paid signal.
	Paid(status string) bool
	// ExclusiveExternalID reports whether one external id may settle only one order,
	// which the engine checks before granting.
	ExclusiveExternalID() bool
}

// Confirmation is a verified statement from a rail about one of our orders.
type Confirmation struct {
	TradeID         string
	ExternalTradeID string
	Status          string
}

// GatewayRail is the redirect/query gateway.
type GatewayRail struct {
	gateway       *pay.Gateway
	verifier      *pay.CallbackVerifier
	successStatus string
}

func NewGatewayRail(gateway *pay.Gateway, verifier *pay.CallbackVerifier, successStatus string) *GatewayRail {
	if successStatus == "" {
		successStatus = DefaultGatewaySuccessStatus
	}
	return &GatewayRail{gateway: gateway, verifier: verifier, successStatus: successStatus}
}

func (r *GatewayRail) Tag() models.RailTag { return models.RailGateway }

func (r *GatewayRail) Paid(status string) bool { return status == r.successStatus }

func (r *GatewayRail) ExclusiveExternalID() bool { return false }

func (r *GatewayRail) BuildArtifact(order models.Order, product models.Product, format models.OutputFormat, qr pay.QROptions) (pay.Artifact, error) {
	return r.gateway.Build(pay.PaymentRequest{
		TradeID: order.TradeID,
		Amount:  order.Amount,
		Subject: product.Subject(),
		Body:    product.Body(),
	}, format, qr)
}

// VerifyConfirmation checks a notify/return payload and extracts the confirmation.
func (r *GatewayRail) VerifyConfirmation(params map[string]string) (Confirmation, error) {
	if err := r.verifier.Verify(params); err != nil {
		return Confirmation{}, err
	}
	return Confirmation{
		TradeID:         params["out_trade_no"],
		ExternalTradeID: params["trade_no"],
		Status:          params["trade_status"],
	}, nil
}

// ReceiptVerifier checks an in-app receipt with the platform.
type ReceiptVerifier interface {
	Verify(ctx context.Context, receipt, transactionID string, env models.ReceiptEnvironment) (models.VerificationResult, error)
}

// InAppRail is the mobile in-app purchase rail. Status is the verifier status code.
type InAppRail struct {
	receipts ReceiptVerifier
}

func NewInAppRail(receipts ReceiptVerifier) *InAppRail {
	return &InAppRail{receipts: receipts}
}

func (r *InAppRail) Tag() models.RailTag { return models.RailInApp }

func (r *InAppRail) Paid(status string) bool {
	code, err := strconv.Atoi(status)
	return err == nil && code == models.ReceiptStatusVerified
}

func (r *InAppRail) ExclusiveExternalID() bool { return true }

// VerifyReceipt submits the receipt. A rejected or unreachable verifier is a *models.ReceiptError.
func (r *InAppRail) VerifyReceipt(ctx context.Context, receipt, transactionID string, env models.ReceiptEnvironment) (models.VerificationResult, error) {
	res, err := r.receipts.Verify(ctx, receipt, transactionID, env)
	if err != nil {
		return res, &models.ReceiptError{Status: models.ReceiptStatusNoMatch, Err: err}
	}
	if !res.Verified() {
		return res, &models.ReceiptError{Status: res.Status}
	}
	return res, nil
}

// Confirm turns a verified receipt into a confirmation for tradeID.
func (r *InAppRail) Confirm(tradeID string, res models.VerificationResult) Confirmation {
	return Confirmation{
		TradeID:         tradeID,
		ExternalTradeID: res.Item.TransactionID,
		Status:          strconv.Itoa(res.Status),
	}
}
