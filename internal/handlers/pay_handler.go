package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/sirupsen/logrus"

	"vpsBack/internal/models"
	"vpsBack/internal/pay"
	"vpsBack/internal/services"
)

// PaymentFlow is the part of services.PaymentService the HTTP layer drives.
type PaymentFlow interface {
	CreatePayment(ctx context.Context, userID, productID int, format models.OutputFormat, qr pay.QROptions) (pay.Artifact, models.Order, error)
	HandleNotify(ctx context.Context, params map[string]string) (services.Outcome, error)
	HandleReturn(ctx context.Context, params map[string]string) (map[string]string, error)
	VerifyInApp(ctx context.Context, req services.InAppRequest) (services.Outcome, error)
	GetOrder(ctx context.Context, userID int, tradeID string) (models.Order, error)
	ListOrders(ctx context.Context, userID int) ([]models.Order, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
}

type PayHandler struct {
	Service PaymentFlow
	Log     logrus.FieldLogger
}

func NewPayHandler(service PaymentFlow, log logrus.FieldLogger) *PayHandler {
	return &PayHandler{Service: service, Log: log}
}

// CreatePayment handles POST /pay/.
func (h *PayHandler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == 0 {
		writeCode(w, CodeUserNotExist, "", nil)
		return
	}
	fields, err := requestFields(r)
	if err != nil {
		writeCode(w, CodeParamError, "invalid body", nil)
		return
	}
	productID, err := intField(fields, "product_id", 0)
	if err != nil || productID <= 0 {
		writeCode(w, CodeProductNotExist, "", nil)
		return
	}
	format, err := models.ParseOutputFormat(strings.TrimSpace(fields["output_format"]))
	if err != nil {
		writeCode(w, CodeParamError, "unknown output_format", nil)
		return
	}
	size, err := intField(fields, "qr_size", pay.DefaultQRSize)
	if err != nil {
		writeCode(w, CodeParamError, "invalid qr_size", nil)
		return
	}
	margin, err := intField(fields, "qr_margin", pay.DefaultQRMargin)
	if err != nil {
		writeCode(w, CodeParamError, "invalid qr_margin", nil)
		return
	}

	art, order, err := h.Service.CreatePayment(r.Context(), uid, productID, format, pay.QROptions{Size: size, Margin: margin})
	if err != nil {
		h.logFailure(err, "create payment")
		writeError(w, err)
		return
	}
	if art.Body != nil {
		w.Header().Set("Content-Type", art.ContentType)
		w.Header().Set("X-Trade-No", order.TradeID)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(art.Body)
		return
	}
	writeOK(w, map[string]any{"trade_no": order.TradeID, "pay_info": art.Data})
}

// Notify handles the gateway callback. The body is the literal success or fail.
func (h *PayHandler) Notify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := r.ParseForm(); err != nil {
		_, _ = w.Write([]byte("fail"))
		return
	}
	params := flatten(r.PostForm)
	if len(params) == 0 {
		params = flatten(r.Form)
	}
	out, err := h.Service.HandleNotify(r.Context(), params)
	if err != nil {
		h.logFailure(err, "notify")
		_, _ = w.Write([]byte("fail"))
		return
	}
	h.Log.WithFields(logrus.Fields{"trade_no": out.TradeID, "status": out.Status, "granted": out.Granted}).Info("notify handled")
	_, _ = w.Write([]byte("success"))
}

// Return handles the browser redirect back from the gateway.
func (h *PayHandler) Return(w http.ResponseWriter, r *http.Request) {
	echo, err := h.Service.HandleReturn(r.Context(), flatten(r.URL.Query()))
	if errors.Is(err, models.ErrInvalidSignature) {
		h.logFailure(err, "return")
		writeCode(w, CodeParamError, "", nil)
		return
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeOK(w, echo)
}

// GetOrder handles GET /pay/order/:trade_no.
func (h *PayHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == 0 {
		writeCode(w, CodeUserNotExist, "", nil)
		return
	}
	tradeID := getParam(r, "trade_no")
	if tradeID == "" {
		writeCode(w, CodeParamError, "trade_no is required", nil)
		return
	}
	order, err := h.Service.GetOrder(r.Context(), uid, tradeID)
	if err != nil {
		h.logFailure(err, "get order")
		writeError(w, err)
		return
	}
	writeOK(w, order)
}

// ListOrders handles GET /pay/orders.
func (h *PayHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == 0 {
		writeCode(w, CodeUserNotExist, "", nil)
		return
	}
	orders, err := h.Service.ListOrders(r.Context(), uid)
	if err != nil {
		h.logFailure(err, "list orders")
		writeError(w, err)
		return
	}
	if orders == nil {
		orders = []models.Order{}
	}
	writeOK(w, orders)
}

// ListProducts handles GET /pay/products.
func (h *PayHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.ListProducts(r.Context())
	if err != nil {
		h.logFailure(err, "list products")
		writeError(w, err)
		return
	}
	if products == nil {
		products = []models.Product{}
	}
	writeOK(w, products)
}

// logFailure logs consistency faults loudly and expected rejections quietly.
func (h *PayHandler) logFailure(err error, op string) {
	entry := h.Log.WithError(err).WithField("op", op)
	switch {
	case errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrDuplicateTradeID),
		errors.Is(err, models.ErrProductMissing):
		entry.Error("payment consistency fault")
	case errors.Is(err, models.ErrInvalidSignature),
		errors.Is(err, models.ErrTransactionConflict),
		errors.Is(err, models.ErrReceiptInvalid),
		errors.Is(err, models.ErrProductNotFound),
		errors.Is(err, models.ErrUserNotFound):
		entry.Warn("payment request rejected")
	default:
		entry.Error("payment request failed")
	}
}
