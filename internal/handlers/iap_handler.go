package handlers

import (
	"net/http"
	"strings"

	"vpsBack/internal/models"
	"vpsBack/internal/services"
)

// VerifyInAppPurchase handles POST /pay/in-app-purchase-verify.
func (h *PayHandler) VerifyInAppPurchase(w http.ResponseWriter, r *http.Request) {
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
	receipt := strings.TrimSpace(fields["receipt"])
	if receipt == "" {
		writeCode(w, CodeParamError, "receipt is required", nil)
		return
	}

	out, err := h.Service.VerifyInApp(r.Context(), services.InAppRequest{
		UserID:        uid,
		ProductID:     productID,
		Receipt:       receipt,
		TransactionID: strings.TrimSpace(fields["transaction_id"]),
		Environment:   models.ParseReceiptEnvironment(fields["environment"]),
	})
	if err != nil {
		h.logFailure(err, "in-app verify")
		writeError(w, err)
		return
	}
	writeOK(w, map[string]any{"trade_no": out.TradeID, "status": out.Status, "granted_seconds": out.GrantedSeconds})
}
