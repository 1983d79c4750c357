package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"vpsBack/internal/models"
)

// API codes returned in the envelope.
const (
	CodeSuccess             = 200
	CodeParamError          = 10001
	CodeUserNotExist        = 10004
	CodeProductNotExist     = 10015
	CodeOrderVerifyError    = 10017
	CodeTransactionNotExist = 10018
	CodeTransactionConflict = 10019
	CodeInternalError       = 500
)

var codeMessages = map[int]string{
	CodeSuccess:             "SUCCESS",
	CodeParamError:          "PARAM_ERROR",
	CodeUserNotExist:        "USER_NOT_EXIST",
	CodeProductNotExist:     "PRODUCT_NOT_EXIST",
	CodeOrderVerifyError:    "ORDER_VERIFY_ERROR",
	CodeTransactionNotExist: "TRANSACTION_NOT_EXIST",
	CodeTransactionConflict: "TRANSACTION_CONFLICT",
	CodeInternalError:       "INTERNAL_ERROR",
}

type envelope struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data"`
}

type ctxKey string

// UserIDKey is the request context key holding the authenticated user id.
const UserIDKey ctxKey = "user_id"

func userID(r *http.Request) int {
	id, _ := r.Context().Value(UserIDKey).(int)
	return id
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, envelope{Code: CodeSuccess, Msg: codeMessages[CodeSuccess], Data: data})
}

// WriteCode writes the envelope for code. An empty msg uses the code's name.
func WriteCode(w http.ResponseWriter, code int, msg string, data any) {
	writeCode(w, code, msg, data)
}

func writeCode(w http.ResponseWriter, code int, msg string, data any) {
	status := http.StatusOK
	if code == CodeInternalError {
		status = http.StatusInternalServerError
	}
	if msg == "" {
		msg = codeMessages[code]
	}
	writeJSON(w, status, envelope{Code: code, Msg: msg, Data: data})
}

// writeError maps a service error to its API code.
func writeError(w http.ResponseWriter, err error) {
	var conflict *models.ConflictError
	var receipt *models.ReceiptError
	switch {
	case errors.As(err, &conflict):
		writeCode(w, CodeTransactionConflict, "", map[string]string{"trade_no": conflict.TradeID})
	case errors.Is(err, models.ErrTransactionConflict):
		writeCode(w, CodeTransactionConflict, "", nil)
	case errors.As(err, &receipt):
		writeCode(w, CodeOrderVerifyError, fmt.Sprintf("%s, status:%d", codeMessages[CodeOrderVerifyError], receipt.Status), nil)
	case errors.Is(err, models.ErrInvalidSignature):
		writeCode(w, CodeOrderVerifyError, "", nil)
	case errors.Is(err, models.ErrUserNotFound):
		writeCode(w, CodeUserNotExist, "", nil)
	case errors.Is(err, models.ErrProductNotFound):
		writeCode(w, CodeProductNotExist, "", nil)
	case errors.Is(err, models.ErrOrderNotFound):
		writeCode(w, CodeTransactionNotExist, "", nil)
	case errors.Is(err, models.ErrUnknownFormat), errors.Is(err, models.ErrUnknownRail):
		writeCode(w, CodeParamError, "", nil)
	default:
		writeCode(w, CodeInternalError, "", nil)
	}
}
