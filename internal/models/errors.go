package models

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound       = errors.New("models: order not found")
	ErrDuplicateTradeID    = errors.New("models: duplicate trade id")
	ErrTransactionConflict = errors.New("models: transaction already consumed")
	ErrProductNotFound     = errors.New("models: product not found")
	ErrUserNotFound        = errors.New("models: user not found")
	// ErrProductMissing is a consistency fault: the order references a product that no longer resolves.
	ErrProductMissing   = errors.New("models: product missing for order")
	ErrInvalidSignature = errors.New("models: invalid signature")
	ErrUnknownFormat    = errors.New("models: unknown output format")
	ErrUnknownRail      = errors.New("models: unknown payment rail")
	ErrReceiptInvalid   = errors.New("models: receipt verification failed")
)

// ConflictError reports that an external transaction already settled another order.
type ConflictError struct {
	TradeID string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("transaction already settled by order %s", e.TradeID)
}

func (e *ConflictError) Unwrap() error { return ErrTransactionConflict }

// ReceiptError carries the verifier status of a rejected receipt. Err is set when
// the verifier could not be reached or answered garbage.
type ReceiptError struct {
	Status int
	Reason string
	Err    error
}

func (e *ReceiptError) Error() string {
	msg := fmt.Sprintf("receipt rejected, status:%d", e.Status)
	if e.Reason != "" {
		msg += " (" + e.Reason + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ReceiptError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrReceiptInvalid}
	}
	return []error{ErrReceiptInvalid, e.Err}
}
