package models

import (
	"encoding/json"
	"strings"
)

// Receipt verification status codes. ReceiptStatusVerified mirrors the App Store contract.
const (
	ReceiptStatusVerified = 0
	// ReceiptStatusNoMatch means the receipt verified but the claimed transaction is not in it.
	ReceiptStatusNoMatch = -1
)

// ReceiptEnvironment selects which App Store verification endpoint is used.
type ReceiptEnvironment string

const (
	EnvironmentAppStore ReceiptEnvironment = "AppStore"
	EnvironmentSandbox  ReceiptEnvironment = "Sandbox"
)

// ParseReceiptEnvironment maps client input to an environment. Anything but "AppStore" is sandbox.
func ParseReceiptEnvironment(s string) ReceiptEnvironment {
	if strings.EqualFold(strings.TrimSpace(s), string(EnvironmentAppStore)) {
		return EnvironmentAppStore
	}
	return EnvironmentSandbox
}

// InAppItem is one line of the receipt's in_app list.
type InAppItem struct {
	TransactionID         string `json:"transaction_id"`
	OriginalTransactionID string `json:"original_transaction_id,omitempty"`
	ProductID             string `json:"product_id"`
	Quantity              string `json:"quantity,omitempty"`
	PurchaseDateMS        string `json:"purchase_date_ms,omitempty"`
}

// VerificationResult is the normalized outcome of a receipt check.
type VerificationResult struct {
	Status int       `json:"status"`
	Item   InAppItem `json:"item"`
	// Raw is the verifier response body, kept for the audit trail.
	Raw json.RawMessage `json:"-"`
}

// Verified reports whether the claimed transaction was found in a valid receipt.
func (r VerificationResult) Verified() bool {
	return r.Status == ReceiptStatusVerified && r.Item.TransactionID != ""
}
