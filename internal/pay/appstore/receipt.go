package appstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"vpsBack/internal/models"
)

const (
	ProductionURL = "https://buy.itunes.apple.com/verifyReceipt"
	SandboxURL    = "https://sandbox.itunes.apple.com/verifyReceipt"
)

type Config struct {
	SharedSecret  string
	ProductionURL string
	SandboxURL    string
	Timeout       time.Duration
	HTTPClient    *http.Client
}

// Verifier submits receipts to the App Store verifyReceipt endpoint. One attempt per call.
type Verifier struct {
	secret  string
	prodURL string
	sandURL string
	client  *http.Client
}

// VerifierError is a non-200 HTTP answer from the verifier endpoint.
type VerifierError struct {
	StatusCode int
	Body       string
}

func (e *VerifierError) Error() string {
	return fmt.Sprintf("appstore: verifier returned %d: %s", e.StatusCode, e.Body)
}

func NewVerifier(cfg Config) *Verifier {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	v := &Verifier{
		secret:  cfg.SharedSecret,
		prodURL: cfg.ProductionURL,
		sandURL: cfg.SandboxURL,
		client:  client,
	}
	if v.prodURL == "" {
		v.prodURL = ProductionURL
	}
	if v.sandURL == "" {
		v.sandURL = SandboxURL
	}
	return v
}

type verifyRequest struct {
	ReceiptData            string `json:"receipt-data"`
	Password               string `json:"password,omitempty"`
	ExcludeOldTransactions bool   `json:"exclude-old-transactions"`
}

type verifyResponse struct {
	Status  int `json:"status"`
	Receipt struct {
		InApp []models.InAppItem `json:"in_app"`
	} `json:"receipt"`
}

// Verify checks receipt and looks for transactionID in its in_app list. An empty
// transactionID claims the most recent entry.
func (v *Verifier) Verify(ctx context.Context, receipt, transactionID string, env models.ReceiptEnvironment) (models.VerificationResult, error) {
	if strings.TrimSpace(receipt) == "" {
		return models.VerificationResult{}, errors.New("appstore: receipt is required")
	}
	endpoint := v.sandURL
	if env == models.EnvironmentAppStore {
		endpoint = v.prodURL
	}

	body, _ := json.Marshal(verifyRequest{ReceiptData: receipt, Password: v.secret, ExcludeOldTransactions: true})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return models.VerificationResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("appstore: verify request: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return models.VerificationResult{}, fmt.Errorf("appstore: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return models.VerificationResult{}, &VerifierError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var out verifyResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return models.VerificationResult{}, fmt.Errorf("appstore: decode response: %w", err)
	}
	res := Match(out.Status, out.Receipt.InApp, transactionID)
	res.Raw = raw
	return res, nil
}

// Match turns a verifier answer into a result: the verifier status verbatim on
// failure, ReceiptStatusNoMatch when the transaction is not in the list.
func Match(status int, items []models.InAppItem, transactionID string) models.VerificationResult {
	if status != models.ReceiptStatusVerified {
		return models.VerificationResult{Status: status}
	}
	if transactionID == "" {
		if item, ok := latest(items); ok {
			return models.VerificationResult{Status: models.ReceiptStatusVerified, Item: item}
		}
		return models.VerificationResult{Status: models.ReceiptStatusNoMatch}
	}
	for _, item := range items {
		if item.TransactionID == transactionID {
			return models.VerificationResult{Status: models.ReceiptStatusVerified, Item: item}
		}
	}
	return models.VerificationResult{Status: models.ReceiptStatusNoMatch}
}

func latest(items []models.InAppItem) (models.InAppItem, bool) {
	if len(items) == 0 {
		return models.InAppItem{}, false
	}
	best := items[len(items)-1]
	bestMS, _ := strconv.ParseInt(best.PurchaseDateMS, 10, 64)
	for _, item := range items {
		ms, err := strconv.ParseInt(item.PurchaseDateMS, 10, 64)
		if err == nil && ms > bestMS {
			best, bestMS = item, ms
		}
	}
	return best, true
}
