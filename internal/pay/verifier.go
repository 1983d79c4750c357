package pay

import (
	"crypto/rsa"
	"fmt"

	"vpsBack/internal/models"
)

// CallbackVerifier checks notify and return payloads against the gateway public key.
type CallbackVerifier struct {
	appID    string
	key      *rsa.PublicKey
	signType string
}

func NewCallbackVerifier(appID string, key *rsa.PublicKey, signType string) *CallbackVerifier {
	if signType == "" {
		signType = SignTypeRSA2
	}
	return &CallbackVerifier{appID: appID, key: key, signType: signType}
}

// Verify returns models.ErrInvalidSignature for anything that must not reach reconciliation.
func (v *CallbackVerifier) Verify(params map[string]string) error {
	if !VerifySignature(params, v.key, v.signType) {
		return models.ErrInvalidSignature
	}
	if v.appID != "" && params["app_id"] != v.appID {
		return fmt.Errorf("app_id %q: %w", params["app_id"], models.ErrInvalidSignature)
	}
	return nil
}
