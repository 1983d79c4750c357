package pay

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"sort"
	"strings"
)

const (
	SignTypeRSA2 = "RSA2"
	SignTypeRSA  = "RSA"
)

// Content is the canonical string the gateway signs: non-empty params sorted by
// key and joined as k=v&k=v. Keys listed in skip are left out.
func Content(params map[string]string, skip ...string) string {
	keys := make([]string, 0, len(params))
outer:
	for k, v := range params {
		if v == "" {
			continue
		}
		for _, s := range skip {
			if k == s {
				continue outer
			}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(params[k])
	}
	return b.String()
}

func digest(signType, content string) (crypto.Hash, []byte, error) {
	switch signType {
	case SignTypeRSA2, "":
		h := sha256.Sum256([]byte(content))
		return crypto.SHA256, h[:], nil
	case SignTypeRSA:
		h := sha1.Sum([]byte(content))
		return crypto.SHA1, h[:], nil
	default:
		return 0, nil, fmt.Errorf("pay: unsupported sign type %q", signType)
	}
}

// Sign returns the base64 PKCS#1 v1.5 signature of content.
func Sign(content string, key *rsa.PrivateKey, signType string) (string, error) {
	hash, sum, err := digest(signType, content)
	if err != nil {
		return "", err
	}
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, hash, sum)
	if err != nil {
		return "", fmt.Errorf("pay: sign: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

// VerifySignature checks a gateway callback. sign and sign_type are not part of
// the signed content.
func VerifySignature(params map[string]string, key *rsa.PublicKey, signType string) bool {
	if key == nil {
		return false
	}
	sig, err := base64.StdEncoding.DecodeString(params["sign"])
	if err != nil || len(sig) == 0 {
		return false
	}
	hash, sum, err := digest(signType, Content(params, "sign", "sign_type"))
	if err != nil {
		return false
	}
	return rsa.VerifyPKCS1v15(key, hash, sum, sig) == nil
}
