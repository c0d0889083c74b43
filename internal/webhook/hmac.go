package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// errVerification carries no detail. The handler logs it and answers 403.
var errVerification = errors.New("webhook verification failed")

// bodyMAC is HMAC-SHA256(secret, body).
func bodyMAC(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// verifyHMACSignature accepts the signature as plain hex or as
// "sha256=<hex>".
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" {
		return errVerification
	}
	got, err := parseSignature(signature)
	if err != nil || len(got) != sha256.Size {
		return errVerification
	}
	if !hmac.Equal(bodyMAC(body, secret), got) {
		return errVerification
	}
	return nil
}

func parseSignature(signature string) ([]byte, error) {
	return hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), "sha256="))
}
