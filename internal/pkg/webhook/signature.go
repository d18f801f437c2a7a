package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// VerifySignature checks the X-Amember-Signature header against the raw
// request body. The signature is the hex encoded HMAC-SHA256 of the exact
// bytes on the wire. An installation without a configured secret runs in
// unsecured mode and accepts every payload.
func VerifySignature(payload []byte, signatureHeader, webhookSecret string) bool {
	secret := strings.TrimSpace(webhookSecret)
	if secret == "" {
		return true
	}

	sig := strings.TrimSpace(signatureHeader)
	if sig == "" {
		return false
	}

	decodedSig, err := hex.DecodeString(strings.ToLower(sig))
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hmac.Equal(mac.Sum(nil), decodedSig)
}

// Sign computes the hex encoded HMAC-SHA256 signature for a payload. Used by
// tests and by operators verifying an installation's configuration.
func Sign(payload []byte, webhookSecret string) string {
	mac := hmac.New(sha256.New, []byte(webhookSecret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}
