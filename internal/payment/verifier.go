package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// Verifier checks gateway payment signatures with the shared key secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier { return &Verifier{secret: []byte(secret)} }

// Sign returns hex(HMAC-SHA256(secret, gatewayOrderID|paymentID)).
func (v *Verifier) Sign(gatewayOrderID, paymentID string) string {
	mac := hmac.New(sha256.New, v.secret)
	mac.Write([]byte(gatewayOrderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches. The comparison is constant time.
// A verifier without a secret rejects everything.
func (v *Verifier) Verify(gatewayOrderID, paymentID, signature string) bool {
	if len(v.secret) == 0 {
		return false
	}
	want := v.Sign(gatewayOrderID, paymentID)
	return hmac.Equal([]byte(want), []byte(signature))
}
