// Package adapter implements the Adapter Runtime (C7): signature
// verification, normalization into the canonical event, the middleware
// pipeline, SAGA compensation, and DLQ routing.
package adapter

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
)

// Verify reports whether signature equals base64url(HMAC-SHA256(secret,
// body)), using a constant-time comparison.
func Verify(secret, body []byte, signature string) bool {
	expected := sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// SignOutbound produces the HMAC-SHA256 base64url signature for body under
// secret, for outbound webhook re-signing to downstream consumers.
func SignOutbound(secret, body []byte) string {
	return sign(secret, body)
}

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.URLEncoding.EncodeToString(mac.Sum(nil))
}
