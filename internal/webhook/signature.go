// internal/webhook/signature.go
package webhook

import (
    "crypto/hmac"
    "crypto/sha256"
    "encoding/hex"
)

// Sign computes the hex HMAC-SHA256 of body under secret. The provider
// sends the same value in its signature header.
func Sign(secret, body []byte) string {
    mac := hmac.New(sha256.New, secret)
    mac.Write(body)
    return hex.EncodeToString(mac.Sum(nil))
}

// Verify is constant time on the MAC comparison.
func Verify(secret, body []byte, signature string) bool {
    expected, err := hex.DecodeString(signature)
    if err != nil {
        return false
    }
    mac := hmac.New(sha256.New, secret)
    mac.Write(body)
    return hmac.Equal(mac.Sum(nil), expected)
}
