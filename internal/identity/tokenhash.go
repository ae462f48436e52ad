package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// hashToken derives the at-rest representation of an access or refresh
// token. Raw tokens are never persisted; only this HMAC digest is, so a
// database leak alone cannot be replayed against the auth API.
func hashToken(pepper, token string) string {
	mac := hmac.New(sha256.New, []byte(pepper))
	mac.Write([]byte(token))
	return hex.EncodeToString(mac.Sum(nil))
}
