package platform

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// SignTicketPayload HMAC-SHA256s a per-session ticket payload with the fixed
// shared secret configured for the platform, returning the hex digest that
// is attached as the bili_ticket value alongside the CSRF token.
func SignTicketPayload(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// TicketPayload builds the canonical payload string signed for a given
// unix-second timestamp: "ts=<ts>".
func TicketPayload(ts int64) string {
	return "ts=" + strconv.FormatInt(ts, 10)
}
