package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"time"
)

// VerifySignature checks an inbound delivery's HMAC-SHA256 signature,
// computed over nonce + timestamp + raw body and hex-encoded. Several
// candidate secrets are accepted so tokens can rotate without dropping
// deliveries. Comparison is constant-time.
func VerifySignature(secrets []string, nonce, timestamp string, body []byte, signature string) bool {
	provided, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		mac := hmac.New(sha256.New, []byte(secret))
		mac.Write([]byte(nonce))
		mac.Write([]byte(timestamp))
		mac.Write(body)
		if hmac.Equal(mac.Sum(nil), provided) {
			return true
		}
	}
	return false
}

// TimestampValid rejects deliveries whose timestamp (unix seconds) is
// further than maxAge from now in either direction, bounding replay windows.
func TimestampValid(timestamp string, now time.Time, maxAge time.Duration) bool {
	seconds, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	diff := now.Sub(time.Unix(seconds, 0))
	if diff < 0 {
		diff = -diff
	}
	return diff <= maxAge
}
