package gateway

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const payloadSeparator = "|"

// ErrSeparatorInField is returned when a notice field contains the payload separator
var ErrSeparatorInField = errors.New("notice fields must not contain \"" + payloadSeparator + "\"")

// CanonicalPayload builds the string the gateway signs for a payment notice:
// "orderId|providerReference", with "|failed" appended for failure notices.
// Fields may not contain the separator, so every payload maps back to exactly
// one (order, reference, outcome) triple.
func CanonicalPayload(orderID, providerReference string, failed bool) (string, error) {
	if strings.Contains(orderID, payloadSeparator) || strings.Contains(providerReference, payloadSeparator) {
		return "", ErrSeparatorInField
	}
	payload := orderID + payloadSeparator + providerReference
	if failed {
		payload += payloadSeparator + "failed"
	}
	return payload, nil
}

// Sign returns the hex encoded HMAC-SHA256 of payload under secret
func Sign(secret, payload string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a hex signature in constant time
func VerifySignature(secret, payload, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(Sign(secret, payload))
	if err != nil {
		return false
	}
	got, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(expected, got)
}
