// internal/domain/payment/signature.go
package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// VerifyWebhookSignature checks an x-signature header of the form
// "ts=<ts>,v1=<hex>" against HMAC-SHA256 of the notification manifest.
// An empty secret disables verification.
func VerifyWebhookSignature(secret, signatureHeader, requestID, dataID string) error {
	if secret == "" {
		return nil
	}

	var ts, v1 string
	for _, part := range strings.Split(signatureHeader, ",") {
		key, value, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch key {
		case "ts":
			ts = value
		case "v1":
			v1 = value
		}
	}
	if ts == "" || v1 == "" {
		return ErrInvalidSignature
	}

	expected := SignManifest(secret, requestID, dataID, ts)
	if !hmac.Equal([]byte(expected), []byte(v1)) {
		return ErrInvalidSignature
	}
	return nil
}

// SignManifest computes the v1 signature for a notification
func SignManifest(secret, requestID, dataID, ts string) string {
	manifest := fmt.Sprintf("id:%s;", strings.ToLower(dataID))
	if requestID != "" {
		manifest += fmt.Sprintf("request-id:%s;", requestID)
	}
	manifest += fmt.Sprintf("ts:%s;", ts)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(manifest))
	return hex.EncodeToString(mac.Sum(nil))
}
