package groupbuy

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"
)

func signPayload(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyWebhookSignature(t *testing.T) {
	payload := []byte(`{"foo":"bar"}`)
	secret := "top-secret"

	validSig := signPayload(payload, secret)
	if !VerifyWebhookSignature(payload, validSig, secret) {
		t.Fatalf("expected signature to validate")
	}
	if !VerifyWebhookSignature(payload, strings.ToUpper(validSig), secret) {
		t.Fatalf("expected uppercase hex signature to validate")
	}
	if VerifyWebhookSignature(payload, "deadbeef", secret) {
		t.Fatalf("expected invalid signature to fail")
	}
	if VerifyWebhookSignature(payload, validSig, "other-secret") {
		t.Fatalf("expected signature under wrong secret to fail")
	}
	if VerifyWebhookSignature([]byte(`{"foo":"baz"}`), validSig, secret) {
		t.Fatalf("expected signature over different body to fail")
	}
}

func TestVerifyWebhookSignature_FailsClosed(t *testing.T) {
	payload := []byte(`{}`)
	if VerifyWebhookSignature(payload, "", "secret") {
		t.Fatalf("expected missing signature to fail")
	}
	if VerifyWebhookSignature(payload, signPayload(payload, ""), "") {
		t.Fatalf("expected missing secret to fail")
	}
	if VerifyWebhookSignature(payload, "not-hex!", "secret") {
		t.Fatalf("expected non-hex signature to fail")
	}
}
