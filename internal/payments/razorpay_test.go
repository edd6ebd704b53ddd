package payments

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"testing"
	"time"
)

func sign(message, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyCheckoutSignature(t *testing.T) {
	t.Parallel()

	rz := NewRazorpayAdapter("rzp_test_key", "checkout_secret", "webhook_secret")

	valid := sign("order_1|pay_1", "checkout_secret")

	if !rz.VerifyCheckoutSignature("order_1", "pay_1", valid) {
		t.Errorf("valid signature rejected")
	}
	if rz.VerifyCheckoutSignature("order_1", "pay_2", valid) {
		t.Errorf("signature accepted for a different payment id")
	}
	if rz.VerifyCheckoutSignature("order_2", "pay_1", valid) {
		t.Errorf("signature accepted for a different order id")
	}
	if rz.VerifyCheckoutSignature("order_1", "pay_1", sign("order_1|pay_1", "wrong_secret")) {
		t.Errorf("signature accepted under the wrong secret")
	}
	if rz.VerifyCheckoutSignature("order_1", "pay_1", "") {
		t.Errorf("empty signature accepted")
	}
	// the webhook secret must play no part in checkout verification
	if rz.VerifyCheckoutSignature("order_1", "pay_1", sign("order_1|pay_1", "webhook_secret")) {
		t.Errorf("checkout verification accepted a webhook-keyed signature")
	}
}

func TestVerifyWebhookSignature(t *testing.T) {
	t.Parallel()

	rz := NewRazorpayAdapter("rzp_test_key", "checkout_secret", "webhook_secret")

	body := []byte(`{"event":"payment.captured"}`)

	if !rz.VerifyWebhookSignature(body, sign(string(body), "webhook_secret")) {
		t.Errorf("valid webhook signature rejected")
	}
	if rz.VerifyWebhookSignature([]byte(`{"event":"payment.failed"}`), sign(string(body), "webhook_secret")) {
		t.Errorf("signature accepted for a different body")
	}
	if rz.VerifyWebhookSignature(body, sign(string(body), "checkout_secret")) {
		t.Errorf("webhook verification accepted a checkout-keyed signature")
	}
}

func TestVerifyWebhookSignatureEmptySecret(t *testing.T) {
	t.Parallel()

	// an unconfigured webhook secret degrades to HMAC with the empty key
	rz := NewRazorpayAdapter("rzp_test_key", "checkout_secret", "")

	body := []byte(`{"event":"payment.captured"}`)

	if !rz.VerifyWebhookSignature(body, sign(string(body), "")) {
		t.Errorf("empty-key signature rejected with unconfigured secret")
	}
	if rz.VerifyWebhookSignature(body, sign(string(body), "webhook_secret")) {
		t.Errorf("keyed signature accepted with unconfigured secret")
	}
}

func TestNewReceipt(t *testing.T) {
	t.Parallel()

	before := time.Now().Unix()
	receipt := NewReceipt("advance", 42)
	after := time.Now().Unix()

	parts := strings.Split(receipt, "_")
	if len(parts) != 3 {
		t.Fatalf("receipt %q: want three underscore-separated parts", receipt)
	}
	if parts[0] != "advance" {
		t.Errorf("receipt phase = %q, want advance", parts[0])
	}
	if parts[1] != "42" {
		t.Errorf("receipt appointment = %q, want 42", parts[1])
	}
	ts, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		t.Fatalf("receipt timestamp %q not numeric: %v", parts[2], err)
	}
	if ts < before || ts > after {
		t.Errorf("receipt timestamp %d outside [%d, %d]", ts, before, after)
	}
}
