package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	razorpay "github.com/razorpay/razorpay-go"
)

// RazorpayAdapter wraps the Razorpay REST client together with the two shared
// secrets. The checkout secret signs client-submitted proofs of payment; the
// webhook secret signs server-to-server callbacks. They are configured
// independently and must never be unified.
type RazorpayAdapter struct {
	keyID         string
	keySecret     string
	webhookSecret string
	client        *razorpay.Client
}

func NewRazorpayAdapter(keyID, keySecret, webhookSecret string) *RazorpayAdapter {
	return &RazorpayAdapter{
		keyID:         keyID,
		keySecret:     keySecret,
		webhookSecret: webhookSecret,
		client:        razorpay.NewClient(keyID, keySecret),
	}
}

func (rz *RazorpayAdapter) KeyID() string {
	return rz.keyID
}

// CreateOrder opens a payment intent with Razorpay. Amounts are kept in
// rupees everywhere else; Razorpay wants paise, so convert here only.
func (rz *RazorpayAdapter) CreateOrder(ctx context.Context, req OrderRequest) (Order, error) {
	data := map[string]interface{}{
		"amount":          req.Amount * 100,
		"currency":        "INR",
		"receipt":         req.Receipt,
		"payment_capture": 1,
	}

	body, err := rz.client.Order.Create(data, nil)
	if err != nil {
		return Order{}, fmt.Errorf("razorpay order create: %w", err)
	}

	orderID, ok := body["id"].(string)
	if !ok || orderID == "" {
		return Order{}, fmt.Errorf("razorpay order create: missing order id in response %v", body)
	}

	return Order{
		ID:       orderID,
		Amount:   req.Amount,
		Currency: "INR",
	}, nil
}

// VerifyCheckoutSignature recomputes the checkout HMAC over
// "orderID|paymentID" and compares it against the client-supplied signature.
// Signature format is per Razorpay docs: hex-encoded HMAC-SHA256 keyed with
// the key secret.
func (rz *RazorpayAdapter) VerifyCheckoutSignature(orderID, paymentID, signature string) bool {
	expected := computeHMAC([]byte(orderID+"|"+paymentID), rz.keySecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

// VerifyWebhookSignature authenticates a webhook delivery using the HMAC of
// the exact received body bytes. An unconfigured webhook secret degrades to
// the empty key rather than rejecting outright.
func (rz *RazorpayAdapter) VerifyWebhookSignature(body []byte, signature string) bool {
	expected := computeHMAC(body, rz.webhookSecret)
	return hmac.Equal([]byte(expected), []byte(signature))
}

func computeHMAC(message []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}
