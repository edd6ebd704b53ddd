package payments

import "context"

// Gateway is the single integration point with the payment provider. Order
// creation talks to the provider's API; the two signature checks are local
// HMAC computations against the provider's shared secrets.
type Gateway interface {
	CreateOrder(ctx context.Context, req OrderRequest) (Order, error)
	VerifyCheckoutSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(body []byte, signature string) bool
	KeyID() string
}
