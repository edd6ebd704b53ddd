package payments

// OrderRequest carries what the provider needs to open a payment intent.
// Amount is in rupees (major units); adapters convert to minor units at the
// wire boundary.
type OrderRequest struct {
	Amount  int64
	Receipt string
}

// Order is the provider-issued handle for an initiated, uncaptured payment.
type Order struct {
	ID       string
	Amount   int64
	Currency string
}
