package payments

import (
	"fmt"
	"time"
)

// NewReceipt derives the gateway receipt identifier for an order attempt.
// It is deterministic from its inputs to aid debugging at the gateway
// dashboard, but it is not a dedup key: two rapid order requests for the same
// phase still create two gateway orders.
func NewReceipt(phase string, appointmentID int64) string {
	return fmt.Sprintf("%s_%d_%d", phase, appointmentID, time.Now().Unix())
}
