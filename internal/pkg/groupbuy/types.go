package groupbuy

import "fmt"

// Payment event types delivered by the provider. Only confirmed/received
// payments trigger side effects; everything else is acknowledged and dropped.
const (
	EventPaymentConfirmed = "PAYMENT_CONFIRMED"
	EventPaymentReceived  = "PAYMENT_RECEIVED"
)

// PaymentEvent is the strongly typed form of a provider webhook body. The
// provider sends loosely shaped JSON; parsing into this struct plus validator
// tags rejects malformed shapes at the boundary instead of letting them leak
// into business logic.
type PaymentEvent struct {
	Event   string      `json:"event" validate:"required"`
	Payment PaymentData `json:"payment" validate:"required"`
}

// PaymentData carries the provider's view of a single payment.
type PaymentData struct {
	ID                string  `json:"id" validate:"required"`
	Status            string  `json:"status" validate:"required"`
	Value             float64 `json:"value"`
	ExternalReference string  `json:"externalReference" validate:"required"`
}

// Key returns the canonical idempotency key for the event. Two deliveries
// with the same key refer to the same provider-side state change.
func (e *PaymentEvent) Key() string {
	return fmt.Sprintf("%s|%s|%s", e.Event, e.Payment.ID, e.Payment.Status)
}

// IsConfirmed reports whether the event represents money actually received.
func (e *PaymentEvent) IsConfirmed() bool {
	switch e.Event {
	case EventPaymentConfirmed, EventPaymentReceived:
		return true
	default:
		return false
	}
}

// ExternalReference is the decoded `order=<uuid>;leader=<uuid>` string the
// checkout flow round-trips through the payment provider. LeaderPublicID is
// empty for self-leader purchases.
type ExternalReference struct {
	OrderPublicID  string
	LeaderPublicID string
}

// ProcessResult summarizes what a single webhook delivery did.
type ProcessResult struct {
	EventKey     string
	Duplicate    bool // event key already fully processed, no side effects ran
	Ignored      bool // non-confirmation event, acknowledged without effects
	AlreadyPaid  bool // order was paid by an earlier delivery
	OrderID      string
	PlanID       uint
	GroupID      uint
	GroupSize    int
	Contemplated bool
	WinnerUserID uint
	Commissioned bool
}
