package groupbuy

import "errors"

// Sentinel errors for the payment event pipeline. The webhook controller
// maps these onto HTTP statuses; anything else is a 500 and the provider's
// retry mechanism covers it.
var (
	// ErrInvalidSignature means the HMAC check over the raw body failed or
	// secret/signature were missing. Fail closed.
	ErrInvalidSignature = errors.New("invalid webhook signature")

	// ErrInvalidPayload covers malformed bodies and malformed or missing
	// external references.
	ErrInvalidPayload = errors.New("invalid webhook payload")

	// ErrOrderNotFound means the external reference points at no known order.
	ErrOrderNotFound = errors.New("order not found")

	// ErrAmountMismatch means the order's recorded amount does not match the
	// plan's expected charge. The order stays pending and an alert is raised
	// for manual review.
	ErrAmountMismatch = errors.New("order amount does not match plan price")

	// ErrGroupFull is returned by admission when the conditional increment
	// finds no free slot. Recovered locally via fallback group creation and
	// never surfaced to the caller.
	ErrGroupFull = errors.New("group is at capacity")

	// ErrAlreadyMember is returned by admission when the user already holds a
	// membership in the group. The repeated attempt is a no-op.
	ErrAlreadyMember = errors.New("user is already a member of the group")
)
