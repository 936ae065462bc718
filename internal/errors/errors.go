package errors

import "errors"

// Checkout validation failures, reported synchronously to the buyer
// before any payment is collected.
var ErrEventNotFound = errors.New("event not found")
var ErrEventUnavailable = errors.New("event is not available for purchase")
var ErrTierNotFound = errors.New("ticket tier not found")
var ErrQuantityOutOfRange = errors.New("quantity out of range")
var ErrInsufficientInventory = errors.New("insufficient inventory")
var ErrSalesNotStarted = errors.New("ticket sales have not started")
var ErrSalesEnded = errors.New("ticket sales have ended")
var ErrPayoutNotConfigured = errors.New("organizer has not completed payout setup")

// The signature check is the only access control on the webhook endpoint.
var ErrSignatureInvalid = errors.New("webhook signature verification failed")

// ErrAlreadyFulfilled marks a duplicate delivery of a completed checkout
// session. It is a successful no-op, not a failure.
var ErrAlreadyFulfilled = errors.New("order already fulfilled for session")
