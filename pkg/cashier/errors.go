package cashier

import "errors"

var (
	ErrSubscriptionNotFound = errors.New("subscription not found")
	ErrPaymentNotFound      = errors.New("payment not found")
	ErrCustomerNotFound     = errors.New("customer not found")

	ErrNotOnGracePeriod       = errors.New("subscription is not within its grace period")
	ErrIncompleteSubscription = errors.New("subscription has an incomplete payment")
	ErrInvalidQuantity        = errors.New("subscription quantity must be at least 1")
	ErrTrialDateNotFuture     = errors.New("extending a trial requires a date in the future")

	ErrInvalidPayload = errors.New("invalid webhook payload")
	ErrGatewayRequest = errors.New("paddle gateway request failed")

	// ErrDropSubscription is returned from a SubscriptionStore.Mutate callback
	// to delete the row instead of saving it. Used for provider-reported hard
	// deletes (incomplete_expired).
	ErrDropSubscription = errors.New("drop subscription row")
)
