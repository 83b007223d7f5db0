package cashier

// Status represents the lifecycle state of a subscription as reported by Paddle.
type Status string

const (
	StatusActive    Status = "active"
	StatusTrialing  Status = "trialing"
	StatusPastDue   Status = "past_due"
	StatusPaused    Status = "paused"
	StatusCancelled Status = "cancelled"
)

// Paddle's classic API reports cancelled subscriptions as "deleted" on the wire.
const wireStatusDeleted = "deleted"

// wireStatusIncompleteExpired triggers a hard delete of the local row instead of
// a status update. It never becomes a local Status.
const wireStatusIncompleteExpired = "incomplete_expired"

// ParseStatus maps a provider-reported status string to a local Status.
// Unknown values pass through unchanged so future provider states are preserved
// rather than lost.
func ParseStatus(s string) Status {
	if s == wireStatusDeleted {
		return StatusCancelled
	}
	return Status(s)
}

// EventKind identifies a webhook alert type sent by the billing provider.
type EventKind string

const (
	EventSubscriptionCreated          EventKind = "subscription_created"
	EventSubscriptionUpdated          EventKind = "subscription_updated"
	EventSubscriptionCancelled        EventKind = "subscription_cancelled"
	EventSubscriptionPaymentSucceeded EventKind = "subscription_payment_succeeded"
	EventSubscriptionPaymentFailed    EventKind = "subscription_payment_failed"
	EventSubscriptionPaymentRefunded  EventKind = "subscription_payment_refunded"
)
