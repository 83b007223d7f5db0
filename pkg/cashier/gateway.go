package cashier

import (
	"context"

	"github.com/shopspring/decimal"
)

// Gateway is the outbound interface to the billing provider's REST API. It is
// stateless beyond credentials; every method is a single network attempt and
// failures surface as errors for the caller to handle. Retry policy belongs
// to the caller.
//
// The webhook reconciler never touches the gateway: it is invoked only from
// application-initiated actions (plan swap, cancel, quantity change, refund).
type Gateway interface {
	// SubscriptionUsers looks up subscribers, optionally filtered by
	// subscription or plan.
	SubscriptionUsers(ctx context.Context, q SubscriptionUsersQuery) ([]SubscriptionUser, error)

	// UpdateSubscription applies the given changes to a provider-side
	// subscription. Zero-valued params are omitted from the request.
	UpdateSubscription(ctx context.Context, subscriptionID string, params UpdateParams) error

	// CancelSubscription cancels a provider-side subscription.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// Refund refunds a payment identified by its provider order id.
	Refund(ctx context.Context, orderID string, params RefundParams) error
}

// SubscriptionUsersQuery filters the subscription-user lookup. Empty fields
// are not sent.
type SubscriptionUsersQuery struct {
	SubscriptionID string
	PlanID         string
	State          string
}

// SubscriptionUser is one subscriber record as reported by the provider.
type SubscriptionUser struct {
	SubscriptionID int64  `json:"subscription_id"`
	PlanID         int64  `json:"plan_id"`
	UserID         int64  `json:"user_id"`
	UserEmail      string `json:"user_email"`
	State          string `json:"state"`
	SignupDate     string `json:"signup_date"`
	UpdateURL      string `json:"update_url"`
	CancelURL      string `json:"cancel_url"`
}

// UpdateParams describes a partial provider-side subscription update.
type UpdateParams struct {
	PlanID          string
	Quantity        int   // 0 leaves quantity untouched
	Prorate         *bool // nil leaves the provider default
	BillImmediately *bool
	Passthrough     string
}

// RefundParams describes an optional partial refund. A zero Amount refunds
// the full payment.
type RefundParams struct {
	Amount decimal.Decimal
	Reason string
}
