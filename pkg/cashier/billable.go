package cashier

import (
	"context"
	"errors"
	"slices"

	"github.com/google/uuid"
)

// Billable is a read-only view over one user's billing state: named
// subscriptions, trial windows and payment history. No transitions happen
// here; mutations go through Service or the webhook reconciler.
type Billable struct {
	userID    uuid.UUID
	config    Config
	subs      SubscriptionStore
	payments  PaymentStore
	customers CustomerStore
}

// NewBillable creates the facade for one user. Panics if any store is nil.
func NewBillable(userID uuid.UUID, config Config, subs SubscriptionStore, payments PaymentStore, customers CustomerStore) *Billable {
	if subs == nil {
		panic("cashier: SubscriptionStore is required")
	}
	if payments == nil {
		panic("cashier: PaymentStore is required")
	}
	if customers == nil {
		panic("cashier: CustomerStore is required")
	}
	return &Billable{
		userID:    userID,
		config:    config,
		subs:      subs,
		payments:  payments,
		customers: customers,
	}
}

// UserID returns the user this facade is bound to.
func (b *Billable) UserID() uuid.UUID {
	return b.userID
}

// Subscription resolves the user's effective subscription for the given name:
// the most recently created matching row. An empty name uses the configured
// default. Returns ErrSubscriptionNotFound when the user has none.
func (b *Billable) Subscription(ctx context.Context, name string) (*Subscription, error) {
	return b.subs.Current(ctx, b.userID, b.config.Name(name))
}

// Subscribed reports whether the named subscription exists and is valid,
// optionally also requiring a specific plan.
func (b *Billable) Subscribed(ctx context.Context, name, plan string) (bool, error) {
	sub, err := b.Subscription(ctx, name)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !sub.Valid() {
		return false, nil
	}
	if plan == "" {
		return true, nil
	}
	return sub.PaddlePlanID == b.config.PlanID(plan), nil
}

// OnTrial reports whether the named subscription is within its trial window,
// optionally also requiring a specific plan.
func (b *Billable) OnTrial(ctx context.Context, name, plan string) (bool, error) {
	sub, err := b.Subscription(ctx, name)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if !sub.OnTrial() {
		return false, nil
	}
	if plan == "" {
		return true, nil
	}
	return sub.PaddlePlanID == b.config.PlanID(plan), nil
}

// OnGenericTrial reports whether the user is on a customer-level trial that
// runs before any subscription exists.
func (b *Billable) OnGenericTrial(ctx context.Context) (bool, error) {
	customer, err := b.customers.Get(ctx, b.userID)
	if errors.Is(err, ErrCustomerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return customer.OnGenericTrial(), nil
}

// OnPlan reports whether the user holds any valid subscription on the given
// plan, across all subscription names.
func (b *Billable) OnPlan(ctx context.Context, plan string) (bool, error) {
	planID := b.config.PlanID(plan)

	all, err := b.subs.ListByUser(ctx, b.userID)
	if err != nil {
		return false, err
	}
	return slices.ContainsFunc(all, func(sub *Subscription) bool {
		return sub.PaddlePlanID == planID && sub.Valid()
	}), nil
}

// SubscribedToPlan reports whether the named subscription is valid and on one
// of the given plans.
func (b *Billable) SubscribedToPlan(ctx context.Context, plans []string, name string) (bool, error) {
	sub, err := b.Subscription(ctx, name)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !sub.Valid() {
		return false, nil
	}

	return slices.ContainsFunc(plans, func(plan string) bool {
		return sub.PaddlePlanID == b.config.PlanID(plan)
	}), nil
}

// HasIncompletePayment reports whether the named subscription's most recent
// payment attempt requires action.
func (b *Billable) HasIncompletePayment(ctx context.Context, name string) (bool, error) {
	sub, err := b.Subscription(ctx, name)
	if errors.Is(err, ErrSubscriptionNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return sub.Incomplete(), nil
}

// LatestPayment returns the most recent ledger entry for the named
// subscription. Returns ErrPaymentNotFound when none exist.
func (b *Billable) LatestPayment(ctx context.Context, name string) (*Payment, error) {
	sub, err := b.Subscription(ctx, name)
	if err != nil {
		return nil, err
	}
	return b.payments.Latest(ctx, sub.ID)
}

// HasPaddleID reports whether the user is known to Paddle as a customer.
func (b *Billable) HasPaddleID(ctx context.Context) (bool, error) {
	customer, err := b.customers.Get(ctx, b.userID)
	if errors.Is(err, ErrCustomerNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return customer.HasPaddleID(), nil
}
