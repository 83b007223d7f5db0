package cashier

import (
	"context"
	"fmt"
	"time"
)

// Service executes application-initiated subscription changes. Unlike the
// webhook reconciler, these paths talk to the provider synchronously: a
// change that does not reach Paddle would be silently reverted by the next
// webhook. Gateway failures surface as errors and leave local state
// untouched; precondition violations are domain errors, never silent no-ops.
type Service struct {
	config  Config
	subs    SubscriptionStore
	gateway Gateway
}

// NewService creates a Service. Panics if the store or gateway is nil to
// fail fast during initialization.
func NewService(config Config, subs SubscriptionStore, gateway Gateway) *Service {
	if subs == nil {
		panic("cashier: SubscriptionStore is required")
	}
	if gateway == nil {
		panic("cashier: Gateway is required")
	}
	return &Service{config: config, subs: subs, gateway: gateway}
}

// SwapOptions tweaks a plan swap. The zero value keeps the current quantity
// and the provider's proration default.
type SwapOptions struct {
	Quantity int // 0 keeps the current quantity
	Prorate  *bool
}

// Cancel cancels the subscription at the end of the billing period. The
// subscription stays valid through its grace period: until the trial end when
// cancelled during a trial, otherwise until effectiveAt (or now when nil).
func (s *Service) Cancel(ctx context.Context, sub *Subscription, effectiveAt *time.Time) error {
	if err := s.gateway.CancelSubscription(ctx, sub.PaddleID); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.PaddleID, err)
	}

	sub.Cancel(effectiveAt)
	return s.subs.Save(ctx, sub)
}

// CancelNow cancels immediately, collapsing the grace period.
func (s *Service) CancelNow(ctx context.Context, sub *Subscription) error {
	if err := s.gateway.CancelSubscription(ctx, sub.PaddleID); err != nil {
		return fmt.Errorf("cancel subscription %s: %w", sub.PaddleID, err)
	}

	sub.CancelNow()
	return s.subs.Save(ctx, sub)
}

// Resume clears a pending cancellation. Only legal while the grace period is
// open; returns ErrNotOnGracePeriod otherwise without touching anything.
// Trial state carries over exactly as with Swap: an open trial window keeps
// running, otherwise the subscription returns to active.
func (s *Service) Resume(ctx context.Context, sub *Subscription) error {
	now := time.Now().UTC()
	if !sub.OnGracePeriodAt(now) {
		return ErrNotOnGracePeriod
	}

	// Re-pinning the current plan on the provider side reinstates billing
	// where it left off.
	params := UpdateParams{PlanID: sub.PaddlePlanID}
	if sub.Quantity > 0 {
		params.Quantity = sub.Quantity
	}
	if err := s.gateway.UpdateSubscription(ctx, sub.PaddleID, params); err != nil {
		return fmt.Errorf("resume subscription %s: %w", sub.PaddleID, err)
	}

	if err := sub.ResumeAt(now); err != nil {
		return err
	}
	return s.subs.Save(ctx, sub)
}

// Swap moves the subscription to a new plan. Rejected while the subscription
// has an incomplete payment. An open trial window is forwarded onto the new
// plan; otherwise the trial ends with the swap. The current quantity is kept
// unless overridden through opts.
func (s *Service) Swap(ctx context.Context, sub *Subscription, plan string, opts SwapOptions) error {
	if sub.Incomplete() {
		return ErrIncompleteSubscription
	}

	planID := s.config.PlanID(plan)
	quantity := sub.Quantity
	if opts.Quantity > 0 {
		quantity = opts.Quantity
	}

	params := UpdateParams{
		PlanID:   planID,
		Quantity: quantity,
		Prorate:  opts.Prorate,
	}
	if err := s.gateway.UpdateSubscription(ctx, sub.PaddleID, params); err != nil {
		return fmt.Errorf("swap subscription %s to plan %s: %w", sub.PaddleID, planID, err)
	}

	sub.PaddlePlanID = planID
	sub.Quantity = quantity
	sub.EndsAt = nil
	if !sub.OnTrial() {
		sub.TrialEndsAt = nil
	}
	return s.subs.Save(ctx, sub)
}

// UpdateQuantity changes the subscription quantity locally and on the
// provider side together. Rejected while the subscription has an incomplete
// payment.
func (s *Service) UpdateQuantity(ctx context.Context, sub *Subscription, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	if sub.Incomplete() {
		return ErrIncompleteSubscription
	}

	if err := s.gateway.UpdateSubscription(ctx, sub.PaddleID, UpdateParams{Quantity: quantity}); err != nil {
		return fmt.Errorf("update quantity for subscription %s: %w", sub.PaddleID, err)
	}

	sub.Quantity = quantity
	return s.subs.Save(ctx, sub)
}

// IncrementQuantity raises the quantity by count (default 1 when count < 1).
func (s *Service) IncrementQuantity(ctx context.Context, sub *Subscription, count int) error {
	if count < 1 {
		count = 1
	}
	return s.UpdateQuantity(ctx, sub, sub.Quantity+count)
}

// DecrementQuantity lowers the quantity by count, never below 1.
func (s *Service) DecrementQuantity(ctx context.Context, sub *Subscription, count int) error {
	if count < 1 {
		count = 1
	}
	return s.UpdateQuantity(ctx, sub, max(1, sub.Quantity-count))
}

// Refund refunds a payment identified by its provider order id.
func (s *Service) Refund(ctx context.Context, orderID string, params RefundParams) error {
	if err := s.gateway.Refund(ctx, orderID, params); err != nil {
		return fmt.Errorf("refund order %s: %w", orderID, err)
	}
	return nil
}
