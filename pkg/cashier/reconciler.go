package cashier

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// UserLookupFunc reports whether a user id extracted from a creation event's
// passthrough refers to a known application user. Events for unknown users
// are absorbed without mutation.
type UserLookupFunc func(ctx context.Context, userID uuid.UUID) (bool, error)

// EventHook observes webhook processing. Hooks are observability callbacks
// for the hosting application, not control-flow gates: their panics are not
// recovered and they cannot veto processing.
type EventHook func(ctx context.Context, ev Event)

// Reconciler applies inbound webhook events to local subscription and
// payment records. Paddle delivers at least once and without ordering, so
// every handler is idempotent under redelivery and re-derives state from the
// payload rather than from assumed prior state. Mutations go through
// SubscriptionStore.Mutate, which serializes writers per subscription.
//
// Handle never calls the Gateway: webhook processing must not fail or block
// on outbound provider calls.
type Reconciler struct {
	config    Config
	subs      SubscriptionStore
	payments  PaymentStore
	customers CustomerStore

	log        *slog.Logger
	userLookup UserLookupFunc
	received   EventHook
	handled    EventHook

	// Closed dispatch table: every recognized alert has exactly one handler,
	// unrecognized alerts fall through to a single no-op path.
	handlers map[EventKind]func(context.Context, Event) error
}

// ReconcilerOption configures a Reconciler.
type ReconcilerOption func(*Reconciler)

// WithLogger sets the logger for absorbed conditions. Defaults to a discard
// logger.
func WithLogger(log *slog.Logger) ReconcilerOption {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// WithUserLookup installs a user existence check consulted on creation
// events. Without it any well-formed user id is accepted.
func WithUserLookup(fn UserLookupFunc) ReconcilerOption {
	return func(r *Reconciler) {
		if fn != nil {
			r.userLookup = fn
		}
	}
}

// WithReceivedHook registers a callback fired before an event is processed.
func WithReceivedHook(hook EventHook) ReconcilerOption {
	return func(r *Reconciler) { r.received = hook }
}

// WithHandledHook registers a callback fired after a recognized event has
// been processed successfully.
func WithHandledHook(hook EventHook) ReconcilerOption {
	return func(r *Reconciler) { r.handled = hook }
}

// NewReconciler creates a webhook reconciler. Panics if any store is nil to
// fail fast during initialization.
func NewReconciler(config Config, subs SubscriptionStore, payments PaymentStore, customers CustomerStore, opts ...ReconcilerOption) *Reconciler {
	if subs == nil {
		panic("cashier: SubscriptionStore is required")
	}
	if payments == nil {
		panic("cashier: PaymentStore is required")
	}
	if customers == nil {
		panic("cashier: CustomerStore is required")
	}

	r := &Reconciler{
		config:    config,
		subs:      subs,
		payments:  payments,
		customers: customers,
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.handlers = map[EventKind]func(context.Context, Event) error{
		EventSubscriptionCreated:          r.handleSubscriptionCreated,
		EventSubscriptionCancelled:        r.handleSubscriptionCancelled,
		EventSubscriptionUpdated:          r.handleSubscriptionUpdated,
		EventSubscriptionPaymentSucceeded: r.handlePaymentSucceeded,
		EventSubscriptionPaymentFailed:    r.handlePaymentOutcome,
		EventSubscriptionPaymentRefunded:  r.handlePaymentOutcome,
	}

	return r
}

// Recognized reports whether the reconciler has a handler for the kind.
func (r *Reconciler) Recognized(kind EventKind) bool {
	_, ok := r.handlers[kind]
	return ok
}

// Handle applies one decoded webhook event. Unrecognized kinds are a no-op
// success: the provider must never be told to retry an event the receiver
// intentionally ignores. The returned error is for local observation only;
// the HTTP edge acknowledges regardless.
func (r *Reconciler) Handle(ctx context.Context, ev Event) error {
	if r.received != nil {
		r.received(ctx, ev)
	}

	handler, ok := r.handlers[ev.Kind]
	if !ok {
		r.log.DebugContext(ctx, "ignoring unrecognized webhook alert", slog.String("alert", string(ev.Kind)))
		return nil
	}

	if err := handler(ctx, ev); err != nil {
		return fmt.Errorf("handle %s: %w", ev.Kind, err)
	}

	if r.handled != nil {
		r.handled(ctx, ev)
	}
	return nil
}

func (r *Reconciler) handleSubscriptionCreated(ctx context.Context, ev Event) error {
	userID, ok := r.passthroughUserID(ctx, ev)
	if !ok {
		return nil
	}

	if r.userLookup != nil {
		known, err := r.userLookup(ctx, userID)
		if err != nil {
			return fmt.Errorf("user lookup: %w", err)
		}
		if !known {
			r.log.WarnContext(ctx, "subscription created for unknown user",
				slog.String("user_id", userID.String()))
			return nil
		}
	}

	// Attach the Paddle customer id to the user's billing profile.
	customer, err := r.customers.Get(ctx, userID)
	if errors.Is(err, ErrCustomerNotFound) {
		customer = &Customer{UserID: userID}
	} else if err != nil {
		return fmt.Errorf("load customer: %w", err)
	}
	customer.PaddleID = ev.Get("user_id")
	if err := r.customers.Save(ctx, customer); err != nil {
		return fmt.Errorf("save customer: %w", err)
	}

	quantity, ok := ev.Int("quantity")
	if !ok || quantity < 1 {
		quantity = 1
	}

	sub := &Subscription{
		UserID:       userID,
		Name:         r.config.Name(""),
		PaddleID:     ev.Get("subscription_id"),
		PaddlePlanID: ev.Get("subscription_plan_id"),
		CancelURL:    ev.Get("cancel_url"),
		UpdateURL:    ev.Get("update_url"),
		Status:       ParseStatus(ev.Get("status")),
		Quantity:     quantity,
	}

	// A trialing subscription ends its trial on the first bill date. The
	// provider reports that as a bare date; the time of day comes from the
	// event timestamp.
	if sub.Status == StatusTrialing {
		if trialEnd, ok := combineDateTime(ev, "next_bill_date", "event_time"); ok {
			sub.TrialEndsAt = &trialEnd
		}
	}

	if err := r.subs.Create(ctx, sub); err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}
	return nil
}

func (r *Reconciler) handleSubscriptionCancelled(ctx context.Context, ev Event) error {
	// The cancellation alert is correlated through the provider customer id.
	if _, err := r.customers.ByPaddleID(ctx, ev.Get("user_id")); err != nil {
		if errors.Is(err, ErrCustomerNotFound) {
			r.log.WarnContext(ctx, "cancellation for unknown customer",
				slog.String("paddle_customer_id", ev.Get("user_id")))
			return nil
		}
		return fmt.Errorf("resolve customer: %w", err)
	}

	var effectiveAt *time.Time
	if ev.Has("cancellation_effective_date") {
		if t, ok := combineDateTime(ev, "cancellation_effective_date", "event_time"); ok {
			effectiveAt = &t
		}
	}

	now := time.Now().UTC()
	err := r.subs.Mutate(ctx, ev.Get("subscription_id"), func(s *Subscription) error {
		// Redelivery of a dateless cancellation must not shift EndsAt.
		if s.Status == StatusCancelled && s.EndsAt != nil && effectiveAt == nil {
			return nil
		}
		s.CancelAt(effectiveAt, now)
		return nil
	})
	if errors.Is(err, ErrSubscriptionNotFound) {
		r.log.WarnContext(ctx, "cancellation for unknown subscription",
			slog.String("paddle_subscription_id", ev.Get("subscription_id")))
		return nil
	}
	return err
}

func (r *Reconciler) handleSubscriptionUpdated(ctx context.Context, ev Event) error {
	err := r.mutateWithFallback(ctx, ev, applyUpdate(ev))
	if errors.Is(err, ErrSubscriptionNotFound) {
		r.log.WarnContext(ctx, "update for unknown subscription",
			slog.String("paddle_subscription_id", ev.Get("subscription_id")))
		return nil
	}
	return err
}

func (r *Reconciler) handlePaymentSucceeded(ctx context.Context, ev Event) error {
	sub, err := r.subs.ByPaddleID(ctx, ev.Get("subscription_id"))
	if errors.Is(err, ErrSubscriptionNotFound) {
		r.log.WarnContext(ctx, "payment for unknown subscription",
			slog.String("paddle_subscription_id", ev.Get("subscription_id")))
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve subscription: %w", err)
	}

	payment := paymentFromEvent(ev, sub)
	if err := r.payments.Upsert(ctx, payment); err != nil {
		return fmt.Errorf("upsert payment: %w", err)
	}

	// Status and quantity ride along with payment alerts; re-apply the
	// update transition from the same payload.
	err = r.mutateWithFallback(ctx, ev, applyUpdate(ev))
	if errors.Is(err, ErrSubscriptionNotFound) {
		return nil
	}
	return err
}

// handlePaymentOutcome covers payment_failed and payment_refunded: no ledger
// mutation, just the subscription fields riding along with the alert.
func (r *Reconciler) handlePaymentOutcome(ctx context.Context, ev Event) error {
	err := r.mutateWithFallback(ctx, ev, applyUpdate(ev))
	if errors.Is(err, ErrSubscriptionNotFound) {
		r.log.WarnContext(ctx, "payment outcome for unknown subscription",
			slog.String("paddle_subscription_id", ev.Get("subscription_id")))
		return nil
	}
	return err
}

// mutateWithFallback resolves by the current provider subscription id, then
// by old_subscription_id when the provider rotated ids on a plan change.
func (r *Reconciler) mutateWithFallback(ctx context.Context, ev Event, fn func(*Subscription) error) error {
	err := r.subs.Mutate(ctx, ev.Get("subscription_id"), fn)
	if errors.Is(err, ErrSubscriptionNotFound) && ev.Has("old_subscription_id") {
		return r.subs.Mutate(ctx, ev.Get("old_subscription_id"), fn)
	}
	return err
}

// applyUpdate builds the partial-update transition for subscription_updated
// and related alerts: fields absent from the payload stay untouched.
func applyUpdate(ev Event) func(*Subscription) error {
	return func(s *Subscription) error {
		if status := ev.Get("status"); status != "" {
			// Provider-reported hard delete removes the row entirely.
			if status == wireStatusIncompleteExpired {
				return ErrDropSubscription
			}
			s.Status = ParseStatus(status)
		}
		if id := ev.Get("subscription_id"); id != "" {
			s.PaddleID = id
		}
		if plan := ev.Get("subscription_plan_id"); plan != "" {
			s.PaddlePlanID = plan
		}
		if q, ok := ev.Int("new_quantity"); ok {
			s.Quantity = q
		} else if q, ok := ev.Int("quantity"); ok {
			s.Quantity = q
		}
		if u := ev.Get("cancel_url"); u != "" {
			s.CancelURL = u
		}
		if u := ev.Get("update_url"); u != "" {
			s.UpdateURL = u
		}
		return nil
	}
}

// paymentFromEvent maps a payment_succeeded payload onto a ledger entry.
// Paddle reports the gross charge as sale_gross and the tax portion as
// payment_tax; the pre-tax subtotal is derived when not sent explicitly.
func paymentFromEvent(ev Event, sub *Subscription) *Payment {
	payment := &Payment{
		SubscriptionID: sub.ID,
		UserID:         sub.UserID,
		OrderID:        ev.Get("order_id"),
		ReceiptURL:     ev.Get("receipt_url"),
		PlanName:       ev.Get("plan_name"),
		PaymentMethod:  ev.Get("payment_method"),
		Coupon:         ev.Get("coupon"),
		Country:        ev.Get("country"),
		Currency:       ev.Get("currency"),
	}

	if total, ok := ev.Decimal("sale_gross"); ok {
		payment.Total = total
	}
	if tax, ok := ev.Decimal("payment_tax"); ok {
		payment.Tax = tax
	}
	if fee, ok := ev.Decimal("fee"); ok {
		payment.Fee = fee
	}
	if subtotal, ok := ev.Decimal("subtotal"); ok {
		payment.Subtotal = subtotal
	} else {
		payment.Subtotal = payment.Total.Sub(payment.Tax)
	}

	if quantity, ok := ev.Int("quantity"); ok && quantity > 0 {
		payment.Quantity = quantity
	} else {
		payment.Quantity = 1
	}

	if processedAt, ok := ev.Time("event_time"); ok {
		payment.ProcessedAt = &processedAt
	}

	return payment
}

func (r *Reconciler) passthroughUserID(ctx context.Context, ev Event) (uuid.UUID, bool) {
	pt, err := ev.Passthrough()
	if err != nil {
		r.log.WarnContext(ctx, "creation event without usable passthrough", slog.Any("error", err))
		return uuid.Nil, false
	}

	raw, _ := pt["user_id"].(string)
	if raw == "" {
		r.log.WarnContext(ctx, "creation event passthrough missing user_id")
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(raw)
	if err != nil {
		r.log.WarnContext(ctx, "creation event passthrough carries malformed user_id",
			slog.String("user_id", raw))
		return uuid.Nil, false
	}
	return userID, true
}
