package cashier

import (
	"context"

	"github.com/google/uuid"
)

// SubscriptionStore is the persistence contract for subscriptions.
//
// Webhook deliveries for the same subscription may race; every mutation the
// reconciler performs goes through Mutate, whose implementations must
// guarantee a single writer per provider subscription id (row lock, keyed
// mutex or equivalent).
type SubscriptionStore interface {
	// Create persists a new subscription and assigns its ID. When a row with
	// the same provider id already exists the row is updated in place, so a
	// redelivered creation event converges instead of duplicating.
	Create(ctx context.Context, sub *Subscription) error

	// ByPaddleID returns the subscription with the given provider id.
	// Returns ErrSubscriptionNotFound when absent.
	ByPaddleID(ctx context.Context, paddleID string) (*Subscription, error)

	// Current resolves the effective subscription for (user, name): the most
	// recently created matching row, ties broken by insertion order.
	// Returns ErrSubscriptionNotFound when the user has none by that name.
	Current(ctx context.Context, userID uuid.UUID, name string) (*Subscription, error)

	// ListByUser returns all of the user's subscriptions, newest first.
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error)

	// Save persists changes to an existing subscription.
	Save(ctx context.Context, sub *Subscription) error

	// Delete removes a subscription row and its dependent payments.
	Delete(ctx context.Context, id int64) error

	// Mutate loads the subscription with the given provider id, applies fn
	// and persists the result, all under a single-writer-per-key guarantee.
	// fn may return ErrDropSubscription to delete the row instead. Returns
	// ErrSubscriptionNotFound when no row matches.
	Mutate(ctx context.Context, paddleID string, fn func(*Subscription) error) error
}

// PaymentStore is the persistence contract for the payment ledger.
type PaymentStore interface {
	// Upsert inserts or updates a payment keyed by (SubscriptionID, OrderID).
	Upsert(ctx context.Context, payment *Payment) error

	// Latest returns the most recent payment for a subscription.
	// Returns ErrPaymentNotFound when none exist.
	Latest(ctx context.Context, subscriptionID int64) (*Payment, error)

	// ListBySubscription returns a subscription's payments, newest first.
	ListBySubscription(ctx context.Context, subscriptionID int64) ([]*Payment, error)
}

// CustomerStore is the persistence contract for user/Paddle-customer links.
type CustomerStore interface {
	// Get returns the customer record for a user.
	// Returns ErrCustomerNotFound when absent.
	Get(ctx context.Context, userID uuid.UUID) (*Customer, error)

	// ByPaddleID returns the customer with the given Paddle customer id.
	// Returns ErrCustomerNotFound when absent.
	ByPaddleID(ctx context.Context, paddleID string) (*Customer, error)

	// Save creates or updates a customer record keyed by UserID.
	Save(ctx context.Context, customer *Customer) error
}
