// Package cashier binds an application's user model to Paddle's classic
// subscription billing. It reconciles inbound webhook alerts into local
// subscription and payment records, exposes derived billing state through a
// read-only facade, and performs application-initiated changes (plan swaps,
// cancellations, quantity updates, refunds) through a provider gateway.
//
// # Architecture
//
// Three collaborators cover the three directions state can flow:
//
//   - Reconciler — inbound: applies webhook events idempotently under
//     at-least-once, unordered delivery. Never calls the gateway.
//   - Service — outbound: application-initiated transitions that must reach
//     Paddle synchronously before local state changes.
//   - Billable — sideways: read-only derived queries (Subscribed, OnTrial,
//     OnPlan, ...) for the hosting application.
//
// Persistence is abstracted behind SubscriptionStore, PaymentStore and
// CustomerStore. The package ships an in-memory implementation; pgstore
// provides a PostgreSQL-backed one with row-level locking.
//
// # Webhook processing
//
// Mount the webhook endpoint and feed it Paddle's alerts:
//
//	store := cashier.NewInMemStore()
//	rec := cashier.NewReconciler(cfg,
//		store.Subscriptions(), store.Payments(), store.Customers(),
//		cashier.WithLogger(log),
//	)
//
//	r := chi.NewRouter()
//	r.Mount("/paddle", cashier.Routes(rec, log))
//
// The endpoint always acknowledges with a 200: Paddle retries on anything
// else, and conditions like an unknown user or an unrecognized alert type
// never resolve through retries. Processing failures are logged, not
// surfaced.
//
// # Application-initiated changes
//
//	gateway, err := cashier.NewPaddleGateway(paddleCfg)
//	svc := cashier.NewService(cfg, store.Subscriptions(), gateway)
//
//	sub, _ := billable.Subscription(ctx, "default")
//	if err := svc.Swap(ctx, sub, "pro", cashier.SwapOptions{}); err != nil { ... }
//
// These calls surface gateway failures and precondition violations
// (ErrIncompleteSubscription, ErrNotOnGracePeriod) as errors the caller must
// handle.
//
// # Concurrency
//
// Paddle may deliver events for the same subscription concurrently and out
// of order. Stores serialize writers per subscription key (Mutate), and
// handlers re-derive state from the payload rather than from assumed prior
// state, so redelivery and reordering converge. Without a provider-side
// version number a genuinely stale final state remains possible; that is an
// accepted limitation of the provider's contract.
package cashier
