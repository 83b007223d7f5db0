// Package pgstore implements the cashier store interfaces on PostgreSQL
// using pgx. Mutate serializes writers per subscription with a row-level
// lock (SELECT ... FOR UPDATE); payment upserts rely on the unique
// (subscription_id, paddle_order_id) constraint. Schema migrations live in
// the migrations directory and are applied with pg.Migrate.
package pgstore

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/paddlekit/cashier/pkg/cashier"
)

// Store bundles the three persistence views over one connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a store on an established pool. Panics on a nil pool to fail
// fast during initialization.
func New(pool *pgxpool.Pool) *Store {
	if pool == nil {
		panic("pgstore: pgxpool.Pool is required")
	}
	return &Store{pool: pool}
}

// Subscriptions returns the SubscriptionStore view.
func (s *Store) Subscriptions() cashier.SubscriptionStore { return subscriptions{s.pool} }

// Payments returns the PaymentStore view.
func (s *Store) Payments() cashier.PaymentStore { return payments{s.pool} }

// Customers returns the CustomerStore view.
func (s *Store) Customers() cashier.CustomerStore { return customers{s.pool} }
