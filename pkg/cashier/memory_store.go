package cashier

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// InMemStore holds subscriptions, payments and customers in memory. It backs
// the package tests and is usable for single-process deployments; durable
// setups should use pgstore. The Subscriptions, Payments and Customers views
// implement the corresponding store interfaces.
//
// A single mutex serializes all mutations, which trivially satisfies the
// single-writer-per-key contract of Mutate. Reads and writes deep-copy so
// callers can't alias internal state.
type InMemStore struct {
	mu        sync.Mutex
	subSeq    int64
	paySeq    int64
	subs      map[int64]*Subscription
	payments  map[int64]*Payment
	customers map[uuid.UUID]*Customer
}

// NewInMemStore returns an empty in-memory store.
func NewInMemStore() *InMemStore {
	return &InMemStore{
		subs:      make(map[int64]*Subscription),
		payments:  make(map[int64]*Payment),
		customers: make(map[uuid.UUID]*Customer),
	}
}

// Subscriptions returns the SubscriptionStore view.
func (s *InMemStore) Subscriptions() SubscriptionStore { return memSubscriptions{s} }

// Payments returns the PaymentStore view.
func (s *InMemStore) Payments() PaymentStore { return memPayments{s} }

// Customers returns the CustomerStore view.
func (s *InMemStore) Customers() CustomerStore { return memCustomers{s} }

type memSubscriptions struct{ store *InMemStore }

func (v memSubscriptions) Create(ctx context.Context, sub *Subscription) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing := s.findByPaddleID(sub.PaddleID); existing != nil {
		// Redelivered creation event: converge on the existing row.
		sub.ID = existing.ID
		sub.CreatedAt = existing.CreatedAt
		sub.UpdatedAt = now
		s.subs[sub.ID] = cloneSubscription(sub)
		return nil
	}

	s.subSeq++
	sub.ID = s.subSeq
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now

	s.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

func (v memSubscriptions) ByPaddleID(ctx context.Context, paddleID string) (*Subscription, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.findByPaddleID(paddleID)
	if sub == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(sub), nil
}

func (v memSubscriptions) Current(ctx context.Context, userID uuid.UUID, name string) (*Subscription, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var current *Subscription
	for _, sub := range s.subs {
		if sub.UserID != userID || sub.Name != name {
			continue
		}
		if current == nil || sub.CreatedAt.After(current.CreatedAt) ||
			(sub.CreatedAt.Equal(current.CreatedAt) && sub.ID > current.ID) {
			current = sub
		}
	}
	if current == nil {
		return nil, ErrSubscriptionNotFound
	}
	return cloneSubscription(current), nil
}

func (v memSubscriptions) ListByUser(ctx context.Context, userID uuid.UUID) ([]*Subscription, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Subscription
	for _, sub := range s.subs {
		if sub.UserID == userID {
			out = append(out, cloneSubscription(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (v memSubscriptions) Save(ctx context.Context, sub *Subscription) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[sub.ID]; !ok {
		return ErrSubscriptionNotFound
	}
	sub.UpdatedAt = time.Now().UTC()
	s.subs[sub.ID] = cloneSubscription(sub)
	return nil
}

func (v memSubscriptions) Delete(ctx context.Context, id int64) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.subs[id]; !ok {
		return ErrSubscriptionNotFound
	}
	s.dropSubscription(id)
	return nil
}

func (v memSubscriptions) Mutate(ctx context.Context, paddleID string, fn func(*Subscription) error) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	sub := s.findByPaddleID(paddleID)
	if sub == nil {
		return ErrSubscriptionNotFound
	}

	work := cloneSubscription(sub)
	if err := fn(work); err != nil {
		if errors.Is(err, ErrDropSubscription) {
			s.dropSubscription(sub.ID)
			return nil
		}
		return err
	}

	work.UpdatedAt = time.Now().UTC()
	s.subs[work.ID] = cloneSubscription(work)
	return nil
}

type memPayments struct{ store *InMemStore }

func (v memPayments) Upsert(ctx context.Context, payment *Payment) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	for _, existing := range s.payments {
		if existing.SubscriptionID == payment.SubscriptionID && existing.OrderID == payment.OrderID {
			payment.ID = existing.ID
			payment.CreatedAt = existing.CreatedAt
			payment.UpdatedAt = now
			s.payments[existing.ID] = clonePayment(payment)
			return nil
		}
	}

	s.paySeq++
	payment.ID = s.paySeq
	payment.CreatedAt = now
	payment.UpdatedAt = now
	s.payments[payment.ID] = clonePayment(payment)
	return nil
}

func (v memPayments) Latest(ctx context.Context, subscriptionID int64) (*Payment, error) {
	list, err := v.ListBySubscription(ctx, subscriptionID)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, ErrPaymentNotFound
	}
	return list[0], nil
}

func (v memPayments) ListBySubscription(ctx context.Context, subscriptionID int64) ([]*Payment, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*Payment
	for _, p := range s.payments {
		if p.SubscriptionID == subscriptionID {
			out = append(out, clonePayment(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ti, tj := paymentOrderTime(out[i]), paymentOrderTime(out[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

type memCustomers struct{ store *InMemStore }

func (v memCustomers) Get(ctx context.Context, userID uuid.UUID) (*Customer, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.customers[userID]
	if !ok {
		return nil, ErrCustomerNotFound
	}
	return cloneCustomer(c), nil
}

func (v memCustomers) ByPaddleID(ctx context.Context, paddleID string) (*Customer, error) {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	if paddleID == "" {
		return nil, ErrCustomerNotFound
	}
	for _, c := range s.customers {
		if c.PaddleID == paddleID {
			return cloneCustomer(c), nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (v memCustomers) Save(ctx context.Context, customer *Customer) error {
	s := v.store
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.customers[customer.UserID]; ok {
		customer.CreatedAt = existing.CreatedAt
	} else if customer.CreatedAt.IsZero() {
		customer.CreatedAt = now
	}
	customer.UpdatedAt = now
	s.customers[customer.UserID] = cloneCustomer(customer)
	return nil
}

// callers must hold s.mu
func (s *InMemStore) findByPaddleID(paddleID string) *Subscription {
	if paddleID == "" {
		return nil
	}
	for _, sub := range s.subs {
		if sub.PaddleID == paddleID {
			return sub
		}
	}
	return nil
}

// callers must hold s.mu
func (s *InMemStore) dropSubscription(id int64) {
	delete(s.subs, id)
	for pid, p := range s.payments {
		if p.SubscriptionID == id {
			delete(s.payments, pid)
		}
	}
}

func paymentOrderTime(p *Payment) time.Time {
	if p.ProcessedAt != nil {
		return *p.ProcessedAt
	}
	return p.CreatedAt
}

func cloneSubscription(s *Subscription) *Subscription {
	c := *s
	c.TrialEndsAt = cloneTime(s.TrialEndsAt)
	c.EndsAt = cloneTime(s.EndsAt)
	return &c
}

func clonePayment(p *Payment) *Payment {
	c := *p
	c.ProcessedAt = cloneTime(p.ProcessedAt)
	return &c
}

func cloneCustomer(c *Customer) *Customer {
	out := *c
	out.TrialEndsAt = cloneTime(c.TrialEndsAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}
