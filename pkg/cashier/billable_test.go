package cashier_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddlekit/cashier/pkg/cashier"
)

func newBillable(t *testing.T, userID uuid.UUID, config cashier.Config) (*cashier.Billable, *cashier.InMemStore) {
	t.Helper()

	store := cashier.NewInMemStore()
	b := cashier.NewBillable(userID, config, store.Subscriptions(), store.Payments(), store.Customers())
	return b, store
}

func TestBillableSubscription(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("resolves the most recent row for a name", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{})

		older := &cashier.Subscription{
			UserID:    userID,
			Name:      "default",
			PaddleID:  "sub_old",
			Status:    cashier.StatusCancelled,
			Quantity:  1,
			CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		}
		newer := &cashier.Subscription{
			UserID:    userID,
			Name:      "default",
			PaddleID:  "sub_new",
			Status:    cashier.StatusActive,
			Quantity:  1,
			CreatedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, store.Subscriptions().Create(ctx, older))
		require.NoError(t, store.Subscriptions().Create(ctx, newer))

		sub, err := b.Subscription(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, "sub_new", sub.PaddleID)
	})

	t.Run("empty name uses the configured default", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{SubscriptionName: "main"})

		require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
			UserID:   userID,
			Name:     "main",
			PaddleID: "sub_1",
			Status:   cashier.StatusActive,
			Quantity: 1,
		}))

		sub, err := b.Subscription(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, "sub_1", sub.PaddleID)
	})

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()

		b, _ := newBillable(t, uuid.New(), cashier.Config{})
		_, err := b.Subscription(ctx, "default")
		assert.ErrorIs(t, err, cashier.ErrSubscriptionNotFound)
	})
}

func TestBillableSubscribed(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	config := cashier.Config{Plans: map[string]string{"pro": "plan_900"}}

	seed := func(t *testing.T, status cashier.Status) (*cashier.Billable, uuid.UUID) {
		t.Helper()

		userID := uuid.New()
		b, store := newBillable(t, userID, config)
		require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
			UserID:       userID,
			Name:         "default",
			PaddleID:     "sub_1",
			PaddlePlanID: "plan_900",
			Status:       status,
			Quantity:     1,
		}))
		return b, userID
	}

	t.Run("valid subscription", func(t *testing.T) {
		t.Parallel()

		b, _ := seed(t, cashier.StatusActive)
		ok, err := b.Subscribed(ctx, "default", "")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("plan alias must match", func(t *testing.T) {
		t.Parallel()

		b, _ := seed(t, cashier.StatusActive)

		ok, err := b.Subscribed(ctx, "default", "pro")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = b.Subscribed(ctx, "default", "enterprise")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no subscription means not subscribed", func(t *testing.T) {
		t.Parallel()

		b, _ := newBillable(t, uuid.New(), config)
		ok, err := b.Subscribed(ctx, "default", "")
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBillableOnTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	userID := uuid.New()
	b, store := newBillable(t, userID, cashier.Config{Plans: map[string]string{"pro": "plan_900"}})

	require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
		UserID:       userID,
		Name:         "default",
		PaddleID:     "sub_1",
		PaddlePlanID: "plan_900",
		Status:       cashier.StatusTrialing,
		Quantity:     1,
		TrialEndsAt:  timePtr(time.Now().UTC().Add(48 * time.Hour)),
	}))

	ok, err := b.OnTrial(ctx, "default", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.OnTrial(ctx, "default", "pro")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.OnTrial(ctx, "default", "enterprise")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBillableOnGenericTrial(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("customer-level trial before any subscription", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{})

		require.NoError(t, store.Customers().Save(ctx, &cashier.Customer{
			UserID:      userID,
			TrialEndsAt: timePtr(time.Now().UTC().Add(7 * 24 * time.Hour)),
		}))

		ok, err := b.OnGenericTrial(ctx)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("no customer record", func(t *testing.T) {
		t.Parallel()

		b, _ := newBillable(t, uuid.New(), cashier.Config{})
		ok, err := b.OnGenericTrial(ctx)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestBillableOnPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	userID := uuid.New()
	b, store := newBillable(t, userID, cashier.Config{Plans: map[string]string{"pro": "plan_900"}})

	require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
		UserID:       userID,
		Name:         "addons",
		PaddleID:     "sub_2",
		PaddlePlanID: "plan_900",
		Status:       cashier.StatusActive,
		Quantity:     1,
	}))
	require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
		UserID:       userID,
		Name:         "default",
		PaddleID:     "sub_1",
		PaddlePlanID: "plan_7",
		Status:       cashier.StatusCancelled,
		Quantity:     1,
	}))

	// The plan is held under any name as long as the subscription is valid.
	ok, err := b.OnPlan(ctx, "pro")
	require.NoError(t, err)
	assert.True(t, ok)

	// plan_7 exists but its subscription is no longer valid.
	ok, err = b.OnPlan(ctx, "plan_7")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBillableSubscribedToPlan(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	userID := uuid.New()
	b, store := newBillable(t, userID, cashier.Config{Plans: map[string]string{
		"pro":        "plan_900",
		"enterprise": "plan_901",
	}})

	require.NoError(t, store.Subscriptions().Create(ctx, &cashier.Subscription{
		UserID:       userID,
		Name:         "default",
		PaddleID:     "sub_1",
		PaddlePlanID: "plan_901",
		Status:       cashier.StatusActive,
		Quantity:     1,
	}))

	ok, err := b.SubscribedToPlan(ctx, []string{"pro", "enterprise"}, "default")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = b.SubscribedToPlan(ctx, []string{"pro"}, "default")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestBillablePayments(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("latest payment", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{})

		sub := seedSubscription(t, store, &cashier.Subscription{
			UserID:   userID,
			Name:     "default",
			PaddleID: "sub_1",
			Status:   cashier.StatusActive,
			Quantity: 1,
		})

		older := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
		newer := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, store.Payments().Upsert(ctx, &cashier.Payment{
			SubscriptionID: sub.ID,
			UserID:         userID,
			OrderID:        "ord_1",
			Total:          decimal.RequireFromString("49.99"),
			Quantity:       1,
			ProcessedAt:    &older,
		}))
		require.NoError(t, store.Payments().Upsert(ctx, &cashier.Payment{
			SubscriptionID: sub.ID,
			UserID:         userID,
			OrderID:        "ord_2",
			Total:          decimal.RequireFromString("49.99"),
			Quantity:       1,
			ProcessedAt:    &newer,
		}))

		payment, err := b.LatestPayment(ctx, "default")
		require.NoError(t, err)
		assert.Equal(t, "ord_2", payment.OrderID)
	})

	t.Run("no payments", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{})

		seedSubscription(t, store, &cashier.Subscription{
			UserID:   userID,
			Name:     "default",
			PaddleID: "sub_1",
			Status:   cashier.StatusActive,
			Quantity: 1,
		})

		_, err := b.LatestPayment(ctx, "default")
		assert.ErrorIs(t, err, cashier.ErrPaymentNotFound)
	})

	t.Run("incomplete payment surfaces through the facade", func(t *testing.T) {
		t.Parallel()

		userID := uuid.New()
		b, store := newBillable(t, userID, cashier.Config{})

		seedSubscription(t, store, &cashier.Subscription{
			UserID:   userID,
			Name:     "default",
			PaddleID: "sub_1",
			Status:   cashier.StatusPastDue,
			Quantity: 1,
		})

		ok, err := b.HasIncompletePayment(ctx, "default")
		require.NoError(t, err)
		assert.True(t, ok)
	})
}

func TestBillableHasPaddleID(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	userID := uuid.New()
	b, store := newBillable(t, userID, cashier.Config{})

	ok, err := b.HasPaddleID(ctx)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Customers().Save(ctx, &cashier.Customer{
		UserID:   userID,
		PaddleID: "pcust_55",
	}))

	ok, err = b.HasPaddleID(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestFormatAmount(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "USD 49.99", cashier.FormatAmount(decimal.RequireFromString("49.99"), "usd"))
	assert.Equal(t, "EUR 10.00", cashier.FormatAmount(decimal.RequireFromString("10"), "EUR"))
}
