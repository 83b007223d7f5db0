package cashier_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paddlekit/cashier/pkg/cashier"
)

func timePtr(t time.Time) *time.Time { return &t }

func TestSubscriptionOnTrial(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("future trial end", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{TrialEndsAt: timePtr(now.Add(time.Hour))}
		assert.True(t, sub.OnTrialAt(now))
	})

	t.Run("no trial", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{}
		assert.False(t, sub.OnTrialAt(now))
	})

	t.Run("trial ending exactly now is over", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{TrialEndsAt: timePtr(now)}
		assert.False(t, sub.OnTrialAt(now))
	})

	t.Run("elapsed trial", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{TrialEndsAt: timePtr(now.Add(-time.Minute))}
		assert.False(t, sub.OnTrialAt(now))
	})
}

func TestSubscriptionActive(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("active status without cancellation", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}
		assert.True(t, sub.ActiveAt(now))
	})

	t.Run("trialing status without cancellation", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusTrialing}
		assert.True(t, sub.ActiveAt(now))
	})

	t.Run("active within grace period", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusActive,
			EndsAt: timePtr(now.Add(24 * time.Hour)),
		}
		assert.True(t, sub.ActiveAt(now))
	})

	t.Run("elapsed grace period ends activity even while trialing", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusTrialing,
			TrialEndsAt: timePtr(now.Add(time.Hour)),
			EndsAt:      timePtr(now.Add(-time.Minute)),
		}
		assert.False(t, sub.ActiveAt(now))
	})

	t.Run("past_due is not active", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusPastDue}
		assert.False(t, sub.ActiveAt(now))
	})

	t.Run("paused is not active", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusPaused}
		assert.False(t, sub.ActiveAt(now))
	})
}

func TestSubscriptionValid(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("cancelled but within grace period", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusCancelled,
			EndsAt: timePtr(now.Add(48 * time.Hour)),
		}
		assert.True(t, sub.ValidAt(now))
		assert.True(t, sub.OnGracePeriodAt(now))
		assert.True(t, sub.Cancelled())
	})

	t.Run("cancelled and grace elapsed", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusCancelled,
			EndsAt: timePtr(now.Add(-time.Hour)),
		}
		assert.False(t, sub.ValidAt(now))
		assert.True(t, sub.Cancelled())
	})

	t.Run("past_due with open trial window stays valid", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusPastDue,
			TrialEndsAt: timePtr(now.Add(time.Hour)),
		}
		assert.True(t, sub.ValidAt(now))
	})
}

func TestSubscriptionRecurring(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("plain active subscription recurs", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}
		assert.True(t, sub.RecurringAt(now))
	})

	t.Run("on trial does not recur", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusTrialing,
			TrialEndsAt: timePtr(now.Add(time.Hour)),
		}
		assert.False(t, sub.RecurringAt(now))
	})

	t.Run("cancelled does not recur", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusActive,
			EndsAt: timePtr(now.Add(time.Hour)),
		}
		assert.False(t, sub.RecurringAt(now))
	})

	t.Run("paused does not recur", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusPaused}
		assert.False(t, sub.RecurringAt(now))
	})
}

func TestSubscriptionCancel(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("cancelling during trial ends at trial end", func(t *testing.T) {
		t.Parallel()
		trialEnd := now.Add(72 * time.Hour)
		sub := &cashier.Subscription{
			Status:      cashier.StatusTrialing,
			TrialEndsAt: timePtr(trialEnd),
		}

		sub.CancelAt(nil, now)

		assert.Equal(t, cashier.StatusCancelled, sub.Status)
		require.NotNil(t, sub.EndsAt)
		assert.True(t, sub.EndsAt.Equal(trialEnd))
		assert.True(t, sub.ValidAt(now), "stays valid through the grace period")
	})

	t.Run("explicit effective date wins outside trial", func(t *testing.T) {
		t.Parallel()
		effective := now.Add(30 * 24 * time.Hour)
		sub := &cashier.Subscription{Status: cashier.StatusActive}

		sub.CancelAt(&effective, now)

		require.NotNil(t, sub.EndsAt)
		assert.True(t, sub.EndsAt.Equal(effective))
	})

	t.Run("no effective date cancels as of now", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}

		sub.CancelAt(nil, now)

		require.NotNil(t, sub.EndsAt)
		assert.True(t, sub.EndsAt.Equal(now))
		assert.False(t, sub.ValidAt(now))
	})

	t.Run("cancel now collapses the grace period", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}

		sub.CancelNow()

		assert.Equal(t, cashier.StatusCancelled, sub.Status)
		assert.False(t, sub.OnGracePeriod())
		assert.False(t, sub.Valid())
	})

	t.Run("cancel now mid-trial keeps the trial running", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusTrialing,
			TrialEndsAt: timePtr(time.Now().UTC().Add(time.Hour)),
		}

		sub.CancelNow()

		assert.Equal(t, cashier.StatusCancelled, sub.Status)
		assert.False(t, sub.OnGracePeriod())
		assert.True(t, sub.OnTrial())
		assert.True(t, sub.Valid())
	})

	t.Run("mark cancelled drops the grace period", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}

		sub.MarkCancelled(now)

		assert.Equal(t, cashier.StatusCancelled, sub.Status)
		assert.False(t, sub.ValidAt(now))
	})
}

func TestSubscriptionResume(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("within grace period returns to active", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusCancelled,
			EndsAt: timePtr(now.Add(24 * time.Hour)),
		}

		require.NoError(t, sub.ResumeAt(now))
		assert.Equal(t, cashier.StatusActive, sub.Status)
		assert.Nil(t, sub.EndsAt)
	})

	t.Run("open trial window returns to trialing", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusCancelled,
			TrialEndsAt: timePtr(now.Add(48 * time.Hour)),
			EndsAt:      timePtr(now.Add(48 * time.Hour)),
		}

		require.NoError(t, sub.ResumeAt(now))
		assert.Equal(t, cashier.StatusTrialing, sub.Status)
		assert.Nil(t, sub.EndsAt)
	})

	t.Run("after grace period fails", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status: cashier.StatusCancelled,
			EndsAt: timePtr(now.Add(-time.Hour)),
		}

		err := sub.ResumeAt(now)
		assert.ErrorIs(t, err, cashier.ErrNotOnGracePeriod)
		assert.Equal(t, cashier.StatusCancelled, sub.Status)
		assert.NotNil(t, sub.EndsAt)
	})

	t.Run("never cancelled fails", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusActive}
		assert.ErrorIs(t, sub.ResumeAt(now), cashier.ErrNotOnGracePeriod)
	})
}

func TestSubscriptionTrialChanges(t *testing.T) {
	t.Parallel()

	t.Run("skip trial clears the window", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{
			Status:      cashier.StatusTrialing,
			TrialEndsAt: timePtr(time.Now().UTC().Add(time.Hour)),
		}

		sub.SkipTrial()
		assert.Nil(t, sub.TrialEndsAt)
		assert.False(t, sub.OnTrial())
	})

	t.Run("extend trial into the future", func(t *testing.T) {
		t.Parallel()
		until := time.Now().UTC().Add(14 * 24 * time.Hour)
		sub := &cashier.Subscription{Status: cashier.StatusTrialing}

		require.NoError(t, sub.ExtendTrial(until))
		require.NotNil(t, sub.TrialEndsAt)
		assert.True(t, sub.TrialEndsAt.Equal(until))
	})

	t.Run("extend trial into the past fails", func(t *testing.T) {
		t.Parallel()
		sub := &cashier.Subscription{Status: cashier.StatusTrialing}
		err := sub.ExtendTrial(time.Now().UTC().Add(-time.Hour))
		assert.ErrorIs(t, err, cashier.ErrTrialDateNotFuture)
		assert.Nil(t, sub.TrialEndsAt)
	})
}

func TestParseStatus(t *testing.T) {
	t.Parallel()

	assert.Equal(t, cashier.StatusCancelled, cashier.ParseStatus("deleted"))
	assert.Equal(t, cashier.StatusActive, cashier.ParseStatus("active"))
	assert.Equal(t, cashier.StatusTrialing, cashier.ParseStatus("trialing"))
	// Unknown provider states pass through unchanged.
	assert.Equal(t, cashier.Status("halted"), cashier.ParseStatus("halted"))
}

func TestSubscriptionIncomplete(t *testing.T) {
	t.Parallel()

	assert.True(t, (&cashier.Subscription{Status: cashier.StatusPastDue}).Incomplete())
	assert.False(t, (&cashier.Subscription{Status: cashier.StatusActive}).Incomplete())
}
