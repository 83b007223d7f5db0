package cashier

import (
	"time"

	"github.com/google/uuid"
)

// Subscription is one named subscription instance owned by a user. A user may
// hold several named subscriptions ("default", "addons", ...); the effective
// one for a name is the most recently created matching row.
type Subscription struct {
	ID     int64
	UserID uuid.UUID
	Name   string

	// Provider linkage. CancelURL and UpdateURL are opaque links surfaced to
	// the user, never interpreted locally.
	PaddleID     string
	PaddlePlanID string
	CancelURL    string
	UpdateURL    string

	Status   Status
	Quantity int

	// TrialEndsAt in the future means the subscription is on trial regardless
	// of Status. EndsAt set means cancelled or within the grace period.
	TrialEndsAt *time.Time
	EndsAt      *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OnTrial reports whether the trial window is still open.
func (s *Subscription) OnTrial() bool {
	return s.OnTrialAt(time.Now().UTC())
}

// OnTrialAt is the fixed-clock variant of OnTrial. The comparison is strict:
// a trial ending exactly at now is over.
func (s *Subscription) OnTrialAt(now time.Time) bool {
	return s.TrialEndsAt != nil && s.TrialEndsAt.After(now)
}

// OnGracePeriod reports whether a cancellation has been recorded but its
// effective time has not elapsed yet.
func (s *Subscription) OnGracePeriod() bool {
	return s.OnGracePeriodAt(time.Now().UTC())
}

// OnGracePeriodAt is the fixed-clock variant of OnGracePeriod.
func (s *Subscription) OnGracePeriodAt(now time.Time) bool {
	return s.EndsAt != nil && s.EndsAt.After(now)
}

// Active reports whether the subscription is in a paying or trialing state
// whose cancellation, if any, has not taken effect.
func (s *Subscription) Active() bool {
	return s.ActiveAt(time.Now().UTC())
}

// ActiveAt is the fixed-clock variant of Active. The grace-period check
// applies to trialing subscriptions as well: once EndsAt elapses nothing is
// active, whatever the reported status.
func (s *Subscription) ActiveAt(now time.Time) bool {
	if s.Status != StatusActive && s.Status != StatusTrialing {
		return false
	}
	return s.EndsAt == nil || s.OnGracePeriodAt(now)
}

// Valid reports whether the subscription entitles the user to service:
// active, on trial, or inside a cancellation grace period.
func (s *Subscription) Valid() bool {
	return s.ValidAt(time.Now().UTC())
}

// ValidAt is the fixed-clock variant of Valid.
func (s *Subscription) ValidAt(now time.Time) bool {
	return s.ActiveAt(now) || s.OnTrialAt(now) || s.OnGracePeriodAt(now)
}

// Cancelled reports whether a cancellation has been recorded, effective or
// pending.
func (s *Subscription) Cancelled() bool {
	return s.EndsAt != nil || s.Status == StatusCancelled
}

// PastDue reports whether the latest payment attempt failed.
func (s *Subscription) PastDue() bool {
	return s.Status == StatusPastDue
}

// Paused reports whether the provider has paused collection.
func (s *Subscription) Paused() bool {
	return s.Status == StatusPaused
}

// Recurring reports whether the subscription is billing normally: not on
// trial, not cancelled, not paused.
func (s *Subscription) Recurring() bool {
	return s.RecurringAt(time.Now().UTC())
}

// RecurringAt is the fixed-clock variant of Recurring.
func (s *Subscription) RecurringAt(now time.Time) bool {
	return !s.OnTrialAt(now) && !s.Cancelled() && !s.Paused()
}

// Incomplete reports whether the most recent payment requires action before
// the subscription can be considered settled. Quantity and plan changes are
// rejected in this state.
func (s *Subscription) Incomplete() bool {
	return s.PastDue()
}

// Cancel records a cancellation effective at effectiveAt, or immediately when
// nil. A subscription cancelled during its trial keeps the trial end as the
// grace-period boundary. The subscription stays Valid until EndsAt elapses.
func (s *Subscription) Cancel(effectiveAt *time.Time) {
	s.CancelAt(effectiveAt, time.Now().UTC())
}

// CancelAt is the fixed-clock variant of Cancel.
func (s *Subscription) CancelAt(effectiveAt *time.Time, now time.Time) {
	s.Status = StatusCancelled

	switch {
	case s.OnTrialAt(now):
		end := *s.TrialEndsAt
		s.EndsAt = &end
	case effectiveAt != nil:
		end := *effectiveAt
		s.EndsAt = &end
	default:
		s.EndsAt = &now
	}
}

// CancelNow cancels and collapses the grace period so the subscription is
// invalid immediately.
func (s *Subscription) CancelNow() {
	now := time.Now().UTC()
	s.CancelAt(nil, now)
	s.EndsAt = &now
}

// MarkCancelled force-marks the subscription cancelled as of now without any
// grace period. Used for provider-side hard cancellations.
func (s *Subscription) MarkCancelled(now time.Time) {
	s.Status = StatusCancelled
	end := now
	s.EndsAt = &end
}

// Resume clears a pending cancellation. It is only legal while the grace
// period is open; afterwards the subscription is gone on the provider side
// and a new one must be created.
func (s *Subscription) Resume() error {
	return s.ResumeAt(time.Now().UTC())
}

// ResumeAt is the fixed-clock variant of Resume. On success EndsAt is cleared
// and the status returns to trialing or active depending on whether the trial
// window is still open.
func (s *Subscription) ResumeAt(now time.Time) error {
	if !s.OnGracePeriodAt(now) {
		return ErrNotOnGracePeriod
	}

	if s.OnTrialAt(now) {
		s.Status = StatusTrialing
	} else {
		s.Status = StatusActive
	}
	s.EndsAt = nil

	return nil
}

// SkipTrial ends the trial immediately. Must be combined with a persisting
// operation to take effect.
func (s *Subscription) SkipTrial() {
	s.TrialEndsAt = nil
}

// ExtendTrial moves the trial end to a future date.
func (s *Subscription) ExtendTrial(until time.Time) error {
	if !until.After(time.Now().UTC()) {
		return ErrTrialDateNotFuture
	}
	t := until
	s.TrialEndsAt = &t
	return nil
}
