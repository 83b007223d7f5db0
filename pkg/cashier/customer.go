package cashier

import (
	"time"

	"github.com/google/uuid"
)

// Customer binds an application user to their Paddle customer record. It also
// carries the customer-level "generic" trial that may run before any
// subscription exists.
type Customer struct {
	UserID      uuid.UUID
	PaddleID    string // Paddle's customer identifier, set on first subscription_created
	TrialEndsAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// OnGenericTrial reports whether the customer-level trial is still open.
func (c *Customer) OnGenericTrial() bool {
	return c.OnGenericTrialAt(time.Now().UTC())
}

// OnGenericTrialAt is the fixed-clock variant of OnGenericTrial.
func (c *Customer) OnGenericTrialAt(now time.Time) bool {
	return c.TrialEndsAt != nil && c.TrialEndsAt.After(now)
}

// HasPaddleID reports whether the customer is known to Paddle yet.
func (c *Customer) HasPaddleID() bool {
	return c.PaddleID != ""
}
