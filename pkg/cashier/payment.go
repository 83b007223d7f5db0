package cashier

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Payment is one ledger entry per provider-side charge, attached to a
// subscription. OrderID is the natural idempotency key within a subscription:
// redelivered payment alerts upsert, they never duplicate rows.
type Payment struct {
	ID             int64
	SubscriptionID int64
	UserID         uuid.UUID // denormalized owner reference

	OrderID       string
	ReceiptURL    string
	PlanName      string
	PaymentMethod string
	Coupon        string // empty when no coupon was applied
	Country       string
	Currency      string

	// Monetary breakdown in the provider's reported currency. All values are
	// non-negative; Subtotal excludes tax, Total is the gross charge, Fee is
	// the provider's cut.
	Subtotal decimal.Decimal
	Tax      decimal.Decimal
	Fee      decimal.Decimal
	Total    decimal.Decimal

	Quantity    int
	ProcessedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FormatAmount renders a decimal amount with its ISO 4217 currency code,
// e.g. "USD 49.99". Locale-aware formatting is the application's concern.
func FormatAmount(amount decimal.Decimal, currency string) string {
	return strings.ToUpper(currency) + " " + amount.StringFixed(2)
}
