package cashier

// Config carries package-wide settings. The original integration kept these
// as process-wide mutable flags; here they are an explicit value passed into
// the reconciler and facade at construction.
type Config struct {
	// SubscriptionName is the label given to subscriptions created by the
	// webhook reconciler and the default for facade lookups.
	SubscriptionName string `env:"CASHIER_SUBSCRIPTION_NAME" envDefault:"default"`

	// Currency is the default ISO 4217 code for amount formatting.
	Currency string `env:"CASHIER_CURRENCY" envDefault:"USD"`

	// Plans maps application-level plan aliases ("pro") to Paddle plan ids
	// ("593768"). Lookups with unknown aliases pass through unchanged, so
	// callers may use raw plan ids directly.
	Plans map[string]string `env:"CASHIER_PLANS"`
}

// PlanID resolves a plan alias to its Paddle plan id.
func (c Config) PlanID(plan string) string {
	if id, ok := c.Plans[plan]; ok {
		return id
	}
	return plan
}

// Name returns the given subscription name, falling back to the configured
// default when empty.
func (c Config) Name(name string) string {
	if name != "" {
		return name
	}
	if c.SubscriptionName != "" {
		return c.SubscriptionName
	}
	return "default"
}
