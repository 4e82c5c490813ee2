package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultPaymentTermDays is the payment term applied when an entry has no
// explicit due date and its counterparty has no specific terms.
const DefaultPaymentTermDays = 30

// Config holds the engine settings that callers supply explicitly. Nothing
// in the ledger reads ambient or global state.
type Config struct {
	// Currency is assigned to records that do not name one.
	Currency string

	// Tolerance is the largest residual for which a reconciliation group is
	// still considered balanced. Zero means one minor unit of the group's
	// currency.
	Tolerance decimal.Decimal

	// PaymentTermDays is the default delay between an entry's date and its
	// due date.
	PaymentTermDays int

	// CounterpartyTerms overrides PaymentTermDays per counterparty id.
	CounterpartyTerms map[string]int
}

// NewConfig creates a Config with defaults: EUR, one minor unit of
// tolerance and 30 days payment terms.
func NewConfig() *Config {
	return &Config{
		Currency:          DefaultCurrency,
		Tolerance:         decimal.Zero,
		PaymentTermDays:   DefaultPaymentTermDays,
		CounterpartyTerms: make(map[string]int),
	}
}

// Validate checks the configuration for inconsistent values.
func (c *Config) Validate() error {
	if c.Tolerance.IsNegative() {
		return fmt.Errorf("tolerance %s must not be negative", c.Tolerance)
	}
	if c.PaymentTermDays < 0 {
		return fmt.Errorf("payment terms %d must not be negative", c.PaymentTermDays)
	}
	for counterparty, days := range c.CounterpartyTerms {
		if days < 0 {
			return fmt.Errorf("payment terms %d for %s must not be negative", days, counterparty)
		}
	}
	if !IsKnownCurrency(c.Currency) {
		return fmt.Errorf("unknown currency %q", c.Currency)
	}
	return nil
}

// PaymentTerms returns the payment delay in days for a counterparty.
func (c *Config) PaymentTerms(counterparty string) int {
	if c == nil {
		return DefaultPaymentTermDays
	}
	if days, ok := c.CounterpartyTerms[counterparty]; ok {
		return days
	}
	return c.PaymentTermDays
}

// ToleranceFor returns the reconciliation tolerance for a currency.
func (c *Config) ToleranceFor(currency string) decimal.Decimal {
	if c == nil || c.Tolerance.IsZero() {
		return MinorUnit(currency)
	}
	return c.Tolerance
}

// Side tells which way round a balance should be read. The engine computes
// the same numbers for both; only their business meaning differs.
type Side int

const (
	// SideClient reads a positive balance as money owed to the ledger owner.
	SideClient Side = iota
	// SideSupplier reads a positive balance as money owed by the ledger owner.
	SideSupplier
)

// ParseSide parses "client" or "supplier" (case-insensitive).
func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "client", "customer", "receivable":
		return SideClient, nil
	case "supplier", "vendor", "payable":
		return SideSupplier, nil
	default:
		return SideClient, fmt.Errorf("invalid side %q, expected client or supplier", s)
	}
}

// String returns "client" or "supplier".
func (s Side) String() string {
	if s == SideSupplier {
		return "supplier"
	}
	return "client"
}

// MarshalText encodes the side by name.
func (s Side) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a side name.
func (s *Side) UnmarshalText(data []byte) error {
	parsed, err := ParseSide(string(data))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Describe returns the business reading of a balance from this side.
func (s Side) Describe(balance decimal.Decimal) string {
	switch {
	case balance.IsZero():
		return "settled"
	case s == SideClient && balance.IsPositive():
		return "receivable"
	case s == SideClient:
		return "client credit"
	case balance.IsPositive():
		return "payable"
	default:
		return "supplier credit"
	}
}

// contextKey is a private type to avoid key collisions in context.
type contextKey struct{}

// WithContext returns a new context with the Config attached.
func (c *Config) WithContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// ConfigFromContext retrieves the Config from context.
// Returns a default Config if not found.
func ConfigFromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(contextKey{}).(*Config); ok {
		return cfg
	}
	return NewConfig()
}
