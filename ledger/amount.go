package ledger

import (
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when neither the record nor the configuration names one.
const DefaultCurrency = "EUR"

// ParseAmount converts a textual amount into a decimal. Both "." and "," are
// accepted as decimal separators; spaces and underscores used as thousands
// separators are ignored.
func ParseAmount(value string) (decimal.Decimal, error) {
	cleaned := strings.TrimSpace(value)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount is empty")
	}
	cleaned = strings.NewReplacer(" ", "", "_", "", "\u00a0", "").Replace(cleaned)
	if strings.Contains(cleaned, ",") && !strings.Contains(cleaned, ".") {
		cleaned = strings.ReplaceAll(cleaned, ",", ".")
	} else {
		cleaned = strings.ReplaceAll(cleaned, ",", "")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount value %q: %w", value, err)
	}
	return d, nil
}

// MustParseAmount converts a textual amount to a decimal and panics on error.
// Use only in tests or when you're certain the amount is valid.
func MustParseAmount(value string) decimal.Decimal {
	d, err := ParseAmount(value)
	if err != nil {
		panic(err)
	}
	return d
}

// MinorUnitDigits returns the number of fractional digits of a currency
// (2 for EUR, 0 for JPY). Unknown currencies default to 2.
func MinorUnitDigits(currency string) int32 {
	c := money.GetCurrency(strings.ToUpper(currency))
	if c == nil {
		return 2
	}
	return int32(c.Fraction)
}

// MinorUnit returns the smallest representable amount of a currency,
// e.g. 0.01 for EUR.
func MinorUnit(currency string) decimal.Decimal {
	return decimal.New(1, -MinorUnitDigits(currency))
}

// RoundToMinorUnit rounds an amount to the currency's minor unit using
// banker's rounding, the convention for accounting totals.
func RoundToMinorUnit(amount decimal.Decimal, currency string) decimal.Decimal {
	return amount.RoundBank(MinorUnitDigits(currency))
}

// AmountEqual checks if two amounts are equal within tolerance.
func AmountEqual(a, b decimal.Decimal, tolerance decimal.Decimal) bool {
	diff := a.Sub(b).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// IsKnownCurrency reports whether a currency code is registered in go-money.
func IsKnownCurrency(code string) bool {
	return money.GetCurrency(strings.ToUpper(code)) != nil
}
