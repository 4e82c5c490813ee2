package output

import (
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/ledger"
)

// FormatMoney renders an amount with the currency's symbol, separators and
// number of decimals, e.g. "$1,234.50". Amounts are rounded to the minor
// unit for display only.
func FormatMoney(amount decimal.Decimal, currency string) string {
	cur := money.GetCurrency(strings.ToUpper(currency))
	if cur == nil {
		return amount.StringFixed(2) + " " + currency
	}
	minor := ledger.RoundToMinorUnit(amount, cur.Code).Shift(int32(cur.Fraction))
	return cur.Formatter().Format(minor.IntPart())
}

// FormatSigned is FormatMoney with an explicit "+" on positive amounts.
// Zero is shown as "-".
func FormatSigned(amount decimal.Decimal, currency string) string {
	switch {
	case amount.IsZero():
		return "-"
	case amount.IsPositive():
		return "+" + FormatMoney(amount, currency)
	default:
		return FormatMoney(amount, currency)
	}
}

// FormatPlain renders an amount with exactly the currency's minor unit
// digits and no symbol, e.g. "1234.50". Used for machine-friendly output.
func FormatPlain(amount decimal.Decimal, currency string) string {
	return amount.StringFixedBank(ledger.MinorUnitDigits(currency))
}
