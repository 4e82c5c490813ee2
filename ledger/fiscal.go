package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// FiscalPeriod is one calendar-year exercise. OpeningBalance is the previous
// period's ClosingBalance (report à nouveau).
type FiscalPeriod struct {
	Year           int             `json:"year"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	Totals         Totals          `json:"totals"`
	Transactions   []*Transaction  `json:"transactions"`
}

// Chain is an ordered run of consecutive fiscal periods, oldest first.
type Chain struct {
	Periods []FiscalPeriod `json:"periods"`
}

// Partition splits txns by calendar year and chains the balances from
// opening, the opening balance of the earliest year present. Every year
// between the first and the last gets a period, empty years included, so
// the carry-forward chain has no holes.
func Partition(txns []*Transaction, opening decimal.Decimal) Chain {
	byYear := make(map[int][]*Transaction)
	for _, t := range txns {
		byYear[t.Date.Year()] = append(byYear[t.Date.Year()], t)
	}
	if len(byYear) == 0 {
		return Chain{}
	}

	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)
	first, last := years[0], years[len(years)-1]

	periods := make([]FiscalPeriod, 0, last-first+1)
	balance := opening
	for y := first; y <= last; y++ {
		p := newPeriod(y, byYear[y])
		p.OpeningBalance = balance
		p.ClosingBalance = balance.Add(p.Totals.Balance)
		balance = p.ClosingBalance
		periods = append(periods, p)
	}
	return Chain{Periods: periods}
}

// newPeriod builds a period without balances, entries ordered oldest first.
func newPeriod(year int, txns []*Transaction) FiscalPeriod {
	ordered := slices.Clone(txns)
	slices.SortStableFunc(ordered, func(a, b *Transaction) int {
		return a.Date.Compare(b.Date)
	})
	if ordered == nil {
		ordered = []*Transaction{}
	}
	return FiscalPeriod{
		Year:         year,
		Totals:       ComputeTotals(ordered),
		Transactions: ordered,
	}
}

// FirstYear returns the earliest year of the chain, or 0 when empty.
func (c Chain) FirstYear() int {
	if len(c.Periods) == 0 {
		return 0
	}
	return c.Periods[0].Year
}

// Period returns the period of a year.
func (c Chain) Period(year int) (FiscalPeriod, bool) {
	for _, p := range c.Periods {
		if p.Year == year {
			return p, true
		}
	}
	return FiscalPeriod{}, false
}

// Closing returns the closing balance of the latest period, or zero.
func (c Chain) Closing() decimal.Decimal {
	if len(c.Periods) == 0 {
		return decimal.Zero
	}
	return c.Periods[len(c.Periods)-1].ClosingBalance
}

// Prepend extends the chain with one older year of transactions, as
// fetched when history is loaded lazily. Only the new period and any gap
// years between it and the current first period are computed; they are
// derived backwards from the current first opening balance, so no existing
// period changes. older must hold entries of a single year strictly before
// the chain's first year.
func (c Chain) Prepend(older []*Transaction) (Chain, error) {
	if len(older) == 0 {
		return c, nil
	}
	if len(c.Periods) == 0 {
		return Partition(older, decimal.Zero), nil
	}

	year := older[0].Date.Year()
	for _, t := range older {
		if t.Date.Year() != year {
			return c, NewValidationError(t.ID, "date",
				fmt.Sprintf("older batch mixes years %d and %d", year, t.Date.Year()))
		}
	}
	first := c.FirstYear()
	if year >= first {
		return c, NewValidationError(older[0].ID, "date",
			fmt.Sprintf("year %d is not older than the first period %d", year, first))
	}

	carried := c.Periods[0].OpeningBalance
	p := newPeriod(year, older)
	p.ClosingBalance = carried
	p.OpeningBalance = carried.Sub(p.Totals.Balance)

	prefix := make([]FiscalPeriod, 0, first-year)
	prefix = append(prefix, p)
	for y := year + 1; y < first; y++ {
		gap := newPeriod(y, nil)
		gap.OpeningBalance = carried
		gap.ClosingBalance = carried
		prefix = append(prefix, gap)
	}

	periods := make([]FiscalPeriod, 0, len(prefix)+len(c.Periods))
	periods = append(periods, prefix...)
	periods = append(periods, c.Periods...)
	return Chain{Periods: periods}, nil
}
