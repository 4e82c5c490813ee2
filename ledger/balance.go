package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// Totals aggregates a set of entries. Balance is always exactly
// TotalDebits - TotalCredits.
type Totals struct {
	TotalDebits  decimal.Decimal `json:"total_debits"`
	TotalCredits decimal.Decimal `json:"total_credits"`
	Balance      decimal.Decimal `json:"balance"`
	Count        int             `json:"count"`
}

// ComputeTotals sums debit-flavored and credit-flavored amounts separately.
// What a positive balance means is for the caller to decide (see Side).
func ComputeTotals(txns []*Transaction) Totals {
	debits := decimal.Zero
	credits := decimal.Zero
	for _, t := range txns {
		signed := SignedAmount(t)
		if signed.IsNegative() {
			credits = credits.Add(signed.Neg())
		} else {
			debits = debits.Add(signed)
		}
	}
	return Totals{
		TotalDebits:  debits,
		TotalCredits: credits,
		Balance:      debits.Sub(credits),
		Count:        len(txns),
	}
}

// ProgressiveBalances computes the running balance after each entry.
// txns must be ordered newest first, as displayed; accumulation runs from
// the oldest entry to the newest.
func ProgressiveBalances(txns []*Transaction) map[string]decimal.Decimal {
	return ProgressiveBalancesFrom(decimal.Zero, txns)
}

// ProgressiveBalancesFrom is ProgressiveBalances starting from an opening
// balance, used for timelines that begin inside a longer history.
func ProgressiveBalancesFrom(opening decimal.Decimal, txns []*Transaction) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(txns))
	running := opening
	for i := len(txns) - 1; i >= 0; i-- {
		t := txns[i]
		running = running.Add(SignedAmount(t))
		balances[t.ID] = running
	}
	return balances
}

// TimelineEntry is one row of the timeline: an entry and the balance right
// after it.
type TimelineEntry struct {
	Transaction *Transaction    `json:"transaction"`
	Signed      decimal.Decimal `json:"signed_amount"`
	Balance     decimal.Decimal `json:"balance"`
	Status      Status          `json:"status"`
}

// SortNewestFirst sorts entries by date descending. Entries sharing a date
// keep their relative input order, so re-sorting is deterministic.
func SortNewestFirst(txns []*Transaction) {
	slices.SortStableFunc(txns, func(a, b *Transaction) int {
		return b.Date.Compare(a.Date)
	})
}

// Timeline orders a copy of txns newest first and pairs each entry with its
// progressive balance and its status as seen on asOf.
func Timeline(txns []*Transaction, opening decimal.Decimal, asOf Date, cfg *Config) []TimelineEntry {
	ordered := slices.Clone(txns)
	SortNewestFirst(ordered)

	balances := ProgressiveBalancesFrom(opening, ordered)
	entries := make([]TimelineEntry, len(ordered))
	for i, t := range ordered {
		entries[i] = TimelineEntry{
			Transaction: t,
			Signed:      SignedAmount(t),
			Balance:     balances[t.ID],
			Status:      EffectiveStatus(t, asOf, cfg),
		}
	}
	return entries
}
