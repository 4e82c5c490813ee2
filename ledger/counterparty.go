package ledger

import (
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// UnassignedCounterparty is the display id of the group collecting entries
// that have no counterparty.
const UnassignedCounterparty = "(unassigned)"

// CounterpartyGroup aggregates the entries of one client or supplier.
// Groups are derived on demand and never mutated.
type CounterpartyGroup struct {
	Counterparty string          `json:"counterparty"`
	Unassigned   bool            `json:"unassigned"`
	Transactions []string        `json:"transactions"`
	TotalDue     decimal.Decimal `json:"total_due"`
	Totals       Totals          `json:"totals"`
	// OldestAgeDays is the largest number of days past due among the
	// group's unpaid entries, nil when none is past due.
	OldestAgeDays *int `json:"oldest_age_days"`
}

// GroupByCounterparty builds one group per distinct counterparty. Entries
// without a counterparty form the unassigned group, listed last. Assigned
// groups are ordered by counterparty id and members newest first, so that
// equal inputs always produce equal output.
func GroupByCounterparty(txns []*Transaction, asOf Date, cfg *Config) []CounterpartyGroup {
	members := make(map[string][]*Transaction)
	var order []string
	for _, t := range txns {
		if _, seen := members[t.Counterparty]; !seen {
			order = append(order, t.Counterparty)
		}
		members[t.Counterparty] = append(members[t.Counterparty], t)
	}

	slices.SortFunc(order, func(a, b string) int {
		switch {
		case a == b:
			return 0
		case a == "":
			return 1
		case b == "":
			return -1
		case a < b:
			return -1
		default:
			return 1
		}
	})

	groups := make([]CounterpartyGroup, 0, len(order))
	for _, counterparty := range order {
		groups = append(groups, buildGroup(counterparty, members[counterparty], asOf, cfg))
	}
	return groups
}

func buildGroup(counterparty string, txns []*Transaction, asOf Date, cfg *Config) CounterpartyGroup {
	ordered := slices.Clone(txns)
	slices.SortStableFunc(ordered, func(a, b *Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		default:
			return 0
		}
	})

	group := CounterpartyGroup{
		Counterparty: counterparty,
		Unassigned:   counterparty == "",
		Transactions: make([]string, len(ordered)),
		TotalDue:     decimal.Zero,
		Totals:       ComputeTotals(ordered),
	}
	if group.Unassigned {
		group.Counterparty = UnassignedCounterparty
	}

	for i, t := range ordered {
		group.Transactions[i] = t.ID
		if t.IsSettled() {
			continue
		}
		group.TotalDue = group.TotalDue.Add(SignedAmount(t))

		if remaining := RemainingDays(t, asOf, cfg); remaining < 0 {
			age := -remaining
			if group.OldestAgeDays == nil || age > *group.OldestAgeDays {
				group.OldestAgeDays = &age
			}
		}
	}
	return group
}

// TotalDue sums the due totals of several groups.
func TotalDue(groups []CounterpartyGroup) decimal.Decimal {
	sum := decimal.Zero
	for _, g := range groups {
		sum = sum.Add(g.TotalDue)
	}
	return sum
}
