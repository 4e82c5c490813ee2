package ledger

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

var (
	propertyKinds        = []Kind{KindInvoice, KindPayment, KindCreditNote, KindExpense}
	propertyStatuses     = []Status{StatusPending, StatusPartial, StatusPaid, StatusOverdue}
	propertyCounterparty = []string{"", "ACME", "Globex", "Initech"}
)

// randomTransactions generates n entries spread over 2021-2024 with cent
// amounts, so sums exercise exact decimal arithmetic.
func randomTransactions(rng *rand.Rand, n int) []*Transaction {
	txns := make([]*Transaction, n)
	start := MustDate("2021-01-01")
	for i := range txns {
		cents := rng.Int63n(10_000_000) + 1
		txns[i] = &Transaction{
			ID:           fmt.Sprintf("T-%04d", i),
			Date:         start.AddDays(rng.Intn(4 * 365)),
			Amount:       decimal.New(cents, -2),
			Currency:     DefaultCurrency,
			Kind:         propertyKinds[rng.Intn(len(propertyKinds))],
			Status:       propertyStatuses[rng.Intn(len(propertyStatuses))],
			Counterparty: propertyCounterparty[rng.Intn(len(propertyCounterparty))],
		}
	}
	return txns
}

func TestBalanceProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for round := 0; round < 50; round++ {
		txns := randomTransactions(rng, 1+rng.Intn(200))

		totals := ComputeTotals(txns)
		assert.True(t, totals.TotalDebits.Sub(totals.TotalCredits).Equal(totals.Balance),
			"round %d: debits %s - credits %s != balance %s", round, totals.TotalDebits, totals.TotalCredits, totals.Balance)

		ordered := slices.Clone(txns)
		SortNewestFirst(ordered)
		balances := ProgressiveBalances(ordered)
		assert.True(t, balances[ordered[0].ID].Equal(totals.Balance),
			"round %d: newest balance %s != total %s", round, balances[ordered[0].ID], totals.Balance)

		timeline := Timeline(txns, decimal.Zero, MustDate("2025-01-01"), nil)
		assert.True(t, timeline[0].Balance.Equal(totals.Balance))
	}
}

func TestFiscalChainProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for round := 0; round < 30; round++ {
		txns := randomTransactions(rng, 1+rng.Intn(100))
		opening := decimal.New(rng.Int63n(100_000)-50_000, -2)

		chain := Partition(txns, opening)
		assertChainContinuous(t, chain)
		assert.True(t, chain.Periods[0].OpeningBalance.Equal(opening))
		assert.True(t, chain.Closing().Equal(opening.Add(ComputeTotals(txns).Balance)))

		count := 0
		for _, p := range chain.Periods {
			count += len(p.Transactions)
		}
		assert.Equal(t, len(txns), count)
	}
}

func TestGroupingProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(13))
	for round := 0; round < 50; round++ {
		txns := randomTransactions(rng, 1+rng.Intn(150))

		want := decimal.Zero
		for _, txn := range txns {
			if !txn.IsSettled() {
				want = want.Add(SignedAmount(txn))
			}
		}

		groups := GroupByCounterparty(txns, MustDate("2025-01-01"), nil)
		assert.True(t, TotalDue(groups).Equal(want), "round %d: %s != %s", round, TotalDue(groups), want)

		members := 0
		for i, g := range groups {
			members += len(g.Transactions)
			if g.Unassigned {
				assert.Equal(t, len(groups)-1, i)
			}
		}
		assert.Equal(t, len(txns), members)
	}
}

func TestGroupingIsStable(t *testing.T) {
	rng := rand.New(rand.NewSource(23))
	asOf := MustDate("2025-01-01")
	for round := 0; round < 30; round++ {
		txns := randomTransactions(rng, 1+rng.Intn(150))

		first := GroupByCounterparty(txns, asOf, nil)
		again := GroupByCounterparty(txns, asOf, nil)

		shuffled := slices.Clone(txns)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })
		reordered := GroupByCounterparty(shuffled, asOf, nil)

		for _, other := range [][]CounterpartyGroup{again, reordered} {
			assert.Equal(t, len(first), len(other), "round %d", round)
			for i := range first {
				assert.Equal(t, first[i].Counterparty, other[i].Counterparty, "round %d group %d", round, i)
				assert.Equal(t, first[i].Transactions, other[i].Transactions, "round %d group %d", round, i)
				assert.True(t, first[i].TotalDue.Equal(other[i].TotalDue), "round %d group %d", round, i)
				assert.True(t, first[i].Totals.Balance.Equal(other[i].Totals.Balance), "round %d group %d", round, i)
			}
		}
	}
}

func TestLinkProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(17))
	txns := randomTransactions(rng, 120)
	raws := make([]RawTransaction, len(txns))
	for i, txn := range txns {
		raws[i] = RawTransaction{
			ID:     txn.ID,
			Date:   txn.Date.String(),
			Amount: txn.Amount.String(),
			Kind:   txn.Kind.String(),
		}
	}
	b := newBook(t, nil, raws...)

	var codes []string
	for i := 0; i+2 < len(txns); i += 3 {
		ids := []string{txns[i].ID, txns[i+1].ID}
		if rng.Intn(2) == 0 {
			ids = append(ids, txns[i+2].ID)
		}
		group, err := b.Link(ids, "")
		assert.NoError(t, err)
		codes = append(codes, group.Code)

		sum := decimal.Zero
		for _, id := range group.Members {
			member := mustGet(t, b, id)
			sum = sum.Add(SignedAmount(member))
			for _, other := range group.Members {
				if other != id {
					assert.True(t, slices.Contains(member.LinkedTo, other), "%s should link %s", id, other)
				}
			}
		}
		want := GroupStatus(sum, b.Config().ToleranceFor(DefaultCurrency))
		if sum.IsZero() {
			assert.Equal(t, StatusPaid, want)
		}
		for _, id := range group.Members {
			assert.Equal(t, want, mustGet(t, b, id).Status)
		}
	}
	assert.NoError(t, b.Check())

	for _, code := range codes {
		group, ok := b.Group(code)
		assert.True(t, ok)
		assert.NoError(t, b.Unlink(code))
		for _, id := range group.Members {
			assert.Equal(t, 0, len(mustGet(t, b, id).LinkedTo))
		}
	}
	assert.Equal(t, 0, len(b.Groups()))
	assert.NoError(t, b.Check())
}

func TestZeroSumGroupsArePaid(t *testing.T) {
	rng := rand.New(rand.NewSource(19))
	for round := 0; round < 20; round++ {
		total := rng.Int63n(1_000_000) + 2
		split := rng.Int63n(total-1) + 1
		b := newBook(t, nil,
			raw("INV", "2024-01-01", decimal.New(total, -2).String(), "invoice", ""),
			raw("PAY", "2024-01-02", decimal.New(split, -2).String(), "payment", ""),
			raw("CN", "2024-01-03", decimal.New(total-split, -2).String(), "credit_note", ""),
		)
		group, err := b.Link([]string{"INV", "PAY", "CN"}, "")
		assert.NoError(t, err)
		assert.True(t, group.Sum.IsZero())
		assert.Equal(t, StatusPaid, group.Status)
	}
}
