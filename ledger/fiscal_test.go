package ledger

import (
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"
)

func fiscalFixture() []*Transaction {
	return []*Transaction{
		newTxn("PAY-23", "2023-06-01", "20", KindPayment, ""),
		newTxn("INV-21", "2021-03-01", "100", KindInvoice, ""),
		newTxn("INV-23", "2023-02-01", "50", KindInvoice, ""),
	}
}

func TestPartition(t *testing.T) {
	chain := Partition(fiscalFixture(), decimal.NewFromInt(10))

	assert.Equal(t, 3, len(chain.Periods))
	assert.Equal(t, 2021, chain.FirstYear())

	p2021 := chain.Periods[0]
	assert.Equal(t, 2021, p2021.Year)
	assertAmount(t, "10", p2021.OpeningBalance)
	assertAmount(t, "110", p2021.ClosingBalance)

	p2022, ok := chain.Period(2022)
	assert.True(t, ok)
	assert.Equal(t, 0, len(p2022.Transactions))
	assertAmount(t, "110", p2022.OpeningBalance)
	assertAmount(t, "110", p2022.ClosingBalance)

	p2023, ok := chain.Period(2023)
	assert.True(t, ok)
	assert.Equal(t, "INV-23", p2023.Transactions[0].ID)
	assert.Equal(t, "PAY-23", p2023.Transactions[1].ID)
	assertAmount(t, "140", p2023.ClosingBalance)
	assertAmount(t, "140", chain.Closing())

	_, ok = chain.Period(2030)
	assert.False(t, ok)
}

func TestPartitionEmpty(t *testing.T) {
	chain := Partition(nil, decimal.NewFromInt(10))
	assert.Equal(t, 0, len(chain.Periods))
	assert.Equal(t, 0, chain.FirstYear())
	assert.True(t, chain.Closing().IsZero())
}

func TestPrepend(t *testing.T) {
	chain := Partition(fiscalFixture(), decimal.NewFromInt(10))

	t.Run("OlderYear", func(t *testing.T) {
		extended, err := chain.Prepend([]*Transaction{
			newTxn("INV-19", "2019-05-01", "30", KindInvoice, ""),
		})
		assert.NoError(t, err)
		assert.Equal(t, 5, len(extended.Periods))
		assert.Equal(t, 2019, extended.FirstYear())

		p2019 := extended.Periods[0]
		assertAmount(t, "-20", p2019.OpeningBalance)
		assertAmount(t, "10", p2019.ClosingBalance)

		p2020 := extended.Periods[1]
		assert.Equal(t, 2020, p2020.Year)
		assertAmount(t, "10", p2020.OpeningBalance)
		assertAmount(t, "10", p2020.ClosingBalance)

		assertChainContinuous(t, extended)
		assertAmount(t, "140", extended.Closing())

		// The existing periods carry over value by value and the receiver
		// is untouched.
		assert.Equal(t, 3, len(chain.Periods))
		before := Partition(fiscalFixture(), decimal.NewFromInt(10))
		for i, want := range before.Periods {
			got := extended.Periods[i+2]
			assert.Equal(t, want.Year, got.Year)
			assert.True(t, want.OpeningBalance.Equal(got.OpeningBalance), "%d opening", want.Year)
			assert.True(t, want.ClosingBalance.Equal(got.ClosingBalance), "%d closing", want.Year)
			assert.True(t, want.Totals.Balance.Equal(got.Totals.Balance), "%d balance", want.Year)
			assert.Equal(t, want.Totals.Count, got.Totals.Count)
			assert.Equal(t, len(want.Transactions), len(got.Transactions))
			for j := range want.Transactions {
				assert.Equal(t, want.Transactions[j].ID, got.Transactions[j].ID)
			}
			assert.True(t, chain.Periods[i].ClosingBalance.Equal(want.ClosingBalance))
		}
	})

	t.Run("AdjacentYear", func(t *testing.T) {
		extended, err := chain.Prepend([]*Transaction{
			newTxn("PAY-20", "2020-05-01", "5", KindPayment, ""),
		})
		assert.NoError(t, err)
		assert.Equal(t, 4, len(extended.Periods))
		assertAmount(t, "15", extended.Periods[0].OpeningBalance)
		assertChainContinuous(t, extended)
	})

	t.Run("NotOlder", func(t *testing.T) {
		_, err := chain.Prepend([]*Transaction{newTxn("X", "2021-01-01", "1", KindInvoice, "")})
		assertIs(t, err, ErrValidation)
	})

	t.Run("MixedYears", func(t *testing.T) {
		_, err := chain.Prepend([]*Transaction{
			newTxn("X", "2018-01-01", "1", KindInvoice, ""),
			newTxn("Y", "2019-01-01", "1", KindInvoice, ""),
		})
		assertIs(t, err, ErrValidation)
	})

	t.Run("Nothing", func(t *testing.T) {
		same, err := chain.Prepend(nil)
		assert.NoError(t, err)
		assert.Equal(t, 3, len(same.Periods))
	})

	t.Run("EmptyChain", func(t *testing.T) {
		extended, err := Chain{}.Prepend([]*Transaction{newTxn("X", "2018-01-01", "7", KindInvoice, "")})
		assert.NoError(t, err)
		assert.Equal(t, 1, len(extended.Periods))
		assertAmount(t, "7", extended.Closing())
	})
}

func assertChainContinuous(t *testing.T, chain Chain) {
	t.Helper()
	for i := 1; i < len(chain.Periods); i++ {
		prev, next := chain.Periods[i-1], chain.Periods[i]
		assert.Equal(t, prev.Year+1, next.Year)
		assert.True(t, next.OpeningBalance.Equal(prev.ClosingBalance),
			"%d opens at %s but %d closed at %s", next.Year, next.OpeningBalance, prev.Year, prev.ClosingBalance)
	}
}
