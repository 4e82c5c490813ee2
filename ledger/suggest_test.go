package ledger

import (
	"testing"

	"github.com/alecthomas/assert/v2"
)

func TestSuggestMatches(t *testing.T) {
	txns := []*Transaction{
		newTxn("INV-1", "2024-01-05", "1000", KindInvoice, "ACME"),
		newTxn("PAY-1", "2024-02-01", "1000", KindPayment, "ACME"),
		newTxn("INV-2", "2024-03-10", "250", KindInvoice, "Globex"),
		newTxn("PAY-2", "2024-03-08", "250", KindPayment, "Initech"),
		newTxn("INV-3", "2024-05-01", "75", KindInvoice, "Hooli"),
		newTxn("PAY-3", "2024-07-01", "75", KindPayment, ""),
	}

	suggestions := SuggestMatches(txns, nil)
	assert.Equal(t, 2, len(suggestions))

	best := suggestions[0]
	assert.Equal(t, []string{"INV-1", "PAY-1"}, best.IDs)
	assert.Equal(t, 100, best.Score)
	assert.Equal(t, []string{"amount", "counterparty", "date"}, best.Criteria)
	assert.True(t, best.Difference.IsZero())

	near := suggestions[1]
	assert.Equal(t, []string{"INV-2", "PAY-2"}, near.IDs)
	assert.Equal(t, 60, near.Score)
	assert.Equal(t, []string{"amount", "date"}, near.Criteria)
}

func TestSuggestMatchesSkipsSettledEntries(t *testing.T) {
	reconciled := newTxn("PAY-1", "2024-01-10", "100", KindPayment, "ACME")
	reconciled.ReconciliationCode = "A"
	locked := newTxn("PAY-2", "2024-01-10", "100", KindPayment, "ACME")
	locked.Locked = true
	paid := withStatus(newTxn("PAY-3", "2024-01-10", "100", KindPayment, "ACME"), StatusPaid)
	foreign := newTxn("PAY-4", "2024-01-10", "100", KindPayment, "ACME")
	foreign.Currency = "USD"
	off := newTxn("PAY-5", "2024-01-10", "100.02", KindPayment, "ACME")

	suggestions := SuggestMatches([]*Transaction{
		newTxn("INV-1", "2024-01-01", "100", KindInvoice, "ACME"),
		reconciled, locked, paid, foreign, off,
	}, nil)
	assert.Equal(t, 0, len(suggestions))
}

func TestSuggestMatchesUsesCreditsOnce(t *testing.T) {
	suggestions := SuggestMatches([]*Transaction{
		newTxn("INV-2", "2024-01-03", "100", KindInvoice, "ACME"),
		newTxn("INV-1", "2024-01-01", "100", KindInvoice, "ACME"),
		newTxn("PAY-1", "2024-01-10", "99.99", KindPayment, "ACME"),
	}, nil)
	assert.Equal(t, 1, len(suggestions))
	assert.Equal(t, []string{"INV-1", "PAY-1"}, suggestions[0].IDs)
	assertAmount(t, "0.01", suggestions[0].Difference)
}

func TestSuggestionsCanBeLinked(t *testing.T) {
	b := basicBook(t)
	for _, s := range SuggestMatches(b.Snapshot(), b.Config()) {
		group, err := b.Link(s.IDs, "")
		assert.NoError(t, err)
		assert.Equal(t, StatusPaid, group.Status)
	}
	inv := mustGet(t, b, "INV-1")
	assert.Equal(t, []string{"PAY-1"}, inv.LinkedTo)
	assert.NoError(t, b.Check())
}
