package dashboard

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/telemetry"
)

func newBook(t *testing.T) *ledger.Book {
	t.Helper()
	book := ledger.New(ledger.NewConfig())
	assert.NoError(t, book.Load(context.Background(), []ledger.RawTransaction{
		{ID: "INV-1", Date: "2023-11-10", Amount: "500", Kind: "invoice", Counterparty: "ACME"},
		{ID: "INV-2", Date: "2024-01-10", Amount: "1000", Kind: "invoice", Counterparty: "ACME"},
		{ID: "PAY-1", Date: "2024-02-01", Amount: "1000", Kind: "payment", Counterparty: "ACME"},
		{ID: "INV-3", Date: "2024-03-01", Amount: "250", Kind: "invoice", Counterparty: "Globex"},
		{ID: "EXP-1", Date: "2024-03-05", Amount: "40", Kind: "expense"},
	}))
	_, err := book.Link([]string{"INV-2", "PAY-1"}, "")
	assert.NoError(t, err)
	return book
}

func TestBuild(t *testing.T) {
	book := newBook(t)

	view, err := Build(context.Background(), book, Options{AsOf: ledger.MustDate("2024-03-10")})
	assert.NoError(t, err)

	assert.Equal(t, 5, len(view.Timeline))
	assert.Equal(t, "EXP-1", view.Timeline[0].Transaction.ID)
	assert.Equal(t, "790", view.Timeline[0].Balance.String())
	assert.Equal(t, "790", view.Totals.Balance.String())
	assert.Equal(t, "receivable", view.Reading)

	// INV-1 is past its 30 day terms; INV-3 and EXP-1 are not.
	assert.Equal(t, 1, view.OverdueCount)

	assert.Equal(t, 3, len(view.Counterparties))
	assert.Equal(t, "ACME", view.Counterparties[0].Counterparty)
	assert.Equal(t, "500", view.Counterparties[0].TotalDue.String())
	assert.Equal(t, ledger.UnassignedCounterparty, view.Counterparties[2].Counterparty)
	assert.Equal(t, "790", view.TotalDue.String())

	assert.Equal(t, 2, len(view.Periods))
	assert.Equal(t, "500", view.Periods[1].OpeningBalance.String())
	assert.Equal(t, 1, len(view.Groups))
	assert.Equal(t, "A", view.Groups[0].Code)
}

func TestBuildCounterpartyFilter(t *testing.T) {
	book := newBook(t)

	view, err := Build(context.Background(), book, Options{
		AsOf:         ledger.MustDate("2024-03-10"),
		Counterparty: "Globex",
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(view.Timeline))
	assert.Equal(t, "250", view.TotalDue.String())
	assert.Equal(t, 0, len(view.Groups))

	view, err = Build(context.Background(), book, Options{
		AsOf:         ledger.MustDate("2024-03-10"),
		Counterparty: ledger.UnassignedCounterparty,
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, len(view.Timeline))
	assert.Equal(t, "EXP-1", view.Timeline[0].Transaction.ID)
}

func TestBuildYear(t *testing.T) {
	book := newBook(t)

	view, err := Build(context.Background(), book, Options{
		AsOf:    ledger.MustDate("2024-03-10"),
		Opening: decimal.NewFromInt(100),
		Year:    2024,
	})
	assert.NoError(t, err)
	assert.Equal(t, "600", view.Opening.String())
	assert.Equal(t, 4, len(view.Timeline))
	assert.Equal(t, "890", view.Timeline[0].Balance.String())
	assert.Equal(t, "290", view.Totals.Balance.String())
	assert.Equal(t, 2, len(view.Periods))

	_, err = Build(context.Background(), book, Options{Year: 2019})
	assert.True(t, errors.Is(err, ledger.ErrNotFound))
}

func TestBuildEmpty(t *testing.T) {
	view, err := Build(context.Background(), ledger.New(nil), Options{Side: ledger.SideSupplier})
	assert.NoError(t, err)
	assert.Equal(t, 0, len(view.Timeline))
	assert.Equal(t, 0, len(view.Periods))
	assert.True(t, view.Periods != nil)
	assert.Equal(t, "settled", view.Reading)
	assert.False(t, view.AsOf.IsZero())
}

func TestBuildCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Build(ctx, newBook(t), Options{})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestBuildTimings(t *testing.T) {
	collector := telemetry.NewTimingCollector()
	ctx := telemetry.WithCollector(context.Background(), collector)

	_, err := Build(ctx, newBook(t), Options{AsOf: ledger.MustDate("2024-03-10")})
	assert.NoError(t, err)

	var report strings.Builder
	collector.Report(&report)
	for _, step := range []string{"dashboard.build", "ledger.partition", "ledger.timeline", "ledger.totals", "ledger.counterparties", "ledger.groups"} {
		assert.Contains(t, report.String(), step)
	}
}

func TestBuildGroupsMatchEntries(t *testing.T) {
	book := newBook(t)
	opts := Options{AsOf: ledger.MustDate("2024-03-10")}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 200; i++ {
			if _, err := book.Link([]string{"INV-1", "INV-3"}, "M"); err != nil {
				t.Errorf("link: %v", err)
				return
			}
			if err := book.Unlink("M"); err != nil {
				t.Errorf("unlink: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		view, err := Build(context.Background(), book, opts)
		assert.NoError(t, err)

		codes := make(map[string]string, len(view.Timeline))
		for _, entry := range view.Timeline {
			codes[entry.Transaction.ID] = entry.Transaction.ReconciliationCode
		}
		listed := make(map[string]bool, len(view.Groups))
		for _, g := range view.Groups {
			listed[g.Code] = true
			for _, id := range g.Members {
				assert.Equal(t, g.Code, codes[id], "%s in group %s", id, g.Code)
			}
		}
		for id, code := range codes {
			if code != "" {
				assert.True(t, listed[code], "%s carries code %s missing from the view", id, code)
			}
		}
	}
	wg.Wait()
}
