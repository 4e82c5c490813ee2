// Package dashboard assembles the read-side view of a book: timeline,
// totals, counterparty groups, fiscal periods and reconciliation groups,
// computed from one snapshot so that every part agrees.
package dashboard

import (
	"context"
	"strconv"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
	"golang.org/x/sync/errgroup"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/telemetry"
)

// Options selects what the view covers.
type Options struct {
	// AsOf is the date overdue status and ages are computed for.
	AsOf ledger.Date

	// Side gives the balance its business reading.
	Side ledger.Side

	// Opening is the balance carried into the earliest fiscal year.
	Opening decimal.Decimal

	// Counterparty restricts the view to one counterparty. Use
	// ledger.UnassignedCounterparty for entries without one.
	Counterparty string

	// Year restricts the timeline and totals to one fiscal year. Zero
	// means the whole history.
	Year int
}

// View is the JSON-ready result of Build. It holds plain values only.
type View struct {
	AsOf           ledger.Date                  `json:"as_of"`
	Side           ledger.Side                  `json:"side"`
	Reading        string                       `json:"reading"`
	Counterparty   string                       `json:"counterparty,omitempty"`
	Year           int                          `json:"year,omitempty"`
	Opening        decimal.Decimal              `json:"opening_balance"`
	Totals         ledger.Totals                `json:"totals"`
	TotalDue       decimal.Decimal              `json:"total_due"`
	OverdueCount   int                          `json:"overdue_count"`
	Timeline       []ledger.TimelineEntry       `json:"timeline"`
	Counterparties []ledger.CounterpartyGroup   `json:"counterparties"`
	Periods        []ledger.FiscalPeriod        `json:"periods"`
	Groups         []ledger.ReconciliationGroup `json:"groups"`
}

// Build computes the view of book. The independent computations run
// concurrently on a shared snapshot; none of them mutates it.
func Build(ctx context.Context, book *ledger.Book, opts Options) (*View, error) {
	timer := telemetry.StartTimer(ctx, "dashboard.build")
	defer timer.End()

	cfg := book.Config()
	if opts.AsOf.IsZero() {
		opts.AsOf = ledger.Today()
	}

	snapshot, groups := book.SnapshotWithGroups()
	txns := filterCounterparty(snapshot, opts.Counterparty)

	partitionTimer := timer.Child("ledger.partition")
	chain := ledger.Partition(txns, opts.Opening)
	partitionTimer.End()

	scope, opening := txns, opts.Opening
	if opts.Year != 0 {
		period, ok := chain.Period(opts.Year)
		if !ok {
			return nil, ledger.NewNotFoundError("fiscal period", strconv.Itoa(opts.Year))
		}
		scope, opening = period.Transactions, period.OpeningBalance
	}

	view := &View{
		AsOf:         opts.AsOf,
		Side:         opts.Side,
		Counterparty: opts.Counterparty,
		Year:         opts.Year,
		Opening:      opening,
		Periods:      chain.Periods,
	}
	if view.Periods == nil {
		view.Periods = []ledger.FiscalPeriod{}
	}

	g, gctx := errgroup.WithContext(ctx)
	step := func(name string, fn func()) {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			t := timer.Child(name)
			defer t.End()
			fn()
			return nil
		})
	}

	step("ledger.timeline", func() {
		view.Timeline = ledger.Timeline(scope, opening, opts.AsOf, cfg)
		for _, entry := range view.Timeline {
			if entry.Status == ledger.StatusOverdue {
				view.OverdueCount++
			}
		}
	})
	step("ledger.totals", func() {
		view.Totals = ledger.ComputeTotals(scope)
		view.Reading = opts.Side.Describe(view.Totals.Balance)
	})
	step("ledger.counterparties", func() {
		view.Counterparties = ledger.GroupByCounterparty(scope, opts.AsOf, cfg)
		view.TotalDue = ledger.TotalDue(view.Counterparties)
	})
	step("ledger.groups", func() {
		view.Groups = groupsTouching(groups, scope)
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return view, nil
}

func filterCounterparty(txns []*ledger.Transaction, counterparty string) []*ledger.Transaction {
	if counterparty == "" {
		return txns
	}
	want := counterparty
	if counterparty == ledger.UnassignedCounterparty {
		want = ""
	}
	out := make([]*ledger.Transaction, 0, len(txns))
	for _, t := range txns {
		if t.Counterparty == want {
			out = append(out, t)
		}
	}
	return out
}

// groupsTouching keeps the reconciliation groups with a member in txns.
func groupsTouching(groups []ledger.ReconciliationGroup, txns []*ledger.Transaction) []ledger.ReconciliationGroup {
	ids := make(map[string]bool, len(txns))
	for _, t := range txns {
		ids[t.ID] = true
	}
	out := make([]ledger.ReconciliationGroup, 0, len(groups))
	for _, g := range groups {
		if slices.ContainsFunc(g.Members, func(id string) bool { return ids[id] }) {
			out = append(out, g)
		}
	}
	return out
}
