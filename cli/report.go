package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/alecthomas/kong"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/dashboard"
	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/output"
)

// ViewFlags are shared by the read-only report commands.
type ViewFlags struct {
	File         FileOrStdin `help:"Ledger input filename, JSON or CSV (use '-' for stdin, or omit for stdin)." arg:"" optional:""`
	Counterparty string      `help:"Only show entries of this counterparty ('(unassigned)' for entries without one)." short:"p"`
	Year         int         `help:"Only show this fiscal year." short:"y"`
	Opening      string      `help:"Balance carried into the earliest fiscal year (overrides settings)."`
	JSON         bool        `help:"Print the result as JSON." name:"json"`
}

// build loads the file and computes its view.
func (f *ViewFlags) build(ctx *kong.Context, globals *Globals, name string) (*session, *dashboard.View, error) {
	s, err := globals.newSession(ctx, name)
	if err != nil {
		return nil, nil, err
	}

	opening := s.settings.OpeningBalance
	if f.Opening != "" {
		if opening, err = ledger.ParseAmount(f.Opening); err != nil {
			s.report()
			return nil, nil, fmt.Errorf("--opening: %w", err)
		}
	}

	l, err := s.loadBook(&f.File)
	if err != nil {
		s.report()
		return nil, nil, err
	}

	view, err := dashboard.Build(s.ctx, l.book, dashboard.Options{
		AsOf:         s.asOf,
		Side:         s.side,
		Opening:      opening,
		Counterparty: f.Counterparty,
		Year:         f.Year,
	})
	if err != nil {
		s.report()
		return nil, nil, s.failWith(err)
	}
	return s, view, nil
}

func (s *session) printJSON(v interface{}) error {
	enc := json.NewEncoder(s.stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (s *session) currency() string {
	return s.settings.Ledger.Currency
}

type TimelineCmd struct {
	ViewFlags
	Limit int `help:"Show at most this many entries (0 for all)." short:"n" default:"0"`
}

func (cmd *TimelineCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, view, err := cmd.build(ctx, globals, "timeline")
	if err != nil {
		return err
	}
	defer s.report()

	entries := view.Timeline
	if cmd.Limit > 0 && len(entries) > cmd.Limit {
		entries = entries[:cmd.Limit]
	}
	if cmd.JSON {
		return s.printJSON(entries)
	}

	terms := s.terms
	table := output.NewTable(
		output.Column{Title: "Date"},
		output.Column{Title: "ID"},
		output.Column{Title: "Label", MaxWidth: 32},
		output.Column{Title: terms.Counterparty, MaxWidth: 20},
		output.Column{Title: "Type"},
		output.Column{Title: terms.Debit, Align: output.AlignRight},
		output.Column{Title: terms.Credit, Align: output.AlignRight},
		output.Column{Title: terms.Balance, Align: output.AlignRight},
		output.Column{Title: "Status"},
		output.Column{Title: terms.Code},
	).WithHeaderStyle(s.styles.Keyword)

	for _, e := range entries {
		t := e.Transaction
		var debit, credit string
		if t.Kind.IsDebit() {
			debit = output.FormatMoney(t.Amount, t.Currency)
		} else {
			credit = output.FormatMoney(t.Amount, t.Currency)
		}
		counterparty := t.Counterparty
		if counterparty == "" {
			counterparty = terms.Unassigned
		}
		balance := e.Balance
		table.AddCells(
			output.Cell{Text: t.Date.String(), Style: s.styles.Dim},
			output.Cell{Text: t.ID},
			output.Cell{Text: t.Label},
			output.Cell{Text: counterparty, Style: s.styles.Counterparty},
			output.Cell{Text: terms.KindLabel(t.Kind)},
			output.Cell{Text: debit},
			output.Cell{Text: credit},
			output.Cell{Text: output.FormatMoney(balance, s.currency()), Style: func(text string) string {
				return s.styles.Amount(text, balance)
			}},
			output.Cell{Text: terms.StatusLabel(e.Status), Style: statusStyle(s, e.Status)},
			output.Cell{Text: t.ReconciliationCode, Style: s.styles.Code},
		)
	}

	if table.Len() == 0 {
		printInfof(s.stdout, "No entries")
		return nil
	}
	if err := table.Render(s.stdout); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.stdout, "\n%s: %s (%s)\n", terms.Opening,
		output.FormatMoney(view.Opening, s.currency()), view.Side.Describe(view.Opening))
	return nil
}

func statusStyle(s *session, status ledger.Status) func(string) string {
	return func(text string) string {
		return s.styles.Status(text, status)
	}
}

type TotalsCmd struct {
	ViewFlags
}

func (cmd *TotalsCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, view, err := cmd.build(ctx, globals, "totals")
	if err != nil {
		return err
	}
	defer s.report()

	if cmd.JSON {
		return s.printJSON(struct {
			Totals       ledger.Totals   `json:"totals"`
			Reading      string          `json:"reading"`
			TotalDue     decimal.Decimal `json:"total_due"`
			OverdueCount int             `json:"overdue_count"`
		}{view.Totals, view.Reading, view.TotalDue, view.OverdueCount})
	}

	terms := s.terms
	cur := s.currency()
	table := output.NewTable(
		output.Column{Title: ""},
		output.Column{Title: "", Align: output.AlignRight},
	)
	table.AddRow(terms.Debit, output.FormatMoney(view.Totals.TotalDebits, cur))
	table.AddRow(terms.Credit, output.FormatMoney(view.Totals.TotalCredits, cur))
	balance := view.Totals.Balance
	table.AddCells(
		output.Cell{Text: terms.Balance, Style: s.styles.Keyword},
		output.Cell{Text: output.FormatMoney(balance, cur), Style: func(text string) string {
			return s.styles.Amount(text, balance)
		}},
	)
	table.AddRow(terms.TotalDue, output.FormatMoney(view.TotalDue, cur))
	table.AddRow("Entries", strconv.Itoa(view.Totals.Count))
	if err := table.Render(s.stdout); err != nil {
		return err
	}

	_, _ = fmt.Fprintf(s.stdout, "\n%s\n", view.Reading)
	if view.OverdueCount > 0 {
		printWarning(s.stdout, fmt.Sprintf("%d overdue entr%s", view.OverdueCount, plural(view.OverdueCount, "y", "ies")))
	}
	return nil
}

type CounterpartiesCmd struct {
	ViewFlags
}

func (cmd *CounterpartiesCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, view, err := cmd.build(ctx, globals, "counterparties")
	if err != nil {
		return err
	}
	defer s.report()

	if cmd.JSON {
		return s.printJSON(view.Counterparties)
	}

	terms := s.terms
	cur := s.currency()
	table := output.NewTable(
		output.Column{Title: terms.Counterparty, MaxWidth: 32},
		output.Column{Title: "Entries", Align: output.AlignRight},
		output.Column{Title: terms.Debit, Align: output.AlignRight},
		output.Column{Title: terms.Credit, Align: output.AlignRight},
		output.Column{Title: terms.TotalDue, Align: output.AlignRight},
		output.Column{Title: "Oldest overdue", Align: output.AlignRight},
	).WithHeaderStyle(s.styles.Keyword)

	for _, g := range view.Counterparties {
		name := g.Counterparty
		if g.Unassigned {
			name = terms.Unassigned
		}
		age := ""
		if g.OldestAgeDays != nil {
			age = fmt.Sprintf("%d day%s", *g.OldestAgeDays, plural(*g.OldestAgeDays, "", "s"))
		}
		due := g.TotalDue
		table.AddCells(
			output.Cell{Text: name, Style: s.styles.Counterparty},
			output.Cell{Text: strconv.Itoa(g.Totals.Count)},
			output.Cell{Text: output.FormatMoney(g.Totals.TotalDebits, cur)},
			output.Cell{Text: output.FormatMoney(g.Totals.TotalCredits, cur)},
			output.Cell{Text: output.FormatMoney(due, cur), Style: func(text string) string {
				return s.styles.Amount(text, due)
			}},
			output.Cell{Text: age, Style: s.styles.Warning},
		)
	}

	if table.Len() == 0 {
		printInfof(s.stdout, "No entries")
		return nil
	}
	if err := table.Render(s.stdout); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.stdout, "\n%s: %s\n", terms.TotalDue, output.FormatMoney(view.TotalDue, cur))
	return nil
}

type PeriodsCmd struct {
	ViewFlags
}

func (cmd *PeriodsCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, view, err := cmd.build(ctx, globals, "periods")
	if err != nil {
		return err
	}
	defer s.report()

	periods := view.Periods
	if cmd.Year != 0 {
		for _, p := range view.Periods {
			if p.Year == cmd.Year {
				periods = []ledger.FiscalPeriod{p}
			}
		}
	}
	if cmd.JSON {
		return s.printJSON(periods)
	}

	terms := s.terms
	cur := s.currency()
	table := output.NewTable(
		output.Column{Title: terms.Period},
		output.Column{Title: "Entries", Align: output.AlignRight},
		output.Column{Title: terms.Opening, Align: output.AlignRight},
		output.Column{Title: terms.Debit, Align: output.AlignRight},
		output.Column{Title: terms.Credit, Align: output.AlignRight},
		output.Column{Title: terms.Closing, Align: output.AlignRight},
	).WithHeaderStyle(s.styles.Keyword)

	for _, p := range periods {
		closing := p.ClosingBalance
		table.AddCells(
			output.Cell{Text: strconv.Itoa(p.Year), Style: s.styles.Keyword},
			output.Cell{Text: strconv.Itoa(p.Totals.Count)},
			output.Cell{Text: output.FormatMoney(p.OpeningBalance, cur)},
			output.Cell{Text: output.FormatMoney(p.Totals.TotalDebits, cur)},
			output.Cell{Text: output.FormatMoney(p.Totals.TotalCredits, cur)},
			output.Cell{Text: output.FormatMoney(closing, cur), Style: func(text string) string {
				return s.styles.Amount(text, closing)
			}},
		)
	}

	if table.Len() == 0 {
		printInfof(s.stdout, "No fiscal periods")
		return nil
	}
	return table.Render(s.stdout)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
