package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/output"
)

// MutationFlags are shared by commands that change the book.
type MutationFlags struct {
	File   FileOrStdin `help:"Ledger input filename, JSON or CSV (use '-' for stdin)." arg:""`
	Output string      `help:"Write the updated ledger as JSON to this file." short:"o" type:"path"`
}

type LinkCmd struct {
	MutationFlags
	IDs  []string `help:"Entries to reconcile (at least two)." arg:"" name:"id"`
	Code string   `help:"Reconciliation code to use (default: next free code)." short:"k"`
}

func (cmd *LinkCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, "link")
	if err != nil {
		return err
	}
	defer s.report()

	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	group, err := l.book.Link(cmd.IDs, cmd.Code)
	if err != nil {
		return s.failWith(err)
	}
	s.log.Info().
		Str("code", group.Code).
		Strs("members", group.Members).
		Str("status", group.Status.String()).
		Msg("entries reconciled")

	s.printGroup(*group)
	return s.writeOutput(l.book, cmd.Output)
}

func (s *session) printGroup(group ledger.ReconciliationGroup) {
	message := fmt.Sprintf("%s %s: %s", s.terms.Reconciliation, s.styles.Code(group.Code), strings.Join(group.Members, ", "))
	if group.ToleranceExceeded {
		printWarning(s.stdout, fmt.Sprintf("%s is %s, off by %s", message,
			s.terms.StatusLabel(group.Status), output.FormatMoney(group.Sum.Abs(), s.currency())))
	} else {
		printSuccess(s.stdout, fmt.Sprintf("%s is %s", message, s.terms.StatusLabel(group.Status)))
	}
	for _, w := range group.Warnings {
		printWarning(s.stdout, w.Message)
	}
}

type UnlinkCmd struct {
	MutationFlags
	Code string `help:"Reconciliation code to remove." arg:""`
}

func (cmd *UnlinkCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, "unlink")
	if err != nil {
		return err
	}
	defer s.report()

	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	code := strings.ToUpper(strings.TrimSpace(cmd.Code))
	if err := l.book.Unlink(code); err != nil {
		return s.failWith(err)
	}
	s.log.Info().Str("code", code).Msg("reconciliation removed")

	printSuccess(s.stdout, fmt.Sprintf("Removed %s %s", strings.ToLower(s.terms.Reconciliation), s.styles.Code(code)))
	return s.writeOutput(l.book, cmd.Output)
}

type BatchCmd struct {
	MutationFlags
	Action string   `help:"Action to apply: reconcile, tag_bank, validate or unreconcile." arg:""`
	IDs    []string `help:"Selected entries." arg:"" name:"id"`
	Yes    bool     `help:"Do not ask for confirmation before locking entries." short:"y"`
	DryRun bool     `help:"Show the changes without applying them." name:"dry-run"`
}

func (cmd *BatchCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, "batch")
	if err != nil {
		return err
	}
	defer s.report()

	action, err := ledger.ParseAction(cmd.Action)
	if err != nil {
		return err
	}

	if cmd.DryRun {
		return cmd.preview(s, action)
	}

	if action == ledger.ActionValidate && !cmd.Yes {
		if !isTerminal() {
			printError(s.stderr, "validating locks entries permanently; pass --yes to confirm")
			return NewCommandError(ExitFailure)
		}
		confirmed, err := promptYesNo(fmt.Sprintf("Lock %d entr%s? Locked entries cannot be changed.",
			len(cmd.IDs), plural(len(cmd.IDs), "y", "ies")))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		if !confirmed {
			printInfof(s.stdout, "Nothing changed")
			return nil
		}
	}

	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	applied, err := l.book.Apply(action, ledger.NewSelection(cmd.IDs...))
	if err != nil {
		return s.failWith(err)
	}
	s.log.Info().
		Str("action", action.String()).
		Int("applied", applied).
		Msg("batch applied")

	printSuccess(s.stdout, fmt.Sprintf("%s applied to %d entr%s", action, applied, plural(applied, "y", "ies")))
	return s.writeOutput(l.book, cmd.Output)
}

// preview prints the changes the action would make. Nothing is written.
func (cmd *BatchCmd) preview(s *session, action ledger.Action) error {
	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	delta, err := l.book.Preview(action, ledger.NewSelection(cmd.IDs...))
	if err != nil {
		return s.failWith(err)
	}
	s.log.Debug().Str("action", action.String()).Str("delta", delta.String()).Msg("batch previewed")

	if delta.IsEmpty() {
		printInfof(s.stdout, "%s would change nothing", action)
		return nil
	}
	printInfof(s.stdout, "%s would make %s:", action, delta.String())
	for _, change := range delta.Changes {
		_, _ = fmt.Fprintf(s.stdout, "  %s\n", change.String())
	}
	return nil
}

type SuggestCmd struct {
	MutationFlags
	Apply    bool `help:"Reconcile every suggestion scoring at least --min-score."`
	MinScore int  `help:"Lowest score applied with --apply." default:"80"`
}

func (cmd *SuggestCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, "suggest")
	if err != nil {
		return err
	}
	defer s.report()

	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	suggestions := ledger.SuggestMatches(l.book.Snapshot(), l.book.Config())
	if len(suggestions) == 0 {
		printInfof(s.stdout, "No suggestions")
		return nil
	}

	table := output.NewTable(
		output.Column{Title: "Score", Align: output.AlignRight},
		output.Column{Title: "Entries"},
		output.Column{Title: "Difference", Align: output.AlignRight},
		output.Column{Title: "Matched on"},
	).WithHeaderStyle(s.styles.Keyword)
	for _, sg := range suggestions {
		table.AddCells(
			output.Cell{Text: fmt.Sprintf("%d", sg.Score), Style: s.styles.Keyword},
			output.Cell{Text: strings.Join(sg.IDs, " + ")},
			output.Cell{Text: output.FormatSigned(sg.Difference, s.currency())},
			output.Cell{Text: strings.Join(sg.Criteria, ", "), Style: s.styles.Dim},
		)
	}
	if err := table.Render(s.stdout); err != nil {
		return err
	}

	if !cmd.Apply {
		return nil
	}

	_, _ = fmt.Fprintln(s.stdout)
	linked := 0
	for _, sg := range suggestions {
		if sg.Score < cmd.MinScore {
			continue
		}
		group, err := l.book.Link(sg.IDs, "")
		if err != nil {
			return s.failWith(err)
		}
		s.printGroup(*group)
		linked++
	}
	if linked == 0 {
		printInfof(s.stdout, "No suggestion scored %d or more", cmd.MinScore)
		return nil
	}
	return s.writeOutput(l.book, cmd.Output)
}
