package cli

import (
	"fmt"
	"path/filepath"

	"github.com/alecthomas/kong"

	lerrors "github.com/ledgerline/ledgerline/errors"
)

type CheckCmd struct {
	File FileOrStdin `help:"Ledger input filename, JSON or CSV (use '-' for stdin, or omit for stdin)." arg:"" optional:""`
}

func (cmd *CheckCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, fmt.Sprintf("check %s", filepath.Base(cmd.File.Filename)))
	if err != nil {
		return err
	}
	defer s.report()

	l, err := s.loadBook(&cmd.File)
	if err != nil {
		return err
	}

	if err := l.book.Check(); err != nil {
		errs := lerrors.Flatten(err)
		formatter := lerrors.NewTextFormatter(lerrors.WithRecords(l.result.Records))
		_, _ = fmt.Fprintln(ctx.Stderr, formatter.FormatAll(errs))
		_, _ = fmt.Fprintln(ctx.Stderr)
		printError(ctx.Stderr, fmt.Sprintf("%d consistency error(s) found", len(errs)))
		return NewCommandError(ExitFailure)
	}

	if l.invalid != nil {
		printError(ctx.Stderr, fmt.Sprintf("%d validation error(s) found", len(l.invalid.Errors)))
		return NewCommandError(ExitFailure)
	}

	printSuccess(ctx.Stdout, fmt.Sprintf("Check passed: %d transaction(s), %d reconciliation group(s)",
		l.book.Len(), len(l.book.Groups())))
	return nil
}
