package cli

import (
	"context"
	stdErrors "errors"
	"fmt"
	"io"
	"sync"

	"github.com/alecthomas/kong"
	"github.com/rs/zerolog"

	"github.com/ledgerline/ledgerline/config"
	lerrors "github.com/ledgerline/ledgerline/errors"
	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/loader"
	"github.com/ledgerline/ledgerline/logger"
	"github.com/ledgerline/ledgerline/output"
	"github.com/ledgerline/ledgerline/telemetry"
)

var (
	Version   = ""
	CommitSHA = ""
)

// Globals defines global flags available to all commands.
type Globals struct {
	Telemetry bool   `help:"Show timing telemetry for operations."`
	Config    string `help:"Settings file (YAML, TOML or JSON)." short:"C" type:"path"`
	AsOf      string `help:"Reference date for due dates and overdue status (YYYY-MM-DD, default today)." name:"as-of"`
	Side      string `help:"Ledger side: client or supplier (overrides settings)."`
	Expert    bool   `help:"Use bookkeeping terminology."`
	LogLevel  string `help:"Log level (debug, info, warn, error)." name:"log-level"`
}

type Commands struct {
	Globals

	Check          CheckCmd          `cmd:"" help:"Load and check a ledger file."`
	Timeline       TimelineCmd       `cmd:"" help:"Show entries newest first with the running balance."`
	Totals         TotalsCmd         `cmd:"" help:"Show total debits, credits and the balance."`
	Counterparties CounterpartiesCmd `cmd:"" help:"Show entries grouped by counterparty with amounts due."`
	Periods        PeriodsCmd        `cmd:"" help:"Show fiscal years with carried balances."`
	Link           LinkCmd           `cmd:"" help:"Reconcile entries under one code."`
	Unlink         UnlinkCmd         `cmd:"" help:"Remove a reconciliation group."`
	Batch          BatchCmd          `cmd:"" help:"Apply an action to a selection of entries."`
	Suggest        SuggestCmd        `cmd:"" help:"Propose entries that offset each other."`
	Serve          ServeCmd          `cmd:"" help:"Start the web server."`
	Version        VersionCmd        `cmd:"" help:"Show version information."`
}

// session holds what every ledger command needs once flags are resolved.
type session struct {
	ctx      context.Context
	settings *config.Settings
	log      zerolog.Logger
	asOf     ledger.Date
	side     ledger.Side
	terms    output.Terminology
	styles   *output.Styles
	stdout   io.Writer
	stderr   io.Writer

	collector telemetry.Collector
	root      telemetry.Timer
	once      sync.Once
}

// newSession resolves settings and flags. name labels the root telemetry
// timer. Callers must defer report.
func (g *Globals) newSession(kctx *kong.Context, name string) (*session, error) {
	settings, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}

	levelName := settings.LogLevel
	if g.LogLevel != "" {
		levelName = g.LogLevel
	}
	level, err := logger.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	side := settings.Side
	if g.Side != "" {
		if side, err = ledger.ParseSide(g.Side); err != nil {
			return nil, err
		}
	}

	asOf := ledger.Today()
	if g.AsOf != "" {
		if asOf, err = ledger.NewDate(g.AsOf); err != nil {
			return nil, fmt.Errorf("--as-of: %w", err)
		}
	}

	s := &session{
		settings: settings,
		log:      logger.New(level),
		asOf:     asOf,
		side:     side,
		terms:    output.Terms(side, g.Expert || settings.Expert),
		styles:   output.NewStyles(kctx.Stdout),
		stdout:   kctx.Stdout,
		stderr:   kctx.Stderr,
	}

	ctx := logger.WithContext(context.Background(), s.log)
	ctx = settings.Ledger.WithContext(ctx)
	if g.Telemetry {
		s.collector = telemetry.NewTimingCollector()
		ctx = telemetry.WithCollector(ctx, s.collector)

		s.root = s.collector.Start(name)
		ctx = telemetry.WithRootTimer(ctx, s.root)
	}
	s.ctx = ctx
	return s, nil
}

// report prints the timing tree once, if telemetry is enabled.
func (s *session) report() {
	s.once.Do(func() {
		if s.collector != nil {
			s.root.End()
			_, _ = fmt.Fprintln(s.stderr)
			s.collector.Report(s.stderr)
		}
	})
}

// loaded is a book together with what was read to build it.
type loaded struct {
	book    *ledger.Book
	result  *loader.Result
	invalid *ledger.ValidationErrors
}

// loadBook reads file into a new book. Rejected records are reported on
// stderr and kept in the returned invalid list; the rest of the book loads.
// A file that cannot be decoded at all prints a parse error and returns a
// CommandError.
func (s *session) loadBook(file *FileOrStdin) (*loaded, error) {
	if err := file.EnsureContents(); err != nil {
		return nil, err
	}

	sourceContent, err := file.GetSourceContent()
	if err != nil {
		return nil, fmt.Errorf("failed to read file for error context: %w", err)
	}

	ldr := loader.New(loader.WithFollowIncludes())
	result, err := file.Load(s.ctx, ldr)
	if err != nil {
		var parseErr *loader.ParseError
		if !stdErrors.As(err, &parseErr) {
			return nil, err
		}
		formatter := lerrors.NewTextFormatter(lerrors.WithSource(sourceContent))
		_, _ = fmt.Fprintln(s.stderr, formatter.Format(err))
		_, _ = fmt.Fprintln(s.stderr)
		printError(s.stderr, "parse error")
		return nil, NewCommandError(ExitFailure)
	}

	l := &loaded{
		book:   ledger.New(ledger.ConfigFromContext(s.ctx)),
		result: result,
	}
	if err := l.book.Load(s.ctx, result.Records); err != nil {
		if !stdErrors.As(err, &l.invalid) {
			return nil, err
		}
		formatter := lerrors.NewTextFormatter(
			lerrors.WithSource(sourceContent),
			lerrors.WithRecords(result.Records),
		)
		_, _ = fmt.Fprintln(s.stderr, formatter.FormatAll(l.invalid.Errors))
		_, _ = fmt.Fprintln(s.stderr)
		printWarning(s.stderr, fmt.Sprintf("%d record(s) rejected", len(l.invalid.Errors)))
	}

	s.log.Debug().
		Int("transactions", l.book.Len()).
		Int("files", len(result.Files)).
		Msg("ledger loaded")
	return l, nil
}

// failWith prints err in the CLI's error style and returns the exit code
// for its kind.
func (s *session) failWith(err error) error {
	formatter := lerrors.NewTextFormatter()
	_, _ = fmt.Fprintln(s.stderr, formatter.FormatAll(lerrors.Flatten(err)))
	printError(s.stderr, lerrors.Kind(err)+" error")
	return NewCommandError(ExitCodeFor(err))
}

// writeOutput saves the book as JSON to path when it is set.
func (s *session) writeOutput(book *ledger.Book, path string) error {
	if path == "" {
		return nil
	}
	if err := loader.WriteFile(path, book.Snapshot()); err != nil {
		return err
	}
	printInfof(s.stdout, "Wrote %d transaction(s) to %s", book.Len(), pathStyle.Render(path))
	return nil
}

func buildVersion() (string, string) {
	version := Version
	if version == "" {
		version = "dev"
	}
	commitSHA := CommitSHA
	if commitSHA == "" {
		commitSHA = "local"
	}
	return version, commitSHA
}

type VersionCmd struct{}

func (cmd *VersionCmd) Run(ctx *kong.Context) error {
	version, commitSHA := buildVersion()
	_, _ = fmt.Fprintf(ctx.Stdout, "ledgerline %s (%s)\n", version, commitSHA)
	return nil
}
