package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/ledgerline/ledgerline/loader"
	"github.com/ledgerline/ledgerline/web"
)

type ServeCmd struct {
	File     string `help:"Ledger file to serve (JSON or CSV)." arg:""`
	Host     string `help:"Host to bind (overrides settings)."`
	Port     int    `help:"Port to listen on (overrides settings)."`
	Create   bool   `help:"Automatically create file if it doesn't exist (no confirmation prompt)." short:"c"`
	ReadOnly bool   `help:"Enable read-only mode (no write operations allowed)." short:"r"`
	NoWatch  bool   `help:"Do not reload when the file changes." name:"no-watch"`
}

func (cmd *ServeCmd) Run(ctx *kong.Context, globals *Globals) error {
	s, err := globals.newSession(ctx, "serve")
	if err != nil {
		return err
	}
	defer s.report()

	ledgerFile, err := filepath.Abs(cmd.File)
	if err != nil {
		return fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	if err := cmd.ensureFile(ctx, ledgerFile); err != nil {
		return err
	}

	settings := s.settings
	if cmd.Host != "" {
		settings.Server.Host = cmd.Host
	}
	if cmd.Port != 0 {
		settings.Server.Port = cmd.Port
	}
	if cmd.ReadOnly {
		settings.Server.ReadOnly = true
	}
	if cmd.NoWatch {
		settings.Server.Watch = false
	}
	settings.Side = s.side

	server := web.New(ledgerFile, settings, s.log)
	server.Version, server.CommitSHA = buildVersion()

	printInfof(ctx.Stdout, "Starting server on %s", settings.Server.Address())
	printInfof(ctx.Stdout, "Serving ledger: %s", pathStyle.Render(ledgerFile))

	if settings.Server.ReadOnly {
		printInfof(ctx.Stdout, "Server running in READ-ONLY mode")
	}

	runCtx, stop := signal.NotifyContext(s.ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return server.Start(runCtx)
}

// ensureFile creates an empty ledger at path when it is missing and the
// user agrees.
func (cmd *ServeCmd) ensureFile(ctx *kong.Context, ledgerFile string) error {
	_, err := os.Stat(ledgerFile)
	if err == nil {
		return nil
	}
	if !os.IsNotExist(err) {
		return fmt.Errorf("failed to access file: %w", err)
	}

	shouldCreate := cmd.Create
	if !shouldCreate {
		confirmed, err := promptYesNo(fmt.Sprintf("File %q does not exist. Create it?", ledgerFile))
		if err != nil {
			return fmt.Errorf("failed to read confirmation: %w", err)
		}
		shouldCreate = confirmed
	}

	if !shouldCreate {
		return fmt.Errorf("file does not exist: %s", ledgerFile)
	}

	parentDir := filepath.Dir(ledgerFile)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		return fmt.Errorf("failed to create parent directory: %w", err)
	}

	if err := loader.WriteFile(ledgerFile, nil); err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	printInfof(ctx.Stdout, "Created empty ledger file: %s", pathStyle.Render(ledgerFile))
	return nil
}
