// Package web provides an HTTP server for browsing and reconciling a ledger.
//
// The server exposes a JSON API over the dashboard view model and the
// mutation operations of the book (link, unlink, batch actions). Mutations
// are kept in memory only; reloading the input file discards them. When
// watching is enabled, changes to the input file or its includes reload the
// book and notify connected clients through Server-Sent Events.
//
// SECURITY WARNING: This server has no authentication and should only be
// bound to localhost (127.0.0.1). Do not expose it to untrusted networks.
package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/config"
	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/loader"
	"github.com/ledgerline/ledgerline/telemetry"
)

type Server struct {
	Host           string
	Port           int
	Version        string
	CommitSHA      string
	ReadOnly       bool
	WatchEnabled   bool
	AllowedOrigins []string

	// Side and Opening are the defaults for views that do not override them.
	Side    ledger.Side
	Opening decimal.Decimal

	cfg *ledger.Config
	log zerolog.Logger

	mu       sync.RWMutex
	book     *ledger.Book
	loadErrs []error
	rootFile string   // Absolute path of the root input file
	files    []string // Absolute paths of every loaded file, root first

	// inputFile is the path passed to New, used for (re)loading.
	inputFile string

	// SSE clients for broadcasting events
	sseClients map[chan string]struct{}
	sseMu      sync.Mutex
}

// New creates a server for inputFile configured from settings.
func New(inputFile string, settings *config.Settings, log zerolog.Logger) *Server {
	return &Server{
		Host:           settings.Server.Host,
		Port:           settings.Server.Port,
		ReadOnly:       settings.Server.ReadOnly,
		WatchEnabled:   settings.Server.Watch,
		AllowedOrigins: settings.Server.AllowedOrigins,
		Side:           settings.Side,
		Opening:        settings.OpeningBalance,
		cfg:            settings.Ledger,
		log:            log,
		inputFile:      inputFile,
		sseClients:     make(map[chan string]struct{}),
	}
}

// Start loads the input file and serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("web.start %s:%d", s.Host, s.Port))

	if s.inputFile == "" {
		timer.End()
		return fmt.Errorf("input file is required")
	}

	loadTimer := timer.Child(fmt.Sprintf("web.load %s", filepath.Base(s.inputFile)))
	if err := s.reload(ctx); err != nil {
		loadTimer.End()
		timer.End()
		return fmt.Errorf("failed to load ledger: %w", err)
	}
	loadTimer.End()

	if s.WatchEnabled {
		if err := s.startWatcher(ctx); err != nil {
			timer.End()
			return fmt.Errorf("failed to start file watcher: %w", err)
		}
	}

	setupTimer := timer.Child("web.setup_router")
	handler := s.Handler()
	setupTimer.End()
	timer.End()

	srv := &http.Server{
		Addr:        fmt.Sprintf("%s:%d", s.Host, s.Port),
		Handler:     handler,
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", srv.Addr).Bool("read_only", s.ReadOnly).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.log.Info().Msg("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// reload loads the input file into a fresh book and swaps it in.
// Records failing validation are kept out of the book and reported through
// /api/errors; only I/O and parse errors fail the reload.
// Caller must NOT hold the mutex.
func (s *Server) reload(ctx context.Context) error {
	ldr := loader.New(loader.WithFollowIncludes())

	result, err := ldr.Load(ctx, s.inputFile)
	if err != nil {
		return err
	}

	book := ledger.New(s.cfg)
	var loadErrs []error
	if err := book.Load(ctx, result.Records); err != nil {
		var verrs *ledger.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		loadErrs = verrs.Errors
	}

	s.mu.Lock()
	s.book = book
	s.loadErrs = loadErrs
	s.rootFile = result.Root
	s.files = result.Files
	s.mu.Unlock()

	s.log.Info().
		Str("file", result.Root).
		Int("transactions", book.Len()).
		Int("rejected", len(loadErrs)).
		Msg("Ledger loaded")
	return nil
}

// current returns the book being served and its load errors.
func (s *Server) current() (*ledger.Book, []error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.book, s.loadErrs
}

// startWatcher watches the root file and every included file. It reloads
// the book and broadcasts an SSE event when one of them changes.
func (s *Server) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}

	s.mu.RLock()
	filesToWatch := append([]string(nil), s.files...)
	s.mu.RUnlock()

	for _, file := range filesToWatch {
		if err := watcher.Add(file); err != nil {
			s.log.Warn().Err(err).Str("file", file).Msg("Failed to watch file")
		}
	}

	go s.runWatcher(ctx, watcher)

	return nil
}

// runWatcher processes file system events with debouncing.
func (s *Server) runWatcher(ctx context.Context, watcher *fsnotify.Watcher) {
	var debounceTimer *time.Timer
	defer func() {
		if debounceTimer != nil {
			debounceTimer.Stop()
		}
		_ = watcher.Close()
	}()

	// Editors often write files in several steps
	const debounceDelay = 100 * time.Millisecond

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}

			// Remove/Rename are common in atomic saves
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if debounceTimer != nil {
				debounceTimer.Stop()
			}

			debounceTimer = time.AfterFunc(debounceDelay, func() {
				s.handleFileChange(ctx, watcher)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			s.log.Error().Err(err).Msg("File watcher error")
		}
	}
}

// handleFileChange reloads the book and updates the watch list.
func (s *Server) handleFileChange(ctx context.Context, watcher *fsnotify.Watcher) {
	s.mu.RLock()
	oldFiles := make(map[string]bool, len(s.files))
	for _, f := range s.files {
		oldFiles[f] = true
	}
	s.mu.RUnlock()

	if err := s.reload(ctx); err != nil {
		s.log.Error().Err(err).Msg("Failed to reload ledger")
		s.broadcast("error")
		return
	}

	s.mu.RLock()
	newFiles := make(map[string]bool, len(s.files))
	for _, f := range s.files {
		newFiles[f] = true
	}
	s.mu.RUnlock()

	for file := range oldFiles {
		if !newFiles[file] {
			_ = watcher.Remove(file)
		}
	}

	// Re-add everything to catch files re-created by atomic saves
	for file := range newFiles {
		if err := watcher.Add(file); err != nil {
			s.log.Warn().Err(err).Str("file", file).Msg("Failed to watch file")
		}
	}

	s.broadcast("reload")
}
