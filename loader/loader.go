// Package loader reads raw ledger records from JSON or CSV sources and
// writes transactions back as JSON.
//
// A JSON source is either an array of records or a document:
//
//	{
//	  "include": ["2023.json"],
//	  "transactions": [{"id": "INV-1", "date": "2024-01-05", ...}]
//	}
//
// Include paths are relative to the including file. They are only followed
// with WithFollowIncludes, which loads older years kept in separate files
// and merges all records into one result. A file included several times is
// loaded once.
//
// A CSV source has a header row naming the columns (id, date, due_date,
// label, amount, currency, kind, status, counterparty, reference,
// linked_to, reconciliation_code, bank_reconciled, locked). linked_to
// holds ids separated by ";". Columns may come in any order; unknown
// columns are ignored.
//
// Example usage:
//
//	ldr := loader.New(loader.WithFollowIncludes())
//	result, err := ldr.Load(ctx, "ledger.json")
//	if err != nil {
//	    return err
//	}
//	err = book.Load(ctx, result.Records)
package loader

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/telemetry"
)

// Format is the encoding of a source.
type Format int

const (
	// FormatAuto picks JSON or CSV from the file extension, falling back
	// to the content.
	FormatAuto Format = iota
	FormatJSON
	FormatCSV
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatCSV:
		return "csv"
	default:
		return "auto"
	}
}

// ParseFormat parses "auto", "json" or "csv".
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "json":
		return FormatJSON, nil
	case "csv":
		return FormatCSV, nil
	default:
		return FormatAuto, fmt.Errorf("unknown format %q", s)
	}
}

// DetectFormat resolves FormatAuto for a source.
func DetectFormat(filename string, data []byte) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".json":
		return FormatJSON
	case ".csv":
		return FormatCSV
	}
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && (trimmed[0] == '[' || trimmed[0] == '{') {
		return FormatJSON
	}
	return FormatCSV
}

// Loader reads ledger sources.
//
// Configure the loader using functional options passed to New:
//
//	loader := New(WithFollowIncludes(), WithFormat(FormatCSV))
type Loader struct {
	// FollowIncludes determines whether include entries of JSON documents
	// are loaded and merged. When false they are only listed in
	// Result.Includes.
	FollowIncludes bool

	// Format forces the source encoding. FormatAuto detects it.
	Format Format
}

// Option configures how files are loaded.
type Option func(*Loader)

// WithFollowIncludes configures the loader to recursively load and merge
// all included files.
func WithFollowIncludes() Option {
	return func(l *Loader) {
		l.FollowIncludes = true
	}
}

// WithFormat forces the encoding of the top-level source. Included files
// always have their format detected.
func WithFormat(format Format) Option {
	return func(l *Loader) {
		l.Format = format
	}
}

// New creates a new Loader with the given options.
func New(opts ...Option) *Loader {
	l := &Loader{}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Result holds the records read from a source.
type Result struct {
	// Root is the absolute path of the loaded file, or the name given to
	// LoadBytes.
	Root string

	// Includes lists include paths that were not followed. It is empty
	// when FollowIncludes is set.
	Includes []string

	// Files lists every file read, root first.
	Files []string

	Records []ledger.RawTransaction
}

// Load reads a file, following its includes when configured to.
func (l *Loader) Load(ctx context.Context, filename string) (*Result, error) {
	absPath, err := filepath.Abs(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path for %s: %w", filename, err)
	}
	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", filename, err)
	}
	return l.load(ctx, absPath, filepath.Dir(absPath), data)
}

// LoadBytes reads a source held in memory, such as stdin. filename is used
// for format detection and error messages; includes resolve from the
// current directory.
func (l *Loader) LoadBytes(ctx context.Context, filename string, data []byte) (*Result, error) {
	return l.load(ctx, filename, ".", data)
}

func (l *Loader) load(ctx context.Context, name, baseDir string, data []byte) (*Result, error) {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("loader.load %s", filepath.Base(name)))
	defer timer.End()

	format := l.Format
	if format == FormatAuto {
		format = DetectFormat(name, data)
	}
	doc, err := decode(ctx, name, format, data)
	if err != nil {
		return nil, err
	}

	result := &Result{Root: name, Files: []string{name}, Records: doc.records}
	if !l.FollowIncludes {
		result.Includes = doc.includes
		return result, nil
	}

	state := &loaderState{visited: map[string]bool{name: true}, result: result}
	if err := state.loadIncludes(ctx, name, baseDir, doc.includes); err != nil {
		return nil, err
	}
	return result, nil
}

// document is the decoded content of one source.
type document struct {
	includes []string
	records  []ledger.RawTransaction
}

func decode(ctx context.Context, filename string, format Format, data []byte) (*document, error) {
	switch format {
	case FormatCSV:
		return decodeCSV(ctx, filename, data)
	default:
		return decodeJSON(filename, data)
	}
}

// loaderState tracks state during recursive loading.
type loaderState struct {
	visited map[string]bool // Absolute paths of files already loaded
	result  *Result
}

func (s *loaderState) loadIncludes(ctx context.Context, from, baseDir string, includes []string) error {
	for _, inc := range includes {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		includePath := inc
		if !filepath.IsAbs(includePath) {
			includePath = filepath.Join(baseDir, includePath)
		}
		if s.visited[includePath] {
			continue
		}
		s.visited[includePath] = true

		data, err := os.ReadFile(includePath)
		if err != nil {
			return fmt.Errorf("in file %s: failed to read %s: %w", from, inc, err)
		}
		doc, err := decode(ctx, includePath, DetectFormat(includePath, data), data)
		if err != nil {
			return fmt.Errorf("in file %s: %w", from, err)
		}

		s.result.Files = append(s.result.Files, includePath)
		s.result.Records = append(s.result.Records, doc.records...)
		if err := s.loadIncludes(ctx, includePath, filepath.Dir(includePath), doc.includes); err != nil {
			return err
		}
	}
	return nil
}

// ParseError reports a source that could not be decoded. Line is 1-based,
// zero when unknown.
type ParseError struct {
	Filename string
	Line     int
	Err      error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s:%d: %v", e.Filename, e.Line, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Filename, e.Err)
}

// Unwrap returns the underlying decoding error.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// GetLine returns the line the error occurred on.
func (e *ParseError) GetLine() int {
	return e.Line
}

// lineOf converts a byte offset into a 1-based line number.
func lineOf(data []byte, offset int64) int {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	return bytes.Count(data[:offset], []byte("\n")) + 1
}
