// Package errors provides error formatting for ledger errors. It separates
// error presentation from domain logic, allowing errors to be rendered in
// multiple formats for different consumers (CLI, web API).
//
// The package defines a Formatter interface and provides two implementations:
//   - TextFormatter: Formats errors for command-line output, with the
//     offending record or source lines as context
//   - JSONFormatter: Formats errors as structured JSON for the web API
//
// Domain error types stay in the ledger and loader packages; this package
// only handles presentation.
package errors

import (
	"bytes"
	"encoding/json"
	stdErrors "errors"
	"fmt"
	"strings"

	"github.com/ledgerline/ledgerline/ledger"
	"github.com/ledgerline/ledgerline/loader"
)

// Error kinds reported by Kind.
const (
	KindValidation        = "validation"
	KindAlreadyReconciled = "already_reconciled"
	KindLockedEntry       = "locked_entry"
	KindNotFound          = "not_found"
	KindParse             = "parse"
	KindInternal          = "internal"
)

// Kind classifies err by the ledger sentinel it matches.
func Kind(err error) string {
	var parseErr *loader.ParseError
	switch {
	case stdErrors.As(err, &parseErr):
		return KindParse
	case stdErrors.Is(err, ledger.ErrLockedEntry):
		return KindLockedEntry
	case stdErrors.Is(err, ledger.ErrAlreadyReconciled):
		return KindAlreadyReconciled
	case stdErrors.Is(err, ledger.ErrNotFound):
		return KindNotFound
	case stdErrors.Is(err, ledger.ErrValidation):
		return KindValidation
	default:
		return KindInternal
	}
}

// Flatten expands a *ledger.ValidationErrors into its members. Other errors
// are returned as a single-element slice.
func Flatten(err error) []error {
	if err == nil {
		return nil
	}
	var verrs *ledger.ValidationErrors
	if stdErrors.As(err, &verrs) {
		return verrs.Errors
	}
	return []error{err}
}

// Formatter formats errors for output in different formats.
type Formatter interface {
	// Format formats a single error.
	Format(err error) string

	// FormatAll formats multiple errors.
	FormatAll(errs []error) string
}

// TextFormatter formats errors for command-line output.
type TextFormatter struct {
	sourceContent []byte // Optional source content for parse error context
	records       map[string]ledger.RawTransaction
}

// TextFormatterOption is an option for configuring TextFormatter.
type TextFormatterOption func(*TextFormatter)

// WithSource sets the source content for parse error context.
func WithSource(source []byte) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.sourceContent = source
	}
}

// WithRecords supplies the raw records that were loaded, so errors about a
// record can show it.
func WithRecords(records []ledger.RawTransaction) TextFormatterOption {
	return func(tf *TextFormatter) {
		tf.records = make(map[string]ledger.RawTransaction, len(records))
		for _, r := range records {
			id := strings.TrimSpace(r.ID)
			if _, seen := tf.records[id]; !seen {
				tf.records[id] = r
			}
		}
	}
}

// NewTextFormatter creates a new text formatter.
func NewTextFormatter(opts ...TextFormatterOption) *TextFormatter {
	tf := &TextFormatter{}
	for _, opt := range opts {
		opt(tf)
	}
	return tf
}

// Format formats a single error.
func (tf *TextFormatter) Format(err error) string {
	var parseErr *loader.ParseError
	if stdErrors.As(err, &parseErr) && parseErr.Line > 0 && tf.sourceContent != nil {
		return tf.formatWithSourceContext(parseErr.Line, err.Error(), tf.sourceContent)
	}

	if e, ok := err.(interface{ GetID() string }); ok {
		if record, found := tf.records[e.GetID()]; found {
			return tf.formatWithRecord(err.Error(), record)
		}
	}

	return err.Error()
}

// FormatAll formats multiple errors, separating them with blank lines.
func (tf *TextFormatter) FormatAll(errs []error) string {
	if len(errs) == 0 {
		return ""
	}

	var buf bytes.Buffer
	for i, err := range errs {
		buf.WriteString(tf.Format(err))

		// Add blank line between errors (but not after the last one)
		if i < len(errs)-1 {
			buf.WriteString("\n\n")
		}
	}

	return buf.String()
}

// formatWithSourceContext shows the error message followed by the source
// lines around the error line, which is marked with ">".
func (tf *TextFormatter) formatWithSourceContext(line int, message string, sourceContent []byte) string {
	var buf bytes.Buffer

	buf.WriteString(message)
	buf.WriteString("\n\n")

	sourceLines := strings.Split(string(sourceContent), "\n")

	// Two lines before and one after, 0-based.
	startLine := line - 3
	endLine := line
	if startLine < 0 {
		startLine = 0
	}
	if endLine >= len(sourceLines) {
		endLine = len(sourceLines) - 1
	}

	for i := startLine; i <= endLine; i++ {
		if i == line-1 {
			buf.WriteString(" > ")
		} else {
			buf.WriteString("   ")
		}
		buf.WriteString(sourceLines[i])
		buf.WriteByte('\n')
	}

	return buf.String()
}

// formatWithRecord shows the error message followed by a one-line rendering
// of the offending record.
func (tf *TextFormatter) formatWithRecord(message string, r ledger.RawTransaction) string {
	var buf bytes.Buffer

	buf.WriteString(message)
	buf.WriteString("\n\n")

	buf.WriteString("   ")
	fmt.Fprintf(&buf, "%s %s %s", orDash(r.Date), orDash(r.Kind), orDash(r.ID))
	if r.Label != "" {
		fmt.Fprintf(&buf, " %q", r.Label)
	}
	if r.Amount != "" {
		fmt.Fprintf(&buf, "  %s", r.Amount)
		if r.Currency != "" {
			fmt.Fprintf(&buf, " %s", r.Currency)
		}
	}
	if r.Counterparty != "" {
		fmt.Fprintf(&buf, "  @%s", r.Counterparty)
	}
	if r.ReconciliationCode != "" {
		fmt.Fprintf(&buf, "  [%s]", r.ReconciliationCode)
	}
	buf.WriteByte('\n')

	return buf.String()
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// JSONFormatter formats errors as JSON.
type JSONFormatter struct{}

// NewJSONFormatter creates a new JSON formatter.
func NewJSONFormatter() *JSONFormatter {
	return &JSONFormatter{}
}

// ErrorJSON represents an error in JSON format.
type ErrorJSON struct {
	Type    string         `json:"type"`
	Message string         `json:"message"`
	ID      string         `json:"id,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Format formats a single error as JSON.
func (jf *JSONFormatter) Format(err error) string {
	data, _ := json.Marshal(jf.ToJSON(err))
	return string(data)
}

// FormatAll formats multiple errors as a JSON array.
func (jf *JSONFormatter) FormatAll(errs []error) string {
	data, _ := json.MarshalIndent(jf.FormatAllToSlice(errs), "", "  ")
	return string(data)
}

// FormatAllToSlice returns errors as a slice of ErrorJSON structs.
func (jf *JSONFormatter) FormatAllToSlice(errs []error) []ErrorJSON {
	result := make([]ErrorJSON, 0, len(errs))
	for _, err := range errs {
		result = append(result, jf.ToJSON(err))
	}
	return result
}

// ToJSON converts an error to ErrorJSON.
func (jf *JSONFormatter) ToJSON(err error) ErrorJSON {
	errJSON := ErrorJSON{
		Type:    Kind(err),
		Message: err.Error(),
		Details: make(map[string]any),
	}

	if e, ok := err.(interface{ GetID() string }); ok {
		errJSON.ID = e.GetID()
	}

	var (
		validation *ledger.ValidationError
		reconciled *ledger.AlreadyReconciledError
		locked     *ledger.LockedEntryError
		notFound   *ledger.NotFoundError
		parse      *loader.ParseError
	)
	switch {
	case stdErrors.As(err, &validation):
		errJSON.Details["field"] = validation.Field
		errJSON.Details["reason"] = validation.Reason
	case stdErrors.As(err, &reconciled):
		errJSON.Details["code"] = reconciled.Code
	case stdErrors.As(err, &locked):
		errJSON.Details["ids"] = locked.IDs
	case stdErrors.As(err, &notFound):
		errJSON.Details["resource"] = notFound.Resource
		errJSON.Details["key"] = notFound.Key
	case stdErrors.As(err, &parse):
		errJSON.Details["filename"] = parse.Filename
		if parse.Line > 0 {
			errJSON.Details["line"] = parse.Line
		}
	}
	if len(errJSON.Details) == 0 {
		errJSON.Details = nil
	}

	return errJSON
}
