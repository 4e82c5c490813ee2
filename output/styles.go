// Package output provides styling and layout helpers for terminal output.
package output

import (
	"io"

	"github.com/muesli/termenv"
	"github.com/shopspring/decimal"

	"github.com/ledgerline/ledgerline/ledger"
)

// Styles provides styled output helpers for the CLI.
type Styles struct {
	output *termenv.Output
}

// NewStyles creates a new Styles instance for the given writer. Colors are
// only emitted when w is a terminal.
func NewStyles(w io.Writer) *Styles {
	return &Styles{
		output: termenv.NewOutput(w),
	}
}

func (s *Styles) color(text, code string) string {
	return s.output.String(text).Foreground(s.output.Color(code)).String()
}

// Success returns a styled success string (green + bold).
func (s *Styles) Success(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("2")).
		Bold().
		String()
}

// Error returns a styled error string (red + bold).
func (s *Styles) Error(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("1")).
		Bold().
		String()
}

// Warning returns a styled warning (yellow + bold).
func (s *Styles) Warning(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("3")).
		Bold().
		String()
}

// Counterparty returns a styled counterparty name (yellow).
func (s *Styles) Counterparty(text string) string {
	return s.color(text, "3")
}

// Code returns a styled reconciliation code (cyan + bold).
func (s *Styles) Code(text string) string {
	return s.output.String(text).
		Foreground(s.output.Color("6")).
		Bold().
		String()
}

// Keyword returns a styled keyword (bold).
func (s *Styles) Keyword(text string) string {
	return s.output.String(text).Bold().String()
}

// Dim returns dimmed text (for secondary information).
func (s *Styles) Dim(text string) string {
	return s.output.String(text).Faint().String()
}

// Amount colors text by the sign of value: debits magenta, credits blue,
// zero dimmed.
func (s *Styles) Amount(text string, value decimal.Decimal) string {
	switch {
	case value.IsPositive():
		return s.color(text, "5")
	case value.IsNegative():
		return s.color(text, "4")
	default:
		return s.Dim(text)
	}
}

// Status colors text by settlement status.
func (s *Styles) Status(text string, status ledger.Status) string {
	switch status {
	case ledger.StatusPaid:
		return s.color(text, "2")
	case ledger.StatusPartial:
		return s.color(text, "3")
	case ledger.StatusOverdue:
		return s.Error(text)
	default:
		return text
	}
}

// Timing returns a styled timing string, red for slow operations and
// dimmed otherwise.
func (s *Styles) Timing(text string, isSlowOperation bool) string {
	if isSlowOperation {
		return s.color(text, "1")
	}
	return s.Dim(text)
}

// Output returns the underlying termenv Output for advanced usage.
func (s *Styles) Output() *termenv.Output {
	return s.output
}
