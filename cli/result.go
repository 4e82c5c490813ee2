package cli

import (
	lerrors "github.com/ledgerline/ledgerline/errors"
)

// Exit codes. Scripts can tell a rejected request apart from a conflict
// that needs an unlink first.
const (
	ExitFailure  = 1 // invalid input, parse error or internal failure
	ExitNotFound = 3 // unknown entry, reconciliation code or fiscal year
	ExitConflict = 4 // entry already reconciled or locked
)

// CommandError signals a command failure with a specific exit code.
// Commands return it once their output has been printed; main exits with
// the code.
type CommandError struct {
	exitCode int
}

// NewCommandError creates a CommandError with the given exit code.
func NewCommandError(exitCode int) *CommandError {
	return &CommandError{exitCode: exitCode}
}

func (e *CommandError) Error() string {
	return "command failed"
}

// ExitCode returns the exit code associated with this error.
func (e *CommandError) ExitCode() int {
	return e.exitCode
}

// ExitCodeFor maps a ledger error to the exit code of the command that
// failed with it.
func ExitCodeFor(err error) int {
	switch lerrors.Kind(err) {
	case lerrors.KindNotFound:
		return ExitNotFound
	case lerrors.KindAlreadyReconciled, lerrors.KindLockedEntry:
		return ExitConflict
	default:
		return ExitFailure
	}
}
