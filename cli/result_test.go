package cli

import (
	"fmt"
	"testing"

	"github.com/alecthomas/assert/v2"

	"github.com/ledgerline/ledgerline/ledger"
)

func TestCommandError(t *testing.T) {
	err := NewCommandError(42)
	assert.Error(t, err)
	assert.Equal(t, 42, err.ExitCode())

	var wrapped error = err
	cmdErr, ok := wrapped.(*CommandError)
	assert.True(t, ok)
	assert.Equal(t, 42, cmdErr.ExitCode())
}

func TestExitCodeFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"Validation", ledger.NewValidationError("INV-1", "amount", "negative"), ExitFailure},
		{"NotFound", ledger.NewNotFoundError("reconciliation", "Q"), ExitNotFound},
		{"AlreadyReconciled", ledger.NewAlreadyReconciledError("INV-1", "A"), ExitConflict},
		{"Locked", fmt.Errorf("apply: %w", ledger.NewLockedEntryError("INV-1")), ExitConflict},
		{"Other", fmt.Errorf("boom"), ExitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExitCodeFor(tt.err))
		})
	}
}
