package ledger

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors identify each error kind for errors.Is, whatever the
// concrete error type carrying the details.
var (
	ErrValidation        = errors.New("validation error")
	ErrAlreadyReconciled = errors.New("already reconciled")
	ErrLockedEntry       = errors.New("locked entry")
	ErrNotFound          = errors.New("not found")
)

// ValidationError is returned for a malformed record or request.
// The offending record is excluded; the rest of the batch proceeds.
type ValidationError struct {
	ID     string // Transaction id, empty when the record had none
	Field  string // Offending field
	Reason string
}

// NewValidationError creates a ValidationError.
func NewValidationError(id, field, reason string) *ValidationError {
	return &ValidationError{ID: id, Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("%s: invalid %s: %s", e.ID, e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func (e *ValidationError) GetID() string {
	return e.ID
}

// AlreadyReconciledError is returned when linking an entry that is committed
// to a different reconciliation group. Unlink the group first.
type AlreadyReconciledError struct {
	ID   string // Entry that is already reconciled
	Code string // Group it belongs to
}

// NewAlreadyReconciledError creates an AlreadyReconciledError.
func NewAlreadyReconciledError(id, code string) *AlreadyReconciledError {
	return &AlreadyReconciledError{ID: id, Code: code}
}

func (e *AlreadyReconciledError) Error() string {
	return fmt.Sprintf("%s: already reconciled in group %s", e.ID, e.Code)
}

func (e *AlreadyReconciledError) Is(target error) bool {
	return target == ErrAlreadyReconciled
}

func (e *AlreadyReconciledError) GetID() string {
	return e.ID
}

// LockedEntryError is returned when an operation would mutate a validated
// entry. The whole operation is rejected.
type LockedEntryError struct {
	IDs []string // Every locked entry touched by the operation
}

// NewLockedEntryError creates a LockedEntryError.
func NewLockedEntryError(ids ...string) *LockedEntryError {
	return &LockedEntryError{IDs: ids}
}

func (e *LockedEntryError) Error() string {
	if len(e.IDs) == 1 {
		return fmt.Sprintf("%s: entry is locked", e.IDs[0])
	}
	return fmt.Sprintf("%d entries are locked: %s", len(e.IDs), strings.Join(e.IDs, ", "))
}

func (e *LockedEntryError) Is(target error) bool {
	return target == ErrLockedEntry
}

func (e *LockedEntryError) GetID() string {
	if len(e.IDs) == 0 {
		return ""
	}
	return e.IDs[0]
}

// NotFoundError is returned for an unknown transaction id or reconciliation code.
type NotFoundError struct {
	Resource string // "transaction" or "reconciliation"
	Key      string
}

// NewNotFoundError creates a NotFoundError.
func NewNotFoundError(resource, key string) *NotFoundError {
	return &NotFoundError{Resource: resource, Key: key}
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.Key)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

func (e *NotFoundError) GetID() string {
	return e.Key
}

// ValidationErrors wraps multiple validation errors
type ValidationErrors struct {
	Errors []error
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	return fmt.Sprintf("%d validation errors occurred", len(e.Errors))
}

// Unwrap returns the underlying errors for error unwrapping
func (e *ValidationErrors) Unwrap() []error {
	return e.Errors
}
