package ledger

import (
	"fmt"
	"strings"

	"golang.org/x/exp/slices"
)

// Action is a bulk operation over a selection.
type Action int

const (
	// ActionReconcile links the selection into one reconciliation group.
	ActionReconcile Action = iota + 1
	// ActionTagBankReconciliation marks entries as matched against a bank statement.
	ActionTagBankReconciliation
	// ActionValidate locks entries against further edits.
	ActionValidate
	// ActionUnreconcile dissolves every group the selection touches.
	ActionUnreconcile
)

var actionNames = map[Action]string{
	ActionReconcile:             "reconcile",
	ActionTagBankReconciliation: "tag_bank",
	ActionValidate:              "validate",
	ActionUnreconcile:           "unreconcile",
}

// ParseAction parses an action name such as "reconcile" or "tag-bank".
func ParseAction(s string) (Action, error) {
	normalized := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), "-", "_")
	switch normalized {
	case "lettrage", "link":
		return ActionReconcile, nil
	case "bank", "tag_bank_reconciliation":
		return ActionTagBankReconciliation, nil
	case "lock":
		return ActionValidate, nil
	case "unlink":
		return ActionUnreconcile, nil
	}
	for a, name := range actionNames {
		if name == normalized {
			return a, nil
		}
	}
	return 0, fmt.Errorf("unknown action %q", s)
}

// String returns the canonical name of the action.
func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "unknown"
}

// MinSelection returns the smallest selection the action accepts.
func (a Action) MinSelection() int {
	if a == ActionReconcile {
		return 2
	}
	return 0
}

// Apply runs one action over the selection as a single atomic step and
// returns how many entries it changed. Either every eligible member is
// updated or none is: a locked member or an unknown id rejects the whole
// batch. The selection is cleared afterwards, whatever the outcome.
func (b *Book) Apply(action Action, selection *SelectionSet) (int, error) {
	defer selection.Clear()

	b.mu.Lock()
	defer b.mu.Unlock()

	delta, err := b.plan(action, selection.IDs(), b.nextCode)
	if err != nil {
		return 0, err
	}
	b.applyDelta(delta)
	return len(delta.Changes), nil
}

// Preview validates an action over the selection and returns the changes
// Apply would make, without making them. The selection is left as is, so
// the caller can confirm and apply it.
func (b *Book) Preview(action Action, selection *SelectionSet) (*Delta, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.plan(action, selection.IDs(), b.peekCode)
}

// plan validates action over ids and computes its delta. nextCode supplies
// the code of a new reconciliation group.
func (b *Book) plan(action Action, ids []string, nextCode func() string) (*Delta, error) {
	if len(ids) < action.MinSelection() {
		return nil, NewValidationError("", "selection",
			fmt.Sprintf("%s needs at least %d selected entries, got %d", action, action.MinSelection(), len(ids)))
	}

	v := newValidator(b)
	members, err := v.resolve(ids)
	if err != nil {
		return nil, err
	}
	if locked := lockedAmong(members); len(locked) > 0 {
		return nil, NewLockedEntryError(locked...)
	}

	switch action {
	case ActionReconcile:
		delta, _, err := v.validateLink(ids, "", nextCode)
		return delta, err
	case ActionTagBankReconciliation, ActionValidate:
		return v.validateFlag(action, members), nil
	case ActionUnreconcile:
		return v.validateUnreconcile(members)
	default:
		return nil, NewValidationError("", "action", fmt.Sprintf("unsupported action %d", action))
	}
}

// validateFlag computes the delta setting the bank or lock flag. Entries
// already carrying the flag are not eligible and are left out.
func (v *validator) validateFlag(action Action, members []*Transaction) *Delta {
	delta := &Delta{}
	for _, t := range members {
		change := changeFor(t)
		switch action {
		case ActionTagBankReconciliation:
			if t.BankReconciled {
				continue
			}
			change.BankReconciled = true
		case ActionValidate:
			change.Locked = true
		}
		delta.Changes = append(delta.Changes, change)
	}
	return delta
}

// validateUnreconcile merges the unlink deltas of every group touched by
// members. Unreconciled members are not eligible.
func (v *validator) validateUnreconcile(members []*Transaction) (*Delta, error) {
	var codes []string
	for _, t := range members {
		if t.IsReconciled() && !slices.Contains(codes, t.ReconciliationCode) {
			codes = append(codes, t.ReconciliationCode)
		}
	}
	slices.Sort(codes)

	merged := &Delta{}
	for _, code := range codes {
		delta, err := v.validateUnlink(code)
		if err != nil {
			return nil, err
		}
		merged.Changes = append(merged.Changes, delta.Changes...)
		merged.RemoveGroups = append(merged.RemoveGroups, delta.RemoveGroups...)
	}
	return merged, nil
}
