package ledger

import (
	"fmt"
	"strings"
)

// Delta Architecture
//
// Mutations of a Book go through two steps. A validator, working on a
// read-only view of the book, checks the request and returns a delta that
// lists every field change. Only when validation succeeds is the delta
// applied, in one step, under the book's lock. A rejected request therefore
// never leaves the book partially updated.

// EntryChange is the full new state of the mutable fields of one entry.
type EntryChange struct {
	ID                 string
	LinkedTo           []string
	ReconciliationCode string
	Status             Status
	BankReconciled     bool
	Locked             bool
}

// String returns a human-readable representation of the change.
func (c *EntryChange) String() string {
	var sb strings.Builder
	sb.WriteString(c.ID)
	sb.WriteString(": status=")
	sb.WriteString(c.Status.String())
	if c.ReconciliationCode != "" {
		sb.WriteString(" code=")
		sb.WriteString(c.ReconciliationCode)
		sb.WriteString(" linked=[")
		sb.WriteString(strings.Join(c.LinkedTo, ","))
		sb.WriteString("]")
	}
	if c.BankReconciled {
		sb.WriteString(" bank")
	}
	if c.Locked {
		sb.WriteString(" locked")
	}
	return sb.String()
}

// Delta is a validated set of changes ready to be applied to a Book.
type Delta struct {
	Changes []EntryChange

	// AddGroups registers new reconciliation groups.
	AddGroups []*groupState
	// RemoveGroups drops reconciliation groups by code.
	RemoveGroups []string
}

// IsEmpty reports whether applying the delta would change nothing.
func (d *Delta) IsEmpty() bool {
	return len(d.Changes) == 0 && len(d.AddGroups) == 0 && len(d.RemoveGroups) == 0
}

// String returns a human-readable summary of the delta.
func (d *Delta) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%d change(s)", len(d.Changes))
	for _, g := range d.AddGroups {
		fmt.Fprintf(&sb, ", +group %s", g.code)
	}
	for _, code := range d.RemoveGroups {
		fmt.Fprintf(&sb, ", -group %s", code)
	}
	return sb.String()
}

// groupState is the book's record of one reconciliation group.
type groupState struct {
	code    string
	members []string          // sorted ids
	prior   map[string]Status // status of each member before linking
}

// changeFor starts an EntryChange from the current state of t.
func changeFor(t *Transaction) EntryChange {
	return EntryChange{
		ID:                 t.ID,
		LinkedTo:           t.LinkedTo,
		ReconciliationCode: t.ReconciliationCode,
		Status:             t.Status,
		BankReconciled:     t.BankReconciled,
		Locked:             t.Locked,
	}
}
