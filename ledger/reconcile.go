package ledger

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// WarningKind classifies non-fatal findings reported with a successful link.
type WarningKind string

const (
	// WarningCrossCounterparty flags a group whose members belong to
	// different counterparties. Allowed, but unusual.
	WarningCrossCounterparty WarningKind = "cross_counterparty"
)

// Warning is a non-fatal finding the caller should surface.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// ReconciliationGroup describes one lettrage: the entries sharing a code and
// whether their signed amounts offset each other.
type ReconciliationGroup struct {
	Code           string          `json:"code"`
	Members        []string        `json:"members"`
	Counterparties []string        `json:"counterparties"`
	Sum            decimal.Decimal `json:"sum"`
	Status         Status          `json:"status"`
	// ToleranceExceeded is set when the signed sum is further from zero than
	// the tolerance allows. The group is then partial; this is an expected
	// business outcome, not an error.
	ToleranceExceeded bool      `json:"tolerance_exceeded"`
	Warnings          []Warning `json:"warnings,omitempty"`
}

// GroupStatus applies the reconciliation balance rule: a group whose signed
// sum is zero within tolerance is paid, any other group is partial.
func GroupStatus(sum, tolerance decimal.Decimal) Status {
	if AmountEqual(sum, decimal.Zero, tolerance) {
		return StatusPaid
	}
	return StatusPartial
}

// summarizeGroup computes the reconciliation view of a set of members.
func summarizeGroup(code string, members []*Transaction, cfg *Config) *ReconciliationGroup {
	ids := make([]string, len(members))
	var counterparties []string
	sum := decimal.Zero
	currency := cfg.Currency
	for i, t := range members {
		ids[i] = t.ID
		sum = sum.Add(SignedAmount(t))
		currency = t.Currency
		name := t.Counterparty
		if name == "" {
			name = UnassignedCounterparty
		}
		if !slices.Contains(counterparties, name) {
			counterparties = append(counterparties, name)
		}
	}
	slices.Sort(ids)
	slices.Sort(counterparties)

	status := GroupStatus(sum, cfg.ToleranceFor(currency))
	group := &ReconciliationGroup{
		Code:              code,
		Members:           ids,
		Counterparties:    counterparties,
		Sum:               sum,
		Status:            status,
		ToleranceExceeded: status != StatusPaid,
	}
	if len(counterparties) > 1 {
		group.Warnings = append(group.Warnings, Warning{
			Kind:    WarningCrossCounterparty,
			Message: fmt.Sprintf("group %s links entries of different counterparties: %s", code, strings.Join(counterparties, ", ")),
		})
	}
	return group
}

// validator checks mutation requests against a read-only view of a book.
type validator struct {
	txns   map[string]*Transaction
	groups map[string]*groupState
	cfg    *Config
}

func newValidator(b *Book) *validator {
	return &validator{txns: b.txns, groups: b.groups, cfg: b.cfg}
}

// resolve maps ids to entries, dropping duplicates and keeping request order.
func (v *validator) resolve(ids []string) ([]*Transaction, error) {
	var members []*Transaction
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		t, ok := v.txns[id]
		if !ok {
			return nil, NewNotFoundError("transaction", id)
		}
		members = append(members, t)
	}
	return members, nil
}

// lockedAmong returns the ids of locked entries in members.
func lockedAmong(members []*Transaction) []string {
	var locked []string
	for _, t := range members {
		if t.Locked {
			locked = append(locked, t.ID)
		}
	}
	return locked
}

// validateLink checks a link request and computes the delta that performs it.
//
// Every member must be unlinked, or belong to a group whose members are all
// part of the request. A paid group may only be linked again with exactly
// its own members. Groups absorbed this way are replaced by the new one.
func (v *validator) validateLink(ids []string, code string, nextCode func() string) (*Delta, *ReconciliationGroup, error) {
	members, err := v.resolve(ids)
	if err != nil {
		return nil, nil, err
	}
	if len(members) < 2 {
		return nil, nil, NewValidationError("", "ids", fmt.Sprintf("reconciliation needs at least 2 distinct entries, got %d", len(members)))
	}
	if locked := lockedAmong(members); len(locked) > 0 {
		return nil, nil, NewLockedEntryError(locked...)
	}

	requested := make(map[string]bool, len(members))
	for _, t := range members {
		requested[t.ID] = true
	}

	absorbed := make(map[string]*groupState)
	var absorbedCodes []string
	for _, t := range members {
		if !t.IsReconciled() {
			continue
		}
		g, ok := v.groups[t.ReconciliationCode]
		if !ok {
			return nil, nil, NewAlreadyReconciledError(t.ID, t.ReconciliationCode)
		}
		if _, done := absorbed[g.code]; done {
			continue
		}
		for _, id := range g.members {
			if !requested[id] {
				return nil, nil, NewAlreadyReconciledError(t.ID, g.code)
			}
		}
		if v.groupStatus(g) == StatusPaid && len(g.members) != len(members) {
			return nil, nil, NewAlreadyReconciledError(t.ID, g.code)
		}
		absorbed[g.code] = g
		absorbedCodes = append(absorbedCodes, g.code)
	}
	slices.Sort(absorbedCodes)

	if code != "" {
		normalized, err := NormalizeCode(code)
		if err != nil {
			return nil, nil, NewValidationError("", "code", err.Error())
		}
		if existing, ok := v.groups[normalized]; ok {
			if _, mine := absorbed[existing.code]; !mine {
				return nil, nil, NewValidationError("", "code", fmt.Sprintf("code %s already in use", existing.code))
			}
		}
		code = normalized
	} else if len(absorbedCodes) > 0 {
		code = absorbedCodes[0]
	} else {
		code = nextCode()
	}

	group := summarizeGroup(code, members, v.cfg)

	state := &groupState{
		code:    code,
		members: group.Members,
		prior:   make(map[string]Status, len(members)),
	}
	delta := &Delta{AddGroups: []*groupState{state}, RemoveGroups: absorbedCodes}
	for _, t := range members {
		prior := t.Status
		if g, ok := absorbed[t.ReconciliationCode]; ok && t.IsReconciled() {
			prior = g.prior[t.ID]
		}
		state.prior[t.ID] = prior

		change := changeFor(t)
		change.ReconciliationCode = code
		change.LinkedTo = peersOf(t.ID, group.Members)
		change.Status = group.Status
		delta.Changes = append(delta.Changes, change)
	}

	return delta, group, nil
}

// validateUnlink checks an unlink request and computes its delta.
func (v *validator) validateUnlink(code string) (*Delta, error) {
	normalized := strings.ToUpper(strings.TrimSpace(code))
	g, ok := v.groups[normalized]
	if !ok {
		return nil, NewNotFoundError("reconciliation", code)
	}

	members := make([]*Transaction, 0, len(g.members))
	for _, id := range g.members {
		members = append(members, v.txns[id])
	}
	if locked := lockedAmong(members); len(locked) > 0 {
		return nil, NewLockedEntryError(locked...)
	}

	delta := &Delta{RemoveGroups: []string{g.code}}
	for _, t := range members {
		change := changeFor(t)
		change.LinkedTo = nil
		change.ReconciliationCode = ""
		change.Status = g.prior[t.ID]
		if change.Status == 0 {
			change.Status = StatusPending
		}
		delta.Changes = append(delta.Changes, change)
	}
	return delta, nil
}

// groupStatus recomputes the status of a registered group.
func (v *validator) groupStatus(g *groupState) Status {
	members := make([]*Transaction, 0, len(g.members))
	for _, id := range g.members {
		members = append(members, v.txns[id])
	}
	return summarizeGroup(g.code, members, v.cfg).Status
}

// peersOf returns every id of members except self, sorted.
func peersOf(self string, members []string) []string {
	peers := make([]string, 0, len(members)-1)
	for _, id := range members {
		if id != self {
			peers = append(peers, id)
		}
	}
	return peers
}
