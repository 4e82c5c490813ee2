// Package ledger provides the ledger timeline and reconciliation engine.
// It turns raw accounting records (invoices, payments, credit notes,
// expenses) into a chronological timeline with progressive balances,
// per-counterparty groups with due totals, reconciliation ("lettrage")
// groups and fiscal periods with carry-forward balances.
//
// The read side is a set of pure functions over transaction slices:
//   - ComputeTotals, ProgressiveBalances and Timeline
//   - GroupByCounterparty
//   - Partition and Chain.Prepend
//
// The write side is the Book, which owns a set of transactions and is the
// only place allowed to change their reconciliation fields:
//   - Link and Unlink manage reconciliation groups
//   - Apply runs a batch action over a SelectionSet
//
// All amounts use decimal arithmetic; signs are derived from the entry kind
// by SignedAmount. Every mutation either fully succeeds or leaves the book
// unchanged.
//
// Example usage:
//
//	book := ledger.New(ledger.NewConfig())
//	if err := book.Load(ctx, records); err != nil {
//	    // Invalid records were skipped; the others are loaded
//	    var verr *ledger.ValidationErrors
//	    if errors.As(err, &verr) {
//	        for _, e := range verr.Errors {
//	            fmt.Println(e)
//	        }
//	    }
//	}
//
//	group, err := book.Link([]string{"INV-1", "PAY-1"}, "")
//	if errors.Is(err, ledger.ErrAlreadyReconciled) {
//	    // unlink first
//	}
package ledger

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/exp/slices"

	"github.com/ledgerline/ledgerline/telemetry"
)

// Book is a mutable set of transactions. Reads return copies; Link, Unlink
// and Apply are serialised so that overlapping requests cannot interleave.
type Book struct {
	mu         sync.Mutex
	cfg        *Config
	txns       map[string]*Transaction
	order      []string // insertion order
	groups     map[string]*groupState
	codeCursor int
}

// New creates an empty book.
func New(cfg *Config) *Book {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Book{
		cfg:    cfg,
		txns:   make(map[string]*Transaction),
		groups: make(map[string]*groupState),
	}
}

// Config returns the configuration the book was created with.
func (b *Book) Config() *Config {
	return b.cfg
}

// Load normalizes raw records and adds the valid ones to the book.
// Invalid or duplicate records are skipped and reported together in a
// *ValidationErrors; a single bad record never prevents the others from
// loading. Reconciliation codes found in the input rebuild their groups,
// with links and statuses recomputed from the codes.
func (b *Book) Load(ctx context.Context, raws []RawTransaction) error {
	timer := telemetry.StartTimer(ctx, fmt.Sprintf("ledger.load (%d records)", len(raws)))
	defer timer.End()

	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	var loaded []*Transaction
	for i, raw := range raws {
		if i%1024 == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}

		t, err := Normalize(raw, b.cfg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := b.checkAddable(t); err != nil {
			errs = append(errs, err)
			continue
		}
		b.insert(t)
		loaded = append(loaded, t)
	}

	errs = append(errs, b.rebuildGroups(loaded)...)

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}

// Record adds an already validated transaction, such as a correcting entry.
func (b *Book) Record(t *Transaction) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.checkAddable(t); err != nil {
		return err
	}
	c := t.Clone()
	c.LinkedTo = nil
	c.ReconciliationCode = ""
	b.insert(c)
	return nil
}

func (b *Book) checkAddable(t *Transaction) error {
	if _, exists := b.txns[t.ID]; exists {
		return NewValidationError(t.ID, "id", "duplicate id")
	}
	if t.Currency != b.cfg.Currency {
		return NewValidationError(t.ID, "currency",
			fmt.Sprintf("currency %s differs from ledger currency %s", t.Currency, b.cfg.Currency))
	}
	if !t.Amount.IsPositive() {
		return NewValidationError(t.ID, "amount", "amount must be greater than zero")
	}
	if !t.Kind.IsValid() {
		return NewValidationError(t.ID, "kind", "unknown kind")
	}
	return nil
}

func (b *Book) insert(t *Transaction) {
	b.txns[t.ID] = t
	b.order = append(b.order, t.ID)
}

// rebuildGroups registers the reconciliation groups declared by freshly
// loaded entries. Declared links must match the code membership; codes
// shared with entries loaded earlier, single-member codes and links without
// a code are reported and dropped.
func (b *Book) rebuildGroups(loaded []*Transaction) []error {
	var errs []error
	byCode := make(map[string][]*Transaction)
	var codes []string
	for _, t := range loaded {
		if t.ReconciliationCode == "" {
			if len(t.LinkedTo) > 0 {
				errs = append(errs, NewValidationError(t.ID, "linked_to", "links without a reconciliation code were dropped"))
				t.LinkedTo = nil
			}
			continue
		}
		code, err := NormalizeCode(t.ReconciliationCode)
		if err != nil {
			errs = append(errs, NewValidationError(t.ID, "reconciliation_code", err.Error()))
			t.ReconciliationCode = ""
			t.LinkedTo = nil
			continue
		}
		t.ReconciliationCode = code
		if _, seen := byCode[code]; !seen {
			codes = append(codes, code)
		}
		byCode[code] = append(byCode[code], t)
	}
	slices.Sort(codes)

	for _, code := range codes {
		members := byCode[code]
		if _, exists := b.groups[code]; exists || len(members) < 2 {
			for _, t := range members {
				errs = append(errs, NewValidationError(t.ID, "reconciliation_code",
					fmt.Sprintf("code %s does not form a separate group of at least 2 entries, dropped", code)))
				t.ReconciliationCode = ""
				t.LinkedTo = nil
			}
			continue
		}

		group := summarizeGroup(code, members, b.cfg)
		state := &groupState{code: code, members: group.Members, prior: make(map[string]Status, len(members))}
		for _, t := range members {
			peers := peersOf(t.ID, group.Members)
			if len(t.LinkedTo) > 0 && !slices.Equal(t.LinkedTo, peers) {
				errs = append(errs, NewValidationError(t.ID, "linked_to",
					fmt.Sprintf("links do not match reconciliation group %s, recomputed", code)))
			}
			t.LinkedTo = peers
			state.prior[t.ID] = StatusPending
			t.Status = group.Status
		}
		b.groups[code] = state
	}
	return errs
}

// Len returns the number of transactions in the book.
func (b *Book) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.order)
}

// Get returns a copy of a transaction.
func (b *Book) Get(id string) (*Transaction, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	t, ok := b.txns[id]
	if !ok {
		return nil, false
	}
	return t.Clone(), true
}

// Snapshot returns copies of all transactions in insertion order. The
// copies can be read concurrently while the book keeps changing.
func (b *Book) Snapshot() []*Transaction {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot()
}

// SnapshotWithGroups returns the transaction copies and the reconciliation
// groups as of the same instant, so that every group agrees with the codes
// and links carried by its members.
func (b *Book) SnapshotWithGroups() ([]*Transaction, []ReconciliationGroup) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshot(), b.groupList()
}

func (b *Book) snapshot() []*Transaction {
	out := make([]*Transaction, len(b.order))
	for i, id := range b.order {
		out[i] = b.txns[id].Clone()
	}
	return out
}

// Groups returns every reconciliation group ordered by code.
func (b *Book) Groups() []ReconciliationGroup {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.groupList()
}

func (b *Book) groupList() []ReconciliationGroup {
	codes := make([]string, 0, len(b.groups))
	for code := range b.groups {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	out := make([]ReconciliationGroup, 0, len(codes))
	for _, code := range codes {
		out = append(out, *b.describe(b.groups[code]))
	}
	return out
}

// Group returns the reconciliation group with the given code.
func (b *Book) Group(code string) (ReconciliationGroup, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	g, ok := b.groups[code]
	if !ok {
		return ReconciliationGroup{}, false
	}
	return *b.describe(g), true
}

func (b *Book) describe(g *groupState) *ReconciliationGroup {
	members := make([]*Transaction, 0, len(g.members))
	for _, id := range g.members {
		members = append(members, b.txns[id])
	}
	return summarizeGroup(g.code, members, b.cfg)
}

// Link reconciles the given entries into one group. When code is empty the
// next free lettrage code is assigned. Members become paid when their signed
// amounts offset each other within tolerance, partial otherwise.
func (b *Book) Link(ids []string, code string) (*ReconciliationGroup, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.link(ids, code)
}

func (b *Book) link(ids []string, code string) (*ReconciliationGroup, error) {
	v := newValidator(b)
	delta, group, err := v.validateLink(ids, code, b.nextCode)
	if err != nil {
		return nil, err
	}
	b.applyDelta(delta)
	return group, nil
}

// Unlink dissolves a reconciliation group and restores each member's status
// from before it was linked.
func (b *Book) Unlink(code string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.unlink(code)
}

func (b *Book) unlink(code string) error {
	v := newValidator(b)
	delta, err := v.validateUnlink(code)
	if err != nil {
		return err
	}
	b.applyDelta(delta)
	return nil
}

func (b *Book) nextCode() string {
	return nextCode(&b.codeCursor, b.codeInUse)
}

// peekCode returns the code nextCode would return, leaving the cursor alone.
func (b *Book) peekCode() string {
	cursor := b.codeCursor
	return nextCode(&cursor, b.codeInUse)
}

func (b *Book) codeInUse(code string) bool {
	_, used := b.groups[code]
	return used
}

// applyDelta mutates book state. The delta has been validated; applying it
// cannot fail.
func (b *Book) applyDelta(delta *Delta) {
	if delta.IsEmpty() {
		return
	}
	for _, code := range delta.RemoveGroups {
		delete(b.groups, code)
	}
	for _, g := range delta.AddGroups {
		b.groups[g.code] = g
	}
	for _, change := range delta.Changes {
		t := b.txns[change.ID]
		t.LinkedTo = slices.Clone(change.LinkedTo)
		t.ReconciliationCode = change.ReconciliationCode
		t.Status = change.Status
		t.BankReconciled = change.BankReconciled
		t.Locked = change.Locked
	}
}

// Check verifies link symmetry and the reconciliation balance rule over the
// whole book. A book only mutated through its methods always passes.
func (b *Book) Check() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var errs []error
	for _, id := range b.order {
		t := b.txns[id]
		for _, other := range t.LinkedTo {
			peer, ok := b.txns[other]
			if !ok {
				errs = append(errs, NewValidationError(id, "linked_to", fmt.Sprintf("links to unknown entry %s", other)))
				continue
			}
			if !slices.Contains(peer.LinkedTo, id) {
				errs = append(errs, NewValidationError(id, "linked_to", fmt.Sprintf("link to %s is not symmetric", other)))
			}
		}
		if t.IsReconciled() {
			if _, ok := b.groups[t.ReconciliationCode]; !ok {
				errs = append(errs, NewValidationError(id, "reconciliation_code", fmt.Sprintf("unknown group %s", t.ReconciliationCode)))
			}
		}
	}

	codes := make([]string, 0, len(b.groups))
	for code := range b.groups {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	for _, code := range codes {
		group := b.describe(b.groups[code])
		for _, id := range group.Members {
			if st := b.txns[id].Status; st != group.Status {
				errs = append(errs, NewValidationError(id, "status",
					fmt.Sprintf("status %s disagrees with group %s which is %s", st, code, group.Status)))
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationErrors{Errors: errs}
	}
	return nil
}
