package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/alecthomas/assert/v2"
	"golang.org/x/exp/slices"
)

// newBook loads raw records into a fresh book and fails on any rejection.
func newBook(t *testing.T, cfg *Config, raws ...RawTransaction) *Book {
	t.Helper()
	b := New(cfg)
	assert.NoError(t, b.Load(context.Background(), raws))
	return b
}

func mustGet(t *testing.T, b *Book, id string) *Transaction {
	t.Helper()
	txn, ok := b.Get(id)
	assert.True(t, ok, "missing %s", id)
	return txn
}

func basicBook(t *testing.T) *Book {
	return newBook(t, nil,
		raw("INV-1", "2024-01-05", "1000", "invoice", "ACME"),
		raw("PAY-1", "2024-02-01", "1000", "payment", "ACME"),
		raw("INV-2", "2024-02-10", "300", "invoice", "Globex"),
		raw("PAY-2", "2024-02-20", "200", "payment", "Globex"),
		raw("PAY-3", "2024-03-01", "100", "payment", "Globex"),
	)
}

func TestLoad(t *testing.T) {
	t.Run("SkipsInvalidRecords", func(t *testing.T) {
		b := New(nil)
		err := b.Load(context.Background(), []RawTransaction{
			raw("INV-1", "2024-01-05", "1000", "invoice", "ACME"),
			raw("INV-1", "2024-01-06", "5", "invoice", "ACME"),
			raw("BAD", "2024-01-07", "-5", "invoice", ""),
			{ID: "USD-1", Date: "2024-01-08", Amount: "5", Kind: "invoice", Currency: "USD"},
			raw("PAY-1", "2024-02-01", "1000", "payment", "ACME"),
		})

		var verr *ValidationErrors
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, 3, len(verr.Errors))
		assertIs(t, err, ErrValidation)
		assert.Equal(t, 2, b.Len())

		// The first INV-1 wins.
		assertAmount(t, "1000", mustGet(t, b, "INV-1").Amount)
	})

	t.Run("RebuildsGroups", func(t *testing.T) {
		b := newBook(t, nil,
			RawTransaction{ID: "INV-1", Date: "2024-01-05", Amount: "1000", Kind: "invoice", ReconciliationCode: "a", LinkedTo: []string{"PAY-1"}},
			RawTransaction{ID: "PAY-1", Date: "2024-02-01", Amount: "1000", Kind: "payment", ReconciliationCode: "A", Status: "pending"},
		)
		group, ok := b.Group("A")
		assert.True(t, ok)
		assert.Equal(t, []string{"INV-1", "PAY-1"}, group.Members)
		assert.Equal(t, StatusPaid, group.Status)

		pay := mustGet(t, b, "PAY-1")
		assert.Equal(t, []string{"INV-1"}, pay.LinkedTo)
		assert.Equal(t, StatusPaid, pay.Status)
		assert.NoError(t, b.Check())
	})

	t.Run("DropsBrokenGroups", func(t *testing.T) {
		b := New(nil)
		err := b.Load(context.Background(), []RawTransaction{
			{ID: "INV-1", Date: "2024-01-05", Amount: "10", Kind: "invoice", ReconciliationCode: "B"},
			{ID: "INV-2", Date: "2024-01-05", Amount: "10", Kind: "invoice", LinkedTo: []string{"INV-1"}},
			{ID: "INV-3", Date: "2024-01-05", Amount: "10", Kind: "invoice", ReconciliationCode: "bad code"},
		})
		var verr *ValidationErrors
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, 3, len(verr.Errors))
		assert.Equal(t, 3, b.Len())
		assert.Equal(t, 0, len(b.Groups()))

		for _, id := range []string{"INV-1", "INV-2", "INV-3"} {
			txn := mustGet(t, b, id)
			assert.False(t, txn.IsReconciled())
			assert.Equal(t, 0, len(txn.LinkedTo))
		}
		assert.NoError(t, b.Check())
	})

	t.Run("RecomputesMismatchedLinks", func(t *testing.T) {
		b := New(nil)
		err := b.Load(context.Background(), []RawTransaction{
			{ID: "INV-1", Date: "2024-01-05", Amount: "300", Kind: "invoice", ReconciliationCode: "C", LinkedTo: []string{"PAY-9"}},
			{ID: "PAY-1", Date: "2024-02-01", Amount: "200", Kind: "payment", ReconciliationCode: "C"},
		})
		var verr *ValidationErrors
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, 1, len(verr.Errors))
		assert.Equal(t, []string{"PAY-1"}, mustGet(t, b, "INV-1").LinkedTo)
		assert.Equal(t, StatusPartial, mustGet(t, b, "PAY-1").Status)
	})

	t.Run("KeepsExistingCodes", func(t *testing.T) {
		b := newBook(t, nil,
			RawTransaction{ID: "INV-1", Date: "2024-01-05", Amount: "10", Kind: "invoice", ReconciliationCode: "A"},
			RawTransaction{ID: "PAY-1", Date: "2024-01-06", Amount: "10", Kind: "payment", ReconciliationCode: "A"},
		)
		err := b.Load(context.Background(), []RawTransaction{
			{ID: "INV-2", Date: "2024-01-05", Amount: "10", Kind: "invoice", ReconciliationCode: "A"},
			{ID: "PAY-2", Date: "2024-01-06", Amount: "10", Kind: "payment", ReconciliationCode: "A"},
		})
		assertIs(t, err, ErrValidation)
		group, _ := b.Group("A")
		assert.Equal(t, []string{"INV-1", "PAY-1"}, group.Members)
		assert.False(t, mustGet(t, b, "INV-2").IsReconciled())
	})

	t.Run("Cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := New(nil).Load(ctx, []RawTransaction{raw("INV-1", "2024-01-05", "1", "invoice", "")})
		assert.True(t, errors.Is(err, context.Canceled))
	})
}

func TestLinkOffsettingPair(t *testing.T) {
	b := basicBook(t)

	group, err := b.Link([]string{"INV-1", "PAY-1"}, "")
	assert.NoError(t, err)
	assert.Equal(t, "A", group.Code)
	assert.Equal(t, []string{"INV-1", "PAY-1"}, group.Members)
	assert.True(t, group.Sum.IsZero())
	assert.Equal(t, StatusPaid, group.Status)
	assert.False(t, group.ToleranceExceeded)
	assert.Equal(t, 0, len(group.Warnings))

	inv := mustGet(t, b, "INV-1")
	pay := mustGet(t, b, "PAY-1")
	assert.Equal(t, StatusPaid, inv.Status)
	assert.Equal(t, StatusPaid, pay.Status)
	assert.Equal(t, "A", inv.ReconciliationCode)
	assert.Equal(t, []string{"PAY-1"}, inv.LinkedTo)
	assert.Equal(t, []string{"INV-1"}, pay.LinkedTo)
	assert.NoError(t, b.Check())
}

func TestLinkPartial(t *testing.T) {
	b := basicBook(t)

	group, err := b.Link([]string{"INV-2", "PAY-2"}, "")
	assert.NoError(t, err)
	assert.Equal(t, StatusPartial, group.Status)
	assert.True(t, group.ToleranceExceeded)
	assertAmount(t, "100", group.Sum)
	assert.Equal(t, StatusPartial, mustGet(t, b, "PAY-2").Status)

	t.Run("Extend", func(t *testing.T) {
		group, err := b.Link([]string{"INV-2", "PAY-2", "PAY-3"}, "")
		assert.NoError(t, err)
		assert.Equal(t, "A", group.Code)
		assert.Equal(t, StatusPaid, group.Status)
		assert.Equal(t, []string{"PAY-2", "PAY-3"}, mustGet(t, b, "INV-2").LinkedTo)
		assert.Equal(t, 1, len(b.Groups()))
		assert.NoError(t, b.Check())
	})

	t.Run("UnlinkRestoresPending", func(t *testing.T) {
		assert.NoError(t, b.Unlink("A"))
		for _, id := range []string{"INV-2", "PAY-2", "PAY-3"} {
			txn := mustGet(t, b, id)
			assert.Equal(t, StatusPending, txn.Status)
			assert.False(t, txn.IsReconciled())
		}
	})
}

func TestLinkTolerance(t *testing.T) {
	records := []RawTransaction{
		raw("INV-1", "2024-01-05", "100", "invoice", ""),
		raw("PAY-1", "2024-01-06", "99.99", "payment", ""),
		raw("INV-2", "2024-01-05", "100", "invoice", ""),
		raw("PAY-2", "2024-01-06", "99.96", "payment", ""),
	}

	b := newBook(t, nil, records...)
	group, err := b.Link([]string{"INV-1", "PAY-1"}, "")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaid, group.Status)
	group, err = b.Link([]string{"INV-2", "PAY-2"}, "")
	assert.NoError(t, err)
	assert.Equal(t, StatusPartial, group.Status)

	cfg := NewConfig()
	cfg.Tolerance = MustParseAmount("0.05")
	b = newBook(t, cfg, records...)
	group, err = b.Link([]string{"INV-2", "PAY-2"}, "")
	assert.NoError(t, err)
	assert.Equal(t, StatusPaid, group.Status)
}

func TestLinkErrors(t *testing.T) {
	t.Run("TooFewEntries", func(t *testing.T) {
		b := basicBook(t)
		_, err := b.Link([]string{"INV-1"}, "")
		assertIs(t, err, ErrValidation)
		_, err = b.Link([]string{"INV-1", "INV-1", " "}, "")
		assertIs(t, err, ErrValidation)
	})

	t.Run("UnknownEntry", func(t *testing.T) {
		b := basicBook(t)
		_, err := b.Link([]string{"INV-1", "NOPE"}, "")
		assertIs(t, err, ErrNotFound)
		assert.False(t, mustGet(t, b, "INV-1").IsReconciled())
	})

	t.Run("AlreadyReconciled", func(t *testing.T) {
		b := basicBook(t)
		_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
		assert.NoError(t, err)

		_, err = b.Link([]string{"INV-1", "PAY-2"}, "")
		assertIs(t, err, ErrAlreadyReconciled)
		var aerr *AlreadyReconciledError
		assert.True(t, errors.As(err, &aerr))
		assert.Equal(t, "A", aerr.Code)
		assert.False(t, mustGet(t, b, "PAY-2").IsReconciled())

		// A paid group cannot grow.
		_, err = b.Link([]string{"INV-1", "PAY-1", "PAY-3"}, "")
		assertIs(t, err, ErrAlreadyReconciled)

		// The exact same members may be linked again.
		group, err := b.Link([]string{"PAY-1", "INV-1"}, "")
		assert.NoError(t, err)
		assert.Equal(t, "A", group.Code)
		assert.Equal(t, 1, len(b.Groups()))
	})

	t.Run("Locked", func(t *testing.T) {
		b := newBook(t, nil,
			RawTransaction{ID: "INV-1", Date: "2024-01-05", Amount: "10", Kind: "invoice", Locked: true},
			raw("PAY-1", "2024-01-06", "10", "payment", ""),
		)
		_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
		assertIs(t, err, ErrLockedEntry)
		assert.Equal(t, "INV-1: entry is locked", err.Error())
		assert.False(t, mustGet(t, b, "PAY-1").IsReconciled())
		assert.Equal(t, 0, len(b.Groups()))
	})
}

func TestLinkCodes(t *testing.T) {
	t.Run("Explicit", func(t *testing.T) {
		b := basicBook(t)
		group, err := b.Link([]string{"INV-1", "PAY-1"}, " x1 ")
		assert.NoError(t, err)
		assert.Equal(t, "X1", group.Code)
		assert.Equal(t, "X1", mustGet(t, b, "PAY-1").ReconciliationCode)

		_, err = b.Link([]string{"INV-2", "PAY-2"}, "x1")
		assertIs(t, err, ErrValidation)
		assert.False(t, errors.Is(err, ErrAlreadyReconciled))
		var verr *ValidationError
		assert.True(t, errors.As(err, &verr))
		assert.Equal(t, "code", verr.Field)
		assert.Equal(t, "invalid code: code X1 already in use", err.Error())
		assert.False(t, mustGet(t, b, "INV-2").IsReconciled())
		group, ok := b.Group("X1")
		assert.True(t, ok)
		assert.Equal(t, []string{"INV-1", "PAY-1"}, group.Members)

		_, err = b.Link([]string{"INV-2", "PAY-2"}, "no spaces")
		assertIs(t, err, ErrValidation)
	})

	t.Run("Sequential", func(t *testing.T) {
		b := basicBook(t)
		first, err := b.Link([]string{"INV-1", "PAY-1"}, "")
		assert.NoError(t, err)
		second, err := b.Link([]string{"INV-2", "PAY-2"}, "")
		assert.NoError(t, err)
		assert.Equal(t, "A", first.Code)
		assert.Equal(t, "B", second.Code)

		groups := b.Groups()
		assert.Equal(t, 2, len(groups))
		assert.Equal(t, "A", groups[0].Code)
		assert.Equal(t, "B", groups[1].Code)
	})

	t.Run("SkipsLoadedCodes", func(t *testing.T) {
		b := newBook(t, nil,
			RawTransaction{ID: "INV-1", Date: "2024-01-05", Amount: "10", Kind: "invoice", ReconciliationCode: "A"},
			RawTransaction{ID: "PAY-1", Date: "2024-01-06", Amount: "10", Kind: "payment", ReconciliationCode: "A"},
			raw("INV-2", "2024-01-05", "10", "invoice", ""),
			raw("PAY-2", "2024-01-06", "10", "payment", ""),
		)
		group, err := b.Link([]string{"INV-2", "PAY-2"}, "")
		assert.NoError(t, err)
		assert.Equal(t, "B", group.Code)
	})
}

func TestLinkCrossCounterpartyWarns(t *testing.T) {
	b := basicBook(t)
	group, err := b.Link([]string{"INV-1", "PAY-2"}, "")
	assert.NoError(t, err)
	assert.Equal(t, []string{"ACME", "Globex"}, group.Counterparties)
	assert.Equal(t, 1, len(group.Warnings))
	assert.Equal(t, WarningCrossCounterparty, group.Warnings[0].Kind)
	assert.Contains(t, group.Warnings[0].Message, "ACME, Globex")
}

func TestUnlink(t *testing.T) {
	t.Run("RestoresPriorStatus", func(t *testing.T) {
		b := newBook(t, nil,
			RawTransaction{ID: "INV-1", Date: "2024-01-05", Amount: "500", Kind: "invoice", Status: "partial"},
			raw("PAY-1", "2024-02-01", "500", "payment", ""),
		)
		_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
		assert.NoError(t, err)
		assert.Equal(t, StatusPaid, mustGet(t, b, "INV-1").Status)

		assert.NoError(t, b.Unlink("a"))
		inv := mustGet(t, b, "INV-1")
		pay := mustGet(t, b, "PAY-1")
		assert.Equal(t, StatusPartial, inv.Status)
		assert.Equal(t, StatusPending, pay.Status)
		assert.Equal(t, 0, len(inv.LinkedTo))
		assert.Equal(t, 0, len(pay.LinkedTo))
		_, ok := b.Group("A")
		assert.False(t, ok)
		assert.NoError(t, b.Check())
	})

	t.Run("UnknownCode", func(t *testing.T) {
		err := basicBook(t).Unlink("Q")
		assertIs(t, err, ErrNotFound)
		assert.Equal(t, `reconciliation "Q" not found`, err.Error())
	})

	t.Run("Locked", func(t *testing.T) {
		b := basicBook(t)
		_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
		assert.NoError(t, err)
		_, err = b.Apply(ActionValidate, NewSelection("PAY-1"))
		assert.NoError(t, err)

		err = b.Unlink("A")
		assertIs(t, err, ErrLockedEntry)
		assert.Equal(t, "A", mustGet(t, b, "INV-1").ReconciliationCode)
	})
}

func TestRecord(t *testing.T) {
	b := basicBook(t)
	orig := mustGet(t, b, "INV-2")
	correction := CorrectingEntry(orig, "", MustDate("2024-03-05"))
	correction.ReconciliationCode = "Z"
	correction.LinkedTo = []string{"INV-2"}

	assert.NoError(t, b.Record(correction))
	stored := mustGet(t, b, correction.ID)
	assert.Equal(t, KindCreditNote, stored.Kind)
	assert.False(t, stored.IsReconciled())
	assert.Equal(t, 0, len(stored.LinkedTo))
	assert.Equal(t, 6, b.Len())

	assertIs(t, b.Record(correction), ErrValidation)

	foreign := newTxn("USD-1", "2024-01-01", "1", KindInvoice, "")
	foreign.Currency = "USD"
	assertIs(t, b.Record(foreign), ErrValidation)
}

func TestSnapshotIsolation(t *testing.T) {
	b := basicBook(t)
	snapshot := b.Snapshot()
	assert.Equal(t, 5, len(snapshot))
	assert.Equal(t, "INV-1", snapshot[0].ID)
	assert.Equal(t, "PAY-3", snapshot[4].ID)

	snapshot[0].Status = StatusPaid
	snapshot[0].LinkedTo = []string{"X"}
	inv := mustGet(t, b, "INV-1")
	assert.Equal(t, StatusPending, inv.Status)
	assert.Equal(t, 0, len(inv.LinkedTo))

	_, ok := b.Get("NOPE")
	assert.False(t, ok)
}

func TestSnapshotWithGroups(t *testing.T) {
	b := basicBook(t)
	_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
	assert.NoError(t, err)

	txns, groups := b.SnapshotWithGroups()
	assert.Equal(t, 5, len(txns))
	assert.Equal(t, 1, len(groups))
	assert.Equal(t, "A", groups[0].Code)
	for _, txn := range txns {
		assert.Equal(t, slices.Contains(groups[0].Members, txn.ID), txn.ReconciliationCode == "A", txn.ID)
	}

	// Later mutations do not reach the returned values.
	assert.NoError(t, b.Unlink("A"))
	assert.Equal(t, "A", txns[0].ReconciliationCode)
	assert.Equal(t, []string{"INV-1", "PAY-1"}, groups[0].Members)
}

func TestCheckDetectsTampering(t *testing.T) {
	b := basicBook(t)
	_, err := b.Link([]string{"INV-1", "PAY-1"}, "")
	assert.NoError(t, err)

	b.mu.Lock()
	b.txns["PAY-1"].LinkedTo = nil
	b.txns["PAY-1"].Status = StatusPartial
	b.txns["INV-2"].ReconciliationCode = "Q"
	b.mu.Unlock()

	err = b.Check()
	var verr *ValidationErrors
	assert.True(t, errors.As(err, &verr))
	assert.Equal(t, 3, len(verr.Errors))
}

func TestConcurrentLinks(t *testing.T) {
	const pairs = 50
	var raws []RawTransaction
	for i := 0; i < pairs; i++ {
		raws = append(raws,
			raw(fmt.Sprintf("INV-%d", i), "2024-01-01", "10", "invoice", ""),
			raw(fmt.Sprintf("PAY-%d", i), "2024-01-02", "10", "payment", ""),
		)
	}
	b := newBook(t, nil, raws...)

	var wg sync.WaitGroup
	errs := make(chan error, pairs)
	for i := 0; i < pairs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := b.Link([]string{fmt.Sprintf("INV-%d", i), fmt.Sprintf("PAY-%d", i)}, "")
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	groups := b.Groups()
	assert.Equal(t, pairs, len(groups))
	codes := make(map[string]bool)
	for _, g := range groups {
		codes[g.Code] = true
	}
	assert.Equal(t, pairs, len(codes))
	assert.NoError(t, b.Check())
}

func TestConcurrentConflictingLinks(t *testing.T) {
	b := basicBook(t)

	var wg sync.WaitGroup
	results := make(chan error, 2)
	for _, credit := range []string{"PAY-1", "PAY-2"} {
		wg.Add(1)
		go func(credit string) {
			defer wg.Done()
			_, err := b.Link([]string{"INV-1", credit}, "")
			results <- err
		}(credit)
	}
	wg.Wait()
	close(results)

	var failures int
	for err := range results {
		if err != nil {
			assertIs(t, err, ErrAlreadyReconciled)
			failures++
		}
	}
	assert.Equal(t, 1, failures)
	assert.Equal(t, 1, len(b.Groups()))
	assert.NoError(t, b.Check())
}
