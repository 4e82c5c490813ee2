package ledger

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// Kind classifies a ledger entry. Invoice and Expense are debit-flavored
// (they increase what is owed), Payment and CreditNote are credit-flavored.
type Kind int

const (
	KindInvoice Kind = iota + 1
	KindPayment
	KindCreditNote
	KindExpense
)

var kindNames = map[Kind]string{
	KindInvoice:    "invoice",
	KindPayment:    "payment",
	KindCreditNote: "credit_note",
	KindExpense:    "expense",
}

// ParseKind parses a kind name. Matching is case-insensitive and accepts
// "credit_note", "credit-note", "creditnote" and "credit note".
func ParseKind(s string) (Kind, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)
	if normalized == "creditnote" {
		normalized = "credit_note"
	}
	for k, name := range kindNames {
		if name == normalized {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown kind %q", s)
}

// String returns the canonical name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// IsValid reports whether k is one of the four known kinds.
func (k Kind) IsValid() bool {
	_, ok := kindNames[k]
	return ok
}

// IsDebit reports whether the kind increases what is owed.
func (k Kind) IsDebit() bool {
	return k == KindInvoice || k == KindExpense
}

// IsCredit reports whether the kind decreases what is owed.
func (k Kind) IsCredit() bool {
	return k == KindPayment || k == KindCreditNote
}

// MarshalJSON encodes the kind by name.
func (k Kind) MarshalJSON() ([]byte, error) {
	return json.Marshal(k.String())
}

// UnmarshalJSON decodes a kind name.
func (k *Kind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseKind(s)
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Status is the settlement state of an entry.
type Status int

const (
	StatusPending Status = iota + 1
	StatusPartial
	StatusPaid
	StatusOverdue
)

var statusNames = map[Status]string{
	StatusPending: "pending",
	StatusPartial: "partial",
	StatusPaid:    "paid",
	StatusOverdue: "overdue",
}

// ParseStatus parses a status name (case-insensitive).
// An empty string parses as pending.
func ParseStatus(s string) (Status, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	if normalized == "" {
		return StatusPending, nil
	}
	for st, name := range statusNames {
		if name == normalized {
			return st, nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", s)
}

// String returns the canonical name of the status.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// MarshalJSON encodes the status by name.
func (s Status) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON decodes a status name.
func (s *Status) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	parsed, err := ParseStatus(str)
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// RawTransaction is an inbound record as supplied by a data source, before
// validation. All values are kept as text so that a malformed field can be
// reported instead of failing to decode the whole batch.
type RawTransaction struct {
	ID                 string   `json:"id"`
	Date               string   `json:"date"`
	DueDate            string   `json:"due_date,omitempty"`
	Label              string   `json:"label"`
	Amount             string   `json:"amount"`
	Currency           string   `json:"currency,omitempty"`
	Kind               string   `json:"kind"`
	Status             string   `json:"status,omitempty"`
	Counterparty       string   `json:"counterparty,omitempty"`
	Reference          string   `json:"reference,omitempty"`
	LinkedTo           []string `json:"linked_to,omitempty"`
	ReconciliationCode string   `json:"reconciliation_code,omitempty"`
	BankReconciled     bool     `json:"bank_reconciled,omitempty"`
	Locked             bool     `json:"locked,omitempty"`
}

// Transaction is a validated ledger entry. Once recorded it is immutable
// except for the reconciliation fields (LinkedTo, ReconciliationCode,
// Status) and the batch flags (BankReconciled, Locked), which only the Book
// writes.
type Transaction struct {
	ID                 string          `json:"id"`
	Date               Date            `json:"date"`
	DueDate            *Date           `json:"due_date,omitempty"`
	Label              string          `json:"label"`
	Amount             decimal.Decimal `json:"amount"`
	Currency           string          `json:"currency"`
	Kind               Kind            `json:"kind"`
	Status             Status          `json:"status"`
	Counterparty       string          `json:"counterparty,omitempty"`
	Reference          string          `json:"reference,omitempty"`
	LinkedTo           []string        `json:"linked_to"`
	ReconciliationCode string          `json:"reconciliation_code,omitempty"`
	BankReconciled     bool            `json:"bank_reconciled"`
	Locked             bool            `json:"locked"`
}

// Normalize validates a raw record and converts it into a Transaction.
// It rejects records with a missing id or date, a zero, negative or
// unparsable amount, and an unknown kind or status.
func Normalize(raw RawTransaction, cfg *Config) (*Transaction, error) {
	if cfg == nil {
		cfg = NewConfig()
	}

	id := strings.TrimSpace(raw.ID)
	if id == "" {
		return nil, NewValidationError(raw.ID, "id", "missing id")
	}

	date, err := NewDate(raw.Date)
	if err != nil {
		return nil, NewValidationError(id, "date", err.Error())
	}

	var dueDate *Date
	if strings.TrimSpace(raw.DueDate) != "" {
		d, err := NewDate(raw.DueDate)
		if err != nil {
			return nil, NewValidationError(id, "due_date", err.Error())
		}
		dueDate = &d
	}

	amount, err := ParseAmount(raw.Amount)
	if err != nil {
		return nil, NewValidationError(id, "amount", err.Error())
	}
	if amount.IsNegative() {
		return nil, NewValidationError(id, "amount", fmt.Sprintf("amount %s is negative, sign is derived from kind", amount))
	}
	if amount.IsZero() {
		return nil, NewValidationError(id, "amount", "amount must be greater than zero")
	}

	kind, err := ParseKind(raw.Kind)
	if err != nil {
		return nil, NewValidationError(id, "kind", err.Error())
	}

	status, err := ParseStatus(raw.Status)
	if err != nil {
		return nil, NewValidationError(id, "status", err.Error())
	}

	currency := strings.ToUpper(strings.TrimSpace(raw.Currency))
	if currency == "" {
		currency = cfg.Currency
	}
	if !IsKnownCurrency(currency) {
		return nil, NewValidationError(id, "currency", fmt.Sprintf("unknown currency %q", raw.Currency))
	}

	var linked []string
	for _, other := range raw.LinkedTo {
		other = strings.TrimSpace(other)
		if other != "" && other != id && !slices.Contains(linked, other) {
			linked = append(linked, other)
		}
	}
	slices.Sort(linked)

	return &Transaction{
		ID:                 id,
		Date:               date,
		DueDate:            dueDate,
		Label:              strings.TrimSpace(raw.Label),
		Amount:             amount,
		Currency:           currency,
		Kind:               kind,
		Status:             status,
		Counterparty:       strings.TrimSpace(raw.Counterparty),
		Reference:          strings.TrimSpace(raw.Reference),
		LinkedTo:           linked,
		ReconciliationCode: strings.TrimSpace(raw.ReconciliationCode),
		BankReconciled:     raw.BankReconciled,
		Locked:             raw.Locked,
	}, nil
}

// SignedAmount returns +amount for debit-flavored kinds and -amount for
// credit-flavored kinds. Every computation derives sign through this
// function.
func SignedAmount(t *Transaction) decimal.Decimal {
	if t.Kind.IsCredit() {
		return t.Amount.Neg()
	}
	return t.Amount
}

// DueDate returns the explicit due date of t, or its date plus the payment
// terms configured for its counterparty.
func DueDate(t *Transaction, cfg *Config) Date {
	if t.DueDate != nil {
		return *t.DueDate
	}
	if cfg == nil {
		cfg = NewConfig()
	}
	return t.Date.AddDays(cfg.PaymentTerms(t.Counterparty))
}

// RemainingDays returns the number of days left before t is due, as seen on
// asOf. The value is negative once the due date has passed.
func RemainingDays(t *Transaction, asOf Date, cfg *Config) int {
	return asOf.DaysUntil(DueDate(t, cfg))
}

// IsOverdue reports whether a pending entry is past its due date on asOf.
// An entry recorded with an explicit overdue status is always overdue.
func IsOverdue(t *Transaction, asOf Date, cfg *Config) bool {
	switch t.Status {
	case StatusOverdue:
		return true
	case StatusPending:
		return DueDate(t, cfg).Before(asOf)
	default:
		return false
	}
}

// EffectiveStatus returns the status to present for t on asOf. Pending
// entries past due are reported as overdue, so the stored and derived
// representations never disagree.
func EffectiveStatus(t *Transaction, asOf Date, cfg *Config) Status {
	if IsOverdue(t, asOf, cfg) {
		return StatusOverdue
	}
	return t.Status
}

// IsSettled reports whether t is fully paid.
func (t *Transaction) IsSettled() bool {
	return t.Status == StatusPaid
}

// IsReconciled reports whether t belongs to a reconciliation group.
func (t *Transaction) IsReconciled() bool {
	return t.ReconciliationCode != ""
}

// Clone returns a deep copy of t.
func (t *Transaction) Clone() *Transaction {
	c := *t
	if t.DueDate != nil {
		due := *t.DueDate
		c.DueDate = &due
	}
	c.LinkedTo = slices.Clone(t.LinkedTo)
	return &c
}

// CorrectingEntry builds a new entry that offsets t: same amount, currency,
// counterparty and reference, opposite flavor. Recorded entries never have
// their sign changed in place; a correction is always a new entry.
func CorrectingEntry(t *Transaction, label string, date Date) *Transaction {
	kind := KindCreditNote
	switch t.Kind {
	case KindPayment:
		kind = KindInvoice
	case KindCreditNote:
		kind = KindInvoice
	case KindExpense:
		kind = KindPayment
	}
	if label == "" {
		label = "Correction of " + t.ID
	}
	return &Transaction{
		ID:           uuid.NewString(),
		Date:         date,
		Label:        label,
		Amount:       t.Amount,
		Currency:     t.Currency,
		Kind:         kind,
		Status:       StatusPending,
		Counterparty: t.Counterparty,
		Reference:    t.Reference,
	}
}
