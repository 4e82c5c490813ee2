package output

import "github.com/ledgerline/ledgerline/ledger"

// Terminology holds the labels shown for accounting concepts. Expert mode
// uses bookkeeping vocabulary; plain mode describes the same numbers in
// everyday words, worded for the ledger side.
type Terminology struct {
	Debit          string
	Credit         string
	Balance        string
	TotalDue       string
	Reconciliation string
	Code           string
	Opening        string
	Closing        string
	Period         string
	Counterparty   string
	Unassigned     string
}

// Terms returns the labels for a side and mode.
func Terms(side ledger.Side, expert bool) Terminology {
	if expert {
		return Terminology{
			Debit:          "Debit",
			Credit:         "Credit",
			Balance:        "Balance",
			TotalDue:       "Outstanding",
			Reconciliation: "Lettrage",
			Code:           "Code",
			Opening:        "Opening balance",
			Closing:        "Closing balance",
			Period:         "Fiscal year",
			Counterparty:   counterpartyTerm(side),
			Unassigned:     "Unallocated",
		}
	}

	terms := Terminology{
		Balance:        "Balance",
		TotalDue:       "Still to pay",
		Reconciliation: "Matched",
		Code:           "Match",
		Opening:        "Carried in",
		Closing:        "Carried out",
		Period:         "Year",
		Counterparty:   counterpartyTerm(side),
		Unassigned:     "No contact",
	}
	if side == ledger.SideSupplier {
		terms.Debit = "Billed to you"
		terms.Credit = "Paid by you"
	} else {
		terms.Debit = "Billed"
		terms.Credit = "Received"
		terms.TotalDue = "Still to collect"
	}
	return terms
}

func counterpartyTerm(side ledger.Side) string {
	if side == ledger.SideSupplier {
		return "Supplier"
	}
	return "Client"
}

// KindLabel returns the display name of an entry kind.
func (t Terminology) KindLabel(kind ledger.Kind) string {
	switch kind {
	case ledger.KindInvoice:
		return "Invoice"
	case ledger.KindPayment:
		return "Payment"
	case ledger.KindCreditNote:
		return "Credit note"
	case ledger.KindExpense:
		return "Expense"
	default:
		return kind.String()
	}
}

// StatusLabel returns the display name of a status.
func (t Terminology) StatusLabel(status ledger.Status) string {
	switch status {
	case ledger.StatusPending:
		return "Pending"
	case ledger.StatusPartial:
		return "Partial"
	case ledger.StatusPaid:
		return "Paid"
	case ledger.StatusOverdue:
		return "Overdue"
	default:
		return status.String()
	}
}
