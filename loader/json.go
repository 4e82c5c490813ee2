package loader

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ledgerline/ledgerline/ledger"
)

// flexString accepts a JSON string, number or boolean and keeps its text.
// Amounts exported by spreadsheets often arrive as bare numbers.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if bytes.Equal(trimmed, []byte("null")) {
		*f = ""
		return nil
	}
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(trimmed, &n); err == nil {
		*f = flexString(n.String())
		return nil
	}
	var b bool
	if err := json.Unmarshal(trimmed, &b); err == nil {
		*f = flexString(fmt.Sprint(b))
		return nil
	}
	return fmt.Errorf("expected a string or a number, got %s", trimmed)
}

// flexList accepts either an array of strings or a single ";"-separated string.
type flexList []string

func (f *flexList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var list []flexString
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return err
		}
		out := make([]string, len(list))
		for i, item := range list {
			out[i] = string(item)
		}
		*f = out
		return nil
	}
	var s flexString
	if err := json.Unmarshal(trimmed, &s); err != nil {
		return err
	}
	*f = splitList(string(s))
	return nil
}

type jsonRecord struct {
	ID                 flexString `json:"id"`
	Date               string     `json:"date"`
	DueDate            string     `json:"due_date"`
	Label              string     `json:"label"`
	Amount             flexString `json:"amount"`
	Currency           string     `json:"currency"`
	Kind               string     `json:"kind"`
	Status             string     `json:"status"`
	Counterparty       flexString `json:"counterparty"`
	Reference          flexString `json:"reference"`
	LinkedTo           flexList   `json:"linked_to"`
	ReconciliationCode string     `json:"reconciliation_code"`
	BankReconciled     bool       `json:"bank_reconciled"`
	Locked             bool       `json:"locked"`
}

func (r jsonRecord) raw() ledger.RawTransaction {
	return ledger.RawTransaction{
		ID:                 string(r.ID),
		Date:               r.Date,
		DueDate:            r.DueDate,
		Label:              r.Label,
		Amount:             string(r.Amount),
		Currency:           r.Currency,
		Kind:               r.Kind,
		Status:             r.Status,
		Counterparty:       string(r.Counterparty),
		Reference:          string(r.Reference),
		LinkedTo:           []string(r.LinkedTo),
		ReconciliationCode: r.ReconciliationCode,
		BankReconciled:     r.BankReconciled,
		Locked:             r.Locked,
	}
}

type jsonDocument struct {
	Include      []string     `json:"include"`
	Transactions []jsonRecord `json:"transactions"`
}

func decodeJSON(filename string, data []byte) (*document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return &document{}, nil
	}

	var records []jsonRecord
	var includes []string
	var err error
	if trimmed[0] == '[' {
		err = json.Unmarshal(data, &records)
	} else {
		var doc jsonDocument
		err = json.Unmarshal(data, &doc)
		records, includes = doc.Transactions, doc.Include
	}
	if err != nil {
		return nil, jsonError(filename, data, err)
	}

	out := &document{includes: includes, records: make([]ledger.RawTransaction, len(records))}
	for i, r := range records {
		out.records[i] = r.raw()
	}
	return out, nil
}

func jsonError(filename string, data []byte, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		return &ParseError{Filename: filename, Line: lineOf(data, syntaxErr.Offset), Err: err}
	}
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return &ParseError{Filename: filename, Line: lineOf(data, typeErr.Offset), Err: err}
	}
	return &ParseError{Filename: filename, Err: err}
}

// Write encodes transactions as an indented JSON document that Load reads
// back unchanged.
func Write(w io.Writer, txns []*ledger.Transaction) error {
	doc := struct {
		Transactions []*ledger.Transaction `json:"transactions"`
	}{Transactions: txns}
	if doc.Transactions == nil {
		doc.Transactions = []*ledger.Transaction{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// WriteFile writes transactions to path, replacing it atomically.
func WriteFile(path string, txns []*ledger.Transaction) error {
	var buf bytes.Buffer
	if err := Write(&buf, txns); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
