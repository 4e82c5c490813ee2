package loader

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/ledgerline/ledgerline/ledger"
)

var requiredColumns = []string{"id", "date", "amount", "kind"}

func decodeCSV(ctx context.Context, filename string, data []byte) (*document, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf")) // UTF-8 BOM
	if len(bytes.TrimSpace(data)) == 0 {
		return &document{}, nil
	}

	r := csv.NewReader(bytes.NewReader(data))
	r.TrimLeadingSpace = true
	r.FieldsPerRecord = -1
	r.Comma = sniffDelimiter(data)

	header, err := r.Read()
	if err != nil {
		return nil, &ParseError{Filename: filename, Line: 1, Err: err}
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[normalizeColumn(name)] = i
	}
	for _, name := range requiredColumns {
		if _, ok := columns[name]; !ok {
			return nil, &ParseError{Filename: filename, Line: 1, Err: fmt.Errorf("missing column %q", name)}
		}
	}

	doc := &document{}
	for n := 0; ; n++ {
		if n%1024 == 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
		}

		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			line := 0
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				line = perr.Line
			}
			return nil, &ParseError{Filename: filename, Line: line, Err: err}
		}
		line, _ := r.FieldPos(0)
		if isBlank(row) {
			continue
		}

		field := func(name string) string {
			if i, ok := columns[name]; ok && i < len(row) {
				return strings.TrimSpace(row[i])
			}
			return ""
		}
		flag := func(name string) (bool, error) {
			v := field(name)
			if v == "" {
				return false, nil
			}
			b, err := strconv.ParseBool(strings.ToLower(v))
			if err != nil {
				return false, &ParseError{Filename: filename, Line: line, Err: fmt.Errorf("column %s: %q is not a boolean", name, v)}
			}
			return b, nil
		}

		bank, err := flag("bank_reconciled")
		if err != nil {
			return nil, err
		}
		locked, err := flag("locked")
		if err != nil {
			return nil, err
		}

		doc.records = append(doc.records, ledger.RawTransaction{
			ID:                 field("id"),
			Date:               field("date"),
			DueDate:            field("due_date"),
			Label:              field("label"),
			Amount:             field("amount"),
			Currency:           field("currency"),
			Kind:               field("kind"),
			Status:             field("status"),
			Counterparty:       field("counterparty"),
			Reference:          field("reference"),
			LinkedTo:           splitList(field("linked_to")),
			ReconciliationCode: field("reconciliation_code"),
			BankReconciled:     bank,
			Locked:             locked,
		})
	}
	return doc, nil
}

// sniffDelimiter picks ";" for exports that use it (common with decimal
// commas), "," otherwise.
func sniffDelimiter(data []byte) rune {
	first := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		first = data[:i]
	}
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

func normalizeColumn(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(name)
}

func isBlank(row []string) bool {
	for _, v := range row {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
