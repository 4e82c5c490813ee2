// Large Ledger File Generator
//
// This tool generates a large ledger file for performance testing and profiling.
// It creates invoices with matching payments and credit notes, partial
// settlements, expenses without counterparty and entries spread over several
// fiscal years, to stress-test loading, timelines and reconciliation.
//
// Usage:
//
//	go run main.go > large.json
//	go run main.go 50000 > large.json         # Number of transactions
//	go run main.go 50000 csv > large.csv      # CSV instead of JSON
package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	defaultCount = 100000
)

var (
	counterparties = []string{
		"ACME", "Globex", "Initech", "Umbrella", "Hooli",
		"Stark Industries", "Wayne Enterprises", "Soylent", "Vandelay",
		"Société Générale", "Müller GmbH", "Œuvre & Fils",
	}

	labels = []string{
		"Website maintenance", "Consulting", "Hosting", "Licence renewal",
		"Design work", "Support contract", "Training", "Hardware",
	}

	expenseLabels = []string{
		"Office supplies", "Bank fees", "Travel", "Coffee", "Postage",
	}
)

type record struct {
	ID                 string   `json:"id"`
	Date               string   `json:"date"`
	Label              string   `json:"label"`
	Amount             string   `json:"amount"`
	Kind               string   `json:"kind"`
	Counterparty       string   `json:"counterparty,omitempty"`
	Reference          string   `json:"reference,omitempty"`
	LinkedTo           []string `json:"linked_to,omitempty"`
	ReconciliationCode string   `json:"reconciliation_code,omitempty"`
}

func main() {
	count := defaultCount
	if len(os.Args) > 1 {
		if n, err := strconv.Atoi(os.Args[1]); err == nil {
			count = n
		}
	}
	format := "json"
	if len(os.Args) > 2 {
		format = strings.ToLower(os.Args[2])
	}

	// The global random generator is automatically seeded
	records := generate(count)

	var err error
	switch format {
	case "csv":
		err = writeCSV(records)
	default:
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		err = enc.Encode(map[string][]record{"transactions": records})
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Generated %d transactions\n", len(records))
}

func generate(count int) []record {
	records := make([]record, 0, count)
	currentDate := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	invoices, codes := 0, 0

	for len(records) < count {
		currentDate = currentDate.AddDate(0, 0, rand.Intn(3))
		counterparty := counterparties[rand.Intn(len(counterparties))]

		switch rand.Intn(10) {
		case 0, 1, 2, 3: // 40% - invoice settled by one payment
			invoices++
			inv := invoice(invoices, currentDate, counterparty)
			pay := record{
				ID:           "PAY-" + uuid.NewString()[:8],
				Date:         day(currentDate.AddDate(0, 0, rand.Intn(45))),
				Label:        "Transfer " + inv.ID,
				Amount:       inv.Amount,
				Kind:         "payment",
				Counterparty: counterparty,
			}
			code := lettrage(codes)
			codes++
			link(code, &inv, &pay)
			records = append(records, inv, pay)

		case 4, 5: // 20% - open invoice
			invoices++
			records = append(records, invoice(invoices, currentDate, counterparty))

		case 6: // 10% - invoice partially paid, left open
			invoices++
			inv := invoice(invoices, currentDate, counterparty)
			half := decimal.RequireFromString(inv.Amount).Div(decimal.NewFromInt(2)).Round(2)
			records = append(records, inv, record{
				ID:           "PAY-" + uuid.NewString()[:8],
				Date:         day(currentDate.AddDate(0, 0, 10)),
				Label:        "Part payment " + inv.ID,
				Amount:       half.StringFixed(2),
				Kind:         "payment",
				Counterparty: counterparty,
			})

		case 7: // 10% - credit note against an invoice
			invoices++
			inv := invoice(invoices, currentDate, counterparty)
			note := record{
				ID:           fmt.Sprintf("CN-%06d", invoices),
				Date:         day(currentDate.AddDate(0, 0, 5)),
				Label:        "Credit " + inv.ID,
				Amount:       inv.Amount,
				Kind:         "credit_note",
				Counterparty: counterparty,
			}
			code := lettrage(codes)
			codes++
			link(code, &inv, &note)
			records = append(records, inv, note)

		default: // 20% - expense without counterparty
			records = append(records, record{
				ID:     "EXP-" + uuid.NewString()[:8],
				Date:   day(currentDate),
				Label:  expenseLabels[rand.Intn(len(expenseLabels))],
				Amount: randAmount(5, 500),
				Kind:   "expense",
			})
		}
	}
	return records
}

func invoice(n int, date time.Time, counterparty string) record {
	return record{
		ID:           fmt.Sprintf("INV-%06d", n),
		Date:         day(date),
		Label:        labels[rand.Intn(len(labels))],
		Amount:       randAmount(50, 20000),
		Kind:         "invoice",
		Counterparty: counterparty,
		Reference:    fmt.Sprintf("REF-%d", rand.Intn(100000)),
	}
}

func link(code string, a, b *record) {
	a.ReconciliationCode, b.ReconciliationCode = code, code
	a.LinkedTo, b.LinkedTo = []string{b.ID}, []string{a.ID}
}

// lettrage returns the n-th code: A..Z, AA..AZ and so on.
func lettrage(n int) string {
	var buf []byte
	for n >= 0 {
		buf = append([]byte{byte('A' + n%26)}, buf...)
		n = n/26 - 1
	}
	return string(buf)
}

func day(t time.Time) string {
	return t.Format("2006-01-02")
}

func randAmount(min, max float64) string {
	amount := min + rand.Float64()*(max-min)
	return decimal.NewFromFloat(amount).StringFixed(2)
}

func writeCSV(records []record) error {
	w := csv.NewWriter(os.Stdout)
	header := []string{"id", "date", "label", "amount", "kind", "counterparty", "reference", "linked_to", "reconciliation_code"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{r.ID, r.Date, r.Label, r.Amount, r.Kind, r.Counterparty, r.Reference,
			strings.Join(r.LinkedTo, ";"), r.ReconciliationCode}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
