package ledger

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/exp/slices"
)

// Suggestion scores. A pair must at least offset in amount and agree on
// one more criterion to be suggested.
const (
	scoreAmount       = 50
	scoreCounterparty = 30
	scoreWithinTerms  = 20
	scoreNearDate     = 10

	// MinSuggestionScore is the lowest score SuggestMatches reports.
	MinSuggestionScore = 60

	// nearDateDays is how far a credit may precede the debit it settles
	// and still count as close in time.
	nearDateDays = 3
)

// Suggestion proposes linking one debit-flavored entry with one
// credit-flavored entry. Suggestions are advisory; nothing is linked until
// the caller passes IDs to Book.Link.
type Suggestion struct {
	IDs        []string        `json:"ids"`
	Score      int             `json:"score"`
	Criteria   []string        `json:"criteria"`
	Difference decimal.Decimal `json:"difference"`
}

// SuggestMatches pairs open entries whose amounts offset each other within
// tolerance. Reconciled, locked and paid entries are never proposed, and
// each entry appears in at most one suggestion. Debits are considered
// oldest first and take their best-scoring credit; results are ordered by
// score, best first.
func SuggestMatches(txns []*Transaction, cfg *Config) []Suggestion {
	var debits, credits []*Transaction
	for _, t := range txns {
		if t.IsReconciled() || t.Locked || t.IsSettled() {
			continue
		}
		if t.Kind.IsCredit() {
			credits = append(credits, t)
		} else {
			debits = append(debits, t)
		}
	}
	byDateThenID := func(a, b *Transaction) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	}
	slices.SortFunc(debits, byDateThenID)
	slices.SortFunc(credits, byDateThenID)

	used := make(map[string]bool, len(credits))
	var out []Suggestion
	for _, d := range debits {
		var best *Suggestion
		var bestCredit string
		for _, c := range credits {
			if used[c.ID] {
				continue
			}
			s := scorePair(d, c, cfg)
			if s != nil && (best == nil || s.Score > best.Score) {
				best, bestCredit = s, c.ID
			}
		}
		if best != nil && best.Score >= MinSuggestionScore {
			used[bestCredit] = true
			out = append(out, *best)
		}
	}

	slices.SortStableFunc(out, func(a, b Suggestion) int {
		return b.Score - a.Score
	})
	return out
}

// scorePair returns nil when d and c cannot offset each other.
func scorePair(d, c *Transaction, cfg *Config) *Suggestion {
	if d.Currency != c.Currency {
		return nil
	}
	diff := d.Amount.Sub(c.Amount).Abs()
	if diff.GreaterThan(cfg.ToleranceFor(d.Currency)) {
		return nil
	}
	s := &Suggestion{
		IDs:        []string{d.ID, c.ID},
		Score:      scoreAmount,
		Criteria:   []string{"amount"},
		Difference: diff,
	}
	slices.Sort(s.IDs)

	if d.Counterparty != "" && d.Counterparty == c.Counterparty {
		s.Score += scoreCounterparty
		s.Criteria = append(s.Criteria, "counterparty")
	}

	days := d.Date.DaysUntil(c.Date)
	switch {
	case days >= 0 && !c.Date.After(DueDate(d, cfg)):
		s.Score += scoreWithinTerms
		s.Criteria = append(s.Criteria, "date")
	case days < 0 && -days <= nearDateDays:
		s.Score += scoreNearDate
		s.Criteria = append(s.Criteria, "date")
	}
	return s
}
