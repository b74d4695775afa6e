// Package categorize assigns a spending category to a transaction
// description.
package categorize

import (
	"strings"

	"into-cashflow/internal/rules"
)

const (
	Savings = "Savings & Investments"
	Other   = "Other"
)

// Rule lists the keywords that place a description in Category.
type Rule struct {
	Category string   `yaml:"category"`
	Keywords []string `yaml:"keywords"`
}

// Table is checked in order. When a description matches keywords of more
// than one category, the first listed category wins.
type Table []Rule

// DefaultTable covers the common Israeli merchants, plus English names.
func DefaultTable() Table {
	return Table{
		{"Food & Groceries", []string{"שופרסל", "הכל כאן", "יוחננוף", "קשת טעמים", "רמי לוי", "מאפיית", "supermarket", "grocery", "bakery"}},
		{"Education & Activities", []string{"נוקדים", "מוסדות חינוך", "עירייה", `מתנ"ס`, "school", "kindergarten"}},
		{"Transport & Car", []string{"פנגו", "פז", "סונול", "דור אלון", "חניון", "pango", "parking", "fuel"}},
		{"Leisure & Restaurants", []string{"קורטושוק", "מסעדה", "קפה", "וולט", "wolt", "restaurant", "cafe"}},
		{"Health", []string{"סופר פארם", "מכבי", "כללית", "בית מרקחת", "pharm", "clinic"}},
	}
}

// Categories returns the category names in table order.
func (t Table) Categories() []string {
	out := make([]string, 0, len(t))
	for _, r := range t {
		out = append(out, r.Category)
	}
	return out
}

// Step says which resolution step produced a category.
type Step int

const (
	StepDefault Step = iota
	StepSavings
	StepRule
	StepKeyword
)

func (s Step) String() string {
	switch s {
	case StepSavings:
		return "savings"
	case StepRule:
		return "rule"
	case StepKeyword:
		return "keyword"
	}
	return "default"
}

// Match explains a categorization.
type Match struct {
	Category string
	Step     Step
	Keyword  string // set for StepKeyword
}

type rule struct {
	category string
	keywords []string
}

// Engine resolves categories. It holds no state besides the keyword table
// and is safe for concurrent use.
type Engine struct {
	rules []rule
}

func New(t Table) *Engine {
	e := &Engine{}
	for _, r := range t {
		var kws []string
		for _, k := range r.Keywords {
			if k = strings.ToLower(k); k != "" {
				kws = append(kws, k)
			}
		}
		e.rules = append(e.rules, rule{category: r.Category, keywords: kws})
	}
	return e
}

// Category resolves, in order: savings list, user assigned category,
// keyword table, Other.
func (e *Engine) Category(desc string, r *rules.Rules) string {
	return e.Explain(desc, r).Category
}

func (e *Engine) Explain(desc string, r *rules.Rules) Match {
	if r != nil {
		if r.IsSavings(desc) {
			return Match{Category: Savings, Step: StepSavings}
		}
		if cat, ok := r.CreditCategory(desc); ok {
			return Match{Category: cat, Step: StepRule}
		}
	}
	if m, ok := e.Keyword(desc); ok {
		return m
	}
	return Match{Category: Other, Step: StepDefault}
}

// Keyword looks the description up in the keyword table only.
func (e *Engine) Keyword(desc string) (Match, bool) {
	lower := strings.ToLower(desc)
	if strings.TrimSpace(lower) == "" {
		return Match{}, false
	}
	for _, r := range e.rules {
		for _, k := range r.keywords {
			if strings.Contains(lower, k) {
				return Match{Category: r.category, Step: StepKeyword, Keyword: k}, true
			}
		}
	}
	return Match{}, false
}
