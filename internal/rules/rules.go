// Package rules holds the decisions a user has made about transaction
// descriptions, and persists them between runs.
//
// Descriptions are used exactly as they appear in the statements. Every set
// is keyed by the raw string, so the same description always resolves to the
// same entry.
package rules

import "sort"

// CurrentVersion is the schema version written by Save. Records written by
// older versions are upgraded on load.
const CurrentVersion = 2

// Set is a set of descriptions.
type Set map[string]struct{}

func NewSet(items ...string) Set {
	s := make(Set, len(items))
	for _, i := range items {
		s[i] = struct{}{}
	}
	return s
}

func (s Set) Has(d string) bool {
	_, ok := s[d]
	return ok
}

func (s Set) Add(d string) { s[d] = struct{}{} }

func (s Set) Remove(d string) { delete(s, d) }

// Sorted returns the members in lexical order.
func (s Set) Sorted() []string {
	out := make([]string, 0, len(s))
	for d := range s {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

func (s Set) Equal(o Set) bool {
	if len(s) != len(o) {
		return false
	}
	for d := range s {
		if !o.Has(d) {
			return false
		}
	}
	return true
}

func (s Set) clone() Set {
	c := make(Set, len(s))
	for d := range s {
		c[d] = struct{}{}
	}
	return c
}

// Rules is the full record of user decisions.
//
// An empty approval set means the user has not classified anything for that
// ledger yet, and every description is included. Once a set has members, only
// members are included. There is no rejected marker: removing a description
// from a set un-approves it.
type Rules struct {
	Version          int
	ApprovedIncome   Set
	ApprovedExpenses Set
	Savings          Set
	CreditCategories map[string]string
	ExcludedCredit   Set
}

// New returns empty rules at the current schema version.
func New() *Rules {
	return &Rules{
		Version:          CurrentVersion,
		ApprovedIncome:   make(Set),
		ApprovedExpenses: make(Set),
		Savings:          make(Set),
		CreditCategories: make(map[string]string),
		ExcludedCredit:   make(Set),
	}
}

func (r *Rules) Clone() *Rules {
	if r == nil {
		return New()
	}
	c := &Rules{
		Version:          r.Version,
		ApprovedIncome:   r.ApprovedIncome.clone(),
		ApprovedExpenses: r.ApprovedExpenses.clone(),
		Savings:          r.Savings.clone(),
		CreditCategories: make(map[string]string, len(r.CreditCategories)),
		ExcludedCredit:   r.ExcludedCredit.clone(),
	}
	for d, cat := range r.CreditCategories {
		c.CreditCategories[d] = cat
	}
	return c
}

// Equal compares every key with set semantics. Version is ignored.
func (r *Rules) Equal(o *Rules) bool {
	if r == nil || o == nil {
		return r == o
	}
	if !r.ApprovedIncome.Equal(o.ApprovedIncome) ||
		!r.ApprovedExpenses.Equal(o.ApprovedExpenses) ||
		!r.Savings.Equal(o.Savings) ||
		!r.ExcludedCredit.Equal(o.ExcludedCredit) ||
		len(r.CreditCategories) != len(o.CreditCategories) {
		return false
	}
	for d, cat := range r.CreditCategories {
		if oc, ok := o.CreditCategories[d]; !ok || oc != cat {
			return false
		}
	}
	return true
}

// IncludesIncome reports whether a bank income row counts towards income.
func (r *Rules) IncludesIncome(d string) bool {
	return len(r.ApprovedIncome) == 0 || r.ApprovedIncome.Has(d)
}

// IncludesExpense reports whether a bank expense row counts towards expenses.
func (r *Rules) IncludesExpense(d string) bool {
	return len(r.ApprovedExpenses) == 0 || r.ApprovedExpenses.Has(d)
}

func (r *Rules) IsSavings(d string) bool { return r.Savings.Has(d) }

func (r *Rules) IsExcludedCredit(d string) bool { return r.ExcludedCredit.Has(d) }

// CreditCategory returns the category the user assigned to a merchant.
func (r *Rules) CreditCategory(d string) (string, bool) {
	cat, ok := r.CreditCategories[d]
	return cat, ok && cat != ""
}

// Categories returns the distinct assigned categories, sorted.
func (r *Rules) Categories() []string {
	s := make(Set)
	for _, cat := range r.CreditCategories {
		if cat != "" {
			s.Add(cat)
		}
	}
	return s.Sorted()
}

// Merchants returns the descriptions that have a category, sorted.
func (r *Rules) Merchants() []string {
	out := make([]string, 0, len(r.CreditCategories))
	for d, cat := range r.CreditCategories {
		if cat != "" {
			out = append(out, d)
		}
	}
	sort.Strings(out)
	return out
}
