package rules

import (
	"strings"

	"github.com/pkg/errors"
)

// Action is one kind of change to the rules.
type Action int

const (
	ApproveIncome Action = iota + 1
	UnapproveIncome
	ApproveExpense
	UnapproveExpense
	MarkSavings
	UnmarkSavings
	SetCategory
	ClearCategory
	ExcludeCredit
	IncludeCredit
)

var actionNames = map[Action]string{
	ApproveIncome:    "approve-income",
	UnapproveIncome:  "unapprove-income",
	ApproveExpense:   "approve-expense",
	UnapproveExpense: "unapprove-expense",
	MarkSavings:      "mark-savings",
	UnmarkSavings:    "unmark-savings",
	SetCategory:      "set-category",
	ClearCategory:    "clear-category",
	ExcludeCredit:    "exclude-credit",
	IncludeCredit:    "include-credit",
}

func (a Action) String() string {
	if n, ok := actionNames[a]; ok {
		return n
	}
	return "unknown"
}

func ParseAction(s string) (Action, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for a, n := range actionNames {
		if n == s {
			return a, nil
		}
	}
	return 0, errors.Errorf("unknown rule action %q", s)
}

// Decision is one user classification of a description.
type Decision struct {
	Description string
	Action      Action
	Category    string // used by SetCategory
}

// Apply returns a copy of r with the decisions applied in order. r itself is
// never modified. SetCategory with an empty category clears the entry.
func (r *Rules) Apply(ds ...Decision) *Rules {
	c := r.Clone()
	for _, d := range ds {
		switch d.Action {
		case ApproveIncome:
			c.ApprovedIncome.Add(d.Description)
		case UnapproveIncome:
			c.ApprovedIncome.Remove(d.Description)
		case ApproveExpense:
			c.ApprovedExpenses.Add(d.Description)
		case UnapproveExpense:
			c.ApprovedExpenses.Remove(d.Description)
		case MarkSavings:
			c.Savings.Add(d.Description)
		case UnmarkSavings:
			c.Savings.Remove(d.Description)
		case SetCategory:
			if d.Category == "" {
				delete(c.CreditCategories, d.Description)
			} else {
				c.CreditCategories[d.Description] = d.Category
			}
		case ClearCategory:
			delete(c.CreditCategories, d.Description)
		case ExcludeCredit:
			c.ExcludedCredit.Add(d.Description)
		case IncludeCredit:
			c.ExcludedCredit.Remove(d.Description)
		}
	}
	return c
}

// ErrEmptyApprovals is returned by Commit when un-approvals would leave an
// approval set empty, which would count every description again.
var ErrEmptyApprovals = errors.New("at least one description must stay approved")

// Commit applies the decisions to r and saves the result as one record.
// On a failed save the returned rules are still the updated ones. Decisions
// that un-approve the last member of a set are refused and nothing is saved.
func Commit(s Store, r *Rules, ds ...Decision) (*Rules, error) {
	next := r.Apply(ds...)
	if has(ds, UnapproveIncome) && len(next.ApprovedIncome) == 0 {
		return r, errors.Wrap(ErrEmptyApprovals, "income")
	}
	if has(ds, UnapproveExpense) && len(next.ApprovedExpenses) == 0 {
		return r, errors.Wrap(ErrEmptyApprovals, "expenses")
	}
	return next, s.Save(next)
}

// Materialize makes the approvals implied by an empty set explicit. For each
// ledger category with no approvals yet that ds decides on, every candidate
// the batch does not reject is approved ahead of ds.
func Materialize(r *Rules, income, expenses []string, ds []Decision) []Decision {
	var out []Decision
	implied := func(set Set, candidates []string, approve, unapprove Action) {
		if len(set) > 0 || !(has(ds, approve) || has(ds, unapprove)) {
			return
		}
		last := make(map[string]Action)
		for _, d := range ds {
			if d.Action == approve || d.Action == unapprove {
				last[d.Description] = d.Action
			}
		}
		seen := make(map[string]bool)
		for _, c := range candidates {
			if seen[c] || last[c] != 0 {
				continue
			}
			seen[c] = true
			out = append(out, Decision{Description: c, Action: approve})
		}
	}
	implied(r.ApprovedIncome, income, ApproveIncome, UnapproveIncome)
	implied(r.ApprovedExpenses, expenses, ApproveExpense, UnapproveExpense)
	return append(out, ds...)
}

func has(ds []Decision, a Action) bool {
	for _, d := range ds {
		if d.Action == a {
			return true
		}
	}
	return false
}
