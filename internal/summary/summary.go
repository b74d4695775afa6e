// Package summary aggregates categorized transactions by calendar month.
package summary

import (
	"sort"

	"github.com/shopspring/decimal"

	"into-cashflow/internal/ledger"
)

// Streams are the filtered, categorized transactions of one run.
type Streams struct {
	Income       []ledger.Transaction
	BankExpenses []ledger.Transaction
	Credit       []ledger.Transaction
}

// MonthSummary holds the totals of one month, all in local currency.
// Expense totals are positive.
type MonthSummary struct {
	Month          ledger.Month
	Income         decimal.Decimal
	BankExpenses   decimal.Decimal
	CreditExpenses decimal.Decimal
	TotalExpenses  decimal.Decimal
	Net            decimal.Decimal
}

// Monthly returns one summary per month found in any stream, ascending.
// Months equal to or after current are left out, since they are not over.
// Bank expenses count by absolute value; credit rows are summed as signed
// charges so refunds reduce the total.
func Monthly(s Streams, current ledger.Month) []MonthSummary {
	byMonth := make(map[ledger.Month]*MonthSummary)
	get := func(t ledger.Transaction) *MonthSummary {
		m := t.Month()
		if !m.Before(current) {
			return nil
		}
		ms, ok := byMonth[m]
		if !ok {
			ms = &MonthSummary{Month: m}
			byMonth[m] = ms
		}
		return ms
	}

	for _, t := range s.Income {
		if ms := get(t); ms != nil {
			ms.Income = ms.Income.Add(t.AmountLocal)
		}
	}
	for _, t := range s.BankExpenses {
		if ms := get(t); ms != nil {
			ms.BankExpenses = ms.BankExpenses.Add(t.AmountLocal.Abs())
		}
	}
	for _, t := range s.Credit {
		if ms := get(t); ms != nil {
			ms.CreditExpenses = ms.CreditExpenses.Add(t.AmountLocal)
		}
	}

	out := make([]MonthSummary, 0, len(byMonth))
	for _, ms := range byMonth {
		ms.TotalExpenses = ms.BankExpenses.Add(ms.CreditExpenses)
		ms.Net = ms.Income.Sub(ms.TotalExpenses)
		out = append(out, *ms)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// Latest returns the most recent completed month.
func Latest(ms []MonthSummary) (MonthSummary, bool) {
	if len(ms) == 0 {
		return MonthSummary{}, false
	}
	latest := ms[0]
	for _, m := range ms[1:] {
		if latest.Month.Before(m.Month) {
			latest = m
		}
	}
	return latest, true
}

// Find returns the summary of month m.
func Find(ms []MonthSummary, m ledger.Month) (MonthSummary, bool) {
	for _, s := range ms {
		if s.Month == m {
			return s, true
		}
	}
	return MonthSummary{}, false
}

// CategoryTotal is the spending of one category in a month.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
	Count    int
}

// Breakdown groups the credit and bank expenses of month m by category,
// largest total first. Equal totals are ordered by category name.
func Breakdown(m ledger.Month, credit, bank []ledger.Transaction) []CategoryTotal {
	totals := make(map[string]*CategoryTotal)
	add := func(t ledger.Transaction, amount decimal.Decimal) {
		if t.Month() != m {
			return
		}
		ct, ok := totals[t.Category]
		if !ok {
			ct = &CategoryTotal{Category: t.Category}
			totals[t.Category] = ct
		}
		ct.Total = ct.Total.Add(amount)
		ct.Count++
	}
	for _, t := range credit {
		add(t, t.AmountLocal)
	}
	for _, t := range bank {
		add(t, t.AmountLocal.Abs())
	}

	out := make([]CategoryTotal, 0, len(totals))
	for _, ct := range totals {
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool {
		if c := out[i].Total.Cmp(out[j].Total); c != 0 {
			return c > 0
		}
		return out[i].Category < out[j].Category
	})
	return out
}

// Source is one distinct description with its totals, as presented to the
// user when approving income or expense sources.
type Source struct {
	Description string
	Total       decimal.Decimal
	Average     decimal.Decimal
	Count       int
	Approved    bool
}

// Sources groups txns by exact description. Approved is set from the
// approval set. The largest absolute totals come first.
func Sources(txns []ledger.Transaction, approved map[string]struct{}) []Source {
	idx := make(map[string]int)
	var out []Source
	for _, t := range txns {
		i, ok := idx[t.Description]
		if !ok {
			_, ap := approved[t.Description]
			out = append(out, Source{Description: t.Description, Approved: ap})
			i = len(out) - 1
			idx[t.Description] = i
		}
		out[i].Total = out[i].Total.Add(t.AmountLocal)
		out[i].Count++
	}
	for i := range out {
		out[i].Average = out[i].Total.Div(decimal.NewFromInt(int64(out[i].Count))).Round(2)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Total.Abs().Cmp(out[j].Total.Abs()); c != 0 {
			return c > 0
		}
		return out[i].Description < out[j].Description
	})
	return out
}
