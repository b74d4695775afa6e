// Package pipeline runs a full reconciliation: parse both statements, drop
// card settlements from the bank side, apply the user's rules, categorize and
// aggregate by month.
package pipeline

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/ledger"
	"into-cashflow/internal/rules"
	"into-cashflow/internal/summary"
)

// Engine holds no state between runs. Every Run recomputes the result from
// the raw tables and the rules it is given.
type Engine struct {
	Parser      *ledger.Parser
	Dedup       *ledger.Deduplicator
	Categorizer *categorize.Engine
	Log         *logrus.Logger
}

func New(p *ledger.Parser, d *ledger.Deduplicator, c *categorize.Engine, log *logrus.Logger) *Engine {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Engine{Parser: p, Dedup: d, Categorizer: c, Log: log}
}

// Input is a pair of statements as read from disk. Either table may be nil.
type Input struct {
	Bank       ledger.Table
	BankName   string
	Credit     ledger.Table
	CreditName string
}

// Result is the outcome of one run. Candidate slices hold every row the
// user could approve, whether or not the current rules include it.
type Result struct {
	Income            []ledger.Transaction
	IncomeCandidates  []ledger.Transaction
	BankExpenses      []ledger.Transaction
	ExpenseCandidates []ledger.Transaction
	Settlements       []ledger.Transaction
	Credit            []ledger.Transaction
	ExcludedCredit    []ledger.Transaction
	Months            []summary.MonthSummary
}

func (r *Result) Streams() summary.Streams {
	return summary.Streams{Income: r.Income, BankExpenses: r.BankExpenses, Credit: r.Credit}
}

// Breakdown returns the category totals of month m.
func (r *Result) Breakdown(m ledger.Month) []summary.CategoryTotal {
	return summary.Breakdown(m, r.Credit, r.BankExpenses)
}

// Latest returns the most recent completed month.
func (r *Result) Latest() (summary.MonthSummary, bool) {
	return summary.Latest(r.Months)
}

// Run only fails when a statement layout is not recognized.
func (e *Engine) Run(ctx context.Context, in Input, rl *rules.Rules, now time.Time) (*Result, error) {
	if rl == nil {
		rl = rules.New()
	}
	res := &Result{}

	if in.Bank != nil {
		bank, err := e.Parser.ParseBank(ctx, in.BankName, in.Bank)
		if err != nil {
			return nil, err
		}
		var kept []ledger.Transaction
		kept, res.Settlements = e.Dedup.Filter(bank)
		for _, t := range kept {
			t.Category = e.Categorizer.Category(t.Description, rl)
			switch {
			case t.Amount.IsPositive():
				res.IncomeCandidates = append(res.IncomeCandidates, t)
				if rl.IncludesIncome(t.Description) {
					res.Income = append(res.Income, t)
				}
			case t.Amount.IsNegative():
				res.ExpenseCandidates = append(res.ExpenseCandidates, t)
				if rl.IncludesExpense(t.Description) {
					res.BankExpenses = append(res.BankExpenses, t)
				}
			}
		}
	}

	if in.Credit != nil {
		credit, err := e.Parser.ParseCredit(ctx, in.CreditName, in.Credit)
		if err != nil {
			return nil, err
		}
		for _, t := range credit {
			t.Category = e.Categorizer.Category(t.Description, rl)
			if rl.IsExcludedCredit(t.Description) {
				res.ExcludedCredit = append(res.ExcludedCredit, t)
				continue
			}
			res.Credit = append(res.Credit, t)
		}
	}

	res.Months = summary.Monthly(res.Streams(), ledger.MonthOf(now))
	e.Log.WithFields(logrus.Fields{
		"income":      len(res.Income),
		"expenses":    len(res.BankExpenses),
		"settlements": len(res.Settlements),
		"credit":      len(res.Credit),
		"excluded":    len(res.ExcludedCredit),
		"months":      len(res.Months),
	}).Debug("Reconciled statements")
	return res, nil
}
