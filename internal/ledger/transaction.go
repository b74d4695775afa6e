package ledger

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"into-cashflow/internal/fx"
)

// Source identifies which ledger a transaction was read from.
type Source int

const (
	Bank Source = iota
	Credit
)

func (s Source) String() string {
	switch s {
	case Bank:
		return "bank"
	case Credit:
		return "credit"
	default:
		return "unknown"
	}
}

// Transaction is one row of a ledger after parsing. It is immutable once
// built, except for Category which the pipeline assigns on every run.
type Transaction struct {
	Date        time.Time
	BillingDate time.Time // zero when the ledger has no billing date

	Amount       decimal.Decimal // signed, in Currency
	Currency     string
	AmountLocal  decimal.Decimal
	ExchangeRate decimal.Decimal
	RateSource   fx.Source

	// Description is the verbatim source label. It is the key of every rule
	// lookup, so it is never trimmed or case-folded.
	Description string
	Source      Source
	Category    string

	Row int // 1-based row in the source table
}

// CashFlowDate is the date that places the transaction in a month: the
// billing date when the ledger provides one, the transaction date otherwise.
func (t Transaction) CashFlowDate() time.Time {
	if !t.BillingDate.IsZero() {
		return t.BillingDate
	}
	return t.Date
}

// Month is always derived from the dates, never stored.
func (t Transaction) Month() Month { return MonthOf(t.CashFlowDate()) }

// IsExpense reports whether the transaction takes money out of the account.
// Credit-card charges are recorded as positive values, so any credit row with
// a non-negative amount is an expense.
func (t Transaction) IsExpense() bool {
	if t.Source == Credit {
		return !t.Amount.IsNegative()
	}
	return t.Amount.IsNegative()
}

// byDate sorts transactions chronologically, keeping source order for ties.
type byDate []Transaction

func (b byDate) Len() int { return len(b) }
func (b byDate) Less(i int, j int) bool {
	di, dj := b[i].CashFlowDate(), b[j].CashFlowDate()
	if di.Equal(dj) {
		return b[i].Row < b[j].Row
	}
	return di.Before(dj)
}
func (b byDate) Swap(i int, j int) { b[i], b[j] = b[j], b[i] }

// SortByDate orders transactions by cash-flow date, stable on source row.
func SortByDate(txns []Transaction) { sort.Stable(byDate(txns)) }
