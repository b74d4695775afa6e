package main

import (
	"io"
	"strings"
	"text/template"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"into-cashflow/internal/ledger"
	"into-cashflow/internal/pipeline"
)

// defaultTxnTemplateString writes a ledger-cli journal entry.
const defaultTxnTemplateString = "{{.Date.Format \"2006/01/02\"}}\t{{.Payee}}\n" +
	"\t{{.To | printf \"%-20s\"}}\t{{.Amount.Abs.StringFixed 2}}{{.Currency}}\n" +
	"\t{{.From}}\n\n"

// TxnTemplate is the data given to the journal template for each
// transaction. Amounts are in local currency.
type TxnTemplate struct {
	Date     time.Time
	Payee    string
	To       string
	From     string
	Category string
	Amount   decimal.Decimal
	Currency string
	Original decimal.Decimal // amount in the statement currency
	OrigCur  string
	Rate     decimal.Decimal
	Source   string
}

func newTransactionTemplate(text string) (*template.Template, error) {
	tmpl, err := template.New("transaction").Funcs(template.FuncMap{
		"money": formatMoney,
		"upper": strings.ToUpper,
	}).Parse(text)
	return tmpl, errors.Wrap(err, "parsing transaction template")
}

// Accounts used on each side of the journal entries.
const (
	bankAccount   = "Assets:Bank"
	creditAccount = "Liabilities:Credit Card"
)

func toTxnTemplate(t ledger.Transaction, local string) TxnTemplate {
	tt := TxnTemplate{
		Date:     t.Date,
		Payee:    t.Description,
		Category: t.Category,
		Amount:   t.AmountLocal,
		Currency: local,
		Original: t.Amount,
		OrigCur:  t.Currency,
		Rate:     t.ExchangeRate,
		Source:   t.Source.String(),
	}
	switch {
	case t.Source == ledger.Credit:
		tt.To = "Expenses:" + t.Category
		tt.From = creditAccount
	case t.Amount.IsPositive():
		tt.To = bankAccount
		tt.From = "Income:" + t.Category
	default:
		tt.To = "Expenses:" + t.Category
		tt.From = bankAccount
	}
	return tt
}

// ledgerFormat formats a transaction for insertion into a ledger journal,
// using the provided template.
func ledgerFormat(t ledger.Transaction, local string, tmpl *template.Template) (string, error) {
	var b strings.Builder
	err := tmpl.Execute(&b, toTxnTemplate(t, local))
	return b.String(), errors.Wrapf(err, "formatting %q", t.Description)
}

// writeJournal writes the income, bank expenses and counted credit charges
// of a run, by date.
func writeJournal(w io.Writer, tmpl *template.Template, res *pipeline.Result, local string) error {
	var txns []ledger.Transaction
	txns = append(txns, res.Income...)
	txns = append(txns, res.BankExpenses...)
	txns = append(txns, res.Credit...)
	ledger.SortByDate(txns)
	for _, t := range txns {
		s, err := ledgerFormat(t, local, tmpl)
		if err != nil {
			return err
		}
		if _, err := io.WriteString(w, s); err != nil {
			return errors.Wrap(err, "writing journal")
		}
	}
	return nil
}
