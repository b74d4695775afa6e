package main

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/Rhymond/go-money"
	"github.com/fatih/color"
	"github.com/shopspring/decimal"

	"into-cashflow/internal/ledger"
	"into-cashflow/internal/summary"
)

const (
	stamp      = "2006/01/02"
	descLength = 40
	catLength  = 24
)

// formatMoney displays an amount with the currency's symbol and grouping.
// Unknown currency codes fall back to the bare number and code.
func formatMoney(d decimal.Decimal, currency string) string {
	cur := money.GetCurrency(currency)
	if cur == nil {
		return d.StringFixed(2) + " " + currency
	}
	minor := d.Shift(int32(cur.Fraction)).Round(0).IntPart()
	return money.New(minor, cur.Code).Display()
}

// fit truncates or pads s to n runes, so Hebrew and Latin text line up.
func fit(s string, n int) string {
	if utf8.RuneCountInString(s) > n {
		r := []rune(s)
		return string(r[:n-1]) + "…"
	}
	return s + strings.Repeat(" ", n-utf8.RuneCountInString(s))
}

var (
	headerc = color.New(color.BgBlue, color.FgWhite)
	monthc  = color.New(color.BgYellow, color.FgBlack)
	descc   = color.New(color.BgWhite, color.FgBlack)
	catc    = color.New(color.BgGreen, color.FgBlack)
	posc    = color.New(color.FgGreen)
	negc    = color.New(color.FgRed)
)

func signed(w io.Writer, d decimal.Decimal, currency string) {
	c := posc
	if d.IsNegative() {
		c = negc
	}
	c.Fprintf(w, " %14s ", formatMoney(d, currency))
}

// printMonths prints the most recent month first.
func printMonths(w io.Writer, months []summary.MonthSummary, currency string) {
	headerc.Fprintf(w, " %-7s  %14s  %14s  %14s  %14s  %14s ", "Month", "Income", "Bank", "Credit", "Expenses", "Net")
	fmt.Fprintln(w)
	for i := len(months) - 1; i >= 0; i-- {
		m := months[i]
		monthc.Fprintf(w, " %-7s ", m.Month)
		fmt.Fprintf(w, " %14s ", formatMoney(m.Income, currency))
		fmt.Fprintf(w, " %14s ", formatMoney(m.BankExpenses, currency))
		fmt.Fprintf(w, " %14s ", formatMoney(m.CreditExpenses, currency))
		fmt.Fprintf(w, " %14s ", formatMoney(m.TotalExpenses, currency))
		signed(w, m.Net, currency)
		fmt.Fprintln(w)
	}
}

func printHeadline(w io.Writer, m summary.MonthSummary, currency string) {
	headerc.Fprintf(w, " Last completed month: %s ", m.Month)
	fmt.Fprintln(w)
	fmt.Fprintf(w, "\tIncome    %s\n", formatMoney(m.Income, currency))
	fmt.Fprintf(w, "\tExpenses  %s\n", formatMoney(m.TotalExpenses, currency))
	fmt.Fprint(w, "\tNet      ")
	signed(w, m.Net, currency)
	fmt.Fprintln(w)
}

func printBreakdown(w io.Writer, month ledger.Month, totals []summary.CategoryTotal, currency string) {
	headerc.Fprintf(w, " Where the money went in %s ", month)
	fmt.Fprintln(w)
	if len(totals) == 0 {
		fmt.Fprintln(w, "\tNo expenses.")
		return
	}
	for _, ct := range totals {
		catc.Fprintf(w, " %s ", fit(ct.Category, catLength))
		fmt.Fprintf(w, " %14s  %4d txns\n", formatMoney(ct.Total, currency), ct.Count)
	}
}

// printTxn prints one transaction on a single line.
func printTxn(w io.Writer, t ledger.Transaction, idx, total int, local string) {
	if total > 0 {
		headerc.Fprintf(w, " [%3d of %3d] ", idx+1, total)
	}
	monthc.Fprintf(w, " %10s ", t.Date.Format(stamp))
	descc.Fprintf(w, " %s", fit(t.Description, descLength))
	if t.Category != "" {
		catc.Fprintf(w, " %s ", fit(t.Category, catLength))
	}
	amount := formatMoney(t.Amount, t.Currency)
	if t.Currency != local {
		amount += " (" + formatMoney(t.AmountLocal, local) + ")"
	}
	negc.Fprintf(w, " %s ", amount)
	fmt.Fprintln(w)
}

func printSources(w io.Writer, title string, sources []summary.Source, currency string) {
	headerc.Fprintf(w, " %s ", title)
	fmt.Fprintln(w)
	for _, s := range sources {
		mark := negc.Sprint(" N ")
		if s.Approved {
			mark = posc.Sprint(" Y ")
		}
		fmt.Fprintf(w, "%s %s %14s  avg %14s  x%d\n", mark, fit(s.Description, descLength),
			formatMoney(s.Total, currency), formatMoney(s.Average, currency), s.Count)
	}
}
