package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/subcommands"
	"github.com/pkg/errors"

	"into-cashflow/internal/ledger"
	"into-cashflow/internal/pipeline"
	"into-cashflow/internal/rules"
	"into-cashflow/internal/summary"
)

var commands = []subcommands.Command{
	&summaryCmd{},
	&breakdownCmd{},
	&reviewCmd{},
	&rulesCmd{},
	&exportCmd{},
}

// inputs are the statement flags shared by the commands that reconcile.
type inputs struct {
	bank   string
	credit string
}

func (in *inputs) setFlags(f *flag.FlagSet) {
	f.StringVar(&in.bank, "bank", "", "Bank account statement, csv or xls.")
	f.StringVar(&in.credit, "credit", "", "Credit card statement, csv or xls.")
}

func (in *inputs) check() bool {
	if in.bank == "" && in.credit == "" {
		oerr("Please specify at least one of -bank and -credit")
		return false
	}
	return true
}

// reportErr prints err for the user. Unrecognized statements get a hint on
// where the expected layout is configured.
func reportErr(err error) {
	var le *ledger.LayoutError
	if errors.As(err, &le) {
		oerr(le.Error())
		section := "bank"
		if le.Source == ledger.Credit {
			section = "credit"
		}
		fmt.Fprintf(os.Stderr, "\tThe expected column titles and skip_rows are set in the %q section of %s/config.yaml.\n",
			section, *configDir)
		return
	}
	oerr(err.Error())
	if *debug {
		fmt.Fprintf(os.Stderr, "%+v\n", err)
	}
}

// reconcile loads the app and the rules and runs the pipeline.
func reconcile(ctx context.Context, in inputs) (*app, *rules.Rules, *pipeline.Result, bool) {
	a, err := loadApp()
	if err != nil {
		reportErr(err)
		return nil, nil, nil, false
	}
	rl, origin := a.store.Load()
	a.log.WithField("origin", origin).Debug("Loaded rules")
	res, err := a.run(ctx, in.bank, in.credit, rl)
	if err != nil {
		a.close()
		reportErr(err)
		return nil, nil, nil, false
	}
	return a, rl, res, true
}

// pickMonth returns the month named by flag, or the latest completed month.
func pickMonth(flagValue string, res *pipeline.Result) (ledger.Month, error) {
	if flagValue != "" {
		return ledger.ParseMonth(flagValue)
	}
	latest, ok := res.Latest()
	if !ok {
		return ledger.Month{}, errors.New("no completed months found in the statements")
	}
	return latest.Month, nil
}

type summaryCmd struct {
	inputs
	month string
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "monthly cash flow of the completed months" }
func (*summaryCmd) Usage() string {
	return `summary -bank <file> -credit <file> [-month 2006-01]

  Reconciles the statements and prints income, expenses and net per completed
  month, most recent first, followed by the category breakdown of the last
  completed month (or of -month).
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	c.inputs.setFlags(f)
	f.StringVar(&c.month, "month", "", "Month to break down, as 2006-01. Defaults to the last completed month.")
}

func (c *summaryCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.check() {
		return subcommands.ExitUsageError
	}
	a, _, res, ok := reconcile(ctx, c.inputs)
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.close()

	local := a.cfg.LocalCurrency
	if len(res.Months) == 0 {
		fmt.Println("No completed months found in the statements.")
		return subcommands.ExitSuccess
	}
	printMonths(os.Stdout, res.Months, local)
	fmt.Println()

	m, err := pickMonth(c.month, res)
	if err != nil {
		reportErr(err)
		return subcommands.ExitUsageError
	}
	if ms, ok := summary.Find(res.Months, m); ok {
		printHeadline(os.Stdout, ms, local)
		fmt.Println()
	}
	printBreakdown(os.Stdout, m, res.Breakdown(m), local)
	if n := len(res.Settlements); n > 0 {
		fmt.Printf("\n%d card settlement rows were left out of bank expenses.\n", n)
	}
	return subcommands.ExitSuccess
}

type breakdownCmd struct {
	inputs
	month string
	list  bool
}

func (*breakdownCmd) Name() string     { return "breakdown" }
func (*breakdownCmd) Synopsis() string { return "spending per category for one month" }
func (*breakdownCmd) Usage() string {
	return `breakdown -bank <file> -credit <file> [-month 2006-01] [-list]

  Prints the category totals of one month, largest first. With -list, the
  transactions of the month are printed too.
`
}

func (c *breakdownCmd) SetFlags(f *flag.FlagSet) {
	c.inputs.setFlags(f)
	f.StringVar(&c.month, "month", "", "Month as 2006-01. Defaults to the last completed month.")
	f.BoolVar(&c.list, "list", false, "List the transactions of the month.")
}

func (c *breakdownCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.check() {
		return subcommands.ExitUsageError
	}
	a, _, res, ok := reconcile(ctx, c.inputs)
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.close()

	m, err := pickMonth(c.month, res)
	if err != nil {
		reportErr(err)
		return subcommands.ExitUsageError
	}
	printBreakdown(os.Stdout, m, res.Breakdown(m), a.cfg.LocalCurrency)
	if c.list {
		fmt.Println()
		txns := monthTxns(m, res.BankExpenses, res.Credit)
		for i, t := range txns {
			printTxn(os.Stdout, t, i, len(txns), a.cfg.LocalCurrency)
		}
	}
	return subcommands.ExitSuccess
}

// monthTxns returns the transactions of month m from all streams, by date.
func monthTxns(m ledger.Month, streams ...[]ledger.Transaction) []ledger.Transaction {
	var out []ledger.Transaction
	for _, s := range streams {
		for _, t := range s {
			if t.Month() == m {
				out = append(out, t)
			}
		}
	}
	ledger.SortByDate(out)
	return out
}

type rulesCmd struct {
	out      string
	yes      bool
	action   string
	desc     string
	category string
}

func (*rulesCmd) Name() string     { return "rules" }
func (*rulesCmd) Synopsis() string { return "show, change, export or reset the saved rules" }
func (*rulesCmd) Usage() string {
	return `rules show
rules export [-out <file>]
rules apply -action <action> -desc <description> [-category <category>]
rules reset -yes

  Actions: approve-income, unapprove-income, approve-expense,
  unapprove-expense, mark-savings, unmark-savings, set-category,
  clear-category, exclude-credit, include-credit.
`
}

func (c *rulesCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "out", "", "Export destination. Defaults to stdout.")
	f.BoolVar(&c.yes, "yes", false, "Confirm reset.")
	f.StringVar(&c.action, "action", "", "Action to apply.")
	f.StringVar(&c.desc, "desc", "", "Exact transaction description the action applies to.")
	f.StringVar(&c.category, "category", "", "Category, for set-category.")
}

func (c *rulesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		oerr("Please specify one of show, export, apply or reset")
		return subcommands.ExitUsageError
	}
	a, err := loadApp()
	if err != nil {
		reportErr(err)
		return subcommands.ExitFailure
	}
	defer a.close()
	rl, origin := a.store.Load()

	switch f.Arg(0) {
	case "show":
		printRules(os.Stdout, rl, origin)
	case "export":
		var w io.Writer = os.Stdout
		if c.out != "" {
			file, err := os.Create(c.out)
			if err != nil {
				reportErr(errors.Wrapf(err, "creating %s", c.out))
				return subcommands.ExitFailure
			}
			defer file.Close()
			w = file
		}
		if err := rules.Export(w, rl); err != nil {
			reportErr(err)
			return subcommands.ExitFailure
		}
	case "apply":
		action, err := rules.ParseAction(c.action)
		if err != nil || c.desc == "" {
			oerr("Please specify a valid -action and a -desc")
			return subcommands.ExitUsageError
		}
		d := rules.Decision{Description: c.desc, Action: action, Category: c.category}
		if _, err := rules.Commit(a.store, rl, d); err != nil {
			reportErr(err)
			return subcommands.ExitFailure
		}
	case "reset":
		if !c.yes {
			oerr("Resetting forgets every decision. Pass -yes to confirm")
			return subcommands.ExitUsageError
		}
		if err := a.store.Reset(); err != nil {
			reportErr(err)
			return subcommands.ExitFailure
		}
	default:
		oerr(fmt.Sprintf("Unknown rules command %q", f.Arg(0)))
		return subcommands.ExitUsageError
	}
	return subcommands.ExitSuccess
}

func printRules(w io.Writer, rl *rules.Rules, origin rules.Origin) {
	if origin != rules.OriginPersisted {
		fmt.Fprintf(w, "No saved rules (%s).\n", origin)
	}
	list := func(title string, s rules.Set) {
		headerc.Fprintf(w, " %s (%d) ", title, len(s))
		fmt.Fprintln(w)
		for _, d := range s.Sorted() {
			fmt.Fprintf(w, "\t%s\n", d)
		}
	}
	list("Approved income", rl.ApprovedIncome)
	list("Approved expenses", rl.ApprovedExpenses)
	list("Savings", rl.Savings)
	list("Excluded from cash flow", rl.ExcludedCredit)

	headerc.Fprintf(w, " Merchant categories (%d) ", len(rl.CreditCategories))
	fmt.Fprintln(w)
	for _, d := range rl.Merchants() {
		catc.Fprintf(w, " %s ", fit(rl.CreditCategories[d], catLength))
		fmt.Fprintf(w, " %s\n", d)
	}
}

type exportCmd struct {
	inputs
	out      string
	template string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the reconciled transactions as a ledger journal" }
func (*exportCmd) Usage() string {
	return `export -bank <file> -credit <file> [-out <file>] [-template <file>]

  Writes every transaction that counts towards the cash flow, by date, using
  a text/template. The default template writes ledger-cli journal entries.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	c.inputs.setFlags(f)
	f.StringVar(&c.out, "out", "", "Output file. Defaults to stdout.")
	f.StringVar(&c.template, "template", "", "Template file for each transaction.")
}

func (c *exportCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.check() {
		return subcommands.ExitUsageError
	}
	text := defaultTxnTemplateString
	if c.template != "" {
		data, err := os.ReadFile(c.template)
		if err != nil {
			reportErr(errors.Wrapf(err, "reading template %s", c.template))
			return subcommands.ExitFailure
		}
		text = string(data)
	}
	tmpl, err := newTransactionTemplate(text)
	if err != nil {
		reportErr(err)
		return subcommands.ExitUsageError
	}

	a, _, res, ok := reconcile(ctx, c.inputs)
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.close()

	var w io.Writer = os.Stdout
	if c.out != "" {
		file, err := os.Create(c.out)
		if err != nil {
			reportErr(errors.Wrapf(err, "creating %s", c.out))
			return subcommands.ExitFailure
		}
		defer file.Close()
		w = file
	}
	if err := writeJournal(w, tmpl, res, a.cfg.LocalCurrency); err != nil {
		reportErr(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}
