package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/google/subcommands"
	"github.com/manishrjain/keys"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/ledger"
	"into-cashflow/internal/pipeline"
	"into-cashflow/internal/rules"
	"into-cashflow/internal/summary"
)

const label = "default"

type reviewCmd struct {
	inputs
	all bool
	ai  bool
}

func (*reviewCmd) Name() string     { return "review" }
func (*reviewCmd) Synopsis() string { return "classify income sources, expenses and merchants" }
func (*reviewCmd) Usage() string {
	return `review -bank <file> -credit <file> [-all] [-ai]

  Walks through the income sources and bank expenses that are not approved
  yet, and the merchants without a category of their own. Decisions are kept
  in memory and saved together at the end, after confirmation.
`
}

func (c *reviewCmd) SetFlags(f *flag.FlagSet) {
	c.inputs.setFlags(f)
	f.BoolVar(&c.all, "all", false, "Review everything, including what was already decided.")
	f.BoolVar(&c.ai, "ai", false, "Ask Claude for merchant category suggestions.")
}

func setDefaultMappings(ks *keys.Shortcuts) {
	ks.BestEffortAssign('b', ".back", label)
	ks.BestEffortAssign('q', ".quit", label)
	ks.BestEffortAssign('a', ".show all", label)
	ks.BestEffortAssign('s', ".skip", label)
	ks.BestEffortAssign('x', ".exclude", label)
	ks.BestEffortAssign('v', ".savings", label)
}

func (c *reviewCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if !c.check() {
		return subcommands.ExitUsageError
	}
	a, rl, res, ok := reconcile(ctx, c.inputs)
	if !ok {
		return subcommands.ExitFailure
	}
	defer a.close()

	checkf(os.MkdirAll(*configDir, 0755), "Unable to create config directory %s", *configDir)
	keyfile := filepath.Join(*configDir, *shortcuts)
	short := keys.ParseConfig(keyfile)
	for _, cat := range allCategories(a.cfg.Categories, rl) {
		short.AutoAssign(cat, label)
	}
	setDefaultMappings(short)
	defer short.Persist(keyfile)

	r := &reviewer{
		app:   a,
		rules: rl,
		short: short,
		local: a.cfg.LocalCurrency,
	}
	merchants := pendingMerchants(res, rl, a.categorizer(), c.all)
	r.sugg = newSuggester(trainingExamples(res, rl, a.categorizer()))
	if c.ai || a.cfg.AI.Enabled {
		r.ai = r.aiSuggestions(ctx, merchants)
	}

	singleCharMode()
	defer saneMode()

	var decisions []rules.Decision
	ds, quit := r.reviewSources("Income sources", summary.Sources(res.IncomeCandidates, rl.ApprovedIncome), c.all, true)
	decisions = append(decisions, ds...)
	if !quit {
		ds, quit = r.reviewSources("Bank expenses", summary.Sources(res.ExpenseCandidates, rl.ApprovedExpenses), c.all, false)
		decisions = append(decisions, ds...)
	}
	if !quit {
		decisions = append(decisions, r.reviewMerchants(merchants)...)
	}

	clear()
	decisions = rules.Materialize(rl, descriptions(res.IncomeCandidates), descriptions(res.ExpenseCandidates), decisions)
	if len(decisions) == 0 {
		fmt.Println("Nothing to save.")
		return subcommands.ExitSuccess
	}
	fmt.Printf("Save %d decisions (Y/n)? ", len(decisions))
	if ch := readKey(); ch == 'n' || ch == 'q' {
		fmt.Println("\nDiscarded.")
		return subcommands.ExitSuccess
	}
	fmt.Println()
	if _, err := rules.Commit(a.store, rl, decisions...); err != nil {
		if errors.Is(err, rules.ErrEmptyApprovals) {
			oerr("Nothing saved, " + err.Error())
			return subcommands.ExitFailure
		}
		reportErr(err)
		return subcommands.ExitFailure
	}
	fmt.Println("Saved.")
	return subcommands.ExitSuccess
}

// allCategories is the keyword table categories, then the ones the user
// created, then Savings and Other.
func allCategories(t categorize.Table, rl *rules.Rules) []string {
	seen := make(map[string]bool)
	var out []string
	cats := append(t.Categories(), rl.Categories()...)
	for _, cat := range append(cats, categorize.Savings, categorize.Other) {
		if !seen[cat] {
			seen[cat] = true
			out = append(out, cat)
		}
	}
	return out
}

// descriptions returns the distinct descriptions of txns, in order.
func descriptions(txns []ledger.Transaction) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range txns {
		if !seen[t.Description] {
			seen[t.Description] = true
			out = append(out, t.Description)
		}
	}
	return out
}

// merchant groups the credit rows of one description.
type merchant struct {
	first ledger.Transaction
	count int
	total decimal.Decimal
	match categorize.Match
}

// pendingMerchants returns the merchants with no category of their own, by
// descending total. With all set, every merchant is returned.
func pendingMerchants(res *pipeline.Result, rl *rules.Rules, eng *categorize.Engine, all bool) []merchant {
	idx := make(map[string]int)
	var out []merchant
	for _, t := range append(append([]ledger.Transaction{}, res.Credit...), res.ExcludedCredit...) {
		if i, ok := idx[t.Description]; ok {
			out[i].count++
			out[i].total = out[i].total.Add(t.AmountLocal)
			continue
		}
		m := eng.Explain(t.Description, rl)
		if !all && (m.Step == categorize.StepRule || m.Step == categorize.StepSavings) {
			continue
		}
		idx[t.Description] = len(out)
		out = append(out, merchant{first: t, count: 1, total: t.AmountLocal, match: m})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].total.Abs().GreaterThan(out[j].total.Abs()) })
	return out
}

// trainingExamples are the merchants the user categorized, plus those the
// keyword table recognizes in this run.
func trainingExamples(res *pipeline.Result, rl *rules.Rules, eng *categorize.Engine) map[string]string {
	ex := make(map[string]string, len(rl.CreditCategories))
	for _, t := range res.Credit {
		if m, ok := eng.Keyword(t.Description); ok {
			ex[t.Description] = m.Category
		}
	}
	for d, cat := range rl.CreditCategories {
		ex[d] = cat
	}
	return ex
}

// sourceDecision maps a key pressed on an income or expense source to
// decisions, and to how far to move: -1 back, 1 next, 0 quit.
func sourceDecision(ch rune, desc string, income bool) ([]rules.Decision, int) {
	approve, unapprove := rules.ApproveExpense, rules.UnapproveExpense
	if income {
		approve, unapprove = rules.ApproveIncome, rules.UnapproveIncome
	}
	switch ch {
	case 'y', '\n':
		return []rules.Decision{{Description: desc, Action: approve}}, 1
	case 'n':
		return []rules.Decision{{Description: desc, Action: unapprove}}, 1
	case 'v':
		return []rules.Decision{{Description: desc, Action: approve}, {Description: desc, Action: rules.MarkSavings}}, 1
	case 's':
		return nil, 1
	case 'b':
		return nil, -1
	case 'q':
		return nil, 0
	}
	return nil, 1
}

type reviewer struct {
	app   *app
	rules *rules.Rules
	short *keys.Shortcuts
	sugg  *suggester
	ai    map[string][]CategoryScore
	local string
}

// reviewSources asks about each source in turn. Going back replaces the
// decision made for the previous source.
func (r *reviewer) reviewSources(title string, sources []summary.Source, all, income bool) ([]rules.Decision, bool) {
	var pending []summary.Source
	for _, s := range sources {
		if all || !s.Approved {
			pending = append(pending, s)
		}
	}
	chosen := make([][]rules.Decision, len(pending))
	for i := 0; i >= 0 && i < len(pending); {
		clear()
		printSources(os.Stdout, fmt.Sprintf("%s [%d of %d]", title, i+1, len(pending)), pending[i:i+1], r.local)
		fmt.Println()
		what := "expense"
		if income {
			what = "income"
		}
		fmt.Printf("[y/enter] count as %s  [n] leave out  [v] savings  [s] skip  [b] back  [q] quit ", what)
		ds, move := sourceDecision(readKey(), pending[i].Description, income)
		if move == 0 {
			return flatten(chosen), true
		}
		if move > 0 {
			chosen[i] = ds
		}
		i += move
	}
	return flatten(chosen), false
}

func flatten(dss [][]rules.Decision) []rules.Decision {
	var out []rules.Decision
	for _, ds := range dss {
		out = append(out, ds...)
	}
	return out
}

// reviewMerchants offers the suggested categories of each merchant on
// shortcut keys. Enter accepts the category shown.
func (r *reviewer) reviewMerchants(ms []merchant) []rules.Decision {
	chosen := make([][]rules.Decision, len(ms))
	for i := 0; i >= 0 && i < len(ms); {
		m := ms[i]
		clear()
		printTxn(os.Stdout, m.first, i, len(ms), r.local)
		color.New(color.BgWhite, color.FgBlack).Printf(" %d charges, %s total, matched by %s ",
			m.count, formatMoney(m.total, r.local), m.match.Step)
		fmt.Println()
		for j, s := range r.ai[m.first.Description] {
			color.New(color.FgCyan).Printf("  %d. ", j+1)
			color.New(color.FgYellow).Printf("%-30s", s.Category)
			color.New(color.FgGreen).Printf(" (%.0f%%)", s.Confidence*100)
			fmt.Println()
		}
		fmt.Println()

		var ks keys.Shortcuts
		setDefaultMappings(&ks)
		assigned := make(map[string]bool)
		for _, s := range r.ai[m.first.Description] {
			if !assigned[s.Category] {
				ks.AutoAssign(s.Category, label)
				assigned[s.Category] = true
			}
		}
		for _, hit := range r.sugg.topHits(m.first.Description, 5) {
			if !assigned[hit] {
				ks.AutoAssign(hit, label)
				assigned[hit] = true
			}
		}

		ds, move := r.pickCategory(ks, m)
		if move == 0 {
			break
		}
		if move > 0 {
			chosen[i] = ds
		}
		i += move
	}
	return flatten(chosen)
}

// pickCategory reads keys until a decision is made. ".show all" switches to
// the full category shortcut list.
func (r *reviewer) pickCategory(ks keys.Shortcuts, m merchant) ([]rules.Decision, int) {
	desc := m.first.Description
	for {
		ks.Print(label, false)
		ch := readKey()
		if ch == '\n' {
			return []rules.Decision{{Description: desc, Action: rules.SetCategory, Category: m.match.Category}}, 1
		}
		opt, has := ks.MapsTo(ch, label)
		if !has {
			continue
		}
		switch opt {
		case ".back":
			return nil, -1
		case ".quit":
			return nil, 0
		case ".skip":
			return nil, 1
		case ".exclude":
			return []rules.Decision{{Description: desc, Action: rules.ExcludeCredit}}, 1
		case ".savings":
			return []rules.Decision{{Description: desc, Action: rules.MarkSavings}}, 1
		case ".show all":
			clear()
			printTxn(os.Stdout, m.first, 0, 0, r.local)
			ks = *r.short
			continue
		}
		return []rules.Decision{{Description: desc, Action: rules.SetCategory, Category: opt}}, 1
	}
}

// aiSuggestions asks Claude about the pending merchants. Failures are logged
// and leave the review to the local classifier.
func (r *reviewer) aiSuggestions(ctx context.Context, ms []merchant) map[string][]CategoryScore {
	if len(ms) == 0 {
		return nil
	}
	data := ReviewData{}
	byCat := make(map[string][]string)
	for _, d := range r.rules.Merchants() {
		cat := r.rules.CreditCategories[d]
		if len(byCat[cat]) < 3 {
			byCat[cat] = append(byCat[cat], d)
		}
	}
	for _, cat := range allCategories(r.app.cfg.Categories, r.rules) {
		data.AllCategories = append(data.AllCategories, CategoryInfo{Name: cat, Examples: byCat[cat]})
	}
	for _, m := range ms {
		data.Merchants = append(data.Merchants, ReviewMerchant{
			Description: m.first.Description,
			Date:        m.first.Date.Format(stamp),
			Amount:      m.first.Amount,
			Currency:    m.first.Currency,
			Bayesian:    r.sugg.topHits(m.first.Description, 3),
		})
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()
	fmt.Printf("Asking Claude about %d merchants...\n", len(ms))
	resp, err := callClaudeAPI(ctx, r.app.cfg.AI, data)
	if err != nil {
		r.app.log.WithError(err).Warn("AI suggestions unavailable")
		return nil
	}
	out := make(map[string][]CategoryScore, len(ms))
	for i, d := range resp.Decisions {
		out[ms[i].first.Description] = d.SuggestedCategories
	}
	return out
}
