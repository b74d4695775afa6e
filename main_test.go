package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/config"
	"into-cashflow/internal/fx"
	"into-cashflow/internal/ledger"
	"into-cashflow/internal/pipeline"
	"into-cashflow/internal/rules"
	"into-cashflow/internal/summary"
)

var march = ledger.Month{Year: 2024, Month: time.March}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLedgerFormat(t *testing.T) {
	txn := ledger.Transaction{
		Date:         time.Date(2013, 2, 3, 0, 0, 0, 0, time.UTC),
		Description:  "Payee",
		Amount:       dec("-15.83"),
		Currency:     "ILS",
		AmountLocal:  dec("-15.83"),
		ExchangeRate: decimal.NewFromInt(1),
		Category:     "Food & Groceries",
		Source:       ledger.Bank,
	}

	t.Run("defaultTemplate", func(t *testing.T) {
		tmpl, err := newTransactionTemplate(defaultTxnTemplateString)
		require.NoError(t, err)
		out, err := ledgerFormat(txn, "ILS", tmpl)
		require.NoError(t, err)
		want := "2013/02/03\tPayee\n\tExpenses:Food & Groceries\t15.83ILS\n\tAssets:Bank\n\n"
		assert.Equal(t, want, out)
	})

	t.Run("customTemplate", func(t *testing.T) {
		custom := "{{.Date.Format \"2006-01-02\"}} * {{.Payee | upper}}\n    {{.To}}  {{money .Amount .Currency}}\n    {{.From}}\n"
		tmpl, err := newTransactionTemplate(custom)
		require.NoError(t, err)

		usd := txn
		usd.Source = ledger.Credit
		usd.Amount = dec("10")
		usd.Currency = "USD"
		usd.AmountLocal = dec("37")
		usd.ExchangeRate = dec("3.7")
		out, err := ledgerFormat(usd, "USD", tmpl)
		require.NoError(t, err)
		assert.Equal(t, "2013-02-03 * PAYEE\n    Expenses:Food & Groceries  $37.00\n    Liabilities:Credit Card\n", out)
	})

	t.Run("income", func(t *testing.T) {
		in := txn
		in.Amount, in.AmountLocal = dec("100"), dec("100")
		in.Category = "Salary"
		tt := toTxnTemplate(in, "ILS")
		assert.Equal(t, "Assets:Bank", tt.To)
		assert.Equal(t, "Income:Salary", tt.From)
	})

	t.Run("badTemplate", func(t *testing.T) {
		_, err := newTransactionTemplate("{{.Date")
		assert.Error(t, err)
	})
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "$1,234.50", formatMoney(dec("1234.5"), "USD"))
	assert.Equal(t, "12.30 XYZ", formatMoney(dec("12.3"), "XYZ"))
}

func TestFit(t *testing.T) {
	assert.Equal(t, "abc  ", fit("abc", 5))
	assert.Equal(t, "abcd…", fit("abcdefgh", 5))
	assert.Equal(t, "שופר…", fit("שופרסל דיל", 5))
}

func TestSuggester(t *testing.T) {
	assert.Nil(t, newSuggester(nil))
	assert.Nil(t, newSuggester(map[string]string{"a": "Food", "b": "Food"}))
	assert.Nil(t, (*suggester)(nil).topHits("anything", 3))

	s := newSuggester(map[string]string{
		"shufersal deal":     "Food & Groceries",
		"shufersal online":   "Food & Groceries",
		"rami levy":          "Food & Groceries",
		"paz fuel station":   "Transportation",
		"delek fuel station": "Transportation",
		"pango parking":      "Transportation",
	})
	require.NotNil(t, s)
	hits := s.topHits("SHUFERSAL SHELI", 3)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Food & Groceries", hits[0])

	hits = s.topHits("sonol fuel station", 3)
	require.NotEmpty(t, hits)
	assert.Equal(t, "Transportation", hits[0])
}

func TestPrepareDescription(t *testing.T) {
	assert.Equal(t, []string{"paypal", "spotify", "p1"},
		prepareDescriptionForClassification("PAYPAL *SPOTIFY-P1"))
}

func TestParseAIResponse(t *testing.T) {
	reply := "Here you go:\n```json\n" + `{"decisions": [
		{"suggested_categories": [{"category": "Food & Groceries", "confidence": 0.9}], "source": "ai"},
		{"suggested_categories": [{"category": "Other", "confidence": 0.4}], "source": "uncertain"}
	]}` + "\n```"

	resp, err := parseAIResponse(reply, 2)
	require.NoError(t, err)
	require.Len(t, resp.Decisions, 2)
	assert.Equal(t, "Food & Groceries", resp.Decisions[0].SuggestedCategories[0].Category)
	assert.Equal(t, "uncertain", resp.Decisions[1].Source)

	_, err = parseAIResponse(reply, 3)
	assert.Error(t, err)

	_, err = parseAIResponse("I cannot help with that.", 1)
	assert.Error(t, err)

	_, err = parseAIResponse("{not json}", 1)
	assert.Error(t, err)
}

func TestBuildAIPrompt(t *testing.T) {
	prompt, err := buildAIPrompt(ReviewData{
		Merchants: []ReviewMerchant{{
			Description: "שופרסל דיל",
			Date:        "2024/03/10",
			Amount:      dec("120"),
			Currency:    "ILS",
			Bayesian:    []string{"Food & Groceries"},
		}},
		AllCategories: []CategoryInfo{{Name: "Food & Groceries", Examples: []string{"רמי לוי"}}},
	})
	require.NoError(t, err)
	assert.Contains(t, prompt, "שופרסל דיל")
	assert.Contains(t, prompt, "רמי לוי")
	assert.Contains(t, prompt, `"bayesian"`)
}

func TestCallClaudeWithoutKey(t *testing.T) {
	_, err := callClaudeAPI(context.Background(), config.AI{}, ReviewData{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ANTHROPIC_API_KEY")
}

func txnOn(desc, day string, src ledger.Source) ledger.Transaction {
	d, err := time.Parse("2006-01-02", day)
	if err != nil {
		panic(err)
	}
	return ledger.Transaction{Date: d, Description: desc, Source: src}
}

func TestMonthTxns(t *testing.T) {
	bank := []ledger.Transaction{
		txnOn("late", "2024-03-20", ledger.Bank),
		txnOn("april", "2024-04-02", ledger.Bank),
	}
	credit := []ledger.Transaction{txnOn("early", "2024-03-01", ledger.Credit)}

	got := monthTxns(march, bank, credit)
	require.Len(t, got, 2)
	assert.Equal(t, "early", got[0].Description)
	assert.Equal(t, "late", got[1].Description)
}

func TestPickMonth(t *testing.T) {
	res := &pipeline.Result{Months: []summary.MonthSummary{
		{Month: ledger.Month{Year: 2024, Month: time.February}},
		{Month: march},
	}}
	m, err := pickMonth("", res)
	require.NoError(t, err)
	assert.Equal(t, march, m)

	m, err = pickMonth("2024-02", res)
	require.NoError(t, err)
	assert.Equal(t, time.February, m.Month)

	_, err = pickMonth("", &pipeline.Result{})
	assert.Error(t, err)
}

func TestSourceDecision(t *testing.T) {
	ds, move := sourceDecision('y', "Payroll", true)
	assert.Equal(t, 1, move)
	assert.Equal(t, []rules.Decision{{Description: "Payroll", Action: rules.ApproveIncome}}, ds)

	ds, move = sourceDecision('n', "Rent", false)
	assert.Equal(t, 1, move)
	assert.Equal(t, []rules.Decision{{Description: "Rent", Action: rules.UnapproveExpense}}, ds)

	ds, _ = sourceDecision('v', "Pension", false)
	assert.Len(t, ds, 2)
	assert.Equal(t, rules.MarkSavings, ds[1].Action)

	_, move = sourceDecision('b', "x", true)
	assert.Equal(t, -1, move)
	_, move = sourceDecision('q', "x", true)
	assert.Equal(t, 0, move)
}

func TestPendingMerchants(t *testing.T) {
	eng := categorize.New(categorize.DefaultTable())
	rl := rules.New().Apply(
		rules.Decision{Description: "Known Shop", Action: rules.SetCategory, Category: "Shopping"},
	)
	res := &pipeline.Result{
		Credit: []ledger.Transaction{
			{Description: "Known Shop", AmountLocal: dec("500")},
			{Description: "Mystery Ltd", AmountLocal: dec("30")},
			{Description: "Supermarket XYZ", AmountLocal: dec("80")},
			{Description: "Mystery Ltd", AmountLocal: dec("40")},
		},
	}

	ms := pendingMerchants(res, rl, eng, false)
	require.Len(t, ms, 2)
	assert.Equal(t, "Supermarket XYZ", ms[0].first.Description)
	assert.Equal(t, categorize.StepKeyword, ms[0].match.Step)
	assert.Equal(t, "Mystery Ltd", ms[1].first.Description)
	assert.Equal(t, 2, ms[1].count)
	assert.True(t, ms[1].total.Equal(dec("70")))

	assert.Len(t, pendingMerchants(res, rl, eng, true), 3)

	ex := trainingExamples(res, rl, eng)
	assert.Equal(t, "Shopping", ex["Known Shop"])
	assert.Equal(t, "Food & Groceries", ex["Supermarket XYZ"])
	assert.NotContains(t, ex, "Mystery Ltd")
}

func TestAllCategories(t *testing.T) {
	rl := rules.New().Apply(rules.Decision{Description: "Gym", Action: rules.SetCategory, Category: "Sport"})
	cats := allCategories(categorize.DefaultTable(), rl)
	assert.Contains(t, cats, "Sport")
	assert.Contains(t, cats, "Food & Groceries")
	assert.Equal(t, categorize.Other, cats[len(cats)-1])
}

func writeStatement(t *testing.T, dir, name string, skip int, lines ...string) string {
	var b strings.Builder
	for i := 0; i < skip; i++ {
		b.WriteString("metadata\n")
	}
	for _, l := range lines {
		b.WriteString(l + "\n")
	}
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0644))
	return path
}

func testApp(t *testing.T, backend string) *app {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.FX.Offline = true
	cfg.Rules.Backend = backend
	cfg.Rules.Path = filepath.Join(dir, "rules.json")
	if backend == config.BackendBolt {
		cfg.Rules.Path = filepath.Join(dir, "cashflow.db")
	}
	log, _ := test.NewNullLogger()
	a, err := newApp(&cfg, log)
	require.NoError(t, err)
	t.Cleanup(a.close)
	a.now = func() time.Time { return time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC) }
	return a
}

func TestAppRunEndToEnd(t *testing.T) {
	dir := t.TempDir()
	bankPath := writeStatement(t, dir, "bank.csv", 7,
		"תאריך,תיאור התנועה,₪ זכות/חובה ",
		`01/03/2024,Employer Payroll,"12,000 ₪"`,
		`05/03/2024,Visa Card Settlement,"-4,500 ₪"`,
	)
	creditPath := writeStatement(t, dir, "credit.csv", 8,
		"תאריך עסקה,בית עסק,סכום החיוב",
		"10/03/2024,Supermarket XYZ,120 ₪",
	)

	a := testApp(t, config.BackendFile)
	rl, origin := a.store.Load()
	assert.Equal(t, rules.OriginFirstRun, origin)

	res, err := a.run(context.Background(), bankPath, creditPath, rl)
	require.NoError(t, err)
	require.Len(t, res.Months, 1)
	assert.True(t, res.Months[0].Net.Equal(dec("11880")))
	require.Len(t, res.Settlements, 1)

	tmpl, err := newTransactionTemplate(defaultTxnTemplateString)
	require.NoError(t, err)
	var b strings.Builder
	require.NoError(t, writeJournal(&b, tmpl, res, a.cfg.LocalCurrency))
	out := b.String()
	assert.Contains(t, out, "Employer Payroll")
	assert.Contains(t, out, "Expenses:Food & Groceries\t120.00ILS")
	assert.NotContains(t, out, "Visa Card Settlement")
	assert.Less(t, strings.Index(out, "Employer Payroll"), strings.Index(out, "Supermarket XYZ"))
}

func TestAppForeignChargeOffline(t *testing.T) {
	dir := t.TempDir()
	creditPath := writeStatement(t, dir, "credit.csv", 8,
		"תאריך עסקה,בית עסק,סכום החיוב",
		"10/03/2024,Hotel Berlin,50 €",
	)
	a := testApp(t, config.BackendFile)
	res, err := a.run(context.Background(), "", creditPath, rules.New())
	require.NoError(t, err)
	require.Len(t, res.Credit, 1)
	assert.True(t, res.Credit[0].AmountLocal.Equal(dec("200")))
	assert.Equal(t, fx.Fallback, res.Credit[0].RateSource)
}

func TestAppBoltRules(t *testing.T) {
	a := testApp(t, config.BackendBolt)
	require.NotNil(t, a.db)

	rl, origin := a.store.Load()
	assert.Equal(t, rules.OriginFirstRun, origin)
	saved, err := rules.Commit(a.store, rl,
		rules.Decision{Description: "Employer Payroll", Action: rules.ApproveIncome})
	require.NoError(t, err)

	got, origin := a.store.Load()
	assert.Equal(t, rules.OriginPersisted, origin)
	assert.True(t, got.Equal(saved))
	assert.True(t, got.IncludesIncome("Employer Payroll"))
	assert.False(t, got.IncludesIncome("Bonus"))
}

func TestReviewFirstRunRejection(t *testing.T) {
	dir := t.TempDir()
	bankPath := writeStatement(t, dir, "bank.csv", 7,
		"תאריך,תיאור התנועה,₪ זכות/חובה ",
		`01/03/2024,Employer Payroll,"12,000 ₪"`,
		"09/03/2024,Friend transfer,300 ₪",
	)
	a := testApp(t, config.BackendFile)
	rl, _ := a.store.Load()
	res, err := a.run(context.Background(), bankPath, "", rl)
	require.NoError(t, err)
	require.Len(t, res.Income, 2)

	var ds []rules.Decision
	skip, _ := sourceDecision('s', "Employer Payroll", true)
	reject, _ := sourceDecision('n', "Friend transfer", true)
	ds = append(append(ds, skip...), reject...)
	ds = rules.Materialize(rl, descriptions(res.IncomeCandidates), descriptions(res.ExpenseCandidates), ds)
	_, err = rules.Commit(a.store, rl, ds...)
	require.NoError(t, err)

	rl, origin := a.store.Load()
	assert.Equal(t, rules.OriginPersisted, origin)
	res, err = a.run(context.Background(), bankPath, "", rl)
	require.NoError(t, err)
	require.Len(t, res.Income, 1)
	assert.Equal(t, "Employer Payroll", res.Income[0].Description)
	require.Len(t, res.Months, 1)
	assert.True(t, res.Months[0].Income.Equal(dec("12000")))
}

func TestDescriptions(t *testing.T) {
	txns := []ledger.Transaction{{Description: "b"}, {Description: "a"}, {Description: "b"}}
	assert.Equal(t, []string{"b", "a"}, descriptions(txns))
}
