package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/fx"
	"into-cashflow/internal/ledger"
	"into-cashflow/internal/rules"
)

var (
	now   = time.Date(2024, 4, 15, 12, 0, 0, 0, time.UTC)
	march = ledger.Month{Year: 2024, Month: time.March}
)

func statement(skip int, header []string, rows ...[]string) ledger.Table {
	var t ledger.Table
	for i := 0; i < skip; i++ {
		t = append(t, []string{"metadata"})
	}
	t = append(t, header)
	return append(t, rows...)
}

func bank(rows ...[]string) ledger.Table {
	return statement(7, []string{"תאריך", "תיאור התנועה", "₪ זכות/חובה "}, rows...)
}

func credit(rows ...[]string) ledger.Table {
	return statement(8, []string{"תאריך עסקה", "בית עסק", "סכום החיוב"}, rows...)
}

func engine() *Engine {
	log, _ := test.NewNullLogger()
	p := ledger.NewParser("ILS", fx.NewNormalizer("ILS", nil, log), log)
	return New(p, ledger.NewDeduplicator(nil), categorize.New(categorize.DefaultTable()), log)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func scenario() Input {
	return Input{
		Bank: bank(
			[]string{"01/03/2024", "Employer Payroll", "12,000 ₪"},
			[]string{"05/03/2024", "Visa Card Settlement", "-4,500 ₪"},
		),
		BankName: "bank.csv",
		Credit: credit(
			[]string{"10/03/2024", "Supermarket XYZ", "120 ₪"},
		),
		CreditName: "credit.csv",
	}
}

func TestSettlementIsDeduplicated(t *testing.T) {
	res, err := engine().Run(context.Background(), scenario(), rules.New(), now)
	require.NoError(t, err)

	assert.Empty(t, res.BankExpenses)
	require.Len(t, res.Settlements, 1)
	assert.Equal(t, "Visa Card Settlement", res.Settlements[0].Description)

	require.Len(t, res.Months, 1)
	m := res.Months[0]
	assert.Equal(t, march, m.Month)
	assert.True(t, m.BankExpenses.IsZero())
	assert.True(t, m.CreditExpenses.Equal(dec("120")))
	assert.True(t, m.Income.Equal(dec("12000")))
	assert.True(t, m.Net.Equal(dec("11880")))

	bd := res.Breakdown(march)
	require.Len(t, bd, 1)
	assert.Equal(t, "Food & Groceries", bd[0].Category)
	assert.True(t, bd[0].Total.Equal(dec("120")))

	latest, ok := res.Latest()
	require.True(t, ok)
	assert.Equal(t, march, latest.Month)
}

func TestIncomeApproval(t *testing.T) {
	in := scenario()
	in.Bank = append(in.Bank, []string{"20/03/2024", "Friend transfer", "300"})

	res, err := engine().Run(context.Background(), in, rules.New(), now)
	require.NoError(t, err)
	assert.True(t, res.Months[0].Income.Equal(dec("12300")))

	rl := rules.New().Apply(rules.Decision{Description: "Employer Payroll", Action: rules.ApproveIncome})
	res, err = engine().Run(context.Background(), in, rl, now)
	require.NoError(t, err)
	assert.Len(t, res.IncomeCandidates, 2)
	require.Len(t, res.Income, 1)
	assert.True(t, res.Months[0].Income.Equal(dec("12000")))
	assert.True(t, res.Months[0].Net.Equal(dec("11880")))
}

func TestExpenseApprovalAndExclusions(t *testing.T) {
	in := scenario()
	in.Bank = append(in.Bank,
		[]string{"03/03/2024", "Rent", "-5,000"},
		[]string{"04/03/2024", "One off", "-700"},
	)
	in.Credit = append(in.Credit, []string{"12/03/2024", "TV store", "3,000"})

	rl := rules.New().Apply(
		rules.Decision{Description: "Rent", Action: rules.ApproveExpense},
		rules.Decision{Description: "TV store", Action: rules.ExcludeCredit},
		rules.Decision{Description: "Rent", Action: rules.MarkSavings},
	)
	res, err := engine().Run(context.Background(), in, rl, now)
	require.NoError(t, err)

	assert.Len(t, res.ExpenseCandidates, 2)
	require.Len(t, res.BankExpenses, 1)
	assert.Equal(t, categorize.Savings, res.BankExpenses[0].Category)
	require.Len(t, res.ExcludedCredit, 1)
	assert.Equal(t, "Other", res.ExcludedCredit[0].Category)

	m := res.Months[0]
	assert.True(t, m.BankExpenses.Equal(dec("5000")))
	assert.True(t, m.CreditExpenses.Equal(dec("120")))

	bd := res.Breakdown(march)
	require.Len(t, bd, 2)
	assert.Equal(t, categorize.Savings, bd[0].Category)
}

func TestForeignChargeUsesFallbackRate(t *testing.T) {
	in := Input{Credit: credit([]string{"10/03/2024", "Hotel Paris", "50 EUR"})}
	res, err := engine().Run(context.Background(), in, nil, now)
	require.NoError(t, err)

	require.Len(t, res.Credit, 1)
	c := res.Credit[0]
	assert.Equal(t, "EUR", c.Currency)
	assert.True(t, c.AmountLocal.Equal(dec("200")))
	assert.True(t, c.ExchangeRate.Equal(dec("4.0")))
	assert.Equal(t, fx.Fallback, c.RateSource)
	assert.True(t, res.Months[0].CreditExpenses.Equal(dec("200")))
}

func TestCurrentMonthExcluded(t *testing.T) {
	in := scenario()
	in.Credit = append(in.Credit, []string{"02/04/2024", "Supermarket XYZ", "80"})

	res, err := engine().Run(context.Background(), in, nil, now)
	require.NoError(t, err)
	require.Len(t, res.Months, 1)
	assert.Equal(t, march, res.Months[0].Month)
}

func TestRunIsIdempotent(t *testing.T) {
	e := engine()
	rl := rules.New().Apply(rules.Decision{Description: "Supermarket XYZ", Action: rules.SetCategory, Category: "Household"})
	before := rl.Clone()

	first, err := e.Run(context.Background(), scenario(), rl, now)
	require.NoError(t, err)
	second, err := e.Run(context.Background(), scenario(), rl, now)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.True(t, before.Equal(rl))
	assert.Equal(t, "Household", first.Credit[0].Category)
}

func TestUnrecognizedLayout(t *testing.T) {
	in := scenario()
	in.Credit = statement(8, []string{"Date", "Merchant", "Amount"})

	_, err := engine().Run(context.Background(), in, nil, now)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrUnrecognizedLayout))
	assert.Contains(t, err.Error(), "credit.csv")
}
