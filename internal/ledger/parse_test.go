package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"into-cashflow/internal/fx"
)

var (
	bankHeader   = []string{"תאריך", "תאריך ערך", "תיאור התנועה", "₪ זכות/חובה ", "₪ יתרה "}
	creditHeader = []string{"תאריך עסקה", "בית עסק", "סכום עסקה מקורי", "תאריך חיוב", "סכום החיוב"}
)

// statement builds a table with skip metadata rows before the header.
func statement(skip int, header []string, rows ...[]string) Table {
	t := make(Table, 0, skip+1+len(rows))
	for i := 0; i < skip; i++ {
		t = append(t, []string{"account 12-345-678"})
	}
	t = append(t, header)
	return append(t, rows...)
}

func testParser(t *testing.T) (*Parser, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewParser("ILS", fx.NewNormalizer("ILS", nil, log), log), hook
}

func TestParseBank(t *testing.T) {
	p, hook := testParser(t)
	table := statement(7, bankHeader,
		[]string{"01/03/2024", "01/03/2024", "Employer Payroll", "12,000.00", "15,000"},
		[]string{"05/03/2024", "05/03/2024", "Visa Card Settlement", "-4,500", "10,500"},
		[]string{"", "", "יתרה לסוף תקופה", "", ""},
		[]string{"תאריך", "תאריך ערך", "תיאור התנועה", "₪ זכות/חובה ", "₪ יתרה "},
		[]string{"07/03/2024", "", "  Padded desc ", "₪ זכות/חובה "},
		[]string{"2024-03-09"},
	)

	txns, err := p.ParseBank(context.Background(), "bank.csv", table)
	require.NoError(t, err)
	require.Len(t, txns, 4)

	assert.Equal(t, "Employer Payroll", txns[0].Description)
	assert.True(t, txns[0].Amount.Equal(decimal.NewFromInt(12000)))
	assert.True(t, txns[0].AmountLocal.Equal(txns[0].Amount))
	assert.True(t, txns[0].ExchangeRate.Equal(decimal.NewFromInt(1)))
	assert.Equal(t, fx.Identity, txns[0].RateSource)
	assert.Equal(t, Bank, txns[0].Source)
	assert.Equal(t, 9, txns[0].Row)
	assert.Equal(t, date(2024, 3, 1), txns[0].Date)

	assert.True(t, txns[1].Amount.Equal(decimal.NewFromInt(-4500)))

	// Descriptions are kept verbatim and artifact cells become zero.
	assert.Equal(t, "  Padded desc ", txns[2].Description)
	assert.True(t, txns[2].Amount.IsZero())

	// Short rows read as blank cells.
	assert.Equal(t, "", txns[3].Description)
	assert.Equal(t, date(2024, 3, 9), txns[3].Date)

	var dropped int
	for _, e := range hook.AllEntries() {
		if e.Message == "Dropping row without a valid date" {
			dropped++
		}
	}
	assert.Equal(t, 2, dropped)
}

func TestParseBankMissingColumn(t *testing.T) {
	p, _ := testParser(t)
	header := []string{"תאריך", "תיאור התנועה", "₪ זכות/חובה"}
	_, err := p.ParseBank(context.Background(), "bank.csv", statement(7, header))
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrUnrecognizedLayout))
	var le *LayoutError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "₪ זכות/חובה ", le.Column)
	assert.Equal(t, Bank, le.Source)
	assert.Equal(t, 8, le.HeaderRow)
	assert.Equal(t, `unrecognized bank statement layout in bank.csv: missing column "₪ זכות/חובה " (header row 8)`, err.Error())

	// A table too short to hold a header misses every column.
	_, err = p.ParseBank(context.Background(), "", Table{{"x"}})
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "תאריך", le.Column)
	assert.Contains(t, err.Error(), "in input")
}

func TestParseCredit(t *testing.T) {
	p, _ := testParser(t)
	table := statement(8, creditHeader,
		[]string{"28/02/2024", "Supermarket XYZ", "120 ₪", "10/03/2024", "120"},
		[]string{"15/03/2024", "Hotel Paris", "50 EUR", "10/04/2024", "50 EUR"},
		[]string{"16/03/2024", "Pending abroad", "€ 20", "", ""},
		[]string{"17/03/2024", "Refund", "", "10/04/2024", "-35.5"},
		[]string{"סה\"כ", "", "", "", "1,234"},
	)

	txns, err := p.ParseCredit(context.Background(), "credit.csv", table)
	require.NoError(t, err)
	require.Len(t, txns, 4)

	super := txns[0]
	assert.Equal(t, Credit, super.Source)
	assert.Equal(t, date(2024, 2, 28), super.Date)
	assert.Equal(t, date(2024, 3, 10), super.BillingDate)
	assert.Equal(t, Month{2024, time.March}, super.Month())
	assert.True(t, super.AmountLocal.Equal(decimal.NewFromInt(120)))
	assert.True(t, super.IsExpense())
	assert.Equal(t, 10, super.Row)

	hotel := txns[1]
	assert.Equal(t, "EUR", hotel.Currency)
	assert.True(t, hotel.Amount.Equal(decimal.NewFromInt(50)))
	assert.True(t, hotel.AmountLocal.Equal(decimal.NewFromInt(200)))
	assert.True(t, hotel.ExchangeRate.Equal(decimal.RequireFromString("4.0")))
	assert.Equal(t, fx.Fallback, hotel.RateSource)

	pending := txns[2]
	assert.True(t, pending.BillingDate.IsZero())
	assert.Equal(t, "EUR", pending.Currency)
	assert.True(t, pending.AmountLocal.Equal(decimal.NewFromInt(80)))

	refund := txns[3]
	assert.True(t, refund.Amount.Equal(decimal.RequireFromString("-35.5")))
	assert.False(t, refund.IsExpense())
}

func TestParseCreditOptionalColumns(t *testing.T) {
	p, _ := testParser(t)
	header := []string{"תאריך עסקה", "בית עסק", "סכום החיוב"}
	txns, err := p.ParseCredit(context.Background(), "credit.csv", statement(8, header,
		[]string{"01/03/2024", "Cafe", "18"},
	))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.True(t, txns[0].BillingDate.IsZero())

	_, err = p.ParseCredit(context.Background(), "credit.csv", statement(8, []string{"תאריך עסקה", "סכום החיוב"}))
	var le *LayoutError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "בית עסק", le.Column)
	assert.Equal(t, 9, le.HeaderRow)
	assert.Contains(t, err.Error(), "credit card statement")
}

func TestParseCreditForeignCurrencyColumn(t *testing.T) {
	p, _ := testParser(t)
	p.Credit.ForeignCurrencyColumn = "מטבע מקור"
	header := []string{"תאריך עסקה", "בית עסק", "סכום עסקה מקורי", "מטבע מקור", "סכום החיוב"}
	txns, err := p.ParseCredit(context.Background(), "credit.csv", statement(8, header,
		[]string{"15/03/2024", "Amazon", "25", "usd", ""},
		[]string{"16/03/2024", "Hotel Paris", "€ 20", "USD", ""},
		[]string{"17/03/2024", "Gift shop", "30", "$", "0"},
		[]string{"18/03/2024", "Unknown", "10", "??", ""},
	))
	require.NoError(t, err)
	require.Len(t, txns, 4)

	assert.Equal(t, "USD", txns[0].Currency)
	assert.True(t, txns[0].AmountLocal.Equal(decimal.RequireFromString("92.5")))
	// A token in the amount cell wins over the column.
	assert.Equal(t, "EUR", txns[1].Currency)
	assert.Equal(t, "USD", txns[2].Currency)
	assert.Equal(t, "ILS", txns[3].Currency)
	assert.True(t, txns[3].AmountLocal.Equal(decimal.NewFromInt(10)))
}

func TestParseCustomLayout(t *testing.T) {
	p, _ := testParser(t)
	p.Bank = BankLayout{DateColumn: "Date", DescriptionColumn: "Payee", AmountColumn: "Amount", DateFormats: []string{"2006-01-02"}}

	txns, err := ParseBank(context.Background(), "x.csv", statement(0, []string{"Amount", "Payee", "Date"},
		[]string{"-10", "Shop", "2024-03-01"},
	), "ILS")
	// The package level helper uses the default layout.
	require.Error(t, err)
	assert.Nil(t, txns)

	txns, err = p.ParseBank(context.Background(), "x.csv", statement(0, []string{"Amount", "Payee", "Date"},
		[]string{"-10", "Shop", "2024-03-01"},
		[]string{"-10", "Shop", "01/03/2024"},
	))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, 2, txns[0].Row)
}
