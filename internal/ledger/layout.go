package ledger

import (
	"strings"
	"time"
)

// DefaultDateFormats are tried in order. Statements write dates day first.
var DefaultDateFormats = []string{
	"02/01/2006", "2/1/2006", "02/01/06", "2/1/06",
	"02-01-2006", "02.01.2006", "2.1.2006",
	"2006-01-02", "2006-01-02 15:04:05", time.RFC3339,
}

// BankLayout describes a bank account statement export. Column titles are
// matched exactly, including any trailing whitespace the bank emits.
type BankLayout struct {
	SkipRows          int      `yaml:"skip_rows"`
	DateColumn        string   `yaml:"date_column"`
	DescriptionColumn string   `yaml:"description_column"`
	AmountColumn      string   `yaml:"amount_column"`
	DateFormats       []string `yaml:"date_formats"`
}

// CreditLayout describes a credit-card statement export. BillingDateColumn,
// ForeignAmountColumn and ForeignCurrencyColumn are optional: when they are
// configured but absent from the file, they are ignored.
type CreditLayout struct {
	SkipRows              int      `yaml:"skip_rows"`
	DateColumn            string   `yaml:"date_column"`
	BillingDateColumn     string   `yaml:"billing_date_column"`
	DescriptionColumn     string   `yaml:"description_column"`
	AmountColumn          string   `yaml:"amount_column"`
	ForeignAmountColumn   string   `yaml:"foreign_amount_column"`
	ForeignCurrencyColumn string   `yaml:"foreign_currency_column"` // read when the foreign amount has no currency token
	DateFormats           []string `yaml:"date_formats"`
}

// DefaultBankLayout matches the checking-account CSV export: seven metadata
// rows before the header.
func DefaultBankLayout() BankLayout {
	return BankLayout{
		SkipRows:          7,
		DateColumn:        "תאריך",
		DescriptionColumn: "תיאור התנועה",
		AmountColumn:      "₪ זכות/חובה ",
		DateFormats:       DefaultDateFormats,
	}
}

// DefaultCreditLayout matches the card-issuer CSV export: eight metadata rows
// before the header.
func DefaultCreditLayout() CreditLayout {
	return CreditLayout{
		SkipRows:            8,
		DateColumn:          "תאריך עסקה",
		BillingDateColumn:   "תאריך חיוב",
		DescriptionColumn:   "בית עסק",
		AmountColumn:        "סכום החיוב",
		ForeignAmountColumn: "סכום עסקה מקורי",
		DateFormats:         DefaultDateFormats,
	}
}

func (l BankLayout) titles() []string {
	return []string{l.DateColumn, l.DescriptionColumn, l.AmountColumn}
}

func (l CreditLayout) titles() []string {
	return []string{l.DateColumn, l.BillingDateColumn, l.DescriptionColumn, l.AmountColumn, l.ForeignAmountColumn, l.ForeignCurrencyColumn}
}

// parseDate tries each format in turn and returns a UTC midnight date.
func parseDate(col string, formats []string) (time.Time, bool) {
	col = strings.TrimSpace(col)
	if col == "" {
		return time.Time{}, false
	}
	if len(formats) == 0 {
		formats = DefaultDateFormats
	}
	for _, f := range formats {
		if tm, err := time.Parse(f, col); err == nil {
			y, m, d := tm.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}
