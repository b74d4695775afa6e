package ledger

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"into-cashflow/internal/fx"
)

// Normalizer converts an amount to the local currency.
type Normalizer interface {
	Normalize(ctx context.Context, amount decimal.Decimal, currency string, on time.Time) fx.Conversion
}

// Parser turns raw statement tables into transactions.
type Parser struct {
	Bank    BankLayout
	Credit  CreditLayout
	Amounts *AmountParser
	FX      Normalizer
	Log     *logrus.Logger
}

// NewParser returns a parser for the default statement layouts. A nil
// normalizer converts foreign amounts with the static fallback rates only.
func NewParser(local string, norm Normalizer, log *logrus.Logger) *Parser {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if norm == nil {
		norm = fx.NewNormalizer(local, nil, log)
	}
	return &Parser{
		Bank:    DefaultBankLayout(),
		Credit:  DefaultCreditLayout(),
		Amounts: NewAmountParser(local, nil),
		FX:      norm,
		Log:     log,
	}
}

// ParseBank parses a bank statement with the default layout.
func ParseBank(ctx context.Context, file string, t Table, local string) ([]Transaction, error) {
	return NewParser(local, nil, nil).ParseBank(ctx, file, t)
}

// ParseCredit parses a credit-card statement with the default layout.
func ParseCredit(ctx context.Context, file string, t Table, local string) ([]Transaction, error) {
	return NewParser(local, nil, nil).ParseCredit(ctx, file, t)
}

// header maps the exact column titles of the header row to their index.
type header struct {
	file   string
	source Source
	row    int
	index  map[string]int
}

func readHeader(file string, src Source, t Table, skip int) header {
	h := header{file: file, source: src, row: skip, index: make(map[string]int)}
	if skip < len(t) {
		for i, title := range t[skip] {
			if _, ok := h.index[title]; !ok {
				h.index[title] = i
			}
		}
	}
	return h
}

// require returns the column index of title, or a LayoutError.
func (h header) require(title string) (int, error) {
	if i, ok := h.index[title]; ok {
		return i, nil
	}
	return -1, errors.WithStack(&LayoutError{
		File: h.file, Source: h.source, Column: title, HeaderRow: h.row + 1,
	})
}

// optional returns the column index of title, or -1 if it is absent.
func (h header) optional(title string) int {
	if i, ok := h.index[title]; ok && title != "" {
		return i
	}
	return -1
}

// amounts returns an amount parser that treats every layout title as an
// artifact cell.
func (p *Parser) amounts(titles []string) *AmountParser {
	ap := *p.Amounts
	ap.Artifacts = make(map[string]bool, len(p.Amounts.Artifacts)+len(titles))
	for k := range p.Amounts.Artifacts {
		ap.Artifacts[k] = true
	}
	for _, t := range titles {
		if t != "" {
			ap.Artifacts[t] = true
		}
	}
	return &ap
}

func (p *Parser) convert(ctx context.Context, txn *Transaction) {
	c := p.FX.Normalize(ctx, txn.Amount, txn.Currency, txn.Date)
	txn.AmountLocal = c.Local
	txn.ExchangeRate = c.Rate
	txn.RateSource = c.Source
}

// ParseBank reads date, description and a single signed amount from each
// data row. Rows without a valid date are dropped.
func (p *Parser) ParseBank(ctx context.Context, file string, t Table) ([]Transaction, error) {
	l := p.Bank
	h := readHeader(file, Bank, t, l.SkipRows)
	dateCol, err := h.require(l.DateColumn)
	if err != nil {
		return nil, err
	}
	descCol, err := h.require(l.DescriptionColumn)
	if err != nil {
		return nil, err
	}
	amtCol, err := h.require(l.AmountColumn)
	if err != nil {
		return nil, err
	}

	ap := p.amounts(l.titles())
	log := p.Log.WithFields(logrus.Fields{"file": file, "source": Bank})
	var txns []Transaction
	var dropped int
	for r := l.SkipRows + 1; r < len(t); r++ {
		date, ok := parseDate(t.cell(r, dateCol), l.DateFormats)
		if !ok {
			dropped++
			log.WithField("row", r+1).Debug("Dropping row without a valid date")
			continue
		}
		amt := ap.Parse(t.cell(r, amtCol))
		if amt.Defaulted {
			log.WithFields(logrus.Fields{"row": r + 1, "cell": t.cell(r, amtCol)}).Debug("Unreadable amount, using zero")
		}
		txn := Transaction{
			Date:        date,
			Amount:      amt.Amount,
			Currency:    amt.Currency,
			Description: t.cell(r, descCol),
			Source:      Bank,
			Row:         r + 1,
		}
		p.convert(ctx, &txn)
		txns = append(txns, txn)
	}
	log.WithFields(logrus.Fields{"transactions": len(txns), "dropped": dropped}).Debug("Parsed statement")
	return txns, nil
}

// currencyCode reads a currency cell holding a symbol, a configured token or
// a bare ISO code.
func currencyCode(ap *AmountParser, cell string) string {
	if cur := ap.Currency(cell); cur != "" {
		return cur
	}
	s := strings.ToUpper(strings.TrimSpace(cell))
	if len(s) != 3 {
		return ""
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return ""
		}
	}
	return s
}

// ParseCredit reads transaction date, billing date, merchant and charge
// from each data row. When the charge cell is empty or zero and the raw
// foreign-amount cell holds a value, the foreign amount and its currency are
// used instead. The currency comes from the foreign-amount cell, or else from
// the foreign-currency column. Rows without a valid transaction date are dropped.
func (p *Parser) ParseCredit(ctx context.Context, file string, t Table) ([]Transaction, error) {
	l := p.Credit
	h := readHeader(file, Credit, t, l.SkipRows)
	dateCol, err := h.require(l.DateColumn)
	if err != nil {
		return nil, err
	}
	descCol, err := h.require(l.DescriptionColumn)
	if err != nil {
		return nil, err
	}
	amtCol, err := h.require(l.AmountColumn)
	if err != nil {
		return nil, err
	}
	billCol := h.optional(l.BillingDateColumn)
	foreignCol := h.optional(l.ForeignAmountColumn)
	foreignCurCol := h.optional(l.ForeignCurrencyColumn)

	ap := p.amounts(l.titles())
	log := p.Log.WithFields(logrus.Fields{"file": file, "source": Credit})
	var txns []Transaction
	var dropped int
	for r := l.SkipRows + 1; r < len(t); r++ {
		date, ok := parseDate(t.cell(r, dateCol), l.DateFormats)
		if !ok {
			dropped++
			log.WithField("row", r+1).Debug("Dropping row without a valid date")
			continue
		}
		txn := Transaction{
			Date:        date,
			Description: t.cell(r, descCol),
			Source:      Credit,
			Row:         r + 1,
		}
		if billCol >= 0 {
			if bd, ok := parseDate(t.cell(r, billCol), l.DateFormats); ok {
				txn.BillingDate = bd
			}
		}

		amt := ap.Parse(t.cell(r, amtCol))
		if foreignCol >= 0 && (amt.Defaulted || amt.Amount.IsZero()) {
			if f := ap.Parse(t.cell(r, foreignCol)); !f.Defaulted && !f.Amount.IsZero() {
				if foreignCurCol >= 0 && ap.Currency(t.cell(r, foreignCol)) == "" {
					if cur := currencyCode(ap, t.cell(r, foreignCurCol)); cur != "" {
						f.Currency = cur
					}
				}
				amt = f
			}
		}
		if amt.Defaulted {
			log.WithFields(logrus.Fields{"row": r + 1, "cell": t.cell(r, amtCol)}).Debug("Unreadable amount, using zero")
		}
		txn.Amount = amt.Amount
		txn.Currency = amt.Currency
		p.convert(ctx, &txn)
		txns = append(txns, txn)
	}
	log.WithFields(logrus.Fields{"transactions": len(txns), "dropped": dropped}).Debug("Parsed statement")
	return txns, nil
}
