package ledger

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Symbol maps a currency token found in a cell to a currency code.
type Symbol struct {
	Token    string `yaml:"token"`
	Currency string `yaml:"currency"`
}

// DefaultSymbols is checked in order; the first token found in a cell wins.
func DefaultSymbols() []Symbol {
	return []Symbol{
		{"₪", "ILS"}, {`ש"ח`, "ILS"}, {"NIS", "ILS"}, {"ILS", "ILS"},
		{"€", "EUR"}, {"EUR", "EUR"},
		{"£", "GBP"}, {"GBP", "GBP"},
		{"US$", "USD"}, {"$", "USD"}, {"USD", "USD"},
	}
}

// ParsedAmount is the result of reading one amount cell. Defaulted is set
// when the cell could not be read and Amount is a substituted zero.
type ParsedAmount struct {
	Amount    decimal.Decimal
	Currency  string
	Defaulted bool
}

// AmountParser reads amount cells. Artifacts are cell values that are known
// to be repeated column titles rather than amounts.
type AmountParser struct {
	Local     string
	Symbols   []Symbol
	Artifacts map[string]bool
}

func NewAmountParser(local string, symbols []Symbol) *AmountParser {
	if symbols == nil {
		symbols = DefaultSymbols()
	}
	return &AmountParser{Local: strings.ToUpper(local), Symbols: symbols, Artifacts: make(map[string]bool)}
}

func (p *AmountParser) fallback() ParsedAmount {
	return ParsedAmount{Amount: decimal.Zero, Currency: p.Local, Defaulted: true}
}

// Currency returns the currency named by a token in s, or "" if none.
func (p *AmountParser) Currency(s string) string {
	upper := strings.ToUpper(s)
	for _, sym := range p.Symbols {
		if sym.Token != "" && strings.Contains(upper, strings.ToUpper(sym.Token)) {
			return strings.ToUpper(sym.Currency)
		}
	}
	return ""
}

// Parse reads a cell such as "₪ -1,234.50", "50 EUR" or "$12". It never
// fails: blank, artifact and unreadable cells give a defaulted zero in the
// local currency.
func (p *AmountParser) Parse(cell string) ParsedAmount {
	s := strings.TrimSpace(cell)
	if s == "" || p.Artifacts[cell] || p.Artifacts[s] {
		return p.fallback()
	}

	currency := p.Currency(s)
	if currency == "" {
		currency = p.Local
	}

	var b strings.Builder
	var digits, dots int
	negative := false
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
			digits++
		case r == '.':
			b.WriteRune(r)
			dots++
		case r == '-' && digits == 0 && dots == 0:
			negative = true
		}
	}
	if digits == 0 || dots > 1 {
		return p.fallback()
	}
	amount, err := decimal.NewFromString(b.String())
	if err != nil {
		return p.fallback()
	}
	if negative {
		amount = amount.Neg()
	}
	return ParsedAmount{Amount: amount, Currency: currency}
}

// ParseValue reads an amount from an untyped cell value, as produced by
// spreadsheet readers. Numbers are taken to be in the local currency.
func (p *AmountParser) ParseValue(v any) ParsedAmount {
	switch x := v.(type) {
	case nil:
		return p.fallback()
	case string:
		return p.Parse(x)
	case decimal.Decimal:
		return ParsedAmount{Amount: x, Currency: p.Local}
	case float64:
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return p.fallback()
		}
		return ParsedAmount{Amount: decimal.NewFromFloat(x), Currency: p.Local}
	case float32:
		return p.ParseValue(float64(x))
	case int:
		return ParsedAmount{Amount: decimal.NewFromInt(int64(x)), Currency: p.Local}
	case int64:
		return ParsedAmount{Amount: decimal.NewFromInt(x), Currency: p.Local}
	default:
		return p.Parse(fmt.Sprint(x))
	}
}

// ParseAmount reads a cell with the default currency symbols.
func ParseAmount(cell, local string) ParsedAmount {
	return NewAmountParser(local, nil).Parse(cell)
}
