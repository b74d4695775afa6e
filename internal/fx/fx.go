// Package fx converts foreign-currency amounts to the local currency.
//
// A Normalizer asks a historical RateSource for the rate of the transaction
// day and falls back to a static table of approximate rates when the lookup
// fails for any reason. A conversion never fails.
package fx

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// Source records where the rate of a conversion came from.
type Source string

const (
	Identity   Source = "identity"
	Historical Source = "historical"
	Fallback   Source = "fallback"
)

// ErrNoRate is returned by rate sources that have no rate for the request.
var ErrNoRate = errors.New("no exchange rate")

// RateSource returns how many local-currency units one unit of currency was
// worth on the given day.
type RateSource interface {
	Rate(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error)
}

// Conversion is the outcome of normalizing one amount.
type Conversion struct {
	Local  decimal.Decimal
	Rate   decimal.Decimal
	Source Source
}

var one = decimal.NewFromInt(1)

// DefaultFallback holds approximate ILS rates. They drift and are only used
// when no historical rate is available.
func DefaultFallback() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"USD": decimal.RequireFromString("3.7"),
		"EUR": decimal.RequireFromString("4.0"),
		"GBP": decimal.RequireFromString("4.7"),
	}
}

// Normalizer converts amounts into Local currency.
type Normalizer struct {
	Local    string
	Rates    RateSource // optional
	Fallback map[string]decimal.Decimal
	Timeout  time.Duration // bound on a single historical lookup
	Log      *logrus.Logger
}

// NewNormalizer returns a normalizer with the default fallback table.
func NewNormalizer(local string, rates RateSource, log *logrus.Logger) *Normalizer {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Normalizer{
		Local:    strings.ToUpper(local),
		Rates:    rates,
		Fallback: DefaultFallback(),
		Timeout:  5 * time.Second,
		Log:      log,
	}
}

// Normalize converts amount, expressed in currency, to the local currency
// using the rate of the given day.
func (n *Normalizer) Normalize(ctx context.Context, amount decimal.Decimal, currency string, on time.Time) Conversion {
	currency = strings.ToUpper(currency)
	if amount.IsZero() {
		return Conversion{Local: decimal.Zero, Rate: one, Source: Identity}
	}
	if currency == "" || currency == n.Local {
		return Conversion{Local: amount, Rate: one, Source: Identity}
	}

	if n.Rates != nil {
		rate, err := n.lookup(ctx, currency, on)
		if err == nil {
			return Conversion{Local: amount.Mul(rate).Round(2), Rate: rate, Source: Historical}
		}
		n.Log.WithFields(logrus.Fields{
			"currency": currency,
			"date":     on.Format("2006-01-02"),
			"error":    err,
		}).Debug("historical rate unavailable, using fallback")
	}

	rate, ok := n.Fallback[currency]
	if !ok {
		n.Log.WithField("currency", currency).Warn("no fallback rate for currency, assuming 1.0")
		rate = one
	}
	return Conversion{Local: amount.Mul(rate).Round(2), Rate: rate, Source: Fallback}
}

func (n *Normalizer) lookup(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	if n.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.Timeout)
		defer cancel()
	}
	rate, err := n.Rates.Rate(ctx, currency, on)
	if err != nil {
		return decimal.Zero, err
	}
	if !rate.IsPositive() {
		return decimal.Zero, errors.Errorf("non-positive rate %s for %s", rate, currency)
	}
	return rate, nil
}

// Chain asks each source in turn and returns the first rate found.
type Chain []RateSource

func (c Chain) Rate(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	var last error = ErrNoRate
	for _, s := range c {
		rate, err := s.Rate(ctx, currency, on)
		if err == nil {
			return rate, nil
		}
		last = err
		if ctx.Err() != nil {
			break
		}
	}
	return decimal.Zero, last
}
