package fx

import (
	"context"
	"encoding/csv"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

type datedRate struct {
	on   time.Time
	rate decimal.Decimal
}

// Table is an in-memory, date-indexed rate table. A lookup returns the most
// recent rate on or before the requested day, as long as it is no older than
// MaxAge.
type Table struct {
	MaxAge time.Duration
	rates  map[string][]datedRate // sorted by date
}

func NewTable() *Table {
	return &Table{MaxAge: 7 * 24 * time.Hour, rates: make(map[string][]datedRate)}
}

// Add records the rate of currency on the given day.
func (t *Table) Add(currency string, on time.Time, rate decimal.Decimal) {
	currency = strings.ToUpper(currency)
	day := time.Date(on.Year(), on.Month(), on.Day(), 0, 0, 0, 0, time.UTC)
	list := t.rates[currency]
	i := sort.Search(len(list), func(i int) bool { return !list[i].on.Before(day) })
	if i < len(list) && list[i].on.Equal(day) {
		list[i].rate = rate
		return
	}
	list = append(list, datedRate{})
	copy(list[i+1:], list[i:])
	list[i] = datedRate{on: day, rate: rate}
	t.rates[currency] = list
}

func (t *Table) Rate(_ context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	list := t.rates[strings.ToUpper(currency)]
	day := time.Date(on.Year(), on.Month(), on.Day(), 0, 0, 0, 0, time.UTC)
	i := sort.Search(len(list), func(i int) bool { return list[i].on.After(day) })
	if i == 0 {
		return decimal.Zero, errors.Wrapf(ErrNoRate, "%s on %s", currency, day.Format("2006-01-02"))
	}
	r := list[i-1]
	if t.MaxAge > 0 && day.Sub(r.on) > t.MaxAge {
		return decimal.Zero, errors.Wrapf(ErrNoRate, "%s on %s: latest rate is from %s",
			currency, day.Format("2006-01-02"), r.on.Format("2006-01-02"))
	}
	return r.rate, nil
}

// LoadTable reads a rate table in CSV form with the columns
// date (2006-01-02), currency and rate. A header row is skipped.
func LoadTable(r io.Reader) (*Table, error) {
	t := NewTable()
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 3
	cr.TrimLeadingSpace = true
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "rate table line %d", line)
		}
		on, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			if line == 1 {
				continue // header
			}
			return nil, errors.Wrapf(err, "rate table line %d", line)
		}
		rate, err := decimal.NewFromString(rec[2])
		if err != nil {
			return nil, errors.Wrapf(err, "rate table line %d", line)
		}
		t.Add(rec[1], on, rate)
	}
	return t, nil
}
