package fx

import (
	"context"
	"strings"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var ratesBucket = []byte("rates")

// BoltCache memoizes the rates of another source in a bolt bucket, so that a
// rate fetched once is never fetched again. Historical rates do not change.
type BoltCache struct {
	db   *bolt.DB
	next RateSource
	Log  *logrus.Logger
}

func NewBoltCache(db *bolt.DB, next RateSource) (*BoltCache, error) {
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(ratesBucket)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "creating rates bucket")
	}
	return &BoltCache{db: db, next: next, Log: logrus.StandardLogger()}, nil
}

func cacheKey(currency string, on time.Time) []byte {
	return []byte(strings.ToUpper(currency) + "/" + on.Format("2006-01-02"))
}

func (c *BoltCache) Rate(ctx context.Context, currency string, on time.Time) (decimal.Decimal, error) {
	key := cacheKey(currency, on)
	var cached []byte
	if err := c.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(ratesBucket).Get(key); v != nil {
			cached = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		return decimal.Zero, errors.Wrap(err, "reading rate cache")
	}
	if cached != nil {
		if rate, err := decimal.NewFromString(string(cached)); err == nil {
			return rate, nil
		}
	}

	rate, err := c.next.Rate(ctx, currency, on)
	if err != nil {
		return decimal.Zero, err
	}
	// A rate that cannot be cached is still good for this run.
	if err := c.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(ratesBucket).Put(key, []byte(rate.String()))
	}); err != nil {
		c.Log.WithError(err).WithField("currency", currency).Warn("Unable to cache rate")
	}
	return rate, nil
}
