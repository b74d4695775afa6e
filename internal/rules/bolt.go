package rules

import (
	"bytes"
	"encoding/gob"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	bucketName = []byte("rules")
	recordKey  = []byte("record")
)

// BoltStore keeps the rules as a single gob encoded value in a bolt bucket.
// A save is one bolt transaction, so it is atomic.
type BoltStore struct {
	db  *bolt.DB
	Log *logrus.Logger
}

func NewBoltStore(db *bolt.DB, log *logrus.Logger) (*BoltStore, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "creating rules bucket")
	}
	return &BoltStore{db: db, Log: log}, nil
}

func (s *BoltStore) Load() (*Rules, Origin) {
	var val []byte
	if err := s.db.View(func(tx *bolt.Tx) error {
		if v := tx.Bucket(bucketName).Get(recordKey); v != nil {
			val = append([]byte(nil), v...)
		}
		return nil
	}); err != nil {
		s.Log.WithError(err).Warn("Unable to read rules, using defaults")
		return New(), OriginRecovered
	}
	if val == nil {
		s.Log.Info("No saved rules found, starting with defaults")
		return New(), OriginFirstRun
	}

	var rec record
	if err := gob.NewDecoder(bytes.NewBuffer(val)).Decode(&rec); err != nil {
		s.Log.WithError(err).Warn("Saved rules are corrupt, using defaults")
		return New(), OriginRecovered
	}
	r, _ := fromRecord(rec)
	return r, OriginPersisted
}

func (s *BoltStore) Save(r *Rules) error {
	if r == nil {
		r = New()
	}
	var val bytes.Buffer
	if err := gob.NewEncoder(&val).Encode(toRecord(r)); err != nil {
		return errors.Wrap(err, "encoding rules")
	}
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Put(recordKey, val.Bytes())
	}); err != nil {
		return errors.Wrap(err, "writing rules")
	}
	s.Log.WithField("categories", len(r.CreditCategories)).Info("Saved rules")
	return nil
}

func (s *BoltStore) Reset() error {
	if err := s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketName).Delete(recordKey)
	}); err != nil {
		return errors.Wrap(err, "removing rules")
	}
	s.Log.Info("Rules reset")
	return nil
}
