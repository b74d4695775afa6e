package rules

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// FileStore keeps the rules as one JSON document.
type FileStore struct {
	Path string
	Log  *logrus.Logger
}

func NewFileStore(path string, log *logrus.Logger) *FileStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &FileStore{Path: path, Log: log}
}

func (s *FileStore) Load() (*Rules, Origin) {
	log := s.Log.WithField("path", s.Path)
	data, err := os.ReadFile(s.Path)
	if os.IsNotExist(err) {
		log.Info("No saved rules found, starting with defaults")
		return New(), OriginFirstRun
	}
	if err != nil {
		log.WithError(err).Warn("Unable to read rules, using defaults")
		return New(), OriginRecovered
	}
	r, upgraded, err := decode(data)
	if err != nil {
		log.WithError(err).Warn("Saved rules are corrupt, using defaults")
		return New(), OriginRecovered
	}
	if upgraded {
		log.Info("Upgraded rules from an older schema")
	}
	return r, OriginPersisted
}

// Save writes to a temporary file in the same directory and renames it over
// the old record, so a crash never leaves a partial file behind.
func (s *FileStore) Save(r *Rules) error {
	if r == nil {
		r = New()
	}
	data, err := Encode(r)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrapf(err, "creating rules directory %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.Path)+".*")
	if err != nil {
		return errors.Wrap(err, "creating temporary rules file")
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", tmp.Name())
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "syncing %s", tmp.Name())
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrapf(err, "closing %s", tmp.Name())
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return errors.Wrapf(err, "chmod %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), s.Path); err != nil {
		return errors.Wrapf(err, "replacing %s", s.Path)
	}
	s.Log.WithFields(logrus.Fields{"path": s.Path, "income": len(r.ApprovedIncome),
		"expenses": len(r.ApprovedExpenses), "categories": len(r.CreditCategories)}).Info("Saved rules")
	return nil
}

func (s *FileStore) Reset() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "removing %s", s.Path)
	}
	s.Log.WithField("path", s.Path).Info("Rules reset")
	return nil
}

// Encode returns the JSON form of the rules.
func Encode(r *Rules) ([]byte, error) {
	data, err := json.MarshalIndent(toRecord(r), "", "  ")
	return data, errors.Wrap(err, "encoding rules")
}

// Decode parses rules written by any schema version.
func Decode(data []byte) (*Rules, error) {
	r, _, err := decode(data)
	return r, err
}

func decode(data []byte) (*Rules, bool, error) {
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, false, errors.Wrap(err, "decoding rules")
	}
	r, upgraded := fromRecord(rec)
	return r, upgraded, nil
}

// Export writes the JSON form of the rules to w.
func Export(w io.Writer, r *Rules) error {
	data, err := Encode(r)
	if err != nil {
		return err
	}
	_, err = w.Write(append(data, '\n'))
	return errors.Wrap(err, "writing rules")
}
