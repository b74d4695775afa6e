package main

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/boltdb/bolt"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/config"
	"into-cashflow/internal/fx"
	"into-cashflow/internal/ledger"
	"into-cashflow/internal/pipeline"
	"into-cashflow/internal/rules"
)

// app wires the engine from the configuration. It owns the bolt database,
// shared by the rate cache and the bolt rule store.
type app struct {
	cfg    *config.Config
	log    *logrus.Logger
	db     *bolt.DB
	store  rules.Store
	engine *pipeline.Engine
	now    func() time.Time
}

func loadApp() (*app, error) {
	cfg, err := config.Load(*configDir)
	if err != nil {
		return nil, err
	}
	return newApp(cfg, newLogger(cfg.LogLevel))
}

func newApp(cfg *config.Config, log *logrus.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log, now: time.Now}

	needDB := cfg.Rules.Backend == config.BackendBolt || (!cfg.FX.Offline && !cfg.FX.DisableCache)
	if needDB {
		path := cfg.FX.CachePath
		if cfg.Rules.Backend == config.BackendBolt {
			path = cfg.Rules.Path
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, errors.Wrapf(err, "creating %s", filepath.Dir(path))
		}
		db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
		if err != nil {
			return nil, errors.Wrapf(err, "opening database %s", path)
		}
		a.db = db
	}

	if cfg.Rules.Backend == config.BackendBolt {
		s, err := rules.NewBoltStore(a.db, log)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = s
	} else {
		a.store = rules.NewFileStore(cfg.Rules.Path, log)
	}

	norm, err := a.normalizer()
	if err != nil {
		a.close()
		return nil, err
	}
	p := ledger.NewParser(cfg.LocalCurrency, norm, log)
	p.Bank = cfg.Bank
	p.Credit = cfg.Credit
	p.Amounts = ledger.NewAmountParser(cfg.LocalCurrency, cfg.Currency.Symbols)

	a.engine = pipeline.New(p, ledger.NewDeduplicator(cfg.SettlementKeywords),
		categorize.New(cfg.Categories), log)
	return a, nil
}

// normalizer chains the rate sources: a local rate table first, then the
// historical API behind the bolt cache.
func (a *app) normalizer() (*fx.Normalizer, error) {
	var chain fx.Chain
	if a.cfg.FX.RateTable != "" {
		f, err := os.Open(a.cfg.FX.RateTable)
		if err != nil {
			return nil, errors.Wrap(err, "opening rate table")
		}
		defer f.Close()
		t, err := fx.LoadTable(f)
		if err != nil {
			return nil, errors.Wrapf(err, "loading rate table %s", a.cfg.FX.RateTable)
		}
		chain = append(chain, t)
	}
	if !a.cfg.FX.Offline {
		var src fx.RateSource = fx.NewHTTPSource(a.cfg.FX.APIURL, a.cfg.LocalCurrency)
		if a.db != nil && !a.cfg.FX.DisableCache {
			c, err := fx.NewBoltCache(a.db, src)
			if err != nil {
				return nil, err
			}
			c.Log = a.log
			src = c
		}
		chain = append(chain, src)
	}

	var rates fx.RateSource
	if len(chain) > 0 {
		rates = chain
	}
	n := fx.NewNormalizer(a.cfg.LocalCurrency, rates, a.log)
	n.Timeout = a.cfg.FX.Timeout
	fallback, err := a.cfg.FallbackRates()
	if err != nil {
		return nil, err
	}
	n.Fallback = fallback
	return n, nil
}

func (a *app) close() {
	if a.db != nil {
		a.db.Close()
	}
}

// run reads both statements and reconciles them. An empty path skips that
// statement.
func (a *app) run(ctx context.Context, bankPath, creditPath string, rl *rules.Rules) (*pipeline.Result, error) {
	var in pipeline.Input
	if bankPath != "" {
		t, err := ledger.ReadFile(bankPath)
		if err != nil {
			return nil, err
		}
		in.Bank, in.BankName = t, bankPath
	}
	if creditPath != "" {
		t, err := ledger.ReadFile(creditPath)
		if err != nil {
			return nil, err
		}
		in.Credit, in.CreditName = t, creditPath
	}
	return a.engine.Run(ctx, in, rl, a.now())
}

func (a *app) categorizer() *categorize.Engine { return a.engine.Categorizer }
