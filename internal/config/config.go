// Package config loads the settings file, merges it over the defaults and
// applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"dario.cat/mergo"
	"github.com/caarlos0/env/v6"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	yaml "gopkg.in/yaml.v2"

	"into-cashflow/internal/categorize"
	"into-cashflow/internal/fx"
	"into-cashflow/internal/ledger"
)

const (
	FileName      = "config.yaml"
	DefaultModel  = "claude-sonnet-4-5-20250929"
	BackendFile   = "file"
	BackendBolt   = "bolt"
	rulesFileName = "rules.json"
	dbFileName    = "cashflow.db"
)

type Config struct {
	LocalCurrency      string              `yaml:"local_currency" env:"LOCAL_CURRENCY"`
	LogLevel           string              `yaml:"log_level" env:"INTO_CASHFLOW_LOG_LEVEL"`
	Bank               ledger.BankLayout   `yaml:"bank"`
	Credit             ledger.CreditLayout `yaml:"credit"`
	SettlementKeywords []string            `yaml:"settlement_keywords"`
	Categories         categorize.Table    `yaml:"categories"`
	Currency           Currency            `yaml:"currency"`
	FX                 FX                  `yaml:"fx"`
	Rules              Rules               `yaml:"rules"`
	AI                 AI                  `yaml:"ai"`
}

type Currency struct {
	Symbols []ledger.Symbol `yaml:"symbols"`
}

type FX struct {
	APIURL       string            `yaml:"api_url" env:"FX_API_URL"`
	Offline      bool              `yaml:"offline" env:"FX_OFFLINE"`
	Timeout      time.Duration     `yaml:"timeout" env:"FX_TIMEOUT"`
	Fallback     map[string]string `yaml:"fallback"`
	RateTable    string            `yaml:"rate_table"`
	DisableCache bool              `yaml:"disable_cache"`
	CachePath    string            `yaml:"cache_path"`
}

type Rules struct {
	Backend string `yaml:"backend" env:"INTO_CASHFLOW_RULES_BACKEND"`
	Path    string `yaml:"path" env:"INTO_CASHFLOW_RULES"`
}

type AI struct {
	Enabled bool   `yaml:"enabled"`
	APIKey  string `yaml:"api_key" env:"ANTHROPIC_API_KEY"`
	Model   string `yaml:"model"`
}

func Default() Config {
	return Config{
		LocalCurrency:      "ILS",
		LogLevel:           "info",
		Bank:               ledger.DefaultBankLayout(),
		Credit:             ledger.DefaultCreditLayout(),
		SettlementKeywords: append([]string(nil), ledger.DefaultSettlementKeywords...),
		Categories:         categorize.DefaultTable(),
		Currency:           Currency{Symbols: ledger.DefaultSymbols()},
		FX: FX{
			APIURL:   fx.DefaultEndpoint,
			Timeout:  5 * time.Second,
			Fallback: map[string]string{"USD": "3.7", "EUR": "4.0", "GBP": "4.7"},
		},
		Rules: Rules{Backend: BackendFile},
		AI:    AI{Model: DefaultModel},
	}
}

// Load reads <dir>/config.yaml. A missing file is not an error. Values set
// in the file win over the defaults, and environment variables win over both.
// Relative paths are resolved against dir.
func Load(dir string) (*Config, error) {
	var c Config
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, errors.Wrapf(err, "reading %s", path)
	default:
		if err := yaml.Unmarshal(data, &c); err != nil {
			return nil, errors.Wrapf(err, "unable to parse yaml config at %s", path)
		}
	}

	if err := mergo.Merge(&c, Default()); err != nil {
		return nil, errors.Wrap(err, "merging default config")
	}
	if err := env.Parse(&c); err != nil {
		return nil, errors.Wrap(err, "reading config from environment")
	}
	c.LocalCurrency = strings.ToUpper(strings.TrimSpace(c.LocalCurrency))
	c.resolvePaths(dir)
	return &c, c.Validate()
}

func (c *Config) resolvePaths(dir string) {
	abs := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if c.Rules.Path == "" {
		c.Rules.Path = rulesFileName
		if c.Rules.Backend == BackendBolt {
			c.Rules.Path = dbFileName
		}
	}
	if c.FX.CachePath == "" {
		c.FX.CachePath = dbFileName
	}
	c.Rules.Path = abs(c.Rules.Path)
	c.FX.CachePath = abs(c.FX.CachePath)
	c.FX.RateTable = abs(c.FX.RateTable)
}

// FallbackRates parses the configured fallback table.
func (c *Config) FallbackRates() (map[string]decimal.Decimal, error) {
	out := make(map[string]decimal.Decimal, len(c.FX.Fallback))
	for cur, s := range c.FX.Fallback {
		r, err := decimal.NewFromString(strings.TrimSpace(s))
		if err != nil {
			return nil, errors.Wrapf(err, "fallback rate for %s", cur)
		}
		if !r.IsPositive() {
			return nil, errors.Errorf("fallback rate for %s must be positive, got %s", cur, s)
		}
		out[strings.ToUpper(cur)] = r
	}
	return out, nil
}

// Validate reports every problem found, not just the first.
func (c *Config) Validate() error {
	var problems []string

	if len(c.LocalCurrency) != 3 {
		problems = append(problems, fmt.Sprintf("invalid local currency %q: must be a 3 letter code", c.LocalCurrency))
	}
	if c.Rules.Backend != BackendFile && c.Rules.Backend != BackendBolt {
		problems = append(problems, fmt.Sprintf("invalid rules backend %q: must be one of [%s %s]", c.Rules.Backend, BackendFile, BackendBolt))
	}
	if c.FX.Timeout <= 0 {
		problems = append(problems, fmt.Sprintf("invalid fx timeout %v: must be positive", c.FX.Timeout))
	}
	if _, err := c.FallbackRates(); err != nil {
		problems = append(problems, err.Error())
	}

	for _, col := range []struct{ key, value string }{
		{"bank.date_column", c.Bank.DateColumn},
		{"bank.description_column", c.Bank.DescriptionColumn},
		{"bank.amount_column", c.Bank.AmountColumn},
		{"credit.date_column", c.Credit.DateColumn},
		{"credit.description_column", c.Credit.DescriptionColumn},
		{"credit.amount_column", c.Credit.AmountColumn},
	} {
		if col.value == "" {
			problems = append(problems, fmt.Sprintf("%s cannot be empty", col.key))
		}
	}
	if c.Bank.SkipRows < 0 || c.Credit.SkipRows < 0 {
		problems = append(problems, "skip_rows cannot be negative")
	}

	for i, r := range c.Categories {
		if strings.TrimSpace(r.Category) == "" {
			problems = append(problems, fmt.Sprintf("categories[%d] has no name", i))
		}
	}
	for i, s := range c.Currency.Symbols {
		if s.Token == "" || s.Currency == "" {
			problems = append(problems, fmt.Sprintf("currency.symbols[%d] needs both token and currency", i))
		}
	}

	if len(problems) > 0 {
		return errors.Errorf("invalid configuration: %s", strings.Join(problems, "; "))
	}
	return nil
}
