// Package config loads ledgerline settings from an optional file and
// LEDGERLINE_* environment variables.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/ledgerline/ledgerline/ledger"
)

// EnvPrefix prefixes every environment variable, e.g. LEDGERLINE_CURRENCY
// or LEDGERLINE_SERVER_PORT.
const EnvPrefix = "LEDGERLINE"

// Settings is the resolved configuration of one run.
type Settings struct {
	Ledger         *ledger.Config
	OpeningBalance decimal.Decimal
	Side           ledger.Side
	Expert         bool
	LogLevel       string
	Server         ServerConfig
}

// ServerConfig configures the web server.
type ServerConfig struct {
	Host           string
	Port           int
	ReadOnly       bool
	Watch          bool
	AllowedOrigins []string
}

// Address returns host:port.
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("currency", ledger.DefaultCurrency)
	v.SetDefault("tolerance", "0")
	v.SetDefault("payment_terms_days", ledger.DefaultPaymentTermDays)
	v.SetDefault("counterparty_terms", []string{})
	v.SetDefault("opening_balance", "0")
	v.SetDefault("side", "client")
	v.SetDefault("expert", false)
	v.SetDefault("log_level", "info")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_only", false)
	v.SetDefault("server.watch", true)
	v.SetDefault("server.allowed_origins", []string{})
	return v
}

// Load reads settings from path (YAML, TOML or JSON, chosen by extension)
// and the environment. An empty path uses defaults and the environment only.
func Load(path string) (*Settings, error) {
	v := newViper()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Settings, error) {
	cfg := ledger.NewConfig()
	cfg.Currency = strings.ToUpper(strings.TrimSpace(v.GetString("currency")))
	cfg.PaymentTermDays = v.GetInt("payment_terms_days")

	tolerance, err := ledger.ParseAmount(v.GetString("tolerance"))
	if err != nil {
		return nil, fmt.Errorf("tolerance: %w", err)
	}
	cfg.Tolerance = tolerance

	for _, entry := range v.GetStringSlice("counterparty_terms") {
		counterparty, days, err := parseTerm(entry)
		if err != nil {
			return nil, fmt.Errorf("counterparty_terms: %w", err)
		}
		cfg.CounterpartyTerms[counterparty] = days
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opening, err := ledger.ParseAmount(v.GetString("opening_balance"))
	if err != nil {
		return nil, fmt.Errorf("opening_balance: %w", err)
	}

	side, err := ledger.ParseSide(v.GetString("side"))
	if err != nil {
		return nil, err
	}

	settings := &Settings{
		Ledger:         cfg,
		OpeningBalance: opening,
		Side:           side,
		Expert:         v.GetBool("expert"),
		LogLevel:       v.GetString("log_level"),
		Server: ServerConfig{
			Host:           v.GetString("server.host"),
			Port:           v.GetInt("server.port"),
			ReadOnly:       v.GetBool("server.read_only"),
			Watch:          v.GetBool("server.watch"),
			AllowedOrigins: v.GetStringSlice("server.allowed_origins"),
		},
	}
	if settings.Server.Port <= 0 || settings.Server.Port > 65535 {
		return nil, fmt.Errorf("server.port %d out of range", settings.Server.Port)
	}
	return settings, nil
}

// parseTerm parses a "COUNTERPARTY=DAYS" entry. Terms are given as a list
// rather than a map because viper lower-cases map keys, and counterparty
// ids are case-sensitive.
func parseTerm(entry string) (string, int, error) {
	counterparty, value, ok := strings.Cut(entry, "=")
	counterparty = strings.TrimSpace(counterparty)
	if !ok || counterparty == "" {
		return "", 0, fmt.Errorf("%q must look like COUNTERPARTY=DAYS", entry)
	}
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return "", 0, fmt.Errorf("%q: days must be a whole number", entry)
	}
	return counterparty, days, nil
}
