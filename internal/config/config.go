// Package config loads and validates the server's TOML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// BrokerKind identifies which adapter family an account config binds to.
type BrokerKind string

const (
	BrokerSocket BrokerKind = "socket" // Broker B: async socket-protocol adapter
	BrokerHTTP   BrokerKind = "http"   // Broker A: HTTP + gRPC trade-events adapter
)

// Config is the full parsed contents of janus.toml.
type Config struct {
	Accounts []AccountConfig `mapstructure:"accounts"`
	Global   GlobalConfig    `mapstructure:"global"`
}

// AccountConfig describes one broker connection the server manages.
type AccountConfig struct {
	Alias           string            `mapstructure:"alias"`
	Broker          BrokerKind        `mapstructure:"broker"`
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port"`
	Credentials     map[string]string `mapstructure:"credentials"`
	AllowShort      bool              `mapstructure:"allow_short"`
	LocateRequired  bool              `mapstructure:"locate_required"`
	TradeEvents     TradeEventsConfig `mapstructure:"trade_events"`
}

// TradeEventsConfig configures the gRPC trade-events stream an HTTP-family
// account uses in place of the socket protocol's push callbacks.
type TradeEventsConfig struct {
	Enable   bool   `mapstructure:"enable"`
	Host     string `mapstructure:"host"`
	RegionID string `mapstructure:"region_id"`
}

// MarketDataConfig controls what the server subscribes to on startup.
type MarketDataConfig struct {
	DefaultSymbols []string `mapstructure:"default_symbols"`
	UseRTH         bool     `mapstructure:"use_rth"`
}

// ReconnectConfig controls gateway reconnect backoff.
type ReconnectConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
}

// GlobalConfig holds settings that apply across all accounts.
type GlobalConfig struct {
	MarketData         MarketDataConfig `mapstructure:"market_data"`
	Reconnect          ReconnectConfig  `mapstructure:"reconnect"`
	RefreshDebounceMs  int              `mapstructure:"refresh_debounce_ms"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/janus"
	}
	return filepath.Join(home, ".config", "janus")
}

// Load reads janus.toml from configDir, creating a template on first run.
// If configDir is empty, the default configuration directory is used.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	cfg := &Config{}

	v := viper.New()
	v.SetConfigName("janus")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)
	v.SetDefault("global.market_data.use_rth", true)
	v.SetDefault("global.reconnect.interval_seconds", 5)
	v.SetDefault("global.refresh_debounce_ms", 250)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			if werr := createTemplateConfig(configDir); werr != nil {
				return nil, fmt.Errorf("creating template config: %w", werr)
			}
			return nil, fmt.Errorf("config file not found, created template at %s", filepath.Join(configDir, "janus.toml"))
		}
		return nil, fmt.Errorf("reading janus.toml: %w", err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing janus.toml: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JANUS_REFRESH_DEBOUNCE_MS"); v != "" {
		var ms int
		if _, err := fmt.Sscanf(v, "%d", &ms); err == nil {
			cfg.Global.RefreshDebounceMs = ms
		}
	}
}

// Validate checks structural constraints that do not require a live
// registry or gateway connection.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Accounts))
	for _, acct := range c.Accounts {
		if acct.Alias == "" {
			return fmt.Errorf("account config missing alias")
		}
		if seen[acct.Alias] {
			return fmt.Errorf("duplicate account alias %q", acct.Alias)
		}
		seen[acct.Alias] = true

		switch acct.Broker {
		case BrokerSocket, BrokerHTTP:
		default:
			return fmt.Errorf("account %q: unknown broker kind %q", acct.Alias, acct.Broker)
		}

		if acct.Broker == BrokerHTTP && acct.TradeEvents.Enable && acct.TradeEvents.Host == "" {
			return fmt.Errorf("account %q: trade_events.enable requires trade_events.host", acct.Alias)
		}
	}

	if c.Global.Reconnect.IntervalSeconds <= 0 {
		return fmt.Errorf("global.reconnect.interval_seconds must be positive")
	}

	return nil
}

// Account looks up an account config by alias.
func (c *Config) Account(alias string) (AccountConfig, bool) {
	for _, acct := range c.Accounts {
		if acct.Alias == alias {
			return acct, true
		}
	}
	return AccountConfig{}, false
}
