// Package config defines all configuration for the market-making engine.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// sensitive fields overridable via PERPQUOTE_* environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure described by spec §6.
type Config struct {
	DryRun         bool                        `mapstructure:"dry_run"`
	QuoteGenerator string                      `mapstructure:"quote_generator"` // "sandbox" | "plain" | "stinky"
	Exchanges      map[string]ExchangeConfig   `mapstructure:"exchanges"`
	Parameters     map[string]ParametersConfig `mapstructure:"parameters"`
	Venue          VenueConfig                 `mapstructure:"venue"`
	Secrets        SecretsConfig               `mapstructure:"secrets"`
	Store          StoreConfig                 `mapstructure:"store"`
	Logging        LoggingConfig               `mapstructure:"logging"`
	Dashboard      DashboardConfig             `mapstructure:"dashboard"`
	Risk           RiskConfig                  `mapstructure:"risk"`
}

// ExchangeConfig is one entry of the `exchanges` map: the symbol this
// engine instance trades (or merely observes) on that venue, and whether
// it participates in order flow or is wired purely for market data.
type ExchangeConfig struct {
	Symbol string `mapstructure:"symbol"`
	Type   string `mapstructure:"type"` // "trading" | "data"
}

// ParametersConfig tunes one quote generator strategy
// (`parameters.sandbox`/`parameters.plain`/`parameters.stinky`).
//
//   - TotalOrders: number of resting orders the QG maintains per side-pair;
//     must be even (spec §4.5's symmetric ladder).
//   - MaxPosition: maximum absolute USD notional inventory before the QG
//     stops adding to the position (spec §4.6).
//   - MinimumSpread: floor spread in basis points around mid.
//   - TakeProfit: basis points of favorable move that triggers a
//     reduce-only take-profit order (spec §4.6).
//   - LiquidationTimer: how long after a position was opened the Position
//     Executor force-closes it.
//   - GenerationInterval: how often the QG recomputes its quote ladder.
type ParametersConfig struct {
	TotalOrders        int           `mapstructure:"total_orders"`
	MaxPosition        float64       `mapstructure:"max_position"`
	MinimumSpread      float64       `mapstructure:"minimum_spread"`
	TakeProfit         float64       `mapstructure:"take_profit"`
	LiquidationTimer   time.Duration `mapstructure:"liquidation_timer"`
	GenerationInterval time.Duration `mapstructure:"generation_interval"`
}

// VenueConfig points the venue client at Hyperliquid's REST/websocket
// endpoints. The signing key itself never lives here — it's decrypted at
// startup via internal/secrets and handed directly to hyperliquid.NewSigner.
type VenueConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	WSURL        string `mapstructure:"ws_url"`
	VaultAddress string `mapstructure:"vault_address"`
}

// SecretsConfig locates the encrypted credentials blob. Password is read
// from the PERPQUOTE_SECRETS_PASSWORD env var, never from the YAML file
// itself — spec §6's "decrypted payload never crosses the core boundary"
// extends to the password that unlocks it.
type SecretsConfig struct {
	Path     string `mapstructure:"path"`
	Password string `mapstructure:"-"`
}

// StoreConfig sets where position/order-state snapshots are persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig controls the structured logger's verbosity and encoding.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the web dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RiskConfig bounds the kill switch that sits above the OMS's own
// per-proposal max_position check: a realized+unrealized daily loss cap
// and a rapid-price-movement breaker. Zero values disable the
// corresponding check rather than triggering it immediately.
type RiskConfig struct {
	MaxDailyLoss        float64       `mapstructure:"max_daily_loss"`
	KillSwitchDropPct   float64       `mapstructure:"kill_switch_drop_pct"`
	KillSwitchWindowSec int           `mapstructure:"kill_switch_window_sec"`
	CooldownAfterKill   time.Duration `mapstructure:"cooldown_after_kill"`
}

// Load reads config from a YAML file with env var overrides.
// Sensitive fields use env vars under the PERPQUOTE_ prefix:
// PERPQUOTE_SECRETS_PASSWORD, PERPQUOTE_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("PERPQUOTE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.Secrets.Password = os.Getenv("PERPQUOTE_SECRETS_PASSWORD")
	if os.Getenv("PERPQUOTE_DRY_RUN") == "true" || os.Getenv("PERPQUOTE_DRY_RUN") == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges. Missing
// max_position/total_orders for the selected quote generator is fatal,
// per spec §6.
func (c *Config) Validate() error {
	switch c.QuoteGenerator {
	case "sandbox", "plain", "stinky":
	default:
		return fmt.Errorf("quote_generator must be one of: sandbox, plain, stinky (got %q)", c.QuoteGenerator)
	}

	params, ok := c.Parameters[c.QuoteGenerator]
	if !ok {
		return fmt.Errorf("parameters.%s is required", c.QuoteGenerator)
	}
	if params.TotalOrders == 0 {
		return fmt.Errorf("parameters.%s.total_orders is required", c.QuoteGenerator)
	}
	if params.TotalOrders%2 != 0 {
		return fmt.Errorf("parameters.%s.total_orders must be even (got %d)", c.QuoteGenerator, params.TotalOrders)
	}
	if params.MaxPosition <= 0 {
		return fmt.Errorf("parameters.%s.max_position is required and must be > 0", c.QuoteGenerator)
	}

	if len(c.Exchanges) == 0 {
		return fmt.Errorf("at least one entry under exchanges is required")
	}
	for name, ex := range c.Exchanges {
		if ex.Symbol == "" {
			return fmt.Errorf("exchanges.%s.symbol is required", name)
		}
		switch ex.Type {
		case "trading", "data":
		default:
			return fmt.Errorf("exchanges.%s.type must be \"trading\" or \"data\" (got %q)", name, ex.Type)
		}
	}

	if c.Venue.BaseURL == "" {
		return fmt.Errorf("venue.base_url is required")
	}
	if c.Venue.WSURL == "" {
		return fmt.Errorf("venue.ws_url is required")
	}
	if !c.DryRun {
		if c.Secrets.Path == "" {
			return fmt.Errorf("secrets.path is required unless dry_run is set")
		}
		if c.Secrets.Password == "" {
			return fmt.Errorf("PERPQUOTE_SECRETS_PASSWORD is required unless dry_run is set")
		}
	}

	return nil
}
