package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Log        LoggingConfig    `yaml:"log"`
	REST       RESTConfig       `yaml:"rest"`
	WS         WSConfig         `yaml:"ws"`
	State      StateConfig      `yaml:"state"`
	Strategy   StrategyConfig   `yaml:"strategy"`
	Allocation AllocationConfig `yaml:"allocation"`
	History    HistoryConfig    `yaml:"history"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	API        APIConfig        `yaml:"api"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type RESTConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type WSConfig struct {
	URL            string        `yaml:"url"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	PingInterval   time.Duration `yaml:"ping_interval"`
}

type StateConfig struct {
	SQLitePath string `yaml:"sqlite_path"`
}

// InstrumentOverride pins venue-specific metadata that cannot be derived
// from the exchange metadata alone.
type InstrumentOverride struct {
	SpotName    string  `yaml:"spot_name"`
	TickSize    float64 `yaml:"tick_size"`
	IntegerSize bool    `yaml:"integer_size"`
}

type StrategyConfig struct {
	Instruments          []string                      `yaml:"instruments"`
	Overrides            map[string]InstrumentOverride `yaml:"overrides"`
	MinNotionalUSD       float64                       `yaml:"min_notional_usd"`
	MinYearlyFundingPct  float64                       `yaml:"min_yearly_funding_pct"`
	DeltaErrorMargin     float64                       `yaml:"delta_error_margin"`
	BalanceFraction      float64                       `yaml:"balance_fraction"`
	Leverage             int                           `yaml:"leverage"`
	RefreshInterval      time.Duration                 `yaml:"refresh_interval"`
	PendingMaxWait       time.Duration                 `yaml:"pending_max_wait"`
	PendingCheckInterval time.Duration                 `yaml:"pending_check_interval"`
	CloseSettleTimeout   time.Duration                 `yaml:"close_settle_timeout"`
	Autostart            bool                          `yaml:"autostart"`
}

type AllocationConfig struct {
	SpotFraction       float64 `yaml:"spot_fraction"`
	PerpFraction       float64 `yaml:"perp_fraction"`
	RebalanceThreshold float64 `yaml:"rebalance_threshold"`
}

type HistoryConfig struct {
	Enabled         bool          `yaml:"enabled"`
	DSN             string        `yaml:"dsn"`
	Schema          string        `yaml:"schema"`
	QueueSize       int           `yaml:"queue_size"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type TelegramConfig struct {
	Enabled bool   `yaml:"enabled"`
	Token   string `yaml:"token"`
	ChatID  string `yaml:"chat_id"`
}

type APIConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	return &cfg, validate(&cfg)
}

func applyDefaults(cfg *Config) {
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.REST.BaseURL == "" {
		cfg.REST.BaseURL = "https://api.hyperliquid.xyz"
	}
	if cfg.REST.Timeout == 0 {
		cfg.REST.Timeout = 10 * time.Second
	}
	if cfg.WS.URL == "" {
		cfg.WS.URL = "wss://api.hyperliquid.xyz/ws"
	}
	if cfg.WS.ReconnectDelay == 0 {
		cfg.WS.ReconnectDelay = 3 * time.Second
	}
	if cfg.WS.PingInterval == 0 {
		cfg.WS.PingInterval = 30 * time.Second
	}
	if cfg.State.SQLitePath == "" {
		cfg.State.SQLitePath = "data/hl-delta-bot.db"
	}
	if len(cfg.Strategy.Instruments) == 0 {
		cfg.Strategy.Instruments = []string{"BTC", "ETH", "HYPE"}
	}
	if cfg.Strategy.Overrides == nil {
		cfg.Strategy.Overrides = map[string]InstrumentOverride{
			"BTC": {SpotName: "UBTC", TickSize: 1},
			"ETH": {SpotName: "UETH", TickSize: 0.1},
		}
	}
	if cfg.Strategy.MinNotionalUSD == 0 {
		cfg.Strategy.MinNotionalUSD = 10
	}
	if cfg.Strategy.MinYearlyFundingPct == 0 {
		cfg.Strategy.MinYearlyFundingPct = 5
	}
	if cfg.Strategy.DeltaErrorMargin == 0 {
		cfg.Strategy.DeltaErrorMargin = 0.05
	}
	if cfg.Strategy.BalanceFraction == 0 {
		cfg.Strategy.BalanceFraction = 0.9
	}
	if cfg.Strategy.Leverage == 0 {
		cfg.Strategy.Leverage = 1
	}
	if cfg.Strategy.RefreshInterval == 0 {
		cfg.Strategy.RefreshInterval = 30 * time.Second
	}
	if cfg.Strategy.PendingMaxWait == 0 {
		cfg.Strategy.PendingMaxWait = 5 * time.Minute
	}
	if cfg.Strategy.PendingCheckInterval == 0 {
		cfg.Strategy.PendingCheckInterval = 30 * time.Second
	}
	if cfg.Strategy.CloseSettleTimeout == 0 {
		cfg.Strategy.CloseSettleTimeout = 3 * time.Minute
	}
	if cfg.Allocation.SpotFraction == 0 {
		cfg.Allocation.SpotFraction = 0.7
	}
	if cfg.Allocation.PerpFraction == 0 {
		cfg.Allocation.PerpFraction = 0.3
	}
	if cfg.Allocation.RebalanceThreshold == 0 {
		cfg.Allocation.RebalanceThreshold = 0.035
	}
	if cfg.History.Schema == "" {
		cfg.History.Schema = "public"
	}
	if cfg.History.QueueSize == 0 {
		cfg.History.QueueSize = 256
	}
	if cfg.API.ListenAddr == "" {
		cfg.API.ListenAddr = ":8080"
	}
}

func validate(cfg *Config) error {
	if len(cfg.Strategy.Instruments) == 0 {
		return errors.New("strategy.instruments must not be empty")
	}
	seen := make(map[string]struct{}, len(cfg.Strategy.Instruments))
	for _, symbol := range cfg.Strategy.Instruments {
		clean := strings.TrimSpace(symbol)
		if clean == "" {
			return errors.New("strategy.instruments contains an empty symbol")
		}
		if _, dup := seen[clean]; dup {
			return fmt.Errorf("strategy.instruments contains duplicate symbol %q", clean)
		}
		seen[clean] = struct{}{}
	}
	if cfg.Strategy.MinNotionalUSD < 0 {
		return errors.New("strategy.min_notional_usd must be >= 0")
	}
	if cfg.Strategy.DeltaErrorMargin <= 0 || cfg.Strategy.DeltaErrorMargin >= 1 {
		return errors.New("strategy.delta_error_margin must be in (0, 1)")
	}
	if cfg.Strategy.BalanceFraction <= 0 || cfg.Strategy.BalanceFraction > 1 {
		return errors.New("strategy.balance_fraction must be in (0, 1]")
	}
	if cfg.Strategy.Leverage < 1 {
		return errors.New("strategy.leverage must be >= 1")
	}
	sum := cfg.Allocation.SpotFraction + cfg.Allocation.PerpFraction
	if sum < 0.999 || sum > 1.001 {
		return errors.New("allocation.spot_fraction and allocation.perp_fraction must sum to 1")
	}
	if cfg.Allocation.RebalanceThreshold <= 0 || cfg.Allocation.RebalanceThreshold >= cfg.Allocation.SpotFraction {
		return errors.New("allocation.rebalance_threshold must be in (0, spot_fraction)")
	}
	if cfg.History.Enabled && strings.TrimSpace(cfg.History.DSN) == "" {
		return errors.New("history.dsn is required when history.enabled")
	}
	return nil
}
