package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the trading client
type Config struct {
	Chain         ChainConfig         `mapstructure:"chain"`
	Keystore      KeystoreConfig      `mapstructure:"keystore"`
	Strategy      StrategyConfig      `mapstructure:"strategy"`
	Cache         CacheConfig         `mapstructure:"cache"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
	Reporting     ReportingConfig     `mapstructure:"reporting"`
	Observability ObservabilityConfig `mapstructure:"observability"`
}

// ChainConfig holds chain connection configuration
type ChainConfig struct {
	Network        string        `mapstructure:"network"` // mainnet or testnet
	ChainID        int64         `mapstructure:"chain_id"`
	RPCEndpoints   []RPCEndpoint `mapstructure:"rpc_endpoints"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`

	// RPCRequestsPerSecond caps total RPC dispatch rate across the pool.
	// Zero disables the limiter.
	RPCRequestsPerSecond float64 `mapstructure:"rpc_requests_per_second"`

	// MEVProtection enables the flat gas-price premium on every
	// transaction. GasPremiumPct is ignored when it is off.
	MEVProtection bool  `mapstructure:"mev_protection"`
	GasPremiumPct int64 `mapstructure:"gas_premium_pct"`

	DefaultFeeTier uint32 `mapstructure:"default_fee_tier"`

	// Optional overrides for the chain-id keyed defaults.
	QuoterAddress   string `mapstructure:"quoter_address"`
	V3RouterAddress string `mapstructure:"v3_router_address"`
	V2RouterAddress string `mapstructure:"v2_router_address"`
	WrappedNative   string `mapstructure:"wrapped_native"`
}

// RPCEndpoint represents one RPC endpoint in the pool
type RPCEndpoint struct {
	URL    string `mapstructure:"url"`
	Weight int    `mapstructure:"weight"`
}

// KeystoreConfig holds wallet keystore configuration
type KeystoreConfig struct {
	Path string `mapstructure:"path"`
}

// StrategyConfig holds the active strategy and its parameters. Fields not
// used by the selected kind are ignored.
type StrategyConfig struct {
	Kind    string   `mapstructure:"kind"` // simple_swap, batch_swap, market_making, dca
	Wallets []string `mapstructure:"wallets"`

	BaseSymbol  string `mapstructure:"base_symbol"`
	QuoteSymbol string `mapstructure:"quote_symbol"`
	SlippageBps int64  `mapstructure:"slippage_bps"`

	TickInterval time.Duration `mapstructure:"tick_interval"`

	// simple_swap
	Amount       float64 `mapstructure:"amount"`
	AmountIsBase bool    `mapstructure:"amount_is_base"`
	SpendIsBase  *bool   `mapstructure:"spend_is_base"`
	BasisIsBase  *bool   `mapstructure:"basis_is_base"`

	// batch_swap / dca
	TotalAmount  float64 `mapstructure:"total_amount"`
	NumOrders    int     `mapstructure:"num_orders"`
	Distribution string  `mapstructure:"distribution"` // uniform, bell, random_uniform
	MinPrice     float64 `mapstructure:"min_price"`
	MaxPrice     float64 `mapstructure:"max_price"`

	// market_making
	UpperPercent   float64       `mapstructure:"upper_percent"`
	LowerPercent   float64       `mapstructure:"lower_percent"`
	LevelsEachSide int           `mapstructure:"levels_each_side"`
	OrderAmount    float64       `mapstructure:"order_amount"`
	RefreshEvery   time.Duration `mapstructure:"refresh_every"`

	// dca
	OrderInterval time.Duration `mapstructure:"order_interval"`

	MaxOrderRetries int `mapstructure:"max_order_retries"`
}

// CacheConfig holds the short-lived chain-read cache settings
type CacheConfig struct {
	MaxSize  int           `mapstructure:"max_size"`
	PriceTTL time.Duration `mapstructure:"price_ttl"`
}

// NotificationsConfig holds notification sink settings
type NotificationsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

// TelegramConfig holds Telegram bot settings
type TelegramConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	BotToken      string        `mapstructure:"bot_token"`
	ChatID        string        `mapstructure:"chat_id"`
	BatchInterval time.Duration `mapstructure:"batch_interval"`
	MaxBatch      int           `mapstructure:"max_batch"`
}

// ReportingConfig holds periodic portfolio reporting settings
type ReportingConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig holds logging settings
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // json or text
}

// MetricsConfig holds metrics settings
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// Load loads configuration from file and environment variables
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set config file path
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	// Read environment variables
	v.AutomaticEnv()

	// Set defaults
	setDefaults(v)

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		// Config file not found is not fatal if env vars are set
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Chain defaults: BSC mainnet
	v.SetDefault("chain.network", "mainnet")
	v.SetDefault("chain.chain_id", 56)
	v.SetDefault("chain.request_timeout", "15s")
	v.SetDefault("chain.rpc_requests_per_second", 10)
	v.SetDefault("chain.mev_protection", false)
	v.SetDefault("chain.gas_premium_pct", 20)
	v.SetDefault("chain.default_fee_tier", 2500)

	// Keystore defaults
	v.SetDefault("keystore.path", "wallets.json")

	// Strategy defaults
	v.SetDefault("strategy.slippage_bps", 50)
	v.SetDefault("strategy.tick_interval", "1s")
	v.SetDefault("strategy.distribution", "uniform")
	v.SetDefault("strategy.max_order_retries", 3)

	// Cache defaults
	v.SetDefault("cache.max_size", 1000)
	v.SetDefault("cache.price_ttl", "2s")

	// Notification defaults
	v.SetDefault("notifications.telegram.enabled", false)
	v.SetDefault("notifications.telegram.batch_interval", "5s")
	v.SetDefault("notifications.telegram.max_batch", 20)

	// Reporting defaults
	v.SetDefault("reporting.enabled", true)
	v.SetDefault("reporting.interval", "60s")

	// Observability defaults
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "json")
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.port", 9091)
}

var validStrategyKinds = map[string]bool{
	"simple_swap":   true,
	"batch_swap":    true,
	"market_making": true,
	"dca":           true,
}

var validDistributions = map[string]bool{
	"uniform":        true,
	"bell":           true,
	"random_uniform": true,
}

// Validate validates the configuration
func (c *Config) Validate() error {
	// Chain validation
	if c.Chain.Network != "mainnet" && c.Chain.Network != "testnet" {
		return fmt.Errorf("chain network must be mainnet or testnet, got %q", c.Chain.Network)
	}
	if c.Chain.ChainID == 0 {
		return fmt.Errorf("chain id is required")
	}
	if len(c.Chain.RPCEndpoints) == 0 {
		return fmt.Errorf("at least one RPC endpoint is required")
	}
	for _, ep := range c.Chain.RPCEndpoints {
		if ep.URL == "" {
			return fmt.Errorf("RPC endpoint URL must not be empty")
		}
	}
	if c.Chain.GasPremiumPct < 0 {
		return fmt.Errorf("gas premium must be >= 0")
	}
	if c.Chain.RPCRequestsPerSecond < 0 {
		return fmt.Errorf("rpc_requests_per_second must be >= 0")
	}

	// Keystore validation
	if c.Keystore.Path == "" {
		return fmt.Errorf("keystore path is required")
	}

	// Strategy validation
	if !validStrategyKinds[c.Strategy.Kind] {
		return fmt.Errorf("unknown strategy kind: %q", c.Strategy.Kind)
	}
	if len(c.Strategy.Wallets) == 0 {
		return fmt.Errorf("at least one wallet is required")
	}
	if c.Strategy.BaseSymbol == "" || c.Strategy.QuoteSymbol == "" {
		return fmt.Errorf("base and quote symbols are required")
	}
	if c.Strategy.SlippageBps < 0 || c.Strategy.SlippageBps >= 10000 {
		return fmt.Errorf("slippage must be in [0, 10000) bps")
	}
	if !validDistributions[c.Strategy.Distribution] {
		return fmt.Errorf("unknown distribution: %q", c.Strategy.Distribution)
	}

	switch c.Strategy.Kind {
	case "simple_swap":
		if c.Strategy.Amount <= 0 {
			return fmt.Errorf("simple_swap amount must be positive")
		}
	case "batch_swap":
		if c.Strategy.TotalAmount <= 0 {
			return fmt.Errorf("batch_swap total amount must be positive")
		}
		if c.Strategy.NumOrders <= 0 {
			return fmt.Errorf("batch_swap num_orders must be positive")
		}
		if c.Strategy.MinPrice <= 0 || c.Strategy.MaxPrice < c.Strategy.MinPrice {
			return fmt.Errorf("batch_swap requires 0 < min_price <= max_price")
		}
	case "market_making":
		if c.Strategy.LevelsEachSide <= 0 {
			return fmt.Errorf("market_making levels_each_side must be positive")
		}
		if c.Strategy.OrderAmount <= 0 {
			return fmt.Errorf("market_making order_amount must be positive")
		}
		if c.Strategy.UpperPercent <= 0 || c.Strategy.LowerPercent <= 0 {
			return fmt.Errorf("market_making spread percentages must be positive")
		}
		if c.Strategy.RefreshEvery <= 0 {
			return fmt.Errorf("market_making refresh_every must be positive")
		}
	case "dca":
		if c.Strategy.TotalAmount <= 0 {
			return fmt.Errorf("dca total amount must be positive")
		}
		if c.Strategy.NumOrders <= 0 {
			return fmt.Errorf("dca num_orders must be positive")
		}
		if c.Strategy.OrderInterval <= 0 {
			return fmt.Errorf("dca order_interval must be positive")
		}
	}

	// Notification validation
	if c.Notifications.Telegram.Enabled {
		if c.Notifications.Telegram.BotToken == "" || c.Notifications.Telegram.ChatID == "" {
			return fmt.Errorf("telegram bot_token and chat_id are required when telegram is enabled")
		}
	}

	// Observability validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLogLevels[c.Observability.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Observability.Logging.Level)
	}

	validLogFormats := map[string]bool{
		"json": true,
		"text": true,
	}
	if !validLogFormats[c.Observability.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Observability.Logging.Format)
	}

	return nil
}
