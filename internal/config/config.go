package config

import (
	"net/http"
	"os"
	"strings"
	"time"

	"arbix/internal/aggregation"
	"arbix/internal/cache"
	"arbix/internal/exchange/binance"
	"arbix/internal/exchange/coinbase"
	"arbix/internal/exchange/okx"
	"arbix/internal/exchange/uniswap"
	"arbix/internal/factory"
	"arbix/internal/notify"
	"arbix/internal/transport"

	"github.com/go-faster/errors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment overrides, e.g. ARBIX_OKX_API_KEY
const EnvPrefix = "ARBIX"

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Sources   SourcesConfig   `mapstructure:"sources"`
	OKX       OKXConfig       `mapstructure:"okx"`
	Uniswap   UniswapConfig   `mapstructure:"uniswap"`
	Binance   BinanceConfig   `mapstructure:"binance"`
	Coinbase  CoinbaseConfig  `mapstructure:"coinbase"`
	Transport TransportConfig `mapstructure:"transport"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Monitor   MonitorConfig   `mapstructure:"monitor"`
	History   HistoryConfig   `mapstructure:"history"`
	Telegram  TelegramConfig  `mapstructure:"telegram"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// ServerConfig holds HTTP listener settings
type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Level string `mapstructure:"level"`
	// Format is "console", "json" or empty to pick by terminal
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// SourcesConfig selects the price sources
type SourcesConfig struct {
	Enabled []string      `mapstructure:"enabled"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// OKXConfig holds OKX DEX API credentials
type OKXConfig struct {
	BaseURL    string `mapstructure:"base_url"`
	APIKey     string `mapstructure:"api_key"`
	SecretKey  string `mapstructure:"secret_key"`
	Passphrase string `mapstructure:"passphrase"`
}

// UniswapConfig holds The Graph gateway settings
type UniswapConfig struct {
	GatewayURL string            `mapstructure:"gateway_url"`
	APIKey     string            `mapstructure:"api_key"`
	Subgraphs  map[string]string `mapstructure:"subgraphs"`
}

// BinanceConfig holds Binance API settings
type BinanceConfig struct {
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	SecretKey string `mapstructure:"secret_key"`
}

// CoinbaseConfig holds Coinbase API settings
type CoinbaseConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// TransportConfig holds outbound HTTP resilience settings
type TransportConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	RPS             float64       `mapstructure:"rps"`
	Burst           int           `mapstructure:"burst"`
	UserAgent       string        `mapstructure:"user_agent"`
	BreakerFailures uint32        `mapstructure:"breaker_failures"`
	BreakerInterval time.Duration `mapstructure:"breaker_interval"`
	BreakerTimeout  time.Duration `mapstructure:"breaker_timeout"`
}

// CacheConfig holds quote cache settings
type CacheConfig struct {
	TTL           time.Duration `mapstructure:"ttl"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
}

// MonitorConfig holds refresh loop settings
type MonitorConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	Threshold float64       `mapstructure:"threshold"`
	Watchlist string        `mapstructure:"watchlist"`
}

// HistoryConfig holds signal history settings
type HistoryConfig struct {
	Path string `mapstructure:"path"`
}

// TelegramConfig holds notifier settings; an empty token disables it
type TelegramConfig struct {
	Token       string `mapstructure:"token"`
	ChatID      int64  `mapstructure:"chat_id"`
	APIEndpoint string `mapstructure:"api_endpoint"`
}

// WebSocketConfig holds push settings
type WebSocketConfig struct {
	PushInterval time.Duration `mapstructure:"push_interval"`
}

// Default returns the default configuration
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			ReadTimeout:    10 * time.Second,
			WriteTimeout:   30 * time.Second,
			RequestTimeout: 20 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
		Sources: SourcesConfig{
			Enabled: []string{"okx", "uniswap", "binance", "coinbase"},
			Timeout: 8 * time.Second,
		},
		OKX: OKXConfig{
			BaseURL: "https://web3.okx.com",
		},
		Uniswap: UniswapConfig{
			GatewayURL: "https://gateway.thegraph.com",
			Subgraphs:  uniswap.DefaultSubgraphs,
		},
		Binance: BinanceConfig{
			BaseURL: "https://api.binance.com",
		},
		Coinbase: CoinbaseConfig{
			BaseURL: "https://api.coinbase.com",
		},
		Transport: TransportConfig{
			Timeout:         10 * time.Second,
			RPS:             5,
			Burst:           5,
			UserAgent:       "arbix/1.0",
			BreakerFailures: 5,
			BreakerInterval: 60 * time.Second,
			BreakerTimeout:  30 * time.Second,
		},
		Cache: CacheConfig{
			TTL:    5 * time.Second,
			Prefix: "arbix:",
		},
		Monitor: MonitorConfig{
			Interval:  15 * time.Second,
			Threshold: 0.01,
		},
		History: HistoryConfig{
			Path: "data/signals.db",
		},
		WebSocket: WebSocketConfig{
			PushInterval: 2 * time.Second,
		},
	}
}

// Load reads .env, the optional config file at path and ARBIX_* environment
// variables on top of Default(). An empty path searches ./arbix.yaml and
// ./config/arbix.yaml and tolerates neither existing.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, errors.Wrap(err, "load .env")
	}

	v := viper.New()
	setDefaults(v, Default())

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("arbix")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, errors.Wrap(err, "read config")
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can override it during Unmarshal
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.request_timeout", d.Server.RequestTimeout)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)

	v.SetDefault("sources.enabled", d.Sources.Enabled)
	v.SetDefault("sources.timeout", d.Sources.Timeout)

	v.SetDefault("okx.base_url", d.OKX.BaseURL)
	v.SetDefault("okx.api_key", d.OKX.APIKey)
	v.SetDefault("okx.secret_key", d.OKX.SecretKey)
	v.SetDefault("okx.passphrase", d.OKX.Passphrase)

	v.SetDefault("uniswap.gateway_url", d.Uniswap.GatewayURL)
	v.SetDefault("uniswap.api_key", d.Uniswap.APIKey)
	v.SetDefault("uniswap.subgraphs", d.Uniswap.Subgraphs)

	v.SetDefault("binance.base_url", d.Binance.BaseURL)
	v.SetDefault("binance.api_key", d.Binance.APIKey)
	v.SetDefault("binance.secret_key", d.Binance.SecretKey)

	v.SetDefault("coinbase.base_url", d.Coinbase.BaseURL)

	v.SetDefault("transport.timeout", d.Transport.Timeout)
	v.SetDefault("transport.rps", d.Transport.RPS)
	v.SetDefault("transport.burst", d.Transport.Burst)
	v.SetDefault("transport.user_agent", d.Transport.UserAgent)
	v.SetDefault("transport.breaker_failures", d.Transport.BreakerFailures)
	v.SetDefault("transport.breaker_interval", d.Transport.BreakerInterval)
	v.SetDefault("transport.breaker_timeout", d.Transport.BreakerTimeout)

	v.SetDefault("cache.ttl", d.Cache.TTL)
	v.SetDefault("cache.redis_addr", d.Cache.RedisAddr)
	v.SetDefault("cache.redis_password", d.Cache.RedisPassword)
	v.SetDefault("cache.redis_db", d.Cache.RedisDB)
	v.SetDefault("cache.prefix", d.Cache.Prefix)

	v.SetDefault("monitor.interval", d.Monitor.Interval)
	v.SetDefault("monitor.threshold", d.Monitor.Threshold)
	v.SetDefault("monitor.watchlist", d.Monitor.Watchlist)

	v.SetDefault("history.path", d.History.Path)

	v.SetDefault("telegram.token", d.Telegram.Token)
	v.SetDefault("telegram.chat_id", d.Telegram.ChatID)
	v.SetDefault("telegram.api_endpoint", d.Telegram.APIEndpoint)

	v.SetDefault("websocket.push_interval", d.WebSocket.PushInterval)
}

// Validate checks the configuration for values the service cannot run with
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if len(c.Sources.Enabled) == 0 {
		return errors.New("sources.enabled must list at least one source")
	}
	for _, name := range c.Sources.Enabled {
		if !factory.ValidateExchangeName(strings.ToLower(strings.TrimSpace(name))) {
			return errors.Errorf("sources.enabled: unknown source %q (supported: %v)", name, factory.GetSupportedExchanges())
		}
	}
	if c.Monitor.Interval <= 0 {
		return errors.New("monitor.interval must be positive")
	}
	if c.Monitor.Threshold < 0 {
		return errors.New("monitor.threshold must not be negative")
	}
	if c.WebSocket.PushInterval <= 0 {
		return errors.New("websocket.push_interval must be positive")
	}
	if c.Telegram.Token != "" && c.Telegram.ChatID == 0 {
		return errors.New("telegram.chat_id is required when telegram.token is set")
	}
	return nil
}

// SourceDeps maps the per-source sections onto factory dependencies
func (c *Config) SourceDeps(client *http.Client) factory.SourceDeps {
	return factory.SourceDeps{
		HTTPClient: client,
		OKX: okx.Config{
			BaseURL:    c.OKX.BaseURL,
			APIKey:     c.OKX.APIKey,
			SecretKey:  c.OKX.SecretKey,
			Passphrase: c.OKX.Passphrase,
			Timeout:    c.Sources.Timeout,
		},
		Uniswap: uniswap.Config{
			GatewayURL: c.Uniswap.GatewayURL,
			APIKey:     c.Uniswap.APIKey,
			Subgraphs:  c.Uniswap.Subgraphs,
			Timeout:    c.Sources.Timeout,
		},
		Binance: binance.Config{
			BaseURL:   c.Binance.BaseURL,
			APIKey:    c.Binance.APIKey,
			SecretKey: c.Binance.SecretKey,
		},
		Coinbase: coinbase.Config{
			BaseURL: c.Coinbase.BaseURL,
			Timeout: c.Sources.Timeout,
		},
	}
}

// TransportOptions returns the outbound HTTP transport settings
func (c *Config) TransportOptions() transport.Config {
	return transport.Config{
		Timeout:   c.Transport.Timeout,
		RPS:       c.Transport.RPS,
		Burst:     c.Transport.Burst,
		UserAgent: c.Transport.UserAgent,
		Breaker: transport.BreakerConfig{
			ConsecutiveFailures: c.Transport.BreakerFailures,
			Interval:            c.Transport.BreakerInterval,
			Timeout:             c.Transport.BreakerTimeout,
		},
	}
}

// CacheOptions returns the quote cache backend options
func (c *Config) CacheOptions() cache.Options {
	return cache.Options{
		RedisAddr:     c.Cache.RedisAddr,
		RedisPassword: c.Cache.RedisPassword,
		RedisDB:       c.Cache.RedisDB,
		Prefix:        c.Cache.Prefix,
	}
}

// AggregatorOptions returns the aggregator settings
func (c *Config) AggregatorOptions() aggregation.Options {
	return aggregation.Options{
		Threshold:     decimal.NewFromFloat(c.Monitor.Threshold),
		SourceTimeout: c.Sources.Timeout,
		CacheTTL:      c.Cache.TTL,
	}
}

// NotifierConfig returns the Telegram notifier settings
func (c *Config) NotifierConfig() notify.TelegramConfig {
	return notify.TelegramConfig{
		Token:       c.Telegram.Token,
		ChatID:      c.Telegram.ChatID,
		APIEndpoint: c.Telegram.APIEndpoint,
	}
}
