package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/spf13/viper"
)

const (
	envPrefix = "MEMEVOTE"

	defaultHTTPHost          = "0.0.0.0"
	defaultHTTPPort          = 3000
	defaultLogLevel          = "info"
	defaultLogFormat         = "json"
	defaultDatabaseDriver    = DatabaseDriverSQLite
	defaultDatabaseURL       = "memevote.db"
	defaultRPCURL            = "https://api.mainnet-beta.solana.com"
	defaultTradeURL          = "https://pumpportal.fun/api/trade-local"
	defaultTradePool         = "pump"
	defaultSlippagePercent   = 10
	defaultPriorityFeeSOL    = 0.0005
	defaultUpvoteAmountSOL   = 0.01
	defaultPinningURL        = "https://pump.fun/api/ipfs"
	defaultTokenDescription  = "Community meme token"
	defaultImagesDir         = "public/images"
	defaultStaticDir         = "public"
	defaultConfirmTimeoutSec = 60
	defaultConfirmPollMillis = 2000
)

const (
	// DatabaseDriverSQLite selects the embedded SQLite store.
	DatabaseDriverSQLite = "sqlite"
	// DatabaseDriverPostgres selects a managed PostgreSQL store.
	DatabaseDriverPostgres = "postgres"
)

// AppConfig captures runtime configuration for the API server.
type AppConfig struct {
	HTTPHost  string
	HTTPPort  int
	LogLevel  string
	LogFormat string

	DatabaseDriver string
	DatabaseURL    string
	DatabaseKey    string

	RPCURL    string
	RPCAPIKey string

	TradeURL             string
	TradePool            string
	TradeSlippagePercent float64
	TradePriorityFeeSOL  float64
	UpvoteAmountSOL      float64
	CreateAmountSOL      float64

	PinningURL       string
	TokenDescription string
	TokenTwitter     string
	TokenTelegram    string
	TokenWebsite     string

	ImagesDir string
	StaticDir string

	JackpotWallet string

	ConfirmTimeout      time.Duration
	ConfirmPollInterval time.Duration

	MetricsEnabled bool
}

// HTTPAddress joins host and port into a listen address.
func (c AppConfig) HTTPAddress() string {
	return net.JoinHostPort(c.HTTPHost, strconv.Itoa(c.HTTPPort))
}

// NewViper returns a viper instance with defaults and env bindings configured.
func NewViper() *viper.Viper {
	configViper := viper.New()
	ApplyDefaults(configViper)
	return configViper
}

// ApplyDefaults configures defaults and env bindings on the provided viper instance.
func ApplyDefaults(configViper *viper.Viper) {
	configViper.SetEnvPrefix(envPrefix)
	configViper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	configViper.AutomaticEnv()
	_ = configViper.BindEnv("http.port", envPrefix+"_HTTP_PORT", "PORT")

	configViper.SetDefault("http.host", defaultHTTPHost)
	configViper.SetDefault("http.port", defaultHTTPPort)
	configViper.SetDefault("log.level", defaultLogLevel)
	configViper.SetDefault("log.format", defaultLogFormat)
	configViper.SetDefault("database.driver", defaultDatabaseDriver)
	configViper.SetDefault("database.url", defaultDatabaseURL)
	configViper.SetDefault("database.key", "")
	configViper.SetDefault("rpc.url", defaultRPCURL)
	configViper.SetDefault("rpc.api_key", "")
	configViper.SetDefault("trade.url", defaultTradeURL)
	configViper.SetDefault("trade.pool", defaultTradePool)
	configViper.SetDefault("trade.slippage_percent", defaultSlippagePercent)
	configViper.SetDefault("trade.priority_fee_sol", defaultPriorityFeeSOL)
	configViper.SetDefault("trade.upvote_amount_sol", defaultUpvoteAmountSOL)
	configViper.SetDefault("trade.create_amount_sol", 0)
	configViper.SetDefault("pinning.url", defaultPinningURL)
	configViper.SetDefault("pinning.description", defaultTokenDescription)
	configViper.SetDefault("pinning.twitter", "")
	configViper.SetDefault("pinning.telegram", "")
	configViper.SetDefault("pinning.website", "")
	configViper.SetDefault("images.dir", defaultImagesDir)
	configViper.SetDefault("static.dir", defaultStaticDir)
	configViper.SetDefault("jackpot.wallet", "")
	configViper.SetDefault("confirm.timeout_seconds", defaultConfirmTimeoutSec)
	configViper.SetDefault("confirm.poll_interval_ms", defaultConfirmPollMillis)
	configViper.SetDefault("metrics.enabled", true)
}

// Load parses runtime configuration from viper.
func Load(configViper *viper.Viper) (AppConfig, error) {
	cfg := AppConfig{
		HTTPHost:             configViper.GetString("http.host"),
		HTTPPort:             configViper.GetInt("http.port"),
		LogLevel:             configViper.GetString("log.level"),
		LogFormat:            configViper.GetString("log.format"),
		DatabaseDriver:       strings.ToLower(strings.TrimSpace(configViper.GetString("database.driver"))),
		DatabaseURL:          configViper.GetString("database.url"),
		DatabaseKey:          configViper.GetString("database.key"),
		RPCURL:               configViper.GetString("rpc.url"),
		RPCAPIKey:            configViper.GetString("rpc.api_key"),
		TradeURL:             configViper.GetString("trade.url"),
		TradePool:            configViper.GetString("trade.pool"),
		TradeSlippagePercent: configViper.GetFloat64("trade.slippage_percent"),
		TradePriorityFeeSOL:  configViper.GetFloat64("trade.priority_fee_sol"),
		UpvoteAmountSOL:      configViper.GetFloat64("trade.upvote_amount_sol"),
		CreateAmountSOL:      configViper.GetFloat64("trade.create_amount_sol"),
		PinningURL:           configViper.GetString("pinning.url"),
		TokenDescription:     configViper.GetString("pinning.description"),
		TokenTwitter:         configViper.GetString("pinning.twitter"),
		TokenTelegram:        configViper.GetString("pinning.telegram"),
		TokenWebsite:         configViper.GetString("pinning.website"),
		ImagesDir:            configViper.GetString("images.dir"),
		StaticDir:            configViper.GetString("static.dir"),
		JackpotWallet:        strings.TrimSpace(configViper.GetString("jackpot.wallet")),
		ConfirmTimeout:       time.Duration(configViper.GetInt("confirm.timeout_seconds")) * time.Second,
		ConfirmPollInterval:  time.Duration(configViper.GetInt("confirm.poll_interval_ms")) * time.Millisecond,
		MetricsEnabled:       configViper.GetBool("metrics.enabled"),
	}

	if err := cfg.validate(); err != nil {
		return AppConfig{}, err
	}

	return cfg, nil
}

func (c AppConfig) validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTPPort)
	}
	switch c.DatabaseDriver {
	case DatabaseDriverSQLite, DatabaseDriverPostgres:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DatabaseDriverSQLite, DatabaseDriverPostgres, c.DatabaseDriver)
	}
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("database.url is required")
	}
	if strings.TrimSpace(c.RPCURL) == "" {
		return fmt.Errorf("rpc.url is required")
	}
	if strings.TrimSpace(c.TradeURL) == "" {
		return fmt.Errorf("trade.url is required")
	}
	if strings.TrimSpace(c.PinningURL) == "" {
		return fmt.Errorf("pinning.url is required")
	}
	if strings.TrimSpace(c.ImagesDir) == "" {
		return fmt.Errorf("images.dir is required")
	}
	if c.UpvoteAmountSOL <= 0 {
		return fmt.Errorf("trade.upvote_amount_sol must be positive")
	}
	if c.CreateAmountSOL < 0 {
		return fmt.Errorf("trade.create_amount_sol must not be negative")
	}
	if c.ConfirmTimeout <= 0 {
		return fmt.Errorf("confirm.timeout_seconds must be positive")
	}
	if c.ConfirmPollInterval <= 0 {
		return fmt.Errorf("confirm.poll_interval_ms must be positive")
	}
	if c.JackpotWallet != "" {
		decoded, err := base58.Decode(c.JackpotWallet)
		if err != nil || len(decoded) != 32 {
			return fmt.Errorf("jackpot.wallet is not a valid base58 address")
		}
	}
	return nil
}
