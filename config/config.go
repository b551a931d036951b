package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// EVMNetwork holds the connection settings for one EVM-compatible chain
type EVMNetwork struct {
	ChainID               int64  `mapstructure:"chain_id"`
	RPCUrl                string `mapstructure:"rpc_url"`
	RequiredConfirmations uint64 `mapstructure:"required_confirmations"`
}

// SolanaConfig holds Solana RPC settings
type SolanaConfig struct {
	RPCUrl     string `mapstructure:"rpc_url"`
	Commitment string `mapstructure:"commitment"`
}

// SuiConfig holds Sui JSON-RPC settings
type SuiConfig struct {
	RPCUrl string `mapstructure:"rpc_url"`
}

// CEXVenue holds credentials and transfer-time estimates for one exchange
type CEXVenue struct {
	Name      string `mapstructure:"name"`
	BaseURL   string `mapstructure:"base_url"`
	APIKey    string `mapstructure:"api_key"`
	APISecret string `mapstructure:"api_secret"`

	// Per-chain confirmation/payout time estimates in seconds, keyed by chain id
	DepositSeconds  map[string]int `mapstructure:"deposit_seconds"`
	WithdrawSeconds map[string]int `mapstructure:"withdraw_seconds"`
}

// DEXProvider describes one same-chain DEX aggregator endpoint
type DEXProvider struct {
	Name    string   `mapstructure:"name"`
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Chains  []string `mapstructure:"chains"`
}

// BridgeProvider describes one cross-chain bridge aggregator endpoint
type BridgeProvider struct {
	Name    string   `mapstructure:"name"`
	BaseURL string   `mapstructure:"base_url"`
	APIKey  string   `mapstructure:"api_key"`
	Chains  []string `mapstructure:"chains"`
}

// RedisConfig holds the quote cache / monitor store connection
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Config holds the application configuration
type Config struct {
	// Quoting
	PlatformFeeBps     int           `mapstructure:"platform_fee_bps"`
	DefaultSlippageBps int           `mapstructure:"default_slippage_bps"`
	AdapterTimeout     time.Duration `mapstructure:"adapter_timeout"`
	QuoteTTL           time.Duration `mapstructure:"quote_ttl"`

	// Liquidity sources
	DEXProviders    []DEXProvider    `mapstructure:"dex_providers"`
	BridgeProviders []BridgeProvider `mapstructure:"bridge_providers"`
	CEXVenues       []CEXVenue       `mapstructure:"cex_venues"`
	OneClickJWT     string           `mapstructure:"oneclick_jwt"`

	// Chains
	EVMNetworks map[string]EVMNetwork `mapstructure:"evm_networks"`
	Solana      SolanaConfig          `mapstructure:"solana"`
	Sui         SuiConfig             `mapstructure:"sui"`

	// Storage
	Redis      RedisConfig `mapstructure:"redis"`
	SQLitePath string      `mapstructure:"sqlite_path"`

	// API server
	ListenAddr string `mapstructure:"listen_addr"`
}

var globalConfig *Config

// Load reads configuration from environment variables and config file
func Load() (*Config, error) {
	viper.SetConfigName(".omni-swap")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("$HOME")
	viper.AddConfigPath(".")

	// Set default values
	viper.SetDefault("platform_fee_bps", 30)
	viper.SetDefault("default_slippage_bps", 100)
	viper.SetDefault("adapter_timeout", "10s")
	viper.SetDefault("quote_ttl", "60s")
	viper.SetDefault("redis.addr", "localhost:6379")
	viper.SetDefault("sqlite_path", "omni-swap.db")
	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("solana.commitment", "confirmed")

	// Read from environment variables
	viper.SetEnvPrefix("OMNI_SWAP")
	viper.AutomaticEnv()

	// Read config file (optional)
	_ = viper.ReadInConfig()

	cfg := &Config{}
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	if cfg.PlatformFeeBps < 0 || cfg.PlatformFeeBps > 10000 {
		return nil, fmt.Errorf("platform_fee_bps must be between 0 and 10000, got %d", cfg.PlatformFeeBps)
	}

	globalConfig = cfg
	return cfg, nil
}

// Get returns the global configuration
func Get() *Config {
	if globalConfig == nil {
		cfg, err := Load()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading configuration: %v\n", err)
			os.Exit(1)
		}
		return cfg
	}
	return globalConfig
}

// Set updates the global configuration
func Set(cfg *Config) {
	globalConfig = cfg
}
