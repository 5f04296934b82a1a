// Package config defines the top-level configuration for the NFT storefront
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by NFTSTORE_* environment variables.
type Config struct {
	Chain       ChainConfig       `toml:"chain"`
	Marketplace MarketplaceConfig `toml:"marketplace"`
	Wallet      WalletConfig      `toml:"wallet"`
	App         AppConfig         `toml:"app"`
	Featured    FeaturedConfig    `toml:"featured"`
	Server      ServerConfig      `toml:"server"`
	Postgres    PostgresConfig    `toml:"postgres"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Notify      NotifyConfig      `toml:"notify"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// ChainConfig describes the target chain the wallet is switched to.
type ChainConfig struct {
	ChainID        int    `toml:"chain_id"`
	NetworkName    string `toml:"network_name"`
	RPCURL         string `toml:"rpc_url"`
	ExplorerURL    string `toml:"explorer_url"`
	CurrencyName   string `toml:"currency_name"`
	CurrencySymbol string `toml:"currency_symbol"`
	Decimals       int    `toml:"decimals"`
}

// ChainIDHex returns the chain id in the 0x form wallets expect.
func (c ChainConfig) ChainIDHex() string {
	return fmt.Sprintf("0x%x", c.ChainID)
}

// MarketplaceConfig locates the marketplace contract and tunes transactions.
type MarketplaceConfig struct {
	Address       string   `toml:"address"`
	ABIPath       string   `toml:"abi_path"`
	GasLimit      int      `toml:"gas_limit"`
	Confirmations int      `toml:"confirmations"`
	PollInterval  duration `toml:"poll_interval"`
	// IDSource is "uuid" or "unix_seconds".
	IDSource string `toml:"id_source"`
}

// WalletConfig selects the wallet provider.
type WalletConfig struct {
	// Provider is "rpc" for an external EIP-1193 wallet endpoint or "key" for
	// the in-process key wallet.
	Provider    string `toml:"provider"`
	RPCURL      string `toml:"rpc_url"`
	PrivateKey  string `toml:"private_key"`
	KeyFile     string `toml:"key_file"`
	KeyPassword string `toml:"key_password"`
	// AutoApprove lets the key wallet approve prompts without a human.
	AutoApprove bool `toml:"auto_approve"`
}

// AppConfig holds storefront branding.
type AppConfig struct {
	Name            string `toml:"name"`
	Description     string `toml:"description"`
	DefaultCategory string `toml:"default_category"`
}

// FeaturedItem is a catalog entry shown ahead of chain listings.
type FeaturedItem struct {
	Name     string `toml:"name"`
	Price    string `toml:"price"`
	Image    string `toml:"image"`
	Category string `toml:"category"`
}

// FeaturedConfig holds the featured catalog.
type FeaturedConfig struct {
	Enabled bool           `toml:"enabled"`
	Creator string         `toml:"creator"`
	Items   []FeaturedItem `toml:"items"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	// RateLimit is requests per minute per client; zero disables limiting.
	RateLimit    int   `toml:"rate_limit"`
	MaxUploadMiB int64 `toml:"max_upload_mib"`
}

// PostgresConfig holds PostgreSQL connection parameters for the activity
// journal and audit log.
type PostgresConfig struct {
	Enabled       bool   `toml:"enabled"`
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for listing images.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// PublicBaseURL prefixes object keys to form image URIs. Empty falls back
	// to endpoint/bucket.
	PublicBaseURL string `toml:"public_base_url"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

const demoImageHost = "https://images.unsplash.com/"

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			ChainID:        1,
			NetworkName:    "Your Network",
			RPCURL:         "http://localhost:8545",
			ExplorerURL:    "https://etherscan.io",
			CurrencyName:   "ETH",
			CurrencySymbol: "ETH",
			Decimals:       18,
		},
		Marketplace: MarketplaceConfig{
			GasLimit:      500_000,
			Confirmations: 1,
			PollInterval:  duration{2 * time.Second},
			IDSource:      "uuid",
		},
		Wallet: WalletConfig{
			Provider: "rpc",
		},
		App: AppConfig{
			Name:            "NFT Marketplace",
			Description:     "Discover, collect, and trade unique digital assets",
			DefaultCategory: "Digital Art",
		},
		Featured: FeaturedConfig{
			Enabled: true,
			Items: []FeaturedItem{
				{Name: "Pixel Baddie", Price: "25", Category: "Digital Art", Image: demoImageHost + "photo-1634973357973-f2ed2657db3c"},
				{Name: "Yakuza Chimpo", Price: "32", Category: "Photography", Image: demoImageHost + "photo-1618005182384-a83a8bd57fbe"},
				{Name: "Asur", Price: "28", Category: "Art", Image: demoImageHost + "photo-1620641788421-7a1c342ea42e"},
				{Name: "Digital Genesis", Price: "35", Category: "Digital Art", Image: demoImageHost + "photo-1635322966219-b75ed372eb01"},
			},
		},
		Server: ServerConfig{
			Port:         8000,
			CORSOrigins:  []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:    120,
			MaxUploadMiB: 10,
		},
		Postgres: PostgresConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "nftstore",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "nftstore-images",
			ForcePathStyle: true,
		},
		Notify: NotifyConfig{
			Events: []string{"listing_created", "listing_sold", "error"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"inspect": true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validWalletProviders = map[string]bool{
	"rpc": true,
	"key": true,
}

// Validate checks Config for missing values and returns a combined error
// describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, inspect)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Chain
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be set")
	}
	if c.Chain.RPCURL == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.CurrencySymbol == "" {
		errs = append(errs, "chain: currency_symbol must not be empty")
	}

	// Marketplace
	if c.Marketplace.Address == "" {
		errs = append(errs, "marketplace: address must not be empty")
	}
	if c.Marketplace.GasLimit <= 0 {
		errs = append(errs, "marketplace: gas_limit must be set")
	}

	// Wallet
	if !validWalletProviders[c.Wallet.Provider] {
		errs = append(errs, fmt.Sprintf("wallet: unknown provider %q (valid: rpc, key)", c.Wallet.Provider))
	}
	if c.Wallet.Provider == "key" {
		if c.Wallet.PrivateKey == "" && c.Wallet.KeyFile == "" {
			errs = append(errs, "wallet: either private_key or key_file must be set for the key provider")
		}
		if c.Wallet.KeyFile != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when key_file is set")
		}
	}

	// Server
	if c.Mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
	}

	// Postgres
	if c.Postgres.Enabled && strings.TrimSpace(c.Postgres.DSN) == "" {
		if c.Postgres.Host == "" {
			errs = append(errs, "postgres: host must not be empty (or set postgres.dsn)")
		}
		if c.Postgres.Database == "" {
			errs = append(errs, "postgres: database must not be empty")
		}
	}

	// Redis
	if c.Redis.Enabled && c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
