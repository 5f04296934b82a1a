package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies NFTSTORE_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known environment variables and overwrites the
// corresponding Config fields when a variable is set. The storefront's
// original VITE_* names are honoured first so NFTSTORE_* wins when both exist.
func applyEnvOverrides(cfg *Config) {
	// ── Legacy storefront names ──
	setStr(&cfg.Chain.RPCURL, "VITE_RPC_URL")
	setStr(&cfg.Marketplace.Address, "VITE_NFT_MARKETPLACE_ADDRESS")
	setHexInt(&cfg.Chain.ChainID, "VITE_CHAIN_ID")
	setInt(&cfg.Chain.ChainID, "VITE_CHAIN_ID_DECIMAL")
	setStr(&cfg.Chain.NetworkName, "VITE_NETWORK_NAME")
	setStr(&cfg.Chain.CurrencyName, "VITE_NATIVE_CURRENCY_NAME")
	setStr(&cfg.Chain.CurrencySymbol, "VITE_NATIVE_CURRENCY_SYMBOL")
	setStr(&cfg.Chain.ExplorerURL, "VITE_BLOCK_EXPLORER_URL")
	setInt(&cfg.Marketplace.GasLimit, "VITE_DEFAULT_GAS_LIMIT")
	setStr(&cfg.App.Name, "VITE_APP_NAME")
	setStr(&cfg.App.Description, "VITE_APP_DESCRIPTION")

	// ── Chain ──
	setInt(&cfg.Chain.ChainID, "NFTSTORE_CHAIN_ID")
	setHexInt(&cfg.Chain.ChainID, "NFTSTORE_CHAIN_ID_HEX")
	setStr(&cfg.Chain.NetworkName, "NFTSTORE_CHAIN_NETWORK_NAME")
	setStr(&cfg.Chain.RPCURL, "NFTSTORE_CHAIN_RPC_URL")
	setStr(&cfg.Chain.ExplorerURL, "NFTSTORE_CHAIN_EXPLORER_URL")
	setStr(&cfg.Chain.CurrencyName, "NFTSTORE_CHAIN_CURRENCY_NAME")
	setStr(&cfg.Chain.CurrencySymbol, "NFTSTORE_CHAIN_CURRENCY_SYMBOL")
	setInt(&cfg.Chain.Decimals, "NFTSTORE_CHAIN_DECIMALS")

	// ── Marketplace ──
	setStr(&cfg.Marketplace.Address, "NFTSTORE_MARKETPLACE_ADDRESS")
	setStr(&cfg.Marketplace.ABIPath, "NFTSTORE_MARKETPLACE_ABI_PATH")
	setInt(&cfg.Marketplace.GasLimit, "NFTSTORE_MARKETPLACE_GAS_LIMIT")
	setInt(&cfg.Marketplace.Confirmations, "NFTSTORE_MARKETPLACE_CONFIRMATIONS")
	setDuration(&cfg.Marketplace.PollInterval, "NFTSTORE_MARKETPLACE_POLL_INTERVAL")
	setStr(&cfg.Marketplace.IDSource, "NFTSTORE_MARKETPLACE_ID_SOURCE")

	// ── Wallet ──
	setStr(&cfg.Wallet.Provider, "NFTSTORE_WALLET_PROVIDER")
	setStr(&cfg.Wallet.RPCURL, "NFTSTORE_WALLET_RPC_URL")
	setStr(&cfg.Wallet.PrivateKey, "NFTSTORE_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.KeyFile, "NFTSTORE_WALLET_KEY_FILE")
	setStr(&cfg.Wallet.KeyPassword, "NFTSTORE_WALLET_KEY_PASSWORD")
	setBool(&cfg.Wallet.AutoApprove, "NFTSTORE_WALLET_AUTO_APPROVE")

	// ── App ──
	setStr(&cfg.App.Name, "NFTSTORE_APP_NAME")
	setStr(&cfg.App.Description, "NFTSTORE_APP_DESCRIPTION")
	setStr(&cfg.App.DefaultCategory, "NFTSTORE_APP_DEFAULT_CATEGORY")

	// ── Featured ──
	setBool(&cfg.Featured.Enabled, "NFTSTORE_FEATURED_ENABLED")
	setStr(&cfg.Featured.Creator, "NFTSTORE_FEATURED_CREATOR")

	// ── Server ──
	setInt(&cfg.Server.Port, "NFTSTORE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "NFTSTORE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "NFTSTORE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "NFTSTORE_SERVER_RATE_LIMIT")
	setInt64(&cfg.Server.MaxUploadMiB, "NFTSTORE_SERVER_MAX_UPLOAD_MIB")

	// ── Postgres ──
	setBool(&cfg.Postgres.Enabled, "NFTSTORE_POSTGRES_ENABLED")
	setStr(&cfg.Postgres.DSN, "NFTSTORE_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "NFTSTORE_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "NFTSTORE_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "NFTSTORE_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "NFTSTORE_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "NFTSTORE_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "NFTSTORE_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "NFTSTORE_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "NFTSTORE_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "NFTSTORE_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "NFTSTORE_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "NFTSTORE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "NFTSTORE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "NFTSTORE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "NFTSTORE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "NFTSTORE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "NFTSTORE_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "NFTSTORE_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "NFTSTORE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "NFTSTORE_S3_REGION")
	setStr(&cfg.S3.Bucket, "NFTSTORE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "NFTSTORE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "NFTSTORE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "NFTSTORE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "NFTSTORE_S3_FORCE_PATH_STYLE")
	setStr(&cfg.S3.PublicBaseURL, "NFTSTORE_S3_PUBLIC_BASE_URL")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "NFTSTORE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "NFTSTORE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "NFTSTORE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "NFTSTORE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "NFTSTORE_MODE")
	setStr(&cfg.LogLevel, "NFTSTORE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

// setHexInt accepts "0x89" as well as plain decimal.
func setHexInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 0, 64); err == nil {
			*dst = int(n)
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
