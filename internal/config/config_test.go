package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleTOML = `
mode = "serve"
log_level = "debug"

[chain]
chain_id = 137
network_name = "Polygon"
rpc_url = "https://polygon-rpc.com"
currency_name = "MATIC"
currency_symbol = "MATIC"

[marketplace]
address = "0x5FbDB2315678afecb367f032d93F642f64180aa3"
confirmations = 2
poll_interval = "500ms"

[wallet]
provider = "key"
private_key = "0xac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MergesOverDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, 137, cfg.Chain.ChainID)
	assert.Equal(t, "0x89", cfg.Chain.ChainIDHex())
	assert.Equal(t, "Polygon", cfg.Chain.NetworkName)
	assert.Equal(t, "MATIC", cfg.Chain.CurrencySymbol)
	assert.Equal(t, 18, cfg.Chain.Decimals)
	assert.Equal(t, 2, cfg.Marketplace.Confirmations)
	assert.Equal(t, 500*time.Millisecond, cfg.Marketplace.PollInterval.Duration)
	assert.Equal(t, 500_000, cfg.Marketplace.GasLimit)
	assert.Equal(t, "NFT Marketplace", cfg.App.Name)
	assert.Equal(t, "Digital Art", cfg.App.DefaultCategory)
	assert.Equal(t, "debug", cfg.LogLevel)
	require.NoError(t, cfg.Validate())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("VITE_NETWORK_NAME", "Legacy Name")
	t.Setenv("NFTSTORE_CHAIN_NETWORK_NAME", "Sepolia")
	t.Setenv("VITE_CHAIN_ID", "0xaa36a7")
	t.Setenv("NFTSTORE_MARKETPLACE_GAS_LIMIT", "750000")
	t.Setenv("NFTSTORE_SERVER_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("NFTSTORE_REDIS_ENABLED", "true")
	t.Setenv("NFTSTORE_MARKETPLACE_POLL_INTERVAL", "3s")
	t.Setenv("NFTSTORE_SERVER_PORT", "not-a-number")

	cfg, err := Load(writeConfig(t, sampleTOML))
	require.NoError(t, err)

	assert.Equal(t, "Sepolia", cfg.Chain.NetworkName)
	assert.Equal(t, 11155111, cfg.Chain.ChainID)
	assert.Equal(t, 750_000, cfg.Marketplace.GasLimit)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, 3*time.Second, cfg.Marketplace.PollInterval.Duration)
	assert.Equal(t, 8000, cfg.Server.Port, "unparseable values leave the field alone")
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "Your Network", cfg.Chain.NetworkName)
	assert.Equal(t, "0x1", cfg.Chain.ChainIDHex())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{
			name:    "defaults need a contract address",
			mutate:  func(*Config) {},
			wantErr: []string{"marketplace: address"},
		},
		{
			name: "bad enums",
			mutate: func(c *Config) {
				c.Marketplace.Address = "0x1"
				c.Mode = "trade"
				c.LogLevel = "trace"
				c.Wallet.Provider = "ledger"
			},
			wantErr: []string{"unknown mode", "unknown log_level", "unknown provider"},
		},
		{
			name: "key provider without key",
			mutate: func(c *Config) {
				c.Marketplace.Address = "0x1"
				c.Wallet.Provider = "key"
				c.Wallet.KeyFile = "/tmp/key.json"
			},
			wantErr: []string{"key_password is required"},
		},
		{
			name: "enabled backends need endpoints",
			mutate: func(c *Config) {
				c.Marketplace.Address = "0x1"
				c.Redis.Enabled = true
				c.Redis.Addr = ""
				c.S3.Enabled = true
				c.S3.Bucket = ""
			},
			wantErr: []string{"redis: addr", "s3: bucket"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Server.APIKey = "secret"
	cfg.S3.SecretKey = "s3secret"
	cfg.Notify.DiscordWebhookURL = "https://discord.example/hook"

	out := RedactedConfig(&cfg)
	assert.Equal(t, "***", out.Wallet.PrivateKey)
	assert.Equal(t, "***", out.Server.APIKey)
	assert.Equal(t, "***", out.S3.SecretKey)
	assert.Equal(t, "***", out.Notify.DiscordWebhookURL)
	assert.Empty(t, out.Wallet.KeyPassword)

	out.Server.CORSOrigins[0] = "mutated"
	assert.NotEqual(t, "mutated", cfg.Server.CORSOrigins[0])
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
}
