package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ethereum/go-ethereum/common"

	s3blob "github.com/alanyoungcy/nftstore/internal/blob/s3"
	"github.com/alanyoungcy/nftstore/internal/cache/memory"
	"github.com/alanyoungcy/nftstore/internal/cache/redis"
	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/config"
	"github.com/alanyoungcy/nftstore/internal/contract"
	"github.com/alanyoungcy/nftstore/internal/crypto"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/market"
	"github.com/alanyoungcy/nftstore/internal/notify"
	"github.com/alanyoungcy/nftstore/internal/server/handler"
	"github.com/alanyoungcy/nftstore/internal/service"
	"github.com/alanyoungcy/nftstore/internal/store/postgres"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

// Dependencies bundles everything the operating modes need. It is constructed
// by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	Connector  *chain.Connector
	Storefront *service.Storefront

	// Optional backends; nil when disabled.
	ActivityStore domain.ActivityStore
	AuditStore    domain.AuditStore
	RateLimiter   domain.RateLimiter
	BlobWriter    domain.BlobWriter

	// SignalBus is Redis pub/sub when enabled, in-process otherwise.
	SignalBus domain.SignalBus
	Notifier  *notify.Notifier

	// Checks are the backend probes reported by /api/health.
	Checks map[string]handler.Check
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{Checks: make(map[string]handler.Check)}

	// --- PostgreSQL ---
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.ActivityStore = postgres.NewActivityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.Checks["postgres"] = pgClient.Ping
	}

	// --- Redis ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
			Prefix:     "nftstore:",
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.RateLimiter = redis.NewRateLimiter(redisClient)
		deps.Checks["redis"] = redisClient.Ping
	} else {
		deps.SignalBus = memory.NewSignalBus()
	}

	// --- S3 blob storage ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
			PublicBaseURL:  cfg.S3.PublicBaseURL,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.BlobWriter = s3blob.NewWriter(s3Client)
		deps.Checks["s3"] = s3Client.Health
	}

	deps.Notifier = notify.NewNotifier(buildSenders(cfg.Notify), cfg.Notify.Events, logger)

	// --- Chain ---
	chainCfg, err := chainConfig(cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	opener, closeWallet, err := walletOpener(cfg, chainCfg, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	if closeWallet != nil {
		closers = append(closers, closeWallet)
	}
	deps.Connector = chain.NewConnector(chainCfg, opener, nil, logger)
	closers = append(closers, deps.Connector.Close)

	// --- Storefront ---
	opts, err := storefrontOptions(cfg)
	if err != nil {
		return fail(fmt.Errorf("wire: %w", err))
	}
	deps.Storefront = service.NewStorefront(deps.Connector, opts, service.Deps{
		Activity: deps.ActivityStore,
		Audit:    deps.AuditStore,
		Bus:      deps.SignalBus,
		Notifier: deps.Notifier,
		Blobs:    deps.BlobWriter,
	}, logger)

	return deps, cleanup, nil
}

func buildSenders(cfg config.NotifyConfig) []notify.Sender {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	return senders
}

// chainConfig resolves the target chain and the marketplace binding.
func chainConfig(cfg *config.Config) (chain.Config, error) {
	if !common.IsHexAddress(cfg.Marketplace.Address) {
		return chain.Config{}, fmt.Errorf("marketplace address %q is not a hex address", cfg.Marketplace.Address)
	}
	parsed, err := contract.LoadABI(cfg.Marketplace.ABIPath)
	if err != nil {
		return chain.Config{}, err
	}
	return chain.Config{
		ChainID:            uint64(cfg.Chain.ChainID),
		ChainName:          cfg.Chain.NetworkName,
		CurrencyName:       cfg.Chain.CurrencyName,
		CurrencySymbol:     cfg.Chain.CurrencySymbol,
		Decimals:           cfg.Chain.Decimals,
		RPCURL:             cfg.Chain.RPCURL,
		ExplorerURL:        cfg.Chain.ExplorerURL,
		MarketplaceAddress: common.HexToAddress(cfg.Marketplace.Address),
		ABI:                parsed,
	}, nil
}

// walletOpener selects the wallet provider. The key wallet knows the target
// chain from the start; an external wallet may have to add it on connect.
func walletOpener(cfg *config.Config, chainCfg chain.Config, logger *slog.Logger) (wallet.Opener, func(), error) {
	switch cfg.Wallet.Provider {
	case "key":
		key, err := crypto.LoadKey(crypto.KeySource{
			PrivateKey: cfg.Wallet.PrivateKey,
			KeyFile:    cfg.Wallet.KeyFile,
			Password:   cfg.Wallet.KeyPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		var approver wallet.Approver = denyAll
		if cfg.Wallet.AutoApprove {
			approver = wallet.AutoApprove
		}
		kp, err := wallet.NewKeyProvider(wallet.KeyProviderConfig{
			Key:      key,
			Approver: approver,
			Chains:   []wallet.AddChainParams{chainCfg.AddChainParams()},
			Logger:   logger,
		})
		if err != nil {
			return nil, nil, err
		}
		logger.Info("key wallet loaded", slog.String("account", kp.Address().Hex()))
		return kp.Opener(), kp.Close, nil
	default:
		// chain.rpc_url is a node, not a wallet; an empty wallet.rpc_url
		// means no wallet.
		return wallet.RPCOpener(cfg.Wallet.RPCURL), nil, nil
	}
}

// denyAll is the approver of a key wallet nobody may prompt.
func denyAll(context.Context, wallet.ApprovalRequest) bool { return false }

func storefrontOptions(cfg *config.Config) (service.Options, error) {
	ids, err := market.NewIDSource(cfg.Marketplace.IDSource)
	if err != nil {
		return service.Options{}, err
	}
	mopts := market.DefaultOptions()
	mopts.GasLimit = uint64(cfg.Marketplace.GasLimit)
	mopts.Confirmations = uint64(cfg.Marketplace.Confirmations)
	mopts.PollInterval = cfg.Marketplace.PollInterval.Duration
	mopts.Decimals = cfg.Chain.Decimals
	mopts.CurrencySymbol = cfg.Chain.CurrencySymbol
	mopts.NetworkName = cfg.Chain.NetworkName
	mopts.IDs = ids

	opts := service.Options{
		Market:          mopts,
		DefaultCategory: cfg.App.DefaultCategory,
	}
	if cfg.Featured.Enabled {
		opts.FeaturedCreator = cfg.Featured.Creator
		for _, it := range cfg.Featured.Items {
			opts.Featured = append(opts.Featured, service.FeaturedItem{
				Name:     it.Name,
				Price:    it.Price,
				Image:    it.Image,
				Category: it.Category,
			})
		}
	}
	return opts, nil
}
