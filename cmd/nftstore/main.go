// Command nftstore is the backend entry point for the NFT storefront. It loads
// configuration, validates it, wires dependencies, sets up signal handling, and
// starts the application in the configured mode.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alanyoungcy/nftstore/internal/app"
	"github.com/alanyoungcy/nftstore/internal/config"
	"github.com/alanyoungcy/nftstore/internal/crypto"
)

func main() {
	configPath := flag.String("config", "config.toml", "path to configuration file")
	encryptKey := flag.String("encrypt-key", "", "write wallet.private_key, sealed with wallet.key_password, to this file and exit")
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("failed to load config",
			slog.String("path", *configPath),
			slog.String("error", err.Error()),
		)
		os.Exit(1)
	}

	logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: parseLevel(cfg.LogLevel),
	}))
	slog.SetDefault(logger)

	if *encryptKey != "" {
		if err := writeKeyFile(*encryptKey, cfg.Wallet); err != nil {
			logger.Error("failed to encrypt wallet key", slog.String("error", err.Error()))
			os.Exit(1)
		}
		logger.Info("wallet key file written", slog.String("path", *encryptKey))
		return
	}

	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("nftstore starting",
		slog.String("mode", cfg.Mode),
		slog.String("config", *configPath),
		slog.String("network", cfg.Chain.NetworkName),
	)

	application := app.New(cfg, logger)
	defer application.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := application.Run(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("application shut down gracefully")
		} else {
			logger.Error("application exited with error",
				slog.String("error", err.Error()),
			)
			fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
			application.Close()
			os.Exit(1)
		}
	}

	logger.Info("nftstore stopped")
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func writeKeyFile(path string, w config.WalletConfig) error {
	if w.PrivateKey == "" {
		return errors.New("wallet.private_key (or NFTSTORE_WALLET_PRIVATE_KEY) must be set")
	}
	data, err := crypto.EncryptKey(w.PrivateKey, w.KeyPassword, 0)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
