package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/nftstore/internal/config"
	"github.com/alanyoungcy/nftstore/internal/server"
	"github.com/alanyoungcy/nftstore/internal/server/handler"
	"github.com/alanyoungcy/nftstore/internal/server/ws"
)

const shutdownTimeout = 10 * time.Second

// ServeMode runs the HTTP API and the WebSocket hub until ctx is cancelled.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode", slog.Int("port", a.cfg.Server.Port))

	g, ctx := errgroup.WithContext(ctx)

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Status:         func() any { return deps.Storefront.Session() },
	}, a.logger)
	g.Go(func() error {
		return hub.Run(ctx)
	})

	srv := a.newServer(deps, hub)
	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve mode: http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) newServer(deps *Dependencies, hub *ws.Hub) *server.Server {
	store := deps.Storefront
	maxUpload := a.cfg.Server.MaxUploadMiB << 20

	return server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		Limiter:     deps.RateLimiter,
	}, server.Handlers{
		Health:   handler.NewHealthHandler(deps.Checks, a.logger),
		Config:   handler.NewConfigHandler(publicConfig(a.cfg)),
		Session:  handler.NewSessionHandler(store, a.logger),
		Balance:  handler.NewBalanceHandler(store, a.logger),
		Listings: handler.NewListingHandler(store, a.logger),
		Images:   handler.NewImageHandler(store, maxUpload, a.logger),
		Activity: handler.NewActivityHandler(store, a.logger),
	}, hub, a.logger)
}

func publicConfig(cfg *config.Config) handler.PublicConfig {
	return handler.PublicConfig{
		AppName:            cfg.App.Name,
		AppDescription:     cfg.App.Description,
		NetworkName:        cfg.Chain.NetworkName,
		ChainID:            cfg.Chain.ChainIDHex(),
		ChainIDDecimal:     uint64(cfg.Chain.ChainID),
		CurrencyName:       cfg.Chain.CurrencyName,
		CurrencySymbol:     cfg.Chain.CurrencySymbol,
		Decimals:           cfg.Chain.Decimals,
		RPCURL:             cfg.Chain.RPCURL,
		ExplorerURL:        cfg.Chain.ExplorerURL,
		MarketplaceAddress: cfg.Marketplace.Address,
		DefaultCategory:    cfg.App.DefaultCategory,
		GasLimit:           uint64(cfg.Marketplace.GasLimit),
	}
}

// InspectMode prints the redacted configuration and the current listings,
// then exits. It connects the wallet when one is available so chain listings
// are included; otherwise only the featured catalog is shown.
func (a *App) InspectMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting inspect mode")

	redacted := config.RedactedConfig(a.cfg)
	if err := toml.NewEncoder(a.out).Encode(redacted); err != nil {
		return fmt.Errorf("inspect mode: encode config: %w", err)
	}

	if _, err := deps.Storefront.Connect(ctx); err != nil {
		a.logger.WarnContext(ctx, "inspect mode: wallet not connected, showing featured items only",
			slog.String("error", err.Error()),
		)
	}
	listings, err := deps.Storefront.Listings(ctx)
	if err != nil {
		return fmt.Errorf("inspect mode: %w", err)
	}

	enc := json.NewEncoder(a.out)
	enc.SetIndent("", "  ")
	return enc.Encode(map[string]any{
		"session":  deps.Storefront.Session(),
		"listings": listings,
		"count":    len(listings),
	})
}
