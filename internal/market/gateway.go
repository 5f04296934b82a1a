// Package market forwards storefront operations to the marketplace contract
// bound in a chain.Session.
package market

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/contract"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/units"
)

// Options tune gateway transactions.
type Options struct {
	GasLimit uint64
	// Confirmations to await after inclusion. Zero returns right after
	// submission.
	Confirmations  uint64
	PollInterval   time.Duration
	Decimals       int
	CurrencySymbol string
	NetworkName    string
	IDs            IDSource
}

// DefaultOptions matches the storefront defaults.
func DefaultOptions() Options {
	return Options{
		GasLimit:       500_000,
		Confirmations:  1,
		PollInterval:   2 * time.Second,
		Decimals:       units.EtherDecimals,
		CurrencySymbol: "ETH",
		NetworkName:    "Your Network",
		IDs:            UUIDSource{},
	}
}

var errReverted = errors.New("market: transaction reverted")

// Gateway runs marketplace operations on behalf of one session.
type Gateway struct {
	sess   *chain.Session
	opts   Options
	logger *slog.Logger
}

// NewGateway builds a gateway. sess may be nil, in which case every
// operation fails with NotConnected.
func NewGateway(sess *chain.Session, opts Options, logger *slog.Logger) *Gateway {
	if opts.IDs == nil {
		opts.IDs = UUIDSource{}
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 2 * time.Second
	}
	return &Gateway{
		sess:   sess,
		opts:   opts,
		logger: logger.With(slog.String("component", "market")),
	}
}

// CreateListing lists a new item priced in the native currency.
func (g *Gateway) CreateListing(ctx context.Context, name, price, category, imageURI string) (*domain.TxHandle, error) {
	if g.sess == nil {
		return nil, domain.ErrNotConnected
	}

	wei, err := units.ToSmallest(price, g.opts.Decimals)
	if err != nil {
		return nil, generic(opCreate, err)
	}
	itemID := g.opts.IDs.Next()

	opts := contract.TransactOpts{From: g.sess.Account, Value: new(big.Int), GasLimit: g.opts.GasLimit}
	c := g.sess.Contract
	hash, err := c.CreateMarketItem(ctx, opts, c.Address(), itemID, wei, category, imageURI, name)
	if err != nil {
		g.logger.Warn("create listing rejected", slog.String("error", err.Error()))
		return nil, g.translate(opCreate, err)
	}
	g.logger.Info("create listing submitted", slog.String("hash", hash.Hex()), slog.String("item_id", itemID.String()))

	handle, err := g.confirm(ctx, hash, opts)
	if err != nil {
		return nil, generic(opCreate, err)
	}
	handle.ItemID = itemID.String()
	return handle, nil
}

// BuyListing purchases itemID, paying price.
func (g *Gateway) BuyListing(ctx context.Context, itemID *big.Int, price string) (*domain.TxHandle, error) {
	if g.sess == nil {
		return nil, domain.ErrNotConnected
	}
	if itemID == nil || itemID.Sign() < 0 {
		return nil, generic(opBuy, fmt.Errorf("market: invalid item id"))
	}

	wei, err := units.ToSmallest(price, g.opts.Decimals)
	if err != nil {
		return nil, generic(opBuy, err)
	}

	opts := contract.TransactOpts{From: g.sess.Account, Value: wei, GasLimit: g.opts.GasLimit}
	c := g.sess.Contract
	hash, err := c.CreateMarketSale(ctx, opts, c.Address(), itemID)
	if err != nil {
		g.logger.Warn("buy listing rejected", slog.String("item_id", itemID.String()), slog.String("error", err.Error()))
		return nil, g.translate(opBuy, err)
	}
	g.logger.Info("buy listing submitted", slog.String("hash", hash.Hex()), slog.String("item_id", itemID.String()))

	handle, err := g.confirm(ctx, hash, opts)
	if err != nil {
		return nil, generic(opBuy, err)
	}
	handle.ItemID = itemID.String()
	return handle, nil
}

// FetchAllListings returns the contract's unsold items. Prices stay in
// smallest units.
func (g *Gateway) FetchAllListings(ctx context.Context) ([]contract.MarketItem, error) {
	if g.sess == nil {
		return nil, domain.ErrNotConnected
	}
	items, err := g.sess.Contract.FetchMarketItems(ctx, contract.CallOpts{From: g.sess.Account})
	if err != nil {
		return nil, fetchFailed("market items", err)
	}
	return items, nil
}

// FetchMyListings returns the items owned by the session account.
func (g *Gateway) FetchMyListings(ctx context.Context) ([]contract.MarketItem, error) {
	if g.sess == nil {
		return nil, domain.ErrNotConnected
	}
	items, err := g.sess.Contract.FetchMyNFTs(ctx, contract.CallOpts{From: g.sess.Account})
	if err != nil {
		return nil, fetchFailed("your NFTs", err)
	}
	return items, nil
}

// confirm waits for the configured number of confirmations and builds the
// handle. A receipt with failed status is an error.
func (g *Gateway) confirm(ctx context.Context, hash common.Hash, opts contract.TransactOpts) (*domain.TxHandle, error) {
	handle := &domain.TxHandle{
		Hash:     hash.Hex(),
		From:     opts.From.Hex(),
		To:       g.sess.Contract.Address().Hex(),
		Value:    opts.Value.String(),
		GasLimit: opts.GasLimit,
	}
	if g.opts.Confirmations == 0 {
		return handle, nil
	}

	receipt, err := g.waitMined(ctx, hash)
	if err != nil {
		return nil, err
	}
	handle.BlockNumber = uint64(receipt.BlockNumber)
	handle.Status = uint64(receipt.Status)
	if receipt.Status != contract.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", errReverted, hash.Hex())
	}
	return handle, nil
}

func (g *Gateway) waitMined(ctx context.Context, hash common.Hash) (*contract.Receipt, error) {
	backend := g.sess.Contract.Backend()
	ticker := time.NewTicker(g.opts.PollInterval)
	defer ticker.Stop()

	for {
		receipt, err := backend.TransactionReceipt(ctx, hash)
		if err != nil {
			return nil, fmt.Errorf("market: receipt %s: %w", hash.Hex(), err)
		}
		if receipt != nil {
			if g.opts.Confirmations <= 1 {
				return receipt, nil
			}
			head, err := backend.BlockNumber(ctx)
			if err != nil {
				return nil, fmt.Errorf("market: block number: %w", err)
			}
			mined := uint64(receipt.BlockNumber)
			if head >= mined && head-mined+1 >= g.opts.Confirmations {
				return receipt, nil
			}
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}
