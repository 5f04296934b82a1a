// Package chain opens wallet sessions: it puts the wallet on the target
// chain, obtains account authorization and binds the marketplace contract.
package chain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/sync/singleflight"

	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/units"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

// ErrSuperseded is returned to callers of a connect attempt that finished
// after Disconnect.
var ErrSuperseded = errors.New("chain: connect attempt superseded by disconnect")

// Config describes the target chain and contract.
type Config struct {
	ChainID            uint64
	ChainName          string
	CurrencyName       string
	CurrencySymbol     string
	Decimals           int
	RPCURL             string
	ExplorerURL        string
	MarketplaceAddress common.Address
	ABI                abi.ABI
}

// ChainIDHex is the 0x-prefixed chain id wallets expect.
func (c Config) ChainIDHex() string { return hexutil.EncodeUint64(c.ChainID) }

// AddChainParams is the bundle sent with wallet_addEthereumChain.
func (c Config) AddChainParams() wallet.AddChainParams {
	p := wallet.AddChainParams{
		ChainID:   c.ChainIDHex(),
		ChainName: c.ChainName,
		NativeCurrency: wallet.NativeCurrency{
			Name:     c.CurrencyName,
			Symbol:   c.CurrencySymbol,
			Decimals: c.Decimals,
		},
		RPCURLs: []string{c.RPCURL},
	}
	if c.ExplorerURL != "" {
		p.BlockExplorerURLs = []string{c.ExplorerURL}
	}
	return p
}

// ReaderDialer opens the standalone read-only node client.
type ReaderDialer func(ctx context.Context, url string) (*ethclient.Client, error)

// Connector owns the process-wide Session.
type Connector struct {
	cfg        Config
	open       wallet.Opener
	dialReader ReaderDialer
	logger     *slog.Logger

	flight singleflight.Group

	mu      sync.RWMutex
	session *Session
	gen     uint64

	readerMu sync.Mutex
	reader   *ethclient.Client
}

// NewConnector builds a connector. dialReader may be nil.
func NewConnector(cfg Config, open wallet.Opener, dialReader ReaderDialer, logger *slog.Logger) *Connector {
	if dialReader == nil {
		dialReader = ethclient.DialContext
	}
	return &Connector{
		cfg:        cfg,
		open:       open,
		dialReader: dialReader,
		logger:     logger.With(slog.String("component", "connector")),
	}
}

// Config returns the chain configuration.
func (c *Connector) Config() Config { return c.cfg }

// Current returns the active session or nil.
func (c *Connector) Current() *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// Connect establishes a session and returns the checksummed account.
// Concurrent callers share one attempt; a caller whose ctx ends stops
// waiting but the attempt keeps running for the others. Only one attempt
// runs at a time: a caller arriving after a Disconnect waits for the stale
// attempt to finish and then starts a fresh one.
func (c *Connector) Connect(ctx context.Context) (string, error) {
	c.mu.RLock()
	gen := c.gen
	c.mu.RUnlock()

	for {
		ch := c.flight.DoChan(connectKey, func() (any, error) {
			c.mu.RLock()
			started := c.gen
			c.mu.RUnlock()
			sess, err := c.connect(context.WithoutCancel(ctx), started)
			return attempt{sess: sess, gen: started}, err
		})

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case res := <-ch:
			att := res.Val.(attempt)
			if errors.Is(res.Err, ErrSuperseded) && att.gen < gen {
				continue
			}
			if res.Err != nil {
				return "", res.Err
			}
			return att.sess.Account.Hex(), nil
		}
	}
}

const connectKey = "connect"

// attempt is the outcome of one connect run and the generation it began in.
type attempt struct {
	sess *Session
	gen  uint64
}

// Disconnect drops the session. An attempt still in flight is discarded
// when it completes.
func (c *Connector) Disconnect() {
	c.mu.Lock()
	old := c.session
	c.session = nil
	c.gen++
	c.mu.Unlock()

	if old != nil {
		closeProvider(old.Provider)
		c.logger.Info("wallet disconnected", slog.String("account", old.Account.Hex()))
	}
}

func (c *Connector) connect(ctx context.Context, gen uint64) (*Session, error) {
	provider, err := c.open(ctx)
	if err != nil {
		c.logger.Warn("no wallet provider", slog.String("error", err.Error()))
		return nil, domain.NewError(domain.KindWalletMissing, domain.ErrWalletMissing.Message, err)
	}

	if err := c.ensureChain(ctx, provider); err != nil {
		closeProvider(provider)
		return nil, err
	}

	var accounts []string
	if err := provider.Request(ctx, wallet.MethodRequestAccounts, &accounts); err != nil {
		closeProvider(provider)
		return nil, mapPromptError(err)
	}
	if len(accounts) == 0 || !common.IsHexAddress(accounts[0]) {
		closeProvider(provider)
		return nil, fmt.Errorf("chain: wallet returned no usable account")
	}
	account := common.HexToAddress(accounts[0])

	sess := NewSession(account, c.cfg.ChainID, provider, c.cfg.ABI, c.cfg.MarketplaceAddress)

	c.mu.Lock()
	if c.gen != gen {
		c.mu.Unlock()
		closeProvider(provider)
		return nil, ErrSuperseded
	}
	prev := c.session
	c.session = sess
	c.mu.Unlock()

	if prev != nil && prev.Provider != provider {
		closeProvider(prev.Provider)
	}

	c.logger.Info("wallet connected",
		slog.String("account", account.Hex()),
		slog.Uint64("chain_id", c.cfg.ChainID),
	)
	return sess, nil
}

// ensureChain switches the wallet to the target chain, registering it once
// when the wallet does not know it.
func (c *Connector) ensureChain(ctx context.Context, provider wallet.Provider) error {
	switchParams := wallet.SwitchChainParams{ChainID: c.cfg.ChainIDHex()}

	err := provider.Request(ctx, wallet.MethodSwitchChain, nil, switchParams)
	if err == nil {
		return nil
	}
	switch wallet.Classify(err) {
	case wallet.FailureUnknownChain:
	case wallet.FailureNotWallet:
		// A plain node answers eth_chainId but has no wallet methods.
		c.logger.Warn("endpoint is not a wallet", slog.String("error", err.Error()))
		return domain.NewError(domain.KindWalletMissing, domain.ErrWalletMissing.Message, err)
	default:
		return mapPromptError(err)
	}

	c.logger.Info("chain unknown to wallet, adding", slog.String("chain_id", switchParams.ChainID))
	if err := provider.Request(ctx, wallet.MethodAddChain, nil, c.cfg.AddChainParams()); err != nil {
		return mapPromptError(err)
	}
	if err := provider.Request(ctx, wallet.MethodSwitchChain, nil, switchParams); err != nil {
		return mapPromptError(err)
	}
	return nil
}

// Balance returns the balance of address as a decimal string. It reads
// through the session provider when connected and through a standalone
// node client otherwise.
func (c *Connector) Balance(ctx context.Context, address string) (string, error) {
	wei, err := c.BalanceWei(ctx, address)
	if err != nil {
		return "", err
	}
	return units.FromSmallest(wei, c.cfg.Decimals), nil
}

// BalanceWei is Balance in smallest units.
func (c *Connector) BalanceWei(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, fmt.Errorf("chain: %w: address %q", domain.ErrInvalidInput, address)
	}
	addr := common.HexToAddress(address)

	if sess := c.Current(); sess != nil {
		return balanceOf(ctx, sess.Provider, addr)
	}

	reader, err := c.readerClient(ctx)
	if err != nil {
		return nil, err
	}
	bal, err := reader.BalanceAt(ctx, addr, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: get balance: %w", err)
	}
	return bal, nil
}

// Close releases the session provider and the standalone reader.
func (c *Connector) Close() {
	c.Disconnect()
	c.readerMu.Lock()
	defer c.readerMu.Unlock()
	if c.reader != nil {
		c.reader.Close()
		c.reader = nil
	}
}

func (c *Connector) readerClient(ctx context.Context) (*ethclient.Client, error) {
	c.readerMu.Lock()
	defer c.readerMu.Unlock()
	if c.reader != nil {
		return c.reader, nil
	}
	if c.cfg.RPCURL == "" {
		return nil, fmt.Errorf("chain: no rpc url configured for balance reads")
	}
	client, err := c.dialReader(ctx, c.cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", c.cfg.RPCURL, err)
	}
	c.reader = client
	return client, nil
}

// mapPromptError turns a wallet rejection into UserRejected and leaves any
// other error as is.
func mapPromptError(err error) error {
	if wallet.Classify(err) == wallet.FailureRejected {
		return domain.NewError(domain.KindUserRejected, domain.ErrUserRejected.Message, err)
	}
	return err
}

func closeProvider(p wallet.Provider) {
	if cl, ok := p.(interface{ Close() }); ok {
		cl.Close()
	}
}
