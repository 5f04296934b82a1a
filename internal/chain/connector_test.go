package chain_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/chain/chaintest"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(w *chaintest.Wallet) chain.Config {
	return chain.Config{
		ChainID:            1,
		ChainName:          "Your Network",
		CurrencyName:       "ETH",
		CurrencySymbol:     "ETH",
		Decimals:           18,
		RPCURL:             "http://127.0.0.1:8545",
		ExplorerURL:        "https://etherscan.io",
		MarketplaceAddress: chaintest.Marketplace,
		ABI:                w.ABI(),
	}
}

func newConnector(w *chaintest.Wallet) *chain.Connector {
	return chain.NewConnector(testConfig(w), w.Opener(), nil, testLogger())
}

func TestConnect_KnownChain(t *testing.T) {
	w := chaintest.NewWallet()
	c := newConnector(w)

	addr, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, chaintest.Account.Hex(), addr)

	sess := c.Current()
	require.NotNil(t, sess)
	assert.Equal(t, chaintest.Account, sess.Account)
	assert.Equal(t, uint64(1), sess.ChainID)
	assert.Equal(t, chaintest.Marketplace, sess.Contract.Address())
	assert.Equal(t, chaintest.Account, sess.Signer.Address())

	assert.Equal(t, 1, w.CountCalls(wallet.MethodSwitchChain))
	assert.Equal(t, 0, w.CountCalls(wallet.MethodAddChain))
	assert.Equal(t, 1, w.CountCalls(wallet.MethodRequestAccounts))
}

func TestConnect_UnknownChainAddsExactlyOnce(t *testing.T) {
	w := chaintest.NewWallet()
	w.Forget("0x1")
	c := newConnector(w)

	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, w.CountCalls(wallet.MethodAddChain))
	assert.Equal(t, 2, w.CountCalls(wallet.MethodSwitchChain))
	assert.Equal(t, "0x1", w.ActiveChain())

	var added wallet.AddChainParams
	for _, call := range w.Calls() {
		if call.Method == wallet.MethodAddChain {
			require.NoError(t, wallet.DecodeParam(call.Params, 0, &added))
		}
	}
	assert.Equal(t, "0x1", added.ChainID)
	assert.Equal(t, "Your Network", added.ChainName)
	assert.Equal(t, wallet.NativeCurrency{Name: "ETH", Symbol: "ETH", Decimals: 18}, added.NativeCurrency)
	assert.Equal(t, []string{"http://127.0.0.1:8545"}, added.RPCURLs)
	assert.Equal(t, []string{"https://etherscan.io"}, added.BlockExplorerURLs)
}

func TestConnect_Rejections(t *testing.T) {
	tests := []struct {
		name  string
		setup func(w *chaintest.Wallet)
	}{
		{name: "switch rejected", setup: func(w *chaintest.Wallet) { w.RejectSwitch = true }},
		{name: "add rejected", setup: func(w *chaintest.Wallet) { w.Forget("0x1"); w.RejectAdd = true }},
		{name: "accounts rejected", setup: func(w *chaintest.Wallet) { w.RejectAccounts = true }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := chaintest.NewWallet()
			tt.setup(w)
			c := newConnector(w)

			_, err := c.Connect(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrUserRejected)
			assert.Nil(t, c.Current())
		})
	}
}

func TestConnect_WalletMissing(t *testing.T) {
	w := chaintest.NewWallet()
	open := func(context.Context) (wallet.Provider, error) { return nil, wallet.ErrNoProvider }
	c := chain.NewConnector(testConfig(w), open, nil, testLogger())

	_, err := c.Connect(context.Background())
	assert.ErrorIs(t, err, domain.ErrWalletMissing)
	assert.ErrorIs(t, err, wallet.ErrNoProvider)
	assert.Equal(t, domain.KindWalletMissing, domain.KindOf(err))
}

func TestConnect_OtherSwitchErrorPropagates(t *testing.T) {
	w := chaintest.NewWallet()
	pending := wallet.NewProviderError(-32002, "Request of type 'wallet_switchEthereumChain' already pending")
	w.FailNext(wallet.MethodSwitchChain, pending)
	c := newConnector(w)

	_, err := c.Connect(context.Background())
	assert.Same(t, pending, err)
	assert.Equal(t, domain.KindUnknown, domain.KindOf(err))
	assert.Equal(t, 0, w.CountCalls(wallet.MethodAddChain))
}

func TestConnect_SharesInFlightAttempt(t *testing.T) {
	w := chaintest.NewWallet()
	w.Gate = make(chan struct{})
	c := newConnector(w)

	const callers = 3
	var wg sync.WaitGroup
	results := make([]string, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = c.Connect(context.Background())
		}(i)
	}

	require.Eventually(t, func() bool {
		return w.CountCalls(wallet.MethodRequestAccounts) == 1
	}, time.Second, time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(w.Gate)
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, chaintest.Account.Hex(), results[i])
	}
	assert.Equal(t, 1, w.CountCalls(wallet.MethodSwitchChain))
	assert.Equal(t, 1, w.CountCalls(wallet.MethodRequestAccounts))
}

func TestConnect_WaiterCancelDoesNotAbortAttempt(t *testing.T) {
	w := chaintest.NewWallet()
	w.Gate = make(chan struct{})
	c := newConnector(w)

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		_, err := c.Connect(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return w.CountCalls(wallet.MethodRequestAccounts) == 1
	}, time.Second, time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-errCh, context.Canceled)

	close(w.Gate)
	require.Eventually(t, func() bool { return c.Current() != nil }, time.Second, time.Millisecond)
}

func TestDisconnect_DiscardsLateResult(t *testing.T) {
	w := chaintest.NewWallet()
	w.Gate = make(chan struct{})
	c := newConnector(w)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		return w.CountCalls(wallet.MethodRequestAccounts) == 1
	}, time.Second, time.Millisecond)
	c.Disconnect()
	close(w.Gate)

	assert.ErrorIs(t, <-errCh, chain.ErrSuperseded)
	assert.Nil(t, c.Current())
	assert.Equal(t, 1, w.Closed())

	// A fresh attempt after the disconnect succeeds.
	_, err := c.Connect(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, c.Current())
}

func TestConnect_AfterDisconnectWaitsForStaleAttempt(t *testing.T) {
	w := chaintest.NewWallet()
	w.Gate = make(chan struct{})
	c := newConnector(w)

	staleErr := make(chan error, 1)
	go func() {
		_, err := c.Connect(context.Background())
		staleErr <- err
	}()
	require.Eventually(t, func() bool {
		return w.CountCalls(wallet.MethodRequestAccounts) == 1
	}, time.Second, time.Millisecond)

	c.Disconnect()

	type result struct {
		addr string
		err  error
	}
	fresh := make(chan result, 1)
	go func() {
		addr, err := c.Connect(context.Background())
		fresh <- result{addr, err}
	}()

	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, 1, w.CountCalls(wallet.MethodSwitchChain), "no second prompt while the first is open")

	close(w.Gate)
	assert.ErrorIs(t, <-staleErr, chain.ErrSuperseded)

	res := <-fresh
	require.NoError(t, res.err)
	assert.Equal(t, chaintest.Account.Hex(), res.addr)
	assert.NotNil(t, c.Current())
	assert.Equal(t, 2, w.CountCalls(wallet.MethodSwitchChain))
}

func TestConnect_NodeWithoutWalletMethods(t *testing.T) {
	w := chaintest.NewWallet()
	w.FailNext(wallet.MethodSwitchChain, wallet.NewProviderError(wallet.CodeMethodNotFound,
		"the method wallet_switchEthereumChain does not exist/is not available"))
	c := newConnector(w)

	_, err := c.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, domain.KindWalletMissing, domain.KindOf(err))
	assert.Equal(t, 0, w.CountCalls(wallet.MethodAddChain))
	assert.Equal(t, 1, w.Closed())
	assert.Nil(t, c.Current())
}

func TestBalance_ThroughSession(t *testing.T) {
	w := chaintest.NewWallet()
	c := newConnector(w)
	_, err := c.Connect(context.Background())
	require.NoError(t, err)

	bal, err := c.Balance(context.Background(), chaintest.Account.Hex())
	require.NoError(t, err)
	assert.Equal(t, "100.0", bal)
}

type balanceNode struct{}

func (balanceNode) GetBalance(_ common.Address, _ string) *hexutil.Big {
	return (*hexutil.Big)(big.NewInt(1_500_000_000_000_000_000))
}

func TestBalance_WithoutSession(t *testing.T) {
	srv := rpc.NewServer()
	require.NoError(t, srv.RegisterName("eth", balanceNode{}))
	t.Cleanup(srv.Stop)

	dials := 0
	dial := func(context.Context, string) (*ethclient.Client, error) {
		dials++
		return ethclient.NewClient(rpc.DialInProc(srv)), nil
	}

	w := chaintest.NewWallet()
	c := chain.NewConnector(testConfig(w), w.Opener(), dial, testLogger())
	t.Cleanup(c.Close)

	for i := 0; i < 2; i++ {
		bal, err := c.Balance(context.Background(), chaintest.Other.Hex())
		require.NoError(t, err)
		assert.Equal(t, "1.5", bal)
	}
	assert.Equal(t, 1, dials)
	assert.Empty(t, w.Calls())
}

func TestBalance_InvalidAddress(t *testing.T) {
	c := newConnector(chaintest.NewWallet())
	_, err := c.Balance(context.Background(), "not-an-address")
	assert.True(t, errors.Is(err, domain.ErrInvalidInput))
}
