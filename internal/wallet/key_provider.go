package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"log/slog"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
)

// ApprovalRequest is shown to the Approver before the key wallet authorizes
// accounts, changes chains or signs.
type ApprovalRequest struct {
	Method  string
	Account common.Address
	ChainID uint64
	Chain   *AddChainParams
	Tx      *TxParams
}

// Approver decides whether the key wallet may proceed. Returning false
// surfaces as a 4001 user-rejected error.
type Approver func(ctx context.Context, req ApprovalRequest) bool

// AutoApprove approves everything.
func AutoApprove(context.Context, ApprovalRequest) bool { return true }

// Dialer opens the upstream node connection for a chain.
type Dialer func(ctx context.Context, url string) (*rpc.Client, error)

// KeyProviderConfig configures NewKeyProvider.
type KeyProviderConfig struct {
	Key      *ecdsa.PrivateKey
	Approver Approver
	// Chains the wallet knows before any wallet_addEthereumChain. The first
	// entry is active initially.
	Chains []AddChainParams
	Dialer Dialer
	Logger *slog.Logger
}

type knownChain struct {
	params AddChainParams
	client *rpc.Client
}

// KeyProvider is an in-process wallet holding one key. Signing happens
// locally; reads are forwarded to the active chain's node.
type KeyProvider struct {
	key     *ecdsa.PrivateKey
	addr    common.Address
	approve Approver
	dial    Dialer
	logger  *slog.Logger

	mu         sync.Mutex
	chains     map[uint64]*knownChain
	active     uint64
	authorized bool
	sendMu     sync.Mutex
}

// NewKeyProvider builds a key wallet.
func NewKeyProvider(cfg KeyProviderConfig) (*KeyProvider, error) {
	if cfg.Key == nil {
		return nil, fmt.Errorf("wallet: key provider needs a key")
	}
	p := &KeyProvider{
		key:     cfg.Key,
		addr:    ethcrypto.PubkeyToAddress(cfg.Key.PublicKey),
		approve: cfg.Approver,
		dial:    cfg.Dialer,
		logger:  cfg.Logger,
		chains:  make(map[uint64]*knownChain),
	}
	if p.approve == nil {
		p.approve = AutoApprove
	}
	if p.dial == nil {
		p.dial = rpc.DialContext
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	p.logger = p.logger.With(slog.String("component", "key_wallet"))

	for i, c := range cfg.Chains {
		id, err := hexutil.DecodeUint64(c.ChainID)
		if err != nil {
			return nil, fmt.Errorf("wallet: chain %q: %w", c.ChainID, err)
		}
		p.chains[id] = &knownChain{params: c}
		if i == 0 {
			p.active = id
		}
	}
	return p, nil
}

// Address returns the wallet account.
func (p *KeyProvider) Address() common.Address { return p.addr }

// Opener returns an Opener that always yields this provider.
func (p *KeyProvider) Opener() Opener {
	return func(context.Context) (Provider, error) { return p, nil }
}

func (p *KeyProvider) Request(ctx context.Context, method string, result any, params ...any) error {
	switch method {
	case MethodRequestAccounts:
		return p.requestAccounts(ctx, result)
	case MethodAccounts:
		p.mu.Lock()
		ok := p.authorized
		p.mu.Unlock()
		if !ok {
			return Assign(result, []string{})
		}
		return Assign(result, []string{p.addr.Hex()})
	case MethodChainID:
		p.mu.Lock()
		id := p.active
		p.mu.Unlock()
		return Assign(result, hexutil.EncodeUint64(id))
	case MethodSwitchChain:
		var sp SwitchChainParams
		if err := DecodeParam(params, 0, &sp); err != nil {
			return err
		}
		return p.switchChain(ctx, sp, result)
	case MethodAddChain:
		var ap AddChainParams
		if err := DecodeParam(params, 0, &ap); err != nil {
			return err
		}
		return p.addChain(ctx, ap, result)
	case MethodSendTransaction:
		var tp TxParams
		if err := DecodeParam(params, 0, &tp); err != nil {
			return err
		}
		return p.sendTransaction(ctx, tp, result)
	}

	client, err := p.activeClient(ctx)
	if err != nil {
		return err
	}
	return fromRPC(client.CallContext(ctx, result, method, params...))
}

// Close drops upstream connections and revokes account access, so the next
// session prompts the approver again.
func (p *KeyProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.authorized = false
	for _, c := range p.chains {
		if c.client != nil {
			c.client.Close()
			c.client = nil
		}
	}
}

func (p *KeyProvider) requestAccounts(ctx context.Context, result any) error {
	p.mu.Lock()
	ok := p.authorized
	chainID := p.active
	p.mu.Unlock()

	if !ok {
		if !p.approve(ctx, ApprovalRequest{Method: MethodRequestAccounts, Account: p.addr, ChainID: chainID}) {
			return NewProviderError(CodeUserRejected, "User rejected the request.")
		}
		p.mu.Lock()
		p.authorized = true
		p.mu.Unlock()
		p.logger.Info("accounts authorized", slog.String("account", p.addr.Hex()))
	}
	return Assign(result, []string{p.addr.Hex()})
}

func (p *KeyProvider) switchChain(ctx context.Context, sp SwitchChainParams, result any) error {
	id, err := hexutil.DecodeUint64(sp.ChainID)
	if err != nil {
		return NewProviderError(-32602, fmt.Sprintf("invalid chainId %q", sp.ChainID))
	}

	p.mu.Lock()
	_, known := p.chains[id]
	current := p.active
	p.mu.Unlock()

	if !known {
		return NewProviderError(CodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %q. Try adding the chain using wallet_addEthereumChain first.", sp.ChainID))
	}
	if id != current {
		if !p.approve(ctx, ApprovalRequest{Method: MethodSwitchChain, Account: p.addr, ChainID: id}) {
			return NewProviderError(CodeUserRejected, "User rejected the request.")
		}
		p.mu.Lock()
		p.active = id
		p.mu.Unlock()
		p.logger.Info("switched chain", slog.Uint64("chain_id", id))
	}
	return Assign(result, nil)
}

func (p *KeyProvider) addChain(ctx context.Context, ap AddChainParams, result any) error {
	id, err := hexutil.DecodeUint64(ap.ChainID)
	if err != nil {
		return NewProviderError(-32602, fmt.Sprintf("invalid chainId %q", ap.ChainID))
	}
	if len(ap.RPCURLs) == 0 {
		return NewProviderError(-32602, "rpcUrls must not be empty")
	}
	if !p.approve(ctx, ApprovalRequest{Method: MethodAddChain, Account: p.addr, ChainID: id, Chain: &ap}) {
		return NewProviderError(CodeUserRejected, "User rejected the request.")
	}

	p.mu.Lock()
	if old, ok := p.chains[id]; ok && old.client != nil {
		old.client.Close()
	}
	p.chains[id] = &knownChain{params: ap}
	p.mu.Unlock()

	p.logger.Info("chain added", slog.Uint64("chain_id", id), slog.String("name", ap.ChainName))
	return Assign(result, nil)
}

func (p *KeyProvider) sendTransaction(ctx context.Context, tp TxParams, result any) error {
	p.mu.Lock()
	ok := p.authorized
	chainID := p.active
	p.mu.Unlock()

	if !ok {
		return NewProviderError(CodeUnauthorized, "The requested account has not been authorized by the user.")
	}
	if tp.From != p.addr {
		return NewProviderError(CodeUnauthorized, fmt.Sprintf("unknown account %s", tp.From.Hex()))
	}
	if !p.approve(ctx, ApprovalRequest{Method: MethodSendTransaction, Account: p.addr, ChainID: chainID, Tx: &tp}) {
		return NewProviderError(CodeUserRejected, "User denied transaction signature.")
	}

	client, err := p.activeClient(ctx)
	if err != nil {
		return err
	}
	ec := ethclient.NewClient(client)

	// Serialize nonce selection for this account.
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	nonce, err := ec.PendingNonceAt(ctx, p.addr)
	if err != nil {
		return fromRPC(err)
	}
	gasPrice := (*big.Int)(tp.GasPrice)
	if gasPrice == nil {
		if gasPrice, err = ec.SuggestGasPrice(ctx); err != nil {
			return fromRPC(err)
		}
	}
	value := (*big.Int)(tp.Value)
	if value == nil {
		value = new(big.Int)
	}
	var gas uint64
	if tp.Gas != nil {
		gas = uint64(*tp.Gas)
	} else {
		if gas, err = ec.EstimateGas(ctx, callMsg(p.addr, tp, value)); err != nil {
			return fromRPC(err)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       tp.To,
		Value:    value,
		Data:     tp.Data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(new(big.Int).SetUint64(chainID)), p.key)
	if err != nil {
		return fmt.Errorf("wallet: sign: %w", err)
	}
	if err := ec.SendTransaction(ctx, signed); err != nil {
		return fromRPC(err)
	}

	p.logger.Info("transaction sent",
		slog.String("hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
		slog.Uint64("chain_id", chainID),
	)
	return Assign(result, signed.Hash())
}

func (p *KeyProvider) activeClient(ctx context.Context) (*rpc.Client, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.chains[p.active]
	if !ok {
		return nil, NewProviderError(CodeDisconnected, "no active chain")
	}
	if c.client != nil {
		return c.client, nil
	}
	if len(c.params.RPCURLs) == 0 {
		return nil, NewProviderError(CodeDisconnected, fmt.Sprintf("chain %s has no rpc url", c.params.ChainID))
	}
	client, err := p.dial(ctx, c.params.RPCURLs[0])
	if err != nil {
		return nil, fmt.Errorf("wallet: dial chain %s: %w", c.params.ChainID, err)
	}
	c.client = client
	return client, nil
}

func callMsg(from common.Address, tp TxParams, value *big.Int) ethereum.CallMsg {
	return ethereum.CallMsg{From: from, To: tp.To, Value: value, Data: tp.Data}
}
