package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/alanyoungcy/nftstore/internal/contract"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

// Session is an authorized wallet connection bound to the marketplace
// contract. A Session is immutable once built.
type Session struct {
	Account  common.Address
	ChainID  uint64
	Provider wallet.Provider
	Signer   *Signer
	Contract *contract.Marketplace
}

// NewSession binds the marketplace at address to provider on behalf of
// account.
func NewSession(account common.Address, chainID uint64, provider wallet.Provider, parsed abi.ABI, address common.Address) *Session {
	signer := &Signer{account: account, provider: provider}
	backend := &providerBackend{provider: provider, signer: signer}
	return &Session{
		Account:  account,
		ChainID:  chainID,
		Provider: provider,
		Signer:   signer,
		Contract: contract.NewMarketplace(address, parsed, backend),
	}
}

// Signer submits transactions from one account through the wallet, which
// prompts and signs.
type Signer struct {
	account  common.Address
	provider wallet.Provider
}

// Address returns the signing account.
func (s *Signer) Address() common.Address { return s.account }

// SendTransaction asks the wallet to sign and broadcast msg. msg.From is
// ignored in favour of the session account.
func (s *Signer) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	tx := wallet.TxParams{
		From: s.account,
		To:   msg.To,
		Data: msg.Data,
	}
	if msg.Value != nil {
		tx.Value = (*hexutil.Big)(msg.Value)
	}
	if msg.Gas > 0 {
		gas := hexutil.Uint64(msg.Gas)
		tx.Gas = &gas
	}
	if msg.GasPrice != nil {
		tx.GasPrice = (*hexutil.Big)(msg.GasPrice)
	}

	var hash common.Hash
	if err := s.provider.Request(ctx, wallet.MethodSendTransaction, &hash, tx); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// providerBackend serves contract reads and receipts through the wallet
// provider and routes writes to the signer.
type providerBackend struct {
	provider wallet.Provider
	signer   *Signer
}

func (b *providerBackend) CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error) {
	var out hexutil.Bytes
	call := wallet.TxParams{From: msg.From, To: msg.To, Data: msg.Data}
	if err := b.provider.Request(ctx, wallet.MethodCall, &out, call, "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *providerBackend) SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error) {
	return b.signer.SendTransaction(ctx, msg)
}

func (b *providerBackend) TransactionReceipt(ctx context.Context, hash common.Hash) (*contract.Receipt, error) {
	var r *contract.Receipt
	if err := b.provider.Request(ctx, wallet.MethodGetReceipt, &r, hash); err != nil {
		return nil, err
	}
	return r, nil
}

func (b *providerBackend) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := b.provider.Request(ctx, wallet.MethodBlockNumber, &n); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// balanceOf reads an account balance through a provider.
func balanceOf(ctx context.Context, p wallet.Provider, addr common.Address) (*big.Int, error) {
	var bal hexutil.Big
	if err := p.Request(ctx, wallet.MethodGetBalance, &bal, addr, "latest"); err != nil {
		return nil, fmt.Errorf("chain: get balance: %w", err)
	}
	return bal.ToInt(), nil
}
