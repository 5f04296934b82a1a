// Package contract binds the NFT marketplace contract: ABI encoding of the
// four entry points and decoding of MarketItem results.
package contract

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// MarketItem mirrors the contract's MarketItem struct. Field order follows
// the tuple components.
type MarketItem struct {
	ItemId      *big.Int
	NftContract common.Address
	TokenId     *big.Int
	Seller      common.Address
	Owner       common.Address
	Price       *big.Int
	Sold        bool
	Category    string
	Image       string
	Name        string
}

// Receipt is the subset of a transaction receipt the marketplace inspects.
type Receipt struct {
	TxHash      common.Hash    `json:"transactionHash"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	Status      hexutil.Uint64 `json:"status"`
	GasUsed     hexutil.Uint64 `json:"gasUsed"`
}

// Receipt statuses.
const (
	ReceiptStatusFailed     = 0
	ReceiptStatusSuccessful = 1
)

// Backend is what the binding needs from a chain connection. Sends are
// signed by whoever sits behind the backend.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
	SendTransaction(ctx context.Context, msg ethereum.CallMsg) (common.Hash, error)
	// TransactionReceipt returns nil, nil while the transaction is pending.
	TransactionReceipt(ctx context.Context, hash common.Hash) (*Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
}

// CallOpts parameterize a read-only call.
type CallOpts struct {
	From common.Address
}

// TransactOpts parameterize a state-changing call.
type TransactOpts struct {
	From     common.Address
	Value    *big.Int
	GasLimit uint64
}

// Marketplace is a handle to a deployed marketplace contract.
type Marketplace struct {
	address common.Address
	abi     abi.ABI
	backend Backend
}

var ErrNoCode = errors.New("contract: empty call result (no contract at address?)")

// NewMarketplace binds the contract at address.
func NewMarketplace(address common.Address, parsed abi.ABI, backend Backend) *Marketplace {
	return &Marketplace{address: address, abi: parsed, backend: backend}
}

// Address returns the bound contract address.
func (m *Marketplace) Address() common.Address { return m.address }

// Backend returns the chain connection behind the handle.
func (m *Marketplace) Backend() Backend { return m.backend }

// ABI returns the parsed contract interface.
func (m *Marketplace) ABI() abi.ABI { return m.abi }

// CreateMarketItem lists a new item. nftContract is the token contract the
// item belongs to.
func (m *Marketplace) CreateMarketItem(ctx context.Context, opts TransactOpts, nftContract common.Address, tokenID, price *big.Int, category, image, name string) (common.Hash, error) {
	return m.transact(ctx, opts, MethodCreateMarketItem, nftContract, tokenID, price, category, image, name)
}

// CreateMarketSale buys itemID; opts.Value must carry the asking price.
func (m *Marketplace) CreateMarketSale(ctx context.Context, opts TransactOpts, nftContract common.Address, itemID *big.Int) (common.Hash, error) {
	return m.transact(ctx, opts, MethodCreateMarketSale, nftContract, itemID)
}

// FetchMarketItems returns the unsold items.
func (m *Marketplace) FetchMarketItems(ctx context.Context, opts CallOpts) ([]MarketItem, error) {
	return m.callItems(ctx, opts, MethodFetchMarketItems)
}

// FetchMyNFTs returns the items owned by opts.From.
func (m *Marketplace) FetchMyNFTs(ctx context.Context, opts CallOpts) ([]MarketItem, error) {
	return m.callItems(ctx, opts, MethodFetchMyNFTs)
}

func (m *Marketplace) transact(ctx context.Context, opts TransactOpts, method string, args ...any) (common.Hash, error) {
	data, err := m.abi.Pack(method, args...)
	if err != nil {
		return common.Hash{}, fmt.Errorf("contract: pack %s: %w", method, err)
	}
	value := opts.Value
	if value == nil {
		value = new(big.Int)
	}
	to := m.address
	return m.backend.SendTransaction(ctx, ethereum.CallMsg{
		From:  opts.From,
		To:    &to,
		Gas:   opts.GasLimit,
		Value: value,
		Data:  data,
	})
}

func (m *Marketplace) callItems(ctx context.Context, opts CallOpts, method string) ([]MarketItem, error) {
	data, err := m.abi.Pack(method)
	if err != nil {
		return nil, fmt.Errorf("contract: pack %s: %w", method, err)
	}
	to := m.address
	raw, err := m.backend.CallContract(ctx, ethereum.CallMsg{From: opts.From, To: &to, Data: data})
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, ErrNoCode
	}
	return UnpackItems(m.abi, method, raw)
}

// UnpackItems decodes a MarketItem[] return value.
func UnpackItems(parsed abi.ABI, method string, raw []byte) ([]MarketItem, error) {
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("contract: unpack %s: %w", method, err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("contract: %s returned no values", method)
	}
	items := *abi.ConvertType(out[0], new([]MarketItem)).(*[]MarketItem)
	return items, nil
}
