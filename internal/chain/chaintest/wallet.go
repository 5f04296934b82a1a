// Package chaintest provides an in-memory EIP-1193 wallet that emulates the
// marketplace contract, for tests across packages.
package chaintest

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/nftstore/internal/contract"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

// Well-known fixtures.
var (
	Account     = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	Other       = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	Marketplace = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
)

// InsufficientFundsMessage is what geth answers when value plus gas exceeds
// the balance.
const InsufficientFundsMessage = "insufficient funds for gas * price + value"

// Ether is 10^18 wei.
var Ether = new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil)

// Call is one recorded provider request.
type Call struct {
	Method string
	Params []any
}

// Wallet is a fake wallet plus chain. Exported fields may be set before use;
// everything else goes through methods.
type Wallet struct {
	Account common.Address
	// GasPrice is charged per gas unit on sends. Zero means free gas.
	GasPrice *big.Int

	RejectSwitch   bool
	RejectAdd      bool
	RejectAccounts bool
	RejectSend     bool
	// Pending keeps sent transactions unmined until Mine is called.
	Pending bool
	// RevertReceipts mines transactions with a failed status.
	RevertReceipts bool
	// Gate, when set, blocks eth_requestAccounts until it is closed.
	Gate chan struct{}

	abi abi.ABI

	mu       sync.Mutex
	known    map[string]bool
	active   string
	balances map[common.Address]*big.Int
	items    []contract.MarketItem
	receipts map[common.Hash]*contract.Receipt
	pending  []common.Hash
	block    uint64
	nonce    uint64
	calls    []Call
	failNext map[string]error
	closed   int
}

// NewWallet returns a wallet on chain 0x1 whose Account holds 100 ETH.
func NewWallet() *Wallet {
	parsed, err := contract.ParseABI(contract.MarketplaceABI)
	if err != nil {
		panic(err)
	}
	w := &Wallet{
		Account:  Account,
		abi:      parsed,
		known:    map[string]bool{"0x1": true},
		active:   "0x1",
		balances: make(map[common.Address]*big.Int),
		receipts: make(map[common.Hash]*contract.Receipt),
		failNext: make(map[string]error),
		block:    100,
	}
	w.balances[Account] = new(big.Int).Mul(big.NewInt(100), Ether)
	return w
}

// ABI returns the marketplace ABI the wallet emulates.
func (w *Wallet) ABI() abi.ABI { return w.abi }

// Opener yields this wallet.
func (w *Wallet) Opener() wallet.Opener {
	return func(context.Context) (wallet.Provider, error) { return w, nil }
}

// Forget makes the wallet unaware of chainID, so switching to it answers 4902.
func (w *Wallet) Forget(chainID string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	delete(w.known, chainID)
	if w.active == chainID {
		w.active = ""
	}
}

// ActiveChain returns the chain the wallet is on.
func (w *Wallet) ActiveChain() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.active
}

// SetBalance sets an account balance in wei.
func (w *Wallet) SetBalance(addr common.Address, wei *big.Int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.balances[addr] = new(big.Int).Set(wei)
}

// BalanceOf returns an account balance in wei.
func (w *Wallet) BalanceOf(addr common.Address) *big.Int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.balanceLocked(addr)
}

// AddItem seeds a listing directly into contract storage.
func (w *Wallet) AddItem(item contract.MarketItem) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.items = append(w.items, item)
}

// Items returns a copy of contract storage.
func (w *Wallet) Items() []contract.MarketItem {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]contract.MarketItem(nil), w.items...)
}

// Item looks up a listing by item id.
func (w *Wallet) Item(id int64) (contract.MarketItem, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if i := w.indexLocked(big.NewInt(id)); i >= 0 {
		return w.items[i], true
	}
	return contract.MarketItem{}, false
}

// FailNext makes the next request for method fail with err.
func (w *Wallet) FailNext(method string, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failNext[method] = err
}

// Mine includes every pending transaction in a new block.
func (w *Wallet) Mine() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.block++
	for _, h := range w.pending {
		w.receipts[h].BlockNumber = hexutil.Uint64(w.block)
	}
	w.pending = nil
}

// Calls returns the recorded requests.
func (w *Wallet) Calls() []Call {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]Call(nil), w.calls...)
}

// CountCalls counts recorded requests for method.
func (w *Wallet) CountCalls(method string) int {
	n := 0
	for _, c := range w.Calls() {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Closed reports how many times Close was called.
func (w *Wallet) Closed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}

// Close implements the optional closer connectors look for.
func (w *Wallet) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed++
}

func (w *Wallet) Request(ctx context.Context, method string, result any, params ...any) error {
	w.mu.Lock()
	w.calls = append(w.calls, Call{Method: method, Params: params})
	if err, ok := w.failNext[method]; ok {
		delete(w.failNext, method)
		w.mu.Unlock()
		return err
	}
	w.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	switch method {
	case wallet.MethodChainID:
		return wallet.Assign(result, w.ActiveChain())
	case wallet.MethodSwitchChain:
		return w.switchChain(params, result)
	case wallet.MethodAddChain:
		return w.addChain(params, result)
	case wallet.MethodRequestAccounts:
		return w.requestAccounts(ctx, result)
	case wallet.MethodAccounts:
		return wallet.Assign(result, []string{w.Account.Hex()})
	case wallet.MethodGetBalance:
		var addr common.Address
		if err := wallet.DecodeParam(params, 0, &addr); err != nil {
			return err
		}
		return wallet.Assign(result, (*hexutil.Big)(w.BalanceOf(addr)))
	case wallet.MethodBlockNumber:
		w.mu.Lock()
		n := w.block
		w.mu.Unlock()
		return wallet.Assign(result, hexutil.Uint64(n))
	case wallet.MethodGetReceipt:
		var h common.Hash
		if err := wallet.DecodeParam(params, 0, &h); err != nil {
			return err
		}
		return wallet.Assign(result, w.receipt(h))
	case wallet.MethodCall:
		var tx wallet.TxParams
		if err := wallet.DecodeParam(params, 0, &tx); err != nil {
			return err
		}
		out, err := w.call(tx)
		if err != nil {
			return err
		}
		return wallet.Assign(result, hexutil.Bytes(out))
	case wallet.MethodSendTransaction:
		var tx wallet.TxParams
		if err := wallet.DecodeParam(params, 0, &tx); err != nil {
			return err
		}
		h, err := w.send(tx)
		if err != nil {
			return err
		}
		return wallet.Assign(result, h)
	}
	return wallet.NewProviderError(wallet.CodeUnsupportedMethod, fmt.Sprintf("method %s not supported", method))
}

func (w *Wallet) switchChain(params []any, result any) error {
	var sp wallet.SwitchChainParams
	if err := wallet.DecodeParam(params, 0, &sp); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.known[sp.ChainID] {
		return wallet.NewProviderError(wallet.CodeUnrecognizedChain, fmt.Sprintf("Unrecognized chain ID %q", sp.ChainID))
	}
	if w.RejectSwitch {
		return wallet.NewProviderError(wallet.CodeUserRejected, "User rejected the request.")
	}
	w.active = sp.ChainID
	return wallet.Assign(result, nil)
}

func (w *Wallet) addChain(params []any, result any) error {
	var ap wallet.AddChainParams
	if err := wallet.DecodeParam(params, 0, &ap); err != nil {
		return err
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.RejectAdd {
		return wallet.NewProviderError(wallet.CodeUserRejected, "User rejected the request.")
	}
	w.known[ap.ChainID] = true
	return wallet.Assign(result, nil)
}

func (w *Wallet) requestAccounts(ctx context.Context, result any) error {
	if w.Gate != nil {
		select {
		case <-w.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if w.RejectAccounts {
		return wallet.NewProviderError(wallet.CodeUserRejected, "User rejected the request.")
	}
	return wallet.Assign(result, []string{w.Account.Hex()})
}

func (w *Wallet) receipt(h common.Hash) *contract.Receipt {
	w.mu.Lock()
	defer w.mu.Unlock()
	r, ok := w.receipts[h]
	if !ok || r.BlockNumber == 0 {
		return nil
	}
	cp := *r
	return &cp
}

func (w *Wallet) call(tx wallet.TxParams) ([]byte, error) {
	if tx.To == nil || *tx.To != Marketplace {
		return nil, nil
	}
	method, err := w.method(tx.Data)
	if err != nil {
		return nil, err
	}

	w.mu.Lock()
	var out []contract.MarketItem
	switch method.Name {
	case contract.MethodFetchMarketItems:
		for _, it := range w.items {
			if !it.Sold {
				out = append(out, it)
			}
		}
	case contract.MethodFetchMyNFTs:
		for _, it := range w.items {
			if it.Owner == tx.From {
				out = append(out, it)
			}
		}
	default:
		w.mu.Unlock()
		return nil, revert("not a view function")
	}
	w.mu.Unlock()

	if out == nil {
		out = []contract.MarketItem{}
	}
	return method.Outputs.Pack(out)
}

func (w *Wallet) send(tx wallet.TxParams) (common.Hash, error) {
	if w.RejectSend {
		return common.Hash{}, wallet.NewProviderError(wallet.CodeUserRejected, "User denied transaction signature.")
	}
	if tx.To == nil || *tx.To != Marketplace {
		return common.Hash{}, errors.New("chaintest: only marketplace transactions are emulated")
	}
	method, err := w.method(tx.Data)
	if err != nil {
		return common.Hash{}, err
	}
	args, err := method.Inputs.Unpack(tx.Data[4:])
	if err != nil {
		return common.Hash{}, revert(err.Error())
	}

	value := new(big.Int)
	if tx.Value != nil {
		value = tx.Value.ToInt()
	}
	var gas uint64
	if tx.Gas != nil {
		gas = uint64(*tx.Gas)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	cost := new(big.Int).Set(value)
	if w.GasPrice != nil {
		cost.Add(cost, new(big.Int).Mul(w.GasPrice, new(big.Int).SetUint64(gas)))
	}
	if w.balanceLocked(tx.From).Cmp(cost) < 0 {
		return common.Hash{}, wallet.NewProviderError(-32000, InsufficientFundsMessage)
	}

	switch method.Name {
	case contract.MethodCreateMarketItem:
		tokenID := args[1].(*big.Int)
		if w.indexLocked(tokenID) >= 0 {
			return common.Hash{}, revert("item already exists")
		}
		if args[2].(*big.Int).Sign() <= 0 {
			return common.Hash{}, revert("Price must be at least 1 wei")
		}
		if !w.RevertReceipts {
			w.items = append(w.items, contract.MarketItem{
				ItemId:      new(big.Int).Set(tokenID),
				NftContract: args[0].(common.Address),
				TokenId:     new(big.Int).Set(tokenID),
				Seller:      tx.From,
				Owner:       common.Address{},
				Price:       new(big.Int).Set(args[2].(*big.Int)),
				Category:    args[3].(string),
				Image:       args[4].(string),
				Name:        args[5].(string),
			})
		}
	case contract.MethodCreateMarketSale:
		i := w.indexLocked(args[1].(*big.Int))
		if i < 0 {
			return common.Hash{}, revert("item does not exist")
		}
		it := &w.items[i]
		if it.Sold {
			return common.Hash{}, revert("item already sold")
		}
		if value.Cmp(it.Price) != 0 {
			return common.Hash{}, revert("Please submit the asking price in order to complete the purchase")
		}
		if !w.RevertReceipts {
			it.Sold = true
			it.Owner = tx.From
			w.credit(it.Seller, value)
		}
	default:
		return common.Hash{}, revert("not a payable function")
	}

	w.debit(tx.From, cost)
	return w.recordLocked(), nil
}

func (w *Wallet) recordLocked() common.Hash {
	w.nonce++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], w.nonce)
	h := crypto.Keccak256Hash(w.Account.Bytes(), buf[:])

	status := uint64(contract.ReceiptStatusSuccessful)
	if w.RevertReceipts {
		status = contract.ReceiptStatusFailed
	}
	r := &contract.Receipt{TxHash: h, Status: hexutil.Uint64(status), GasUsed: 21_000}
	w.receipts[h] = r
	if w.Pending {
		w.pending = append(w.pending, h)
	} else {
		w.block++
		r.BlockNumber = hexutil.Uint64(w.block)
	}
	return h
}

func (w *Wallet) method(data []byte) (*abi.Method, error) {
	if len(data) < 4 {
		return nil, revert("missing selector")
	}
	m, err := w.abi.MethodById(data[:4])
	if err != nil {
		return nil, revert("unknown selector")
	}
	return m, nil
}

func (w *Wallet) indexLocked(id *big.Int) int {
	for i, it := range w.items {
		if it.ItemId.Cmp(id) == 0 {
			return i
		}
	}
	return -1
}

func (w *Wallet) balanceLocked(addr common.Address) *big.Int {
	if b, ok := w.balances[addr]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (w *Wallet) credit(addr common.Address, v *big.Int) {
	w.balances[addr] = new(big.Int).Add(w.balanceLocked(addr), v)
}

func (w *Wallet) debit(addr common.Address, v *big.Int) {
	w.balances[addr] = new(big.Int).Sub(w.balanceLocked(addr), v)
}

// revert mimics the error a node returns when gas estimation hits a revert.
func revert(reason string) error {
	return &wallet.ProviderError{Code: 3, Message: "execution reverted: " + reason}
}
