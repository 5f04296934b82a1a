// Package wallet defines the EIP-1193 style provider the storefront talks to
// and two implementations: a JSON-RPC client for an external wallet process
// and an in-process wallet holding a single key.
package wallet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

// Provider request methods used by the storefront.
const (
	MethodRequestAccounts = "eth_requestAccounts"
	MethodAccounts        = "eth_accounts"
	MethodChainID         = "eth_chainId"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodAddChain        = "wallet_addEthereumChain"
	MethodSendTransaction = "eth_sendTransaction"
	MethodCall            = "eth_call"
	MethodGetBalance      = "eth_getBalance"
	MethodGetReceipt      = "eth_getTransactionReceipt"
	MethodBlockNumber     = "eth_blockNumber"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeUnrecognizedChain = 4902

	// CodeMethodNotFound is the JSON-RPC 2.0 code a plain node returns for
	// wallet_* methods.
	CodeMethodNotFound = -32601
)

// ErrNoProvider is returned by an Opener when no wallet is available.
var ErrNoProvider = errors.New("wallet: no provider available")

// Provider is the request surface of an EIP-1193 wallet. result must be a
// pointer or nil; params are JSON encoded positionally.
type Provider interface {
	Request(ctx context.Context, method string, result any, params ...any) error
}

// Opener yields a ready provider. It is called once per connect attempt.
type Opener func(ctx context.Context) (Provider, error)

// ProviderError is a wallet-reported failure carrying its numeric code.
type ProviderError struct {
	Code    int
	Message string
	Data    any
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("wallet: %s (code %d)", e.Message, e.Code)
}

// ErrorCode matches rpc.Error so provider errors survive a JSON-RPC hop.
func (e *ProviderError) ErrorCode() int { return e.Code }

// ErrorData matches rpc.DataError.
func (e *ProviderError) ErrorData() any { return e.Data }

// NewProviderError builds a ProviderError.
func NewProviderError(code int, msg string) *ProviderError {
	return &ProviderError{Code: code, Message: msg}
}

// SwitchChainParams is the wallet_switchEthereumChain argument.
type SwitchChainParams struct {
	ChainID string `json:"chainId"`
}

// NativeCurrency describes a chain's gas token for wallet_addEthereumChain.
type NativeCurrency struct {
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals int    `json:"decimals"`
}

// AddChainParams is the wallet_addEthereumChain argument (EIP-3085).
type AddChainParams struct {
	ChainID           string         `json:"chainId"`
	ChainName         string         `json:"chainName"`
	NativeCurrency    NativeCurrency `json:"nativeCurrency"`
	RPCURLs           []string       `json:"rpcUrls"`
	BlockExplorerURLs []string       `json:"blockExplorerUrls,omitempty"`
}

// TxParams is the eth_sendTransaction / eth_call argument.
type TxParams struct {
	From     common.Address  `json:"from"`
	To       *common.Address `json:"to,omitempty"`
	Value    *hexutil.Big    `json:"value,omitempty"`
	Gas      *hexutil.Uint64 `json:"gas,omitempty"`
	GasPrice *hexutil.Big    `json:"gasPrice,omitempty"`
	Data     hexutil.Bytes   `json:"data,omitempty"`
}

// DecodeParam re-decodes a positional request parameter into out. Params
// arrive either as typed structs from in-process callers or as generic maps
// after a JSON hop.
func DecodeParam(params []any, i int, out any) error {
	if i >= len(params) {
		return NewProviderError(-32602, fmt.Sprintf("missing param %d", i))
	}
	raw, err := json.Marshal(params[i])
	if err != nil {
		return NewProviderError(-32602, err.Error())
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError(-32602, err.Error())
	}
	return nil
}

// Assign stores v into a Request result pointer using JSON semantics, the
// same way a JSON-RPC client would.
func Assign(result, v any) error {
	if result == nil {
		return nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, result)
}

// fromRPC turns go-ethereum rpc errors into ProviderError; everything else is
// returned as is.
func fromRPC(err error) error {
	if err == nil {
		return nil
	}
	var pe *ProviderError
	if errors.As(err, &pe) {
		return err
	}
	var re rpc.Error
	if !errors.As(err, &re) {
		return err
	}
	out := &ProviderError{Code: re.ErrorCode(), Message: re.Error()}
	var de rpc.DataError
	if errors.As(err, &de) {
		out.Data = de.ErrorData()
	}
	return out
}
