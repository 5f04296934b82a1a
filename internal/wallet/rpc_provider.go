package wallet

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
)

// RPCProvider forwards requests to an external wallet exposing an EIP-1193
// JSON-RPC endpoint over HTTP or WebSocket.
type RPCProvider struct {
	client *rpc.Client
}

// DialRPC connects to the wallet endpoint at url.
func DialRPC(ctx context.Context, url string) (*RPCProvider, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("wallet: dial %s: %w", url, err)
	}
	return &RPCProvider{client: client}, nil
}

// NewRPCProvider wraps an existing rpc client.
func NewRPCProvider(client *rpc.Client) *RPCProvider {
	return &RPCProvider{client: client}
}

func (p *RPCProvider) Request(ctx context.Context, method string, result any, params ...any) error {
	return fromRPC(p.client.CallContext(ctx, result, method, params...))
}

// Close tears down the underlying connection.
func (p *RPCProvider) Close() {
	p.client.Close()
}

// RPCOpener returns an Opener that dials url on every connect attempt and
// probes it with eth_chainId. An empty url or an endpoint that cannot be
// reached means no wallet is available; a wallet answering with an error
// still counts as present.
func RPCOpener(url string) Opener {
	return func(ctx context.Context) (Provider, error) {
		if url == "" {
			return nil, ErrNoProvider
		}
		p, err := DialRPC(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoProvider, err)
		}
		var id string
		if err := p.Request(ctx, MethodChainID, &id); err != nil {
			var pe *ProviderError
			if !errors.As(err, &pe) {
				p.Close()
				return nil, fmt.Errorf("%w: %v", ErrNoProvider, err)
			}
		}
		return p, nil
	}
}
