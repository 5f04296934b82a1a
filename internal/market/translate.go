package market

import (
	"fmt"

	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/wallet"
)

type operation int

const (
	opCreate operation = iota
	opBuy
)

// translate maps a wallet/contract failure of a create or buy onto the
// marketplace taxonomy.
func (g *Gateway) translate(op operation, err error) error {
	sym := g.opts.CurrencySymbol

	switch wallet.Classify(err) {
	case wallet.FailureInsufficientFunds:
		msg := fmt.Sprintf("Insufficient %s for gas fees. Please make sure you have enough %s for gas.", sym, sym)
		if op == opBuy {
			msg = fmt.Sprintf("Insufficient %s. Please make sure you have enough %s for the purchase price plus gas fees.", sym, sym)
		}
		return domain.NewError(domain.KindInsufficientFunds, msg, err)
	case wallet.FailureUnpredictableGas:
		return domain.NewError(domain.KindNetworkOrContract,
			fmt.Sprintf("Network error: Please ensure you're connected to %s and try again", g.opts.NetworkName), err)
	case wallet.FailureRejected:
		return domain.NewError(domain.KindUserRejected, domain.ErrUserRejected.Message, err)
	}
	return generic(op, err)
}

func generic(op operation, err error) error {
	if op == opBuy {
		return domain.NewError(domain.KindBuyFailed, domain.ErrBuyFailed.Message, err)
	}
	return domain.NewError(domain.KindCreateFailed, domain.ErrCreateFailed.Message, err)
}

func fetchFailed(what string, err error) error {
	return domain.NewError(domain.KindFetchFailed, fmt.Sprintf("Failed to fetch %s: %s", what, err.Error()), err)
}
