package wallet

import (
	"errors"
	"strings"
)

// Failure is the closed set of wallet/node failure categories the
// marketplace cares about.
type Failure int

const (
	FailureNone Failure = iota
	FailureOther
	FailureRejected
	FailureUnknownChain
	FailureInsufficientFunds
	FailureUnpredictableGas
	// FailureNotWallet means the endpoint does not implement wallet methods.
	FailureNotWallet
)

func (f Failure) String() string {
	switch f {
	case FailureNone:
		return "none"
	case FailureRejected:
		return "rejected"
	case FailureUnknownChain:
		return "unknown_chain"
	case FailureInsufficientFunds:
		return "insufficient_funds"
	case FailureUnpredictableGas:
		return "unpredictable_gas"
	case FailureNotWallet:
		return "not_wallet"
	default:
		return "other"
	}
}

var (
	rejectedHints = []string{
		"user rejected",
		"user denied",
		"rejected by user",
		"action_rejected",
		"request rejected",
	}
	gasHints = []string{
		"execution reverted",
		"gas required exceeds",
		"cannot estimate gas",
		"unpredictable_gas_limit",
		"always failing transaction",
	}
)

// Classify maps a provider or node error onto a Failure. Codes win over
// message matching; unmatched errors are FailureOther.
func Classify(err error) Failure {
	if err == nil {
		return FailureNone
	}

	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Code {
		case CodeUserRejected, CodeUnauthorized:
			return FailureRejected
		case CodeUnrecognizedChain:
			return FailureUnknownChain
		case CodeUnsupportedMethod, CodeMethodNotFound:
			return FailureNotWallet
		case 3:
			// JSON-RPC code 3 is a revert during eth_call / eth_estimateGas.
			return FailureUnpredictableGas
		}
	}

	msg := strings.ToLower(err.Error())
	if containsAny(msg, rejectedHints) {
		return FailureRejected
	}
	if strings.Contains(msg, "insufficient funds") {
		return FailureInsufficientFunds
	}
	if containsAny(msg, gasHints) {
		return FailureUnpredictableGas
	}
	return FailureOther
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
