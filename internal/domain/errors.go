package domain

import "errors"

var (
	ErrNotFound     = errors.New("not found")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("backend not configured")
)

// ErrorKind is the closed set of marketplace failure categories surfaced to
// the UI layer. Errors outside this set pass through unclassified.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindWalletMissing
	KindUserRejected
	KindNotConnected
	KindInsufficientFunds
	KindNetworkOrContract
	KindCreateFailed
	KindBuyFailed
	KindFetchFailed
)

var kindNames = map[ErrorKind]string{
	KindUnknown:           "unknown",
	KindWalletMissing:     "wallet_missing",
	KindUserRejected:      "user_rejected",
	KindNotConnected:      "not_connected",
	KindInsufficientFunds: "insufficient_funds",
	KindNetworkOrContract: "network_or_contract_error",
	KindCreateFailed:      "create_failed",
	KindBuyFailed:         "buy_failed",
	KindFetchFailed:       "fetch_failed",
}

func (k ErrorKind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return "unknown"
}

// Error is a classified marketplace failure. Message is meant for humans;
// Err keeps the underlying cause for logs.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Kind.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports a match when target is an *Error of the same kind, so the
// package-level sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// NewError builds a classified error.
func NewError(kind ErrorKind, msg string, cause error) *Error {
	return &Error{Kind: kind, Message: msg, Err: cause}
}

// Sentinels for errors.Is checks. Only the kind is compared.
var (
	ErrWalletMissing     = &Error{Kind: KindWalletMissing, Message: "Please install a wallet provider!"}
	ErrUserRejected      = &Error{Kind: KindUserRejected, Message: "Transaction was rejected by user"}
	ErrNotConnected      = &Error{Kind: KindNotConnected, Message: "Please connect your wallet first!"}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds, Message: "insufficient funds"}
	ErrNetworkOrContract = &Error{Kind: KindNetworkOrContract, Message: "network or contract error"}
	ErrCreateFailed      = &Error{Kind: KindCreateFailed, Message: "Failed to create NFT. Please try again."}
	ErrBuyFailed         = &Error{Kind: KindBuyFailed, Message: "Failed to buy NFT. Please try again."}
	ErrFetchFailed       = &Error{Kind: KindFetchFailed, Message: "failed to fetch listings"}
)

// KindOf returns the classified kind of err, or KindUnknown for passthrough
// errors.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
