package domain

import "time"

// DefaultCategory is applied when a listing is created without a category.
const DefaultCategory = "Digital Art"

// Listing is one marketplace entry as presented to the UI. Price is a decimal
// string in the chain's native currency.
type Listing struct {
	ID       string `json:"id"`
	TokenID  string `json:"token_id,omitempty"`
	Name     string `json:"name"`
	Price    string `json:"price"`
	Seller   string `json:"creator"`
	Owner    string `json:"owner,omitempty"`
	Image    string `json:"image"`
	Category string `json:"category"`
	Sold     bool   `json:"sold"`
	Featured bool   `json:"featured,omitempty"`
}

// TxHandle describes a submitted transaction after it reached the awaited
// number of confirmations.
type TxHandle struct {
	Hash        string `json:"hash"`
	ItemID      string `json:"item_id,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value_wei"`
	GasLimit    uint64 `json:"gas_limit"`
	BlockNumber uint64 `json:"block_number"`
	Status      uint64 `json:"status"`
}

// ActivityKind names the operation a journaled transaction came from.
type ActivityKind string

const (
	ActivityCreate ActivityKind = "create"
	ActivityBuy    ActivityKind = "buy"
)

// ActivityStatus is the final state of a journaled operation.
type ActivityStatus string

const (
	ActivityConfirmed ActivityStatus = "confirmed"
	ActivityFailed    ActivityStatus = "failed"
)

// Activity is one journaled create or buy attempt.
type Activity struct {
	ID        int64          `json:"id"`
	Kind      ActivityKind   `json:"kind"`
	Account   string         `json:"account"`
	ItemID    string         `json:"item_id"`
	Price     string         `json:"price"`
	TxHash    string         `json:"tx_hash,omitempty"`
	Status    ActivityStatus `json:"status"`
	ErrorKind string         `json:"error_kind,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}
