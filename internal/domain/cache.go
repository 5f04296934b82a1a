package domain

import (
	"context"
	"time"
)

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

// SignalBus provides pub/sub fan-out of storefront events. Delivery is best
// effort: a subscriber whose buffer is full loses the payload, and Publish
// never blocks on slow subscribers.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
}

// Event channels published on the SignalBus.
const (
	ChannelTx      = "nft:tx"
	ChannelSession = "nft:session"
)
