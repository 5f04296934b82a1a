package redis

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/redis/go-redis/v9"
)

// SignalBus implements domain.SignalBus with Redis Pub/Sub. Events are
// ephemeral: subscribers that are not listening, or whose buffer is full,
// miss them.
type SignalBus struct {
	c *Client
}

// NewSignalBus creates a SignalBus backed by the given Client.
func NewSignalBus(c *Client) *SignalBus {
	return &SignalBus{c: c}
}

// Publish sends payload to channel.
func (sb *SignalBus) Publish(ctx context.Context, channel string, payload []byte) error {
	if err := sb.c.rdb.Publish(ctx, sb.c.key(channel), payload).Err(); err != nil {
		return fmt.Errorf("redis: publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe returns a channel of payloads published on channel. The
// subscription and the returned channel are closed when ctx ends.
func (sb *SignalBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	pubsub := sb.c.rdb.Subscribe(ctx, sb.c.key(channel))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("redis: subscribe %s: %w", channel, err)
	}

	out := make(chan []byte, 128)
	go func() {
		defer close(out)
		defer pubsub.Close()
		forward(ctx, pubsub.Channel(), out)
	}()
	return out, nil
}

func forward(ctx context.Context, in <-chan *redis.Message, out chan<- []byte) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-in:
			if !ok {
				return
			}
			// A full buffer means a slow consumer; it misses the payload.
			select {
			case out <- []byte(msg.Payload):
			default:
			}
		}
	}
}

var _ domain.SignalBus = (*SignalBus)(nil)
