package redis

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
)

func TestClientKey(t *testing.T) {
	c := &Client{prefix: "nftstore:"}
	assert.Equal(t, "nftstore:ratelimit:1.2.3.4", c.key("ratelimit", "1.2.3.4"))
	assert.Equal(t, "nftstore:nft:tx", c.key("nft:tx"))

	bare := &Client{}
	assert.Equal(t, "nft:session", bare.key("nft:session"))
}

func TestForward_StopsOnCancel(t *testing.T) {
	in := make(chan *redis.Message, 2)
	out := make(chan []byte, 2)
	in <- &redis.Message{Payload: "one"}
	in <- &redis.Message{Payload: "two"}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		forward(ctx, in, out)
		close(done)
	}()

	assert.Equal(t, []byte("one"), <-out)
	assert.Equal(t, []byte("two"), <-out)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward did not return after cancel")
	}
}

func TestForward_StopsOnClosedInput(t *testing.T) {
	in := make(chan *redis.Message)
	close(in)
	forward(context.Background(), in, make(chan []byte))
}

func TestForward_DropsWhenConsumerIsSlow(t *testing.T) {
	in := make(chan *redis.Message, 3)
	out := make(chan []byte, 1)
	in <- &redis.Message{Payload: "one"}
	in <- &redis.Message{Payload: "two"}
	in <- &redis.Message{Payload: "three"}
	close(in)

	done := make(chan struct{})
	go func() {
		forward(context.Background(), in, out)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("forward blocked on a full consumer buffer")
	}
	assert.Equal(t, []byte("one"), <-out)
	assert.Empty(t, out)
}
