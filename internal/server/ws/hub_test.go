package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftstore/internal/cache/memory"
	"github.com/alanyoungcy/nftstore/internal/domain"
)

func startHub(t *testing.T, cfg Config) (*memory.SignalBus, string) {
	t.Helper()
	bus := memory.NewSignalBus()
	hub := NewHub(bus, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)
	return bus, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	return env
}

func TestHub_StatusThenEvents(t *testing.T) {
	bus, url := startHub(t, Config{Status: func() any {
		return map[string]any{"connected": false}
	}})

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	status := readEnvelope(t, conn)
	assert.Equal(t, "status", status.Type)
	assert.JSONEq(t, `{"connected":false}`, string(status.Payload))

	require.NoError(t, bus.Publish(context.Background(), domain.ChannelTx, []byte(`{"event":"listing_created"}`)))
	env := readEnvelope(t, conn)
	assert.Equal(t, "tx", env.Type)
	assert.JSONEq(t, `{"event":"listing_created"}`, string(env.Payload))

	require.NoError(t, bus.Publish(context.Background(), domain.ChannelSession, []byte(`{"event":"connected"}`)))
	env = readEnvelope(t, conn)
	assert.Equal(t, "session", env.Type)
}

func TestHub_Unsubscribe(t *testing.T) {
	c := &client{subs: map[string]bool{"tx": true, "session": true}}
	c.applySubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"session"}})
	assert.True(t, c.isSubscribed("tx"))
	assert.False(t, c.isSubscribed("session"))

	c.applySubscription(subscribeMsg{Action: "subscribe", Channels: []string{"session"}})
	assert.True(t, c.isSubscribed("session"))
}

func TestHub_RejectsForeignOrigin(t *testing.T) {
	_, url := startHub(t, Config{AllowedOrigins: []string{"http://localhost:5173"}})

	header := http.Header{"Origin": []string{"https://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestEnvelope_Marshal(t *testing.T) {
	raw, err := json.Marshal(Envelope{Type: "tx", Payload: json.RawMessage(`{"a":1}`)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"tx","payload":{"a":1}}`, string(raw))
}
