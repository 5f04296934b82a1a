package server_test

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftstore/internal/cache/memory"
	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/chain/chaintest"
	"github.com/alanyoungcy/nftstore/internal/market"
	"github.com/alanyoungcy/nftstore/internal/server"
	"github.com/alanyoungcy/nftstore/internal/server/handler"
	"github.com/alanyoungcy/nftstore/internal/service"
)

const apiKey = "k"

func newTestServer(t *testing.T, w *chaintest.Wallet) *httptest.Server {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	conn := chain.NewConnector(chain.Config{
		ChainID:            1,
		ChainName:          "Testnet",
		CurrencyName:       "ETH",
		CurrencySymbol:     "ETH",
		Decimals:           18,
		MarketplaceAddress: chaintest.Marketplace,
		ABI:                w.ABI(),
	}, w.Opener(), nil, logger)

	mopts := market.DefaultOptions()
	mopts.PollInterval = 5 * time.Millisecond
	mopts.NetworkName = "Testnet"
	store := service.NewStorefront(conn, service.Options{
		Market:   mopts,
		Featured: []service.FeaturedItem{{Name: "Asur", Price: "28"}},
	}, service.Deps{Bus: memory.NewSignalBus()}, logger)

	srv := server.NewServer(server.Config{APIKey: apiKey}, server.Handlers{
		Health:   handler.NewHealthHandler(nil, logger),
		Config:   handler.NewConfigHandler(handler.PublicConfig{AppName: "NFT Marketplace", ChainID: "0x1"}),
		Session:  handler.NewSessionHandler(store, logger),
		Balance:  handler.NewBalanceHandler(store, logger),
		Listings: handler.NewListingHandler(store, logger),
		Images:   handler.NewImageHandler(store, 1<<20, logger),
		Activity: handler.NewActivityHandler(store, logger),
	}, nil, logger)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func call(t *testing.T, ts *httptest.Server, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req, err := http.NewRequest(method, ts.URL+path, rd)
	require.NoError(t, err)
	req.Header.Set("X-API-Key", apiKey)
	resp, err := ts.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func TestServer_ListingFlow(t *testing.T) {
	w := chaintest.NewWallet()
	ts := newTestServer(t, w)

	status, out := call(t, ts, http.MethodPost, "/api/listings", `{"name":"Sunset","price":"1.5"}`)
	assert.Equal(t, http.StatusPreconditionFailed, status)
	assert.Equal(t, "not_connected", out["kind"])
	assert.Contains(t, out["error"], "Please connect your wallet first!")

	status, out = call(t, ts, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, chaintest.Account.Hex(), out["account"])

	status, out = call(t, ts, http.MethodPost, "/api/listings", `{"name":"Sunset","price":"1.5"}`)
	require.Equal(t, http.StatusCreated, status, out)
	itemID := out["item_id"].(string)

	status, out = call(t, ts, http.MethodGet, "/api/listings", "")
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 2, out["count"])
	listings := out["listings"].([]any)
	assert.Equal(t, "featured-1", listings[0].(map[string]any)["id"])
	chainItem := listings[1].(map[string]any)
	assert.Equal(t, itemID, chainItem["id"])
	assert.Equal(t, "1.5", chainItem["price"])
	assert.Equal(t, "Digital Art", chainItem["category"])

	status, out = call(t, ts, http.MethodPost, "/api/listings/featured-1/buy", `{"price":"28"}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", out["kind"])

	status, out = call(t, ts, http.MethodGet, "/api/activity", "")
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "unavailable", out["kind"])

	status, out = call(t, ts, http.MethodDelete, "/api/session", "")
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, false, out["connected"])
}

func TestServer_ConnectRejected(t *testing.T) {
	w := chaintest.NewWallet()
	w.RejectSwitch = true
	ts := newTestServer(t, w)

	status, out := call(t, ts, http.MethodPost, "/api/session", "")
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "user_rejected", out["kind"])
}

func TestServer_Balance(t *testing.T) {
	w := chaintest.NewWallet()
	ts := newTestServer(t, w)

	status, _ := call(t, ts, http.MethodPost, "/api/session", "")
	require.Equal(t, http.StatusOK, status)

	status, out := call(t, ts, http.MethodGet, "/api/balance/"+chaintest.Account.Hex(), "")
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "100.0000", out["display"])
	assert.Equal(t, "ETH", out["symbol"])

	status, out = call(t, ts, http.MethodGet, "/api/balance/not-an-address", "")
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "invalid_input", out["kind"])
}

func TestServer_AuthAndPublicRoutes(t *testing.T) {
	ts := newTestServer(t, chaintest.NewWallet())

	resp, err := ts.Client().Get(ts.URL + "/api/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/api/config")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = ts.Client().Get(ts.URL + "/api/listings")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))
}
