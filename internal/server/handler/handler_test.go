package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/service"
)

type fakeStore struct {
	err       error
	created   service.CreateRequest
	boughtID  string
	boughtAt  string
	opts      domain.ListOpts
	upload    []byte
	uploadCT  string
	uploadErr error
}

func (f *fakeStore) Connect(context.Context) (service.SessionInfo, error) {
	if f.err != nil {
		return service.SessionInfo{}, f.err
	}
	return service.SessionInfo{Connected: true, Account: "0xabc", ChainID: "0x1"}, nil
}
func (f *fakeStore) Disconnect(context.Context) {}
func (f *fakeStore) Session() service.SessionInfo {
	return service.SessionInfo{ChainID: "0x1", Network: "Testnet"}
}
func (f *fakeStore) Balance(_ context.Context, addr string) (service.Balance, error) {
	return service.Balance{Address: addr, Display: "1.0000"}, f.err
}
func (f *fakeStore) CreateListing(_ context.Context, req service.CreateRequest) (*domain.TxHandle, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TxHandle{Hash: "0x01", ItemID: "9"}, nil
}
func (f *fakeStore) BuyListing(_ context.Context, id, price string) (*domain.TxHandle, error) {
	f.boughtID, f.boughtAt = id, price
	if f.err != nil {
		return nil, f.err
	}
	return &domain.TxHandle{Hash: "0x02", ItemID: id}, nil
}
func (f *fakeStore) Listings(context.Context) ([]domain.Listing, error) {
	return []domain.Listing{{ID: "featured-1", Featured: true}}, f.err
}
func (f *fakeStore) MyListings(context.Context) ([]domain.Listing, error) {
	return nil, f.err
}
func (f *fakeStore) Activity(_ context.Context, opts domain.ListOpts) ([]domain.Activity, error) {
	f.opts = opts
	return []domain.Activity{}, f.err
}
func (f *fakeStore) UploadImage(_ context.Context, _ string, ct string, data io.Reader) (string, error) {
	f.uploadCT = ct
	f.upload, _ = io.ReadAll(data)
	return "https://cdn/x.png", f.uploadErr
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err    error
		status int
		kind   string
	}{
		{domain.ErrWalletMissing, http.StatusServiceUnavailable, "wallet_missing"},
		{domain.NewError(domain.KindUserRejected, "Transaction was rejected by user", nil), http.StatusForbidden, "user_rejected"},
		{domain.ErrNotConnected, http.StatusPreconditionFailed, "not_connected"},
		{domain.ErrInsufficientFunds, http.StatusPaymentRequired, "insufficient_funds"},
		{domain.ErrNetworkOrContract, http.StatusBadGateway, "network_or_contract_error"},
		{domain.ErrCreateFailed, http.StatusBadGateway, "create_failed"},
		{domain.ErrBuyFailed, http.StatusBadGateway, "buy_failed"},
		{domain.ErrFetchFailed, http.StatusBadGateway, "fetch_failed"},
		{fmt.Errorf("%w: bad id", domain.ErrInvalidInput), http.StatusBadRequest, "invalid_input"},
		{fmt.Errorf("%w: images", domain.ErrUnavailable), http.StatusServiceUnavailable, "unavailable"},
		{chain.ErrSuperseded, http.StatusConflict, "superseded"},
		{context.DeadlineExceeded, http.StatusGatewayTimeout, "timeout"},
		{errors.New("boom"), http.StatusInternalServerError, "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			status, kind := classify(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.kind, kind)
		})
	}
}

func TestListingHandler_CreateAndBuy(t *testing.T) {
	store := &fakeStore{}
	h := NewListingHandler(store, discard())

	body := `{"name":"Sunset","price":"1.5","category":"Art","image":"https://img"}`
	rec := httptest.NewRecorder()
	h.CreateListing(rec, httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(body)))
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, service.CreateRequest{Name: "Sunset", Price: "1.5", Category: "Art", Image: "https://img"}, store.created)
	assert.Equal(t, "9", decode(t, rec)["item_id"])

	req := httptest.NewRequest(http.MethodPost, "/api/listings/42/buy", bytes.NewBufferString(`{"price":"2.0"}`))
	req.SetPathValue("id", "42")
	rec = httptest.NewRecorder()
	h.BuyListing(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "42", store.boughtID)
	assert.Equal(t, "2.0", store.boughtAt)
}

func TestListingHandler_Errors(t *testing.T) {
	store := &fakeStore{err: domain.NewError(domain.KindInsufficientFunds, "Insufficient ETH.", nil)}
	h := NewListingHandler(store, discard())

	req := httptest.NewRequest(http.MethodPost, "/api/listings/1/buy", bytes.NewBufferString(`{"price":"2.0"}`))
	req.SetPathValue("id", "1")
	rec := httptest.NewRecorder()
	h.BuyListing(rec, req)
	assert.Equal(t, http.StatusPaymentRequired, rec.Code)
	assert.Equal(t, map[string]any{"error": "Insufficient ETH.", "kind": "insufficient_funds"}, decode(t, rec))

	rec = httptest.NewRecorder()
	h.CreateListing(rec, httptest.NewRequest(http.MethodPost, "/api/listings", bytes.NewBufferString(`{"nmae":"typo"}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "invalid_input", decode(t, rec)["kind"])
}

func TestActivityHandler_ParsesOpts(t *testing.T) {
	store := &fakeStore{}
	h := NewActivityHandler(store, discard())

	rec := httptest.NewRecorder()
	h.ListActivity(rec, httptest.NewRequest(http.MethodGet, "/api/activity?limit=900&offset=5&since=2024-01-02T00:00:00Z", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 500, store.opts.Limit)
	assert.Equal(t, 5, store.opts.Offset)
	require.NotNil(t, store.opts.Since)
	assert.Equal(t, 2024, store.opts.Since.Year())
	assert.Nil(t, store.opts.Until)

	rec = httptest.NewRecorder()
	h.ListActivity(rec, httptest.NewRequest(http.MethodGet, "/api/activity?until=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func multipartImage(t *testing.T, filename, contentType string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestImageHandler_Upload(t *testing.T) {
	store := &fakeStore{}
	h := NewImageHandler(store, 1<<20, discard())

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 32)...)
	body, ct := multipartImage(t, "cat.png", "application/octet-stream", png)
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "https://cdn/x.png", decode(t, rec)["uri"])
	assert.Equal(t, "image/png", store.uploadCT)
	assert.Equal(t, png, store.upload)
}

func TestImageHandler_TooLarge(t *testing.T) {
	h := NewImageHandler(&fakeStore{}, 16, discard())

	body, ct := multipartImage(t, "big.png", "image/png", make([]byte, 4096))
	req := httptest.NewRequest(http.MethodPost, "/api/images", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestImageHandler_MissingField(t *testing.T) {
	h := NewImageHandler(&fakeStore{}, 1<<20, discard())
	req := httptest.NewRequest(http.MethodPost, "/api/images", bytes.NewBufferString("x"))
	req.Header.Set("Content-Type", "text/plain")
	rec := httptest.NewRecorder()
	h.Upload(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthHandler(t *testing.T) {
	h := NewHealthHandler(map[string]Check{
		"postgres": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	}, discard())

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	out := decode(t, rec)
	assert.Equal(t, "degraded", out["status"])
	assert.Equal(t, map[string]any{"postgres": "ok", "redis": "down"}, out["backends"])
}
