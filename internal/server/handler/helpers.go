// Package handler implements the storefront's JSON endpoints.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/alanyoungcy/nftstore/internal/chain"
	"github.com/alanyoungcy/nftstore/internal/domain"
	"github.com/alanyoungcy/nftstore/internal/service"
)

// Storefront is the service surface the handlers call.
type Storefront interface {
	Connect(ctx context.Context) (service.SessionInfo, error)
	Disconnect(ctx context.Context)
	Session() service.SessionInfo
	Balance(ctx context.Context, address string) (service.Balance, error)
	CreateListing(ctx context.Context, req service.CreateRequest) (*domain.TxHandle, error)
	BuyListing(ctx context.Context, id, price string) (*domain.TxHandle, error)
	Listings(ctx context.Context) ([]domain.Listing, error)
	MyListings(ctx context.Context) ([]domain.Listing, error)
	Activity(ctx context.Context, opts domain.ListOpts) ([]domain.Activity, error)
	UploadImage(ctx context.Context, filename, contentType string, data io.Reader) (string, error)
}

// maxJSONBody caps request bodies decoded as JSON.
const maxJSONBody = 64 << 10

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// writeJSON marshals v as JSON and writes it with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		http.Error(w, `{"error":"internal server error","kind":"unknown"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(data)
}

// writeError sends an error response with an explicit status and kind.
func writeError(w http.ResponseWriter, status int, kind, msg string) {
	writeJSON(w, status, errorBody{Error: msg, Kind: kind})
}

// writeFailure maps err onto a status and kind and writes it. Server-side
// failures are logged.
func writeFailure(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	status, kind := classify(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
	}
	writeError(w, status, kind, err.Error())
}

// kindStatus maps the marketplace taxonomy onto HTTP statuses.
var kindStatus = map[domain.ErrorKind]int{
	domain.KindWalletMissing:     http.StatusServiceUnavailable,
	domain.KindUserRejected:      http.StatusForbidden,
	domain.KindNotConnected:      http.StatusPreconditionFailed,
	domain.KindInsufficientFunds: http.StatusPaymentRequired,
	domain.KindNetworkOrContract: http.StatusBadGateway,
	domain.KindCreateFailed:      http.StatusBadGateway,
	domain.KindBuyFailed:         http.StatusBadGateway,
	domain.KindFetchFailed:       http.StatusBadGateway,
}

func classify(err error) (int, string) {
	if kind := domain.KindOf(err); kind != domain.KindUnknown {
		return kindStatus[kind], kind.String()
	}
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	case errors.Is(err, chain.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	}
	return http.StatusInternalServerError, domain.KindUnknown.String()
}

// decodeJSON reads a size-limited JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: request body: %v", domain.ErrInvalidInput, err)
	}
	return nil
}

// parseListOpts extracts pagination parameters from the query string.
// Defaults: limit=50 (max 500), offset=0. since/until are RFC 3339.
func parseListOpts(r *http.Request) (domain.ListOpts, error) {
	q := r.URL.Query()
	opts := domain.ListOpts{Limit: 50}

	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			opts.Limit = n
		}
	}
	if opts.Limit > 500 {
		opts.Limit = 500
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			opts.Offset = n
		}
	}
	for name, dst := range map[string]**time.Time{"since": &opts.Since, "until": &opts.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return opts, fmt.Errorf("%w: %s must be RFC 3339", domain.ErrInvalidInput, name)
		}
		*dst = &ts
	}
	return opts, nil
}

// logHandler attaches the handler name to logger.
func logHandler(logger *slog.Logger, handler string) *slog.Logger {
	return logger.With(slog.String("handler", handler))
}
