package handler

import (
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/nftstore/internal/service"
)

// ListingHandler serves marketplace listings.
type ListingHandler struct {
	store  Storefront
	logger *slog.Logger
}

// NewListingHandler creates a ListingHandler.
func NewListingHandler(store Storefront, logger *slog.Logger) *ListingHandler {
	return &ListingHandler{store: store, logger: logHandler(logger, "listing")}
}

// ListListings returns the featured catalog and the contract's unsold items.
// GET /api/listings
func (h *ListingHandler) ListListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.store.Listings(r.Context())
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings, "count": len(listings)})
}

// MyListings returns the connected account's items.
// GET /api/listings/mine
func (h *ListingHandler) MyListings(w http.ResponseWriter, r *http.Request) {
	listings, err := h.store.MyListings(r.Context())
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"listings": listings, "count": len(listings)})
}

// CreateListing lists a new item.
// POST /api/listings
func (h *ListingHandler) CreateListing(w http.ResponseWriter, r *http.Request) {
	var req service.CreateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	tx, err := h.store.CreateListing(r.Context(), req)
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

type buyRequest struct {
	Price string `json:"price"`
}

// BuyListing purchases the listing in the path at the price in the body.
// POST /api/listings/{id}/buy
func (h *ListingHandler) BuyListing(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	tx, err := h.store.BuyListing(r.Context(), r.PathValue("id"), req.Price)
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
