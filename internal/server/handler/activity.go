package handler

import (
	"log/slog"
	"net/http"
)

// ActivityHandler serves the transaction journal.
type ActivityHandler struct {
	store  Storefront
	logger *slog.Logger
}

// NewActivityHandler creates an ActivityHandler.
func NewActivityHandler(store Storefront, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{store: store, logger: logHandler(logger, "activity")}
}

// ListActivity returns the connected account's journal.
// GET /api/activity?limit=&offset=&since=&until=
func (h *ActivityHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	opts, err := parseListOpts(r)
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	rows, err := h.store.Activity(r.Context(), opts)
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"activity": rows,
		"limit":    opts.Limit,
		"offset":   opts.Offset,
	})
}
