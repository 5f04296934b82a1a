package handler

import (
	"log/slog"
	"net/http"
)

// SessionHandler manages the wallet session.
type SessionHandler struct {
	store  Storefront
	logger *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(store Storefront, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{store: store, logger: logHandler(logger, "session")}
}

// Connect opens a wallet session.
// POST /api/session
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	info, err := h.store.Connect(r.Context())
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// GetSession reports the current session.
// GET /api/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.store.Session())
}

// Disconnect drops the session.
// DELETE /api/session
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.store.Disconnect(r.Context())
	writeJSON(w, http.StatusOK, h.store.Session())
}
