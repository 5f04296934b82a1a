package handler

import (
	"log/slog"
	"net/http"
)

// BalanceHandler serves native-currency balances.
type BalanceHandler struct {
	store  Storefront
	logger *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler.
func NewBalanceHandler(store Storefront, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{store: store, logger: logHandler(logger, "balance")}
}

// GetBalance returns the balance of the address in the path.
// GET /api/balance/{address}
func (h *BalanceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	bal, err := h.store.Balance(r.Context(), r.PathValue("address"))
	if err != nil {
		writeFailure(w, h.logger, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bal)
}
